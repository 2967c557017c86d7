// Package pipeline sequences header population, octree construction
// and TSP assembly, and owns the scratch file's lifecycle (spec §4.6).
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/thanhpk/randstr"

	"github.com/sisatech/tspc/pkg/elog"
	"github.com/sisatech/tspc/pkg/octree"
	"github.com/sisatech/tspc/pkg/tspformat"
	"github.com/sisatech/tspc/pkg/tsptree"
)

// Args is the minimal invocation surface a collaborator (CLI, test
// harness) must supply (spec §6).
type Args struct {
	InFilename   string
	OutFilename  string
	BrickDim     uint32
	PaddingWidth uint32
	Structure    uint32

	// Concurrency bounds per-stage fan-out; values less than 1 mean
	// "run sequentially."
	Concurrency int

	Logger elog.View
}

// offsetWriterAt shifts every WriteAt call by a fixed base, letting the
// TSP builder address its payload starting at offset 0 while the file
// on disk carries a leading fixed-size header.
type offsetWriterAt struct {
	w    io.WriterAt
	base int64
}

func (o *offsetWriterAt) WriteAt(p []byte, off int64) (int, error) {
	return o.w.WriteAt(p, off+o.base)
}

// Pipeline drives a single dataset through header -> octree -> TSP.
type Pipeline struct {
	args Args
	runID string
}

// New returns a Pipeline ready to Construct, substituting a non-TTY
// logger when args.Logger is nil. The arguments are not checked here;
// Construct validates the geometry when it loads the header.
func New(args Args) *Pipeline {
	if args.Logger == nil {
		args.Logger = &elog.CLI{DisableTTY: true}
	}
	return &Pipeline{args: args, runID: uuid.New().String()}
}

// Construct runs the full pipeline: populate the header, build the
// scratch-file octree for every timestep, fold it into the final TSP
// file, and remove the scratch file on every exit path.
func (p *Pipeline) Construct(ctx context.Context) error {

	log := p.args.Logger
	log.Infof("[%s] starting build: %s -> %s", p.runID, p.args.InFilename, p.args.OutFilename)

	in, err := os.Open(p.args.InFilename)
	if err != nil {
		return fmt.Errorf("opening input file: %v: %w", err, tspformat.ErrInputUnreadable)
	}
	defer in.Close()

	header, err := tspformat.Load(in, tspformat.InputArgs{
		Bx: p.args.BrickDim, By: p.args.BrickDim, Bz: p.args.BrickDim,
		PaddingWidth: p.args.PaddingWidth, Structure: p.args.Structure,
	})
	if err != nil {
		return err
	}

	log.Infof("[%s] geometry: %dx%dx%d bricks of %dx%dx%d voxels, %d timesteps",
		p.runID, header.Nx, header.Ny, header.Nz, header.Bx, header.By, header.Bz, header.T)

	scratchPath := p.args.OutFilename + "." + randstr.Hex(8) + ".tspscratch"
	scratch, err := os.Create(scratchPath)
	if err != nil {
		return fmt.Errorf("creating scratch file: %v: %w", err, octree.ErrScratchIO)
	}

	defer func() {
		scratch.Close()
		if rmErr := os.Remove(scratchPath); rmErr != nil && log != nil {
			log.Warnf("[%s] failed to remove scratch file %s: %v", p.runID, scratchPath, rmErr)
		}
	}()

	if err := scratch.Truncate(header.ScratchFileSize()); err != nil {
		return fmt.Errorf("truncating scratch file: %v: %w", err, octree.ErrScratchIO)
	}

	octreeProgress := newProgress(log, "octree", int64(header.T))
	ob := &octree.Builder{
		Header:      header,
		Input:       in,
		Scratch:     scratch,
		Concurrency: p.args.Concurrency,
		Progress:    octreeProgress,
	}
	if err := ob.Build(ctx); err != nil {
		octreeProgress.Finish(false)
		return fmt.Errorf("building octree: %w", err)
	}
	octreeProgress.Finish(true)

	out, err := os.Create(p.args.OutFilename)
	if err != nil {
		return fmt.Errorf("creating TSP file: %v: %w", err, tsptree.ErrTSPIO)
	}
	defer out.Close()

	if _, err := header.WriteTo(out); err != nil {
		return fmt.Errorf("writing TSP header: %v: %w", err, tsptree.ErrTSPIO)
	}

	tspProgress := newProgress(log, "tsp", header.NOctree())
	tb := &tsptree.Builder{
		Header:      header,
		Scratch:     scratch,
		TSP:         &offsetWriterAt{w: out, base: tspformat.FileHeaderSize},
		Concurrency: p.args.Concurrency,
		Progress:    tspProgress,
	}
	if err := tb.Build(ctx); err != nil {
		tspProgress.Finish(false)
		return fmt.Errorf("building TSP payload: %w", err)
	}
	tspProgress.Finish(true)

	log.Infof("[%s] build complete: %s (%d bytes)", p.runID, p.args.OutFilename, header.TSPFileSize())

	return nil

}

type progressAdapter struct {
	bar elog.Progress
}

func newProgress(log elog.View, label string, total int64) *progressAdapter {
	if log == nil {
		return &progressAdapter{}
	}
	return &progressAdapter{bar: log.NewProgress(label, "", total)}
}

func (p *progressAdapter) Increment(n int64) {
	if p.bar != nil {
		p.bar.Increment(n)
	}
}

func (p *progressAdapter) Finish(success bool) {
	if p.bar != nil {
		p.bar.Finish(success)
	}
}
