// Package tsptree streams the scratch-file octree level by level and,
// for every spatial node, assembles a time BST and writes it into the
// final TSP file (spec §4.5).
package tsptree

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/sisatech/tspc/pkg/brick"
	"github.com/sisatech/tspc/pkg/tspformat"
)

// ErrTSPIO covers a write failure against the final TSP file.
var ErrTSPIO = errors.New("tsptree: TSP file write failed")

// ErrScratchIO covers a read failure against the scratch file.
var ErrScratchIO = errors.New("tsptree: scratch file read failed")

// Progress receives per-spatial-node completion notifications.
type Progress interface {
	Increment(n int64)
}

// Builder walks the scratch-file octree and writes the TSP payload.
type Builder struct {
	Header *tspformat.Header

	// Scratch is the finished octree scratch file (spec §6): T blocks
	// of NOctree bricks each, children before parents.
	Scratch io.ReaderAt

	// TSP is the output file, positioned so that offset 0 corresponds
	// to the first payload byte (immediately after the 44-byte
	// header).
	TSP io.WriterAt

	// Concurrency bounds how many spatial nodes within one octree
	// level are assembled at once. Values less than 1 are treated as 1.
	Concurrency int

	Progress Progress
}

// Build performs spec §4.5: walks levels leaf-to-root, writing BST
// blocks in root-to-leaf order into the TSP payload.
func (b *Builder) Build(ctx context.Context) error {

	h := b.Header
	nOctree := h.NOctree()
	l := h.Level()

	// Per-level starting brick index and count within a timestep
	// block, and this level's position within the TSP payload (levels
	// are emitted root-first).
	type levelInfo struct {
		scratchStart int64
		count        int64
		tspStart     int64
	}

	levels := make([]levelInfo, l+1)
	octreePos := nOctree
	tspPos := int64(0)

	for k := 0; k <= l; k++ {
		count := int64(1) << uint(3*k)
		octreePos -= count
		levels[k] = levelInfo{scratchStart: octreePos, count: count}
	}

	// levels is indexed by depth below the root (levels[0] is the root,
	// levels[l] the leaves). The root is written first; deeper levels
	// follow.
	for k := 0; k <= l; k++ {
		levels[k].tspStart = tspPos
		tspPos += levels[k].count * h.TimeBSTNodes() * h.SizeBytes()
	}

	concurrency := b.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	for k := l; k >= 0; k-- {

		if err := ctx.Err(); err != nil {
			return err
		}

		info := levels[k]
		g, gctx := errgroup.WithContext(ctx)
		sem := make(chan struct{}, concurrency)

		for i := int64(0); i < info.count; i++ {
			i := i

			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return g.Wait()
			}

			g.Go(func() error {
				defer func() { <-sem }()
				err := b.buildNode(gctx, info.scratchStart+i, i, info.tspStart+i*h.TimeBSTNodes()*h.SizeBytes())
				if err == nil && b.Progress != nil {
					b.Progress.Increment(1)
				}
				return err
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}

	}

	return nil

}

// buildNode collects the T timestep bricks for spatial node
// scratchIndex, folds them bottom-up into a 2T-1 BST buffer, and
// writes the buffer to tspOffset.
func (b *Builder) buildNode(ctx context.Context, scratchIndex, spatialIndex, tspOffset int64) error {

	h := b.Header
	T := int64(h.T)
	nOctree := h.NOctree()
	pool := brick.NewPool(int(h.Bx), int(h.By), int(h.Bz))

	bstBricks := make([]*brick.Brick, 2*T-1)
	raw := make([]byte, h.SizeBytes())

	for ts := int64(0); ts < T; ts++ {

		off := (scratchIndex + ts*nOctree) * h.SizeBytes()
		if _, err := b.Scratch.ReadAt(raw, off); err != nil {
			return fmt.Errorf("node %d: reading timestep %d: %v: %w", spatialIndex, ts, err, ErrScratchIO)
		}

		br := pool.Get()
		if err := br.Decode(raw); err != nil {
			return fmt.Errorf("node %d: decoding timestep %d: %w", spatialIndex, ts, err)
		}

		bstBricks[T-1+ts] = br

	}

	parentBase := T - 1
	K := h.TimeLevels()

	for level := 1; level <= K; level++ {

		n := T >> uint(level)
		newParentBase := parentBase - n

		for j := int64(0); j < n; j++ {

			left := bstBricks[parentBase+2*j]
			right := bstBricks[parentBase+2*j+1]

			avg, err := brick.Average(pool, left, right)
			if err != nil {
				return fmt.Errorf("node %d: averaging BST level %d: %w", spatialIndex, level, err)
			}

			bstBricks[newParentBase+j] = avg

		}

		parentBase = newParentBase

	}

	for idx, br := range bstBricks {

		off := tspOffset + int64(idx)*h.SizeBytes()
		if _, err := b.TSP.WriteAt(br.Encode(), off); err != nil {
			return fmt.Errorf("node %d: writing BST index %d: %v: %w", spatialIndex, idx, err, ErrTSPIO)
		}

		pool.Put(br)

	}

	return nil

}
