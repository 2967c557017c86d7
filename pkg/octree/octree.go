// Package octree builds, per timestep, a full octree of bricks over a
// volumetric dataset and streams it to a scratch file in
// children-before-parents order (spec §4.4).
package octree

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/sisatech/tspc/pkg/brick"
	"github.com/sisatech/tspc/pkg/morton"
	"github.com/sisatech/tspc/pkg/tspformat"
)

// ErrScratchIO covers a write failure against the scratch file.
var ErrScratchIO = errors.New("octree: scratch file write failed")

// Progress receives per-timestep completion notifications. Optional;
// a nil Progress does nothing.
type Progress interface {
	Increment(n int64)
}

// Builder produces the scratch-file octree representation for every
// timestep of a dataset.
type Builder struct {
	Header *tspformat.Header

	// Input is the timestep voxel payload, addressable by absolute
	// byte offset (spec §6: little-endian floats, x-fastest).
	Input io.ReaderAt

	// Scratch is the intermediate per-timestep octree dump (spec §6).
	// Writes for distinct timesteps never overlap, so timesteps built
	// concurrently only need WriteAt, not a shared cursor.
	Scratch io.WriterAt

	// Concurrency bounds how many timesteps are built at once. Values
	// less than 1 are treated as 1.
	Concurrency int

	Progress Progress
}

// Build performs spec §4.4 for every timestep in the header.
func (b *Builder) Build(ctx context.Context) error {

	concurrency := b.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, concurrency)

	for t := 0; t < int(b.Header.T); t++ {
		t := t

		select {
		case sem <- struct{}{}:
		case <-gctx.Done():
			return g.Wait()
		}

		g.Go(func() error {
			defer func() { <-sem }()
			err := b.buildTimestep(gctx, t)
			if err == nil && b.Progress != nil {
				b.Progress.Increment(1)
			}
			return err
		})
	}

	return g.Wait()

}

func (b *Builder) buildTimestep(ctx context.Context, t int) error {

	if err := ctx.Err(); err != nil {
		return err
	}

	h := b.Header
	vx, vy, vz := h.VoxelDims()
	voxelCount := int64(vx) * int64(vy) * int64(vz)

	raw := make([]byte, voxelCount*brick.SizeOfReal)
	offset := int64(tspformat.HeaderOffset) + int64(t)*voxelCount*int64(h.DataSize)
	if _, err := b.Input.ReadAt(raw, offset); err != nil {
		return fmt.Errorf("timestep %d: reading payload: %v: %w", t, err, tspformat.ErrInputUnreadable)
	}

	payload := brick.New(int(vx), int(vy), int(vz), 0)
	if err := payload.Decode(raw); err != nil {
		return fmt.Errorf("timestep %d: decoding payload: %w", t, err)
	}

	nx, ny, nz := int(h.Nx), int(h.Ny), int(h.Nz)
	bx, by, bz := int(h.Bx), int(h.By), int(h.Bz)
	pool := brick.NewPool(bx, by, bz)

	base := make([]*brick.Brick, nx*ny*nz)
	for zb := 0; zb < nz; zb++ {
		for yb := 0; yb < ny; yb++ {
			for xb := 0; xb < nx; xb++ {

				idxNat := xb + yb*nx + zb*nx*ny
				br := pool.Get()

				for z := 0; z < bz; z++ {
					for y := 0; y < by; y++ {
						for x := 0; x < bx; x++ {
							gx, gy, gz := xb*bx+x, yb*by+y, zb*bz+z
							v, err := payload.Get(gx, gy, gz)
							if err != nil {
								return fmt.Errorf("timestep %d: carving base brick: %w", t, err)
							}
							if err := br.Set(x, y, z, v); err != nil {
								return fmt.Errorf("timestep %d: carving base brick: %w", t, err)
							}
						}
					}
				}

				base[idxNat] = br

			}
		}
	}

	nOctree := h.NOctree()
	octreeBuf := make([]*brick.Brick, nOctree)
	for zb := 0; zb < nz; zb++ {
		for yb := 0; yb < ny; yb++ {
			for xb := 0; xb < nx; xb++ {
				idxNat := xb + yb*nx + zb*nx*ny
				z := morton.Encode(uint32(xb), uint32(yb), uint32(zb))
				octreeBuf[z] = base[idxNat]
			}
		}
	}

	leafCount := h.LeafCount()
	brickPos := leafCount
	childPos := int64(0)

	for brickPos < nOctree {

		if err := ctx.Err(); err != nil {
			return err
		}

		var children [8]*brick.Brick
		for i := 0; i < 8; i++ {
			children[i] = octreeBuf[childPos+int64(i)]
		}

		var filtered [8]*brick.Brick
		for i, c := range children {
			f, err := brick.Filter(pool, c)
			if err != nil {
				return fmt.Errorf("timestep %d: filtering child %d: %w", t, i, err)
			}
			filtered[i] = f
		}

		parent, err := brick.Combine(pool, filtered)
		if err != nil {
			return fmt.Errorf("timestep %d: combining children at brick %d: %w", t, brickPos, err)
		}

		for _, f := range filtered {
			pool.Put(f)
		}

		octreeBuf[brickPos] = parent
		brickPos++
		childPos += 8

	}

	timestepOffset := int64(t) * nOctree * h.SizeBytes()
	for i := int64(0); i < nOctree; i++ {

		br := octreeBuf[i]
		off := timestepOffset + i*h.SizeBytes()

		if _, err := b.Scratch.WriteAt(br.Encode(), off); err != nil {
			return fmt.Errorf("timestep %d: writing brick %d: %v: %w", t, i, err, ErrScratchIO)
		}

		pool.Put(br)

	}

	return nil

}
