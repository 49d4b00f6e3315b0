package meadow

import (
	"fmt"
	"image"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// --- Render texture pool ---

// renderTexturePool manages reusable offscreen ebiten.Images keyed by
// power-of-two dimensions. After warmup, Acquire/Release are zero-alloc.
type renderTexturePool struct {
	buckets map[uint64][]*ebiten.Image
}

// poolKey packs power-of-two width and height into a single uint64.
func poolKey(w, h int) uint64 {
	return uint64(w)<<32 | uint64(h)
}

// Acquire returns a cleared offscreen image with at least (w, h) pixels.
// Dimensions are rounded up to the next power of two.
func (p *renderTexturePool) Acquire(w, h int) *ebiten.Image {
	pw := nextPowerOfTwo(w)
	ph := nextPowerOfTwo(h)
	key := poolKey(pw, ph)

	if p.buckets != nil {
		if stack := p.buckets[key]; len(stack) > 0 {
			img := stack[len(stack)-1]
			p.buckets[key] = stack[:len(stack)-1]
			img.Clear()
			return img
		}
	}

	return ebiten.NewImageWithOptions(
		image.Rect(0, 0, pw, ph),
		&ebiten.NewImageOptions{Unmanaged: true},
	)
}

// Release returns an image to the pool for reuse. The image is cleared on
// next Acquire, not here.
func (p *renderTexturePool) Release(img *ebiten.Image) {
	if img == nil {
		return
	}
	b := img.Bounds()
	key := poolKey(b.Dx(), b.Dy())

	if p.buckets == nil {
		p.buckets = make(map[uint64][]*ebiten.Image)
	}
	p.buckets[key] = append(p.buckets[key], img)
}

// Dispose deallocates every pooled image.
func (p *renderTexturePool) Dispose() {
	for key, stack := range p.buckets {
		for _, img := range stack {
			img.Deallocate()
		}
		delete(p.buckets, key)
	}
}

// nextPowerOfTwo returns the smallest power of two >= n (minimum 1).
func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << int(math.Ceil(math.Log2(float64(n))))
}

// region returns the (w, h) top-left region of a pooled image.
func region(img *ebiten.Image, w, h int) *ebiten.Image {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}
	return img.SubImage(image.Rect(b.Min.X, b.Min.Y, b.Min.X+w, b.Min.Y+h)).(*ebiten.Image)
}

// --- Pass targets ---

// PassTargets leases one intermediate render target per shader pass index.
// Targets are sized to the frame and reused across frames; resizing releases
// them back to the pool. It implements RenderTargetPool.
type PassTargets struct {
	// MaxPasses bounds the number of distinct pass indices.
	MaxPasses int

	width, height int
	targets       []*ebiten.Image // indexed by pass, full pooled images
	pool          renderTexturePool
}

// NewPassTargets creates a pass target set limited to maxPasses targets.
func NewPassTargets(maxPasses int) *PassTargets {
	return &PassTargets{MaxPasses: maxPasses}
}

// Resize sets the frame size. Existing targets are returned to the pool when
// the size changes.
func (p *PassTargets) Resize(w, h int) {
	if w == p.width && h == p.height {
		return
	}
	p.width, p.height = w, h
	for i, img := range p.targets {
		p.pool.Release(img)
		p.targets[i] = nil
	}
}

// Size returns the current frame size.
func (p *PassTargets) Size() (int, int) {
	return p.width, p.height
}

// RenderTarget returns the target for pass. The image is exactly the frame
// size. Indices beyond MaxPasses fail with ErrPassLimit.
func (p *PassTargets) RenderTarget(pass int) (*ebiten.Image, error) {
	if pass < 0 || pass >= p.MaxPasses {
		return nil, fmt.Errorf("meadow: render target for pass %d of %d: %w", pass, p.MaxPasses, ErrPassLimit)
	}
	if p.width <= 0 || p.height <= 0 {
		return nil, fmt.Errorf("meadow: render target for pass %d: frame size %dx%d", pass, p.width, p.height)
	}
	for len(p.targets) <= pass {
		p.targets = append(p.targets, nil)
	}
	if p.targets[pass] == nil {
		p.targets[pass] = p.pool.Acquire(p.width, p.height)
	}
	return region(p.targets[pass], p.width, p.height), nil
}

// Dispose releases all targets and deallocates the pool.
func (p *PassTargets) Dispose() {
	for i, img := range p.targets {
		if img != nil {
			img.Deallocate()
		}
		p.targets[i] = nil
	}
	p.targets = p.targets[:0]
	p.pool.Dispose()
}
