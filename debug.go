package meadow

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// DebugOverlay prints frame rate and streaming counters in the top-left
// corner. The text refreshes every Interval seconds.
type DebugOverlay struct {
	Interval float64

	loader *MapLoader
	frame  *FrameRenderer

	img     *ebiten.Image
	elapsed float64
	text    string
	op      ebiten.DrawImageOptions
}

// NewDebugOverlay creates an overlay. Either source may be nil.
func NewDebugOverlay(loader *MapLoader, frame *FrameRenderer) *DebugOverlay {
	return &DebugOverlay{Interval: 0.5, loader: loader, frame: frame, elapsed: 0.5}
}

// Update advances the refresh timer by dt seconds.
func (o *DebugOverlay) Update(dt float64) {
	o.elapsed += dt
	if o.elapsed < o.Interval {
		return
	}
	o.elapsed = 0
	o.text = o.status(ebiten.ActualFPS(), ebiten.ActualTPS())
}

// status formats the overlay text.
func (o *DebugOverlay) status(fps, tps float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "FPS: %.1f\nTPS: %.1f\n", fps, tps)
	if o.loader != nil {
		fmt.Fprintf(&b, "maps: %d\n", len(o.loader.LoadedMaps()))
	}
	if o.frame != nil && o.frame.Tiles != nil {
		st := o.frame.Tiles.Stats()
		fmt.Fprintf(&b, "chunks: %d (culled %d)\ntiles: %d", st.Chunks, st.Culled, st.Drawn)
		if st.Invalid > 0 {
			fmt.Fprintf(&b, " (invalid %d)", st.Invalid)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Draw renders the overlay onto screen.
func (o *DebugOverlay) Draw(screen *ebiten.Image) {
	if o.text == "" {
		return
	}
	if o.img == nil {
		o.img = ebiten.NewImage(180, 80)
	}
	o.img.Clear()
	o.img.Fill(color.RGBA{0, 0, 0, 128})
	ebitenutil.DebugPrint(o.img, o.text)
	o.op.GeoM.Reset()
	o.op.GeoM.Translate(4, 4)
	screen.DrawImage(o.img, &o.op)
}
