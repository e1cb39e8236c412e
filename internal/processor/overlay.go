package processor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// FontRenderer renders region texts with an OpenType face sized to each box
type FontRenderer struct {
	font       *opentype.Font
	textColor  color.Color
	background color.Color

	mu    sync.Mutex
	faces map[int]font.Face
}

// NewFontRenderer parses ttf, or the bundled Go Regular face when ttf is nil
func NewFontRenderer(ttf []byte) (*FontRenderer, error) {
	if ttf == nil {
		ttf = goregular.TTF
	}
	f, err := opentype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return &FontRenderer{
		font:       f,
		textColor:  color.White,
		background: color.Black,
		faces:      make(map[int]font.Face),
	}, nil
}

// Render draws each region's text at its box. With background set the box is
// filled first so the glyphs stay readable over the video.
func (r *FontRenderer) Render(regions []Region, width, height int, background bool) (*image.RGBA, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))

	for _, region := range regions {
		box := region.Box.Intersect(canvas.Bounds())
		if box.Empty() || region.Text == "" {
			continue
		}

		if background {
			draw.Draw(canvas, box, &image.Uniform{C: r.background}, image.Point{}, draw.Src)
		}

		face, err := r.face(box.Dy())
		if err != nil {
			return nil, err
		}

		metrics := face.Metrics()
		baseline := box.Max.Y - metrics.Descent.Ceil()
		d := &font.Drawer{
			Dst:  canvas,
			Src:  &image.Uniform{C: r.textColor},
			Face: face,
			Dot:  fixed.P(box.Min.X, baseline),
		}
		d.DrawString(region.Text)
	}

	return canvas, nil
}

// Close releases cached faces
func (r *FontRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for size, face := range r.faces {
		face.Close()
		delete(r.faces, size)
	}
	return nil
}

func (r *FontRenderer) face(boxHeight int) (font.Face, error) {
	size := boxHeight * 4 / 5
	if size < 6 {
		size = 6
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if face, ok := r.faces[size]; ok {
		return face, nil
	}
	face, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create face (size %d): %w", size, err)
	}
	r.faces[size] = face
	return face, nil
}
