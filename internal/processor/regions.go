package processor

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// OverlayRenderer draws region texts on a transparent canvas of the given size
type OverlayRenderer interface {
	Render(regions []Region, width, height int, background bool) (*image.RGBA, error)
}

// RenderMask draws every region as a filled white rectangle on an opaque black canvas
func RenderMask(regions []Region, width, height int) (*image.RGBA, error) {
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 255), height, width, gocv.MatTypeCV8UC4)
	defer mask.Close()

	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	for _, r := range regions {
		gocv.Rectangle(&mask, r.Box, white, -1)
	}

	return MatToRGBA(mask)
}

// ComposeDetections produces the image sink output for the surviving regions
func ComposeDetections(regions []Region, size image.Point, mode ImageMode, renderer OverlayRenderer) (*image.RGBA, error) {
	switch mode {
	case ImageModeMask:
		return RenderMask(regions, size.X, size.Y)
	case ImageModeText, ImageModeTextBackground:
		if renderer == nil {
			return nil, fmt.Errorf("no overlay renderer configured")
		}
		return renderer.Render(regions, size.X, size.Y, mode == ImageModeTextBackground)
	default:
		return nil, fmt.Errorf("unsupported image mode: %s", mode)
	}
}
