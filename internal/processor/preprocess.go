package processor

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Preprocessed is the output of the preprocessing stage
type Preprocessed struct {
	Image gocv.Mat // owned by the caller
	Scale float64  // processed height / frame height
}

// FrameChanged reports whether frame differs enough from last to be processed.
// A missing or differently sized cache always counts as changed.
func FrameChanged(frame, last gocv.Mat, thresholdPercent int) (bool, error) {
	if last.Empty() || frame.Rows() != last.Rows() || frame.Cols() != last.Cols() ||
		frame.Type() != last.Type() {
		return true, nil
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(frame, last, &diff)

	gray, err := toGray(diff)
	if err != nil {
		return false, err
	}
	defer gray.Close()

	changed := gocv.CountNonZero(gray)
	limit := int(float64(thresholdPercent) / 100.0 * float64(frame.Cols()*frame.Rows()))

	if changed == 0 || changed < limit {
		return false, nil
	}
	return true, nil
}

// Binarize applies exactly one binarization policy. With BinarizationNone the
// color frame is returned unchanged (as a copy).
func Binarize(src gocv.Mat, s *Settings) (gocv.Mat, error) {
	if s.Binarization == BinarizationNone {
		return src.Clone(), nil
	}

	gray, err := toGray(src)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer gray.Close()

	dst := gocv.NewMat()
	switch s.Binarization {
	case BinarizationFixed:
		gocv.Threshold(gray, &dst, float32(s.BinarizationThreshold), 255, gocv.ThresholdBinary)
	case BinarizationAdaptiveMean:
		gocv.AdaptiveThreshold(gray, &dst, 255, gocv.AdaptiveThresholdMean,
			gocv.ThresholdBinary, s.BlockSize(), adaptiveConstant)
	case BinarizationAdaptiveGaussian:
		gocv.AdaptiveThreshold(gray, &dst, 255, gocv.AdaptiveThresholdGaussian,
			gocv.ThresholdBinary, s.BlockSize(), adaptiveConstant)
	case BinarizationTriangle:
		gocv.Threshold(gray, &dst, 0, 255, gocv.ThresholdBinary|gocv.ThresholdTriangle)
	case BinarizationOtsu:
		gocv.Threshold(gray, &dst, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	default:
		dst.Close()
		return gocv.NewMat(), fmt.Errorf("unsupported binarization mode: %s", s.Binarization)
	}
	return dst, nil
}

// Dilate grows bright areas with a 3x3 rectangle, iterations times
func Dilate(src gocv.Mat, iterations int) gocv.Mat {
	if iterations <= 0 {
		return src.Clone()
	}

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()

	output := gocv.NewMat()
	gocv.Dilate(src, &output, kernel)
	for i := 1; i < iterations; i++ {
		temp := gocv.NewMat()
		gocv.Dilate(output, &temp, kernel)
		output.Close()
		output = temp
	}
	return output
}

// Rescale resizes src so its height equals targetHeight, keeping aspect ratio
func Rescale(src gocv.Mat, targetHeight int) (gocv.Mat, float64) {
	if src.Rows() == 0 || targetHeight <= 0 {
		return src.Clone(), 1
	}
	scale := float64(targetHeight) / float64(src.Rows())
	dst := gocv.NewMat()
	gocv.Resize(src, &dst, image.Point{}, scale, scale, gocv.InterpolationLinear)
	return dst, scale
}

// Preprocess runs binarization, dilation, preview publication and rescale.
// Change detection is handled by the caller since it owns the frame cache.
func Preprocess(frame gocv.Mat, s *Settings, preview ImageSink) (*Preprocessed, error) {
	binary, err := Binarize(frame, s)
	if err != nil {
		return nil, err
	}

	img := Dilate(binary, s.DilationIterations)
	binary.Close()

	if s.PreviewBinarization && preview != nil {
		rgba, err := MatToRGBA(img)
		if err != nil {
			img.Close()
			return nil, fmt.Errorf("preview conversion failed: %w", err)
		}
		preview.SetImage(rgba)
	}

	scale := 1.0
	if s.RescaleEnabled {
		resized, sc := Rescale(img, s.RescaleTargetHeight)
		img.Close()
		img, scale = resized, sc
	}

	return &Preprocessed{Image: img, Scale: scale}, nil
}

func toGray(src gocv.Mat) (gocv.Mat, error) {
	gray := gocv.NewMat()
	switch src.Channels() {
	case 1:
		src.CopyTo(&gray)
	case 3:
		gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	case 4:
		gocv.CvtColor(src, &gray, gocv.ColorBGRAToGray)
	default:
		gray.Close()
		return gocv.NewMat(), fmt.Errorf("unsupported channel count: %d", src.Channels())
	}
	return gray, nil
}

// ToBGRA converts a 1-, 3- or 4-channel image into a new BGRA image
func ToBGRA(src gocv.Mat) (gocv.Mat, error) {
	dst := gocv.NewMat()
	switch src.Channels() {
	case 1:
		gocv.CvtColor(src, &dst, gocv.ColorGrayToBGRA)
	case 3:
		gocv.CvtColor(src, &dst, gocv.ColorBGRToBGRA)
	case 4:
		src.CopyTo(&dst)
	default:
		dst.Close()
		return gocv.NewMat(), fmt.Errorf("unsupported channel count: %d", src.Channels())
	}
	return dst, nil
}

// MatToRGBA copies an image into a Go RGBA buffer
func MatToRGBA(src gocv.Mat) (*image.RGBA, error) {
	bgra, err := ToBGRA(src)
	if err != nil {
		return nil, err
	}
	defer bgra.Close()

	w, h := bgra.Cols(), bgra.Rows()
	data := bgra.ToBytes()
	if len(data) < w*h*4 {
		return nil, fmt.Errorf("short pixel buffer: %d bytes for %dx%d", len(data), w, h)
	}

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		p := i * 4
		out.Pix[p+0] = data[p+2]
		out.Pix[p+1] = data[p+1]
		out.Pix[p+2] = data[p+0]
		out.Pix[p+3] = data[p+3]
	}
	return out, nil
}
