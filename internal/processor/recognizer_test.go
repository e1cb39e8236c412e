package processor

import (
	"image"
	"testing"
)

func TestFilterRegions(t *testing.T) {
	frame := image.Pt(100, 100) // area 10000, half 5000

	testCases := []struct {
		name  string
		box   BackendBox
		level Level
		keep  bool
	}{
		{"below min area", BackendBox{image.Rect(0, 0, 5, 10), "a", 90}, LevelWord, false},
		{"exactly min area", BackendBox{image.Rect(0, 0, 10, 10), "a", 90}, LevelWord, true},
		{"exactly half frame", BackendBox{image.Rect(0, 0, 50, 100), "a", 90}, LevelWord, true},
		{"over half frame", BackendBox{image.Rect(0, 0, 51, 100), "a", 90}, LevelWord, false},
		{"word below confidence", BackendBox{image.Rect(0, 0, 20, 20), "a", 40}, LevelWord, false},
		{"symbol ignores confidence", BackendBox{image.Rect(0, 0, 20, 20), "a", 40}, LevelSymbol, true},
		{"empty text", BackendBox{image.Rect(0, 0, 20, 20), "", 90}, LevelWord, false},
		{"empty box", BackendBox{image.Rectangle{}, "a", 90}, LevelWord, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			regions := FilterRegions([]BackendBox{tc.box}, tc.level, 60, frame, 1)
			if got := len(regions) == 1; got != tc.keep {
				t.Errorf("kept = %v, want %v", got, tc.keep)
			}
		})
	}
}

func TestFilterRegionsMapsScaledBoxesToFrame(t *testing.T) {
	boxes := []BackendBox{{Box: image.Rect(80, 80, 120, 120), Text: "42", Confidence: 90}}

	regions := FilterRegions(boxes, LevelWord, 60, image.Pt(100, 100), 2)
	if len(regions) != 1 {
		t.Fatalf("expected 1 region, got %d", len(regions))
	}
	if want := image.Rect(40, 40, 60, 60); regions[0].Box != want {
		t.Errorf("box = %v, want %v", regions[0].Box, want)
	}
	if regions[0].Area() != 400 {
		t.Errorf("area = %d, want 400", regions[0].Area())
	}
}

func TestRecognizeAppliesConfidenceGate(t *testing.T) {
	img := newTestFrame(image.Rect(40, 40, 60, 60))
	defer img.Close()

	testCases := []struct {
		name       string
		confidence int
		want       string
	}{
		{"above threshold", 80, "42"},
		{"at threshold", 60, "42"},
		{"below threshold", 59, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			backend := &fakeBackend{text: " 42 \n", confidence: tc.confidence}
			result, err := NewRecognizer(backend).Recognize(img, 60)
			if err != nil {
				t.Fatalf("Recognize: %v", err)
			}
			if result.Text != tc.want {
				t.Errorf("text = %q, want %q", result.Text, tc.want)
			}
			if result.Confidence != tc.confidence {
				t.Errorf("confidence = %d, want %d", result.Confidence, tc.confidence)
			}
		})
	}
}

func TestRecognizerConfigure(t *testing.T) {
	backend := &fakeBackend{}
	s := DefaultSettings()
	s.PageSegMode = PSMSingleLine
	s.CharWhitelist = "0123456789:"

	if err := NewRecognizer(backend).Configure(&s); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if backend.psm != PSMSingleLine {
		t.Errorf("psm = %d", backend.psm)
	}
	if backend.whitelist != "0123456789:" {
		t.Errorf("whitelist = %q", backend.whitelist)
	}
}
