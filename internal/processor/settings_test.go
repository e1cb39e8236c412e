package processor

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseBinarizationMode(t *testing.T) {
	testCases := []struct {
		input   string
		want    BinarizationMode
		wantErr bool
	}{
		{"none", BinarizationNone, false},
		{"fixed", BinarizationFixed, false},
		{"adaptive_mean", BinarizationAdaptiveMean, false},
		{"adaptive_gaussian", BinarizationAdaptiveGaussian, false},
		{"triangle", BinarizationTriangle, false},
		{"otsu", BinarizationOtsu, false},
		{"5", BinarizationOtsu, false},
		{"0", BinarizationNone, false},
		{"sauvola", 0, true},
		{"6", 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseBinarizationMode(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParseImageMode(t *testing.T) {
	for _, name := range []string{"mask", "text", "text_background"} {
		mode, err := ParseImageMode(name)
		if err != nil {
			t.Fatalf("ParseImageMode(%q): %v", name, err)
		}
		if mode.String() != name {
			t.Errorf("round trip of %q gave %q", name, mode.String())
		}
	}
	if _, err := ParseImageMode("heatmap"); err == nil {
		t.Error("expected error for unknown image mode")
	}
}

func TestNormalizeForcesOddBlockSize(t *testing.T) {
	testCases := []struct {
		in, want int
	}{
		{8, 9},
		{9, 9},
		{2, 3},
		{0, 3},
		{-4, 3},
		{31, 31},
	}

	for _, tc := range testCases {
		s := DefaultSettings()
		s.BinarizationBlockSize = tc.in
		if got := s.BlockSize(); got != tc.want {
			t.Errorf("BlockSize() with %d = %d, want %d", tc.in, got, tc.want)
		}
		s.Normalize()
		if s.BinarizationBlockSize != tc.want {
			t.Errorf("Normalize() with %d = %d, want %d", tc.in, s.BinarizationBlockSize, tc.want)
		}
	}
}

func TestNormalizeClampsRanges(t *testing.T) {
	s := Settings{
		ConfThreshold:           140,
		BinarizationThreshold:   -1,
		DilationIterations:      -2,
		UpdateOnChangeThreshold: 250,
		SmoothingWordLength:     0,
		SmoothingWindowSize:     -3,
		UpdateTimerMs:           -10,
		PageSegMode:             99,
	}
	s.Normalize()

	if s.ConfThreshold != 100 {
		t.Errorf("ConfThreshold = %d", s.ConfThreshold)
	}
	if s.BinarizationThreshold != 0 {
		t.Errorf("BinarizationThreshold = %d", s.BinarizationThreshold)
	}
	if s.DilationIterations != 0 {
		t.Errorf("DilationIterations = %d", s.DilationIterations)
	}
	if s.UpdateOnChangeThreshold != 100 {
		t.Errorf("UpdateOnChangeThreshold = %d", s.UpdateOnChangeThreshold)
	}
	if s.SmoothingWordLength != 1 || s.SmoothingWindowSize != 1 {
		t.Errorf("smoothing = %d/%d", s.SmoothingWordLength, s.SmoothingWindowSize)
	}
	if s.UpdateTimerMs != 0 {
		t.Errorf("UpdateTimerMs = %d", s.UpdateTimerMs)
	}
	if s.OutputTemplate != DefaultOutputTemplate {
		t.Errorf("OutputTemplate = %q", s.OutputTemplate)
	}
	if s.PageSegMode != PSMSingleBlock {
		t.Errorf("PageSegMode = %d", s.PageSegMode)
	}
}

func TestNormalizeResetsNegativePageSegMode(t *testing.T) {
	s := DefaultSettings()
	s.PageSegMode = -1
	s.Normalize()
	if s.PageSegMode != PSMSingleBlock {
		t.Errorf("PageSegMode = %d, want %d", s.PageSegMode, PSMSingleBlock)
	}
}

func TestPageSegModeUnmarshalJSON(t *testing.T) {
	testCases := []struct {
		name    string
		body    string
		want    PageSegMode
		wantErr bool
	}{
		{"single line", `{"pageSegMode":7}`, PSMSingleLine, false},
		{"raw line", `{"pageSegMode":13}`, PSMRawLine, false},
		{"null keeps current", `{"pageSegMode":null}`, PSMSingleBlock, false},
		{"too large", `{"pageSegMode":99}`, 0, true},
		{"negative", `{"pageSegMode":-1}`, 0, true},
		{"not a number", `{"pageSegMode":"seven"}`, 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := DefaultSettings()
			err := json.Unmarshal([]byte(tc.body), &s)
			if tc.wantErr {
				if err == nil {
					t.Errorf("expected error, got mode %d", s.PageSegMode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if s.PageSegMode != tc.want {
				t.Errorf("PageSegMode = %d, want %d", s.PageSegMode, tc.want)
			}
		})
	}
}

func TestRequiresHardReset(t *testing.T) {
	base := DefaultSettings()

	testCases := []struct {
		name   string
		modify func(s *Settings)
		want   bool
	}{
		{"unchanged", func(s *Settings) {}, false},
		{"model path", func(s *Settings) { s.ModelPath = "/models" }, true},
		{"language", func(s *Settings) { s.Language = "deu" }, true},
		{"user patterns", func(s *Settings) { s.UserPatterns = `\d\d` }, true},
		{"page seg mode", func(s *Settings) { s.PageSegMode = PSMSingleLine }, false},
		{"whitelist", func(s *Settings) { s.CharWhitelist = "0123456789" }, false},
		{"threshold", func(s *Settings) { s.ConfThreshold = 90 }, false},
		{"binarization", func(s *Settings) { s.Binarization = BinarizationOtsu }, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			next := base
			tc.modify(&next)
			if got := base.RequiresHardReset(next); got != tc.want {
				t.Errorf("RequiresHardReset = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRegionLevel(t *testing.T) {
	s := DefaultSettings()
	if s.RegionLevel() != LevelWord {
		t.Errorf("default level = %v, want word", s.RegionLevel())
	}
	s.PageSegMode = PSMSingleChar
	if s.RegionLevel() != LevelSymbol {
		t.Errorf("single char level = %v, want symbol", s.RegionLevel())
	}
}

func TestSettingsJSONUsesModeNames(t *testing.T) {
	s := DefaultSettings()
	s.Binarization = BinarizationAdaptiveGaussian
	s.ImageMode = ImageModeTextBackground

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, want := range []string{`"binarization":"adaptive_gaussian"`, `"imageMode":"text_background"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("encoded settings missing %s: %s", want, data)
		}
	}

	var decoded Settings
	if err := json.Unmarshal([]byte(`{"binarization":"otsu","imageMode":"text"}`), &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Binarization != BinarizationOtsu || decoded.ImageMode != ImageModeText {
		t.Errorf("decoded modes = %v/%v", decoded.Binarization, decoded.ImageMode)
	}
}
