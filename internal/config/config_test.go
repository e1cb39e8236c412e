package config

import (
	"strings"
	"testing"

	"github.com/adverant/nexus/streamocr-worker/internal/processor"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("INSTANCE_ID", "")
	t.Setenv("CONFIG_DIR", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.InstanceID == "" {
		t.Error("instance id not generated")
	}
	if cfg.ConfigDir != "/tmp/streamocr" || cfg.HTTPAddr != ":8097" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.QueueEnabled {
		t.Error("queue enabled by default")
	}

	want := processor.DefaultSettings()
	if cfg.Pipeline != want {
		t.Errorf("pipeline = %+v\nwant %+v", cfg.Pipeline, want)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	env := map[string]string{
		"INSTANCE_ID":             "scoreboard",
		"OCR_LANGUAGE":            "eng+deu",
		"OCR_PAGE_SEG_MODE":       "7",
		"OCR_CONF_THRESHOLD":      "70",
		"BINARIZATION_MODE":       "adaptive_gaussian",
		"BINARIZATION_BLOCK_SIZE": "8",
		"RESCALE_ENABLED":         "true",
		"SMOOTHING_ENABLED":       "1",
		"SMOOTHING_WORD_LENGTH":   "4",
		"IMAGE_SINK_ENABLED":      "true",
		"IMAGE_SINK_MODE":         "text_background",
		"OUTPUT_FORMAT_TEMPLATE":  "Score {{.Output}}",
		"UPDATE_TIMER_MS":         "250",
		"REDIS_URL":               "redis://localhost:6379/0",
		"QUEUE_ENABLED":           "true",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	p := cfg.Pipeline
	if cfg.InstanceID != "scoreboard" || !cfg.QueueEnabled {
		t.Errorf("cfg = %+v", cfg)
	}
	if p.Language != "eng+deu" || p.PageSegMode != processor.PSMSingleLine || p.ConfThreshold != 70 {
		t.Errorf("recognition settings = %+v", p)
	}
	if p.Binarization != processor.BinarizationAdaptiveGaussian || p.BinarizationBlockSize != 9 {
		t.Errorf("binarization = %s/%d", p.Binarization, p.BinarizationBlockSize)
	}
	if !p.RescaleEnabled || !p.SmoothingEnabled || p.SmoothingWordLength != 4 {
		t.Errorf("flags = %+v", p)
	}
	if !p.ImageSinkEnabled || p.ImageMode != processor.ImageModeTextBackground {
		t.Errorf("image sink = %v/%s", p.ImageSinkEnabled, p.ImageMode)
	}
	if p.OutputTemplate != "Score {{.Output}}" || p.UpdateTimerMs != 250 {
		t.Errorf("output = %q period = %d", p.OutputTemplate, p.UpdateTimerMs)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	testCases := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"unknown binarization", "BINARIZATION_MODE", "sauvola", "BINARIZATION_MODE"},
		{"unknown image mode", "IMAGE_SINK_MODE", "heatmap", "IMAGE_SINK_MODE"},
		{"page seg mode range", "OCR_PAGE_SEG_MODE", "14", "OCR_PAGE_SEG_MODE"},
		{"broken template", "OUTPUT_FORMAT_TEMPLATE", "{{.Output", "OUTPUT_FORMAT_TEMPLATE"},
		{"queue without redis", "QUEUE_ENABLED", "true", "REDIS_URL"},
		{"instance id path", "INSTANCE_ID", "../etc", "INSTANCE_ID"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("REDIS_URL", "")
			t.Setenv(tc.key, tc.val)

			_, err := LoadConfig()
			if err == nil {
				t.Fatalf("expected error for %s=%s", tc.key, tc.val)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %s", err, tc.want)
			}
		})
	}
}

func TestLoadConfigCorrectsRecoverableValues(t *testing.T) {
	t.Setenv("OCR_CONF_THRESHOLD", "150")
	t.Setenv("UPDATE_ON_CHANGE_THRESHOLD", "-5")
	t.Setenv("SMOOTHING_WINDOW_SIZE", "0")
	t.Setenv("DILATION_ITERATIONS", "not-a-number")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	p := cfg.Pipeline
	if p.ConfThreshold != 100 || p.UpdateOnChangeThreshold != 0 || p.SmoothingWindowSize != 1 {
		t.Errorf("pipeline = %+v", p)
	}
	if p.DilationIterations != processor.DefaultSettings().DilationIterations {
		t.Errorf("unparsable value not defaulted: %d", p.DilationIterations)
	}
}
