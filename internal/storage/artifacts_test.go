package storage

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestArtifacts(t *testing.T) *Artifacts {
	t.Helper()
	a, err := NewArtifacts(filepath.Join(t.TempDir(), "config"), nil)
	if err != nil {
		t.Fatalf("NewArtifacts: %v", err)
	}
	return a
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestArtifactPaths(t *testing.T) {
	a := newTestArtifacts(t)

	testCases := []struct {
		got  string
		want string
	}{
		{a.UserPatternsPath("cam1"), "user-patterns-cam1.txt"},
		{a.UserPatternsConfigPath("cam1"), "user-patternscam1.config"},
		{a.MaskPath("cam1"), "cam1.png"},
	}
	for _, tc := range testCases {
		if filepath.Base(tc.got) != tc.want || filepath.Dir(tc.got) != a.Dir() {
			t.Errorf("path = %s, want %s in %s", tc.got, tc.want, a.Dir())
		}
	}
}

func TestWriteUserPatterns(t *testing.T) {
	a := newTestArtifacts(t)

	files, err := a.WriteUserPatterns("cam1", "\\d\\d:\\d\\d\n")
	if err != nil {
		t.Fatalf("WriteUserPatterns: %v", err)
	}
	if len(files) != 1 || files[0] != a.UserPatternsConfigPath("cam1") {
		t.Fatalf("files = %v", files)
	}

	patterns, err := os.ReadFile(a.UserPatternsPath("cam1"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(patterns) != "\\d\\d:\\d\\d\n" {
		t.Errorf("patterns = %q", patterns)
	}

	config, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if want := "user_patterns_file " + a.UserPatternsPath("cam1") + "\n"; string(config) != want {
		t.Errorf("config = %q, want %q", config, want)
	}
}

func TestWriteBlankUserPatternsRemovesFiles(t *testing.T) {
	a := newTestArtifacts(t)
	if _, err := a.WriteUserPatterns("cam1", "\\d"); err != nil {
		t.Fatalf("WriteUserPatterns: %v", err)
	}

	files, err := a.WriteUserPatterns("cam1", "  \n")
	if err != nil {
		t.Fatalf("WriteUserPatterns: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("files = %v, want none", files)
	}
	if exists(a.UserPatternsPath("cam1")) || exists(a.UserPatternsConfigPath("cam1")) {
		t.Error("stale pattern files left behind")
	}
}

func TestCleanupIsIdempotent(t *testing.T) {
	a := newTestArtifacts(t)
	if _, err := a.WriteUserPatterns("cam1", "\\d"); err != nil {
		t.Fatalf("WriteUserPatterns: %v", err)
	}
	if err := os.WriteFile(a.MaskPath("cam1"), []byte("png"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	other := a.MaskPath("cam2")
	if err := os.WriteFile(other, []byte("png"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	a.Cleanup("cam1")
	a.Cleanup("cam1")

	for _, p := range []string{a.UserPatternsPath("cam1"), a.UserPatternsConfigPath("cam1"), a.MaskPath("cam1")} {
		if exists(p) {
			t.Errorf("%s still exists", p)
		}
	}
	if !exists(other) {
		t.Error("cleanup removed another instance's artifact")
	}
}

func testMask() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 20, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 20; x++ {
			img.SetRGBA(x, y, color.RGBA{A: 255})
		}
	}
	img.SetRGBA(3, 4, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	return img
}

func TestWriteMask(t *testing.T) {
	a := newTestArtifacts(t)

	if err := a.WriteMask("cam1", testMask()); err != nil {
		t.Fatalf("WriteMask: %v", err)
	}
	info, err := os.Stat(a.MaskPath("cam1"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() == 0 {
		t.Error("mask file is empty")
	}

	if err := a.WriteMask("cam1", image.NewRGBA(image.Rectangle{})); err == nil {
		t.Error("expected error for empty image")
	}
}

func TestMaskWriterPersistsLatestImage(t *testing.T) {
	a := newTestArtifacts(t)
	w := NewMaskWriter(a, "cam1", nil)
	w.Start()
	defer w.Stop()

	w.SetImage(testMask())

	deadline := time.Now().Add(2 * time.Second)
	for !exists(a.MaskPath("cam1")) {
		if time.Now().After(deadline) {
			t.Fatal("mask not written")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMaskWriterSetImageNeverBlocks(t *testing.T) {
	a := newTestArtifacts(t)
	w := NewMaskWriter(a, "cam1", nil) // not started

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			w.SetImage(testMask())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SetImage blocked without a running writer")
	}
	if len(w.pending) != 1 {
		t.Errorf("pending = %d, want 1", len(w.pending))
	}
}
