package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

// encodeTestImage renders a simple two-tone image as PNG bytes.
func encodeTestImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{A: 255}
			if (x+y)%2 == 0 {
				c.R, c.G, c.B = 200, 180, 160
			} else {
				c.R, c.G, c.B = 30, 40, 50
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return buf.Bytes()
}

func TestPatchExtractor_Dimensions(t *testing.T) {
	e := NewPatchExtractor(32)
	data := encodeTestImage(t, 100, 80)

	got, err := e.Extract(data, image.Rect(10, 10, 70, 70))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Full) != 32*32 {
		t.Errorf("expected %d elements, got %d", 32*32, len(got.Full))
	}
	for i, v := range got.Full {
		if v < 0 || v > 255 {
			t.Fatalf("element %d out of grayscale range: %f", i, v)
		}
	}
	if len(got.Probe) == 0 || len(got.Probe) > len(got.Full) {
		t.Errorf("unexpected probe length %d", len(got.Probe))
	}
}

func TestPatchExtractor_Deterministic(t *testing.T) {
	e := NewPatchExtractor(16)
	data := encodeTestImage(t, 64, 64)
	box := image.Rect(0, 0, 64, 64)

	a, err := e.Extract(data, box)
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Extract(data, box)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a.Full {
		if a.Full[i] != b.Full[i] {
			t.Fatalf("extraction not deterministic at element %d", i)
		}
	}
}

func TestPatchExtractor_BoxOutsideImage(t *testing.T) {
	e := NewPatchExtractor(16)
	data := encodeTestImage(t, 40, 40)

	if _, err := e.Extract(data, image.Rect(100, 100, 200, 200)); err == nil {
		t.Error("expected error for box outside image bounds")
	}
}

func TestPatchExtractor_BadImageData(t *testing.T) {
	e := NewPatchExtractor(16)

	if _, err := e.Extract([]byte("not an image"), image.Rect(0, 0, 10, 10)); err == nil {
		t.Error("expected decode error")
	}
}

func detectorStub(t *testing.T, faces []map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"faces": faces})
	}))
}

func TestDetectorClient_SingleFace(t *testing.T) {
	srv := detectorStub(t, []map[string]any{
		{"box": []int{10, 20, 110, 140}, "score": 0.98},
	})
	defer srv.Close()

	box, err := NewDetectorClient(srv.URL).Locate(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := image.Rect(10, 20, 110, 140)
	if box != want {
		t.Errorf("expected %v, got %v", want, box)
	}
}

func TestDetectorClient_NoFace(t *testing.T) {
	srv := detectorStub(t, nil)
	defer srv.Close()

	_, err := NewDetectorClient(srv.URL).Locate(context.Background(), []byte("img"))
	if !errors.Is(err, ErrNoFace) {
		t.Errorf("expected ErrNoFace, got %v", err)
	}
}

func TestDetectorClient_MultipleFaces(t *testing.T) {
	srv := detectorStub(t, []map[string]any{
		{"box": []int{0, 0, 10, 10}, "score": 0.9},
		{"box": []int{20, 20, 30, 30}, "score": 0.8},
	})
	defer srv.Close()

	_, err := NewDetectorClient(srv.URL).Locate(context.Background(), []byte("img"))
	if !errors.Is(err, ErrMultipleFaces) {
		t.Errorf("expected ErrMultipleFaces, got %v", err)
	}
}

func TestDetectorClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "cascade not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewDetectorClient(srv.URL).Locate(context.Background(), []byte("img"))
	if err == nil {
		t.Error("expected error for server failure")
	}
	if errors.Is(err, ErrNoFace) || errors.Is(err, ErrMultipleFaces) {
		t.Error("server failure must be distinct from detection anomalies")
	}
}

func TestFolderSource_EmitsImagesInOrder(t *testing.T) {
	dir := t.TempDir()
	img := encodeTestImage(t, 8, 8)
	for _, name := range []string{"b.png", "a.png", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), img, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	var refs []string
	for frame := range NewFolderSource(dir).Frames(context.Background()) {
		refs = append(refs, filepath.Base(frame.Ref))
	}

	if len(refs) != 2 {
		t.Fatalf("expected 2 frames, got %d: %v", len(refs), refs)
	}
	if refs[0] != "a.png" || refs[1] != "b.png" {
		t.Errorf("expected name order, got %v", refs)
	}
}

func TestFolderSource_CancelStopsStream(t *testing.T) {
	dir := t.TempDir()
	img := encodeTestImage(t, 8, 8)
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), img, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	frames := NewFolderSource(dir).Frames(ctx)

	<-frames
	cancel()

	count := 0
	for range frames {
		count++
	}
	if count > 1 {
		t.Errorf("expected stream to stop promptly after cancel, drained %d more", count)
	}
}
