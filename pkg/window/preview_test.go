package window

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"testing/fstest"

	"golang.org/x/image/bmp"

	"github.com/zurustar/dtxview/pkg/fileutil"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{0xFF, 0x00, 0x00, 0xFF})
	return img
}

func TestLoadPreview(t *testing.T) {
	var pngData, bmpData bytes.Buffer
	if err := png.Encode(&pngData, testImage()); err != nil {
		t.Fatal(err)
	}
	if err := bmp.Encode(&bmpData, testImage()); err != nil {
		t.Fatal(err)
	}
	fsys := fileutil.NewPackFS(fstest.MapFS{
		"song/jacket.png": &fstest.MapFile{Data: pngData.Bytes()},
		"song/pre.bmp":    &fstest.MapFile{Data: bmpData.Bytes()},
		"song/broken.png": &fstest.MapFile{Data: []byte("not an image")},
	}, "song")

	tests := []struct {
		name    string
		file    string
		wantErr bool
	}{
		{"png", "jacket.png", false},
		{"bmp", "pre.bmp", false},
		{"case insensitive", "PRE.BMP", false},
		{"missing", "none.png", true},
		{"not an image", "broken.png", true},
		{"empty name", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := LoadPreview(fsys, tt.file)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadPreview failed: %v", err)
			}
			if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
				t.Errorf("expected 4x3, got %v", b)
			}
			r, _, _, _ := img.At(1, 1).RGBA()
			if r>>8 != 0xFF {
				t.Errorf("expected red pixel, got %v", img.At(1, 1))
			}
		})
	}
}
