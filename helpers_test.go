package main

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"webpconv/logger"

	"github.com/stretchr/testify/require"
)

func newTestConsole(t *testing.T) (*logger.Console, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	opts := logger.DefaultOptions()
	opts.Output = &buf
	opts.EnableColors = false
	opts.ShowTime = false
	opts.Level = slog.LevelDebug
	return logger.NewConsole(opts), &buf
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, gradient(w, h)))
}

func writeJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, gradient(w, h), &jpeg.Options{Quality: 90}))
}

// writeGIF writes an animated GIF whose frames are solid, distinct colours.
func writeGIF(t *testing.T, path string, frames int) {
	t.Helper()
	colors := []color.Color{
		color.RGBA{R: 255, A: 255},
		color.RGBA{G: 255, A: 255},
		color.RGBA{B: 255, A: 255},
		color.RGBA{R: 255, G: 255, A: 255},
	}

	g := &gif.GIF{LoopCount: 0}
	for i := 0; i < frames; i++ {
		img := image.NewPaletted(image.Rect(0, 0, 16, 16), palette.Plan9)
		c := uint8(img.Palette.Index(colors[i%len(colors)]))
		for p := range img.Pix {
			img.Pix[p] = c
		}
		g.Image = append(g.Image, img)
		g.Delay = append(g.Delay, 37)
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, gif.EncodeAll(f, g))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// fakeConverter records calls and writes a placeholder output.
type fakeConverter struct {
	calls []string
	fail  map[string]bool
}

func (f *fakeConverter) Convert(src, dst string) error {
	name := filepath.Base(src)
	f.calls = append(f.calls, name)
	if f.fail[name] {
		return errors.New("simulated failure")
	}
	return os.WriteFile(dst, []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), 0o644)
}

func newTestProcessor(t *testing.T, conv FileConverter, deleteOriginals bool) (*Processor, *bytes.Buffer) {
	t.Helper()
	console, buf := newTestConsole(t)
	cfg := &Config{Delete: deleteOriginals}
	return NewProcessor(cfg, conv, console), buf
}

func newRealProcessor(t *testing.T, deleteOriginals bool) (*Processor, *bytes.Buffer) {
	t.Helper()
	console, buf := newTestConsole(t)
	conv, err := NewWebPConverter(console)
	require.NoError(t, err)
	cfg := &Config{Delete: deleteOriginals}
	return NewProcessor(cfg, conv, console), buf
}
