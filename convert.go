package main

import (
	"fmt"
	"image"
	"image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"webpconv/logger"

	"github.com/djherbis/times"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"github.com/sizeofint/webpanimation"
	"golang.org/x/image/draw"
)

const (
	// StillQuality is the lossy quality used for jpg/jpeg/png sources.
	StillQuality = 85

	// AnimationQuality is the per-frame quality of animated output.
	AnimationQuality = 80

	// AnimationFPS re-times every GIF frame uniformly; source delays are dropped.
	AnimationFPS = 10

	// AnimationLoopCount of zero loops forever.
	AnimationLoopCount = 0
)

// WebPConverter re-encodes still images and animated GIFs as WebP.
type WebPConverter struct {
	Quality          float32
	AnimationQuality float32
	FPS              int
	LoopCount        int
	Console          *logger.Console

	stillOptions *encoder.Options
}

func NewWebPConverter(console *logger.Console) (*WebPConverter, error) {
	opts, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, StillQuality)
	if err != nil {
		return nil, fmt.Errorf("error building encoder options: %w", err)
	}

	return &WebPConverter{
		Quality:          StillQuality,
		AnimationQuality: AnimationQuality,
		FPS:              AnimationFPS,
		LoopCount:        AnimationLoopCount,
		Console:          console,
		stillOptions:     opts,
	}, nil
}

// Convert dispatches on the source extension: .gif goes through the
// animation path, everything else through the still path.
func (c *WebPConverter) Convert(src, dst string) error {
	if strings.EqualFold(filepath.Ext(src), ".gif") {
		return c.ConvertGIF(src, dst)
	}
	return c.ConvertImage(src, dst)
}

func (c *WebPConverter) ConvertImage(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("error opening file: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("error decoding image: %w", err)
	}

	// The libwebp binding only imports RGBA/NRGBA pixel layouts.
	rgba := image.NewNRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)

	err = writeAtomic(dst, func(w io.Writer) error {
		if err := webp.Encode(w, rgba, c.stillOptions); err != nil {
			return fmt.Errorf("error encoding to WebP: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.Console.Success("Image converted: %s -> %s", src, dst)
	c.copyMetadata(src, dst)
	return nil
}

func (c *WebPConverter) ConvertGIF(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("error opening file: %w", err)
	}
	defer f.Close()

	g, err := gif.DecodeAll(f)
	if err != nil {
		return fmt.Errorf("error decoding GIF: %w", err)
	}
	if len(g.Image) == 0 {
		return fmt.Errorf("error decoding GIF: no frames")
	}

	frames := compositeFrames(g)
	bounds := frames[0].Bounds()

	err = writeAtomic(dst, func(w io.Writer) error {
		return c.encodeAnimation(w, frames, bounds.Dx(), bounds.Dy())
	})
	if err != nil {
		return err
	}

	c.Console.Success("Animated GIF converted: %s -> %s", src, dst)
	c.copyMetadata(src, dst)
	return nil
}

func (c *WebPConverter) frameDuration() int {
	if c.FPS <= 0 {
		return 1000 / AnimationFPS
	}
	return 1000 / c.FPS
}

func (c *WebPConverter) encodeAnimation(w io.Writer, frames []*image.RGBA, width, height int) error {
	anim := webpanimation.NewWebpAnimation(width, height, c.LoopCount)
	defer anim.ReleaseMemory()

	cfg := webpanimation.NewWebpConfig()
	cfg.SetLossless(0)
	cfg.SetQuality(c.AnimationQuality)

	timestamp := 0
	for i, frame := range frames {
		if err := anim.AddFrame(frame, timestamp, cfg); err != nil {
			return fmt.Errorf("error adding frame %d: %w", i, err)
		}
		timestamp += c.frameDuration()
	}
	// A trailing nil frame fixes the duration of the last real one.
	if err := anim.AddFrame(nil, timestamp, cfg); err != nil {
		return fmt.Errorf("error closing animation: %w", err)
	}

	if err := anim.Encode(w); err != nil {
		return fmt.Errorf("error encoding animated WebP: %w", err)
	}
	return nil
}

// compositeFrames renders each GIF frame onto the full logical screen,
// applying the disposal method of the previous frame.
func compositeFrames(g *gif.GIF) []*image.RGBA {
	screen := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if screen.Empty() {
		for _, frame := range g.Image {
			screen = screen.Union(frame.Bounds())
		}
	}

	canvas := image.NewRGBA(screen)
	frames := make([]*image.RGBA, 0, len(g.Image))

	for i, frame := range g.Image {
		var disposal byte
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}

		var previous *image.RGBA
		if disposal == gif.DisposalPrevious {
			previous = cloneRGBA(canvas)
		}

		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
		frames = append(frames, cloneRGBA(canvas))

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, frame.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = previous
		}
	}

	return frames
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}

// writeAtomic writes through a temporary file in dst's directory and renames
// it over dst only once write succeeded. No partial output survives a failure.
func writeAtomic(dst string, write func(w io.Writer) error) (err error) {
	tempFile, err := os.CreateTemp(filepath.Dir(dst), ".webpconv-*.tmp")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempPath := tempFile.Name()

	tempFileClosed := false
	defer func() {
		if !tempFileClosed {
			tempFile.Close()
		}
		if err != nil {
			os.Remove(tempPath)
		}
	}()

	if err = write(tempFile); err != nil {
		return err
	}

	tempFileClosed = true
	if err = tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err = os.Rename(tempPath, dst); err != nil {
		return fmt.Errorf("error renaming file: %w", err)
	}
	return nil
}

func (c *WebPConverter) copyMetadata(src, dst string) {
	if err := copyFileTimes(src, dst); err != nil {
		c.Console.Warn("Error copying metadata from %s to %s: %v", src, dst, err)
	}
}

// copyFileTimes gives dst the access and modification times of src.
func copyFileTimes(src, dst string) error {
	t, err := times.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to read timestamps: %w", err)
	}
	if err := os.Chtimes(dst, t.AccessTime(), t.ModTime()); err != nil {
		return fmt.Errorf("failed to apply timestamps: %w", err)
	}
	return nil
}
