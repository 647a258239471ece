package providers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"net/url"
	"strconv"
	"strings"
	"time"

	"contentfabric/internal/infra"
)

// Synthetic renders a deterministic placeholder image so the pipeline runs
// without provider credentials. The same request always yields the same key
// and bytes.
type Synthetic struct {
	delay  time.Duration
	logger infra.Logger
}

func NewSynthetic(delay time.Duration, logger infra.Logger) *Synthetic {
	return &Synthetic{delay: delay, logger: logger}
}

func (s *Synthetic) Name() string { return NameSynthetic }

func (s *Synthetic) Generate(ctx context.Context, req Request) (*Output, error) {
	if s.delay > 0 {
		t := time.NewTimer(s.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	seed := deterministicSeed(req.Provider, req.ModelID, req.PromptText, aspectRatio(req.Settings))
	width, height := aspectSize(aspectRatio(req.Settings))
	data, err := renderSyntheticImage(width, height, seed)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", req.ModelID).
		Str("seed", seed).
		Msg("providers: rendered synthetic image")
	return &Output{
		Data: data,
		MIME: "image/png",
		Key:  syntheticKey(req.ModelID, seed),
	}, nil
}

func syntheticKey(model, seed string) string {
	if model == "" {
		model = "default"
	}
	return fmt.Sprintf("synthetic/%s/%s.png", url.PathEscape(model), seed)
}

func deterministicSeed(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(hasher, "%v|", part)
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}

// aspectSize maps an aspect ratio to pixel dimensions with a 512px short side
// so placeholders stay small on disk.
func aspectSize(aspect string) (int, int) {
	parts := strings.Split(strings.TrimSpace(aspect), ":")
	if len(parts) == 2 {
		a, errA := strconv.Atoi(parts[0])
		b, errB := strconv.Atoi(parts[1])
		if errA == nil && errB == nil && a > 0 && b > 0 {
			if a >= b {
				return 512 * a / b, 512
			}
			return 512, 512 * b / a
		}
	}
	return 512, 512
}

func renderSyntheticImage(width, height int, seed string) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{colorFromSeed(seed, 0)}, image.Point{}, draw.Src)

	accent := &image.Uniform{colorFromSeed(seed, 1)}
	stripe := max(16, height/12)
	for y := 0; y < height; y += stripe * 2 {
		draw.Draw(img, image.Rect(0, y, width, min(height, y+stripe)), accent, image.Point{}, draw.Over)
	}

	diagonal := colorFromSeed(seed, 2)
	for x := 0; x < width; x += max(16, width/32) {
		for y := 0; y < height && x+y < width; y++ {
			img.Set(x+y, y, diagonal)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("providers: encode synthetic image: %w", err)
	}
	return buf.Bytes(), nil
}

func colorFromSeed(seed string, shift int) color.RGBA {
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	b, err := hex.DecodeString(segment)
	if err != nil || len(b) != 3 {
		return color.RGBA{A: 255}
	}
	return color.RGBA{R: b[0], G: b[1], B: b[2], A: 255}
}
