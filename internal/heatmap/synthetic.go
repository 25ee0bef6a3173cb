package heatmap

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"math/rand"
	"os"

	_ "image/gif"
	_ "image/png"
)

type region struct {
	X, Y, W, H int
	Intensity  float64
	Band       string
}

// generateRegions synthesizes plausible suspicious regions from the fake
// score alone. Region count and intensity scale with the score; premium
// overlays get a denser grid.
func generateRegions(width, height int, fakeScore float64, premium bool, rng *rand.Rand) []region {
	count := 3 + int(fakeScore/20)
	if premium {
		count = 8 + int(fakeScore/10)
	}

	regions := make([]region, 0, count)
	for i := 0; i < count; i++ {
		var intensity float64
		var band string
		switch {
		case fakeScore > 70:
			intensity = 0.8 + rng.Float64()*0.2
			band = "high"
		case fakeScore > 40:
			intensity = 0.5 + rng.Float64()*0.3
			band = "medium"
		default:
			intensity = 0.2 + rng.Float64()*0.3
			band = "low"
		}
		w := 20 + rng.Intn(80)
		h := 20 + rng.Intn(80)
		regions = append(regions, region{
			X:         rng.Intn(max(width-w, 1)),
			Y:         rng.Intn(max(height-h, 1)),
			W:         w,
			H:         h,
			Intensity: intensity,
			Band:      band,
		})
	}
	return regions
}

// facialRegions marks eye/nose/mouth/jawline boxes around a simulated
// face center, mirroring what the face-analysis sub-feature highlights.
func facialRegions(width, height int, fakeScore float64, rng *rand.Rand) []region {
	cx := int(float64(width)*0.4 + rng.Float64()*float64(width)*0.2)
	cy := int(float64(height)*0.3 + rng.Float64()*float64(height)*0.2)

	features := []struct {
		dx, dy, size int
	}{
		{-30, -20, 25}, // left eye
		{30, -20, 25},  // right eye
		{0, 0, 20},     // nose
		{0, 30, 35},    // mouth
		{0, 50, 60},    // jawline
	}

	intensity := 0.3 + rng.Float64()*0.4
	if fakeScore > 50 {
		intensity = 0.7 + rng.Float64()*0.3
	}

	regions := make([]region, 0, len(features))
	for _, f := range features {
		regions = append(regions, region{
			X:         cx + f.dx - f.size/2,
			Y:         cy + f.dy - f.size/2,
			W:         f.size,
			H:         f.size,
			Intensity: intensity,
			Band:      "facial",
		})
	}
	return regions
}

var bandColors = map[string]color.NRGBA{
	"high":   {R: 255, G: 0, B: 0},
	"medium": {R: 255, G: 128, B: 0},
	"low":    {R: 255, G: 255, B: 0},
	"facial": {R: 160, G: 32, B: 240},
}

// renderOverlay composites translucent region boxes onto the source
// image and encodes the result as JPEG.
func renderOverlay(imagePath string, regions []region) ([]byte, int, int, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, src, bounds.Min, draw.Src)

	for _, r := range regions {
		c := bandColors[r.Band]
		c.A = uint8(r.Intensity * 160)
		box := image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H).Intersect(bounds)
		draw.Draw(canvas, box, image.NewUniform(c), image.Point{}, draw.Over)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: 90}); err != nil {
		return nil, 0, 0, fmt.Errorf("encode overlay: %w", err)
	}
	return buf.Bytes(), bounds.Dx(), bounds.Dy(), nil
}

// coverage is the percentage of image area the regions mark.
func coverage(regions []region, width, height int) float64 {
	total := float64(width * height)
	if total == 0 {
		return 0
	}
	covered := 0.0
	for _, r := range regions {
		covered += float64(r.W * r.H)
	}
	pct := covered / total * 100
	return float64(int(pct*100)) / 100
}
