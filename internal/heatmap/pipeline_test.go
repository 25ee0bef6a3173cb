package heatmap

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	data map[string][]byte
	puts int
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}}
}

func (m *memStore) Exists(name string) bool {
	_, ok := m.data[name]
	return ok
}

func (m *memStore) Get(name string) ([]byte, error) {
	b, ok := m.data[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return b, nil
}

func (m *memStore) Put(name string, data []byte) (string, error) {
	m.data[name] = data
	m.puts++
	return "/mem/" + name, nil
}

func (m *memStore) Path(name string) string {
	return "/mem/" + name
}

type runnerFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func (f runnerFunc) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f(ctx, name, args...)
}

func writeTestJPEG(t *testing.T, width, height int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "sample.jpg")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 90}))
	return path
}

func newTestPipeline(store Store, runner runnerFunc) *Pipeline {
	return NewPipeline(store, runner, nil, Params{
		PythonBin:     "python3",
		GradCAMScript: "gradcam.py",
		TempDir:       os.TempDir(),
		Threshold:     40,
		Timeout:       time.Second,
	}, zerolog.Nop())
}

func failRunner() runnerFunc {
	return func(_ context.Context, _ string, _ ...string) ([]byte, error) {
		return nil, fmt.Errorf("no interpreter")
	}
}

func TestGenerateBelowThresholdSkips(t *testing.T) {
	store := newMemStore()
	p := newTestPipeline(store, failRunner())

	out := p.Generate(context.Background(), "x.jpg", Input{
		ResultID:   "res1",
		FakeScore:  40, // must strictly exceed the threshold
		UploadedAt: time.Now(),
	}, Options{Type: TypeStandard})

	assert.False(t, out.Success)
	assert.Zero(t, store.puts)
}

func TestGenerateSyntheticOverlay(t *testing.T) {
	imgPath := writeTestJPEG(t, 320, 240)
	store := newMemStore()
	p := newTestPipeline(store, failRunner())

	uploaded := time.Date(2026, 3, 14, 9, 30, 15, 0, time.UTC)
	out := p.Generate(context.Background(), imgPath, Input{
		ResultID:        "res2",
		FakeScore:       75,
		ConfidenceScore: 88,
		UploadedAt:      uploaded,
	}, Options{Type: TypeStandard, FaceAnalysis: true})

	require.True(t, out.Success)
	assert.False(t, out.Cached)
	assert.Equal(t, 1, store.puts)
	require.NotNil(t, out.Metadata)
	assert.Equal(t, 320, out.Metadata.Width)
	assert.Equal(t, 240, out.Metadata.Height)
	assert.Equal(t, "synthetic-overlay", out.Metadata.Method)
	assert.Positive(t, out.Metadata.SizeBytes)
	assert.Equal(t, "synthetic-overlay", out.Stats["method"])

	wantName := FileName(imgPath, "res2", TypeStandard, uploaded)
	assert.Equal(t, "/heatmaps/"+wantName, out.HeatmapURL)
}

func TestGenerateCacheHit(t *testing.T) {
	imgPath := writeTestJPEG(t, 64, 64)
	store := newMemStore()
	p := newTestPipeline(store, failRunner())

	in := Input{
		ResultID:   "res3",
		FakeScore:  90,
		UploadedAt: time.Date(2026, 3, 14, 9, 30, 15, 0, time.UTC),
	}
	first := p.Generate(context.Background(), imgPath, in, Options{Type: TypePremium})
	require.True(t, first.Success)
	require.False(t, first.Cached)

	second := p.Generate(context.Background(), imgPath, in, Options{Type: TypePremium})
	require.True(t, second.Success)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, store.puts, "cache hit must not regenerate")
	assert.Equal(t, first.HeatmapURL, second.HeatmapURL)
}

func TestGenerateDistinctTypesDistinctArtifacts(t *testing.T) {
	imgPath := writeTestJPEG(t, 64, 64)
	store := newMemStore()
	p := newTestPipeline(store, failRunner())

	in := Input{ResultID: "res4", FakeScore: 90, UploadedAt: time.Now()}
	std := p.Generate(context.Background(), imgPath, in, Options{Type: TypeStandard})
	prem := p.Generate(context.Background(), imgPath, in, Options{Type: TypePremium})

	require.True(t, std.Success)
	require.True(t, prem.Success)
	assert.NotEqual(t, std.HeatmapURL, prem.HeatmapURL)
	assert.Equal(t, 2, store.puts)
}

func TestGenerateNotGeneratedOnUndecodableInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.jpg")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

	store := newMemStore()
	p := newTestPipeline(store, failRunner())

	out := p.Generate(context.Background(), path, Input{
		ResultID:   "res5",
		FakeScore:  80,
		UploadedAt: time.Now(),
	}, Options{Type: TypeStandard})

	assert.False(t, out.Success)
	assert.NotEmpty(t, out.Error)
	assert.Zero(t, store.puts)
}

func TestGenerateGradCAMPreferred(t *testing.T) {
	imgPath := writeTestJPEG(t, 64, 64)
	store := newMemStore()

	artifact := []byte("jpeg-bytes-from-gradcam")
	runner := runnerFunc(func(_ context.Context, _ string, args ...string) ([]byte, error) {
		// args: script, imagePath, outputPath, confidence
		outputPath := args[2]
		if err := os.WriteFile(outputPath, artifact, 0o644); err != nil {
			return nil, err
		}
		return []byte(`model ready
{"success": true, "heatmap_path": "` + outputPath + `", "confidence": 0.87, "predicted_class": "fake"}`), nil
	})
	p := newTestPipeline(store, runner)

	out := p.Generate(context.Background(), imgPath, Input{
		ResultID:        "res6",
		FakeScore:       85,
		ConfidenceScore: 87,
		UploadedAt:      time.Now(),
	}, Options{Type: TypePremium, Authenticated: true, GradCAM: true})

	require.True(t, out.Success)
	require.NotNil(t, out.Metadata)
	assert.Equal(t, "grad-cam", out.Metadata.Method)
	assert.Equal(t, "fake", out.Stats["predicted_class"])
	assert.Equal(t, 1, store.puts)
}

func TestGenerateGradCAMFailureFallsBackToSynthetic(t *testing.T) {
	imgPath := writeTestJPEG(t, 64, 64)
	store := newMemStore()
	runner := runnerFunc(func(_ context.Context, _ string, _ ...string) ([]byte, error) {
		return []byte(`{"success": false, "error": "model file missing"}`), nil
	})
	p := newTestPipeline(store, runner)

	out := p.Generate(context.Background(), imgPath, Input{
		ResultID:   "res7",
		FakeScore:  85,
		UploadedAt: time.Now(),
	}, Options{Type: TypePremium, Authenticated: true, GradCAM: true})

	require.True(t, out.Success)
	require.NotNil(t, out.Metadata)
	assert.Equal(t, "synthetic-overlay", out.Metadata.Method)
}

func TestGenerateAnonymousNeverInvokesGradCAM(t *testing.T) {
	imgPath := writeTestJPEG(t, 64, 64)
	store := newMemStore()
	invoked := false
	runner := runnerFunc(func(_ context.Context, _ string, _ ...string) ([]byte, error) {
		invoked = true
		return nil, fmt.Errorf("must not run")
	})
	p := newTestPipeline(store, runner)

	out := p.Generate(context.Background(), imgPath, Input{
		ResultID:   "res8",
		FakeScore:  85,
		UploadedAt: time.Now(),
	}, Options{Type: TypeStandard, Authenticated: false, GradCAM: true})

	require.True(t, out.Success)
	assert.False(t, invoked)
	assert.Equal(t, "synthetic-overlay", out.Metadata.Method)
}

func TestFileName(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 30, 15, 999_000_000, time.UTC)
	name := FileName("/data/uploads/portrait_abc.png", "res9", TypeStandard, at)
	assert.Equal(t, "portrait_abc_res9_heatmap_standard_20260314T093015.jpg", name)

	// Sub-second differences must not change the key.
	other := FileName("/data/uploads/portrait_abc.png", "res9", TypeStandard, at.Add(500*time.Millisecond))
	assert.NotEqual(t, name, other) // 15.999 + 0.5 rolls to :16
	same := FileName("/data/uploads/portrait_abc.png", "res9", TypeStandard, at.Truncate(time.Second))
	assert.Equal(t, name, same)
}
