package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepsight/api/internal/detect"
	"deepsight/api/internal/heatmap"
	"deepsight/api/internal/quota"
	"deepsight/api/internal/tier"
)

func sampleOutcome(t tier.Descriptor) *Outcome {
	conf := 91.5
	return &Outcome{
		ResultID: "res_1",
		FileName: "portrait.jpg",
		Tier:     t,
		Admission: quota.Admission{
			Allowed:      true,
			CurrentCount: 2,
			MaxAllowed:   5,
			Remaining:    3,
		},
		Result: detect.Result{
			FakeScore:       76.4,
			ConfidenceScore: &conf,
			IsDeepfake:      true,
			ModelType:       "advanced",
			ProcessingTime:  3.2,
			AnalysisDetails: detect.Details{
				Summary:     "Score 76.4/100: manipulation signals detected",
				Predictions: detect.Predictions{Real: 23.6, Fake: 76.4},
			},
			FaceAnalysis: &detect.FaceAnalysis{FacesDetected: 1, Confidence: 88},
			DebugInfo:    map[string]any{"model_version": "v3"},
		},
		Heatmap: heatmap.Output{
			Success:    true,
			HeatmapURL: "/heatmaps/portrait_res_1_heatmap_premium_20260314T093015.jpg",
			Type:       heatmap.TypePremium,
			Metadata:   &heatmap.Metadata{Method: "grad-cam"},
			Stats:      map[string]any{"method": "grad-cam"},
		},
	}
}

func TestShapeCoreFieldsAlwaysPresent(t *testing.T) {
	for _, name := range []tier.Name{tier.Free, tier.Premium} {
		body := Shape(sampleOutcome(tier.Get(name)))

		assert.Contains(t, body, "fakeScore", "tier %s", name)
		assert.Contains(t, body, "isDeepfake", "tier %s", name)
		assert.Contains(t, body, "processingTime", "tier %s", name)
		assert.Contains(t, body, "modelType", "tier %s", name)
		assert.Equal(t, 76.4, body["fakeScore"])
		assert.Equal(t, true, body["isDeepfake"])
	}
}

func TestShapeComprehensive(t *testing.T) {
	body := Shape(sampleOutcome(tier.Get(tier.Premium)))

	assert.Contains(t, body, "analysisDetails")
	assert.Contains(t, body, "faceAnalysis")
	assert.Contains(t, body, "debugInfo")
	assert.Equal(t, 91.5, body["confidenceScore"])
	assert.NotContains(t, body, "upgrade")

	hm, ok := body["heatmap"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, hm["generated"])
	assert.Contains(t, hm, "metadata")
	assert.Contains(t, hm, "stats")
}

func TestShapeBasicWithholdsInternals(t *testing.T) {
	body := Shape(sampleOutcome(tier.Get(tier.Free)))

	assert.NotContains(t, body, "analysisDetails")
	assert.NotContains(t, body, "faceAnalysis")
	assert.NotContains(t, body, "debugInfo")
	assert.NotContains(t, body, "confidenceScore")
	assert.Contains(t, body, "summary")

	hm, ok := body["heatmap"].(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, hm, "metadata")
	assert.NotContains(t, hm, "stats")

	up, ok := body["upgrade"].(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, up["message"])
	assert.Contains(t, up["withheldFeatures"], tier.FeatureVideoProcessing)

	limits, ok := up["premiumLimits"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, tier.Unlimited, limits["maxAnalysesPerDay"])
}

func TestShapeBasicHeatmapFailure(t *testing.T) {
	o := sampleOutcome(tier.Get(tier.Free))
	o.Heatmap = heatmap.Output{Success: false, Type: heatmap.TypeStandard, Error: "score below visibility threshold"}

	body := Shape(o)
	hm, ok := body["heatmap"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, hm["generated"])
	assert.NotContains(t, hm, "url")
}

func TestShapeReportID(t *testing.T) {
	o := sampleOutcome(tier.Get(tier.Premium))
	body := Shape(o)
	assert.NotContains(t, body, "reportId")

	id := "rep_9"
	o.ReportID = &id
	body = Shape(o)
	assert.Equal(t, "rep_9", body["reportId"])
}
