package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockResultDeterministic(t *testing.T) {
	a := mockResult("/tmp/uploads/holiday_photo.jpg")
	b := mockResult("/var/other/holiday_photo.jpg")

	// Same basename, same result, regardless of directory.
	assert.Equal(t, a.FakeScore, b.FakeScore)
	assert.Equal(t, *a.ConfidenceScore, *b.ConfidenceScore)
}

func TestMockResultNameHeuristics(t *testing.T) {
	fake := mockResult("obviously_fake_video.mp4")
	assert.GreaterOrEqual(t, fake.FakeScore, 60.0)
	assert.LessOrEqual(t, fake.FakeScore, 90.0)

	real := mockResult("authentic_family_portrait.jpg")
	assert.GreaterOrEqual(t, real.FakeScore, 10.0)
	assert.LessOrEqual(t, real.FakeScore, 40.0)

	deepfake := mockResult("DeepFake_sample.PNG")
	assert.GreaterOrEqual(t, deepfake.FakeScore, 60.0)
}

func TestMockResultShape(t *testing.T) {
	r := mockResult("whatever.jpg")

	assert.GreaterOrEqual(t, r.FakeScore, 0.0)
	assert.LessOrEqual(t, r.FakeScore, 100.0)
	require.NotNil(t, r.ConfidenceScore)
	assert.GreaterOrEqual(t, *r.ConfidenceScore, 75.0)
	assert.LessOrEqual(t, *r.ConfidenceScore, 95.0)
	assert.Equal(t, ModelMock, r.ModelType)
	assert.Greater(t, r.ProcessingTime, 0.0)
	assert.Equal(t, true, r.DebugInfo["mock_data"])
}
