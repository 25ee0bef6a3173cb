package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepsight/api/internal/config"
	"deepsight/api/internal/detect"
	"deepsight/api/internal/heatmap"
	"deepsight/api/internal/models"
	"deepsight/api/internal/quota"
	"deepsight/api/internal/tier"
)

type uploadFile struct {
	*bytes.Reader
}

func (uploadFile) Close() error { return nil }

func newUpload(name string, data []byte) (multipart.File, *multipart.FileHeader) {
	return uploadFile{bytes.NewReader(data)}, &multipart.FileHeader{
		Filename: name,
		Size:     int64(len(data)),
	}
}

// stubCounters is the anonymous quota side; it ignores the date key so
// tests control the count directly.
type stubCounters struct {
	count      int
	increments int
	events     *[]string
}

func (s *stubCounters) GetDailyCount(_ context.Context, _, _ string) (int, error) {
	return s.count, nil
}

func (s *stubCounters) IncrementDailyCount(_ context.Context, _, _ string) error {
	s.increments++
	if s.events != nil {
		*s.events = append(*s.events, "consume")
	}
	return nil
}

type stubReportCounter struct {
	count int
}

func (s *stubReportCounter) CountByUserOnDate(_ context.Context, _, _ string) (int, error) {
	return s.count, nil
}

type fakeReportStore struct {
	created []models.Report
	id      string
	err     error
	events  *[]string
}

func (f *fakeReportStore) Create(_ context.Context, report models.Report) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.created = append(f.created, report)
	if f.events != nil {
		*f.events = append(*f.events, "persist")
	}
	return f.id, nil
}

type fakeDetector struct {
	result detect.Result
	calls  int
	events *[]string
}

func (f *fakeDetector) Run(_ context.Context, _ string, _ tier.Descriptor) detect.Result {
	f.calls++
	if f.events != nil {
		*f.events = append(*f.events, "detect")
	}
	return f.result
}

type fakeHeatmapper struct {
	out    heatmap.Output
	calls  int
	lastIn heatmap.Input
	opts   heatmap.Options
	events *[]string
}

func (f *fakeHeatmapper) Generate(_ context.Context, _ string, in heatmap.Input, opts heatmap.Options) heatmap.Output {
	f.calls++
	f.lastIn = in
	f.opts = opts
	if f.events != nil {
		*f.events = append(*f.events, "heatmap")
	}
	return f.out
}

type analysisFixture struct {
	svc      *AnalysisService
	counters *stubCounters
	reports  *fakeReportStore
	detector *fakeDetector
	heatmaps *fakeHeatmapper
	events   []string
}

func newAnalysisFixture(t *testing.T) *analysisFixture {
	t.Helper()
	f := &analysisFixture{}

	f.counters = &stubCounters{events: &f.events}
	f.reports = &fakeReportStore{id: "rep_1", events: &f.events}
	conf := 90.0
	f.detector = &fakeDetector{
		result: detect.Result{
			FakeScore:       82.5,
			ConfidenceScore: &conf,
			IsDeepfake:      true,
			ModelType:       detect.ModelAdvanced,
			ProcessingTime:  1.5,
		},
		events: &f.events,
	}
	f.heatmaps = &fakeHeatmapper{
		out:    heatmap.Output{Success: true, HeatmapPath: "/mem/h.jpg", HeatmapURL: "/heatmaps/h.jpg"},
		events: &f.events,
	}

	cfg := &config.AppConfig{
		Paths: config.PathsConfig{UploadsDir: t.TempDir()},
		Redis: config.RedisConfig{Stream: "deepsight:tasks"},
	}
	ledger := quota.NewLedger(f.counters, &stubReportCounter{}, zerolog.Nop())
	f.svc = NewAnalysisService(f.reports, ledger, f.detector, f.heatmaps, nil, nil, cfg, zerolog.Nop())
	return f
}

func TestAnalyzeQuotaRejectionAttemptsNothing(t *testing.T) {
	f := newAnalysisFixture(t)
	f.counters.count = tier.Get(tier.Free).MaxAnalysesPerDay

	file, header := newUpload("photo.jpg", []byte("img"))
	_, err := f.svc.Analyze(context.Background(), AnalyzeInput{
		ClientIP: "198.51.100.7",
		File:     file,
		Header:   header,
	})

	var quotaErr *QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
	assert.False(t, quotaErr.Admission.Allowed)

	assert.Zero(t, f.detector.calls, "rejected request must not reach detection")
	assert.Zero(t, f.heatmaps.calls)
	assert.Zero(t, f.counters.increments, "rejected request must not consume quota")
	assert.Empty(t, f.reports.created)
}

func TestAnalyzeValidationRejectionAttemptsNothing(t *testing.T) {
	f := newAnalysisFixture(t)

	file, header := newUpload("clip.mp4", []byte("vid"))
	_, err := f.svc.Analyze(context.Background(), AnalyzeInput{
		ClientIP: "198.51.100.7",
		File:     file,
		Header:   header,
	})

	var validationErr *ValidationFailedError
	require.ErrorAs(t, err, &validationErr)
	assert.NotEmpty(t, validationErr.Validation.Errors)

	assert.Zero(t, f.detector.calls)
	assert.Zero(t, f.counters.increments)
	assert.Empty(t, f.reports.created)
}

func TestAnalyzeAnonymousOrderAndNoPersistence(t *testing.T) {
	f := newAnalysisFixture(t)

	file, header := newUpload("photo.jpg", []byte("img"))
	outcome, err := f.svc.Analyze(context.Background(), AnalyzeInput{
		ClientIP: "198.51.100.7",
		File:     file,
		Header:   header,
	})
	require.NoError(t, err)

	// Admission passed, then detection, then the heatmap; consumption is
	// recorded only after a result exists. Anonymous runs never persist.
	assert.Equal(t, []string{"detect", "heatmap", "consume"}, f.events)
	assert.Equal(t, 1, f.counters.increments)
	assert.Empty(t, f.reports.created)
	assert.Nil(t, outcome.ReportID)

	assert.Equal(t, tier.Free, outcome.Tier.Name)
	assert.Equal(t, 82.5, outcome.Result.FakeScore)
	assert.True(t, outcome.Heatmap.Success)
	assert.False(t, f.heatmaps.opts.Authenticated)
}

func TestAnalyzeAuthenticatedPersistsAndRecordsAfterResult(t *testing.T) {
	f := newAnalysisFixture(t)
	user := &models.User{ID: "usr_1", Role: models.UserRoleUser, Status: models.UserStatusActive}

	file, header := newUpload("portrait.png", []byte("img"))
	outcome, err := f.svc.Analyze(context.Background(), AnalyzeInput{
		User:     user,
		ClientIP: "203.0.113.9",
		File:     file,
		Header:   header,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"detect", "heatmap", "persist"}, f.events)
	assert.Zero(t, f.counters.increments, "authenticated consumption is inferred from reports")

	require.NotNil(t, outcome.ReportID)
	assert.Equal(t, "rep_1", *outcome.ReportID)

	require.Len(t, f.reports.created, 1)
	row := f.reports.created[0]
	require.NotNil(t, row.UserID)
	assert.Equal(t, "usr_1", *row.UserID)
	assert.Equal(t, "portrait.png", row.FileName)
	assert.Equal(t, 82.5, row.FakeScore)
	assert.Equal(t, detect.ModelAdvanced, row.ModelType)

	// The persisted row round-trips the normalized result.
	var stored detect.Result
	require.NoError(t, json.Unmarshal(row.DetectionResult, &stored))
	assert.Equal(t, outcome.Result.FakeScore, stored.FakeScore)
	assert.Equal(t, outcome.Result.ModelType, stored.ModelType)

	// The row timestamp is the same instant the heatmap cache key uses.
	assert.True(t, row.UploadedAt.Equal(f.heatmaps.lastIn.UploadedAt))
	assert.WithinDuration(t, time.Now().UTC(), row.UploadedAt, time.Minute)

	assert.True(t, f.heatmaps.opts.Authenticated)
	assert.Equal(t, heatmap.TypePremium, f.heatmaps.opts.Type)
}

func TestAnalyzePersistFailureDegrades(t *testing.T) {
	f := newAnalysisFixture(t)
	f.reports.err = errors.New("insert failed")
	user := &models.User{ID: "usr_1"}

	file, header := newUpload("portrait.png", []byte("img"))
	outcome, err := f.svc.Analyze(context.Background(), AnalyzeInput{
		User:     user,
		ClientIP: "203.0.113.9",
		File:     file,
		Header:   header,
	})

	require.NoError(t, err, "persist failure must not fail the response")
	assert.Nil(t, outcome.ReportID)
	assert.Equal(t, 82.5, outcome.Result.FakeScore)
}

func TestShouldPersist(t *testing.T) {
	userID := "usr_1"

	tests := []struct {
		name     string
		identity quota.Identity
		desc     tier.Descriptor
		want     bool
	}{
		{
			"anonymous never persists",
			quota.Identity{ClientIP: "198.51.100.7"},
			tier.Get(tier.Free),
			false,
		},
		{
			"authenticated with history persists",
			quota.Identity{UserID: &userID},
			tier.Get(tier.Premium),
			true,
		},
		{
			"authenticated without history feature does not persist",
			quota.Identity{UserID: &userID},
			tier.Descriptor{Name: tier.Free, Features: map[string]bool{}},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldPersist(tt.identity, tt.desc))
		})
	}
}

func TestTypedErrorsMessages(t *testing.T) {
	qErr := &QuotaExceededError{Admission: quota.Admission{CurrentCount: 5, MaxAllowed: 5}}
	assert.Contains(t, qErr.Error(), "5/5")

	vErr := &ValidationFailedError{Validation: tier.ValidateUpload("clip.mp4", 200*1024*1024, tier.Get(tier.Free))}
	assert.Contains(t, vErr.Error(), "2 validation error")
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "image/jpeg", contentTypeFor("selfie.JPG"))
	assert.Equal(t, "video/mp4", contentTypeFor("clip.mp4"))
	assert.Equal(t, "application/octet-stream", contentTypeFor("archive.zip"))
}
