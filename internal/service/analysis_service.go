package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"deepsight/api/internal/config"
	"deepsight/api/internal/detect"
	"deepsight/api/internal/heatmap"
	"deepsight/api/internal/ids"
	"deepsight/api/internal/models"
	"deepsight/api/internal/quota"
	"deepsight/api/internal/tier"
)

// QuotaExceededError terminates a request at admission with the full
// quota detail for the caller.
type QuotaExceededError struct {
	Admission quota.Admission
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily analysis quota exceeded (%d/%d)", e.Admission.CurrentCount, e.Admission.MaxAllowed)
}

// ValidationFailedError terminates a request at the admission gate with
// every accumulated violation.
type ValidationFailedError struct {
	Validation tier.Validation
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("upload rejected with %d validation error(s)", len(e.Validation.Errors))
}

type AnalyzeInput struct {
	User     *models.User
	ClientIP string
	File     multipart.File
	Header   *multipart.FileHeader
}

// Outcome is everything one pipeline run produced; the shaper turns it
// into a tier-appropriate payload.
type Outcome struct {
	ResultID  string
	FileName  string
	Tier      tier.Descriptor
	Admission quota.Admission
	Result    detect.Result
	Heatmap   heatmap.Output
	ReportID  *string
}

// ReportStore persists finished analyses. Satisfied by
// *repository.ReportRepository.
type ReportStore interface {
	Create(ctx context.Context, report models.Report) (string, error)
}

// Detector runs the detection cascade for one admitted file. Satisfied
// by *detect.Dispatcher.
type Detector interface {
	Run(ctx context.Context, filePath string, desc tier.Descriptor) detect.Result
}

// HeatmapGenerator produces the visual-explanation artifact. Satisfied
// by *heatmap.Pipeline.
type HeatmapGenerator interface {
	Generate(ctx context.Context, imagePath string, in heatmap.Input, opts heatmap.Options) heatmap.Output
}

// UploadArchiver pushes originals to durable object storage. Satisfied
// by *storage.ObjectStore; nil disables archival.
type UploadArchiver interface {
	PutUpload(ctx context.Context, objectKey string, data []byte, contentType string) (string, error)
}

type AnalysisService struct {
	reports    ReportStore
	ledger     *quota.Ledger
	dispatcher Detector
	heatmaps   HeatmapGenerator
	store      UploadArchiver
	queue      *redis.Client
	cfg        *config.AppConfig
	log        zerolog.Logger
}

func NewAnalysisService(
	reports ReportStore,
	ledger *quota.Ledger,
	dispatcher Detector,
	heatmaps HeatmapGenerator,
	store UploadArchiver,
	queue *redis.Client,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *AnalysisService {
	return &AnalysisService{
		reports:    reports,
		ledger:     ledger,
		dispatcher: dispatcher,
		heatmaps:   heatmaps,
		store:      store,
		queue:      queue,
		cfg:        cfg,
		log:        log,
	}
}

// Analyze runs the full pipeline for one upload. Admission and
// validation failures return typed errors; every later stage degrades
// instead of aborting, so a non-nil Outcome always carries a result.
func (s *AnalysisService) Analyze(ctx context.Context, input AnalyzeInput) (*Outcome, error) {
	identity := quota.Identity{ClientIP: input.ClientIP}
	if input.User != nil {
		identity.UserID = &input.User.ID
	}
	desc := tier.Resolve(identity.UserID)

	admission := s.ledger.CheckAdmission(ctx, identity, desc)
	if !admission.Allowed {
		return nil, &QuotaExceededError{Admission: admission}
	}

	validation := tier.ValidateUpload(input.Header.Filename, input.Header.Size, desc)
	if !validation.Valid {
		return nil, &ValidationFailedError{Validation: validation}
	}

	resultID := ids.New()
	uploadedAt := time.Now().UTC()

	filePath, err := s.saveUpload(input.File, input.Header.Filename, resultID)
	if err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}

	s.archiveUpload(ctx, filePath, input.Header.Filename)

	result := s.dispatcher.Run(ctx, filePath, desc)

	var confidence float64
	if result.ConfidenceScore != nil {
		confidence = *result.ConfidenceScore
	}
	heatmapType := heatmap.TypeStandard
	if desc.Name == tier.Premium {
		heatmapType = heatmap.TypePremium
	}
	heatmapOut := s.heatmaps.Generate(ctx, filePath, heatmap.Input{
		ResultID:        resultID,
		FakeScore:       result.FakeScore,
		ConfidenceScore: confidence,
		UploadedAt:      uploadedAt,
	}, heatmap.Options{
		Type:          heatmapType,
		Authenticated: identity.Authenticated(),
		GradCAM:       desc.Has(tier.FeatureHeatmapGeneration),
		FaceAnalysis:  desc.Has(tier.FeatureFaceAnalysis),
	})

	reportID := s.persist(ctx, identity, desc, resultID, input.Header.Filename, filePath, result, heatmapOut, uploadedAt)

	s.ledger.RecordConsumption(ctx, identity)
	s.enqueueEvent(ctx, resultID, identity, result)

	return &Outcome{
		ResultID:  resultID,
		FileName:  input.Header.Filename,
		Tier:      desc,
		Admission: admission,
		Result:    result,
		Heatmap:   heatmapOut,
		ReportID:  reportID,
	}, nil
}

// QuotaStatus answers the standalone admission query endpoint.
func (s *AnalysisService) QuotaStatus(ctx context.Context, user *models.User, clientIP string) (tier.Descriptor, quota.Admission) {
	identity := quota.Identity{ClientIP: clientIP}
	if user != nil {
		identity.UserID = &user.ID
	}
	desc := tier.Resolve(identity.UserID)
	return desc, s.ledger.CheckAdmission(ctx, identity, desc)
}

func (s *AnalysisService) saveUpload(file multipart.File, originalName, resultID string) (string, error) {
	if err := os.MkdirAll(s.cfg.Paths.UploadsDir, 0o755); err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	base := strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName))
	destPath := filepath.Join(s.cfg.Paths.UploadsDir, fmt.Sprintf("%s_%s%s", base, resultID, ext))

	dest, err := os.Create(destPath)
	if err != nil {
		return "", err
	}
	defer dest.Close()

	if seeker, ok := file.(io.Seeker); ok {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return "", err
		}
	}
	if _, err := io.Copy(dest, file); err != nil {
		os.Remove(destPath)
		return "", err
	}
	return destPath, nil
}

// archiveUpload pushes the original to object storage. Best effort: the
// analysis proceeds from the local copy either way.
func (s *AnalysisService) archiveUpload(ctx context.Context, filePath, originalName string) {
	if s.store == nil {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		s.log.Warn().Err(err).Msg("read upload for archival failed")
		return
	}
	key := time.Now().UTC().Format("2006/01/02") + "/" + filepath.Base(filePath)
	if _, err := s.store.PutUpload(ctx, key, data, contentTypeFor(originalName)); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("upload archival failed")
	}
}

// persist writes the report row for entitled callers. Anonymous callers
// and tiers without historySaving are a strict no-op; storage failures
// are logged and swallowed so the response never depends on them.
func (s *AnalysisService) persist(
	ctx context.Context,
	identity quota.Identity,
	desc tier.Descriptor,
	resultID, fileName, filePath string,
	result detect.Result,
	heatmapOut heatmap.Output,
	uploadedAt time.Time,
) *string {
	if !shouldPersist(identity, desc) {
		return nil
	}

	payload, err := json.Marshal(result)
	if err != nil {
		s.log.Error().Err(err).Msg("marshal detection result failed")
		return nil
	}

	report := models.Report{
		ID:              resultID,
		UserID:          identity.UserID,
		FileName:        fileName,
		FilePath:        filePath,
		FakeScore:       result.FakeScore,
		ConfidenceScore: result.ConfidenceScore,
		IsDeepfake:      result.IsDeepfake,
		ModelType:       result.ModelType,
		DetectionResult: payload,
		UploadedAt:      uploadedAt,
	}
	if heatmapOut.Success {
		report.HeatmapPath = &heatmapOut.HeatmapPath
		report.HeatmapURL = &heatmapOut.HeatmapURL
	}

	id, err := s.reports.Create(ctx, report)
	if err != nil {
		s.log.Error().Err(err).Str("result_id", resultID).Msg("report persist failed")
		return nil
	}
	return &id
}

// shouldPersist gates report persistence: anonymous callers and tiers
// without the history feature never get a row.
func shouldPersist(identity quota.Identity, desc tier.Descriptor) bool {
	return identity.Authenticated() && desc.Has(tier.FeatureHistorySaving)
}

func (s *AnalysisService) enqueueEvent(ctx context.Context, resultID string, identity quota.Identity, result detect.Result) {
	if s.queue == nil {
		return
	}
	// Stream values are stored as strings; keep formats explicit so the
	// worker can decode them.
	values := map[string]any{
		"type":      "report_created",
		"resultId":  resultID,
		"fakeScore": strconv.FormatFloat(result.FakeScore, 'f', 2, 64),
		"modelType": result.ModelType,
		"anonymous": strconv.FormatBool(!identity.Authenticated()),
	}
	if err := s.queue.XAdd(ctx, &redis.XAddArgs{
		Stream: s.cfg.Redis.Stream,
		Values: values,
	}).Err(); err != nil {
		s.log.Warn().Err(err).Str("result_id", resultID).Msg("event enqueue failed")
	}
}

func contentTypeFor(name string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "mp4":
		return "video/mp4"
	case "avi":
		return "video/x-msvideo"
	case "mov":
		return "video/quicktime"
	case "mkv":
		return "video/x-matroska"
	}
	return "application/octet-stream"
}
