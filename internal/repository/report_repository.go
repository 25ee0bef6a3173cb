package repository

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"deepsight/api/internal/models"
)

var ErrReportNotFound = errors.New("report not found")

type ReportRepository struct {
	pool *pgxpool.Pool
}

func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

func (r *ReportRepository) Create(ctx context.Context, report models.Report) (string, error) {
	const query = `
		INSERT INTO reports (
			id, user_id, file_name, file_path, fake_score, confidence_score,
			is_deepfake, model_type, detection_result, heatmap_path, heatmap_url, uploaded_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		RETURNING id
	`

	var id string
	err := r.pool.QueryRow(ctx, query,
		report.ID,
		report.UserID,
		report.FileName,
		report.FilePath,
		report.FakeScore,
		report.ConfidenceScore,
		report.IsDeepfake,
		report.ModelType,
		report.DetectionResult,
		report.HeatmapPath,
		report.HeatmapURL,
		report.UploadedAt,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *ReportRepository) GetByID(ctx context.Context, id string) (models.Report, error) {
	const query = `
		SELECT id, user_id, file_name, file_path, fake_score, confidence_score,
		       is_deepfake, model_type, detection_result, heatmap_path, heatmap_url, uploaded_at
		FROM reports WHERE id = $1
	`

	row := r.pool.QueryRow(ctx, query, id)
	report, err := scanReport(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Report{}, ErrReportNotFound
		}
		return models.Report{}, err
	}
	return report, nil
}

// ReportFilter narrows history listings; zero values are ignored.
type ReportFilter struct {
	MinScore  *float64
	MaxScore  *float64
	StartDate string
	EndDate   string
}

func (r *ReportRepository) ListByUser(ctx context.Context, userID string, filter ReportFilter, limit, offset int) ([]models.Report, error) {
	query := `
		SELECT id, user_id, file_name, file_path, fake_score, confidence_score,
		       is_deepfake, model_type, detection_result, heatmap_path, heatmap_url, uploaded_at
		FROM reports
		WHERE user_id = $1
	`
	args := []any{userID}

	if filter.MinScore != nil {
		args = append(args, *filter.MinScore)
		query += ` AND fake_score >= $` + itoa(len(args))
	}
	if filter.MaxScore != nil {
		args = append(args, *filter.MaxScore)
		query += ` AND fake_score <= $` + itoa(len(args))
	}
	if filter.StartDate != "" {
		args = append(args, filter.StartDate)
		query += ` AND uploaded_at >= $` + itoa(len(args))
	}
	if filter.EndDate != "" {
		args = append(args, filter.EndDate)
		query += ` AND uploaded_at <= $` + itoa(len(args))
	}

	args = append(args, limit)
	query += ` ORDER BY uploaded_at DESC LIMIT $` + itoa(len(args))
	args = append(args, offset)
	query += ` OFFSET $` + itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectReports(rows)
}

func (r *ReportRepository) List(ctx context.Context, limit, offset int) ([]models.Report, error) {
	const query = `
		SELECT id, user_id, file_name, file_path, fake_score, confidence_score,
		       is_deepfake, model_type, detection_result, heatmap_path, heatmap_url, uploaded_at
		FROM reports
		ORDER BY uploaded_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectReports(rows)
}

func (r *ReportRepository) DeleteByUser(ctx context.Context, id, userID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM reports WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReportNotFound
	}
	return nil
}

// CountByUserOnDate is the authenticated side of quota accounting: a
// user's daily usage is the number of reports persisted that day.
func (r *ReportRepository) CountByUserOnDate(ctx context.Context, userID, date string) (int, error) {
	const query = `
		SELECT COUNT(*) FROM reports
		WHERE user_id = $1 AND DATE(uploaded_at) = $2
	`
	var count int
	if err := r.pool.QueryRow(ctx, query, userID, date).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (models.Report, error) {
	var report models.Report
	err := row.Scan(
		&report.ID,
		&report.UserID,
		&report.FileName,
		&report.FilePath,
		&report.FakeScore,
		&report.ConfidenceScore,
		&report.IsDeepfake,
		&report.ModelType,
		&report.DetectionResult,
		&report.HeatmapPath,
		&report.HeatmapURL,
		&report.UploadedAt,
	)
	return report, err
}

func collectReports(rows pgx.Rows) ([]models.Report, error) {
	var reports []models.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
