package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"deepsight/api/internal/middleware"
	"deepsight/api/internal/models"
	"deepsight/api/internal/repository"
)

type reportResponse struct {
	ID              string          `json:"id"`
	FileName        string          `json:"fileName"`
	FakeScore       float64         `json:"fakeScore"`
	ConfidenceScore *float64        `json:"confidenceScore,omitempty"`
	IsDeepfake      bool            `json:"isDeepfake"`
	ModelType       string          `json:"modelType"`
	HeatmapURL      *string         `json:"heatmapUrl,omitempty"`
	UploadedAt      time.Time       `json:"uploadedAt"`
	Detection       json.RawMessage `json:"detection,omitempty"`
}

func toReportResponse(r models.Report, includeDetection bool) reportResponse {
	resp := reportResponse{
		ID:              r.ID,
		FileName:        r.FileName,
		FakeScore:       r.FakeScore,
		ConfidenceScore: r.ConfidenceScore,
		IsDeepfake:      r.IsDeepfake,
		ModelType:       r.ModelType,
		HeatmapURL:      r.HeatmapURL,
		UploadedAt:      r.UploadedAt,
	}
	if includeDetection {
		resp.Detection = json.RawMessage(r.DetectionResult)
	}
	return resp
}

func (h HandlerSet) ListReports(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit := parseIntQuery(c, "limit", 20, 100)
	offset := parseIntQuery(c, "offset", 0, 1<<30)

	filter := repository.ReportFilter{
		StartDate: c.Query("startDate"),
		EndDate:   c.Query("endDate"),
	}
	if raw := c.Query("minScore"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			filter.MinScore = &v
		}
	}
	if raw := c.Query("maxScore"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			filter.MaxScore = &v
		}
	}

	reports, err := h.reports.ListByUser(c.Request.Context(), user.ID, filter, limit, offset)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("list reports failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}

	items := make([]reportResponse, 0, len(reports))
	for _, r := range reports {
		items = append(items, toReportResponse(r, false))
	}

	c.JSON(http.StatusOK, gin.H{
		"reports": items,
		"limit":   limit,
		"offset":  offset,
	})
}

func (h HandlerSet) GetReport(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	report, err := h.reports.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrReportNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report_not_found"})
			return
		}
		h.log.Error().Err(err).Msg("get report failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}

	// Ownership check; admins may read any report.
	if user.Role != models.UserRoleAdmin {
		if report.UserID == nil || *report.UserID != user.ID {
			c.JSON(http.StatusNotFound, gin.H{"error": "report_not_found"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"report": toReportResponse(report, true)})
}

func (h HandlerSet) DeleteReport(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	err := h.reports.DeleteByUser(c.Request.Context(), c.Param("id"), user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrReportNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report_not_found"})
			return
		}
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("delete report failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func parseIntQuery(c *gin.Context, name string, fallback, max int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	if v > max {
		return max
	}
	return v
}
