package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"deepsight/api/internal/middleware"
	"deepsight/api/internal/service"
	"deepsight/api/internal/tier"
)

// Analyze accepts one upload and runs the full detection pipeline. The
// endpoint serves anonymous and authenticated callers alike; the tier
// resolved from the caller identity decides limits, model class and
// response shape.
func (h HandlerSet) Analyze(c *gin.Context) {
	user := middleware.CurrentUser(c)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_required"})
		return
	}
	defer file.Close()

	outcome, err := h.analysisService.Analyze(c.Request.Context(), service.AnalyzeInput{
		User:     user,
		ClientIP: c.ClientIP(),
		File:     file,
		Header:   header,
	})
	if err != nil {
		var quotaErr *service.QuotaExceededError
		var validationErr *service.ValidationFailedError
		switch {
		case errors.As(err, &quotaErr):
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "quota_exceeded",
				"message": "Daily analysis limit reached",
				"quota":   quotaErr.Admission,
				"upgrade": tier.UpgradeIncentive(tier.Free, "unlimited"),
			})
		case errors.As(err, &validationErr):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation_failed",
				"message": "Upload rejected by tier limits",
				"details": validationErr.Validation.Errors,
			})
		default:
			h.log.Error().Err(err).Str("client_ip", c.ClientIP()).Msg("analysis failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		}
		return
	}

	c.JSON(http.StatusOK, service.Shape(outcome))
}

// QuotaStatus reports today's admission state without consuming quota.
func (h HandlerSet) QuotaStatus(c *gin.Context) {
	user := middleware.CurrentUser(c)
	desc, admission := h.analysisService.QuotaStatus(c.Request.Context(), user, c.ClientIP())

	c.JSON(http.StatusOK, gin.H{
		"tier": gin.H{
			"name":              desc.Name,
			"displayName":       desc.DisplayName,
			"maxFileSize":       tier.FormatFileSize(desc.MaxUploadBytes),
			"maxAnalysesPerDay": desc.MaxAnalysesPerDay,
			"supportedFormats":  desc.AllowedFormats,
		},
		"quota": admission,
	})
}
