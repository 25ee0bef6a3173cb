package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h HandlerSet) AdminListReports(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 50, 200)
	offset := parseIntQuery(c, "offset", 0, 1<<30)

	reports, err := h.reports.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.log.Error().Err(err).Msg("admin list reports failed")
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
