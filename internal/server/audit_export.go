package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/railzwaylabs/metron/internal/audit/domain"
	invoicedomain "github.com/railzwaylabs/metron/internal/invoice/domain"
	"github.com/railzwaylabs/metron/internal/orgcontext"
)

const maxExportRange = 90 * 24 * time.Hour

// ExportAuditEvents handles GET /api/v1/audit/export. Exports are scoped to
// the acting org and capped at 90 days per request.
func (s *Server) ExportAuditEvents(c *gin.Context) {
	orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, invoicedomain.ErrInvalidOrganization)
		return
	}

	startDate, err := time.Parse("2006-01-02", strings.TrimSpace(c.Query("start_date")))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	endDate, err := time.Parse("2006-01-02", strings.TrimSpace(c.Query("end_date")))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	// The end date is inclusive in the query string, exclusive in the scan.
	endDate = endDate.Add(24 * time.Hour)
	if endDate.Before(startDate) || endDate.Sub(startDate) > maxExportRange {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var format auditdomain.ExportFormat
	switch strings.ToLower(c.DefaultQuery("format", "csv")) {
	case "csv":
		format = auditdomain.ExportFormatCSV
	case "json":
		format = auditdomain.ExportFormatJSON
	default:
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var actions []string
	if raw := strings.TrimSpace(c.Query("actions")); raw != "" {
		actions = strings.Split(raw, ",")
	}

	result, err := s.auditExportSvc.Export(c.Request.Context(), auditdomain.ExportRequest{
		OrgID:     &orgID,
		StartDate: startDate,
		EndDate:   endDate,
		Format:    format,
		Actions:   actions,
		Compress:  c.Query("compress") == "true",
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	contentType := "text/csv"
	if result.Format == auditdomain.ExportFormatJSON {
		contentType = "application/json"
	}
	if result.Compressed {
		contentType = "application/octet-stream"
		c.Header("Content-Encoding", "x-snappy-framed")
	}
	c.Header("X-Checksum-SHA256", result.Checksum)
	c.Header("X-Record-Count", strconv.Itoa(result.Count))
	c.Data(http.StatusOK, contentType, result.Data)
}
