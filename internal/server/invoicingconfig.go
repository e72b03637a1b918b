package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/railzwaylabs/metron/internal/invoice/domain"
	"github.com/railzwaylabs/metron/internal/orgcontext"
)

type putInvoicingConfigRequest struct {
	GracePeriodHours int    `json:"grace_period_hours"`
	Provider         string `json:"provider,omitempty"`
}

func (s *Server) GetInvoicingConfig(c *gin.Context) {
	orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, invoicedomain.ErrInvalidOrganization)
		return
	}

	cfg, err := s.configSvc.Get(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, cfg)
}

func (s *Server) PutInvoicingConfig(c *gin.Context) {
	orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, invoicedomain.ErrInvalidOrganization)
		return
	}

	var req putInvoicingConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	cfg, err := s.configSvc.Put(c.Request.Context(), orgID, req.GracePeriodHours, strings.TrimSpace(req.Provider))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, cfg)
}
