package server

import (
	"github.com/gin-gonic/gin"
	slotdomain "github.com/railzwaylabs/metron/internal/slot/domain"
)

type applySlotDeltaRequest struct {
	Delta int64 `json:"delta"`
}

func (s *Server) ApplySlotDelta(c *gin.Context) {
	var req applySlotDeltaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.slotSvc.ApplyDelta(c.Request.Context(), slotdomain.ApplyDeltaRequest{
		SubscriptionID: c.Param("id"),
		ComponentID:    c.Param("component_id"),
		Delta:          req.Delta,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}

func (s *Server) GetActiveSlots(c *gin.Context) {
	active, err := s.slotSvc.ActiveSlots(c.Request.Context(), slotdomain.ActiveSlotsRequest{
		SubscriptionID: c.Param("id"),
		ComponentID:    c.Param("component_id"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, gin.H{"active_slots": active})
}
