package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// GetReadiness reports whether the process can serve traffic: the database
// and redis must both answer.
func (s *Server) GetReadiness(c *gin.Context) {
	ctx := c.Request.Context()
	resp := readinessResponse{Status: "ready", Checks: map[string]string{}}

	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		resp.Status = "not_ready"
		resp.Checks["database"] = err.Error()
	} else {
		resp.Checks["database"] = "ok"
	}

	if err := s.cache.Ping(ctx).Err(); err != nil {
		resp.Status = "not_ready"
		resp.Checks["redis"] = err.Error()
	} else {
		resp.Checks["redis"] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
