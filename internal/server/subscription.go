package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	subscriptiondomain "github.com/railzwaylabs/metron/internal/subscription/domain"
)

type componentRequest struct {
	Name      string `json:"name"`
	FeeType   string `json:"fee_type"`
	RateCents int64  `json:"rate_cents"`
	Quantity  int64  `json:"quantity,omitempty"`
}

type createSubscriptionRequest struct {
	CustomerID    string             `json:"customer_id"`
	PlanName      string             `json:"plan_name"`
	Currency      string             `json:"currency,omitempty"`
	BillingPeriod string             `json:"billing_period"`
	BillingDay    int                `json:"billing_day"`
	NetTermsDays  int                `json:"net_terms_days,omitempty"`
	Start         *time.Time         `json:"start,omitempty"`
	Components    []componentRequest `json:"components"`
}

func (s *Server) CreateSubscription(c *gin.Context) {
	var req createSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	components := make([]subscriptiondomain.ComponentSpec, 0, len(req.Components))
	for _, component := range req.Components {
		components = append(components, subscriptiondomain.ComponentSpec{
			Name:      strings.TrimSpace(component.Name),
			FeeType:   strings.ToUpper(strings.TrimSpace(component.FeeType)),
			RateCents: component.RateCents,
			Quantity:  component.Quantity,
		})
	}

	domainReq := subscriptiondomain.CreateSubscriptionRequest{
		CustomerID:    strings.TrimSpace(req.CustomerID),
		PlanName:      strings.TrimSpace(req.PlanName),
		Currency:      strings.TrimSpace(req.Currency),
		BillingPeriod: strings.ToUpper(strings.TrimSpace(req.BillingPeriod)),
		BillingDay:    req.BillingDay,
		NetTermsDays:  req.NetTermsDays,
		Components:    components,
	}
	if req.Start != nil {
		domainReq.Start = *req.Start
	}

	resp, err := s.subscriptionSvc.Create(c.Request.Context(), domainReq)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}

func (s *Server) GetSubscription(c *gin.Context) {
	item, err := s.subscriptionSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, item)
}

func (s *Server) ListSubscriptions(c *gin.Context) {
	resp, err := s.subscriptionSvc.List(c.Request.Context(), subscriptiondomain.ListSubscriptionsRequest{
		PageToken: c.Query("page_token"),
		PageSize:  parsePageSize(c.Query("page_size")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondList(c, resp.Subscriptions, resp.PageInfo)
}

func (s *Server) CancelSubscription(c *gin.Context) {
	item, err := s.subscriptionSvc.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, item)
}
