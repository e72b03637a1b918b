package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/railzwaylabs/metron/internal/invoice/domain"
)

func (s *Server) GetInvoice(c *gin.Context) {
	item, err := s.invoiceSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, item)
}

func (s *Server) ListInvoices(c *gin.Context) {
	resp, err := s.invoiceSvc.List(c.Request.Context(), invoicedomain.ListInvoicesRequest{
		CustomerID:     c.Query("customer_id"),
		SubscriptionID: c.Query("subscription_id"),
		Status:         c.Query("status"),
		PageToken:      c.Query("page_token"),
		PageSize:       parsePageSize(c.Query("page_size")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondList(c, resp.Invoices, resp.PageInfo)
}

func (s *Server) GetInvoicePDF(c *gin.Context) {
	pdf, err := s.invoiceSvc.RenderPDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="invoice-`+c.Param("id")+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (s *Server) VoidInvoice(c *gin.Context) {
	item, err := s.invoiceSvc.Void(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, item)
}

func parsePageSize(raw string) int32 {
	if raw == "" {
		return 0
	}
	size, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || size < 0 {
		return 0
	}
	return int32(size)
}
