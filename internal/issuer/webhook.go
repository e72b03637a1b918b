package issuer

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	invoicedomain "github.com/railzwaylabs/metron/internal/invoice/domain"
	"go.uber.org/zap"
)

const ProviderWebhook = "webhook"

const webhookTimeout = 10 * time.Second

// WebhookProvider posts finalized invoices to a configured endpoint. The
// body is signed with HMAC-SHA256 so the receiver can authenticate it, and
// the idempotency key is the invoice id so redelivery after a crashed sweep
// dedupes server side.
type WebhookProvider struct {
	log      *zap.Logger
	client   *http.Client
	endpoint string
	secret   string
}

func NewWebhookProvider(log *zap.Logger, endpoint, secret string) *WebhookProvider {
	return &WebhookProvider{
		log:      log.Named("issuer.webhook"),
		client:   &http.Client{Timeout: webhookTimeout},
		endpoint: endpoint,
		secret:   secret,
	}
}

func (p *WebhookProvider) Name() string {
	return ProviderWebhook
}

type webhookPayload struct {
	InvoiceID     string          `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	OrgID         string          `json:"org_id"`
	CustomerID    string          `json:"customer_id"`
	Currency      string          `json:"currency"`
	AmountCents   int64           `json:"amount_cents"`
	InvoiceDate   time.Time       `json:"invoice_date"`
	PeriodStart   time.Time       `json:"period_start"`
	PeriodEnd     time.Time       `json:"period_end"`
	LineItems     json.RawMessage `json:"line_items"`
}

func (p *WebhookProvider) Issue(ctx context.Context, invoice *invoicedomain.Invoice) error {
	if p.endpoint == "" {
		return fmt.Errorf("webhook endpoint not configured")
	}

	body, err := json.Marshal(webhookPayload{
		InvoiceID:     invoice.ID.String(),
		InvoiceNumber: invoice.InvoiceNumber,
		OrgID:         invoice.OrgID.String(),
		CustomerID:    invoice.CustomerID.String(),
		Currency:      invoice.Currency,
		AmountCents:   invoice.AmountCents,
		InvoiceDate:   invoice.InvoiceDate,
		PeriodStart:   invoice.PeriodStart,
		PeriodEnd:     invoice.PeriodEnd,
		LineItems:     json.RawMessage(invoice.LineItems),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	req.Header.Set("Idempotency-Key", invoice.ID.String())
	req.Header.Set("X-Metron-Signature", p.sign(body))

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		p.log.Warn("webhook delivery rejected",
			zap.String("invoice_id", invoice.ID.String()),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, snippet)
	}
	return nil
}

func (p *WebhookProvider) sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(p.secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
