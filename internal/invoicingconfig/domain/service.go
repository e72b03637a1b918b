package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/railzwaylabs/metron/internal/invoice/domain"
)

var ErrInvalidGracePeriod = errors.New("grace period hours must not be negative")

// Service reads and writes per-org invoicing settings. Get always resolves
// to a usable config: orgs that never wrote one receive the process-wide
// defaults.
type Service interface {
	Get(ctx context.Context, orgID snowflake.ID) (invoicedomain.InvoicingConfig, error)
	Put(ctx context.Context, orgID snowflake.ID, gracePeriodHours int, provider string) (invoicedomain.InvoicingConfig, error)
}
