package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/railzwaylabs/metron/internal/invoice/domain"
	configdomain "github.com/railzwaylabs/metron/internal/invoicingconfig/domain"
	"github.com/railzwaylabs/metron/internal/proration"
	slotdomain "github.com/railzwaylabs/metron/internal/slot/domain"
	subscriptiondomain "github.com/railzwaylabs/metron/internal/subscription/domain"
	"github.com/railzwaylabs/metron/pkg/db/pagination"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnauthorized   = errors.New("unauthorized")
)

// AbortWithError maps domain errors onto HTTP statuses. Unknown errors are
// deliberately opaque 500s.
func AbortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, invoicedomain.ErrInvalidOrganization):
		status = http.StatusUnauthorized
		message = "unauthorized"
	case errors.Is(err, invoicedomain.ErrInvoiceNotFound),
		errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound),
		errors.Is(err, slotdomain.ErrComponentNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, invoicedomain.ErrInvoiceImmutable),
		errors.Is(err, subscriptiondomain.ErrAlreadyCanceled),
		errors.Is(err, slotdomain.ErrInsufficientSlots):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, invoicedomain.ErrInvalidInvoice),
		errors.Is(err, subscriptiondomain.ErrInvalidSubscription),
		errors.Is(err, subscriptiondomain.ErrInvalidCustomer),
		errors.Is(err, subscriptiondomain.ErrMissingComponents),
		errors.Is(err, subscriptiondomain.ErrInvalidComponentFeeType),
		errors.Is(err, subscriptiondomain.ErrSlotQuantityRequired),
		errors.Is(err, subscriptiondomain.ErrInvalidBillingDay),
		errors.Is(err, slotdomain.ErrZeroDelta),
		errors.Is(err, slotdomain.ErrInvalidComponent),
		errors.Is(err, slotdomain.ErrComponentNotSeated),
		errors.Is(err, configdomain.ErrInvalidGracePeriod),
		errors.Is(err, proration.ErrInvalidBillingPeriod),
		errors.Is(err, proration.ErrInvalidQuantity),
		errors.Is(err, proration.ErrInvalidInterval),
		errors.Is(err, pagination.ErrInvalidPageToken):
		status = http.StatusBadRequest
		message = err.Error()
	}

	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
