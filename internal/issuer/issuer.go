// Package issuer delivers finalized invoices to external invoicing
// providers. Providers are looked up by the name stored on the invoice;
// delivery failures are returned to the caller, which records them on the
// invoice and retries on a later sweep.
package issuer

import (
	"context"

	invoicedomain "github.com/railzwaylabs/metron/internal/invoice/domain"
)

type Provider interface {
	Name() string
	Issue(ctx context.Context, invoice *invoicedomain.Invoice) error
}

type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

func (r *Registry) Lookup(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}
