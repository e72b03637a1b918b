package issuer

import (
	"github.com/railzwaylabs/metron/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("issuer",
	fx.Provide(func(log *zap.Logger, cfg config.Config) *Registry {
		return NewRegistry(
			NewWebhookProvider(log, cfg.Invoicing.WebhookEndpoint, cfg.Invoicing.WebhookSecret),
		)
	}),
)
