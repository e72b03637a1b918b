package invoicingconfig

import (
	"github.com/railzwaylabs/metron/internal/invoicingconfig/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoicingconfig.service",
	fx.Provide(service.NewService),
)
