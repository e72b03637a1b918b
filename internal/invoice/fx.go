package invoice

import (
	"github.com/railzwaylabs/metron/internal/invoice/repository"
	"github.com/railzwaylabs/metron/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
