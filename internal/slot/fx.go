package slot

import (
	"github.com/railzwaylabs/metron/internal/slot/repository"
	"github.com/railzwaylabs/metron/internal/slot/service"
	"go.uber.org/fx"
)

var Module = fx.Module("slot.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
