package audit

import (
	"github.com/railzwaylabs/metron/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(service.NewRecorder),
	fx.Provide(service.NewExportService),
)
