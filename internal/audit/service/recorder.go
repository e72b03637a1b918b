package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/railzwaylabs/metron/internal/audit/domain"
	"github.com/railzwaylabs/metron/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Recorder struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

type RecorderParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

func NewRecorder(p RecorderParam) auditdomain.Recorder {
	return &Recorder{
		db:    p.DB,
		log:   p.Log.Named("audit.recorder"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (r *Recorder) Record(ctx context.Context, event auditdomain.Event) {
	if event.ID == 0 {
		event.ID = r.genID.Generate()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = r.clock.Now(ctx)
	}
	if err := r.db.WithContext(ctx).Create(&event).Error; err != nil {
		r.log.Warn("record audit event",
			zap.String("action", event.Action),
			zap.String("target_id", event.TargetID.String()),
			zap.Error(err),
		)
	}
}
