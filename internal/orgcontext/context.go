// Package orgcontext carries the acting organization through request contexts.
package orgcontext

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type key struct{}

var orgIDKey key

func WithOrgID(ctx context.Context, id snowflake.ID) context.Context {
	return context.WithValue(ctx, orgIDKey, id)
}

func OrgIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	id, ok := ctx.Value(orgIDKey).(snowflake.ID)
	return id, ok
}
