package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional GORM transaction.
//
// The completion cascade runs every handler inside the transaction of the
// triggering write, so repos accept a Context and join Tx when it is set.
// A nil Tx means "use the repo's own connection"; callers that need
// atomicity across the whole cascade must pass the same Context down.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// Background returns a Context with no transaction, for callers outside a
// request cycle (migrations, scripts).
func Background() Context {
	return Context{Ctx: context.Background()}
}

// WithCtx returns a copy carrying ctx, preserving the transaction.
func (c Context) WithCtx(ctx context.Context) Context {
	return Context{Ctx: ctx, Tx: c.Tx}
}
