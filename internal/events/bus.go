package events

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/yungbote/fractal-backend/internal/platform/dbctx"
	"github.com/yungbote/fractal-backend/internal/platform/logger"
)

// Handler processes one event. The dbctx carries the ambient transaction of
// the triggering write; handlers must do all persistence through it and must
// not open transactions of their own.
type Handler func(dbc dbctx.Context, evt Event) (any, error)

// Bus is the in-process synchronous dispatcher. It is constructed once and
// injected; there is no package-level instance.
//
// Dispatch contract: Emit invokes every matching handler on the calling
// goroutine, in subscription-registration order, and returns only after all
// of them ran. Handlers may call Emit themselves; nested events are
// processed depth-first on the call stack before the outer Emit returns.
// Nesting depth rides on dbc.Ctx and emission past maxDepth is dropped with
// an error log, which bounds accidental cycles even though the goal tree is
// acyclic by construction.
//
// Failure isolation: a handler that returns an error or panics is logged
// and skipped; remaining handlers still run. Emit returns the non-nil
// results of the handlers that succeeded.
type Bus struct {
	log      *logger.Logger
	maxDepth int

	mu   sync.RWMutex
	subs []subscription

	disabled atomic.Bool
}

// DefaultMaxDepth bounds re-entrant emission. The deepest legitimate chain
// (session -> target -> goal -> ancestor goals -> program levels) stays
// well under this on a 7-level tree.
const DefaultMaxDepth = 32

func NewBus(baseLog *logger.Logger, maxDepth int) *Bus {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Bus{
		log:      baseLog.With("component", "EventBus"),
		maxDepth: maxDepth,
	}
}

type subscription struct {
	name    string
	kind    Kind
	ns      string
	all     bool
	handler Handler
}

func (s subscription) matches(k Kind) bool {
	switch {
	case s.all:
		return true
	case s.ns != "":
		return k.Namespace() == s.ns
	default:
		return s.kind == k
	}
}

// Subscribe registers a handler for one exact kind. The name shows up in
// failure logs.
func (b *Bus) Subscribe(kind Kind, name string, h Handler) {
	b.add(subscription{name: name, kind: kind, handler: h})
}

// SubscribeNamespace registers a handler for every kind in a namespace,
// e.g. NamespaceGoal for goal.completed and goal.uncompleted.
func (b *Bus) SubscribeNamespace(ns string, name string, h Handler) {
	b.add(subscription{name: name, ns: ns, handler: h})
}

// SubscribeAll registers a handler for every event (audit trail, test
// recorders).
func (b *Bus) SubscribeAll(name string, h Handler) {
	b.add(subscription{name: name, all: true, handler: h})
}

func (b *Bus) add(sub subscription) {
	if sub.handler == nil {
		return
	}
	if sub.name == "" {
		sub.name = "anonymous"
	}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
}

// Emit dispatches evt to every matching subscription and returns the
// results of the handlers that succeeded. A disabled bus drops the event.
func (b *Bus) Emit(dbc dbctx.Context, evt Event) []any {
	if evt == nil {
		return nil
	}
	kind := evt.EventKind()
	if b.disabled.Load() {
		b.log.Debug("Bus disabled, dropping event", "event", string(kind))
		return nil
	}
	ctx := dbc.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	depth := depthOf(ctx)
	if depth >= b.maxDepth {
		b.log.Error("Emit depth exceeded, dropping event",
			"event", string(kind), "depth", depth, "max_depth", b.maxDepth)
		return nil
	}
	if evt.EventMeta().ID == uuid.Nil {
		b.log.Warn("Event emitted without meta; use events.NewMeta", "event", string(kind))
	}

	child := dbc
	child.Ctx = context.WithValue(ctx, emitDepthKey{}, depth+1)

	b.mu.RLock()
	matched := make([]subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.matches(kind) {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()

	results := make([]any, 0, len(matched))
	for _, sub := range matched {
		out, ok := b.invoke(child, sub, evt)
		if ok && out != nil {
			results = append(results, out)
		}
	}
	return results
}

func (b *Bus) invoke(dbc dbctx.Context, sub subscription, evt Event) (out any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("Event handler panicked",
				"handler", sub.name, "event", string(evt.EventKind()), "panic", r)
			out, ok = nil, false
		}
	}()
	res, err := sub.handler(dbc, evt)
	if err != nil {
		b.log.Error("Event handler failed",
			"handler", sub.name, "event", string(evt.EventKind()), "error", err)
		return nil, false
	}
	return res, true
}

// Disable makes Emit a no-op. Migration and recompute tooling disables the
// bus while rewriting rows that would otherwise trigger cascades.
func (b *Bus) Disable() {
	b.disabled.Store(true)
	b.log.Info("Event bus disabled")
}

func (b *Bus) Enable() {
	b.disabled.Store(false)
	b.log.Info("Event bus enabled")
}

func (b *Bus) Disabled() bool { return b.disabled.Load() }

// Clear removes every subscription. Tests use it to isolate cases sharing
// one bus; production code never calls it.
func (b *Bus) Clear() {
	b.mu.Lock()
	b.subs = nil
	b.mu.Unlock()
}

type emitDepthKey struct{}

func depthOf(ctx context.Context) int {
	d, _ := ctx.Value(emitDepthKey{}).(int)
	return d
}
