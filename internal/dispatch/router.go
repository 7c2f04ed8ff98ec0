// Package dispatch routes inbound events to exactly one handler.
//
// Routes are grouped in phases that are always evaluated in order, so a
// global escape such as /cancel can never be consumed by a handler bound to
// the current flow state. Inside a phase the first registered match wins.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"

	"channel-assistant/internal/domain"
)

// Phase orders route evaluation.
type Phase int

const (
	// PhaseEscape holds commands that must work in any state (cancel).
	PhaseEscape Phase = iota
	// PhaseCommand holds commands and menu buttons that start a flow.
	PhaseCommand
	// PhaseCallback holds inline button callbacks.
	PhaseCallback
	// PhaseState holds handlers bound to the current flow state.
	PhaseState
)

func (p Phase) String() string {
	switch p {
	case PhaseEscape:
		return "escape"
	case PhaseCommand:
		return "command"
	case PhaseCallback:
		return "callback"
	case PhaseState:
		return "state"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// HandlerFunc handles one event. The session is the snapshot read under the
// user lock before the handler ran.
type HandlerFunc func(ctx context.Context, ev domain.Event, s domain.Session) error

// ErrorFunc is called when a handler fails or panics.
type ErrorFunc func(ctx context.Context, ev domain.Event, err error)

// ErrPanic wraps a recovered handler panic.
var ErrPanic = errors.New("dispatch: handler panicked")

// Sessions is the part of session.Manager the router needs. Pin binds the
// snapshot a handler runs against to its context, so writes from another
// process in the meantime are detected.
type Sessions interface {
	Lock(userID int64) func()
	Get(ctx context.Context, userID int64) (domain.Session, error)
	Pin(ctx context.Context, s domain.Session) context.Context
}

type route struct {
	name   string
	phase  Phase
	match  Predicate
	handle HandlerFunc
}

// Router holds the ordered route table.
type Router struct {
	sessions Sessions
	logger   *slog.Logger
	onError  ErrorFunc
	routes   []route
}

// NewRouter creates an empty router.
func NewRouter(sessions Sessions, logger *slog.Logger) (*Router, error) {
	if sessions == nil {
		return nil, errors.New("dispatch: sessions must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sessions: sessions, logger: logger}, nil
}

// OnError installs the failure hook.
func (r *Router) OnError(fn ErrorFunc) {
	r.onError = fn
}

// Handle registers a route.
func (r *Router) Handle(phase Phase, name string, match Predicate, fn HandlerFunc) {
	r.routes = append(r.routes, route{name: name, phase: phase, match: match, handle: fn})
	sort.SliceStable(r.routes, func(i, j int) bool {
		return r.routes[i].phase < r.routes[j].phase
	})
}

// Routes lists route names in evaluation order.
func (r *Router) Routes() []string {
	names := make([]string, len(r.routes))
	for i, rt := range r.routes {
		names[i] = rt.name
	}
	return names
}

// Dispatch runs the first matching route while holding the user's lock. The
// lock covers this process only; across processes the pinned snapshot makes
// a racing write fail with domain.ErrConflict. It returns the matched route
// name, or "" when the event was dropped.
func (r *Router) Dispatch(ctx context.Context, ev domain.Event) (string, error) {
	unlock := r.sessions.Lock(ev.UserID)
	defer unlock()

	log := r.logger.With("user_id", ev.UserID, "update_id", ev.UpdateID, "kind", ev.Kind.String())

	s, err := r.sessions.Get(ctx, ev.UserID)
	if err != nil {
		log.Error("failed to load session", "err", err)
		r.fail(ctx, ev, err)
		return "", err
	}
	ctx = r.sessions.Pin(ctx, s)

	for _, rt := range r.routes {
		if !rt.match(ev, s.State) {
			continue
		}
		log.Debug("dispatching", "route", rt.name, "phase", rt.phase.String(), "state", string(s.State))
		if err := r.invoke(ctx, rt, ev, s); err != nil {
			log.Error("handler failed", "route", rt.name, "state", string(s.State), "err", err)
			r.fail(ctx, ev, err)
			return rt.name, err
		}
		return rt.name, nil
	}

	log.Debug("no route matched", "state", string(s.State))
	return "", nil
}

func (r *Router) invoke(ctx context.Context, rt route, ev domain.Event, s domain.Session) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %s: %v\n%s", ErrPanic, rt.name, rec, debug.Stack())
		}
	}()
	return rt.handle(ctx, ev, s)
}

func (r *Router) fail(ctx context.Context, ev domain.Event, err error) {
	if r.onError != nil {
		r.onError(ctx, ev, err)
	}
}
