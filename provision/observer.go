package provision

import (
	"context"
	"log/slog"
	"time"

	"github.com/ggoodman/headerauth-go/identity"
)

// LoginEvent describes a completed login.
type LoginEvent struct {
	Identity *identity.Identity
	Created  bool
	At       time.Time
}

// LoginObserver is notified synchronously after a session is established.
// Observers must not block for long; they run on the request path.
type LoginObserver interface {
	OnLogin(ctx context.Context, ev LoginEvent)
}

// LoginObserverFunc adapts a function to LoginObserver.
type LoginObserverFunc func(ctx context.Context, ev LoginEvent)

func (f LoginObserverFunc) OnLogin(ctx context.Context, ev LoginEvent) { f(ctx, ev) }

// LogObserver records each login at info level.
func LogObserver(log *slog.Logger) LoginObserver {
	if log == nil {
		log = slog.Default()
	}
	return LoginObserverFunc(func(ctx context.Context, ev LoginEvent) {
		log.InfoContext(ctx, "provision.login",
			slog.String("identity_id", ev.Identity.ID),
			slog.String("email", ev.Identity.Email),
			slog.String("role", ev.Identity.Role),
			slog.Bool("created", ev.Created),
		)
	})
}
