package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"cospese/internal/cache"
	"cospese/internal/core"
	applog "cospese/internal/log"
	"cospese/internal/services"
)

type actorKey struct{}

func withActor(ctx context.Context, actor core.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// actorFrom returns the actor resolved by actorMiddleware.
func actorFrom(ctx context.Context) (core.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(core.Actor)
	return a, ok
}

// actorResolver maps the user name set by the reverse proxy to a directory
// entry. Lookups are cached; unknown names are not.
type actorResolver struct {
	header    string
	directory services.UserDirectory
	users     *cache.LRUCache[core.User]
}

func (ar *actorResolver) resolve(ctx context.Context, name string) (core.User, error) {
	return ar.users.GetOrLoad(name, func() (core.User, error) {
		return ar.directory.UserByName(ctx, name)
	})
}

// middleware rejects requests without a known user with 401.
func (ar *actorResolver) middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(r.Header.Get(ar.header))
		if name == "" {
			UnauthorizedError("Missing user").Write(w)
			return
		}

		actor, err := ar.resolve(r.Context(), name)
		if errors.Is(err, core.ErrNotFound) {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Unknown user", "user", name)
			UnauthorizedError("Unknown user").Write(w)
			return
		}
		if err != nil {
			applog.FromContext(r.Context()).ErrorContext(r.Context(), "User lookup failed", applog.FieldError, err)
			InternalServerError().Write(w)
			return
		}

		logger := applog.FromContext(r.Context()).With(
			applog.FieldActorID, actor.ID,
			applog.FieldAccountID, actor.AccountID)
		ctx := applog.NewContext(withActor(r.Context(), actor), logger)
		next(w, r.WithContext(ctx))
	}
}
