package middleware

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

type athleteKey struct{}

// AthleteResolver finds the athlete whose data a request reads.
type AthleteResolver interface {
	AnyAthleteID(ctx context.Context) (int64, error)
}

// WithAthleteID returns a copy of ctx carrying the athlete ID.
func WithAthleteID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, athleteKey{}, id)
}

// AthleteID returns the athlete ID stored by ResolveAthlete.
func AthleteID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(athleteKey{}).(int64)
	return id, ok
}

// ResolveAthlete stores the authorized athlete in every request context. The athlete
// is looked up on the first request and then reused; until an athlete has
// authorized, each request looks again and is answered 404.
func ResolveAthlete(res AthleteResolver, log logrus.FieldLogger) func(http.Handler) http.Handler {
	var resolved atomic.Int64
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := resolved.Load()
			if id == 0 {
				var err error
				if id, err = res.AnyAthleteID(r.Context()); err != nil {
					WriteError(w, log, err)
					return
				}
				resolved.Store(id)
			}
			next.ServeHTTP(w, r.WithContext(WithAthleteID(r.Context(), id)))
		})
	}
}
