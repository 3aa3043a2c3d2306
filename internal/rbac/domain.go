// Package rbac binds the pure access gate model to HTTP. It resolves the
// current subject once per request and translates gate decisions into
// status codes, so handlers never inspect roles themselves.
package rbac

import (
	"context"

	"github.com/dropzone-hq/dropzone/internal/authz"
)

// UserDirectory resolves the role snapshot for an authenticated user.
type UserDirectory interface {
	Subject(ctx context.Context, userID int64) (*authz.Subject, error)
}

// TokenVerifier validates a bearer access token and returns the user it
// names.
type TokenVerifier interface {
	Verify(token string) (int64, error)
}

// subjectState is what LoadSubject stores in the request context. loading
// means a user is named by the request but the snapshot fetch failed
// transiently, so gates may answer with a retry instead of a denial.
type subjectState struct {
	subject *authz.Subject
	loading bool
}

type subjectContextKey struct{}

func contextWithState(ctx context.Context, state subjectState) context.Context {
	return context.WithValue(ctx, subjectContextKey{}, state)
}

func stateFromContext(ctx context.Context) subjectState {
	state, _ := ctx.Value(subjectContextKey{}).(subjectState)
	return state
}

// ContextWithSubject injects a resolved subject, mainly for tests and the
// few places that act on behalf of a known user outside the middleware.
func ContextWithSubject(ctx context.Context, u *authz.Subject) context.Context {
	return contextWithState(ctx, subjectState{subject: u})
}

// SubjectFromContext returns the subject resolved for this request, or nil
// for anonymous requests.
func SubjectFromContext(ctx context.Context) *authz.Subject {
	return stateFromContext(ctx).subject
}
