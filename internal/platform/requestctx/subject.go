// Package requestctx carries request-scoped identity through context instead
// of globals, so handlers and logs see who a request acts as without plumbing
// an extra parameter everywhere.
package requestctx

import "context"

// subjectContextKey is the context key for the authenticated subject.
type subjectContextKey struct{}

// WithSubject stores an authenticated subject identifier in context.
func WithSubject(ctx context.Context, subject string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, subjectContextKey{}, subject)
}

// SubjectFromContext returns the subject stored in context, empty when the
// request is unauthenticated.
func SubjectFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(subjectContextKey{}).(string)
	return value
}
