package middleware

import "context"

type contextKey string

// ContextKeySubject holds the authenticated admin token subject.
const ContextKeySubject contextKey = "subject"

func SubjectFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ContextKeySubject).(string)
	return v, ok
}
