package auth

import "context"

type subjectKey struct{}

// WithSubject stores the host user id of the caller.
func WithSubject(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, subjectKey{}, userID)
}

// SubjectFromContext returns "" for anonymous requests.
func SubjectFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(subjectKey{}).(string)
	return userID
}
