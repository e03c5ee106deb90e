package testutil

import (
	"net/http"

	"promotions/pkg/requestcontext"
)

// WithCaller sets what the auth middleware would set for a bearer token
// carrying subject and userType.
func WithCaller(req *http.Request, subject, userType string) *http.Request {
	ctx := requestcontext.WithSubject(req.Context(), subject)
	if userType != "" {
		ctx = requestcontext.WithUserType(ctx, userType)
	}
	return req.WithContext(ctx)
}
