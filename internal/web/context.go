package web

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/csvshare/internal/core"
	"github.com/JonMunkholm/csvshare/internal/web/middleware"
)

// WithRequestMetadata adds client IP and User-Agent to ctx for service logs.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithIPAddress(ctx, middleware.ClientIP(r))
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}

// caller returns the authenticated principal and a request context carrying
// client metadata. Routes using it sit behind the auth middleware, so a
// missing caller is a wiring bug and answers 401.
func caller(w http.ResponseWriter, r *http.Request) (int64, context.Context, bool) {
	id, ok := middleware.CallerID(r.Context())
	if !ok {
		writeJSONStatus(w, http.StatusUnauthorized, ErrorResponse{
			Message: "Authentication required",
			Code:    middleware.CodeNoToken,
		})
		return 0, nil, false
	}
	return id, WithRequestMetadata(r.Context(), r), true
}

// idParam parses a positive integer path parameter.
func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
