package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/JonMunkholm/csvshare/internal/catalog"
	"github.com/JonMunkholm/csvshare/internal/core"
	"github.com/JonMunkholm/csvshare/internal/logging"
)

// Auth failure codes returned in the JSON body of a 401.
const (
	CodeNoToken          = "NO_TOKEN"
	CodeInvalidFormat    = "INVALID_FORMAT"
	CodeInvalidPayload   = "INVALID_PAYLOAD"
	CodeUserNotFound     = "USER_NOT_FOUND"
	CodeTokenExpired     = "TOKEN_EXPIRED"
	CodeInvalidSignature = "INVALID_SIGNATURE"
	CodeInvalidToken     = "INVALID_TOKEN"
)

// PrincipalLookup resolves a token subject to a principal. It returns an
// error wrapping core.ErrNotFound for an unknown id. *core.Service
// satisfies it.
type PrincipalLookup interface {
	Principal(ctx context.Context, id int64) (*catalog.Principal, error)
}

// IdentityClaims is the identity token payload. Only the id claim is used.
type IdentityClaims struct {
	jwt.RegisteredClaims
	UserID any `json:"id"`
}

// JWTAuth verifies HS256 bearer tokens and puts the caller id in the
// request context.
type JWTAuth struct {
	secret []byte
	parser *jwt.Parser
	lookup PrincipalLookup
}

// NewJWTAuth creates the middleware. A nil lookup skips the principal
// existence check.
func NewJWTAuth(secret string, leeway time.Duration, lookup PrincipalLookup) *JWTAuth {
	return &JWTAuth{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithLeeway(leeway),
		),
		lookup: lookup,
	}
}

// Middleware rejects requests without a valid token with 401.
func (a *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			code := CodeNoToken
			if r.Header.Get("Authorization") != "" {
				code = CodeInvalidFormat
			}
			a.reject(w, r, code, nil)
			return
		}

		callerID, code, err := a.verify(raw)
		if err != nil {
			a.reject(w, r, code, err)
			return
		}

		if a.lookup != nil {
			if _, err := a.lookup.Principal(r.Context(), callerID); err != nil {
				if errors.Is(err, core.ErrNotFound) {
					a.reject(w, r, CodeUserNotFound, err)
					return
				}
				logging.FromContext(r.Context()).Error("auth: principal lookup failed",
					"caller_id", callerID,
					"error", err,
				)
				writeError(w, http.StatusInternalServerError, "AUTH_UNAVAILABLE", "Authentication is temporarily unavailable")
				return
			}
		}

		ctx := logging.WithCallerID(r.Context(), callerID)
		if rec := callerRecorderFrom(ctx); rec != nil {
			rec.id, rec.set = callerID, true
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// verify parses raw and returns the caller id, or a failure code.
func (a *JWTAuth) verify(raw string) (int64, string, error) {
	var claims IdentityClaims
	_, err := a.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return 0, CodeTokenExpired, err
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return 0, CodeInvalidSignature, err
	case errors.Is(err, jwt.ErrTokenMalformed):
		return 0, CodeInvalidFormat, err
	default:
		return 0, CodeInvalidToken, err
	}

	id, err := parseUserID(claims.UserID)
	if err != nil {
		return 0, CodeInvalidPayload, err
	}
	return id, "", nil
}

func (a *JWTAuth) reject(w http.ResponseWriter, r *http.Request, code string, err error) {
	args := []any{"code", code, "path", r.URL.Path, "ip", ClientIP(r)}
	if err != nil {
		args = append(args, "error", err)
	}
	logging.FromContext(r.Context()).Warn("auth: rejected", args...)
	writeError(w, http.StatusUnauthorized, code, authMessages[code])
}

var authMessages = map[string]string{
	CodeNoToken:          "Authentication required",
	CodeInvalidFormat:    "Authorization header must be a bearer token",
	CodeInvalidPayload:   "Token does not identify a user",
	CodeUserNotFound:     "User no longer exists",
	CodeTokenExpired:     "Token has expired",
	CodeInvalidSignature: "Token signature is invalid",
	CodeInvalidToken:     "Token is invalid",
}

// CallerID returns the authenticated principal id.
func CallerID(ctx context.Context) (int64, bool) {
	return logging.CallerID(ctx)
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// parseUserID accepts the id claim as a JSON number or a numeric string.
func parseUserID(v any) (int64, error) {
	var id int64
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) || t > math.MaxInt64 || t < math.MinInt64 {
			return 0, fmt.Errorf("id claim %v is not an integer", t)
		}
		id = int64(t)
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, fmt.Errorf("id claim %q: %w", t, err)
		}
		id = n
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("id claim %q: %w", t, err)
		}
		id = n
	case nil:
		return 0, errors.New("id claim missing")
	default:
		return 0, fmt.Errorf("id claim has type %T", v)
	}
	if id <= 0 {
		return 0, fmt.Errorf("id claim %d is not positive", id)
	}
	return id, nil
}

// callerRecorder carries the authenticated id back up to Logger.
type callerRecorder struct {
	id  int64
	set bool
}

type recorderKey struct{}

func withCallerRecorder(ctx context.Context, rec *callerRecorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, rec)
}

func callerRecorderFrom(ctx context.Context) *callerRecorder {
	rec, _ := ctx.Value(recorderKey{}).(*callerRecorder)
	return rec
}
