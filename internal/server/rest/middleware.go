package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/bughunt/internal/common"
	"github.com/dmitrijs2005/bughunt/internal/server/models"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type ctxKey string

const (
	identityKey  ctxKey = "identity"
	requestIDKey ctxKey = "requestID"

	RequestIDHeader = "X-Request-ID"
)

// IdentityFrom returns the authenticated caller, or nil.
func IdentityFrom(ctx context.Context) *models.Identity {
	id, _ := ctx.Value(identityKey).(*models.Identity)
	return id
}

func withIdentity(ctx context.Context, id *models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get(common.AuthorizationHeaderName), " ", 2)
	if len(parts) != 2 || parts[0] != common.BearerScheme {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Authenticate resolves the bearer token to a live user and attaches its
// identity to the request context. A missing token is 401, an invalid or
// expired one is 403, and a token whose user is gone is 401.
func (s *Server) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeFailure(w, http.StatusUnauthorized, "access token required")
			return
		}

		id, err := s.users.Authenticate(r.Context(), token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
	})
}

// RequireRole lets the request through only if the caller's role is one of roles.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFrom(r.Context())
			if id == nil {
				writeFailure(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if !slices.Contains(roles, id.Role) {
				writeJSON(w, http.StatusForbidden, Envelope{
					Success:  false,
					Message:  "insufficient permissions",
					Required: roles,
					Current:  id.Role,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireOwnershipOrAdmin lets admins through, and anyone else only when the
// owner id in the route variable or JSON body field named field equals their
// own id. An empty field means "created_by".
func RequireOwnershipOrAdmin(field string) func(http.Handler) http.Handler {
	if field == "" {
		field = "created_by"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFrom(r.Context())
			if id == nil {
				writeFailure(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if id.Role == models.RoleAdmin {
				next.ServeHTTP(w, r)
				return
			}

			owner, ok := mux.Vars(r)[field]
			if !ok {
				owner = bodyField(r, field)
			}
			if owner == "" || owner != id.ID {
				writeFailure(w, http.StatusForbidden, "you can only access your own resources")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// bodyField reads field from a JSON object body as a string and restores
// the body for the next handler.
func bodyField(r *http.Request, field string) string {
	if r.Body == nil {
		return ""
	}
	b, err := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(b))
	if err != nil {
		return ""
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return ""
	}
	v, ok := body[field]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Recovery turns a panic into a 500 response.
func (s *Server) Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				s.logger.Error(r.Context(), "panic recovered",
					"method", r.Method, "path", r.URL.Path,
					"panic", fmt.Sprint(p), "stack", string(debug.Stack()))
				env := Envelope{Success: false, Message: "internal server error"}
				if s.development {
					env.Error = fmt.Sprint(p)
				}
				writeJSON(w, http.StatusInternalServerError, env)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// AccessLog tags each request with an id and logs it once served.
func (s *Server) AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		reqID := r.Header.Get(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, reqID)
		ctx := context.WithValue(r.Context(), requestIDKey, reqID)

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r.WithContext(ctx))

		s.logger.Info(ctx, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration", time.Since(start).String(),
			"request_id", reqID,
		)
	})
}
