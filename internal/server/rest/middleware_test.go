package rest

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dmitrijs2005/bughunt/internal/logging"
	"github.com/dmitrijs2005/bughunt/internal/server/models"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate_StatusCodes(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic alice", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"invalid token", "Bearer nonsense", http.StatusForbidden},
		{"expired token", "Bearer old", http.StatusForbidden},
		{"deleted user", "Bearer ghost", http.StatusUnauthorized},
		{"valid", "Bearer alice", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec, env := f.serve(t, req)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.want == http.StatusOK, env.Success)
		})
	}
}

func TestAuthenticate_Messages(t *testing.T) {
	f := newFixture(t)

	_, env := f.do(t, http.MethodGet, "/api/auth/profile", "", "")
	assert.Equal(t, "access token required", env.Message)

	_, env = f.do(t, http.MethodGet, "/api/auth/profile", "old", "")
	assert.Equal(t, "token expired", env.Message)

	_, env = f.do(t, http.MethodGet, "/api/auth/profile", "nonsense", "")
	assert.Equal(t, "invalid token", env.Message)
}

func TestAuthenticate_AttachesIdentity(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/api/auth/profile", "dev", "")
	require.Equal(t, http.StatusOK, rec.Code)

	data := env.Data.(map[string]any)
	user := data["user"].(map[string]any)
	assert.Equal(t, "3", user["id"])
	assert.Equal(t, "developer", user["role"])
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	h := RequireRole(models.RoleAdmin, models.RoleDeveloper)(ok)

	run := func(id *models.Identity) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if id != nil {
			req = req.WithContext(withIdentity(req.Context(), id))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, run(nil).Code)
	assert.Equal(t, http.StatusTeapot, run(dev).Code)
	assert.Equal(t, http.StatusTeapot, run(root).Code)

	rec := run(alice)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), `"required":["admin","developer"]`)
	assert.Contains(t, rec.Body.String(), `"current":"user"`)
}

func ownershipHandler(field string) http.Handler {
	r := mux.NewRouter()
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write(b)
	})
	r.Handle("/things/{owner_id}", RequireOwnershipOrAdmin(field)(ok))
	r.Handle("/things", RequireOwnershipOrAdmin(field)(ok))
	return r
}

func serveAs(h http.Handler, id *models.Identity, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if id != nil {
		req = req.WithContext(withIdentity(req.Context(), id))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequireOwnershipOrAdmin_RouteVariable(t *testing.T) {
	h := ownershipHandler("owner_id")

	assert.Equal(t, http.StatusTeapot, serveAs(h, alice, http.MethodGet, "/things/1", "").Code)
	assert.Equal(t, http.StatusForbidden, serveAs(h, bob, http.MethodGet, "/things/1", "").Code)
	assert.Equal(t, http.StatusTeapot, serveAs(h, root, http.MethodGet, "/things/1", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serveAs(h, nil, http.MethodGet, "/things/1", "").Code)
}

func TestRequireOwnershipOrAdmin_BodyFieldDefault(t *testing.T) {
	h := ownershipHandler("")

	// numeric and string ids compare equal as strings
	rec := serveAs(h, alice, http.MethodPost, "/things", `{"created_by": 1, "x": "y"}`)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, `{"created_by": 1, "x": "y"}`, rec.Body.String(), "body must be restored")

	assert.Equal(t, http.StatusTeapot, serveAs(h, alice, http.MethodPost, "/things", `{"created_by": "1"}`).Code)
	assert.Equal(t, http.StatusForbidden, serveAs(h, bob, http.MethodPost, "/things", `{"created_by": "1"}`).Code)
	assert.Equal(t, http.StatusForbidden, serveAs(h, alice, http.MethodPost, "/things", `{}`).Code)
	assert.Equal(t, http.StatusForbidden, serveAs(h, alice, http.MethodPost, "/things", `not json`).Code)
}

func TestRecovery(t *testing.T) {
	f := newFixture(t)
	f.bugs.panicOnList = true

	rec, env := f.do(t, http.MethodGet, "/api/bugs", "alice", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "kaboom", env.Error, "development exposes detail")

	f.cfg.Env = "production"
	f.rebuild()
	_, env = f.do(t, http.MethodGet, "/api/bugs", "alice", "")
	assert.Empty(t, env.Error)
}

type recordingLogger struct {
	logging.Nop
	msgs []string
	args [][]any
}

func (l *recordingLogger) Info(_ context.Context, msg string, args ...any) {
	l.msgs = append(l.msgs, msg)
	l.args = append(l.args, args)
}
func (l *recordingLogger) With(...any) logging.Logger { return l }

func TestAccessLog_SetsRequestIDAndLogs(t *testing.T) {
	log := &recordingLogger{}
	s := &Server{logger: log}

	h := s.AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", bytes.NewReader(nil)))

	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	require.Len(t, log.msgs, 1)
	assert.Equal(t, "request", log.msgs[0])
	assert.Contains(t, log.args[0], http.StatusCreated)
	assert.Contains(t, log.args[0], rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "given-id")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "given-id", rec.Header().Get(RequestIDHeader))
}
