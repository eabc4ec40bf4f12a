package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dmitrijs2005/bughunt/internal/common"
	"github.com/dmitrijs2005/bughunt/internal/logging"
	"github.com/dmitrijs2005/bughunt/internal/server/config"
	"github.com/dmitrijs2005/bughunt/internal/server/metrics"
	"github.com/dmitrijs2005/bughunt/internal/server/models"
	"github.com/dmitrijs2005/bughunt/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// ---- fakes ----

type fakeUsers struct {
	// token -> identity; a nil identity is a deleted user, missing keys are invalid
	tokens  map[string]*models.Identity
	expired map[string]bool

	registerIn  services.RegisterInput
	registerOut *models.User
	registerErr error

	createOut *models.User
	createErr error

	loginOut *services.LoginResult
	loginErr error

	getOut *models.User
	getErr error

	listOut []*models.User

	profilePatch models.ProfilePatch
	profileOut   *models.User
	profileErr   error

	pwErr error
}

func (f *fakeUsers) Register(ctx context.Context, in services.RegisterInput) (*models.User, error) {
	f.registerIn = in
	return f.registerOut, f.registerErr
}
func (f *fakeUsers) CreateUser(ctx context.Context, in services.RegisterInput) (*models.User, error) {
	return f.createOut, f.createErr
}
func (f *fakeUsers) Login(ctx context.Context, email, password string) (*services.LoginResult, error) {
	return f.loginOut, f.loginErr
}
func (f *fakeUsers) Authenticate(ctx context.Context, token string) (*models.Identity, error) {
	if f.expired[token] {
		return nil, common.ErrTokenExpired
	}
	id, ok := f.tokens[token]
	if !ok {
		return nil, common.ErrInvalidToken
	}
	if id == nil {
		return nil, common.ErrUnauthenticated
	}
	return id, nil
}
func (f *fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	return f.getOut, f.getErr
}
func (f *fakeUsers) List(ctx context.Context) ([]*models.User, error) {
	return f.listOut, nil
}
func (f *fakeUsers) UpdateProfile(ctx context.Context, userID string, p models.ProfilePatch) (*models.User, error) {
	f.profilePatch = p
	return f.profileOut, f.profileErr
}
func (f *fakeUsers) ChangePassword(ctx context.Context, userID, current, next string) error {
	return f.pwErr
}

type fakeBugs struct {
	createdBy string
	createOut *models.Bug
	createErr error

	listOut []*models.BugDetails
	getOut  *models.BugDetails
	getErr  error

	editCaller *models.Identity
	editOut    *models.Bug
	editErr    error

	statusIn  string
	statusOut *models.Bug
	statusErr error

	panicOnList bool
}

func (f *fakeBugs) Create(ctx context.Context, title, description, creatorID string) (*models.Bug, error) {
	f.createdBy = creatorID
	return f.createOut, f.createErr
}
func (f *fakeBugs) List(ctx context.Context) ([]*models.BugDetails, error) {
	if f.panicOnList {
		panic("kaboom")
	}
	return f.listOut, nil
}
func (f *fakeBugs) Get(ctx context.Context, id string) (*models.BugDetails, error) {
	return f.getOut, f.getErr
}
func (f *fakeBugs) Edit(ctx context.Context, id string, p models.BugPatch, caller *models.Identity) (*models.Bug, error) {
	f.editCaller = caller
	return f.editOut, f.editErr
}
func (f *fakeBugs) UpdateStatus(ctx context.Context, id, status string) (*models.Bug, error) {
	f.statusIn = status
	return f.statusOut, f.statusErr
}

type fakeShots struct {
	bugID string
	up    *services.Upload
	body  []byte
	out   *models.Screenshot
	err   error
}

func (f *fakeShots) Attach(ctx context.Context, bugID string, up *services.Upload) (*models.Screenshot, error) {
	f.bugID, f.up = bugID, up
	if up != nil && up.File != nil {
		f.body, _ = io.ReadAll(up.File)
	}
	return f.out, f.err
}

type fakePinger struct{ err error }

func (p *fakePinger) PingContext(context.Context) error { return p.err }

// ---- fixture ----

var (
	alice = &models.Identity{ID: "1", Name: "Alice", Email: "a@x.com", Role: models.RoleUser}
	bob   = &models.Identity{ID: "2", Name: "Bob", Email: "b@x.com", Role: models.RoleUser}
	dev   = &models.Identity{ID: "3", Name: "Dev", Email: "d@x.com", Role: models.RoleDeveloper}
	root  = &models.Identity{ID: "4", Name: "Root", Email: "r@x.com", Role: models.RoleAdmin}
)

type fixture struct {
	users *fakeUsers
	bugs  *fakeBugs
	shots *fakeShots
	db    *fakePinger
	cfg   *config.Config
	m     *metrics.Metrics
	h     http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.UploadsDir = t.TempDir()

	f := &fixture{
		users: &fakeUsers{
			tokens: map[string]*models.Identity{
				"alice": alice, "bob": bob, "dev": dev, "root": root, "ghost": nil,
			},
			expired: map[string]bool{"old": true},
		},
		bugs:  &fakeBugs{},
		shots: &fakeShots{},
		db:    &fakePinger{},
		cfg:   cfg,
		m:     metrics.New(prometheus.NewRegistry()),
	}
	f.rebuild()
	return f
}

func (f *fixture) rebuild() {
	s := NewServer(f.cfg, logging.Nop{}, f.users, f.bugs, f.shots, f.db, f.m)
	f.h = s.Handler()
}

func (f *fixture) do(t *testing.T, method, path, token, body string) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return f.serve(t, req)
}

func (f *fixture) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)

	var env Envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}
