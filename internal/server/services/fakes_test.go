package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/bughunt/internal/common"
	"github.com/dmitrijs2005/bughunt/internal/dbx"
	"github.com/dmitrijs2005/bughunt/internal/server/config"
	"github.com/dmitrijs2005/bughunt/internal/server/imagehost"
	"github.com/dmitrijs2005/bughunt/internal/server/models"
	"github.com/dmitrijs2005/bughunt/internal/server/repositories/bugs"
	"github.com/dmitrijs2005/bughunt/internal/server/repositories/screenshots"
	"github.com/dmitrijs2005/bughunt/internal/server/repositories/users"
	"golang.org/x/crypto/bcrypt"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.BcryptCost = bcrypt.MinCost
	cfg.AccessTokenValidityDuration = time.Hour
	cfg.UploadsDir = t.TempDir()
	cfg.MaxUploadSize = 1 << 10
	return cfg
}

// --- repository manager ---

type fakeRepoMgr struct {
	users       *fakeUsersRepo
	bugs        *fakeBugsRepo
	screenshots *fakeScreenshotsRepo
}

func newFakeRepoMgr() *fakeRepoMgr {
	u := &fakeUsersRepo{byID: map[string]*models.User{}}
	return &fakeRepoMgr{
		users:       u,
		bugs:        &fakeBugsRepo{users: u, byID: map[string]*models.Bug{}},
		screenshots: &fakeScreenshotsRepo{},
	}
}

func (m *fakeRepoMgr) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoMgr) Users(dbx.DBTX) users.Repository              { return m.users }
func (m *fakeRepoMgr) Bugs(dbx.DBTX) bugs.Repository                { return m.bugs }
func (m *fakeRepoMgr) Screenshots(dbx.DBTX) screenshots.Repository  { return m.screenshots }

// --- users ---

type fakeUsersRepo struct {
	byID   map[string]*models.User
	nextID int
	clock  time.Time

	createErr error
	getErr    error
	takenErr  error
	updateErr error
}

func (f *fakeUsersRepo) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	cp := *u
	cp.ID = strconv.Itoa(f.nextID)
	cp.CreatedAt = f.tick()
	cp.UpdatedAt = cp.CreatedAt
	f.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *u
	return &out, nil
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) List(ctx context.Context) ([]*models.User, error) {
	out := make([]*models.User, 0, len(f.byID))
	for _, u := range f.byID {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeUsersRepo) EmailTaken(ctx context.Context, email, exceptID string) (bool, error) {
	if f.takenErr != nil {
		return false, f.takenErr
	}
	for _, u := range f.byID {
		if u.Email == email && u.ID != exceptID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsersRepo) UpdateProfile(ctx context.Context, id string, p models.ProfilePatch) (*models.User, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	u.UpdatedAt = f.tick()
	out := *u
	return &out, nil
}

func (f *fakeUsersRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	return nil
}

// --- bugs ---

type fakeBugsRepo struct {
	users  *fakeUsersRepo
	byID   map[string]*models.Bug
	nextID int
	clock  time.Time

	updates int
	listErr error
}

func (f *fakeBugsRepo) Create(ctx context.Context, b *models.Bug) (*models.Bug, error) {
	f.nextID++
	f.clock = f.clock.Add(time.Second)
	cp := *b
	cp.ID = strconv.Itoa(f.nextID)
	cp.Status = models.StatusOpen
	cp.CreatedAt, cp.UpdatedAt = f.clock, f.clock
	f.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeBugsRepo) GetByID(ctx context.Context, id string) (*models.Bug, error) {
	b, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *b
	return &out, nil
}

func (f *fakeBugsRepo) details(b *models.Bug) *models.BugDetails {
	d := &models.BugDetails{Bug: *b, Screenshots: []*models.Screenshot{}}
	if u, ok := f.users.byID[b.CreatedBy]; ok {
		d.CreatorName, d.CreatorEmail = u.Name, u.Email
	}
	return d
}

func (f *fakeBugsRepo) GetDetails(ctx context.Context, id string) (*models.BugDetails, error) {
	b, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return f.details(b), nil
}

func (f *fakeBugsRepo) ListDetails(ctx context.Context) ([]*models.BugDetails, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*models.BugDetails, 0, len(f.byID))
	for _, b := range f.byID {
		out = append(out, f.details(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeBugsRepo) Update(ctx context.Context, id string, p models.BugPatch) (*models.Bug, error) {
	b, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	f.updates++
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	out := *b
	return &out, nil
}

func (f *fakeBugsRepo) UpdateStatus(ctx context.Context, id string, st models.BugStatus) (*models.Bug, error) {
	b, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	b.Status = st
	out := *b
	return &out, nil
}

// --- screenshots ---

type fakeScreenshotsRepo struct {
	rows      []*models.Screenshot
	createErr error
}

func (f *fakeScreenshotsRepo) Create(ctx context.Context, s *models.Screenshot) (*models.Screenshot, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	cp := *s
	cp.ID = strconv.Itoa(len(f.rows) + 1)
	cp.CreatedAt = time.Unix(int64(len(f.rows)), 0)
	f.rows = append(f.rows, &cp)
	out := cp
	return &out, nil
}

func (f *fakeScreenshotsRepo) ListByBug(ctx context.Context, bugID string) ([]*models.Screenshot, error) {
	out := make([]*models.Screenshot, 0)
	for _, s := range f.rows {
		if s.BugID == bugID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeScreenshotsRepo) ListAll(ctx context.Context) ([]*models.Screenshot, error) {
	return f.rows, nil
}

// --- image host ---

type fakeHost struct {
	calls       int
	gotBody     []byte
	gotType     string
	gotOpts     imagehost.UploadOptions
	err         error
	deletedKeys []string
}

func (h *fakeHost) Upload(ctx context.Context, r io.Reader, ct string, opts imagehost.UploadOptions) (*imagehost.UploadResult, error) {
	h.calls++
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}
	h.gotBody, h.gotType, h.gotOpts = buf.Bytes(), ct, opts
	if h.err != nil {
		return nil, h.err
	}
	key := fmt.Sprintf("%s/obj-%d", opts.Folder, h.calls)
	return &imagehost.UploadResult{URL: "https://img.example/" + key, ID: key}, nil
}

func (h *fakeHost) Delete(ctx context.Context, id string) error {
	h.deletedKeys = append(h.deletedKeys, id)
	return nil
}

var errBoom = errors.New("boom")
