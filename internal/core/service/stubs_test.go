package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/fieldreport/reporting-api/internal/core/domain"
	"github.com/fieldreport/reporting-api/internal/core/ports"
)

func init() {
	passwordCost = bcrypt.MinCost
}

// ---------------------------------------------------------------------------
// In-memory stub repositories
// ---------------------------------------------------------------------------

// memStore backs both stub repositories so deleting a user drops its reports,
// mirroring the ON DELETE CASCADE of the real schema.
type memStore struct {
	mu      sync.Mutex
	users   map[string]*domain.User
	reports map[string]*domain.Report
	listErr error
}

func newMemStore() *memStore {
	return &memStore{
		users:   make(map[string]*domain.User),
		reports: make(map[string]*domain.Report),
	}
}

type stubUserRepo struct{ *memStore }

type stubReportRepo struct{ *memStore }

func cloneUser(u *domain.User) *domain.User {
	clone := *u
	return &clone
}

func (r stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return nil, domain.ErrUserExists
		}
	}
	r.users[user.ID] = cloneUser(user)
	return cloneUser(user), nil
}

func (r stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r stubUserRepo) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r stubUserRepo) List(_ context.Context) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, cloneUser(u))
	}
	return out, nil
}

func (r stubUserRepo) Update(_ context.Context, id string, p domain.UserPatch) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if p.Username != nil {
		for otherID, other := range r.users {
			if otherID != id && other.Username == *p.Username {
				return nil, domain.ErrUserExists
			}
		}
		u.Username = *p.Username
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	if p.FirstName != nil {
		u.FirstName = p.FirstName
	}
	if p.LastName != nil {
		u.LastName = p.LastName
	}
	if p.Position != nil {
		u.Position = p.Position
	}
	if p.OdooBatchID != nil {
		u.OdooBatchID = p.OdooBatchID
	}
	u.UpdatedAt = p.UpdatedAt
	return cloneUser(u), nil
}

func (r stubUserRepo) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return false, nil
	}
	delete(r.users, id)
	for rid, rep := range r.reports {
		if rep.UserID == id {
			delete(r.reports, rid)
		}
	}
	return true, nil
}

func (r stubReportRepo) Create(_ context.Context, rep *domain.Report) (*domain.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[rep.UserID]; !ok {
		return nil, fmt.Errorf("foreign key violation: user %s", rep.UserID)
	}
	clone := *rep
	r.reports[rep.ID] = &clone
	out := clone
	return &out, nil
}

func (r stubReportRepo) FindByID(_ context.Context, id string) (*domain.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.reports[id]
	if !ok {
		return nil, domain.ErrReportNotFound
	}
	clone := *rep
	return &clone, nil
}

// List applies the same filters the real SQL query would use.
func (r stubReportRepo) List(_ context.Context, f ports.ReportFilter) ([]*domain.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []*domain.Report
	for _, rep := range r.reports {
		if f.UserID != "" && rep.UserID != f.UserID {
			continue
		}
		if !f.CreatedFrom.IsZero() && rep.CreatedAt.Before(f.CreatedFrom) {
			continue
		}
		if !f.CreatedBefore.IsZero() && !rep.CreatedAt.Before(f.CreatedBefore) {
			continue
		}
		clone := *rep
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ---------------------------------------------------------------------------
// Collaborator stubs
// ---------------------------------------------------------------------------

type stubPhotoStore struct {
	saved   []string
	removed []string
	saveErr error
}

func (p *stubPhotoStore) Save(_ context.Context, up ports.PhotoUpload) (string, error) {
	if p.saveErr != nil {
		return "", p.saveErr
	}
	if _, err := io.Copy(io.Discard, up.Content); err != nil {
		return "", err
	}
	path := "uploads/1700000000000-" + up.Filename
	p.saved = append(p.saved, path)
	return path, nil
}

func (p *stubPhotoStore) Remove(_ context.Context, path string) error {
	p.removed = append(p.removed, path)
	return nil
}

// stubIdempotency mirrors the Redis store: an atomic claim holding "" until
// Complete stores the report id.
type stubIdempotency struct {
	mu       sync.Mutex
	keys     map[string]string
	claimErr error
	released int
}

func newStubIdempotency() *stubIdempotency {
	return &stubIdempotency{keys: make(map[string]string)}
}

func (s *stubIdempotency) Claim(_ context.Context, userID, key string) (bool, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimErr != nil {
		return false, "", s.claimErr
	}
	k := userID + ":" + key
	if id, held := s.keys[k]; held {
		return false, id, nil
	}
	s.keys[k] = ""
	return true, "", nil
}

func (s *stubIdempotency) Complete(_ context.Context, userID, key, reportID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[userID+":"+key] = reportID
	return nil
}

func (s *stubIdempotency) Release(_ context.Context, userID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := userID + ":" + key
	if s.keys[k] == "" {
		delete(s.keys, k)
		s.released++
	}
	return nil
}

// gatedPhotoStore parks every Save until release is closed.
type gatedPhotoStore struct {
	entered chan struct{}
	release chan struct{}
}

func newGatedPhotoStore() *gatedPhotoStore {
	return &gatedPhotoStore{entered: make(chan struct{}, 8), release: make(chan struct{})}
}

func (p *gatedPhotoStore) Save(_ context.Context, up ports.PhotoUpload) (string, error) {
	p.entered <- struct{}{}
	<-p.release
	return "uploads/1700000000000-" + up.Filename, nil
}

func (p *gatedPhotoStore) Remove(context.Context, string) error { return nil }

type recordingAudit struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (a *recordingAudit) Record(e domain.AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *recordingAudit) actions() []domain.AuditAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.AuditAction, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Action)
	}
	return out
}

func photo(name string) *ports.PhotoUpload {
	return &ports.PhotoUpload{Filename: name, Content: bytes.NewReader([]byte("jpeg"))}
}

var errStoreDown = errors.New("store unavailable")
