package service

import (
	"alcyxob/personal-coach/internal/domain"
	"alcyxob/personal-coach/internal/identity"
	"alcyxob/personal-coach/internal/metrics"
	"alcyxob/personal-coach/internal/repository"
	"alcyxob/personal-coach/internal/repository/memory"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

// --- clock ---

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// --- identity provider ---

type fakeAccount struct {
	uid      string
	password string
}

// fakeProvider is an in-memory identity.Provider with scriptable failures.
type fakeProvider struct {
	mu       sync.Mutex
	session  *identity.Session
	accounts map[string]fakeAccount
	nextID   int

	createErr error
	signInErr error
	anonErr   error

	disposableCreated int
	disposableDeleted int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{accounts: map[string]fakeAccount{}}
}

func (p *fakeProvider) CreateAccount(ctx context.Context, email, password string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return "", p.createErr
	}
	if _, exists := p.accounts[email]; exists {
		return "", &identity.Error{Code: identity.CodeEmailAlreadyInUse, Message: "email in use"}
	}
	p.nextID++
	uid := fmt.Sprintf("user-%d", p.nextID)
	p.accounts[email] = fakeAccount{uid: uid, password: password}
	p.session = &identity.Session{UID: uid, Email: email}
	return uid, nil
}

func (p *fakeProvider) SignIn(ctx context.Context, email, password string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.signInErr != nil {
		return "", p.signInErr
	}
	acc, ok := p.accounts[email]
	if !ok {
		return "", &identity.Error{Code: identity.CodeUserNotFound, Message: "no user"}
	}
	if acc.password != password {
		return "", &identity.Error{Code: identity.CodeWrongPassword, Message: "bad password"}
	}
	p.session = &identity.Session{UID: acc.uid, Email: email}
	return acc.uid, nil
}

func (p *fakeProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = nil
	return nil
}

func (p *fakeProvider) CreateDisposableSession(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.anonErr != nil {
		return "", p.anonErr
	}
	p.nextID++
	p.disposableCreated++
	uid := fmt.Sprintf("anon-%d", p.nextID)
	p.session = &identity.Session{UID: uid, Disposable: true}
	return uid, nil
}

func (p *fakeProvider) DeleteCurrentSessionIfDisposable(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session != nil && p.session.Disposable {
		p.session = nil
		p.disposableDeleted++
	}
	return nil
}

func (p *fakeProvider) CurrentSession() *identity.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return nil
	}
	s := *p.session
	return &s
}

// signInAs installs a session without going through SignIn.
func (p *fakeProvider) signInAs(uid string) {
	p.mu.Lock()
	p.session = &identity.Session{UID: uid}
	p.mu.Unlock()
}

// --- environment ---

type testEnv struct {
	store    *memory.Store
	clock    *fakeClock
	registry *prometheus.Registry
	logs     *bytes.Buffer
	deps     Deps
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	clock := &fakeClock{t: time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)}
	reg := prometheus.NewRegistry()
	logs := &bytes.Buffer{}
	return &testEnv{
		store:    store,
		clock:    clock,
		registry: reg,
		logs:     logs,
		deps: Deps{
			Store:   store,
			Metrics: metrics.New(reg),
			Logger:  slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
			Clock:   clock.Now,
		},
	}
}

func (e *testEnv) seedTrainer(t *testing.T, uid, name, code string, students ...string) {
	t.Helper()
	u := &domain.User{UID: uid, Name: name, Email: uid + "@example.com", UserType: domain.UserTypeTrainer, ReferralCode: code, CreatedAt: e.clock.Now()}
	doc := u.ProfileDocument()
	if students != nil {
		doc["students"] = students
	}
	require.NoError(t, e.store.Set(context.Background(), repository.UsersCollection, uid, doc))
}

func (e *testEnv) seedStudent(t *testing.T, uid, trainerID string) {
	t.Helper()
	u := &domain.User{UID: uid, Name: "Student " + uid, Email: uid + "@example.com", UserType: domain.UserTypeStudent, PersonalID: trainerID, CreatedAt: e.clock.Now()}
	require.NoError(t, e.store.Set(context.Background(), repository.UsersCollection, uid, u.ProfileDocument()))
}

func (e *testEnv) profile(t *testing.T, uid string) *domain.User {
	t.Helper()
	u, err := getProfile(context.Background(), e.store, uid)
	require.NoError(t, err)
	return u
}

// seedWorkout stores a workout directly, bypassing the assignedWorkouts cache.
func (e *testEnv) seedWorkout(t *testing.T, id, trainerID, studentID string, createdAt time.Time) {
	t.Helper()
	w := &domain.Workout{ID: id, Name: "Workout " + id, PersonalID: trainerID, Days: domain.WorkoutDays{}, CreatedAt: createdAt}
	if studentID != "" {
		w.StudentID = &studentID
	}
	require.NoError(t, e.store.Set(context.Background(), repository.WorkoutsCollection, id, w))
}

// counter reads a counter value from the test registry, 0 when absent.
func (e *testEnv) counter(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := e.registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matchLabels(m.GetLabel(), labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	if len(pairs) != len(want) {
		return false
	}
	for _, p := range pairs {
		if want[p.GetName()] != p.GetValue() {
			return false
		}
	}
	return true
}

// failOn makes the store return boom for every op on coll (and id, when set).
func failOn(store *memory.Store, op memory.Op, coll, id string, boom error) {
	store.InjectFault(func(o memory.Op, c, i string) error {
		if o == op && c == coll && (id == "" || i == id) {
			return boom
		}
		return nil
	})
}

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }
