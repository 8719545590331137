package cli

import (
	"alcyxob/personal-coach/internal/domain"
	"alcyxob/personal-coach/internal/identity"
	"alcyxob/personal-coach/internal/logging"
	"alcyxob/personal-coach/internal/repository"
	"alcyxob/personal-coach/internal/repository/memory"
	"alcyxob/personal-coach/internal/service"
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store *memory.Store
	env   *Env
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	dir, err := identity.NewDirectory(store, identity.Options{Secret: "test-secret"})
	require.NoError(t, err)
	return &testEnv{
		store: store,
		env: &Env{
			Deps:      service.Deps{Store: store, Logger: logging.Discard()},
			Directory: dir,
		},
	}
}

func (e *testEnv) seedUser(t *testing.T, u *domain.User, students ...string) {
	t.Helper()
	doc := u.ProfileDocument()
	if students != nil {
		doc["students"] = students
	}
	require.NoError(t, e.store.Set(context.Background(), repository.UsersCollection, u.UID, doc))
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	opts := &RootOptions{env: e.env}
	cmd := newRootCommand(opts)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := execute(cmd, opts)
	return out.String(), err
}

func TestInvalidFormat(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.run(t, "--format", "yaml", "repair-rosters")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRepairRosters(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, &domain.User{UID: "t1", Name: "Tess", UserType: domain.UserTypeTrainer, ReferralCode: "ABC123"}, "stale")
	e.seedUser(t, &domain.User{UID: "s1", Name: "Sam", UserType: domain.UserTypeStudent, PersonalID: "t1"})

	out, err := e.run(t, "--format", "json", "repair-rosters")
	require.NoError(t, err)

	var got struct {
		Trainers  int      `json:"trainers"`
		Rewritten int      `json:"rewritten"`
		Failed    []string `json:"failed"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 1, got.Trainers)
	assert.Equal(t, 1, got.Rewritten)
	assert.Empty(t, got.Failed)

	snap, err := e.store.Get(context.Background(), repository.UsersCollection, "t1")
	require.NoError(t, err)
	var trainer domain.User
	require.NoError(t, snap.DataTo(&trainer))
	assert.Equal(t, []string{"s1"}, trainer.Students)
}

func TestRepairRostersReportsFailures(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, &domain.User{UID: "t1", Name: "Tess", UserType: domain.UserTypeTrainer, ReferralCode: "ABC123"})
	e.seedUser(t, &domain.User{UID: "s1", Name: "Sam", UserType: domain.UserTypeStudent, PersonalID: "t1"})
	e.store.InjectFault(func(op memory.Op, collection, id string) error {
		if op == memory.OpUpdate && collection == repository.UsersCollection {
			return assert.AnError
		}
		return nil
	})

	out, err := e.run(t, "repair-rosters")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "failed: 1")
	assert.Contains(t, out, "t1")
}

func TestOrphans(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	uid, err := e.env.Directory.NewClient().CreateAccount(ctx, "lost@example.com", "secret1")
	require.NoError(t, err)

	// just created, its signup may still be writing the profile
	out, err := e.run(t, "orphans", "--delete")
	require.NoError(t, err)
	assert.Contains(t, out, "no orphaned accounts")

	out, err = e.run(t, "orphans", "--min-age", "0s")
	require.NoError(t, err)
	assert.Contains(t, out, uid)
	assert.Contains(t, out, "lost@example.com")

	out, err = e.run(t, "orphans", "--min-age", "0s", "--delete")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted 1 account(s)")

	out, err = e.run(t, "orphans", "--min-age", "0s")
	require.NoError(t, err)
	assert.Contains(t, out, "no orphaned accounts")
}

func TestReferral(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, &domain.User{UID: "t1", Name: "Tess", UserType: domain.UserTypeTrainer, ReferralCode: "ABC123"})

	out, err := e.run(t, "referral", " abc123 ")
	require.NoError(t, err)
	assert.Equal(t, "t1\tTess\n", out)

	out, err = e.run(t, "referral", "zzz999")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "ZZZ999: ")

	_, err = e.run(t, "referral")
	require.Error(t, err)
}

func TestEnvClosedWhenCommandFails(t *testing.T) {
	e := newTestEnv(t)
	closed := 0
	e.env.Close = func() { closed++ }

	_, err := e.run(t, "referral", "zzz999")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, 1, closed)

	_, err = e.run(t, "repair-rosters")
	require.NoError(t, err)
	assert.Equal(t, 2, closed)
}
