package identity

import (
	"alcyxob/personal-coach/internal/repository"
	"alcyxob/personal-coach/internal/repository/memory"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestDirectory(t *testing.T) (*Directory, *memory.Store, *fakeClock) {
	t.Helper()
	store := memory.NewStore()
	clock := &fakeClock{t: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	dir, err := NewDirectory(store, Options{
		Secret:            "test-secret",
		TokenTTL:          time.Hour,
		MaxFailedAttempts: 3,
		Lockout:           10 * time.Minute,
		Clock:             clock.Now,
	})
	require.NoError(t, err)
	return dir, store, clock
}

func TestNewDirectory_RequiresSecret(t *testing.T) {
	_, err := NewDirectory(memory.NewStore(), Options{})
	assert.Error(t, err)
}

func TestClient_CreateAccount(t *testing.T) {
	dir, _, _ := newTestDirectory(t)
	ctx := context.Background()
	c := dir.NewClient()

	uid, err := c.CreateAccount(ctx, "  Ana@Example.com ", "secret1")
	require.NoError(t, err)
	require.NotEmpty(t, uid)

	s := c.CurrentSession()
	require.NotNil(t, s)
	assert.Equal(t, uid, s.UID)
	assert.Equal(t, "ana@example.com", s.Email)
	assert.False(t, s.Disposable)
}

func TestClient_CreateAccountErrors(t *testing.T) {
	dir, _, _ := newTestDirectory(t)
	ctx := context.Background()
	_, err := dir.NewClient().CreateAccount(ctx, "taken@example.com", "secret1")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		code     string
	}{
		{"malformed email", "not-an-email", "secret1", CodeInvalidEmail},
		{"empty email", "", "secret1", CodeInvalidEmail},
		{"short password", "new@example.com", "12345", CodeWeakPassword},
		{"duplicate email", "TAKEN@example.com", "secret1", CodeEmailAlreadyInUse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := dir.NewClient()
			_, err := c.CreateAccount(ctx, tt.email, tt.password)
			require.Error(t, err)
			assert.Equal(t, tt.code, ErrorCode(err))
			assert.Nil(t, c.CurrentSession())
		})
	}
}

func TestClient_CreateAccountLosesRaceOnUniqueEmail(t *testing.T) {
	dir, store, _ := newTestDirectory(t)
	ctx := context.Background()
	store.InjectFault(func(op memory.Op, coll, id string) error {
		if op == memory.OpSet && coll == repository.CredentialsCollection {
			return fmt.Errorf("%s/%s: %w", coll, id, repository.ErrDuplicateKey)
		}
		return nil
	})

	c := dir.NewClient()
	_, err := c.CreateAccount(ctx, "race@example.com", "secret1")
	require.Error(t, err)
	assert.Equal(t, CodeEmailAlreadyInUse, ErrorCode(err))
	assert.Nil(t, c.CurrentSession())
}

func TestClient_SignIn(t *testing.T) {
	dir, _, _ := newTestDirectory(t)
	ctx := context.Background()
	uid, err := dir.NewClient().CreateAccount(ctx, "bia@example.com", "secret1")
	require.NoError(t, err)

	c := dir.NewClient()
	got, err := c.SignIn(ctx, "BIA@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, uid, got)
	assert.Equal(t, uid, c.CurrentSession().UID)

	_, err = c.SignIn(ctx, "bia@example.com", "wrong-pass")
	assert.Equal(t, CodeWrongPassword, ErrorCode(err))

	_, err = c.SignIn(ctx, "nobody@example.com", "secret1")
	assert.Equal(t, CodeUserNotFound, ErrorCode(err))

	_, err = c.SignIn(ctx, "bia@example.com", "")
	assert.Equal(t, CodeInvalidCredential, ErrorCode(err))

	require.NoError(t, c.SignOut(ctx))
	assert.Nil(t, c.CurrentSession())
}

func TestClient_SignInDisabled(t *testing.T) {
	dir, store, _ := newTestDirectory(t)
	ctx := context.Background()
	uid, err := dir.NewClient().CreateAccount(ctx, "off@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, store.Update(ctx, repository.CredentialsCollection, uid, repository.Set("disabled", true)))

	_, err = dir.NewClient().SignIn(ctx, "off@example.com", "secret1")
	assert.Equal(t, CodeUserDisabled, ErrorCode(err))
}

func TestClient_SignInLockout(t *testing.T) {
	dir, _, clock := newTestDirectory(t)
	ctx := context.Background()
	_, err := dir.NewClient().CreateAccount(ctx, "lock@example.com", "secret1")
	require.NoError(t, err)

	c := dir.NewClient()
	for i := 0; i < 3; i++ {
		_, err = c.SignIn(ctx, "lock@example.com", "bad-pass")
		assert.Equal(t, CodeWrongPassword, ErrorCode(err))
	}

	_, err = c.SignIn(ctx, "lock@example.com", "secret1")
	assert.Equal(t, CodeTooManyRequests, ErrorCode(err))

	clock.Advance(11 * time.Minute)
	_, err = c.SignIn(ctx, "lock@example.com", "secret1")
	require.NoError(t, err)

	// the counter was reset, so two more failures do not lock again
	for i := 0; i < 2; i++ {
		_, err = c.SignIn(ctx, "lock@example.com", "bad-pass")
		assert.Equal(t, CodeWrongPassword, ErrorCode(err))
	}
	_, err = c.SignIn(ctx, "lock@example.com", "secret1")
	assert.NoError(t, err)
}

func TestClient_DisposableSession(t *testing.T) {
	dir, store, _ := newTestDirectory(t)
	ctx := context.Background()
	c := dir.NewClient()

	anonID, err := c.CreateDisposableSession(ctx)
	require.NoError(t, err)
	require.True(t, c.CurrentSession().Disposable)

	_, err = store.Get(ctx, repository.CredentialsCollection, anonID)
	require.NoError(t, err)

	require.NoError(t, c.DeleteCurrentSessionIfDisposable(ctx))
	assert.Nil(t, c.CurrentSession())
	_, err = store.Get(ctx, repository.CredentialsCollection, anonID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestClient_DeleteIfDisposableKeepsRealSession(t *testing.T) {
	dir, store, _ := newTestDirectory(t)
	ctx := context.Background()
	c := dir.NewClient()
	uid, err := c.CreateAccount(ctx, "real@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, c.DeleteCurrentSessionIfDisposable(ctx))
	assert.Equal(t, uid, c.CurrentSession().UID)
	_, err = store.Get(ctx, repository.CredentialsCollection, uid)
	assert.NoError(t, err)

	// no session at all is a no-op as well
	empty := dir.NewClient()
	assert.NoError(t, empty.DeleteCurrentSessionIfDisposable(ctx))
}

func TestDirectory_TokenRoundTrip(t *testing.T) {
	dir, _, clock := newTestDirectory(t)
	ctx := context.Background()
	c := dir.NewClient()

	_, err := c.Token()
	assert.Equal(t, CodeNoSession, ErrorCode(err))

	uid, err := c.CreateAccount(ctx, "tok@example.com", "secret1")
	require.NoError(t, err)
	token, err := c.Token()
	require.NoError(t, err)

	resumed, err := dir.Resume(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, uid, resumed.CurrentSession().UID)
	assert.Equal(t, "tok@example.com", resumed.CurrentSession().Email)

	clock.Advance(2 * time.Hour)
	_, err = dir.Resume(ctx, token)
	assert.Equal(t, CodeInvalidCredential, ErrorCode(err))
}

func TestDirectory_ResumeRejects(t *testing.T) {
	dir, _, _ := newTestDirectory(t)
	ctx := context.Background()

	_, err := dir.Resume(ctx, "garbage")
	assert.Equal(t, CodeInvalidCredential, ErrorCode(err))

	other, err := NewDirectory(memory.NewStore(), Options{Secret: "other-secret", Clock: func() time.Time {
		return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	}})
	require.NoError(t, err)
	c := other.NewClient()
	_, err = c.CreateAccount(ctx, "x@example.com", "secret1")
	require.NoError(t, err)
	foreign, err := c.Token()
	require.NoError(t, err)
	_, err = dir.Resume(ctx, foreign)
	assert.Equal(t, CodeInvalidCredential, ErrorCode(err))

	// signed with our secret but the credential was deleted
	mine := dir.NewClient()
	uid, err := mine.CreateAccount(ctx, "gone@example.com", "secret1")
	require.NoError(t, err)
	token, err := mine.Token()
	require.NoError(t, err)
	require.NoError(t, dir.DeleteAccount(ctx, uid))
	_, err = dir.Resume(ctx, token)
	assert.Equal(t, CodeUserNotFound, ErrorCode(err))
}

func TestDirectory_AccountsSkipsAnonymous(t *testing.T) {
	dir, _, _ := newTestDirectory(t)
	ctx := context.Background()
	uid, err := dir.NewClient().CreateAccount(ctx, "list@example.com", "secret1")
	require.NoError(t, err)
	_, err = dir.NewClient().CreateDisposableSession(ctx)
	require.NoError(t, err)

	accounts, err := dir.Accounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, uid, accounts[0].UID)
	assert.Equal(t, "list@example.com", accounts[0].Email)
}
