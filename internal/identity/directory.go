package identity

import (
	"alcyxob/personal-coach/internal/repository"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 6
	tokenIssuer       = "personal-coach"
)

// Options configures a Directory.
type Options struct {
	Secret            string
	TokenTTL          time.Duration
	MaxFailedAttempts int
	Lockout           time.Duration
	Clock             func() time.Time
}

// credential is the record persisted in the credentials collection.
type credential struct {
	UID            string     `bson:"uid"`
	Email          string     `bson:"email,omitempty"`
	PasswordHash   string     `bson:"passwordHash,omitempty"`
	Anonymous      bool       `bson:"anonymous"`
	Disabled       bool       `bson:"disabled"`
	FailedAttempts int        `bson:"failedAttempts"`
	LockedUntil    *time.Time `bson:"lockedUntil,omitempty"`
	CreatedAt      time.Time  `bson:"createdAt"`
}

// Account is the operator view of a registered (non-anonymous) credential.
type Account struct {
	UID       string
	Email     string
	Disabled  bool
	CreatedAt time.Time
}

// sessionClaims is the JWT payload minted for a session.
type sessionClaims struct {
	UID        string `json:"uid"`
	Disposable bool   `json:"anon,omitempty"`
	jwt.RegisteredClaims
}

// Directory stores credentials in the document store and issues session
// tokens. It is shared; per-caller session state lives in Client.
type Directory struct {
	store     repository.DocumentStore
	secret    []byte
	ttl       time.Duration
	maxFailed int
	lockout   time.Duration
	now       func() time.Time
	validate  *validator.Validate

	// serializes email uniqueness checks within this process
	mu sync.Mutex
}

// NewDirectory creates a Directory. An empty secret is a configuration error.
func NewDirectory(store repository.DocumentStore, opts Options) (*Directory, error) {
	if opts.Secret == "" {
		return nil, errors.New("identity: token secret cannot be empty")
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	if opts.MaxFailedAttempts <= 0 {
		opts.MaxFailedAttempts = 5
	}
	if opts.Lockout <= 0 {
		opts.Lockout = 15 * time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Directory{
		store:     store,
		secret:    []byte(opts.Secret),
		ttl:       opts.TokenTTL,
		maxFailed: opts.MaxFailedAttempts,
		lockout:   opts.Lockout,
		now:       opts.Clock,
		validate:  validator.New(),
	}, nil
}

// NewClient returns a Provider with no current session.
func (d *Directory) NewClient() *Client {
	return &Client{dir: d}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (d *Directory) findByEmail(ctx context.Context, email string) (*credential, error) {
	snaps, err := d.store.Query(ctx, repository.CredentialsCollection, repository.Where("email", email))
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, repository.ErrNotFound
	}
	var cred credential
	if err := snaps[0].DataTo(&cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

func (d *Directory) register(ctx context.Context, email, password string) (*credential, error) {
	email = normalizeEmail(email)
	if err := d.validate.Var(email, "required,email"); err != nil {
		return nil, newError(CodeInvalidEmail, "identity: the email address is badly formatted")
	}
	if len(password) < minPasswordLength {
		return nil, newError(CodeWeakPassword, fmt.Sprintf("identity: password should be at least %d characters", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("identity: hash password: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.findByEmail(ctx, email); err == nil {
		return nil, newError(CodeEmailAlreadyInUse, "identity: the email address is already in use by another account")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	cred := &credential{
		UID:          uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    d.now().UTC(),
	}
	if err := d.store.Set(ctx, repository.CredentialsCollection, cred.UID, cred); err != nil {
		// Another process registered the email between the lookup and the
		// write; the unique email index rejected ours.
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, newError(CodeEmailAlreadyInUse, "identity: the email address is already in use by another account")
		}
		return nil, err
	}
	return cred, nil
}

func (d *Directory) authenticate(ctx context.Context, email, password string) (*credential, error) {
	email = normalizeEmail(email)
	if err := d.validate.Var(email, "required,email"); err != nil {
		return nil, newError(CodeInvalidEmail, "identity: the email address is badly formatted")
	}
	if password == "" {
		return nil, newError(CodeInvalidCredential, "identity: the supplied credentials are invalid")
	}

	cred, err := d.findByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(CodeUserNotFound, "identity: there is no account for this email")
		}
		return nil, err
	}
	if cred.Disabled {
		return nil, newError(CodeUserDisabled, "identity: the account has been disabled")
	}
	now := d.now()
	if cred.LockedUntil != nil && now.Before(*cred.LockedUntil) {
		return nil, newError(CodeTooManyRequests, "identity: access temporarily blocked after repeated failed sign-ins")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		attempts := cred.FailedAttempts + 1
		updates := []repository.FieldUpdate{repository.Set("failedAttempts", attempts)}
		if attempts >= d.maxFailed {
			updates = []repository.FieldUpdate{
				repository.Set("failedAttempts", 0),
				repository.Set("lockedUntil", now.Add(d.lockout).UTC()),
			}
		}
		if uerr := d.store.Update(ctx, repository.CredentialsCollection, cred.UID, updates...); uerr != nil {
			return nil, uerr
		}
		return nil, newError(CodeWrongPassword, "identity: the password is invalid")
	}

	if cred.FailedAttempts > 0 || cred.LockedUntil != nil {
		err := d.store.Update(ctx, repository.CredentialsCollection, cred.UID,
			repository.Set("failedAttempts", 0),
			repository.Set("lockedUntil", nil),
		)
		if err != nil {
			return nil, err
		}
	}
	return cred, nil
}

func (d *Directory) createAnonymous(ctx context.Context) (*credential, error) {
	cred := &credential{
		UID:       uuid.NewString(),
		Anonymous: true,
		CreatedAt: d.now().UTC(),
	}
	if err := d.store.Set(ctx, repository.CredentialsCollection, cred.UID, cred); err != nil {
		return nil, err
	}
	return cred, nil
}

// sign mints a token for s.
func (d *Directory) sign(s Session) (string, error) {
	now := d.now()
	claims := &sessionClaims{
		UID:        s.UID,
		Disposable: s.Disposable,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UID,
			ExpiresAt: jwt.NewNumericDate(now.Add(d.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(d.secret)
}

// Resume validates a session token and returns a Client signed in as its
// subject. The credential must still exist and be enabled.
func (d *Directory) Resume(ctx context.Context, tokenString string) (*Client, error) {
	claims := &sessionClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return d.secret, nil
	})
	if err != nil || !token.Valid || claims.UID == "" {
		return nil, newError(CodeInvalidCredential, "identity: invalid session token")
	}
	if claims.ExpiresAt == nil || !d.now().Before(claims.ExpiresAt.Time) {
		return nil, newError(CodeInvalidCredential, "identity: session token has expired")
	}

	snap, err := d.store.Get(ctx, repository.CredentialsCollection, claims.UID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(CodeUserNotFound, "identity: the session account no longer exists")
		}
		return nil, err
	}
	var cred credential
	if err := snap.DataTo(&cred); err != nil {
		return nil, err
	}
	if cred.Disabled {
		return nil, newError(CodeUserDisabled, "identity: the account has been disabled")
	}

	return &Client{dir: d, session: sessionFor(&cred)}, nil
}

// Accounts lists every registered credential. Anonymous ones are skipped.
func (d *Directory) Accounts(ctx context.Context) ([]Account, error) {
	snaps, err := d.store.Query(ctx, repository.CredentialsCollection, repository.Where("anonymous", false))
	if err != nil {
		return nil, err
	}
	accounts := make([]Account, 0, len(snaps))
	for _, snap := range snaps {
		var cred credential
		if err := snap.DataTo(&cred); err != nil {
			return nil, fmt.Errorf("decode credential %s: %w", snap.ID, err)
		}
		accounts = append(accounts, Account{
			UID:       cred.UID,
			Email:     cred.Email,
			Disabled:  cred.Disabled,
			CreatedAt: cred.CreatedAt,
		})
	}
	return accounts, nil
}

// DeleteAccount removes the credential for uid.
func (d *Directory) DeleteAccount(ctx context.Context, uid string) error {
	return d.store.Delete(ctx, repository.CredentialsCollection, uid)
}

func sessionFor(cred *credential) *Session {
	return &Session{UID: cred.UID, Email: cred.Email, Disposable: cred.Anonymous}
}
