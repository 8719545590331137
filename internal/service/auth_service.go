package service

import (
	"alcyxob/personal-coach/internal/domain"
	"alcyxob/personal-coach/internal/identity"
	"alcyxob/personal-coach/internal/metrics"
	"alcyxob/personal-coach/internal/repository"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	referralCodeLength   = 6
	referralCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	minPasswordLength    = 6

	reasonCodeNotFound     = "code not found"
	reasonCodeRequired     = "referral code is required"
	reasonLookupFailed     = "could not verify referral code"
	orphanedAccountMessage = "Your account was created but the profile could not be saved. Please contact support."
)

// identityMessages maps provider codes to the messages shown to users.
var identityMessages = map[string]string{
	identity.CodeEmailAlreadyInUse: "This email is already registered",
	identity.CodeInvalidEmail:      "Invalid email",
	identity.CodeWeakPassword:      "Password is too weak",
	identity.CodeUserNotFound:      "User not found",
	identity.CodeWrongPassword:     "Incorrect password",
	identity.CodeUserDisabled:      "This account has been disabled",
	identity.CodeInvalidCredential: "Incorrect email or password",
	identity.CodeTooManyRequests:   "Too many attempts. Try again later",
}

// IdentityErrorMessage returns the user-facing text for a provider error,
// falling back to the provider's own message for unmapped codes.
func IdentityErrorMessage(err error) string {
	if msg, ok := identityMessages[identity.ErrorCode(err)]; ok {
		return msg
	}
	return err.Error()
}

// ReferralCheck is the outcome of resolving a referral code.
type ReferralCheck struct {
	Found       bool
	TrainerID   string
	TrainerName string
	Reason      string
}

// SignupInput carries the signup form. ReferralCode is required for students.
type SignupInput struct {
	Email        string
	Password     string
	Name         string
	UserType     domain.UserType
	ReferralCode string
}

// AuthResult is returned by Signup and Login.
type AuthResult struct {
	Success      bool
	UID          string
	UserType     domain.UserType
	ReferralCode string
	Error        string
	Kind         Kind
}

func authFailed(kind Kind, message string) AuthResult {
	return AuthResult{Kind: kind, Error: message}
}

// --- Service Interface ---
type AuthService interface {
	ResolveReferralCode(ctx context.Context, code string) ReferralCheck
	Signup(ctx context.Context, in SignupInput) AuthResult
	Login(ctx context.Context, email, password string) AuthResult
	Logout(ctx context.Context) Result
	// CurrentProfile loads the profile of the signed-in account.
	CurrentProfile(ctx context.Context) (*domain.User, error)
	Subscribe(fn func(AuthState)) (unsubscribe func())
}

// --- Service Implementation ---

type authService struct {
	Deps
	provider identity.Provider
	notifier *AuthStateNotifier
}

// NewAuthService creates an AuthService acting through provider. notifier
// may be nil, in which case a private one is created.
func NewAuthService(deps Deps, provider identity.Provider, notifier *AuthStateNotifier) AuthService {
	if notifier == nil {
		notifier = NewAuthStateNotifier()
	}
	return &authService{Deps: deps.withDefaults(), provider: provider, notifier: notifier}
}

// NormalizeReferralCode trims and upper-cases a user-entered code.
func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// GenerateReferralCode draws referralCodeLength characters uniformly from
// A-Z and 0-9. Collisions with existing codes are not checked.
func GenerateReferralCode() (string, error) {
	alphabetSize := big.NewInt(int64(len(referralCodeAlphabet)))
	code := make([]byte, referralCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("generate referral code: %w", err)
		}
		code[i] = referralCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// acquireSession makes sure the provider holds a session, creating a
// disposable one if needed. The returned release deletes that disposable
// session again, and is a no-op when the session pre-existed.
func (s *authService) acquireSession(ctx context.Context) (release func(), err error) {
	if s.provider.CurrentSession() != nil {
		return func() {}, nil
	}
	anonID, err := s.provider.CreateDisposableSession(ctx)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := s.provider.DeleteCurrentSessionIfDisposable(ctx); err != nil {
			s.Logger.Warn("failed to delete disposable session", "uid", anonID, "error", err)
		}
	}, nil
}

// ResolveReferralCode looks up the trainer owning code. Matching is
// case-insensitive and ignores surrounding whitespace.
func (s *authService) ResolveReferralCode(ctx context.Context, code string) ReferralCheck {
	normalized := NormalizeReferralCode(code)
	if normalized == "" {
		return ReferralCheck{Reason: reasonCodeRequired}
	}

	release, err := s.acquireSession(ctx)
	if err != nil {
		s.Logger.Error("failed to establish session for referral lookup", "error", err)
		return ReferralCheck{Reason: reasonLookupFailed}
	}
	defer release()

	snaps, err := s.Store.Query(ctx, repository.UsersCollection,
		repository.Where("userType", domain.UserTypeTrainer),
		repository.Where("referralCode", normalized),
	)
	if err != nil {
		s.Logger.Error("referral code lookup failed", "code", normalized, "error", err)
		return ReferralCheck{Reason: reasonLookupFailed}
	}
	if len(snaps) == 0 {
		return ReferralCheck{Reason: reasonCodeNotFound}
	}
	if len(snaps) > 1 {
		ids := make([]string, len(snaps))
		for i, snap := range snaps {
			ids[i] = snap.ID
		}
		s.Logger.Warn("referral code shared by several trainers, using the first match",
			"code", normalized, "trainerIds", ids)
		s.Metrics.ReferralCollision()
	}

	var trainer domain.User
	if err := snaps[0].DataTo(&trainer); err != nil {
		s.Logger.Error("failed to decode trainer profile", "uid", snaps[0].ID, "error", err)
		return ReferralCheck{Reason: reasonLookupFailed}
	}
	return ReferralCheck{Found: true, TrainerID: snaps[0].ID, TrainerName: trainer.Name}
}

func validateSignup(in SignupInput) []string {
	var errs []string
	if in.Email == "" {
		errs = append(errs, "email is required")
	}
	if in.Password == "" {
		errs = append(errs, "password is required")
	} else if len(in.Password) < minPasswordLength {
		errs = append(errs, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if in.Name == "" {
		errs = append(errs, "name is required")
	}
	if !in.UserType.Valid() {
		errs = append(errs, `userType must be "trainer" or "student"`)
	}
	if in.UserType == domain.UserTypeStudent && NormalizeReferralCode(in.ReferralCode) == "" {
		errs = append(errs, "referralCode is required for students")
	}
	return errs
}

// Signup creates the credential account and then the profile. The two
// writes are not atomic: when the profile write fails the account is left
// without a profile and the result carries KindOrphanedAccount.
func (s *authService) Signup(ctx context.Context, in SignupInput) AuthResult {
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if errs := validateSignup(in); len(errs) > 0 {
		return authFailed(KindValidation, strings.Join(errs, ", "))
	}

	// A disposable session must never survive signup, whatever the outcome.
	defer s.discardDisposable(ctx)

	s.notifier.authenticating()

	var trainerID string
	if in.UserType == domain.UserTypeStudent {
		check := s.ResolveReferralCode(ctx, in.ReferralCode)
		if !check.Found {
			s.notifier.signedOut()
			return authFailed(KindRelationship, "Invalid referral code: "+check.Reason)
		}
		trainerID = check.TrainerID
		s.discardDisposable(ctx)
	}

	var referralCode string
	if in.UserType == domain.UserTypeTrainer {
		code, err := GenerateReferralCode()
		if err != nil {
			s.notifier.signedOut()
			return authFailed(KindInternal, err.Error())
		}
		referralCode = code
	}

	uid, err := s.provider.CreateAccount(ctx, in.Email, in.Password)
	if err != nil {
		s.notifier.signedOut()
		if identity.ErrorCode(err) == "" {
			s.Logger.Error("account creation failed", "email", in.Email, "error", err)
			return authFailed(KindInternal, err.Error())
		}
		return authFailed(KindIdentity, IdentityErrorMessage(err))
	}

	user := &domain.User{
		UID:          uid,
		Name:         in.Name,
		Email:        in.Email,
		UserType:     in.UserType,
		ReferralCode: referralCode,
		PersonalID:   trainerID,
		CreatedAt:    s.Clock().UTC(),
	}
	if err := s.Store.Set(ctx, repository.UsersCollection, uid, user.ProfileDocument()); err != nil {
		s.Logger.Error("profile write failed after account creation, account is orphaned",
			"uid", uid, "email", in.Email, "error", err)
		if err := s.provider.SignOut(ctx); err != nil {
			s.Logger.Warn("sign out after orphaned signup failed", "uid", uid, "error", err)
		}
		s.notifier.signedOut()
		return AuthResult{UID: uid, Kind: KindOrphanedAccount, Error: orphanedAccountMessage}
	}

	if trainerID != "" {
		err := s.Store.Update(ctx, repository.UsersCollection, trainerID, repository.ArrayUnion("students", uid))
		if err != nil {
			s.Logger.Warn("failed to add student to trainer roster, it will be rebuilt on next read",
				"trainerId", trainerID, "studentId", uid, "error", err)
			s.Metrics.CacheUpdateFailed(metrics.CacheTrainerStudents)
		}
	}

	s.Metrics.SignupCompleted(string(in.UserType))
	s.notifier.signedIn(uid, in.UserType)
	return AuthResult{Success: true, UID: uid, UserType: in.UserType, ReferralCode: referralCode}
}

func (s *authService) discardDisposable(ctx context.Context) {
	if err := s.provider.DeleteCurrentSessionIfDisposable(ctx); err != nil {
		s.Logger.Warn("failed to delete disposable session", "error", err)
	}
}

// Login signs in and loads the profile. An account without a profile is
// signed out again.
func (s *authService) Login(ctx context.Context, email, password string) AuthResult {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return authFailed(KindValidation, "email and password are required")
	}

	s.notifier.authenticating()

	uid, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		s.notifier.signedOut()
		if identity.ErrorCode(err) == "" {
			s.Logger.Error("sign in failed", "email", email, "error", err)
			return authFailed(KindInternal, err.Error())
		}
		return authFailed(KindIdentity, IdentityErrorMessage(err))
	}

	user, err := s.loadProfile(ctx, uid)
	if err != nil {
		if signOutErr := s.provider.SignOut(ctx); signOutErr != nil {
			s.Logger.Warn("sign out after failed login failed", "uid", uid, "error", signOutErr)
		}
		s.notifier.signedOut()
		if errors.Is(err, ErrProfileNotFound) {
			s.Logger.Warn("account has no profile", "uid", uid)
			return AuthResult{UID: uid, Kind: KindNotFound, Error: "User data not found"}
		}
		return authFailed(KindInternal, err.Error())
	}

	s.notifier.signedIn(uid, user.UserType)
	return AuthResult{Success: true, UID: uid, UserType: user.UserType, ReferralCode: user.ReferralCode}
}

func (s *authService) Logout(ctx context.Context) Result {
	if err := s.provider.SignOut(ctx); err != nil {
		return failed(KindInternal, err.Error())
	}
	s.notifier.signedOut()
	return succeeded("")
}

// CurrentProfile also settles the notifier into signed-in for a session that
// was restored rather than created through Login.
func (s *authService) CurrentProfile(ctx context.Context) (*domain.User, error) {
	uid, err := sessionUID(s.provider)
	if err != nil {
		return nil, err
	}
	user, err := s.loadProfile(ctx, uid)
	if err != nil {
		return nil, err
	}
	if cur := s.notifier.Current(); cur.Status != StatusSignedIn || cur.UID != uid {
		s.notifier.signedIn(uid, user.UserType)
	}
	return user, nil
}

func (s *authService) Subscribe(fn func(AuthState)) func() {
	return s.notifier.Subscribe(fn)
}

func (s *authService) loadProfile(ctx context.Context, uid string) (*domain.User, error) {
	return getProfile(ctx, s.Store, uid)
}

func getProfile(ctx context.Context, store repository.DocumentStore, uid string) (*domain.User, error) {
	snap, err := store.Get(ctx, repository.UsersCollection, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	var user domain.User
	if err := snap.DataTo(&user); err != nil {
		return nil, err
	}
	return &user, nil
}
