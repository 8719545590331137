package service

import (
	"alcyxob/personal-coach/internal/identity"
	"context"
	"errors"
	"time"
)

// AccountDirectory is the operator view of the identity provider.
type AccountDirectory interface {
	Accounts(ctx context.Context) ([]identity.Account, error)
	DeleteAccount(ctx context.Context, uid string) error
}

// DefaultOrphanMinAge is how old an account without a profile must be before
// it counts as orphaned. Younger accounts may belong to a signup that has not
// written its profile yet.
const DefaultOrphanMinAge = 10 * time.Minute

// FindOrphanedAccounts returns the registered accounts, created at least
// minAge ago, that have no profile: the residue of signups whose profile
// write failed.
func FindOrphanedAccounts(ctx context.Context, deps Deps, dir AccountDirectory, minAge time.Duration) ([]identity.Account, error) {
	deps = deps.withDefaults()
	accounts, err := dir.Accounts(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := deps.Clock().Add(-minAge)
	var orphans []identity.Account
	for _, acc := range accounts {
		if acc.CreatedAt.After(cutoff) {
			continue
		}
		_, err := getProfile(ctx, deps.Store, acc.UID)
		switch {
		case err == nil:
		case errors.Is(err, ErrProfileNotFound):
			orphans = append(orphans, acc)
		default:
			return nil, err
		}
	}
	return orphans, nil
}

// DeleteOrphanedAccounts removes the credentials of the given accounts and
// returns how many were deleted before the first failure.
func DeleteOrphanedAccounts(ctx context.Context, deps Deps, dir AccountDirectory, orphans []identity.Account) (int, error) {
	deps = deps.withDefaults()
	for i, acc := range orphans {
		if err := dir.DeleteAccount(ctx, acc.UID); err != nil {
			return i, err
		}
		deps.Logger.Info("deleted orphaned account", "uid", acc.UID, "email", acc.Email)
	}
	return len(orphans), nil
}
