package rbac

import (
	"context"
	"fmt"

	identity "bikecare/backend/internal/identity/domain"
	"bikecare/backend/internal/policy/engine"
	userdomain "bikecare/backend/internal/user/domain"
)

// UserGetter returns a user by id, or (nil, nil) when none exists. Used by RequireAdmin to read
// the persisted admin flag.
type UserGetter interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// RequireAdmin ensures the caller is authenticated and is an administrator. Each resolved
// principal (bearer, then cookie session) is evaluated; the first admin wins and is returned with
// IsAdmin set. Legacy phone-token principals are never looked up in the user store.
// Returns ErrUnauthenticated, ErrForbidden, or a wrapped store error.
func RequireAdmin(ctx context.Context, users UserGetter, policy engine.Evaluator) (identity.Principal, error) {
	ps := candidates(ctx)
	if len(ps) == 0 {
		return identity.Principal{}, ErrUnauthenticated
	}
	if policy == nil {
		policy = engine.StaticEvaluator{}
	}
	for _, p := range ps {
		ok, err := isAdmin(ctx, users, policy, p)
		if err != nil {
			return identity.Principal{}, err
		}
		if ok {
			p.IsAdmin = true
			return p, nil
		}
	}
	return ps[0], ErrForbidden
}

func isAdmin(ctx context.Context, users UserGetter, policy engine.Evaluator, p identity.Principal) (bool, error) {
	in := engine.AdminInput{Source: string(p.Source), AllowListAdmin: p.IsAdmin}
	if p.Source != identity.SourceLegacyPhoneToken && users != nil {
		u, err := users.GetByID(ctx, p.SubjectID)
		if err != nil {
			return false, fmt.Errorf("rbac: lookup user: %w", err)
		}
		if u != nil {
			in.UserExists = true
			in.PersistedAdmin = u.IsAdmin
		}
	}
	return policy.EvaluateAdmin(ctx, in)
}
