package engine

import "context"

// AdminInput is everything the admin decision depends on.
type AdminInput struct {
	// Source is the identity source of the principal (identity.Source as string).
	Source string
	// AllowListAdmin is the admin bit computed at resolution time from the allow-list or the
	// verified token claims.
	AllowListAdmin bool
	// UserExists reports whether the user store returned a record for the principal.
	UserExists bool
	// PersistedAdmin is the stored admin flag; nil when the user has none or does not exist.
	PersistedAdmin *bool
}

// Evaluator decides whether a principal is an administrator.
type Evaluator interface {
	EvaluateAdmin(ctx context.Context, in AdminInput) (bool, error)
}

// DecideAdmin is the built-in admin rule: a persisted flag on an existing user decides, otherwise
// the resolution-time allow-list result does.
func DecideAdmin(in AdminInput) bool {
	if in.UserExists && in.PersistedAdmin != nil {
		return *in.PersistedAdmin
	}
	return in.AllowListAdmin
}

// StaticEvaluator applies DecideAdmin without a policy engine.
type StaticEvaluator struct{}

// EvaluateAdmin implements Evaluator.
func (StaticEvaluator) EvaluateAdmin(_ context.Context, in AdminInput) (bool, error) {
	return DecideAdmin(in), nil
}
