package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"go.uber.org/zap"
)

const adminQuery = "data.bikecare.admin.allow"

// DefaultAdminPolicy mirrors DecideAdmin.
const DefaultAdminPolicy = `package bikecare.admin

default allow := false

persisted_decides if {
	input.user.exists
	input.user.admin_flag_set
}

allow if {
	persisted_decides
	input.user.is_admin
}

allow if {
	not persisted_decides
	input.principal.is_admin
}
`

// OPAEvaluator evaluates the admin policy with OPA Rego. The query is prepared once; evaluation
// errors fall back to DecideAdmin so a broken policy never grants or denies more than the
// built-in rule.
type OPAEvaluator struct {
	module string
	log    *zap.Logger

	once     sync.Once
	prepared rego.PreparedEvalQuery
	prepErr  error
}

// NewOPAEvaluator returns an evaluator for the given Rego module. An empty module uses
// DefaultAdminPolicy.
func NewOPAEvaluator(module string, logger *zap.Logger) *OPAEvaluator {
	if module == "" {
		module = DefaultAdminPolicy
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OPAEvaluator{module: module, log: logger}
}

func (e *OPAEvaluator) prepare(ctx context.Context) (rego.PreparedEvalQuery, error) {
	e.once.Do(func() {
		compiler, err := ast.CompileModules(map[string]string{"admin.rego": e.module})
		if err != nil {
			e.prepErr = fmt.Errorf("compile admin policy: %w", err)
			return
		}
		e.prepared, e.prepErr = rego.New(
			rego.Query(adminQuery),
			rego.Compiler(compiler),
		).PrepareForEval(ctx)
		if e.prepErr != nil {
			e.prepErr = fmt.Errorf("prepare admin policy: %w", e.prepErr)
		}
	})
	return e.prepared, e.prepErr
}

// HealthCheck verifies that the policy compiles and evaluates on a minimal input.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.eval(ctx, AdminInput{})
	return err
}

// EvaluateAdmin implements Evaluator. On policy failure it logs and returns DecideAdmin(in) with
// a nil error.
func (e *OPAEvaluator) EvaluateAdmin(ctx context.Context, in AdminInput) (bool, error) {
	allow, err := e.eval(ctx, in)
	if err != nil {
		e.log.Warn("admin policy evaluation failed, using built-in rule", zap.Error(err))
		return DecideAdmin(in), nil
	}
	return allow, nil
}

func (e *OPAEvaluator) eval(ctx context.Context, in AdminInput) (bool, error) {
	pq, err := e.prepare(ctx)
	if err != nil {
		return false, err
	}
	rs, err := pq.Eval(ctx, rego.EvalInput(buildInput(in)))
	if err != nil {
		return false, fmt.Errorf("eval admin policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, fmt.Errorf("admin policy returned no result")
	}
	v, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("admin policy returned %T, want bool", rs[0].Expressions[0].Value)
	}
	return v, nil
}

func buildInput(in AdminInput) map[string]interface{} {
	user := map[string]interface{}{
		"exists":         in.UserExists,
		"admin_flag_set": in.PersistedAdmin != nil,
		"is_admin":       false,
	}
	if in.PersistedAdmin != nil {
		user["is_admin"] = *in.PersistedAdmin
	}
	return map[string]interface{}{
		"principal": map[string]interface{}{
			"source":   in.Source,
			"is_admin": in.AllowListAdmin,
		},
		"user": user,
	}
}
