// Package policy evaluates optional mission-access rules with OPA. When the
// stage is enabled it fails closed: no loaded bundle or an evaluation error
// means deny.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/rego"

	"github.com/lumora-edu/mentor-gateway/internal/config"
)

// Input is the data sent to OPA for evaluation.
type Input struct {
	Subject string `json:"subject"`
	Email   string `json:"email"`
	Mission string `json:"mission"`
	Hour    int    `json:"hour"`
	Day     string `json:"day"`
}

// Evaluator wraps a prepared rego query over the mission-access bundle.
type Evaluator struct {
	mu       sync.RWMutex
	prepared *rego.PreparedEvalQuery
	cfg      func() config.PolicyConfig
}

// NewEvaluator creates a policy evaluator. Call Load to compile the bundle.
func NewEvaluator(cfg func() config.PolicyConfig) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Enabled reports whether the policy stage participates in request handling.
func (e *Evaluator) Enabled() bool { return e.cfg().Enabled }

// Load compiles rego modules from the configured bundle path.
func (e *Evaluator) Load() error {
	cfg := e.cfg()
	modules, err := LoadRegoFiles(cfg.BundlePath)
	if err != nil {
		return fmt.Errorf("load rego files: %w", err)
	}
	if len(modules) == 0 {
		slog.Warn("no rego files found", "path", cfg.BundlePath)
		return nil
	}
	return e.LoadFromModules(modules)
}

// LoadFromModules compiles policies from in-memory module sources.
func (e *Evaluator) LoadFromModules(modules map[string]string) error {
	r := rego.New(
		rego.Query("[data.mentor.policy.allow, data.mentor.policy.reason]"),
		func() func(*rego.Rego) {
			mods := make([]func(*rego.Rego), 0, len(modules))
			for name, src := range modules {
				mods = append(mods, rego.Module(name, src))
			}
			return func(r *rego.Rego) {
				for _, m := range mods {
					m(r)
				}
			}
		}(),
	)

	prepared, err := r.PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("prepare rego: %w", err)
	}

	e.mu.Lock()
	e.prepared = &prepared
	e.mu.Unlock()

	slog.Info("mission policies loaded", "modules", len(modules))
	return nil
}

// Evaluate runs the policy against the input. The returned reason is for the
// server log only, never the client.
func (e *Evaluator) Evaluate(ctx context.Context, input Input) (bool, string, error) {
	e.mu.RLock()
	prepared := e.prepared
	e.mu.RUnlock()

	if prepared == nil {
		return false, "no policies loaded", nil
	}

	cfg := e.cfg()
	timeout := cfg.EvaluationTimeout
	if timeout == 0 {
		timeout = 100 * time.Millisecond
	}

	evalCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results, err := prepared.Eval(evalCtx, rego.EvalInput(input))
	if err != nil {
		return false, "policy evaluation error", err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, "no policy result", nil
	}

	pair, ok := results[0].Expressions[0].Value.([]interface{})
	if !ok || len(pair) != 2 {
		return false, "malformed policy result", nil
	}

	allow, _ := pair[0].(bool)
	reason, _ := pair[1].(string)
	return allow, reason, nil
}
