package policy

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/lumora-edu/mentor-gateway/internal/config"
)

func testCfg() func() config.PolicyConfig {
	return func() config.PolicyConfig {
		return config.PolicyConfig{
			Enabled:           true,
			EvaluationTimeout: 100 * time.Millisecond,
		}
	}
}

const testModule = `
package mentor.policy

import rego.v1

default allow := false
default reason := "mission not permitted"

allow if {
	input.mission != "mentor-vrij-gesprek"
}

allow if {
	input.mission == "mentor-vrij-gesprek"
	input.hour >= 8
	input.hour < 18
}

reason := "vrij gesprek alleen tijdens schooluren" if {
	input.mission == "mentor-vrij-gesprek"
	not allow
}
`

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	e := NewEvaluator(testCfg())
	if err := e.LoadFromModules(map[string]string{"mentor.rego": testModule}); err != nil {
		t.Fatalf("LoadFromModules: %v", err)
	}
	return e
}

func TestEvaluate_Allow(t *testing.T) {
	e := newTestEvaluator(t)
	allow, _, err := e.Evaluate(context.Background(), Input{
		Subject: "user-1",
		Mission: "rekenen-basis",
		Hour:    22,
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !allow {
		t.Error("expected allow for unrestricted mission")
	}
}

func TestEvaluate_DenyOutsideHours(t *testing.T) {
	e := newTestEvaluator(t)
	allow, reason, err := e.Evaluate(context.Background(), Input{
		Subject: "user-1",
		Mission: "mentor-vrij-gesprek",
		Hour:    22,
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if allow {
		t.Error("expected deny outside school hours")
	}
	if reason != "vrij gesprek alleen tijdens schooluren" {
		t.Errorf("reason = %q", reason)
	}
}

// The bundle shipped under configs/policies must compile and evaluate as-is:
// a parse failure there aborts gateway startup when the stage is enabled.
func TestLoad_ShippedBundle(t *testing.T) {
	e := NewEvaluator(func() config.PolicyConfig {
		return config.PolicyConfig{
			Enabled:           true,
			BundlePath:        filepath.Join("..", "..", "configs", "policies"),
			EvaluationTimeout: 100 * time.Millisecond,
		}
	})
	if err := e.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	allow, _, err := e.Evaluate(context.Background(), Input{
		Subject: "user-1",
		Mission: "rekenen-basis",
		Hour:    22,
		Day:     "Sunday",
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !allow {
		t.Error("expected allow for curriculum mission")
	}

	allow, reason, err := e.Evaluate(context.Background(), Input{
		Subject: "user-1",
		Mission: "mentor-vrij-gesprek",
		Hour:    10,
		Day:     "Saturday",
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if allow {
		t.Error("expected deny for free conversation on a weekend")
	}
	if reason != "vrij gesprek alleen tijdens schooluren" {
		t.Errorf("reason = %q", reason)
	}
}

func TestEvaluate_NoBundleFailsClosed(t *testing.T) {
	e := NewEvaluator(testCfg())
	allow, reason, err := e.Evaluate(context.Background(), Input{Mission: "rekenen-basis"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if allow {
		t.Error("expected deny when no policies are loaded")
	}
	if reason != "no policies loaded" {
		t.Errorf("reason = %q", reason)
	}
}
