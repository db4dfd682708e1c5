// Package mission validates mission identifiers and the system instructions
// attached to them. The registry is a static, read-only table: it verifies
// shape and tamper-evidence fingerprints, it never looks up or rewrites the
// canonical instruction text.
package mission

import (
	"fmt"
	"strings"
)

// Kind classifies how a mission uses the model backend.
type Kind string

const (
	// Standalone missions have no model backend and must never carry a
	// system instruction.
	Standalone Kind = "standalone"

	// Instructed missions require a server-authored system instruction,
	// recognized by its fingerprint markers.
	Instructed Kind = "instructed"
)

// MaxInstructionChars bounds the accepted instruction blob.
const MaxInstructionChars = 12000

// Fingerprint markers every instructed-mission blob must contain. They are
// emitted by the content pipeline when canonical instructions are published;
// client-authored text will not carry them.
var requiredMarkers = []string{
	"[MENTOR-CANON v2]",
	"-- einde instructie --",
}

// Descriptor describes one mission in the catalog.
type Descriptor struct {
	ID   string
	Kind Kind
}

// ValidationResult reports whether a mission id / instruction pair is
// acceptable. Reason is set only on rejection.
type ValidationResult struct {
	Valid  bool
	Reason string
}

// Registry holds the mission catalog. Built once, never mutated.
type Registry struct {
	missions map[string]Descriptor
}

// NewRegistry builds a registry from an explicit descriptor list. Duplicate
// ids are a programming or catalog error and panic at startup rather than
// silently shadowing.
func NewRegistry(descriptors []Descriptor) *Registry {
	missions := make(map[string]Descriptor, len(descriptors))
	for _, d := range descriptors {
		if _, dup := missions[d.ID]; dup {
			panic(fmt.Sprintf("mission: duplicate id %q in catalog", d.ID))
		}
		missions[d.ID] = d
	}
	return &Registry{missions: missions}
}

// DefaultRegistry returns the built-in catalog. Replaced at boot by
// LoadCatalog when a database-backed catalog is configured.
func DefaultRegistry() *Registry {
	return NewRegistry(DefaultCatalog())
}

// DefaultCatalog is the built-in mission table. Adding a mission is a data
// change here (or a row in the missions table), never new control flow.
func DefaultCatalog() []Descriptor {
	return []Descriptor{
		{ID: "rekenen-basis", Kind: Instructed},
		{ID: "rekenen-breuken", Kind: Instructed},
		{ID: "taal-spelling", Kind: Instructed},
		{ID: "taal-begrijpend-lezen", Kind: Instructed},
		{ID: "wereld-topografie", Kind: Instructed},
		{ID: "mentor-vrij-gesprek", Kind: Instructed},
		{ID: "flitsen-tafels", Kind: Standalone},
		{ID: "flitsen-woorden", Kind: Standalone},
		{ID: "tekenen-vrij", Kind: Standalone},
	}
}

// RequiredMarkers exposes the fingerprint markers for authoring tooling.
func RequiredMarkers() []string {
	out := make([]string, len(requiredMarkers))
	copy(out, requiredMarkers)
	return out
}

// Known reports whether the mission id exists in the catalog.
func (r *Registry) Known(missionID string) bool {
	_, ok := r.missions[missionID]
	return ok
}

// Validate checks a mission id and its instruction blob against the catalog.
//
// Standalone missions must carry no instruction at all: a non-empty blob on a
// mission that should never have one is itself treated as smuggling. Instructed
// missions require the blob, bounded in length, containing every fingerprint
// marker.
func (r *Registry) Validate(missionID, instruction string) ValidationResult {
	d, ok := r.missions[missionID]
	if !ok {
		return ValidationResult{Reason: "unknown mission"}
	}

	switch d.Kind {
	case Standalone:
		if instruction != "" {
			return ValidationResult{Reason: "standalone mission does not accept an instruction"}
		}
		return ValidationResult{Valid: true}

	case Instructed:
		if instruction == "" {
			return ValidationResult{Reason: "instruction required"}
		}
		if len(instruction) > MaxInstructionChars {
			return ValidationResult{Reason: "instruction exceeds maximum length"}
		}
		for _, marker := range requiredMarkers {
			if !strings.Contains(instruction, marker) {
				return ValidationResult{Reason: "instruction fingerprint mismatch"}
			}
		}
		return ValidationResult{Valid: true}

	default:
		return ValidationResult{Reason: "unknown mission kind"}
	}
}
