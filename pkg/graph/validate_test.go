package graph

import (
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// squareNodes are the corners of a unit square in the z=0 plane.
func squareNodes() []r3.Vec {
	return []r3.Vec{{}, {X: 1}, {X: 1, Y: 1}, {Y: 1}}
}

// squareEdges is the square's perimeter with weights equal to lengths.
func squareEdges() []Edge {
	return []Edge{{0, 1, 1}, {1, 2, 1}, {2, 3, 1}, {3, 0, 1}}
}

// hasError returns true if errs contains at least one error-severity finding
// whose message contains substr.
func hasError(errs []ValidationError, substr string) bool {
	for _, e := range errs {
		if e.Severity == SeverityError && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// hasWarning returns true if errs contains a warning containing substr.
func hasWarning(errs []ValidationError, substr string) bool {
	for _, e := range errs {
		if e.Severity == SeverityWarning && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestValidateDataValid(t *testing.T) {
	errs := ValidateData(squareNodes(), squareEdges())
	if len(errs) != 0 {
		t.Fatalf("expected no findings, got %v", errs)
	}
}

func TestValidateDataFindings(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(nodes []r3.Vec, edges []Edge) ([]r3.Vec, []Edge)
		error   string
		warning string
	}{
		{
			name: "dangling endpoint",
			mutate: func(n []r3.Vec, e []Edge) ([]r3.Vec, []Edge) {
				return n, append(e, Edge{From: 2, To: 9, Weight: 1})
			},
			error: "references node 9",
		},
		{
			name: "self loop",
			mutate: func(n []r3.Vec, e []Edge) ([]r3.Vec, []Edge) {
				return n, append(e, Edge{From: 1, To: 1})
			},
			error: "self loop",
		},
		{
			name: "duplicate edge in reverse",
			mutate: func(n []r3.Vec, e []Edge) ([]r3.Vec, []Edge) {
				return n, append(e, Edge{From: 1, To: 0, Weight: 1})
			},
			error: "duplicate edge 0-1",
		},
		{
			name: "negative weight",
			mutate: func(n []r3.Vec, e []Edge) ([]r3.Vec, []Edge) {
				e[0].Weight = -1
				return n, e
			},
			error: "invalid weight",
		},
		{
			name: "nan weight",
			mutate: func(n []r3.Vec, e []Edge) ([]r3.Vec, []Edge) {
				e[2].Weight = math.NaN()
				return n, e
			},
			error: "invalid weight",
		},
		{
			name: "non-finite position",
			mutate: func(n []r3.Vec, e []Edge) ([]r3.Vec, []Edge) {
				n[3].Z = math.Inf(1)
				return n, e
			},
			error: "not finite",
		},
		{
			name: "weight differs from length",
			mutate: func(n []r3.Vec, e []Edge) ([]r3.Vec, []Edge) {
				e[1].Weight = 5
				return n, e
			},
			warning: "differs from its length",
		},
		{
			name: "isolated node",
			mutate: func(n []r3.Vec, e []Edge) ([]r3.Vec, []Edge) {
				return append(n, r3.Vec{X: 7}), e
			},
			warning: "isolated",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes, edges := tt.mutate(squareNodes(), squareEdges())
			errs := ValidateData(nodes, edges)
			if tt.error != "" && !hasError(errs, tt.error) {
				t.Errorf("expected error containing %q, got %v", tt.error, errs)
			}
			if tt.warning != "" {
				if !hasWarning(errs, tt.warning) {
					t.Errorf("expected warning containing %q, got %v", tt.warning, errs)
				}
				for _, e := range errs {
					if e.Severity == SeverityError {
						t.Errorf("unexpected error %v", e)
					}
				}
			}
		})
	}
}

func TestValidateSingleNodeIsNotIsolated(t *testing.T) {
	if errs := ValidateData([]r3.Vec{{X: 1}}, nil); len(errs) != 0 {
		t.Fatalf("expected no findings, got %v", errs)
	}
}

func TestValidateAllSeparatesSeverities(t *testing.T) {
	g := newTestGraph(t, append(squareNodes(), r3.Vec{X: 9}), squareEdges())
	if err := g.AddEdge(0, 2, 3); err != nil {
		t.Fatal(err)
	}

	result := ValidateAll(g)
	if !result.OK() {
		t.Fatalf("expected no errors, got %v", result.Errors)
	}
	if len(result.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", result.Warnings)
	}
	if result.Warnings[0].Node != -1 || result.Warnings[1].Node != 4 {
		t.Errorf("unexpected warning nodes %+v", result.Warnings)
	}
}

func TestValidationErrorFormat(t *testing.T) {
	e := ValidationError{Node: 3, Message: "self loop", Severity: SeverityError}
	if got := e.Error(); got != "[error] node 3: self loop" {
		t.Errorf("Error() = %q", got)
	}
	e = ValidationError{Node: -1, Message: "duplicate edge 0-1", Severity: SeverityWarning}
	if got := e.Error(); got != "[warning] duplicate edge 0-1" {
		t.Errorf("Error() = %q", got)
	}
}

func TestFromDataRejectsErrors(t *testing.T) {
	_, err := FromData(newTestDevice(), squareNodes(), append(squareEdges(), Edge{From: 0, To: 0}))
	if err == nil || !strings.Contains(err.Error(), "self loop") {
		t.Fatalf("expected self loop error, got %v", err)
	}
}
