package graph

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ValidationSeverity indicates whether a validation finding blocks planning
// or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks planning
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Node     int                // node with the problem, -1 if not node-specific
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.Node < 0 {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] node %d: %s", e.Severity, e.Node, e.Message)
}

// ValidationWarning describes a non-blocking advisory finding.
type ValidationWarning struct {
	Node    int
	Message string
}

// ValidationResult bundles errors (blocking) and warnings (advisory).
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// OK reports whether there are no blocking errors.
func (r ValidationResult) OK() bool { return len(r.Errors) == 0 }

// weightTolerance is the relative difference between an edge weight and
// its length above which a mismatch is reported.
const weightTolerance = 1e-9

// Validate checks the graph and returns every finding. An empty slice means
// the graph is valid. It never mutates the graph.
func Validate(g *Graph) []ValidationError {
	return ValidateData(g.Positions(), g.Edges())
}

// ValidateData checks host node positions and an edge list.
func ValidateData(nodes []r3.Vec, edges []Edge) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validatePositions(nodes)...)
	errs = append(errs, validateEdges(nodes, edges)...)
	errs = append(errs, validateIsolated(nodes, edges)...)
	return errs
}

// ValidateAll runs Validate and separates errors from warnings.
func ValidateAll(g *Graph) ValidationResult {
	var result ValidationResult
	for _, e := range Validate(g) {
		if e.Severity == SeverityWarning {
			result.Warnings = append(result.Warnings, ValidationWarning{Node: e.Node, Message: e.Message})
		} else {
			result.Errors = append(result.Errors, e)
		}
	}
	return result
}

func finite(v r3.Vec) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// validatePositions rejects NaN or infinite coordinates.
func validatePositions(nodes []r3.Vec) []ValidationError {
	var errs []ValidationError
	for i, p := range nodes {
		if !finite(p) {
			errs = append(errs, ValidationError{
				Node:     i,
				Message:  fmt.Sprintf("position %v is not finite", p),
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateEdges checks endpoints, self loops, duplicates and weights. A
// weight that differs from the edge length is only a warning.
func validateEdges(nodes []r3.Vec, edges []Edge) []ValidationError {
	var errs []ValidationError
	seen := make(map[[2]int]bool, len(edges))

	for _, e := range edges {
		dangling := false
		for _, end := range [2]int{e.From, e.To} {
			if end < 0 || end >= len(nodes) {
				dangling = true
				errs = append(errs, ValidationError{
					Node:     -1,
					Message:  fmt.Sprintf("edge %d-%d references node %d, graph has %d nodes", e.From, e.To, end, len(nodes)),
					Severity: SeverityError,
				})
			}
		}

		if e.From == e.To {
			errs = append(errs, ValidationError{
				Node:     e.From,
				Message:  "self loop",
				Severity: SeverityError,
			})
			continue
		}

		k := e.key()
		if seen[k] {
			errs = append(errs, ValidationError{
				Node:     -1,
				Message:  fmt.Sprintf("duplicate edge %d-%d", k[0], k[1]),
				Severity: SeverityError,
			})
		}
		seen[k] = true

		if math.IsNaN(e.Weight) || e.Weight < 0 {
			errs = append(errs, ValidationError{
				Node:     -1,
				Message:  fmt.Sprintf("edge %d-%d has invalid weight %g", e.From, e.To, e.Weight),
				Severity: SeverityError,
			})
			continue
		}

		if dangling || !finite(nodes[e.From]) || !finite(nodes[e.To]) {
			continue
		}
		length := r3.Norm(r3.Sub(nodes[e.To], nodes[e.From]))
		if math.Abs(e.Weight-length) > weightTolerance*max(1, length) {
			errs = append(errs, ValidationError{
				Node:     -1,
				Message:  fmt.Sprintf("edge %d-%d weight %g differs from its length %g", e.From, e.To, e.Weight, length),
				Severity: SeverityWarning,
			})
		}
	}
	return errs
}

// validateIsolated warns about nodes that no edge touches. A graph with a
// single node is not reported.
func validateIsolated(nodes []r3.Vec, edges []Edge) []ValidationError {
	if len(nodes) < 2 {
		return nil
	}
	degree := make([]int, len(nodes))
	for _, e := range edges {
		if e.From >= 0 && e.From < len(nodes) {
			degree[e.From]++
		}
		if e.To >= 0 && e.To < len(nodes) {
			degree[e.To]++
		}
	}
	var errs []ValidationError
	for i, d := range degree {
		if d == 0 {
			errs = append(errs, ValidationError{
				Node:     i,
				Message:  "node is isolated (no edges)",
				Severity: SeverityWarning,
			})
		}
	}
	return errs
}
