// Package engine evaluates scene scripts. It wraps zygomys in a sandboxed
// environment and produces a Scene (planning nodes, obstacles, planner
// settings and path queries) from user source code.
package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/georoute/pkg/config"
	"github.com/chazu/georoute/pkg/console"
	"github.com/chazu/georoute/pkg/kernel"
	"github.com/chazu/georoute/pkg/kernel/sdfx"
)

// EvalTimeout is the default limit for a single evaluation.
const EvalTimeout = 5 * time.Second

var (
	// ErrTimeout is returned when a script runs past the engine timeout.
	ErrTimeout = errors.New("evaluation timed out")
	// ErrSuperseded is returned when a later Evaluate started before this
	// one finished.
	ErrSuperseded = errors.New("evaluation superseded by newer request")
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// EvalWarning represents a non-fatal warning produced during evaluation.
type EvalWarning struct {
	Line    int
	Col     int
	Message string
}

// EvalResult bundles the full output of an evaluation.
type EvalResult struct {
	Scene    *Scene
	Errors   []EvalError
	Warnings []EvalWarning
}

// Engine wraps the zygomys interpreter for scene evaluation.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment for determinism.
type Engine struct {
	mu         sync.Mutex
	generation uint64

	kernel  kernel.Kernel
	timeout time.Duration
	log     *console.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithKernel sets the kernel used by the solid builtins.
func WithKernel(k kernel.Kernel) Option {
	return func(e *Engine) { e.kernel = k }
}

// WithTimeout sets the evaluation time limit. Non-positive values are
// ignored.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *console.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// FromConfig applies the engine section of a configuration. The kernel is
// an sdfx kernel with the configured mesh resolution.
func FromConfig(c config.Engine) Option {
	return func(e *Engine) {
		WithTimeout(time.Duration(c.Timeout))(e)
		e.kernel = sdfx.New(sdfx.WithMeshCells(c.MeshCells))
	}
}

// NewEngine creates a new Engine instance.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{timeout: EvalTimeout, log: console.Nop()}
	for _, o := range opts {
		o(e)
	}
	if e.kernel == nil {
		e.kernel = sdfx.New()
	}
	return e
}

// Kernel returns the kernel solids are built with.
func (e *Engine) Kernel() kernel.Kernel { return e.kernel }

// Evaluate takes Lisp source code and produces a new Scene.
// Each call creates a fresh zygomys sandbox for deterministic evaluation.
//
// Return semantics:
//   - On success: returns scene + nil errors + nil error
//   - On parse/eval failure: returns nil scene + eval errors + nil error
//   - On fatal failure (timeout, panic): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*Scene, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalOutcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalOutcome{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		s, evalErrs, err := e.evaluate(source)
		ch <- evalOutcome{scene: s, errors: evalErrs, err: err}
	}()

	s, evalErrs, err := e.await(ch, gen)
	switch {
	case err != nil:
		e.log.Errorf("engine: %v", err)
	case len(evalErrs) > 0:
		e.log.Warningf("engine: %d evaluation error(s), first: %v", len(evalErrs), evalErrs[0])
	default:
		e.log.Debugf("engine: scene with %d nodes, %d obstacles, %d queries",
			len(s.Nodes), len(s.Obstacles), len(s.Queries))
	}
	return s, evalErrs, err
}

// evalOutcome carries a sandbox's result back to Evaluate.
type evalOutcome struct {
	scene  *Scene
	errors []EvalError
	err    error
}

// await returns the outcome sent on ch for generation gen. A sandbox that
// outlives the timeout keeps running; its outcome lands in the buffered
// channel and is dropped.
func (e *Engine) await(ch <-chan evalOutcome, gen uint64) (*Scene, []EvalError, error) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	select {
	case out := <-ch:
		e.mu.Lock()
		current := e.generation
		e.mu.Unlock()
		if gen != current {
			return nil, nil, ErrSuperseded
		}
		return out.scene, out.errors, out.err
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("%w after %s", ErrTimeout, e.timeout)
	}
}

// EvaluateResult is Evaluate with its outputs bundled.
func (e *Engine) EvaluateResult(source string) (EvalResult, error) {
	s, evalErrs, err := e.Evaluate(source)
	if err != nil {
		return EvalResult{}, err
	}
	res := EvalResult{Scene: s, Errors: evalErrs}
	if s != nil {
		res.Warnings = s.Warnings
	}
	return res, nil
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string) (*Scene, []EvalError, error) {
	// Empty source is a valid program that produces an empty scene.
	if strings.TrimSpace(source) == "" {
		return NewScene(), nil, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	scene := NewScene()
	registerBuiltins(env, scene, e.kernel)

	err := env.LoadString(preprocessSource(source))
	if err != nil {
		return nil, parseZygomysError(err), nil
	}

	_, err = env.Run()
	if err != nil {
		return nil, parseZygomysError(err), nil
	}

	return scene, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	// zygomys formats parse errors as "Error on line N: <details>\n"
	if m := linePattern.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
	}

	if m := linePatternShort.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
	}

	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
