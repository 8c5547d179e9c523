package engine

import (
	"fmt"
	"math"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/georoute/pkg/geometry"
	"github.com/chazu/georoute/pkg/kernel"
	"github.com/chazu/georoute/pkg/planning"
)

// maxGridNodes bounds the nodes a single grid call may create.
const maxGridNodes = 1 << 20

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms scene Lisp source code before passing it to
// zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: start-point -> start_point
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				result = append(result, '"')
				result = append(result, kwPrefix...)
				result = append(result, b[i+1:j]...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Only when the hyphen sits between identifier characters; a minus
		// operator is left alone.
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVec3 wraps a point or direction.
type sexpVec3 struct {
	vec r3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpNodeRef refers to a scene node by index.
type sexpNodeRef struct {
	index int
	name  string
	pos   r3.Vec
}

func (n *sexpNodeRef) SexpString(ps *zygo.PrintState) string {
	if n.name != "" {
		return fmt.Sprintf("(node %q)", n.name)
	}
	return fmt.Sprintf("(node #%d)", n.index)
}
func (n *sexpNodeRef) Type() *zygo.RegisteredType { return nil }

// sexpBox wraps an axis-aligned box shape.
type sexpBox struct {
	box geometry.AxisAlignedBoundingBox
}

func (b *sexpBox) SexpString(ps *zygo.PrintState) string {
	lo, hi := b.box.MinBound, b.box.MaxBound
	return fmt.Sprintf("(aabb (vec3 %g %g %g) (vec3 %g %g %g))", lo.X, lo.Y, lo.Z, hi.X, hi.Y, hi.Z)
}
func (b *sexpBox) Type() *zygo.RegisteredType { return nil }

// sexpPoints wraps a point set shape.
type sexpPoints struct {
	points []r3.Vec
}

func (p *sexpPoints) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(points #%d)", len(p.points))
}
func (p *sexpPoints) Type() *zygo.RegisteredType { return nil }

// sexpSolid wraps a kernel solid.
type sexpSolid struct {
	solid kernel.Solid
	desc  string
}

func (s *sexpSolid) SexpString(ps *zygo.PrintState) string {
	return "(" + s.desc + ")"
}
func (s *sexpSolid) Type() *zygo.RegisteredType { return nil }

// sexpObstacleRef refers to a scene obstacle by index.
type sexpObstacleRef struct {
	index int
	name  string
}

func (o *sexpObstacleRef) SexpString(ps *zygo.PrintState) string {
	if o.name != "" {
		return fmt.Sprintf("(obstacle %q)", o.name)
	}
	return fmt.Sprintf("(obstacle #%d)", o.index)
}
func (o *sexpObstacleRef) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value: a flag.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toBool accepts a boolean, a number (non-zero is true) or a bare keyword
// flag (true).
func toBool(s zygo.Sexp) (bool, error) {
	switch v := s.(type) {
	case *zygo.SexpBool:
		return v.Val, nil
	case *zygo.SexpInt:
		return v.Val != 0, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return true, nil
		}
	}
	return false, fmt.Errorf("expected boolean, got %T (%s)", s, s.SexpString(nil))
}

// toVec3 extracts a point from a vec3 or a node reference.
func toVec3(s zygo.Sexp) (r3.Vec, error) {
	switch v := s.(type) {
	case *sexpVec3:
		return v.vec, nil
	case *sexpNodeRef:
		return v.pos, nil
	}
	return r3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// toSolid extracts a kernel solid.
func toSolid(s zygo.Sexp) (*sexpSolid, error) {
	if v, ok := s.(*sexpSolid); ok {
		return v, nil
	}
	return nil, fmt.Errorf("expected solid, got %T (%s)", s, s.SexpString(nil))
}

// vec3Args reads a point given either as one vec3 or as three numbers.
func vec3Args(args []zygo.Sexp) (r3.Vec, error) {
	switch len(args) {
	case 1:
		return toVec3(args[0])
	case 3:
		var c [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return r3.Vec{}, err
			}
			c[i] = f
		}
		return r3.Vec{X: c[0], Y: c[1], Z: c[2]}, nil
	}
	return r3.Vec{}, fmt.Errorf("expected a vec3 or 3 numbers, got %d arguments", len(args))
}

// positiveKW reads an optional positive number keyword.
func positiveKW(pa kwArgs, key string, def float64) (float64, error) {
	v, ok := pa.kw[key]
	if !ok {
		return def, nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if f <= 0 || math.IsNaN(f) {
		return 0, fmt.Errorf("%s must be positive, got %g", key, f)
	}
	return f, nil
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// flattenArgs expands list and array arguments in place.
func flattenArgs(args []zygo.Sexp) []zygo.Sexp {
	var out []zygo.Sexp
	for _, a := range args {
		switch a.(type) {
		case *zygo.SexpPair, *zygo.SexpArray:
			items, err := sexpListToSlice(a)
			if err == nil {
				out = append(out, items...)
				continue
			}
		}
		out = append(out, a)
	}
	return out
}

// gridAxis returns the number of lattice steps from lo to hi.
func gridAxis(lo, hi, step float64) int {
	return int(math.Floor((hi-lo)/step+1e-9)) + 1
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the scene builtins into a zygomys environment.
// The builtins populate the provided Scene during evaluation; solids are
// built with k.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, scene *Scene, k kernel.Kernel) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		v, err := vec3Args(args)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: %w", err)
		}
		return &sexpVec3{vec: v}, nil
	})

	// -----------------------------------------------------------------------
	// (node "dock" (vec3 0 0 0))  or  (node (vec3 1 0 0))
	// -----------------------------------------------------------------------
	env.AddFunction("node", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) == 0 {
			return zygo.SexpNull, fmt.Errorf("node requires a position")
		}
		var nodeName string
		if s, ok := args[0].(*zygo.SexpStr); ok {
			nodeName = s.S
			args = args[1:]
		}
		p, err := vec3Args(args)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("node: position: %w", err)
		}
		i, err := scene.addNode(nodeName, p)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("node: %w", err)
		}
		return &sexpNodeRef{index: i, name: nodeName, pos: p}, nil
	})

	// -----------------------------------------------------------------------
	// (ref "dock")
	// -----------------------------------------------------------------------
	env.AddFunction("ref", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("ref requires a node name")
		}
		nodeName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("ref: name: %w", err)
		}
		i, ok := scene.Lookup(nodeName)
		if !ok {
			return zygo.SexpNull, fmt.Errorf("ref: no node named %q", nodeName)
		}
		return &sexpNodeRef{index: i, name: nodeName, pos: scene.Nodes[i].Position}, nil
	})

	// -----------------------------------------------------------------------
	// (grid :min (vec3 0 0 0) :max (vec3 4 4 0) :step 1)
	// -----------------------------------------------------------------------
	env.AddFunction("grid", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		minV, ok := pa.kw["min"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("grid requires :min")
		}
		maxV, ok := pa.kw["max"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("grid requires :max")
		}
		lo, err := toVec3(minV)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("grid: min: %w", err)
		}
		hi, err := toVec3(maxV)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("grid: max: %w", err)
		}
		step, err := positiveKW(pa, "step", 1)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("grid: %w", err)
		}
		if hi.X < lo.X || hi.Y < lo.Y || hi.Z < lo.Z {
			return zygo.SexpNull, fmt.Errorf("grid: max must not be below min")
		}

		nx, ny, nz := gridAxis(lo.X, hi.X, step), gridAxis(lo.Y, hi.Y, step), gridAxis(lo.Z, hi.Z, step)
		if float64(nx)*float64(ny)*float64(nz) > maxGridNodes {
			return zygo.SexpNull, fmt.Errorf("grid: %dx%dx%d nodes exceeds the limit of %d", nx, ny, nz, maxGridNodes)
		}
		for i := 0; i < nx; i++ {
			for j := 0; j < ny; j++ {
				for l := 0; l < nz; l++ {
					p := r3.Vec{
						X: lo.X + float64(i)*step,
						Y: lo.Y + float64(j)*step,
						Z: lo.Z + float64(l)*step,
					}
					if _, err := scene.addNode("", p); err != nil {
						return zygo.SexpNull, fmt.Errorf("grid: %w", err)
					}
				}
			}
		}
		return &zygo.SexpInt{Val: int64(nx * ny * nz)}, nil
	})

	// -----------------------------------------------------------------------
	// (aabb (vec3 0 0 0) (vec3 1 1 1))
	// -----------------------------------------------------------------------
	env.AddFunction("aabb", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("aabb requires two corners, got %d arguments", len(args))
		}
		a, err := toVec3(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("aabb: %w", err)
		}
		b, err := toVec3(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("aabb: %w", err)
		}
		return &sexpBox{box: geometry.NewAxisAlignedBoundingBox(a, b)}, nil
	})

	// -----------------------------------------------------------------------
	// (points (vec3 0 0 0) (vec3 1 0 0) ...)
	// -----------------------------------------------------------------------
	env.AddFunction("points", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		items := flattenArgs(args)
		pts := make([]r3.Vec, 0, len(items))
		for i, a := range items {
			p, err := toVec3(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("points: entry %d: %w", i, err)
			}
			pts = append(pts, p)
		}
		return &sexpPoints{points: pts}, nil
	})

	// -----------------------------------------------------------------------
	// Solids: (box 1 2 3) (sphere 1) (cylinder :height 2 :radius 0.5)
	// -----------------------------------------------------------------------
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		size, err := vec3Args(args)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("box: size: %w", err)
		}
		if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
			return zygo.SexpNull, fmt.Errorf("box: dimensions must be positive")
		}
		return &sexpSolid{
			solid: k.Box(size.X, size.Y, size.Z),
			desc:  fmt.Sprintf("box %g %g %g", size.X, size.Y, size.Z),
		}, nil
	})

	env.AddFunction("sphere", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("sphere requires a radius")
		}
		r, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("sphere: radius: %w", err)
		}
		if r <= 0 {
			return zygo.SexpNull, fmt.Errorf("sphere: radius must be positive, got %g", r)
		}
		return &sexpSolid{solid: k.Sphere(r), desc: fmt.Sprintf("sphere %g", r)}, nil
	})

	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		h, err := positiveKW(pa, "height", 0)
		if err == nil && h == 0 {
			err = fmt.Errorf("requires :height")
		}
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: %w", err)
		}
		r, err := positiveKW(pa, "radius", 0)
		if err == nil && r == 0 {
			err = fmt.Errorf("requires :radius")
		}
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: %w", err)
		}
		segments := 0
		if v, ok := pa.kw["segments"]; ok {
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("cylinder: segments: %w", err)
			}
			segments = int(f)
		}
		return &sexpSolid{
			solid: k.Cylinder(h, r, segments),
			desc:  fmt.Sprintf("cylinder :height %g :radius %g", h, r),
		}, nil
	})

	// -----------------------------------------------------------------------
	// (translate solid (vec3 1 0 0))  (rotate solid (vec3 0 0 90))
	// -----------------------------------------------------------------------
	env.AddFunction("translate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 2 {
			return zygo.SexpNull, fmt.Errorf("translate requires a solid and an offset")
		}
		s, err := toSolid(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("translate: %w", err)
		}
		d, err := vec3Args(args[1:])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("translate: offset: %w", err)
		}
		return &sexpSolid{
			solid: k.Translate(s.solid, d.X, d.Y, d.Z),
			desc:  fmt.Sprintf("translate (%s) %g %g %g", s.desc, d.X, d.Y, d.Z),
		}, nil
	})

	env.AddFunction("rotate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 2 {
			return zygo.SexpNull, fmt.Errorf("rotate requires a solid and XYZ angles in degrees")
		}
		s, err := toSolid(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rotate: %w", err)
		}
		a, err := vec3Args(args[1:])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rotate: angles: %w", err)
		}
		return &sexpSolid{
			solid: k.Rotate(s.solid, a.X, a.Y, a.Z),
			desc:  fmt.Sprintf("rotate (%s) %g %g %g", s.desc, a.X, a.Y, a.Z),
		}, nil
	})

	// -----------------------------------------------------------------------
	// (union a b ...) (difference a b ...) (intersection a b ...)
	// -----------------------------------------------------------------------
	boolean := func(op string, combine func(a, b kernel.Solid) kernel.Solid) {
		env.AddFunction(op, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) < 2 {
				return zygo.SexpNull, fmt.Errorf("%s requires at least 2 solids, got %d", op, len(args))
			}
			acc, err := toSolid(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: operand 1: %w", op, err)
			}
			out := acc.solid
			for i, a := range args[1:] {
				s, err := toSolid(a)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: operand %d: %w", op, i+2, err)
				}
				out = combine(out, s.solid)
			}
			return &sexpSolid{solid: out, desc: fmt.Sprintf("%s #%d", op, len(args))}, nil
		})
	}
	boolean("union", k.Union)
	boolean("difference", k.Difference)
	boolean("intersection", k.Intersection)

	// -----------------------------------------------------------------------
	// (obstacle "crate" shape)  or  (obstacle shape)
	// -----------------------------------------------------------------------
	env.AddFunction("obstacle", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) == 0 {
			return zygo.SexpNull, fmt.Errorf("obstacle requires a shape")
		}
		var obsName string
		if s, ok := args[0].(*zygo.SexpStr); ok {
			obsName = s.S
			args = args[1:]
		}
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("obstacle requires exactly one shape")
		}
		o := SceneObstacle{Name: obsName}
		switch v := args[0].(type) {
		case *sexpBox:
			o.Kind, o.Box = ObstacleBox, v.box
		case *sexpPoints:
			o.Kind, o.Points = ObstaclePoints, v.points
			if len(v.points) == 0 {
				scene.Warnings = append(scene.Warnings, EvalWarning{
					Message: fmt.Sprintf("obstacle %q has no points and blocks nothing", obsName),
				})
			}
		case *sexpSolid:
			o.Kind, o.Solid = ObstacleSolid, v.solid
			if o.Name == "" {
				o.Name = v.desc
			}
		default:
			return zygo.SexpNull, fmt.Errorf("obstacle: expected aabb, points or solid, got %T (%s)",
				args[0], args[0].SexpString(nil))
		}
		scene.Obstacles = append(scene.Obstacles, o)
		return &sexpObstacleRef{index: len(scene.Obstacles) - 1, name: obsName}, nil
	})

	// -----------------------------------------------------------------------
	// (planner :object-radius 0.1 :max-edge-distance 1.5 :spatial-index true)
	// -----------------------------------------------------------------------
	env.AddFunction("planner", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if scene.Planner != nil {
			scene.Warnings = append(scene.Warnings, EvalWarning{Message: "planner settings given more than once; the last call wins"})
		}
		ps := &PlannerSettings{
			ObjectRadius:    planning.DefaultObjectRadius,
			MaxEdgeDistance: planning.DefaultMaxEdgeDistance,
		}
		for _, setting := range []struct {
			key string
			dst *float64
		}{
			{"object-radius", &ps.ObjectRadius},
			{"max-edge-distance", &ps.MaxEdgeDistance},
		} {
			key, dst := setting.key, setting.dst
			v, ok := pa.kw[key]
			if !ok {
				continue
			}
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("planner: %s: %w", key, err)
			}
			if f < 0 || math.IsNaN(f) {
				return zygo.SexpNull, fmt.Errorf("planner: %s must not be negative, got %g", key, f)
			}
			*dst = f
		}
		if v, ok := pa.kw["spatial-index"]; ok {
			b, err := toBool(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("planner: spatial-index: %w", err)
			}
			ps.SpatialIndex = b
		}
		scene.Planner = ps
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (query "name" :from (vec3 0 0 0) :to (ref "dock"))
	// (query (vec3 0 0 0) (vec3 4 0 0))
	// -----------------------------------------------------------------------
	env.AddFunction("query", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		q := Query{}
		pos := pa.positional
		if len(pos) > 0 {
			if s, ok := pos[0].(*zygo.SexpStr); ok {
				q.Name = s.S
				pos = pos[1:]
			}
		}
		from, hasFrom := pa.kw["from"]
		to, hasTo := pa.kw["to"]
		if !hasFrom && len(pos) > 0 {
			from, hasFrom, pos = pos[0], true, pos[1:]
		}
		if !hasTo && len(pos) > 0 {
			to, hasTo = pos[0], true
		}
		if !hasFrom || !hasTo {
			return zygo.SexpNull, fmt.Errorf("query requires a start and a goal")
		}
		var err error
		if q.Start, err = toVec3(from); err != nil {
			return zygo.SexpNull, fmt.Errorf("query: from: %w", err)
		}
		if q.Goal, err = toVec3(to); err != nil {
			return zygo.SexpNull, fmt.Errorf("query: to: %w", err)
		}
		scene.Queries = append(scene.Queries, q)
		return &zygo.SexpInt{Val: int64(len(scene.Queries) - 1)}, nil
	})
}
