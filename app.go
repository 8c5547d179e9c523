package main

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/georoute/pkg/config"
	"github.com/chazu/georoute/pkg/console"
	"github.com/chazu/georoute/pkg/device"
	"github.com/chazu/georoute/pkg/engine"
	"github.com/chazu/georoute/pkg/geometry"
	"github.com/chazu/georoute/pkg/tessellate"
)

// ErrUnknownHandle is returned for handles that name no live geometry.
var ErrUnknownHandle = errors.New("app: unknown geometry handle")

// colorPalette is a default palette used to assign distinct colors to meshes.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// App is the host-facing surface. Geometries live on the device and are
// addressed by opaque handles; coordinates cross the boundary as flat
// float32 arrays.
type App struct {
	cfg    config.Config
	log    *console.Logger
	dev    *device.Device
	engine *engine.Engine

	mu         sync.Mutex
	geometries map[string]geometry.Geometry3D
	scene      []string // handles created by the last Evaluate
}

// hostGeometry is a geometry the App can transform and free.
type hostGeometry interface {
	geometry.Geometry3D
	geometry.Transformer
	Release()
}

// MeshData is the JSON-serializable mesh format sent to the host.
type MeshData struct {
	Handle   string    `json:"handle"`
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	PartName string    `json:"partName"`
	Color    string    `json:"color"`
}

// EvalErrorData is a JSON-serializable eval error for the host.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// EvalResult is the full result of evaluating a scene script.
type EvalResult struct {
	Meshes   []MeshData      `json:"meshes"`
	Errors   []EvalErrorData `json:"errors"`
	Warnings []EvalErrorData `json:"warnings"`
}

// BoundsData describes the extent of a geometry.
type BoundsData struct {
	Name   string     `json:"name,omitempty"`
	Min    [3]float64 `json:"min"`
	Max    [3]float64 `json:"max"`
	Center [3]float64 `json:"center"`
	Empty  bool       `json:"empty,omitempty"`
}

// PathData is the answer to one scene query.
type PathData struct {
	Name      string       `json:"name,omitempty"`
	Start     [3]float64   `json:"start"`
	Goal      [3]float64   `json:"goal"`
	Found     bool         `json:"found"`
	Length    float64      `json:"length"`
	Waypoints [][3]float64 `json:"waypoints"`
}

// PlanResult is the result of planning every query of a scene script.
type PlanResult struct {
	Paths    []PathData      `json:"paths"`
	Errors   []EvalErrorData `json:"errors"`
	Warnings []EvalErrorData `json:"warnings"`
}

// SceneBoundsResult lists the extent of a scene's nodes and obstacles.
type SceneBoundsResult struct {
	Nodes     BoundsData      `json:"nodes"`
	Obstacles []BoundsData    `json:"obstacles"`
	Errors    []EvalErrorData `json:"errors"`
}

// NewApp creates an App from a validated configuration.
func NewApp(cfg config.Config, log *console.Logger) *App {
	if log == nil {
		log = console.Nop()
	}
	return &App{
		cfg:        cfg,
		log:        log,
		dev:        device.New(device.FromConfig(cfg.Device), device.WithLogger(log)),
		engine:     engine.NewEngine(engine.FromConfig(cfg.Engine), engine.WithLogger(log)),
		geometries: make(map[string]geometry.Geometry3D),
	}
}

// Device returns the device geometries are allocated on.
func (a *App) Device() *device.Device { return a.dev }

// ---------------------------------------------------------------------------
// Host array marshalling
// ---------------------------------------------------------------------------

// vecsFromFloat32 reads xyz triples. float32 widens to float64 exactly, so
// the round trip through vecsToFloat32 is lossless for host data.
func vecsFromFloat32(flat []float32) ([]r3.Vec, error) {
	if len(flat)%3 != 0 {
		return nil, fmt.Errorf("app: coordinate array length %d is not a multiple of 3", len(flat))
	}
	return lo.Map(lo.Chunk(flat, 3), func(c []float32, _ int) r3.Vec {
		return r3.Vec{X: float64(c[0]), Y: float64(c[1]), Z: float64(c[2])}
	}), nil
}

func vecsToFloat32(vs []r3.Vec) []float32 {
	return lo.FlatMap(vs, func(v r3.Vec, _ int) []float32 {
		return []float32{float32(v.X), float32(v.Y), float32(v.Z)}
	})
}

func trianglesFromIndices(indices []uint32, vertexCount int) ([]geometry.Triangle, error) {
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("app: index array length %d is not a multiple of 3", len(indices))
	}
	if i, bad := lo.Find(indices, func(i uint32) bool { return int(i) >= vertexCount }); bad {
		return nil, fmt.Errorf("app: index %d out of range for %d vertices", i, vertexCount)
	}
	return lo.Map(lo.Chunk(indices, 3), func(c []uint32, _ int) geometry.Triangle {
		return geometry.Triangle{int32(c[0]), int32(c[1]), int32(c[2])}
	}), nil
}

func toArray(v r3.Vec) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

func fromArray(a [3]float64) r3.Vec { return r3.Vec{X: a[0], Y: a[1], Z: a[2]} }

func boundsOf(name string, g geometry.Bounded, empty bool) BoundsData {
	if empty {
		return BoundsData{Name: name, Empty: true}
	}
	box := g.GetAxisAlignedBoundingBox()
	return BoundsData{
		Name:   name,
		Min:    toArray(box.MinBound),
		Max:    toArray(box.MaxBound),
		Center: toArray(g.GetCenter()),
	}
}

// ---------------------------------------------------------------------------
// Geometry handles
// ---------------------------------------------------------------------------

func (a *App) register(g geometry.Geometry3D) string {
	h := uuid.NewString()
	a.mu.Lock()
	a.geometries[h] = g
	a.mu.Unlock()
	return h
}

func (a *App) lookup(handle string) (hostGeometry, error) {
	a.mu.Lock()
	g, ok := a.geometries[handle]
	a.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHandle, handle)
	}
	hg, ok := g.(hostGeometry)
	if !ok {
		return nil, fmt.Errorf("app: geometry %q (%s) cannot be transformed", handle, g.GetGeometryType())
	}
	return hg, nil
}

// CreatePointCloud uploads xyz triples as a point cloud.
func (a *App) CreatePointCloud(points []float32) (string, error) {
	pts, err := vecsFromFloat32(points)
	if err != nil {
		return "", err
	}
	pc, err := geometry.NewPointCloudFromPoints(a.dev, pts)
	if err != nil {
		return "", fmt.Errorf("app: create point cloud: %w", err)
	}
	return a.register(pc), nil
}

// CreateTriangleMesh uploads a mesh from xyz vertex triples and triangle
// vertex indices.
func (a *App) CreateTriangleMesh(vertices []float32, indices []uint32) (string, error) {
	vs, err := vecsFromFloat32(vertices)
	if err != nil {
		return "", err
	}
	tris, err := trianglesFromIndices(indices, len(vs))
	if err != nil {
		return "", err
	}
	m, err := geometry.NewTriangleMeshFromHost(a.dev, vs, tris)
	if err != nil {
		return "", fmt.Errorf("app: create triangle mesh: %w", err)
	}
	return a.register(m), nil
}

// Handles returns the live geometry handles in sorted order.
func (a *App) Handles() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	hs := lo.Keys(a.geometries)
	slices.Sort(hs)
	return hs
}

// Points downloads the coordinates of a geometry as xyz triples: the
// points of a point cloud or the vertices of a mesh.
func (a *App) Points(handle string) ([]float32, error) {
	g, err := a.lookup(handle)
	if err != nil {
		return nil, err
	}
	switch v := g.(type) {
	case *geometry.PointCloud:
		return vecsToFloat32(v.GetPoints()), nil
	case *geometry.TriangleMesh:
		return vecsToFloat32(v.GetVertices()), nil
	}
	return nil, fmt.Errorf("app: geometry %q (%s) has no point data", handle, g.GetGeometryType())
}

// Bounds reports the extent of a geometry.
func (a *App) Bounds(handle string) (BoundsData, error) {
	g, err := a.lookup(handle)
	if err != nil {
		return BoundsData{}, err
	}
	return boundsOf("", g, g.IsEmpty()), nil
}

// apply runs an async transform on the default stream and waits for it.
func (a *App) apply(handle, op string, submit func(s *device.Stream, g hostGeometry) error) error {
	g, err := a.lookup(handle)
	if err != nil {
		return err
	}
	s := a.dev.DefaultStream()
	if err := submit(s, g); err != nil {
		return fmt.Errorf("app: %s: %w", op, err)
	}
	if err := s.Synchronize(); err != nil {
		return fmt.Errorf("app: %s: %w", op, err)
	}
	a.log.Debugf("app: %s %s", op, handle)
	return nil
}

// Translate moves a geometry by t, or moves its center to t when relative
// is false.
func (a *App) Translate(handle string, t [3]float64, relative bool) error {
	return a.apply(handle, "translate", func(s *device.Stream, g hostGeometry) error {
		return g.TranslateAsync(s, fromArray(t), relative)
	})
}

// Scale scales a geometry by k about its center or about the origin.
func (a *App) Scale(handle string, k float64, center bool) error {
	return a.apply(handle, "scale", func(s *device.Stream, g hostGeometry) error {
		return g.ScaleAsync(s, k, center)
	})
}

// Rotate rotates a geometry by a rotation built from params, interpreted
// according to kind ("xyz", "zyx", "axis-angle", ...). Angles are radians.
func (a *App) Rotate(handle, kind string, params [3]float64, center bool) error {
	rt, err := geometry.ParseRotationType(kind)
	if err != nil {
		return err
	}
	r, err := geometry.GetRotationMatrix(rt, fromArray(params))
	if err != nil {
		return err
	}
	return a.apply(handle, "rotate", func(s *device.Stream, g hostGeometry) error {
		return g.RotateAsync(s, r, center)
	})
}

// Transform applies a row-major homogeneous 4x4 matrix.
func (a *App) Transform(handle string, m [16]float64) error {
	var mat geometry.Matrix4
	for i := range 16 {
		mat[i/4][i%4] = m[i]
	}
	return a.apply(handle, "transform", func(s *device.Stream, g hostGeometry) error {
		return g.TransformAsync(s, mat)
	})
}

// Release frees a geometry and forgets its handle.
func (a *App) Release(handle string) error {
	a.mu.Lock()
	g, ok := a.geometries[handle]
	delete(a.geometries, handle)
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownHandle, handle)
	}
	if r, ok := g.(interface{ Release() }); ok {
		r.Release()
	}
	return nil
}

// ---------------------------------------------------------------------------
// Scene scripts
// ---------------------------------------------------------------------------

func evalErrorData(errs []engine.EvalError) []EvalErrorData {
	return lo.Map(errs, func(e engine.EvalError, _ int) EvalErrorData {
		return EvalErrorData{Line: e.Line, Col: e.Col, Message: e.Message}
	})
}

func evalWarningData(ws []engine.EvalWarning) []EvalErrorData {
	return lo.Map(ws, func(w engine.EvalWarning, _ int) EvalErrorData {
		return EvalErrorData{Line: w.Line, Col: w.Col, Message: w.Message}
	})
}

// evaluate runs a script and converts failures to host errors. A nil scene
// means the errors slice explains why.
func (a *App) evaluate(source string) (*engine.Scene, []EvalErrorData, []EvalErrorData) {
	res, err := a.engine.EvaluateResult(source)
	if err != nil {
		// Fatal error (panic, timeout, etc.)
		a.log.Errorf("app: evaluate: %v", err)
		return nil, []EvalErrorData{{Message: err.Error()}}, []EvalErrorData{}
	}
	if len(res.Errors) > 0 {
		return nil, evalErrorData(res.Errors), evalWarningData(res.Warnings)
	}
	return res.Scene, []EvalErrorData{}, evalWarningData(res.Warnings)
}

// Evaluate takes scene source and returns the tessellated solid obstacles.
// The meshes stay on the device under their handles until the next
// Evaluate.
func (a *App) Evaluate(source string) EvalResult {
	result := EvalResult{Meshes: []MeshData{}}

	s, errs, warnings := a.evaluate(source)
	result.Errors, result.Warnings = errs, warnings
	if s == nil {
		return result
	}

	parts, err := tessellate.Tessellate(s, a.engine.Kernel(), a.dev)
	if err != nil {
		a.log.Errorf("app: tessellate: %v", err)
		result.Errors = append(result.Errors, EvalErrorData{
			Message: "tessellation failed: " + err.Error(),
		})
		return result
	}

	a.releaseScene()
	handles := make([]string, 0, len(parts))
	for i, p := range parts {
		km := p.Mesh.ToKernelMesh()
		h := a.register(p.Mesh)
		handles = append(handles, h)
		result.Meshes = append(result.Meshes, MeshData{
			Handle:   h,
			Vertices: km.Vertices,
			Normals:  km.Normals,
			Indices:  km.Indices,
			PartName: p.Name,
			Color:    colorPalette[i%len(colorPalette)],
		})
	}
	a.mu.Lock()
	a.scene = handles
	a.mu.Unlock()
	return result
}

func (a *App) releaseScene() {
	a.mu.Lock()
	handles := a.scene
	a.scene = nil
	a.mu.Unlock()
	for _, h := range handles {
		// Already released by the host.
		_ = a.Release(h)
	}
}

// Plan evaluates scene source and answers each of its queries.
func (a *App) Plan(source string) PlanResult {
	result := PlanResult{Paths: []PathData{}}

	s, errs, warnings := a.evaluate(source)
	result.Errors, result.Warnings = errs, warnings
	if s == nil {
		return result
	}

	answers, err := s.Plan(a.dev, a.cfg.Planner)
	if err != nil {
		a.log.Errorf("app: plan: %v", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: "planning failed: " + err.Error()})
		return result
	}
	for _, ans := range answers {
		result.Paths = append(result.Paths, PathData{
			Name:      ans.Name,
			Start:     toArray(ans.Start),
			Goal:      toArray(ans.Goal),
			Found:     !ans.Path.IsEmpty(),
			Length:    ans.Path.Length(),
			Waypoints: lo.Map(ans.Path, func(v r3.Vec, _ int) [3]float64 { return toArray(v) }),
		})
	}
	return result
}

// SceneBounds evaluates scene source and reports the extent of its nodes
// and of each obstacle.
func (a *App) SceneBounds(source string) SceneBoundsResult {
	result := SceneBoundsResult{Obstacles: []BoundsData{}}

	s, errs, _ := a.evaluate(source)
	result.Errors = errs
	if s == nil {
		return result
	}

	g, err := s.Graph(a.dev)
	if err != nil {
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	defer g.Release()
	result.Nodes = boundsOf("nodes", g, g.IsEmpty())

	obstacles, err := s.BuildObstacles(a.dev, a.cfg.Planner.ExactSolids)
	if err != nil {
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	defer engine.ReleaseObstacles(obstacles)
	for i, o := range obstacles {
		name := s.Obstacles[i].Name
		if pc, ok := o.(*geometry.PointCloud); ok {
			result.Obstacles = append(result.Obstacles, boundsOf(name, pc, pc.IsEmpty()))
			continue
		}
		box := o.GetAxisAlignedBoundingBox()
		result.Obstacles = append(result.Obstacles, BoundsData{
			Name:   name,
			Min:    toArray(box.MinBound),
			Max:    toArray(box.MaxBound),
			Center: toArray(box.GetCenter()),
		})
	}
	return result
}
