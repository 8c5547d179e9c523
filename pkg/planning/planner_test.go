package planning

import (
	"bytes"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/georoute/pkg/config"
	"github.com/chazu/georoute/pkg/console"
	"github.com/chazu/georoute/pkg/device"
	"github.com/chazu/georoute/pkg/geometry"
	"github.com/chazu/georoute/pkg/graph"
	"github.com/chazu/georoute/pkg/kernel/sdfx"
)

var (
	nodeA = r3.Vec{}
	nodeB = r3.Vec{X: 1}
	nodeC = r3.Vec{X: 2}
)

func newTestDevice() *device.Device {
	return device.New(device.WithBlockSize(2), device.WithWorkers(4))
}

func newGraph(t *testing.T, nodes ...r3.Vec) *graph.Graph {
	t.Helper()
	g := graph.New(newTestDevice())
	_, err := g.AddNodes(nodes)
	require.NoError(t, err)
	return g
}

// gridGraph lays out an n×n grid in the z=0 plane with the given spacing.
func gridGraph(t *testing.T, n int, spacing float64) *graph.Graph {
	t.Helper()
	var nodes []r3.Vec
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			nodes = append(nodes, r3.Vec{X: float64(i) * spacing, Y: float64(j) * spacing})
		}
	}
	return newGraph(t, nodes...)
}

func cube(center r3.Vec, half float64) geometry.AxisAlignedBoundingBox {
	h := r3.Vec{X: half, Y: half, Z: half}
	return geometry.NewAxisAlignedBoundingBox(r3.Sub(center, h), r3.Add(center, h))
}

func TestColinearPath(t *testing.T) {
	p := NewSimplePlanner(newGraph(t, nodeA, nodeB, nodeC), WithMaxEdgeDistance(1.5))
	p.UpdateGraph()

	path := p.FindPath(nodeA, nodeC)
	assert.Equal(t, Path{nodeA, nodeB, nodeC}, path)
	assert.InDelta(t, 2, path.Length(), 1e-12)
	assert.Equal(t, 2, p.Graph().EdgeCount(), "A and C are too far apart for a direct edge")
}

func TestObstacleCoveringMiddleNodeBlocksPath(t *testing.T) {
	p := NewSimplePlanner(newGraph(t, nodeA, nodeB, nodeC),
		WithMaxEdgeDistance(1.5), WithObjectRadius(0.5))
	p.AddObstacle(cube(nodeB, 0.05))
	p.UpdateGraph()

	path := p.FindPath(nodeA, nodeC)
	assert.True(t, path.IsEmpty())
	assert.Zero(t, path.Length())
	assert.Equal(t, 0, p.Graph().EdgeCount())
}

func TestTemporaryNodesDoNotMutateGraph(t *testing.T) {
	g := newGraph(t, nodeA, nodeB, nodeC)
	p := NewSimplePlanner(g, WithMaxEdgeDistance(1.2))
	p.UpdateGraph()
	before := g.Edges()

	start, goal := r3.Vec{X: -0.5}, r3.Vec{X: 2.5}
	for i := 0; i < 3; i++ {
		path := p.FindPath(start, goal)
		assert.Equal(t, Path{start, nodeA, nodeB, nodeC, goal}, path)
	}
	assert.Equal(t, before, g.Edges())
	assert.Equal(t, 3, g.NodeCount())
}

func TestDirectConnectionBetweenQueryPoints(t *testing.T) {
	p := NewSimplePlanner(nil, WithMaxEdgeDistance(2))
	path := p.FindPath(r3.Vec{X: 10}, r3.Vec{X: 11})
	assert.Equal(t, Path{{X: 10}, {X: 11}}, path)

	assert.True(t, p.FindPath(r3.Vec{X: 10}, r3.Vec{X: 13}).IsEmpty())
}

func TestUnreachableGoal(t *testing.T) {
	p := NewSimplePlanner(newGraph(t, nodeA, nodeB, nodeC), WithMaxEdgeDistance(1.5))
	p.UpdateGraph()
	assert.True(t, p.FindPath(nodeA, r3.Vec{X: 10}).IsEmpty())
}

func TestStartEqualsGoal(t *testing.T) {
	p := NewSimplePlanner(newGraph(t, nodeA, nodeB), WithObjectRadius(0.2))
	q := r3.Vec{X: 5, Y: 5}
	assert.Equal(t, Path{q}, p.FindPath(q, q))

	p.AddObstacle(cube(q, 0.1))
	assert.True(t, p.FindPath(q, q).IsEmpty())
}

func TestDetourAroundObstacle(t *testing.T) {
	g := gridGraph(t, 5, 1)
	p := NewSimplePlanner(g, WithMaxEdgeDistance(1), WithObjectRadius(0.1))
	// A wall across x=2 that leaves the y=4 row open.
	p.AddObstacle(geometry.NewAxisAlignedBoundingBox(r3.Vec{X: 1.8, Y: -1, Z: -1}, r3.Vec{X: 2.2, Y: 3.5, Z: 1}))
	p.UpdateGraph()

	path := p.FindPath(r3.Vec{}, r3.Vec{X: 4})
	require.False(t, path.IsEmpty())
	assert.Equal(t, r3.Vec{}, path[0])
	assert.Equal(t, r3.Vec{X: 4}, path[len(path)-1])
	assert.InDelta(t, 12, path.Length(), 1e-9)
	for _, w := range path {
		if w.X == 2 {
			assert.Equal(t, 4.0, w.Y, "the wall is crossed on the open row")
		}
	}
}

func TestFindPathIsDeterministic(t *testing.T) {
	g := gridGraph(t, 6, 1)
	p := NewSimplePlanner(g, WithMaxEdgeDistance(1.5))
	p.AddObstacle(cube(r3.Vec{X: 2.5, Y: 2.5}, 0.6))
	p.UpdateGraph()

	first := p.FindPath(r3.Vec{X: -0.3, Y: 0.1}, r3.Vec{X: 5.2, Y: 4.9})
	require.False(t, first.IsEmpty())
	for i := 0; i < 20; i++ {
		path := p.FindPath(r3.Vec{X: -0.3, Y: 0.1}, r3.Vec{X: 5.2, Y: 4.9})
		assert.Equal(t, first.Length(), path.Length())
		assert.Equal(t, first, path)
	}
}

func TestConcurrentFindPath(t *testing.T) {
	g := gridGraph(t, 5, 1)
	p := NewSimplePlanner(g, WithMaxEdgeDistance(1.5))
	p.AddObstacle(cube(r3.Vec{X: 2, Y: 2}, 0.3))
	p.UpdateGraph()
	edges := g.Edges()
	want := p.FindPath(r3.Vec{X: -0.5}, r3.Vec{X: 4.5, Y: 4})

	var wg sync.WaitGroup
	results := make([]Path, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = p.FindPath(r3.Vec{X: -0.5}, r3.Vec{X: 4.5, Y: 4})
		}()
	}
	wg.Wait()
	for _, r := range results {
		assert.Equal(t, want, r)
	}
	assert.Equal(t, edges, g.Edges())
}

func TestSpatialIndexGivesSameResults(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	var obstacles []geometry.Obstacle
	for i := 0; i < 12; i++ {
		c := r3.Vec{X: rng.Float64() * 6, Y: rng.Float64() * 6, Z: rng.Float64()*0.4 - 0.2}
		obstacles = append(obstacles, cube(c, 0.1+rng.Float64()*0.3))
	}

	build := func(index bool) *SimplePlanner {
		p := NewSimplePlanner(gridGraph(t, 7, 1), WithMaxEdgeDistance(1.5), WithSpatialIndex(index))
		for _, o := range obstacles {
			p.AddObstacle(o)
		}
		return p.UpdateGraph()
	}
	plain, indexed := build(false), build(true)
	assert.Equal(t, plain.Graph().Edges(), indexed.Graph().Edges())

	queries := [][2]r3.Vec{
		{{X: -0.5, Y: -0.5}, {X: 6.5, Y: 6.5}},
		{{X: 0, Y: 6}, {X: 6, Y: 0}},
		{{X: 3, Y: -0.4}, {X: 3, Y: 6.4}},
	}
	for _, q := range queries {
		assert.Equal(t, plain.FindPath(q[0], q[1]), indexed.FindPath(q[0], q[1]))
	}
}

func TestStaleTracking(t *testing.T) {
	p := NewSimplePlanner(newGraph(t, nodeA, nodeB))
	assert.True(t, p.Stale())
	p.UpdateGraph()
	assert.False(t, p.Stale())

	p.AddObstacle(nil)
	assert.False(t, p.Stale())
	assert.Equal(t, 0, p.ObstacleCount())

	p.AddObstacle(cube(nodeC, 0.1)).AddObstacle(cube(r3.Vec{Y: 3}, 0.1))
	assert.True(t, p.Stale())
	assert.Equal(t, 2, p.ObstacleCount())
}

func TestSearchBeforeUpdateUsesSeedEdges(t *testing.T) {
	g := newGraph(t, nodeA, nodeB, nodeC)
	require.NoError(t, g.AddEdge(0, 2, 2))
	p := NewSimplePlanner(g, WithMaxEdgeDistance(2))
	assert.Equal(t, Path{nodeA, nodeC}, p.FindPath(nodeA, nodeC))

	p.UpdateGraph()
	assert.Equal(t, 3, g.EdgeCount())
}

func TestSolidObstacle(t *testing.T) {
	k := sdfx.New()
	ball := k.Translate(k.Sphere(0.8), 2, 0, 0)

	for _, exact := range []bool{false, true} {
		p := NewSimplePlanner(gridGraph(t, 5, 1), WithMaxEdgeDistance(1.5))
		p.AddObstacle(geometry.NewSolidObstacle("ball", ball, exact))
		p.UpdateGraph()
		path := p.FindPath(r3.Vec{}, r3.Vec{X: 4})
		require.False(t, path.IsEmpty(), "exact=%v", exact)
		for _, w := range path {
			assert.Greater(t, r3.Norm(r3.Sub(w, r3.Vec{X: 2})), 0.8, "exact=%v", exact)
		}
	}
}

func TestDeviceGeometryObstacle(t *testing.T) {
	d := newTestDevice()
	pc, err := geometry.NewPointCloudFromPoints(d, []r3.Vec{{X: 0.9, Y: -0.1}, {X: 1.1, Y: 0.1}})
	require.NoError(t, err)

	p := NewSimplePlanner(newGraph(t, nodeA, nodeB, nodeC), WithMaxEdgeDistance(1.5))
	p.AddObstacle(pc).AddObstacle(geometry.NewPointCloud(d))
	p.UpdateGraph()
	assert.True(t, p.FindPath(nodeA, nodeC).IsEmpty())
	assert.Equal(t, 0, p.Graph().EdgeCount())
}

func TestFromConfig(t *testing.T) {
	c := config.Default().Planner
	c.ObjectRadius = 0.25
	c.MaxEdgeDistance = 3
	c.SpatialIndex = true
	p := NewSimplePlanner(nil, FromConfig(c), WithObjectRadius(-1))
	assert.Equal(t, 0.25, p.ObjectRadius())
	assert.Equal(t, 3.0, p.MaxEdgeDistance())
	assert.True(t, p.spatialIndex)
}

func TestUpdateGraphLogs(t *testing.T) {
	var buf bytes.Buffer
	p := NewSimplePlanner(newGraph(t, nodeA, nodeB), WithLogger(console.New(&buf, console.VerbosityInfo)))
	p.UpdateGraph()
	assert.Contains(t, buf.String(), "2 nodes, 1 edges, 0 obstacles")
}

func TestFindPathWarnsOnStaleGraph(t *testing.T) {
	var buf bytes.Buffer
	p := NewSimplePlanner(newGraph(t, nodeA, nodeB, nodeC),
		WithMaxEdgeDistance(1.5), WithLogger(console.New(&buf, console.VerbosityWarning)))
	p.UpdateGraph()
	p.FindPath(nodeA, nodeC)
	assert.Empty(t, buf.String())

	p.AddObstacle(cube(nodeB, 0.2))
	assert.Equal(t, Path{nodeA, nodeB, nodeC}, p.FindPath(nodeA, nodeC))
	assert.Contains(t, buf.String(), "built before the latest obstacles")
}

func TestReleaseReturnsDeviceMemory(t *testing.T) {
	d := newTestDevice()
	g := graph.New(d)
	_, err := g.AddNodes([]r3.Vec{nodeA, nodeB, nodeC})
	require.NoError(t, err)
	pc, err := geometry.NewPointCloudFromPoints(d, []r3.Vec{{X: 1, Y: 1}})
	require.NoError(t, err)
	require.NotZero(t, d.Allocated())

	p := NewSimplePlanner(g, WithMaxEdgeDistance(1.5))
	p.AddObstacle(pc).AddObstacle(cube(r3.Vec{Y: -3}, 0.1))
	p.UpdateGraph()
	p.Release()
	assert.Zero(t, d.Allocated())
	assert.Equal(t, 0, p.ObstacleCount())

	p.Release()
	assert.Zero(t, d.Allocated())
}
