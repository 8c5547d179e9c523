package graph

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/georoute/pkg/device"
)

var (
	// ErrNodeRange is returned for a node index outside the graph.
	ErrNodeRange = errors.New("graph: node index out of range")

	// ErrSelfLoop is returned when an edge would join a node to itself.
	ErrSelfLoop = errors.New("graph: self loop")

	// ErrDuplicateName is returned when a node name is already taken.
	ErrDuplicateName = errors.New("graph: duplicate node name")
)

// Edge is an undirected weighted edge. Edges returned by the graph have
// From < To.
type Edge struct {
	From   int     `json:"from"`
	To     int     `json:"to"`
	Weight float64 `json:"weight"`
}

// key returns the endpoints in canonical order.
func (e Edge) key() [2]int {
	if e.From > e.To {
		return [2]int{e.To, e.From}
	}
	return [2]int{e.From, e.To}
}

// Graph is a planning graph. Node positions live in a device buffer; edges
// are kept on the host. A Graph is not safe for concurrent mutation.
type Graph struct {
	dev       *device.Device
	nodes     *device.Buffer[r3.Vec]
	names     []string
	nameIndex map[string]int
	weights   map[[2]int]float64
	adj       [][]int // sorted neighbor lists
}

// New creates an empty graph on d.
func New(d *device.Device) *Graph {
	nodes, _ := device.NewBuffer[r3.Vec](d, 0)
	return &Graph{
		dev:       d,
		nodes:     nodes,
		nameIndex: make(map[string]int),
		weights:   make(map[[2]int]float64),
	}
}

// FromData builds a graph from host node positions and an edge list after
// validating them. Only error-severity findings reject the input.
func FromData(d *device.Device, nodes []r3.Vec, edges []Edge) (*Graph, error) {
	var errs []error
	for _, v := range ValidateData(nodes, edges) {
		if v.Severity == SeverityError {
			errs = append(errs, v)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	g := New(d)
	if _, err := g.AddNodes(nodes); err != nil {
		return nil, err
	}
	for _, e := range edges {
		if err := g.AddEdge(e.From, e.To, e.Weight); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Device returns the device holding the node positions.
func (g *Graph) Device() *device.Device { return g.dev }

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return g.nodes.Len() }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.weights) }

// Nodes exposes the device buffer of node positions.
func (g *Graph) Nodes() *device.Buffer[r3.Vec] { return g.nodes }

// Positions returns a host copy of the node positions.
func (g *Graph) Positions() []r3.Vec {
	g.sync("read positions")
	return g.nodes.CopyToHost()
}

// Position returns the position of node i.
func (g *Graph) Position(i int) (r3.Vec, error) {
	if i < 0 || i >= g.NodeCount() {
		return r3.Vec{}, fmt.Errorf("%w: %d", ErrNodeRange, i)
	}
	g.sync("read position")
	return g.nodes.View()[i], nil
}

// AddNode appends a node and returns its index.
func (g *Graph) AddNode(p r3.Vec) (int, error) {
	first, err := g.AddNodes([]r3.Vec{p})
	return first, err
}

// AddNodes appends nodes and returns the index of the first one.
func (g *Graph) AddNodes(ps []r3.Vec) (int, error) {
	g.sync("add nodes")
	first := g.nodes.Len()
	if err := g.nodes.Resize(first + len(ps)); err != nil {
		return 0, fmt.Errorf("graph: add nodes: %w", err)
	}
	copy(g.nodes.View()[first:], ps)
	for range ps {
		g.names = append(g.names, "")
		g.adj = append(g.adj, nil)
	}
	return first, nil
}

// AddNamedNode appends a node that can later be found with Lookup.
func (g *Graph) AddNamedNode(name string, p r3.Vec) (int, error) {
	if _, ok := g.nameIndex[name]; ok {
		return 0, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	i, err := g.AddNode(p)
	if err != nil {
		return 0, err
	}
	if name != "" {
		g.names[i] = name
		g.nameIndex[name] = i
	}
	return i, nil
}

// Lookup returns the index of the node with the given name.
func (g *Graph) Lookup(name string) (int, bool) {
	i, ok := g.nameIndex[name]
	return i, ok
}

// MustLookup returns the index of the named node, or panics.
func (g *Graph) MustLookup(name string) int {
	i, ok := g.Lookup(name)
	if !ok {
		panic(fmt.Sprintf("graph: no node named %q", name))
	}
	return i
}

// Name returns the name of node i, "" if unnamed.
func (g *Graph) Name(i int) string {
	if i < 0 || i >= len(g.names) {
		return ""
	}
	return g.names[i]
}

func (g *Graph) checkNode(i int) error {
	if i < 0 || i >= g.NodeCount() {
		return fmt.Errorf("%w: %d of %d", ErrNodeRange, i, g.NodeCount())
	}
	return nil
}

// AddEdge adds or replaces the undirected edge {a, b}.
func (g *Graph) AddEdge(a, b int, weight float64) error {
	if err := g.checkNode(a); err != nil {
		return err
	}
	if err := g.checkNode(b); err != nil {
		return err
	}
	if a == b {
		return fmt.Errorf("%w: node %d", ErrSelfLoop, a)
	}
	if weight < 0 || math.IsNaN(weight) {
		return fmt.Errorf("graph: invalid weight %g for edge %d-%d", weight, a, b)
	}
	k := Edge{From: a, To: b}.key()
	if _, ok := g.weights[k]; !ok {
		g.adj[a] = insertSorted(g.adj[a], b)
		g.adj[b] = insertSorted(g.adj[b], a)
	}
	g.weights[k] = weight
	return nil
}

// AddEdges adds edges in order, stopping at the first error.
func (g *Graph) AddEdges(edges []Edge) error {
	for _, e := range edges {
		if err := g.AddEdge(e.From, e.To, e.Weight); err != nil {
			return err
		}
	}
	return nil
}

// RemoveEdge deletes edge {a, b}. It reports whether the edge existed.
func (g *Graph) RemoveEdge(a, b int) bool {
	k := Edge{From: a, To: b}.key()
	if _, ok := g.weights[k]; !ok {
		return false
	}
	delete(g.weights, k)
	g.adj[a] = removeSorted(g.adj[a], b)
	g.adj[b] = removeSorted(g.adj[b], a)
	return true
}

// ClearEdges removes every edge and keeps the nodes.
func (g *Graph) ClearEdges() {
	clear(g.weights)
	for i := range g.adj {
		g.adj[i] = nil
	}
}

// HasEdge reports whether {a, b} is an edge.
func (g *Graph) HasEdge(a, b int) bool {
	_, ok := g.weights[Edge{From: a, To: b}.key()]
	return ok
}

// Weight returns the weight of edge {a, b}.
func (g *Graph) Weight(a, b int) (float64, bool) {
	w, ok := g.weights[Edge{From: a, To: b}.key()]
	return w, ok
}

// Neighbors returns the neighbors of i in ascending order.
func (g *Graph) Neighbors(i int) []int {
	if i < 0 || i >= len(g.adj) {
		return nil
	}
	return slices.Clone(g.adj[i])
}

// Edges returns every edge sorted by (From, To).
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, len(g.weights))
	for a, nbrs := range g.adj {
		for _, b := range nbrs {
			if a < b {
				edges = append(edges, Edge{From: a, To: b, Weight: g.weights[[2]int{a, b}]})
			}
		}
	}
	return edges
}

// Clone copies the graph, including a new device buffer for the nodes.
func (g *Graph) Clone() (*Graph, error) {
	g.sync("clone")
	nodes, err := g.nodes.Clone()
	if err != nil {
		return nil, err
	}
	c := &Graph{
		dev:       g.dev,
		nodes:     nodes,
		names:     slices.Clone(g.names),
		nameIndex: make(map[string]int, len(g.nameIndex)),
		weights:   make(map[[2]int]float64, len(g.weights)),
		adj:       make([][]int, len(g.adj)),
	}
	for k, v := range g.nameIndex {
		c.nameIndex[k] = v
	}
	for k, v := range g.weights {
		c.weights[k] = v
	}
	for i, nbrs := range g.adj {
		c.adj[i] = slices.Clone(nbrs)
	}
	return c, nil
}

// Release returns the node buffer to the device.
func (g *Graph) Release() {
	g.nodes.Release()
}

func (g *Graph) sync(op string) {
	if err := g.dev.DefaultStream().Synchronize(); err != nil {
		g.dev.Logger().Errorf("graph: %s: %v", op, err)
	}
}

func insertSorted(s []int, v int) []int {
	i, found := slices.BinarySearch(s, v)
	if found {
		return s
	}
	return slices.Insert(s, i, v)
}

func removeSorted(s []int, v int) []int {
	i, found := slices.BinarySearch(s, v)
	if !found {
		return s
	}
	return slices.Delete(s, i, i+1)
}
