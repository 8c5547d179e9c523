// Package graph holds the planning graph: node positions resident on a
// device, undirected edges weighted by Euclidean length, radius-based
// connection, structural validation and deterministic shortest paths.
package graph
