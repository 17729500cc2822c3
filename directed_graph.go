package pcfg

import (
	"math"
)

// Vertex in graph
type Vertex string

// DirectedGraph represents a weighted directed graph over grammar symbols
type DirectedGraph struct {
	Arcs     map[Vertex]map[Vertex]float64
	Vertices map[Vertex]bool
}

// NewDirectedGraph creates a new DirectedGraph
func NewDirectedGraph() *DirectedGraph {
	g := new(DirectedGraph)
	g.Arcs = make(map[Vertex]map[Vertex]float64)
	g.Vertices = make(map[Vertex]bool)
	return g
}

// AddVertex adds a vertex without any arc
func (g *DirectedGraph) AddVertex(v Vertex) {
	g.Vertices[v] = true
}

// Add adds an arc into graph. Adding the same arc again keeps the smaller
// weight
func (g *DirectedGraph) Add(s, t Vertex, weight float64) {
	if g.Arcs[s] == nil {
		g.Arcs[s] = map[Vertex]float64{}
	}
	if old, ok := g.Arcs[s][t]; !ok || weight < old {
		g.Arcs[s][t] = weight
	}
	g.Vertices[s] = true
	g.Vertices[t] = true
}

// HasArc returns whether arc (s, t) exists in this graph
func (g *DirectedGraph) HasArc(s, t Vertex) bool {
	_, ok := g.Arcs[s][t]
	return ok
}

// DFS runs depth-first search on graph and returns the vertices visited by
// deep-first order.
// It will not visit the vertices where visited[V] == true.
// After finished, it will update the visited map
func (g *DirectedGraph) DFS(s Vertex, visited map[Vertex]bool) []Vertex {
	if visited[s] || !g.Vertices[s] {
		return []Vertex{}
	}
	visited[s] = true

	order := []Vertex{s}
	for nextV := range g.Arcs[s] {
		order = append(order, g.DFS(nextV, visited)...)
	}
	return order
}

// Floyd finds the weight of shortest path between each vertices using
// Floyd–Warshall algorithm. Unreachable pairs get +Inf
func (g *DirectedGraph) Floyd() map[Vertex]map[Vertex]float64 {
	distance := map[Vertex]map[Vertex]float64{}
	for s := range g.Vertices {
		distance[s] = map[Vertex]float64{}
		for t := range g.Vertices {
			if s == t {
				distance[s][t] = 0
			} else {
				distance[s][t] = math.Inf(1)
			}
		}
	}

	for s, ts := range g.Arcs {
		for t, w := range ts {
			if w < distance[s][t] {
				distance[s][t] = w
			}
		}
	}

	// According to https://en.wikipedia.org/wiki/Floyd%E2%80%93Warshall_algorithm
	for k := range g.Vertices {
		for i := range g.Vertices {
			for j := range g.Vertices {
				d := distance[i][k] + distance[k][j]
				if distance[i][j] > d {
					distance[i][j] = d
				}
			}
		}
	}

	return distance
}
