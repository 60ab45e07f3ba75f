package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/repgraph/internal/ir"
)

// NestingError reports a class that ends up containing itself through its
// nested class properties. Such a schema cannot be instantiated: building
// one object of the class would need an unbounded graph of nodes.
type NestingError struct {
	Path    []string `json:"path"`    // Cycle path: ["A", "B", "A"]
	Message string   `json:"message"` // Human-readable description
}

func (e NestingError) Error() string { return e.Message }

// AnalyzeNesting performs static containment analysis on a schema.
//
// The algorithm:
//  1. Build class -> nested class graph from class properties
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops as an error
//
// ref properties are identifiers, not containment, and add no edges.
// Classes are visited in name order so the result is deterministic.
func AnalyzeNesting(classes []ir.ClassSpec) []NestingError {
	graph := buildNestingGraph(classes)
	if len(graph) == 0 {
		return nil
	}

	var errs []NestingError
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			errs = append(errs, sccToNestingError(scc, graph))
		}
	}

	slices.SortFunc(errs, func(a, b NestingError) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return errs
}

// nestingGraph maps class name -> nested class names in property order.
type nestingGraph map[string][]string

func buildNestingGraph(classes []ir.ClassSpec) nestingGraph {
	graph := make(nestingGraph, len(classes))
	for _, class := range classes {
		if graph[class.Name] == nil {
			graph[class.Name] = []string{}
		}
		for _, prop := range class.Properties {
			if prop.Type == ir.TypeClass && prop.Class != "" {
				graph[class.Name] = append(graph[class.Name], prop.Class)
			}
		}
	}
	return graph
}

func hasSelfLoop(node string, graph nestingGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
func tarjanSCC(graph nestingGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)

	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

func sccToNestingError(scc []string, graph nestingGraph) NestingError {
	if len(scc) == 1 {
		name := scc[0]
		return NestingError{
			Path:    []string{name, name},
			Message: fmt.Sprintf("class %s nests itself: %s -> %s", name, name, name),
		}
	}

	path := reconstructCyclePath(scc, graph)
	return NestingError{
		Path:    path,
		Message: fmt.Sprintf("nested classes form a cycle: %s", strings.Join(path, " -> ")),
	}
}

// reconstructCyclePath builds a cycle path from an SCC, starting at its
// smallest member and following edges that stay inside the SCC.
func reconstructCyclePath(scc []string, graph nestingGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := slices.Min(scc)
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
