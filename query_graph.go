package codegraph

import (
	"fmt"
	"sort"
)

// CallGraph is a transitive call graph rooted at a symbol. Nodes and
// edges are bulk-loaded then traversed with BFS; no recursive SQL.
type CallGraph struct {
	Root  int64           // starting symbol ID
	Nodes []CallGraphNode // all symbols reachable within depth
	Edges []CallGraphEdge // all edges in the subgraph
	Depth int             // max depth reached (may be < maxDepth)
}

// CallGraphNode is a symbol in the call graph with its distance from
// the root.
type CallGraphNode struct {
	Symbol Symbol
	Depth  int // BFS depth from root (0 = root itself)
}

// CallGraphEdge is a single caller-callee relationship.
type CallGraphEdge struct {
	CallerID int64
	CalleeID int64
	File     string
	Line     int
	Col      int
}

// callGraphData holds the bulk-loaded adjacency maps and file paths.
type callGraphData struct {
	forward       map[int64][]int64 // caller -> callees
	reverse       map[int64][]int64 // callee -> callers
	edgesByCaller map[int64][]*CallEdge
	edgesByCallee map[int64][]*CallEdge
	filePaths     map[int64]string
}

// buildCallGraph bulk-loads all call edges and file paths into memory.
// This avoids N+1 queries during BFS traversal.
func (q *QueryBuilder) buildCallGraph() (*callGraphData, error) {
	edges, err := q.store.AllCallEdges()
	if err != nil {
		return nil, fmt.Errorf("build call graph: load edges: %w", err)
	}
	filePaths, err := q.store.FilePaths()
	if err != nil {
		return nil, fmt.Errorf("build call graph: load files: %w", err)
	}

	data := &callGraphData{
		forward:       make(map[int64][]int64),
		reverse:       make(map[int64][]int64),
		edgesByCaller: make(map[int64][]*CallEdge),
		edgesByCallee: make(map[int64][]*CallEdge),
		filePaths:     filePaths,
	}
	for _, e := range edges {
		data.forward[e.CallerSymbolID] = append(data.forward[e.CallerSymbolID], e.CalleeSymbolID)
		data.reverse[e.CalleeSymbolID] = append(data.reverse[e.CalleeSymbolID], e.CallerSymbolID)
		data.edgesByCaller[e.CallerSymbolID] = append(data.edgesByCaller[e.CallerSymbolID], e)
		data.edgesByCallee[e.CalleeSymbolID] = append(data.edgesByCallee[e.CalleeSymbolID], e)
	}
	return data, nil
}

func resolveCallGraphEdge(edge *CallEdge, filePaths map[int64]string) CallGraphEdge {
	file := ""
	if edge.FileID != nil {
		file = filePaths[*edge.FileID]
	}
	return CallGraphEdge{
		CallerID: edge.CallerSymbolID,
		CalleeID: edge.CalleeSymbolID,
		File:     file,
		Line:     edge.Line,
		Col:      edge.Col,
	}
}

// TransitiveCallers returns all transitive callers of a symbol up to
// maxDepth. maxDepth of 0 returns only the root node. Negative returns
// an error; values above 100 are capped. Returns nil, nil when the
// symbol does not exist.
func (q *QueryBuilder) TransitiveCallers(symbolID int64, maxDepth int) (*CallGraph, error) {
	return q.traverse(symbolID, maxDepth, false)
}

// TransitiveCallees returns all transitive callees of a symbol up to
// maxDepth, with the same depth semantics as TransitiveCallers.
func (q *QueryBuilder) TransitiveCallees(symbolID int64, maxDepth int) (*CallGraph, error) {
	return q.traverse(symbolID, maxDepth, true)
}

func (q *QueryBuilder) traverse(symbolID int64, maxDepth int, forward bool) (*CallGraph, error) {
	if maxDepth < 0 {
		return nil, fmt.Errorf("call graph: maxDepth must be non-negative, got %d", maxDepth)
	}
	if maxDepth > 100 {
		maxDepth = 100
	}

	rootSym, err := q.store.SymbolByID(symbolID)
	if err != nil {
		return nil, fmt.Errorf("call graph: %w", err)
	}
	if rootSym == nil {
		return nil, nil
	}

	result := &CallGraph{
		Root:  symbolID,
		Nodes: []CallGraphNode{{Symbol: *rootSym, Depth: 0}},
		Edges: []CallGraphEdge{},
	}
	if maxDepth == 0 {
		return result, nil
	}

	data, err := q.buildCallGraph()
	if err != nil {
		return nil, fmt.Errorf("call graph: %w", err)
	}
	adjacency := data.reverse
	edgeIndex := data.edgesByCallee
	if forward {
		adjacency = data.forward
		edgeIndex = data.edgesByCaller
	}

	visited := map[int64]int{symbolID: 0} // symbol ID -> depth
	type bfsEntry struct {
		id    int64
		depth int
	}
	queue := []bfsEntry{{id: symbolID, depth: 0}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current.depth >= maxDepth {
			continue
		}
		for _, next := range adjacency[current.id] {
			if _, seen := visited[next]; !seen {
				depth := current.depth + 1
				visited[next] = depth
				if depth > result.Depth {
					result.Depth = depth
				}
				queue = append(queue, bfsEntry{id: next, depth: depth})
			}
		}
	}

	// Sorted node IDs keep the result stable across runs.
	nodeIDs := make([]int64, 0, len(visited)-1)
	for id := range visited {
		if id != symbolID {
			nodeIDs = append(nodeIDs, id)
		}
	}
	sort.Slice(nodeIDs, func(i, j int) bool { return nodeIDs[i] < nodeIDs[j] })

	symbols, err := q.store.SymbolsByIDs(nodeIDs)
	if err != nil {
		return nil, fmt.Errorf("call graph: load symbols: %w", err)
	}
	for _, id := range nodeIDs {
		if sym, ok := symbols[id]; ok {
			result.Nodes = append(result.Nodes, CallGraphNode{Symbol: *sym, Depth: visited[id]})
		}
	}

	// An edge belongs to the subgraph when both endpoints were visited.
	edgeSeen := make(map[int64]bool)
	anchors := append([]int64{symbolID}, nodeIDs...)
	for _, id := range anchors {
		for _, edge := range edgeIndex[id] {
			other := edge.CallerSymbolID
			if forward {
				other = edge.CalleeSymbolID
			}
			if _, ok := visited[other]; !ok {
				continue
			}
			if !edgeSeen[edge.ID] {
				edgeSeen[edge.ID] = true
				result.Edges = append(result.Edges, resolveCallGraphEdge(edge, data.filePaths))
			}
		}
	}
	sort.Slice(result.Edges, func(i, j int) bool {
		a, b := result.Edges[i], result.Edges[j]
		if a.CallerID != b.CallerID {
			return a.CallerID < b.CallerID
		}
		if a.CalleeID != b.CalleeID {
			return a.CalleeID < b.CalleeID
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Col < b.Col
	})
	return result, nil
}
