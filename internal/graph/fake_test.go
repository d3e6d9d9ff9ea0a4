package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/graphvault/graphvault-go/internal/cypher"
)

// fakeGraph is an in-memory stand-in for the Neo4j client. It answers
// the exact queries the engine issues and mimics the driver's
// order-preserving batch contract.
type fakeGraph struct {
	nextID int64
	nodes  map[int64]*fakeNode
	rels   map[int64]*fakeRel

	// failure injection
	failNodeBatches bool   // any multi-item node batch errors
	failRelBatches  bool   // any multi-item relationship batch errors
	failNodeNamed   string // creating a node whose props name this value errors
	failReads       bool   // all reads error
}

type fakeNode struct {
	labels []string
	props  map[string]any
}

type fakeRel struct {
	start, end int64
	relType    string
	props      map[string]any
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		nextID: 1000, // restored ids never collide with archive source ids
		nodes:  make(map[int64]*fakeNode),
		rels:   make(map[int64]*fakeRel),
	}
}

func (f *fakeGraph) addNode(labels []string, props map[string]any) int64 {
	id := f.nextID
	f.nextID++
	if props == nil {
		props = map[string]any{}
	}
	f.nodes[id] = &fakeNode{labels: labels, props: props}
	return id
}

func (f *fakeGraph) addRel(start, end int64, relType string, props map[string]any) int64 {
	id := f.nextID
	f.nextID++
	if props == nil {
		props = map[string]any{}
	}
	f.rels[id] = &fakeRel{start: start, end: end, relType: relType, props: props}
	return id
}

func (f *fakeGraph) sortedNodeIDs() []int64 {
	ids := make([]int64, 0, len(f.nodes))
	for id := range f.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (f *fakeGraph) sortedRelIDs() []int64 {
	ids := make([]int64, 0, len(f.rels))
	for id := range f.rels {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (f *fakeGraph) RunRead(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	if f.failReads {
		return nil, fmt.Errorf("injected read failure")
	}

	switch query {
	case cypher.QueryCountNodes:
		return []map[string]any{{"count": int64(len(f.nodes))}}, nil

	case cypher.QueryCountRelationships:
		return []map[string]any{{"count": int64(len(f.rels))}}, nil

	case cypher.QueryLabelCounts:
		counts := make(map[string]int64)
		for _, n := range f.nodes {
			for _, l := range n.labels {
				counts[l]++
			}
		}
		var rows []map[string]any
		for label, count := range counts {
			rows = append(rows, map[string]any{"label": label, "count": count})
		}
		return rows, nil

	case cypher.QueryExportNodes:
		skip := paramInt(params, "skip")
		limit := paramInt(params, "limit")
		ids := f.sortedNodeIDs()
		var rows []map[string]any
		for i := skip; i < len(ids) && i < skip+limit; i++ {
			n := f.nodes[ids[i]]
			rows = append(rows, map[string]any{
				"id":     ids[i],
				"labels": n.labels,
				"props":  n.props,
			})
		}
		return rows, nil

	case cypher.QueryExportRelationships:
		skip := paramInt(params, "skip")
		limit := paramInt(params, "limit")
		ids := f.sortedRelIDs()
		var rows []map[string]any
		for i := skip; i < len(ids) && i < skip+limit; i++ {
			r := f.rels[ids[i]]
			rows = append(rows, map[string]any{
				"id":    ids[i],
				"start": r.start,
				"end":   r.end,
				"type":  r.relType,
				"props": r.props,
			})
		}
		return rows, nil
	}

	return nil, fmt.Errorf("fake: unexpected read query %q", query)
}

func (f *fakeGraph) RunWriteBatch(ctx context.Context, query string, items []map[string]any) ([]map[string]any, error) {
	switch {
	case strings.HasPrefix(query, "UNWIND $batch AS item CREATE (n"):
		return f.createNodes(query, items)
	case strings.HasPrefix(query, "UNWIND $batch AS item MATCH (a)"):
		return f.createRels(query, items)
	}
	return nil, fmt.Errorf("fake: unexpected write query %q", query)
}

func (f *fakeGraph) createNodes(query string, items []map[string]any) ([]map[string]any, error) {
	if f.failNodeBatches && len(items) > 1 {
		return nil, fmt.Errorf("injected node batch failure")
	}

	// Statements are atomic: check the whole batch before mutating
	if f.failNodeNamed != "" {
		for _, item := range items {
			props, _ := item["props"].(map[string]any)
			if props["name"] == f.failNodeNamed {
				return nil, fmt.Errorf("injected failure for node %q", f.failNodeNamed)
			}
		}
	}

	labels := parseLabels(query)
	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		props, _ := item["props"].(map[string]any)
		id := f.addNode(labels, props)
		rows = append(rows, map[string]any{"id": id})
	}
	return rows, nil
}

func (f *fakeGraph) createRels(query string, items []map[string]any) ([]map[string]any, error) {
	if f.failRelBatches && len(items) > 1 {
		return nil, fmt.Errorf("injected relationship batch failure")
	}

	relType := parseRelType(query)
	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		start, _ := item["start"].(int64)
		end, _ := item["end"].(int64)
		if _, ok := f.nodes[start]; !ok {
			return nil, fmt.Errorf("fake: start node %d does not exist", start)
		}
		if _, ok := f.nodes[end]; !ok {
			return nil, fmt.Errorf("fake: end node %d does not exist", end)
		}
		props, _ := item["props"].(map[string]any)
		id := f.addRel(start, end, relType, props)
		rows = append(rows, map[string]any{"id": id})
	}
	return rows, nil
}

// parseLabels recovers the label set from the generated statement, e.g.
// "... CREATE (n:Person:Admin) SET ..." -> [Person Admin].
func parseLabels(query string) []string {
	start := strings.Index(query, "CREATE (n")
	rest := query[start+len("CREATE (n"):]
	end := strings.Index(rest, ")")
	spec := rest[:end]
	if spec == "" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(spec, ":"), ":")
}

// parseRelType recovers the type from "... CREATE (a)-[r:TYPE]->(b) ...".
func parseRelType(query string) string {
	start := strings.Index(query, "[r:")
	rest := query[start+len("[r:"):]
	end := strings.Index(rest, "]")
	return rest[:end]
}

func (f *fakeGraph) BeginTx(ctx context.Context) (Tx, error) {
	return &fakeTx{g: f}, nil
}

// fakeTx stages statements and applies them on Commit, enforcing the
// relationships-before-nodes deletion order real engines require.
type fakeTx struct {
	g       *fakeGraph
	queries []string
	done    bool
}

func (t *fakeTx) Run(ctx context.Context, query string, params map[string]any) error {
	switch query {
	case cypher.QueryDeleteRelationships, cypher.QueryDeleteNodes:
		t.queries = append(t.queries, query)
		return nil
	}
	return fmt.Errorf("fake: unexpected transaction query %q", query)
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.done {
		return fmt.Errorf("fake: transaction already finished")
	}
	t.done = true
	for _, q := range t.queries {
		switch q {
		case cypher.QueryDeleteRelationships:
			t.g.rels = make(map[int64]*fakeRel)
		case cypher.QueryDeleteNodes:
			if len(t.g.rels) > 0 {
				return fmt.Errorf("fake: cannot delete nodes while relationships exist")
			}
			t.g.nodes = make(map[int64]*fakeNode)
		}
	}
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.done = true
	t.queries = nil
	return nil
}

func paramInt(params map[string]any, key string) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}
