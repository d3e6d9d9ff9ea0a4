package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphvault/graphvault-go/internal/config"
	"github.com/graphvault/graphvault-go/internal/cypher"
	"github.com/graphvault/graphvault-go/internal/graph"
	"github.com/graphvault/graphvault-go/internal/logging"
)

// memGraph is a minimal in-memory target for end-to-end engine tests.
type memGraph struct {
	nextID int64
	nodes  map[int64]memNode
	rels   map[int64]memRel
}

type memNode struct {
	labels []string
	props  map[string]any
}

type memRel struct {
	start, end int64
	relType    string
	props      map[string]any
}

func newMemGraph() *memGraph {
	return &memGraph{nextID: 1, nodes: map[int64]memNode{}, rels: map[int64]memRel{}}
}

func (m *memGraph) addNode(labels []string, props map[string]any) int64 {
	id := m.nextID
	m.nextID++
	m.nodes[id] = memNode{labels: labels, props: props}
	return id
}

func (m *memGraph) addRel(start, end int64, relType string, props map[string]any) {
	id := m.nextID
	m.nextID++
	m.rels[id] = memRel{start: start, end: end, relType: relType, props: props}
}

func (m *memGraph) labelCounts() map[string]int64 {
	counts := map[string]int64{}
	for _, n := range m.nodes {
		for _, l := range n.labels {
			counts[l]++
		}
	}
	return counts
}

func (m *memGraph) RunRead(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	switch query {
	case cypher.QueryCountNodes:
		return []map[string]any{{"count": int64(len(m.nodes))}}, nil
	case cypher.QueryCountRelationships:
		return []map[string]any{{"count": int64(len(m.rels))}}, nil
	case cypher.QueryLabelCounts:
		var rows []map[string]any
		for label, count := range m.labelCounts() {
			rows = append(rows, map[string]any{"label": label, "count": count})
		}
		return rows, nil
	case cypher.QueryExportNodes:
		return m.page(params, m.nodeIDs(), func(id int64) map[string]any {
			n := m.nodes[id]
			return map[string]any{"id": id, "labels": n.labels, "props": n.props}
		}), nil
	case cypher.QueryExportRelationships:
		return m.page(params, m.relIDs(), func(id int64) map[string]any {
			r := m.rels[id]
			return map[string]any{"id": id, "start": r.start, "end": r.end, "type": r.relType, "props": r.props}
		}), nil
	}
	return nil, fmt.Errorf("unexpected read query %q", query)
}

func (m *memGraph) nodeIDs() []int64 {
	ids := make([]int64, 0, len(m.nodes))
	for id := range m.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *memGraph) relIDs() []int64 {
	ids := make([]int64, 0, len(m.rels))
	for id := range m.rels {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *memGraph) page(params map[string]any, ids []int64, row func(int64) map[string]any) []map[string]any {
	skip, _ := params["skip"].(int)
	limit, _ := params["limit"].(int)
	var rows []map[string]any
	for i := skip; i < len(ids) && i < skip+limit; i++ {
		rows = append(rows, row(ids[i]))
	}
	return rows
}

func (m *memGraph) RunWriteBatch(ctx context.Context, query string, items []map[string]any) ([]map[string]any, error) {
	if strings.HasPrefix(query, "UNWIND $batch AS item CREATE (n") {
		spec := query[strings.Index(query, "CREATE (n")+len("CREATE (n"):]
		spec = spec[:strings.Index(spec, ")")]
		var labels []string
		if spec != "" {
			labels = strings.Split(strings.TrimPrefix(spec, ":"), ":")
		}
		rows := make([]map[string]any, 0, len(items))
		for _, item := range items {
			props, _ := item["props"].(map[string]any)
			rows = append(rows, map[string]any{"id": m.addNode(labels, props)})
		}
		return rows, nil
	}

	if strings.HasPrefix(query, "UNWIND $batch AS item MATCH (a)") {
		relType := query[strings.Index(query, "[r:")+len("[r:"):]
		relType = relType[:strings.Index(relType, "]")]
		rows := make([]map[string]any, 0, len(items))
		for _, item := range items {
			start, _ := item["start"].(int64)
			end, _ := item["end"].(int64)
			if _, ok := m.nodes[start]; !ok {
				return nil, fmt.Errorf("start node %d missing", start)
			}
			if _, ok := m.nodes[end]; !ok {
				return nil, fmt.Errorf("end node %d missing", end)
			}
			props, _ := item["props"].(map[string]any)
			m.addRel(start, end, relType, props)
			rows = append(rows, map[string]any{"id": int64(0)})
		}
		return rows, nil
	}

	return nil, fmt.Errorf("unexpected write query %q", query)
}

func (m *memGraph) BeginTx(ctx context.Context) (graph.Tx, error) {
	return &memTx{g: m}, nil
}

type memTx struct{ g *memGraph }

func (t *memTx) Run(ctx context.Context, query string, params map[string]any) error {
	switch query {
	case cypher.QueryDeleteRelationships:
		t.g.rels = map[int64]memRel{}
	case cypher.QueryDeleteNodes:
		t.g.nodes = map[int64]memNode{}
	}
	return nil
}
func (t *memTx) Commit(ctx context.Context) error   { return nil }
func (t *memTx) Rollback(ctx context.Context) error { return nil }

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Backup.Directory = t.TempDir()
	cfg.Backup.PageSize = 2
	cfg.Backup.BatchSize = 2
	cfg.Backup.OperationTimeout = 5 * time.Second
	return cfg
}

func TestEngine_BackupRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	source := newMemGraph()
	a := source.addNode([]string{"Person"}, map[string]any{"name": "A"})
	b := source.addNode([]string{"Person"}, map[string]any{"name": "B"})
	c := source.addNode([]string{"Person", "Admin"}, map[string]any{"name": "C"})
	d := source.addNode([]string{"Document"}, map[string]any{"title": "readme", "words": int64(120)})
	source.addRel(a, b, "FRIENDS_WITH", nil)
	source.addRel(b, c, "FRIENDS_WITH", map[string]any{"since": int64(2019)})
	source.addRel(c, d, "AUTHORED", nil)

	backupEng := newWithGraph(cfg, source, nil, logging.Discard())
	result, err := backupEng.CreateBackup(ctx, "roundtrip")
	require.NoError(t, err)
	require.NoError(t, backupEng.Close(ctx))

	// Restore the bundle into a fresh empty target
	target := newMemGraph()
	restoreEng := newWithGraph(cfg, target, nil, logging.Discard())
	defer restoreEng.Close(ctx)

	report, err := restoreEng.RestoreBackup(ctx, result.BundleFile)
	require.NoError(t, err)

	assert.Equal(t, 4, report.NodesRestored)
	assert.Equal(t, 3, report.RelationshipsRestored)
	assert.Equal(t, 0, report.NodesFailed)
	assert.Equal(t, 0, report.RelationshipsSkipped)

	// Per-label distribution matches the archive statistics
	assert.Equal(t, result.Archive.Metadata.Statistics.Labels, target.labelCounts())
	assert.Equal(t, len(source.nodes), len(target.nodes))
	assert.Equal(t, len(source.rels), len(target.rels))
}

func TestEngine_RestoreByBareName(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	source := newMemGraph()
	source.addNode([]string{"Person"}, map[string]any{"name": "A"})

	eng := newWithGraph(cfg, source, nil, logging.Discard())
	result, err := eng.CreateBackup(ctx, "")
	require.NoError(t, err)
	require.NoError(t, eng.Close(ctx))

	target := newMemGraph()
	eng2 := newWithGraph(cfg, target, nil, logging.Discard())
	defer eng2.Close(ctx)

	// Bare bundle name, with and without the .zip suffix
	name := filepath.Base(result.BundleFile)
	_, err = eng2.RestoreBackup(ctx, name)
	require.NoError(t, err)

	target2 := newMemGraph()
	eng3 := newWithGraph(cfg, target2, nil, logging.Discard())
	defer eng3.Close(ctx)
	_, err = eng3.RestoreBackup(ctx, strings.TrimSuffix(name, ".zip"))
	require.NoError(t, err)
}

func TestEngine_RestoreUnknownArchive(t *testing.T) {
	cfg := testConfig(t)
	eng := newWithGraph(cfg, newMemGraph(), nil, logging.Discard())
	defer eng.Close(context.Background())

	_, err := eng.RestoreBackup(context.Background(), "does-not-exist")
	assert.Error(t, err)
}

func TestEngine_HistoryAndListBackups(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	source := newMemGraph()
	source.addNode([]string{"Person"}, map[string]any{"name": "A"})

	eng := newWithGraph(cfg, source, nil, logging.Discard())
	defer eng.Close(ctx)

	_, err := eng.CreateBackup(ctx, "first")
	require.NoError(t, err)
	_, err = eng.CreateBackup(ctx, "second")
	require.NoError(t, err)

	entries, err := eng.History(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Tag, "history is newest first")
	assert.Equal(t, "first", entries[1].Tag)

	limited, err := eng.History(1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "second", limited[0].Tag)

	backups, err := eng.ListBackups()
	require.NoError(t, err)
	assert.Len(t, backups, 2)
	for _, b := range backups {
		assert.True(t, strings.HasSuffix(b.Name, ".zip"))
		assert.Greater(t, b.SizeBytes, int64(0))
	}
}

func TestEngine_Status(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	g := newMemGraph()
	a := g.addNode([]string{"Person"}, nil)
	b := g.addNode([]string{"Person"}, nil)
	g.addRel(a, b, "KNOWS", nil)

	eng := newWithGraph(cfg, g, nil, logging.Discard())
	defer eng.Close(ctx)

	status, err := eng.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), status.Nodes)
	assert.Equal(t, int64(1), status.Relationships)
	assert.Equal(t, int64(2), status.Labels["Person"])
}

func TestEngine_VerifyArchive(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	source := newMemGraph()
	source.addNode([]string{"Person"}, map[string]any{"name": "A"})

	eng := newWithGraph(cfg, source, nil, logging.Discard())
	defer eng.Close(ctx)

	result, err := eng.CreateBackup(ctx, "")
	require.NoError(t, err)

	check, err := eng.VerifyArchive(result.BundleFile)
	require.NoError(t, err)
	assert.True(t, check.Matched)

	// Corrupt the raw data file and verify the mismatch is caught
	data, err := os.ReadFile(result.DataFile)
	require.NoError(t, err)
	data[len(data)-2] ^= 0x01
	require.NoError(t, os.WriteFile(result.DataFile, data, 0644))

	check, err = eng.VerifyArchive(result.DataFile)
	require.NoError(t, err)
	assert.False(t, check.Matched)
}

// Export failure must leave no files behind.
type failingGraph struct{ memGraph }

func (f *failingGraph) RunRead(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	return nil, fmt.Errorf("injected read failure")
}

func TestEngine_ExportFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	g := &failingGraph{memGraph: *newMemGraph()}
	eng := newWithGraph(cfg, g, nil, logging.Discard())
	defer eng.Close(ctx)

	_, err := eng.CreateBackup(ctx, "doomed")
	require.Error(t, err)

	files, err := os.ReadDir(cfg.Backup.Directory)
	require.NoError(t, err)
	assert.Empty(t, files, "no partial archive may be persisted")
}
