package graph

import (
	"context"

	"github.com/graphvault/graphvault-go/internal/cypher"
	apperrors "github.com/graphvault/graphvault-go/internal/errors"
	"github.com/graphvault/graphvault-go/internal/logging"
	"github.com/graphvault/graphvault-go/internal/model"
)

// Exporter reads the whole target graph in fixed-size pages ordered by
// the source-native id. Export is strictly read-only; any read error
// aborts the run so no partial archive is ever written downstream.
//
// Concurrent mutation of the target during an export can produce an
// inconsistent snapshot. That is a documented limitation of the paging
// scheme, not something the exporter detects.
type Exporter struct {
	g        Graph
	pageSize int
	log      *logging.Logger
}

// NewExporter creates an exporter. pageSize values outside 1..10000 fall
// back to 200.
func NewExporter(g Graph, pageSize int, log *logging.Logger) *Exporter {
	if pageSize <= 0 || pageSize > 10000 {
		pageSize = 200
	}
	return &Exporter{g: g, pageSize: pageSize, log: log}
}

// ExportAll reads all nodes, all relationships, and the per-label counts.
func (e *Exporter) ExportAll(ctx context.Context) ([]model.GraphNode, []model.GraphRelationship, map[string]int64, error) {
	nodes, err := e.exportNodes(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	e.log.Info("nodes exported", "count", len(nodes))

	rels, err := e.exportRelationships(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	e.log.Info("relationships exported", "count", len(rels))

	labelCounts, err := LabelCounts(ctx, e.g)
	if err != nil {
		return nil, nil, nil, err
	}

	return nodes, rels, labelCounts, nil
}

func (e *Exporter) exportNodes(ctx context.Context) ([]model.GraphNode, error) {
	var nodes []model.GraphNode

	for skip := 0; ; skip += e.pageSize {
		rows, err := e.g.RunRead(ctx, cypher.QueryExportNodes, map[string]any{
			"skip":  skip,
			"limit": e.pageSize,
		})
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			node := model.GraphNode{
				ID:         asInt64(row["id"]),
				Labels:     asStrings(row["labels"]),
				Properties: model.FromAnyMap(asMap(row["props"])),
			}
			nodes = append(nodes, node)
		}

		if len(rows) < e.pageSize {
			break
		}
	}

	return nodes, nil
}

func (e *Exporter) exportRelationships(ctx context.Context) ([]model.GraphRelationship, error) {
	var rels []model.GraphRelationship

	for skip := 0; ; skip += e.pageSize {
		rows, err := e.g.RunRead(ctx, cypher.QueryExportRelationships, map[string]any{
			"skip":  skip,
			"limit": e.pageSize,
		})
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			rel := model.GraphRelationship{
				ID:         asInt64(row["id"]),
				StartID:    asInt64(row["start"]),
				EndID:      asInt64(row["end"]),
				Type:       asString(row["type"]),
				Properties: model.FromAnyMap(asMap(row["props"])),
			}
			rels = append(rels, rel)
		}

		if len(rows) < e.pageSize {
			break
		}
	}

	return rels, nil
}

// CountNodes returns the number of nodes currently in the target.
func CountNodes(ctx context.Context, g Graph) (int64, error) {
	return countQuery(ctx, g, cypher.QueryCountNodes)
}

// CountRelationships returns the number of relationships in the target.
func CountRelationships(ctx context.Context, g Graph) (int64, error) {
	return countQuery(ctx, g, cypher.QueryCountRelationships)
}

// LabelCounts returns the per-label node distribution of the target.
func LabelCounts(ctx context.Context, g Graph) (map[string]int64, error) {
	rows, err := g.RunRead(ctx, cypher.QueryLabelCounts, nil)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		label := asString(row["label"])
		if label == "" {
			continue
		}
		counts[label] = asInt64(row["count"])
	}
	return counts, nil
}

func countQuery(ctx context.Context, g Graph, query string) (int64, error) {
	rows, err := g.RunRead(ctx, query, nil)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, apperrors.InternalErrorf("count query returned no rows: %s", query)
	}
	return asInt64(rows[0]["count"]), nil
}

// Driver results carry int64 and []any payloads; fakes in tests may use
// narrower Go types. These coercions accept both.

func asInt64(x any) int64 {
	switch t := x.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}

func asString(x any) string {
	s, _ := x.(string)
	return s
}

func asStrings(x any) []string {
	switch t := x.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func asMap(x any) map[string]any {
	m, _ := x.(map[string]any)
	return m
}
