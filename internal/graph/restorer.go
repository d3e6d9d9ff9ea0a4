package graph

import (
	"context"
	"sort"
	"strings"

	"github.com/graphvault/graphvault-go/internal/cypher"
	"github.com/graphvault/graphvault-go/internal/logging"
	"github.com/graphvault/graphvault-go/internal/model"
)

// Restorer replays an archive into the target:
//
//	CHECK_TARGET_STATE -> [CLEAR_TARGET] -> CREATE_NODES ->
//	CREATE_RELATIONSHIPS -> VERIFY
//
// Node creation assigns fresh native identifiers; the old->new mapping
// lives only for the duration of one Restore call. Batches commit
// independently, so a run that fails partway leaves a partially
// populated target; re-running it may duplicate already-created nodes.
type Restorer struct {
	g         Graph
	batchSize int
	confirm   ConfirmFunc
	log       *logging.Logger
}

// NewRestorer creates a restorer. batchSize values outside 1..10000 fall
// back to 500. confirm may be nil, in which case a non-empty target is
// never cleared.
func NewRestorer(g Graph, batchSize int, confirm ConfirmFunc, log *logging.Logger) *Restorer {
	if batchSize <= 0 || batchSize > 10000 {
		batchSize = 500
	}
	return &Restorer{g: g, batchSize: batchSize, confirm: confirm, log: log}
}

// Restore replays the archive. Individual node or relationship failures
// are counted in the report, not returned as errors; only failures that
// make the whole run meaningless (target unreachable, clear failed)
// abort.
func (r *Restorer) Restore(ctx context.Context, archive *model.BackupArchive) (*model.RestoreReport, error) {
	report := &model.RestoreReport{}

	// CHECK_TARGET_STATE
	currentNodes, err := CountNodes(ctx, r.g)
	if err != nil {
		return nil, err
	}
	currentRels, err := CountRelationships(ctx, r.g)
	if err != nil {
		return nil, err
	}
	r.log.Info("target state", "nodes", currentNodes, "relationships", currentRels)

	// CLEAR_TARGET, only with an explicit external decision
	if currentNodes > 0 || currentRels > 0 {
		if r.confirm != nil && r.confirm(currentNodes, currentRels) {
			if err := r.clearTarget(ctx); err != nil {
				return nil, err
			}
			report.Cleared = true
			r.log.Info("target cleared")
		} else {
			r.log.Warn("target is not empty, restoring on top of existing data")
		}
	}

	// CREATE_NODES
	idMap := r.createNodes(ctx, archive.Nodes, report)

	// CREATE_RELATIONSHIPS
	r.createRelationships(ctx, archive.Relationships, idMap, report)

	// VERIFY: diagnostic only, mismatches are reported, not retried
	r.verify(ctx, archive, report)

	return report, nil
}

// clearTarget deletes all relationships and then all nodes inside one
// transaction. Relationships go first; deleting nodes that still have
// edges is an error in engines that forbid dangling edges.
func (r *Restorer) clearTarget(ctx context.Context) error {
	tx, err := r.g.BeginTx(ctx)
	if err != nil {
		return err
	}

	if err := tx.Run(ctx, cypher.QueryDeleteRelationships, nil); err != nil {
		tx.Rollback(ctx)
		return err
	}
	if err := tx.Run(ctx, cypher.QueryDeleteNodes, nil); err != nil {
		tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}

// nodeGroup collects the archive nodes sharing one sanitized label
// combination so they batch together under a single statement.
type nodeGroup struct {
	labels []string
	nodes  []model.GraphNode
}

func (r *Restorer) createNodes(ctx context.Context, nodes []model.GraphNode, report *model.RestoreReport) map[int64]int64 {
	idMap := make(map[int64]int64, len(nodes))

	groups := make(map[string]*nodeGroup)
	for _, node := range nodes {
		labels := cypher.SanitizeLabels(node.Labels)
		key := strings.Join(labels, ":")
		g, ok := groups[key]
		if !ok {
			g = &nodeGroup{labels: labels}
			groups[key] = g
		}
		g.nodes = append(g.nodes, node)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		group := groups[key]
		query, err := cypher.NodeCreateQuery(group.labels)
		if err != nil {
			// Sanitized labels always validate; reaching this means a bug.
			r.log.Error("node query build failed", "labels", group.labels, "error", err)
			report.NodesFailed += len(group.nodes)
			continue
		}

		for start := 0; start < len(group.nodes); start += r.batchSize {
			end := start + r.batchSize
			if end > len(group.nodes) {
				end = len(group.nodes)
			}
			r.createNodeBatch(ctx, query, group.nodes[start:end], idMap, report)
		}
	}

	r.log.Info("nodes restored", "count", report.NodesRestored, "failed", report.NodesFailed)
	return idMap
}

func (r *Restorer) createNodeBatch(ctx context.Context, query string, batch []model.GraphNode, idMap map[int64]int64, report *model.RestoreReport) {
	items := make([]map[string]any, len(batch))
	for i, node := range batch {
		items[i] = map[string]any{"props": node.Properties.ToAnyMap()}
	}

	rows, err := r.g.RunWriteBatch(ctx, query, items)
	if err == nil && len(rows) == len(batch) {
		for i, row := range rows {
			idMap[batch[i].ID] = asInt64(row["id"])
		}
		report.NodesRestored += len(batch)
		return
	}

	if err != nil {
		r.log.Warn("node batch failed, retrying items individually", "size", len(batch), "error", err)
	} else {
		r.log.Warn("node batch returned wrong cardinality, retrying items individually",
			"submitted", len(batch), "returned", len(rows))
	}

	// Bounded degradation: one statement per item, failures recorded
	// without aborting the rest.
	for i, node := range batch {
		rows, err := r.g.RunWriteBatch(ctx, query, items[i:i+1])
		if err != nil || len(rows) != 1 {
			report.NodesFailed++
			r.log.Warn("node creation failed", "source_id", node.ID, "error", err)
			continue
		}
		idMap[node.ID] = asInt64(rows[0]["id"])
		report.NodesRestored++
	}
}

// relGroup collects relationships of one sanitized type.
type relGroup struct {
	relType string
	rels    []model.GraphRelationship
}

func (r *Restorer) createRelationships(ctx context.Context, rels []model.GraphRelationship, idMap map[int64]int64, report *model.RestoreReport) {
	groups := make(map[string]*relGroup)

	for _, rel := range rels {
		// Dangling references are counted and skipped, never fatal. The
		// source scripts disagreed on this; skipping keeps one bad edge
		// from blocking thousands of good ones.
		if _, ok := idMap[rel.StartID]; !ok {
			report.RelationshipsSkipped++
			r.log.Debug("skipping relationship with unknown start node", "rel_id", rel.ID, "start", rel.StartID)
			continue
		}
		if _, ok := idMap[rel.EndID]; !ok {
			report.RelationshipsSkipped++
			r.log.Debug("skipping relationship with unknown end node", "rel_id", rel.ID, "end", rel.EndID)
			continue
		}

		relType := cypher.SanitizeIdentifier(rel.Type, cypher.DefaultRelationshipType)
		g, ok := groups[relType]
		if !ok {
			g = &relGroup{relType: relType}
			groups[relType] = g
		}
		g.rels = append(g.rels, rel)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		group := groups[key]
		query, err := cypher.RelationshipCreateQuery(group.relType)
		if err != nil {
			r.log.Error("relationship query build failed", "type", group.relType, "error", err)
			report.RelationshipsFailed += len(group.rels)
			continue
		}

		for start := 0; start < len(group.rels); start += r.batchSize {
			end := start + r.batchSize
			if end > len(group.rels) {
				end = len(group.rels)
			}
			r.createRelationshipBatch(ctx, query, group.rels[start:end], idMap, report)
		}
	}

	r.log.Info("relationships restored",
		"count", report.RelationshipsRestored,
		"failed", report.RelationshipsFailed,
		"skipped", report.RelationshipsSkipped)
}

func (r *Restorer) createRelationshipBatch(ctx context.Context, query string, batch []model.GraphRelationship, idMap map[int64]int64, report *model.RestoreReport) {
	items := make([]map[string]any, len(batch))
	for i, rel := range batch {
		items[i] = map[string]any{
			"start": idMap[rel.StartID],
			"end":   idMap[rel.EndID],
			"props": rel.Properties.ToAnyMap(),
		}
	}

	rows, err := r.g.RunWriteBatch(ctx, query, items)
	if err == nil && len(rows) == len(batch) {
		report.RelationshipsRestored += len(batch)
		return
	}

	if err != nil {
		r.log.Warn("relationship batch failed, retrying items individually", "size", len(batch), "error", err)
	}

	for i, rel := range batch {
		rows, err := r.g.RunWriteBatch(ctx, query, items[i:i+1])
		if err != nil || len(rows) != 1 {
			report.RelationshipsFailed++
			r.log.Warn("relationship creation failed", "source_id", rel.ID, "error", err)
			continue
		}
		report.RelationshipsRestored++
	}
}

func (r *Restorer) verify(ctx context.Context, archive *model.BackupArchive, report *model.RestoreReport) {
	nodes, err := CountNodes(ctx, r.g)
	if err != nil {
		r.log.Warn("verify: node count failed", "error", err)
		return
	}
	rels, err := CountRelationships(ctx, r.g)
	if err != nil {
		r.log.Warn("verify: relationship count failed", "error", err)
		return
	}
	labels, err := LabelCounts(ctx, r.g)
	if err != nil {
		r.log.Warn("verify: label counts failed", "error", err)
	}

	report.FinalNodes = nodes
	report.FinalRelationships = rels
	report.FinalLabels = labels

	if report.Cleared {
		if int(nodes) != len(archive.Nodes) {
			r.log.Warn("verify: node count differs from archive",
				"target", nodes, "archive", len(archive.Nodes))
		}
		expectedRels := len(archive.Relationships) - report.RelationshipsSkipped
		if int(rels) != expectedRels {
			r.log.Warn("verify: relationship count differs from archive",
				"target", rels, "expected", expectedRels)
		}
	}
}
