// Package graph talks to the target property graph: a thin Neo4j client
// plus the exporter and restorer built on top of it.
package graph

import "context"

// Graph is the access capability the engine consumes. The concrete
// client owns connection lifecycle and authentication; exporter and
// restorer only see this interface, which is what tests fake.
type Graph interface {
	// RunRead executes a read query and returns one map per record.
	RunRead(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)

	// RunWriteBatch executes a batched write statement with $batch bound
	// to items. The statement must return exactly one record per batch
	// item, in submission order; identifier remapping depends on it.
	RunWriteBatch(ctx context.Context, query string, items []map[string]any) ([]map[string]any, error)

	// BeginTx starts an explicit transaction. Used only where atomicity
	// is required (clearing the target).
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx is an explicit transaction handle.
type Tx interface {
	Run(ctx context.Context, query string, params map[string]any) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// ConfirmFunc decides whether a non-empty target may be cleared before a
// restore. Injected by the caller; the engine never prompts directly.
// When nil, the answer is always no.
type ConfirmFunc func(currentNodes, currentRelationships int64) bool
