package graph

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	apperrors "github.com/graphvault/graphvault-go/internal/errors"
)

// Client implements Graph against Neo4j using the v5 driver.
type Client struct {
	driver   neo4j.DriverWithContext
	database string
	timeout  time.Duration
}

// NewClient creates a Neo4j client and verifies connectivity. A timeout
// of zero disables the per-operation deadline.
func NewClient(ctx context.Context, uri, username, password, database string, timeout time.Duration) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, apperrors.ConnectionError(err, "failed to create Neo4j driver")
	}

	verifyCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		verifyCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		driver.Close(ctx)
		return nil, apperrors.ConnectionError(err, "failed to connect to Neo4j")
	}

	return &Client{
		driver:   driver,
		database: database,
		timeout:  timeout,
	}, nil
}

// RunRead executes a read query via the modern ExecuteQuery API, routed
// to read replicas in cluster deployments.
func (c *Client) RunRead(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	opCtx, cancel := c.opContext(ctx)
	defer cancel()

	result, err := neo4j.ExecuteQuery(opCtx, c.driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, apperrors.DatabaseError(err, "read query failed")
	}

	return recordsToMaps(result.Records), nil
}

// RunWriteBatch executes a batched write statement. The batch travels as
// the $batch parameter; the UNWIND/RETURN shape of the statement keeps
// returned records aligned with batch items.
func (c *Client) RunWriteBatch(ctx context.Context, query string, items []map[string]any) ([]map[string]any, error) {
	opCtx, cancel := c.opContext(ctx)
	defer cancel()

	result, err := neo4j.ExecuteQuery(opCtx, c.driver, query,
		map[string]any{"batch": items},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.database))
	if err != nil {
		return nil, apperrors.DatabaseError(err, "batch write failed")
	}

	return recordsToMaps(result.Records), nil
}

// BeginTx opens an explicit transaction on a dedicated session. The
// session is released on Commit or Rollback.
func (c *Client) BeginTx(ctx context.Context) (Tx, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.database,
	})

	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		session.Close(ctx)
		return nil, apperrors.DatabaseError(err, "failed to begin transaction")
	}

	return &clientTx{session: session, tx: tx}, nil
}

// Close closes the underlying driver.
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func (c *Client) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

type clientTx struct {
	session neo4j.SessionWithContext
	tx      neo4j.ExplicitTransaction
}

func (t *clientTx) Run(ctx context.Context, query string, params map[string]any) error {
	if _, err := t.tx.Run(ctx, query, params); err != nil {
		return apperrors.DatabaseError(err, "transaction statement failed")
	}
	return nil
}

func (t *clientTx) Commit(ctx context.Context) error {
	defer t.session.Close(ctx)
	if err := t.tx.Commit(ctx); err != nil {
		return apperrors.DatabaseError(err, "transaction commit failed")
	}
	return nil
}

func (t *clientTx) Rollback(ctx context.Context) error {
	defer t.session.Close(ctx)
	if err := t.tx.Rollback(ctx); err != nil {
		return apperrors.DatabaseError(err, "transaction rollback failed")
	}
	return nil
}

func recordsToMaps(records []*neo4j.Record) []map[string]any {
	out := make([]map[string]any, len(records))
	for i, rec := range records {
		m := make(map[string]any, len(rec.Keys))
		for j, key := range rec.Keys {
			m[key] = rec.Values[j]
		}
		out[i] = m
	}
	return out
}
