package cypher

import (
	"fmt"
	"strings"
)

// Read and maintenance queries. All values travel as bound parameters;
// only validated identifiers are ever spliced into text.
const (
	QueryCountNodes         = "MATCH (n) RETURN count(n) AS count"
	QueryCountRelationships = "MATCH ()-[r]->() RETURN count(r) AS count"
	QueryLabelCounts        = "MATCH (n) UNWIND labels(n) AS label RETURN label, count(n) AS count ORDER BY count DESC"

	// Export pagination orders by the source-native id so pages never
	// overlap or skip rows while the data is not concurrently mutated.
	QueryExportNodes         = "MATCH (n) RETURN id(n) AS id, labels(n) AS labels, properties(n) AS props ORDER BY id(n) SKIP $skip LIMIT $limit"
	QueryExportRelationships = "MATCH (a)-[r]->(b) RETURN id(r) AS id, id(a) AS start, id(b) AS end, type(r) AS type, properties(r) AS props ORDER BY id(r) SKIP $skip LIMIT $limit"

	// Clear-target statements; relationships must go before nodes.
	QueryDeleteRelationships = "MATCH ()-[r]->() DELETE r"
	QueryDeleteNodes         = "MATCH (n) DELETE n"
)

// NodeCreateQuery builds the batched node-creation statement for one
// label combination. The UNWIND/CREATE/RETURN shape guarantees one
// returned id per batch item, in submission order; identifier remapping
// depends on that contract.
func NodeCreateQuery(labels []string) (string, error) {
	var spec strings.Builder
	for _, l := range labels {
		if !ValidIdentifier(l) {
			return "", fmt.Errorf("invalid node label %q", l)
		}
		spec.WriteByte(':')
		spec.WriteString(l)
	}
	return fmt.Sprintf(
		"UNWIND $batch AS item CREATE (n%s) SET n = item.props RETURN id(n) AS id",
		spec.String(),
	), nil
}

// RelationshipCreateQuery builds the batched relationship-creation
// statement for one relationship type. Endpoints are the remapped ids of
// the target instance, passed per item as item.start / item.end.
func RelationshipCreateQuery(relType string) (string, error) {
	if !ValidIdentifier(relType) {
		return "", fmt.Errorf("invalid relationship type %q", relType)
	}
	return fmt.Sprintf(
		"UNWIND $batch AS item MATCH (a) WHERE id(a) = item.start MATCH (b) WHERE id(b) = item.end CREATE (a)-[r:%s]->(b) SET r = item.props RETURN id(r) AS id",
		relType,
	), nil
}
