package model

import "time"

// GraphNode is one exported node. ID is the source-native identifier,
// unique within a single snapshot but not stable across instances.
type GraphNode struct {
	ID         int64      `json:"id"`
	Labels     []string   `json:"labels"`
	Properties Properties `json:"properties"`
}

// GraphRelationship is one exported relationship. StartID and EndID
// reference GraphNode.ID within the same snapshot.
type GraphRelationship struct {
	ID         int64      `json:"id"`
	StartID    int64      `json:"start"`
	EndID      int64      `json:"end"`
	Type       string     `json:"type"`
	Properties Properties `json:"properties"`
}

// Statistics summarizes one snapshot.
type Statistics struct {
	TotalNodes         int              `json:"total_nodes"`
	TotalRelationships int              `json:"total_relationships"`
	Labels             map[string]int64 `json:"labels"`
}

// Metadata describes the snapshot as a whole.
type Metadata struct {
	FormatVersion string     `json:"format_version"`
	CreatedAt     time.Time  `json:"created_at"`
	Tag           string     `json:"tag,omitempty"`
	SourceURI     string     `json:"source_uri"`
	Statistics    Statistics `json:"statistics"`
}

// BackupArchive is the full point-in-time snapshot. It is written once
// by an export run and immutable thereafter.
type BackupArchive struct {
	Metadata      Metadata            `json:"metadata"`
	Nodes         []GraphNode         `json:"nodes"`
	Relationships []GraphRelationship `json:"relationships"`
}

// LedgerEntry is one append-only record of a completed backup.
type LedgerEntry struct {
	ID              string    `json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	DataFile        string    `json:"json_file"`
	BundleFile      string    `json:"zip_file"`
	Hash            string    `json:"hash"`
	SizeBytes       int64     `json:"size_bytes"`
	CompressedBytes int64     `json:"compressed_bytes"`
	Nodes           int       `json:"nodes"`
	Relationships   int       `json:"relationships"`
	Tag             string    `json:"tag,omitempty"`
}

// RestoreReport is the outcome of one restore run. Partial failures are
// counts here, never errors.
type RestoreReport struct {
	NodesRestored         int `json:"nodes_restored"`
	RelationshipsRestored int `json:"relationships_restored"`
	NodesFailed           int `json:"nodes_failed"`
	RelationshipsFailed   int `json:"relationships_failed"`
	RelationshipsSkipped  int `json:"relationships_skipped"`

	// VERIFY step observations; diagnostic, not a correctness gate.
	FinalNodes         int64            `json:"final_nodes"`
	FinalRelationships int64            `json:"final_relationships"`
	FinalLabels        map[string]int64 `json:"final_labels"`
	Cleared            bool             `json:"cleared"`
}
