package model

import "time"

// Relationship is a directed edge between two committed documents.
type Relationship struct {
	SourceID   string  `json:"source_id"`
	TargetID   string  `json:"target_id"`
	Type       string  `json:"relationship_type"`
	Confidence float64 `json:"confidence_score"`
	Context    string  `json:"context,omitempty"`
}

// PendingRelationship is a relationship held back because at least one
// endpoint is not yet committed. It is retried by the reconciliation sweep
// and dropped after the retention window.
type PendingRelationship struct {
	ID         int64        `json:"id"`
	Rel        Relationship `json:"relationship"`
	EnqueuedAt time.Time    `json:"enqueued_at"`
}

// OrphanReport describes a pending relationship dropped after its retention
// window expired without both endpoints committing.
type OrphanReport struct {
	Rel        Relationship `json:"relationship"`
	EnqueuedAt time.Time    `json:"enqueued_at"`
	Reason     string       `json:"reason"`
}
