package model

import "time"

// DocumentState tracks a document through the ingestion pipeline. States only
// move forward; terminal states are never left.
type DocumentState string

const (
	StateFetched          DocumentState = "fetched"
	StateValidated        DocumentState = "validated"
	StateAllocated        DocumentState = "allocated"
	StateCommitted        DocumentState = "committed"
	StateCommittedPartial DocumentState = "committed-partial"
	StateRejected         DocumentState = "rejected"
	StateDuplicate        DocumentState = "duplicate"
)

// Terminal reports whether a document in this state is done with the pipeline.
// committed-partial counts as terminal for job accounting; the reconciliation
// sweep finishes the graph side later.
func (s DocumentState) Terminal() bool {
	switch s {
	case StateCommitted, StateCommittedPartial, StateRejected, StateDuplicate:
		return true
	}
	return false
}

// Document is the canonical record exchanged between pipeline stages and
// persisted in the relational store. Documents are never deleted; superseding
// versions carry a back-reference in SupersededBy / SupersedesID.
type Document struct {
	ID              string         `json:"id"`
	ContentHash     string         `json:"content_hash"`
	Title           string         `json:"title"`
	Source          string         `json:"source"`
	DocumentType    string         `json:"document_type"`
	PublicationDate string         `json:"publication_date"` // YYYY-MM-DD
	Content         string         `json:"content,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	State           DocumentState  `json:"state"`
	DuplicateOf     string         `json:"duplicate_of,omitempty"`
	SupersedesID    string         `json:"supersedes_id,omitempty"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// DuplicateMarkerID derives the stable row key for a duplicate marker from
// the content hash. Markers never consume Nuremberg sequence numbers, and
// re-ingesting the same content converges on the same marker.
func DuplicateMarkerID(contentHash string) string {
	if len(contentHash) > 16 {
		contentHash = contentHash[:16]
	}
	return "dup-" + contentHash
}

// CoreFields is the reconcilable subset compared between the relational and
// graph representations of the same document.
type CoreFields struct {
	Title           string `json:"title"`
	Source          string `json:"source"`
	DocumentType    string `json:"document_type"`
	PublicationDate string `json:"publication_date"`
	ContentHash     string `json:"content_hash"`
}

// Core extracts the reconcilable field subset.
func (d *Document) Core() CoreFields {
	return CoreFields{
		Title:           d.Title,
		Source:          d.Source,
		DocumentType:    d.DocumentType,
		PublicationDate: d.PublicationDate,
		ContentHash:     d.ContentHash,
	}
}

// Allocation records a claimed Nuremberg ID for a content hash. A sequence is
// never reused once claimed, even if the commit that follows fails.
type Allocation struct {
	ID          string    `json:"id"`
	Partition   string    `json:"partition"`
	Sequence    int64     `json:"sequence"`
	ContentHash string    `json:"content_hash"`
	Committed   bool      `json:"committed"`
	CreatedAt   time.Time `json:"created_at"`
}
