package model

// Controlled vocabularies for document records. Values outside these sets are
// critical validation failures.

var Sources = []string{
	"federal_register",
	"far_dfars",
	"iso",
	"ansi",
	"nist",
}

var DocumentTypes = []string{
	"rule",
	"proposed_rule",
	"notice",
	"presidential_document",
	"standard",
	"guidance",
	"policy",
}

var RelationshipTypes = []string{
	"cites",
	"references",
	"supersedes",
	"implements",
	"amends",
}

// KnownSource reports whether s is in the source vocabulary.
func KnownSource(s string) bool {
	for _, v := range Sources {
		if v == s {
			return true
		}
	}
	return false
}

// KnownDocumentType reports whether t is in the document type vocabulary.
func KnownDocumentType(t string) bool {
	for _, v := range DocumentTypes {
		if v == t {
			return true
		}
	}
	return false
}

// KnownRelationshipType reports whether t is in the relationship vocabulary.
func KnownRelationshipType(t string) bool {
	for _, v := range RelationshipTypes {
		if v == t {
			return true
		}
	}
	return false
}
