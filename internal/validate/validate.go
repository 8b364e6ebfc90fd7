// Package validate checks document records against the corpus schema before
// allocation. Validation is advisory plus gating: it never mutates the
// document.
package validate

import (
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/agenthands/corpus/internal/model"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// Violation is one field-level failure.
type Violation struct {
	Code     string   `json:"code"`
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Result carries either a pass with quality scores or the violation list.
// Critical violations block progression to allocation.
type Result struct {
	Valid             bool        `json:"valid"`
	QualityScore      float64     `json:"quality_score"`
	RelationshipScore float64     `json:"relationship_score"`
	ComplianceScore   float64     `json:"compliance_score"`
	Violations        []Violation `json:"violations,omitempty"`
}

// Blocking reports whether any violation is critical.
func (r Result) Blocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

const (
	maxTitleLen    = 1024
	maxContentLen  = 4 << 20
	maxMetadataLen = 256
)

var dateFormat = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Validator checks structural and field-level correctness of documents.
type Validator struct {
	// RequireID makes the nuremberg id a required field; set once allocation
	// has happened.
	RequireID bool
}

func New() *Validator {
	return &Validator{}
}

// Validate runs all checks and returns the aggregated result. Severities:
// missing/ill-formed required fields and vocabulary misses are critical,
// size and hygiene issues are warnings.
func (v *Validator) Validate(d *model.Document) Result {
	var out []Violation

	critical := func(code, field, msg string) {
		out = append(out, Violation{Code: code, Field: field, Message: msg, Severity: SeverityCritical})
	}
	warning := func(code, field, msg string) {
		out = append(out, Violation{Code: code, Field: field, Message: msg, Severity: SeverityWarning})
	}

	if err := validation.Validate(d.Title, validation.Required, validation.Length(1, maxTitleLen)); err != nil {
		critical("missing_title", "title", err.Error())
	}
	if err := validation.Validate(d.Source, validation.Required, validation.In(toAny(model.Sources)...)); err != nil {
		critical("bad_source", "source", fmt.Sprintf("source %q: %v", d.Source, err))
	}
	if err := validation.Validate(d.DocumentType, validation.Required, validation.In(toAny(model.DocumentTypes)...)); err != nil {
		critical("bad_document_type", "document_type", fmt.Sprintf("document type %q: %v", d.DocumentType, err))
	}
	if d.PublicationDate == "" {
		critical("missing_date", "date", "publication date is required")
	} else if !dateFormat.MatchString(d.PublicationDate) {
		critical("bad_date_format", "date", fmt.Sprintf("publication date %q is not YYYY-MM-DD", d.PublicationDate))
	}
	if v.RequireID || d.ID != "" {
		if d.ID == "" {
			critical("missing_nuremberg_number", "nuremberg_number", "nuremberg number is required")
		} else if _, err := model.ParseNurembergID(d.ID); err != nil {
			critical("bad_nuremberg_number", "nuremberg_number", err.Error())
		}
	}

	if len(d.Content) > maxContentLen {
		warning("content_too_large", "content", fmt.Sprintf("content exceeds %d bytes", maxContentLen))
	}
	if len(d.Metadata) > maxMetadataLen {
		warning("metadata_too_large", "metadata", fmt.Sprintf("metadata exceeds %d fields", maxMetadataLen))
	}
	if d.ContentHash == "" {
		warning("missing_content_hash", "content_hash", "document has not been fingerprinted")
	}

	res := Result{Violations: out}
	res.Valid = !res.Blocking()
	if res.Valid {
		res.QualityScore = score(len(out), 3)
		res.RelationshipScore = 1.0
		res.ComplianceScore = score(len(out), 5)
	}
	return res
}

// score degrades from 1.0 by a fixed step per recorded violation, floored at
// zero.
func score(violations, tolerance int) float64 {
	s := 1.0 - float64(violations)/float64(tolerance)
	if s < 0 {
		return 0
	}
	return s
}

func toAny(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
