package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agenthands/corpus/internal/model"
)

func validDoc() *model.Document {
	return &model.Document{
		Title:           "Cybersecurity Maturity Model Certification",
		Source:          "far_dfars",
		DocumentType:    "rule",
		PublicationDate: "2024-03-15",
		ContentHash:     "abc123",
	}
}

func TestValidatePass(t *testing.T) {
	res := New().Validate(validDoc())

	assert.True(t, res.Valid)
	assert.False(t, res.Blocking())
	assert.Empty(t, res.Violations)
	assert.Equal(t, 1.0, res.QualityScore)
	assert.Equal(t, 1.0, res.ComplianceScore)
}

func TestValidateMissingTitle(t *testing.T) {
	d := validDoc()
	d.Title = ""

	res := New().Validate(d)

	assert.False(t, res.Valid)
	assert.True(t, res.Blocking())
	assert.Equal(t, "missing_title", res.Violations[0].Code)
	assert.Equal(t, SeverityCritical, res.Violations[0].Severity)
}

func TestValidateVocabularies(t *testing.T) {
	d := validDoc()
	d.Source = "wikipedia"
	d.DocumentType = "blog_post"

	res := New().Validate(d)

	assert.False(t, res.Valid)
	codes := []string{res.Violations[0].Code, res.Violations[1].Code}
	assert.Contains(t, codes, "bad_source")
	assert.Contains(t, codes, "bad_document_type")
}

func TestValidateDateFormat(t *testing.T) {
	d := validDoc()
	d.PublicationDate = "March 15, 2024"

	res := New().Validate(d)

	assert.False(t, res.Valid)
	assert.Equal(t, "bad_date_format", res.Violations[0].Code)
}

func TestValidateNurembergIDWhenPresent(t *testing.T) {
	d := validDoc()
	d.ID = "not-an-id"

	res := New().Validate(d)

	assert.False(t, res.Valid)
	assert.Equal(t, "bad_nuremberg_number", res.Violations[0].Code)

	d.ID = "far_dfars-2024-000001"
	res = New().Validate(d)
	assert.True(t, res.Valid)
}

func TestValidateRequireID(t *testing.T) {
	v := New()
	v.RequireID = true

	res := v.Validate(validDoc())

	assert.False(t, res.Valid)
	assert.Equal(t, "missing_nuremberg_number", res.Violations[0].Code)
}

func TestValidateWarningsDoNotBlock(t *testing.T) {
	d := validDoc()
	d.Content = strings.Repeat("a", (4<<20)+1)
	d.ContentHash = ""

	res := New().Validate(d)

	assert.True(t, res.Valid)
	assert.False(t, res.Blocking())
	assert.Len(t, res.Violations, 2)
	for _, v := range res.Violations {
		assert.Equal(t, SeverityWarning, v.Severity)
	}
	assert.Less(t, res.QualityScore, 1.0)
}
