package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/corpus/internal/apperr"
)

const federalPage = `{
	"results": [
		{
			"title": "Assessing Contractor Implementation of Cybersecurity Requirements",
			"type": "Rule",
			"publication_date": "2024-03-15",
			"abstract": "DoD is issuing a final rule.",
			"document_number": "2024-05432",
			"agencies": [{"name": "Defense Department"}]
		},
		{
			"title": "Information Collection Notice",
			"type": "Unlisted Category",
			"publication_date": "2024-03-16",
			"abstract": "Comment request.",
			"document_number": "2024-05433"
		}
	]
}`

func TestFederalFetchMapsDocuments(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(federalPage))
	}))
	defer srv.Close()

	s := NewFederalRegisterSource(srv.URL)
	docs, err := s.Fetch(context.Background(), FetchRequest{
		DateFrom: "2024-03-01", DateTo: "2024-03-31", Query: "cybersecurity", Limit: 20,
	})
	require.NoError(t, err)

	assert.Contains(t, gotQuery, "per_page=20")
	assert.Contains(t, gotQuery, "cybersecurity")

	require.Len(t, docs, 2)
	assert.Equal(t, "federal_register", docs[0].Source)
	assert.Equal(t, "rule", docs[0].DocumentType)
	assert.Equal(t, "2024-03-15", docs[0].PublicationDate)
	assert.Equal(t, "2024-05432", docs[0].Metadata["document_number"])
	assert.Equal(t, []string{"Defense Department"}, docs[0].Metadata["agencies"])

	assert.Equal(t, "notice", docs[1].DocumentType, "unknown types map to notice")
}

func TestFederalFetchServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewFederalRegisterSource(srv.URL)
	_, err := s.Fetch(context.Background(), FetchRequest{})
	assert.ErrorIs(t, err, apperr.ErrSourceUnavailable)
}

func TestFederalFetchClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewFederalRegisterSource(srv.URL)
	_, err := s.Fetch(context.Background(), FetchRequest{})
	require.Error(t, err)
	assert.False(t, apperr.Transient(err))
}

func TestFederalFetchBadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	s := NewFederalRegisterSource(srv.URL)
	_, err := s.Fetch(context.Background(), FetchRequest{})
	assert.ErrorIs(t, err, apperr.ErrMalformedContent)
}
