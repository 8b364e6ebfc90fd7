package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/agenthands/corpus/internal/apperr"
)

// FederalRegisterSource pulls rule documents from a Federal Register style
// JSON API.
type FederalRegisterSource struct {
	baseURL string
	client  *http.Client
}

type federalRegisterDoc struct {
	Title           string `json:"title"`
	Type            string `json:"type"`
	PublicationDate string `json:"publication_date"`
	Abstract        string `json:"abstract"`
	BodyHTMLURL     string `json:"body_html_url"`
	DocumentNumber  string `json:"document_number"`
	Agencies        []struct {
		Name string `json:"name"`
	} `json:"agencies"`
}

type federalRegisterPage struct {
	Results []federalRegisterDoc `json:"results"`
}

func NewFederalRegisterSource(baseURL string) *FederalRegisterSource {
	return &FederalRegisterSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *FederalRegisterSource) ID() string { return "federal_register" }

var federalTypeMap = map[string]string{
	"Rule":                  "rule",
	"Proposed Rule":         "proposed_rule",
	"Notice":                "notice",
	"Presidential Document": "presidential_document",
}

func (s *FederalRegisterSource) Fetch(ctx context.Context, req FetchRequest) ([]RawDocument, error) {
	q := url.Values{}
	if req.DateFrom != "" {
		q.Set("conditions[publication_date][gte]", req.DateFrom)
	}
	if req.DateTo != "" {
		q.Set("conditions[publication_date][lte]", req.DateTo)
	}
	if req.Query != "" {
		q.Set("conditions[term]", req.Query)
	}
	limit := req.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	q.Set("per_page", strconv.Itoa(limit))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.baseURL+"/documents.json?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: federal register fetch: %v", apperr.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: federal register returned %d", apperr.ErrSourceUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("federal register returned %d", resp.StatusCode)
	}

	var page federalRegisterPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("%w: undecodable federal register response: %v", apperr.ErrMalformedContent, err)
	}

	out := make([]RawDocument, 0, len(page.Results))
	for _, d := range page.Results {
		docType, ok := federalTypeMap[d.Type]
		if !ok {
			docType = "notice"
		}
		meta := map[string]any{
			"document_number": d.DocumentNumber,
			"body_html_url":   d.BodyHTMLURL,
		}
		if len(d.Agencies) > 0 {
			agencies := make([]string, 0, len(d.Agencies))
			for _, a := range d.Agencies {
				agencies = append(agencies, a.Name)
			}
			meta["agencies"] = agencies
		}
		out = append(out, RawDocument{
			Title:           d.Title,
			Source:          "federal_register",
			DocumentType:    docType,
			PublicationDate: d.PublicationDate,
			Content:         d.Abstract,
			Metadata:        meta,
		})
	}
	return out, nil
}
