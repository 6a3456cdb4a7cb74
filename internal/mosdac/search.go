package mosdac

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/italolelis/mosdac_downloader/internal/logctx"
)

// SearchClient queries the public catalog and the release pre-check.
type SearchClient struct {
	client *Client
}

// NewSearchClient creates a catalog client sharing client's transport.
func NewSearchClient(client *Client) *SearchClient {
	return &SearchClient{client: client}
}

// Count reports how many items the query will yield. When the query carries
// an explicit count the page size is authoritative, otherwise the catalog's
// total is.
func (s *SearchClient) Count(ctx context.Context, q SearchQuery) (SearchSummary, error) {
	page, err := s.fetch(ctx, "search_count", q.Params())
	if err != nil {
		return SearchSummary{}, err
	}

	total := page.TotalResults
	if q.Capped() {
		total = page.ItemsPerPage
	}

	logctx.LoggerFromContext(ctx).Debug("search counted",
		"dataset_id", q.DatasetID,
		"total_results", page.TotalResults,
		"items_per_page", page.ItemsPerPage,
		"total", total,
	)

	return SearchSummary{
		DatasetID:   q.DatasetID,
		Total:       total,
		TotalSizeMB: page.TotalSizeMB,
		Capped:      q.Capped(),
	}, nil
}

// Page fetches the entries starting at the 1-based startIndex. The caller's
// count, if any, is forwarded so the server sizes the page.
func (s *SearchClient) Page(ctx context.Context, q SearchQuery, startIndex int) ([]DatasetItem, error) {
	params := q.Params()
	params["startIndex"] = strconv.Itoa(startIndex)

	page, err := s.fetch(ctx, "search_page", params)
	if err != nil {
		return nil, err
	}

	return page.Entries, nil
}

func (s *SearchClient) fetch(ctx context.Context, operation string, params map[string]string) (*SearchResultPage, error) {
	resp, err := s.client.get(ctx, operation, s.client.endpoints.SearchURL, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, &SearchError{Kind: SearchNetworkFailure, Message: err.Error(), Err: err}
	}

	status := resp.StatusCode()
	if status != http.StatusOK {
		apiErr := ParseAPIError(status, resp.Body())

		kind := SearchServerError
		if status >= 400 && status < 500 {
			kind = SearchValidation
		}

		return nil, &SearchError{Kind: kind, StatusCode: status, Message: apiErr.FirstMessage(), Err: apiErr}
	}

	var page SearchResultPage
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return nil, &SearchError{
			Kind:       SearchServerError,
			StatusCode: status,
			Message:    "malformed search response",
			Err:        fmt.Errorf("failed to decode search response: %w", err),
		}
	}

	return &page, nil
}

// CheckReleased asks the download API whether datasetID is available to
// download. A nil error with false means the dataset is known and not yet
// released to the public. Transport or decoding failures are returned so the
// caller can decide to proceed anyway.
func (s *SearchClient) CheckReleased(ctx context.Context, datasetID string) (bool, error) {
	body := map[string]string{"datasetId": datasetID}

	resp, err := s.client.postJSON(ctx, "check_internet", s.client.endpoints.url(checkInternetPath), body)
	if err != nil {
		return false, fmt.Errorf("failed to check dataset release: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return false, ParseAPIError(resp.StatusCode(), resp.Body())
	}

	var rows [][]any
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return false, fmt.Errorf("failed to decode release check: %w", err)
	}

	if len(rows) > 0 && len(rows[0]) > 0 {
		if flag, ok := rows[0][0].(float64); ok && flag == 1 {
			return false, nil
		}
	}

	return true, nil
}
