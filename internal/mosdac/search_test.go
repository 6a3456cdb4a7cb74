package mosdac

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchPage = `{
	"totalResults": 250,
	"totalSizeMB": 1536.5,
	"itemsPerPage": 100,
	"entries": [
		{"identifier": "3RIMG_01JAN2024_0015_L1B_STD_V01R00.h5", "id": "9001", "updated": "2024-01-01T00:15:00Z"},
		{"identifier": "3RIMG_01JAN2024_0045_L1B_STD_V01R00.h5", "id": 9002, "updated": null}
	]
}`

func TestSearchQuery_ParamsOmitsEmpty(t *testing.T) {
	q := SearchQuery{DatasetID: "3RIMG_L1B_STD", StartTime: "2024-01-01", Count: "", StartIndex: 51}

	assert.Equal(t, map[string]string{
		"datasetId": "3RIMG_L1B_STD",
		"startTime": "2024-01-01",
	}, q.Params())
}

func TestSearchClient_Count(t *testing.T) {
	tests := []struct {
		name  string
		query SearchQuery
		want  int
	}{
		{"uncapped uses total results", SearchQuery{DatasetID: "SAT"}, 250},
		{"capped uses page size", SearchQuery{DatasetID: "SAT", Count: "100"}, 100},
		{"start index is not sent", SearchQuery{DatasetID: "SAT", StartIndex: 51}, 250},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/datasets.json", r.URL.Path)
				assert.Equal(t, "SAT", r.URL.Query().Get("datasetId"))
				assert.Equal(t, tt.query.Count, r.URL.Query().Get("count"))
				assert.False(t, r.URL.Query().Has("startIndex"))

				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(searchPage))
			}))

			summary, err := NewSearchClient(client).Count(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, summary.Total)
			assert.InDelta(t, 1536.5, summary.TotalSizeMB, 0.001)
			assert.Equal(t, tt.query.Capped(), summary.Capped)
		})
	}
}

func TestSearchClient_Page(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "101", r.URL.Query().Get("startIndex"))

		_, _ = w.Write([]byte(searchPage))
	}))

	items, err := NewSearchClient(client).Page(context.Background(), SearchQuery{DatasetID: "SAT"}, 101)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, RecordID("9001"), items[0].ID)
	assert.Equal(t, RecordID("9002"), items[1].ID)

	ts, ok := items[0].UpdatedAt()
	require.True(t, ok)
	assert.Equal(t, 2024, ts.Year())

	_, ok = items[1].UpdatedAt()
	assert.False(t, ok)
}

func TestSearchClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		kind    SearchErrorKind
		message string
	}{
		{"bad request", http.StatusBadRequest, SearchValidation, "Invalid datasetId"},
		{"not found", http.StatusNotFound, SearchValidation, "Invalid datasetId"},
		{"server error", http.StatusBadGateway, SearchServerError, "Invalid datasetId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, tt.status, map[string][]string{"message": {"Invalid datasetId", "see docs"}})
			}))

			_, err := NewSearchClient(client).Count(context.Background(), SearchQuery{DatasetID: "NOPE"})

			var searchErr *SearchError
			require.ErrorAs(t, err, &searchErr)
			assert.Equal(t, tt.kind, searchErr.Kind)
			assert.Equal(t, tt.status, searchErr.StatusCode)
			assert.Equal(t, tt.message, searchErr.Message)
		})
	}
}

func TestSearchClient_NetworkFailure(t *testing.T) {
	_, err := NewSearchClient(closedClient(t)).Count(context.Background(), SearchQuery{DatasetID: "SAT"})

	var searchErr *SearchError
	require.ErrorAs(t, err, &searchErr)
	assert.Equal(t, SearchNetworkFailure, searchErr.Kind)
}

func TestSearchClient_CheckReleased(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		released bool
	}{
		{"not released", `[[1]]`, false},
		{"released", `[[0]]`, true},
		{"empty answer", `[]`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/check-internet", r.URL.Path)
				assert.Equal(t, http.MethodPost, r.Method)

				var body map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "SAT", body["datasetId"])

				_, _ = w.Write([]byte(tt.body))
			}))

			released, err := NewSearchClient(client).CheckReleased(context.Background(), "SAT")
			require.NoError(t, err)
			assert.Equal(t, tt.released, released)
		})
	}
}

func TestSearchClient_CheckReleasedMalformed(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"unexpected": true}`))
	}))

	_, err := NewSearchClient(client).CheckReleased(context.Background(), "SAT")
	assert.Error(t, err)
}
