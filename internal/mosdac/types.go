package mosdac

import (
	"bytes"
	"encoding/json"
	"time"
)

// UpdatedLayout is the timestamp format the catalog uses for the updated field.
const UpdatedLayout = "2006-01-02T15:04:05Z"

// Credentials are supplied once per run and never persisted.
type Credentials struct {
	Username string
	Password string
}

// Session is the token pair owned by AuthSession.
type Session struct {
	AccessToken  string
	RefreshToken string
	Username     string
}

// SearchQuery describes one catalog search. Every optional field left empty
// is omitted from the request.
type SearchQuery struct {
	DatasetID   string
	StartTime   string
	EndTime     string
	Count       string
	BoundingBox string
	GID         string
	StartIndex  int
}

// Capped reports whether a result limit was configured.
func (q SearchQuery) Capped() bool {
	return q.Count != ""
}

// Params renders the filter part of the query string, leaving out unset
// optional fields. Paging is added by SearchClient.Page.
func (q SearchQuery) Params() map[string]string {
	params := map[string]string{"datasetId": q.DatasetID}

	optional := map[string]string{
		"startTime":   q.StartTime,
		"endTime":     q.EndTime,
		"count":       q.Count,
		"boundingBox": q.BoundingBox,
		"gId":         q.GID,
	}

	for k, v := range optional {
		if v != "" {
			params[k] = v
		}
	}

	return params
}

// SearchResultPage is one page of datasets.json.
type SearchResultPage struct {
	TotalResults int           `json:"totalResults"`
	TotalSizeMB  float64       `json:"totalSizeMB"`
	ItemsPerPage int           `json:"itemsPerPage"`
	Entries      []DatasetItem `json:"entries"`
}

// SearchSummary is what Count reports before any download starts.
type SearchSummary struct {
	DatasetID   string
	Total       int
	TotalSizeMB float64
	Capped      bool
}

// DatasetItem is one downloadable catalog entry.
type DatasetItem struct {
	Identifier string   `json:"identifier"`
	ID         RecordID `json:"id"`
	Updated    string   `json:"updated"`
}

// UpdatedAt parses the item's update timestamp in UTC. It reports false when
// the catalog did not supply one or it cannot be parsed.
func (i DatasetItem) UpdatedAt() (time.Time, bool) {
	if i.Updated == "" {
		return time.Time{}, false
	}

	t, err := time.Parse(UpdatedLayout, i.Updated)
	if err != nil {
		t, err = time.Parse(time.RFC3339, i.Updated)
		if err != nil {
			return time.Time{}, false
		}
	}

	return t.UTC(), true
}

// RecordID is the opaque key used to fetch an item's bytes. The catalog
// has been seen to send it both as a string and as a number.
type RecordID string

func (r *RecordID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*r = ""

		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}

		*r = RecordID(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}

	*r = RecordID(n.String())

	return nil
}

func (r RecordID) String() string {
	return string(r)
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
