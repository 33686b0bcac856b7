package cloudstore

import (
	"context"
	"strconv"
)

// metadataRow is the wire shape of the relational leg's row for one memory.
type metadataRow struct {
	ContentHash string                 `json:"content_hash"`
	Content     string                 `json:"content,omitempty"`
	BlobID      string                 `json:"blob_id,omitempty"`
	MemoryType  string                 `json:"memory_type"`
	Tags        []string               `json:"tags"`
	Metadata    map[string]interface{} `json:"metadata"`
	CreatedAt   float64                `json:"created_at"`
	UpdatedAt   float64                `json:"updated_at"`
	Quality     *float64               `json:"quality_score,omitempty"`
}

// metadataClient is the relational DB leg of the cloud store: metadata rows
// and tag rows accessed over the account's HTTP API. A direct
// Postgres driver is deliberately not used here since the cloud account is
// modeled as an HTTP service, not a database connection this process owns.
type metadataClient struct {
	http *httpClient
}

func newMetadataClient(c *httpClient) *metadataClient {
	return &metadataClient{http: c}
}

func (m *metadataClient) Put(ctx context.Context, row metadataRow) error {
	return m.http.doJSON(ctx, "PUT", "/v1/memories/"+row.ContentHash, row, nil)
}

func (m *metadataClient) Get(ctx context.Context, hash string) (*metadataRow, error) {
	var row metadataRow
	if err := m.http.doJSON(ctx, "GET", "/v1/memories/"+hash, nil, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (m *metadataClient) Delete(ctx context.Context, hash string) error {
	return m.http.doJSON(ctx, "DELETE", "/v1/memories/"+hash, nil, nil)
}

type listPage struct {
	Rows       []metadataRow `json:"rows"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// ListPage fetches one page of metadata rows, used by bulk reconciliation
// scans and drift detection so the
// hybrid store never pages with per-row N+1 tag lookups.
func (m *metadataClient) ListPage(ctx context.Context, cursor string, pageSize int) (*listPage, error) {
	path := "/v1/memories?limit=" + strconv.Itoa(pageSize)
	if cursor != "" {
		path += "&cursor=" + cursor
	}
	var page listPage
	if err := m.http.doJSON(ctx, "GET", path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
