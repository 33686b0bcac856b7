package cloudstore

import "context"

// blobClient is the optional blob store leg for content above the large
// threshold (~1MB). The metadata row then stores a blob id
// instead of inline content.
type blobClient struct {
	http *httpClient
}

func newBlobClient(c *httpClient) *blobClient {
	return &blobClient{http: c}
}

type putBlobRequest struct {
	Content string `json:"content"`
}

type putBlobResponse struct {
	BlobID string `json:"blob_id"`
}

func (b *blobClient) Put(ctx context.Context, content string) (string, error) {
	var resp putBlobResponse
	if err := b.http.doJSON(ctx, "POST", "/v1/blobs", putBlobRequest{Content: content}, &resp); err != nil {
		return "", err
	}
	return resp.BlobID, nil
}

type getBlobResponse struct {
	Content string `json:"content"`
}

func (b *blobClient) Get(ctx context.Context, blobID string) (string, error) {
	var resp getBlobResponse
	if err := b.http.doJSON(ctx, "GET", "/v1/blobs/"+blobID, nil, &resp); err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (b *blobClient) Delete(ctx context.Context, blobID string) error {
	return b.http.doJSON(ctx, "DELETE", "/v1/blobs/"+blobID, nil, nil)
}
