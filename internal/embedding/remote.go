package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/merrors"
)

// RemoteProvider calls a configurable HTTP embedding endpoint, used for the
// cloud store's 768-dimension space.
type RemoteProvider struct {
	baseURL    string
	bearer     string
	dims       int
	httpClient *http.Client
}

// NewRemoteProvider builds a RemoteProvider targeting baseURL.
func NewRemoteProvider(baseURL, bearer string, dims int, timeout time.Duration) *RemoteProvider {
	if dims <= 0 {
		dims = 768
	}
	return &RemoteProvider{
		baseURL: baseURL,
		bearer:  bearer,
		dims:    dims,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (p *RemoteProvider) Dimensions() int { return p.dims }

type embedRequest struct {
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (p *RemoteProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *RemoteProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Texts: texts})
	if err != nil {
		return nil, merrors.Embedding(err, "encoding embed request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, merrors.Embedding(err, "building embed request")
	}
	req.Header.Set("Content-Type", "application/json")
	if p.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+p.bearer)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, merrors.Embedding(err, "calling embedding endpoint")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, merrors.Embedding(fmt.Errorf("status %d", resp.StatusCode), "embedding endpoint returned error")
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, merrors.Embedding(err, "decoding embed response")
	}
	for _, v := range decoded.Embeddings {
		if len(v) != p.dims {
			return nil, merrors.Embedding(nil, "embedding endpoint returned %d dims, want %d", len(v), p.dims)
		}
	}
	return decoded.Embeddings, nil
}
