// Package cloudstore implements a remote cloud store composed of a
// qdrant-backed vector index, an HTTP-based relational metadata/tag leg, and
// an optional blob leg for large content, with collection/point handling
// keyed by content hash.
package cloudstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/merrors"
)

// VectorIndex is the qdrant leg of the cloud store, keyed by content hash
// (vector ids are the raw hash, <= 64 bytes).
type VectorIndex struct {
	client         *qdrant.Client
	collectionName string
	dims           uint64
}

// NewVectorIndex dials qdrant and returns an uninitialized index; call
// EnsureCollection before use.
func NewVectorIndex(host string, port int, apiKey string, useTLS bool, collection string, dims int) (*VectorIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   host,
		Port:                   port,
		APIKey:                 apiKey,
		UseTLS:                 useTLS,
		SkipCompatibilityCheck: true,
	})
	if err != nil {
		return nil, merrors.Network(err, "creating qdrant client")
	}
	return &VectorIndex{client: client, collectionName: collection, dims: uint64(dims)}, nil
}

// EnsureCollection creates the collection if it does not already exist, so
// concurrent processes can attach without erroring on an existing collection.
func (v *VectorIndex) EnsureCollection(ctx context.Context) error {
	collections, err := v.client.ListCollections(ctx)
	if err != nil {
		return merrors.Network(err, "listing qdrant collections")
	}
	for _, name := range collections {
		if name == v.collectionName {
			return nil
		}
	}

	err = v.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: v.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     v.dims,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return merrors.Network(err, "creating qdrant collection %s", v.collectionName)
	}
	return nil
}

// Upsert stores a single embedding under its content hash.
func (v *VectorIndex) Upsert(ctx context.Context, hash string, vec []float32) error {
	_, err := v.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: v.collectionName,
		Points: []*qdrant.PointStruct{
			{
				Id:      hashPointID(hash),
				Vectors: qdrant.NewVectors(vec...),
			},
		},
	})
	if err != nil {
		return merrors.Network(err, "upserting vector for %s", hash)
	}
	return nil
}

// Search performs cosine KNN, returning content hashes and scores.
func (v *VectorIndex) Search(ctx context.Context, query []float32, limit int, minScore float64) ([]ScoredHash, error) {
	result, err := v.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: v.collectionName,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		ScoreThreshold: qdrant.PtrOf(float32(minScore)),
	})
	if err != nil {
		return nil, merrors.Network(err, "searching qdrant")
	}

	out := make([]ScoredHash, 0, len(result))
	for _, point := range result {
		out = append(out, ScoredHash{Hash: pointIDToHash(point.GetId()), Score: float64(point.GetScore())})
	}
	return out, nil
}

// Delete removes points by content hash, using the /delete_by_ids-style bulk
// selector rather than a per-id call.
func (v *VectorIndex) Delete(ctx context.Context, hashes []string) error {
	if len(hashes) == 0 {
		return nil
	}
	ids := make([]*qdrant.PointId, len(hashes))
	for i, h := range hashes {
		ids[i] = hashPointID(h)
	}
	_, err := v.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: v.collectionName,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: ids},
			},
		},
	})
	if err != nil {
		return merrors.Network(err, "deleting %d vectors", len(hashes))
	}
	return nil
}

// CountApprox returns the collection's point count, used for capacity
// awareness (callers warn at 80%, flag critical at 95% of the published limit).
func (v *VectorIndex) CountApprox(ctx context.Context) (uint64, error) {
	info, err := v.client.GetCollectionInfo(ctx, v.collectionName)
	if err != nil {
		return 0, merrors.Network(err, "getting collection info")
	}
	return info.GetPointsCount(), nil
}

// ScoredHash is a search hit: a content hash with its similarity score.
type ScoredHash struct {
	Hash  string
	Score float64
}

func hashPointID(hash string) *qdrant.PointId {
	return &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: hash}}
}

func pointIDToHash(id *qdrant.PointId) string {
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return fmt.Sprintf("%d", id.GetNum())
}
