package hybridstore

import (
	"context"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/memory"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/merrors"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/storage"
	"github.com/shaneholloman/mcp-memory-service-sub001/internal/syncqueue"
)

// secondaryApplier replays a queued Operation against the secondary
// backend, implementing syncqueue.Applier.
type secondaryApplier struct {
	secondary storage.Backend
}

func (a *secondaryApplier) Apply(ctx context.Context, op syncqueue.Operation) error {
	switch op.Kind {
	case syncqueue.KindStore:
		m, ok := op.Payload.(*memory.Memory)
		if !ok {
			return merrors.Validation("sync op %s: payload is not *memory.Memory", op.OpID)
		}
		_, err := a.secondary.Store(ctx, m)
		return err

	case syncqueue.KindDelete:
		return a.secondary.Delete(ctx, op.ContentHash)

	case syncqueue.KindUpdateMetadata:
		md, ok := op.Payload.(map[string]interface{})
		if !ok {
			return merrors.Validation("sync op %s: payload is not metadata map", op.OpID)
		}
		return a.secondary.UpdateMetadata(ctx, op.ContentHash, md)

	case syncqueue.KindUpdateContent:
		content, ok := op.Payload.(string)
		if !ok {
			return merrors.Validation("sync op %s: payload is not string content", op.OpID)
		}
		return a.secondary.UpdateContent(ctx, op.ContentHash, content)

	default:
		return merrors.Validation("sync op %s: unsupported kind %q", op.OpID, op.Kind)
	}
}

// applyInline runs op against the secondary synchronously, used when the
// queue is full and the wait deadline passes: an op must never be dropped.
func applyInline(ctx context.Context, secondary storage.Backend, op syncqueue.Operation) error {
	a := &secondaryApplier{secondary: secondary}
	return a.Apply(ctx, op)
}
