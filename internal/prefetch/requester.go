package prefetch

import (
	"context"

	"github.com/abhisek/examforge/internal/batch"
	"github.com/abhisek/examforge/internal/server"
	"github.com/abhisek/examforge/internal/session"
)

// LocalRequester serves batches from an in-process session service.
type LocalRequester struct {
	*session.Service
}

// RequestBatch implements Requester.
func (r LocalRequester) RequestBatch(ctx context.Context, sessionID string, batchIndex int) ([]batch.SessionQuestion, error) {
	d, err := r.NextBatch(ctx, sessionID, batchIndex)
	if err != nil {
		return nil, err
	}
	return d.Questions, nil
}

// HTTPRequester serves batches from a remote server. A 409 response
// unwraps to ErrConflict.
type HTTPRequester struct {
	*server.Client
}

// RequestBatch implements Requester.
func (r HTTPRequester) RequestBatch(ctx context.Context, sessionID string, batchIndex int) ([]batch.SessionQuestion, error) {
	d, err := r.NextBatch(ctx, sessionID, batchIndex)
	if err != nil {
		return nil, err
	}
	return d.Questions, nil
}
