package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"scoring/internal/platform/tracer"
	"scoring/internal/sentinel"
	"scoring/internal/store"
)

// Interests fetches the stored interests document of every client. The
// result is keyed by the decimal client ID. A client with nothing stored gets
// an empty list; a store failure or an undecodable document fails the call.
// Duplicate IDs are looked up once.
func (e *Engine) Interests(ctx context.Context, clientIDs []int64) (map[string]any, error) {
	ctx, span := e.tracer.Start(ctx, tracer.SpanInterests, tracer.Int64(tracer.AttrNClients, int64(len(clientIDs))))

	var (
		mu     sync.Mutex
		result = make(map[string]any, len(clientIDs))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.fanout)
	seen := make(map[int64]struct{}, len(clientIDs))
	for _, id := range clientIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		g.Go(func() error {
			doc, err := e.interest(gctx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			result[strconv.FormatInt(id, 10)] = doc
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	span.End(err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) interest(ctx context.Context, clientID int64) (any, error) {
	raw, err := e.store.Get(ctx, store.InterestsKey(clientID))
	if errors.Is(err, sentinel.ErrNotFound) {
		e.metrics.IncrementInterestLookups("miss")
		return []any{}, nil
	}
	if err != nil {
		e.metrics.IncrementInterestLookups("error")
		return nil, fmt.Errorf("interests for client %d: %w", clientID, err)
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		e.metrics.IncrementInterestLookups("error")
		return nil, fmt.Errorf("decode interests for client %d: %w", clientID, err)
	}
	e.metrics.IncrementInterestLookups("hit")
	return doc, nil
}
