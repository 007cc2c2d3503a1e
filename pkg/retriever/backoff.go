package retriever

import (
	"context"
	"errors"
	"time"

	"github.com/pattabhia/rlvr-pdf-chat/internal/domain"

	"github.com/cenkalti/backoff/v5"
)

// WithRetry wraps a Retriever so transient RetrievalUnavailable errors are
// retried with capped exponential backoff (3 attempts, 200ms→2s, §4.A).
// Any other error is treated as permanent and surfaces immediately.
func WithRetry(inner Retriever) Retriever {
	return &retryingRetriever{inner: inner}
}

type retryingRetriever struct {
	inner Retriever
}

func (r *retryingRetriever) Retrieve(ctx context.Context, question string, k int) ([]domain.Passage, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second

	return backoff.Retry(ctx, func() ([]domain.Passage, error) {
		passages, err := r.inner.Retrieve(ctx, question, k)
		if err != nil {
			if errors.Is(err, domain.ErrRetrievalUnavailable) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return passages, nil
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(3))
}
