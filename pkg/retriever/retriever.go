package retriever

import (
	"context"

	"github.com/pattabhia/rlvr-pdf-chat/internal/domain"
)

// Retriever returns the top-k context passages backing a question (§4.A).
// Implementations are expected to wrap a vector store, lexical index, or
// hybrid search backend; the orchestrator only ever sees this contract.
type Retriever interface {
	Retrieve(ctx context.Context, question string, k int) ([]domain.Passage, error)
}
