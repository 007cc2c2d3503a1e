package domain

import "errors"

// Sentinel errors matched with errors.Is across retriever, generator and
// judge backends (§4, Error Handling Design).
var (
	ErrRetrievalUnavailable = errors.New("retrieval backend unavailable")
	ErrGenerationTimeout    = errors.New("generation timed out")
	ErrGenerationRefused    = errors.New("generation refused by backend")
	ErrJudgeUnavailable     = errors.New("judge backend unavailable")
	ErrAggregatorOverflow   = errors.New("aggregator has reached MAX_OPEN_BATCHES")
	ErrAggregatorHalted     = errors.New("aggregator halted after exhausting sink write retries")
)
