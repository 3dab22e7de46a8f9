package qa

import (
	"context"
	"errors"
	"fmt"

	"github.com/rich7420/community-ai-agent-sub001/internal/llm"
	"github.com/rich7420/community-ai-agent-sub001/internal/models"
	"github.com/rich7420/community-ai-agent-sub001/internal/retrieval"
)

// Fixed user-facing answers. Backend error bodies never reach the caller.
const (
	MsgNoContext            = "I couldn't find any community records related to this question."
	MsgTruncated            = "Sorry, the response was cut off by the length limit. Please try asking a more concise question."
	MsgEmpty                = "Sorry, I was unable to generate a response."
	MsgTimeout              = "Sorry, the language model took too long to respond. Please try again in a moment."
	MsgBackendStatus        = "Sorry, the language model service returned an error (status %d). Please try again later."
	MsgFailed               = "Sorry, something went wrong while generating the answer. Please try again later."
	MsgEmbeddingUnavailable = "Sorry, I couldn't process the question right now. Please try again shortly."
	MsgStoreUnavailable     = "Sorry, the community records are unavailable right now. Please try again shortly."
)

// Failure categories attached to log lines as failure_category.
const (
	categoryTimeout   = "timeout"
	categoryStatus    = "backend_status"
	categoryTransport = "transport"
	categoryUnknown   = "unknown"
	categoryEmbedding = "embedding_unavailable"
	categoryStore     = "store_unavailable"
)

// llmFailure maps a generation error onto its outcome, message and log
// category.
func llmFailure(err error) (models.Outcome, string, string) {
	var status *llm.StatusError
	switch {
	case errors.Is(err, llm.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return models.OutcomeTimeout, MsgTimeout, categoryTimeout
	case errors.As(err, &status):
		return models.OutcomeBackendStatus, fmt.Sprintf(MsgBackendStatus, status.Code), categoryStatus
	case errors.Is(err, llm.ErrTransport):
		return models.OutcomeFailed, MsgFailed, categoryTransport
	default:
		return models.OutcomeFailed, MsgFailed, categoryUnknown
	}
}

// retrievalFailure maps a retrieval error onto its outcome, message and
// log category.
func retrievalFailure(err error) (models.Outcome, string, string) {
	switch {
	case errors.Is(err, retrieval.ErrEmbeddingUnavailable):
		return models.OutcomeNoEmbedding, MsgEmbeddingUnavailable, categoryEmbedding
	case errors.Is(err, retrieval.ErrStoreUnavailable):
		return models.OutcomeStoreFailed, MsgStoreUnavailable, categoryStore
	default:
		return models.OutcomeFailed, MsgFailed, categoryUnknown
	}
}
