package core

import "context"

// HistoryTurn is one prior (user, assistant) exchange in model-ready form.
type HistoryTurn struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// SamplingOptions carries the decoding parameters forwarded to the model.
type SamplingOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	Seed        *int64   `json:"seed,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// Generator is the injected text generation capability. The concrete
// implementation talks to a local inference runtime; from this subsystem's
// perspective it is an opaque, blocking call.
type Generator interface {
	Generate(ctx context.Context, query string, history []HistoryTurn, system string, opts SamplingOptions) (string, error)
}

// AvailabilityChecker is an optional interface for generators that can
// verify their backend is reachable before the server starts.
type AvailabilityChecker interface {
	CheckAvailability(ctx context.Context) error
}
