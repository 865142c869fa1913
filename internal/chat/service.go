package chat

import (
	"context"
	"log/slog"
	"path"
	"time"

	"vlmodel/internal/core"
)

// Service implements the chat completion contract: it validates the
// requested model and features, normalizes the message history, and invokes
// the injected generation capability.
type Service struct {
	modelName  string
	generator  core.Generator
	normalizer *Normalizer
	logger     *slog.Logger
	created    int64
}

// NewService creates a chat completion service for a single hosted model.
func NewService(modelName string, generator core.Generator, normalizer *Normalizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		modelName:  modelName,
		generator:  generator,
		normalizer: normalizer,
		logger:     logger.With("component", "chat"),
		created:    time.Now().Unix(),
	}
}

// ChatCompletion validates req, normalizes its messages and generates a reply.
func (s *Service) ChatCompletion(ctx context.Context, req *core.ChatRequest) (*core.ChatResponse, error) {
	if req.Model != s.modelName {
		return nil, core.NewModelNotFoundError(req.Model)
	}
	if len(req.Functions) > 0 || len(req.Tools) > 0 {
		return nil, core.NewFunctionCallError("")
	}
	if req.Stream {
		return nil, core.NewNotImplementedError("Stream chat is not implemented.")
	}

	query, history, system, err := s.normalizer.Normalize(ctx, req.Messages)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("normalized chat request", "query", query, "history_turns", len(history), "system", system)

	text, err := s.generator.Generate(ctx, query, history, system, core.SamplingOptions{
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Seed:        req.Seed,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	return core.NewChatResponse(s.modelName, text), nil
}

// ListModels returns the single hosted model.
func (s *Service) ListModels() *core.ModelList {
	ownedBy := path.Dir(s.modelName)
	if ownedBy == "." || ownedBy == "/" {
		ownedBy = "owner"
	}
	return &core.ModelList{
		Object: "list",
		Data: []core.ModelCard{
			{
				ID:      s.modelName,
				Object:  "model",
				Created: s.created,
				OwnedBy: ownedBy,
			},
		},
	}
}
