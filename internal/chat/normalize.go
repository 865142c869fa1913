// Package chat converts OpenAI-style chat requests into the model's native
// query/history/system form and drives the generation capability.
package chat

import (
	"context"
	"fmt"
	"strings"

	"vlmodel/internal/core"
	"vlmodel/internal/images"
)

// DefaultSystemPrompt is used when the message list has no leading system message.
const DefaultSystemPrompt = "You are a helpful assistant."

// Normalizer extracts the (query, history, system) triple from an ordered
// chat message list, resolving embedded image references as it goes.
type Normalizer struct {
	resolver *images.Resolver
	imageDir string
}

// NewNormalizer creates a normalizer. Resolved images are written to imageDir.
func NewNormalizer(resolver *images.Resolver, imageDir string) *Normalizer {
	return &Normalizer{resolver: resolver, imageDir: imageDir}
}

// Normalize consumes messages as a queue: an optional leading system
// message, then (user, assistant) history pairs, then the final user query.
// The last message must be from the user. With an odd number of history
// messages the trailing unpaired one is dropped, preserving the upstream
// pairing behavior.
func (n *Normalizer) Normalize(ctx context.Context, messages []core.ChatMessage) (query string, history []core.HistoryTurn, system string, err error) {
	system = DefaultSystemPrompt

	rest := messages
	if len(rest) > 0 && rest[0].Role == "system" {
		system = rest[0].Content.PlainText()
		rest = rest[1:]
	}

	if len(rest) == 0 {
		return "", nil, "", core.NewMessageSequenceError(messages, "no user message")
	}
	last := rest[len(rest)-1]
	if last.Role != "user" {
		return "", nil, "", core.NewMessageSequenceError(messages, fmt.Sprintf("last message role is %q", last.Role))
	}
	rest = rest[:len(rest)-1]

	query, err = n.encodeMessage(ctx, last)
	if err != nil {
		return "", nil, "", err
	}

	// Pairwise consumption; a trailing unpaired message falls off the end.
	for i := 0; i+1 < len(rest); i += 2 {
		prompt, err := n.encodeMessage(ctx, rest[i])
		if err != nil {
			return "", nil, "", err
		}
		history = append(history, core.HistoryTurn{
			User:      prompt,
			Assistant: rest[i+1].Content.PlainText(),
		})
	}

	return query, history, system, nil
}

// encodeMessage renders one message's content into the model's list format:
// text segments pass through verbatim, image segments become numbered
// "Picture N: <img>path</img>" lines referencing a resolved local path.
// Only user messages are encoded this way; assistant turns stay raw text.
func (n *Normalizer) encodeMessage(ctx context.Context, msg core.ChatMessage) (string, error) {
	if !msg.Content.IsParts() {
		return msg.Content.Text, nil
	}

	var b strings.Builder
	numImages := 0
	for _, part := range msg.Content.Parts {
		switch part.Type {
		case core.PartTypeText:
			b.WriteString(part.Text)
		case core.PartTypeImageURL:
			if part.ImageURL == nil || part.ImageURL.URL == "" {
				return "", core.NewInvalidRequestError("image_url part without url", nil)
			}
			path, err := n.resolver.Resolve(ctx, part.ImageURL.URL, n.imageDir)
			if err != nil {
				return "", err
			}
			numImages++
			fmt.Fprintf(&b, "Picture %d: <img>%s</img>\n", numImages, path)
		}
	}
	return b.String(), nil
}
