// Package ai is the gateway to the text-generation backend: an eino chain
// composed of a prompt template and a chat model. It is consumed by the turn
// engine and owns no conversation state.
package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/hexlay/cyberchat/internal/config"
	"github.com/hexlay/cyberchat/internal/model/chat"
)

// Service wraps the compiled chat chain.
type Service struct {
	chatModel model.ChatModel
	cfg       config.AIConfig
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService builds the chat model from configuration and compiles the chain.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		cfg:       cfg,
		chain:     runnable,
	}, nil
}

// StreamingEnabled reports whether responses are streamed chunk by chunk.
func (s *Service) StreamingEnabled() bool {
	return s.cfg.StreamResponse
}

// Generate produces a complete assistant response in one call.
func (s *Service) Generate(ctx context.Context, system string, history []chat.Message, userMessage string) (*schema.Message, error) {
	response, err := s.chain.Invoke(ctx, chainInput(system, history, userMessage))
	if err != nil {
		return nil, fmt.Errorf("run chat chain: %w", err)
	}
	return response, nil
}

// Stream opens a chunked assistant response. The caller owns the reader and
// must close it.
func (s *Service) Stream(ctx context.Context, system string, history []chat.Message, userMessage string) (*schema.StreamReader[*schema.Message], error) {
	stream, err := s.chain.Stream(ctx, chainInput(system, history, userMessage))
	if err != nil {
		return nil, fmt.Errorf("stream chat chain output: %w", err)
	}
	return stream, nil
}

func chainInput(system string, history []chat.Message, userMessage string) map[string]any {
	return map[string]any{
		"system":  system,
		"history": historyMessages(history),
		"query":   userMessage,
	}
}

// historyMessages maps the full ordered transcript into model messages.
// System turns never occur in stored transcripts; the system prompt arrives
// separately through the template.
func historyMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}
