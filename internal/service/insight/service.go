// Package insight turns session captures and conversation history into
// bounded prompts for the external chat model, and owns the quick
// one-shot insight flow.
package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/revela-app/revela/backend/internal/config"
	"github.com/revela-app/revela/backend/internal/logging"
	"github.com/revela-app/revela/backend/internal/model/capture"
	"github.com/revela-app/revela/backend/internal/model/session"
	"github.com/revela-app/revela/backend/internal/service/registry"
)

// ErrInference wraps any failure or timeout of the model collaborator. The
// session survives the error and the conversation gains nothing; the caller
// may retry.
var ErrInference = errors.New("analysis failed")

const quickInsightQuestion = "Give a brief overview of this data: the most notable values, any visible trend, and anything unusual worth a closer look."

const systemPromptFormat = `You are Revela, an assistant that analyses data captured from web pages.
The user captured a %s from %s.

Summary of the captured data:
%s

Answer questions about this data concisely. Ground every statement in the
summary above; if the summary cannot support an answer, say so instead of
guessing.`

// Service runs the prompt chain against the model.
type Service struct {
	reg     *registry.Registry
	chain   compose.Runnable[map[string]any, *schema.Message]
	history int
	log     zerolog.Logger
}

// NewService compiles the prompt chain with the configured Ark chat model.
func NewService(ctx context.Context, cfg config.AIConfig, reg *registry.Registry, historyLimit int) (*Service, error) {
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
		return nil, fmt.Errorf("compile insight chain: %w", err)
	}

	return &Service{
		reg:     reg,
		chain:   runnable,
		history: historyLimit,
		log:     logging.Component("insight"),
	}, nil
}

// Respond answers message within sess's conversation. The session guard is
// held for the whole call, inference included, so the session counts as busy
// until the answer lands; on success exactly one user and one assistant turn
// are appended.
func (s *Service) Respond(ctx context.Context, sess *session.Session, message string) (string, error) {
	sess.Lock()
	defer sess.Unlock()

	if sess.Ended() {
		return "", registry.ErrNotFound
	}

	response, err := s.chain.Invoke(ctx, s.chainInput(sess, message))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInference, err)
	}

	s.recordExchange(sess, message, response.Content)
	s.log.Debug().Str("session", sess.ID).Int("answerLen", len(response.Content)).Msg("generated answer")
	return response.Content, nil
}

// StreamRespond is Respond over the chain's streaming path: each content
// chunk is passed to emit as it arrives, and the assembled answer is
// appended to history once the stream completes. An emit error aborts the
// stream without recording the exchange.
func (s *Service) StreamRespond(ctx context.Context, sess *session.Session, message string, emit func(chunk string) error) (string, error) {
	sess.Lock()
	defer sess.Unlock()

	if sess.Ended() {
		return "", registry.ErrNotFound
	}

	stream, err := s.chain.Stream(ctx, s.chainInput(sess, message))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInference, err)
	}
	defer stream.Close()

	var answer []byte
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInference, err)
		}
		if chunk.Content == "" {
			continue
		}
		answer = append(answer, chunk.Content...)
		if err := emit(chunk.Content); err != nil {
			return "", err
		}
	}

	s.recordExchange(sess, message, string(answer))
	return string(answer), nil
}

// QuickInsight serves the one-shot flow: create a throwaway session, ask a
// canned opening question, and end the session before returning so one-shot
// requests never accumulate in the registry.
func (s *Service) QuickInsight(ctx context.Context, p capture.Payload, sourceURL string) (string, error) {
	id := "quick-" + uuid.NewString()
	if _, err := s.reg.Create(ctx, id, p, sourceURL); err != nil {
		return "", err
	}
	defer s.reg.End(id)

	sess, err := s.reg.Get(id)
	if err != nil {
		return "", err
	}
	return s.Respond(ctx, sess, quickInsightQuestion)
}

// recordExchange appends the user/assistant pair and refreshes the idle
// clock. Caller must hold the session lock.
func (s *Service) recordExchange(sess *session.Session, message, answer string) {
	now := time.Now()
	sess.Touch(now)
	sess.Append(
		session.Turn{ID: uuid.NewString(), Role: session.RoleUser, Text: message, Timestamp: now},
		session.Turn{ID: uuid.NewString(), Role: session.RoleAssistant, Text: answer, Timestamp: now},
	)
}

// chainInput builds the bounded prompt context: summary-bearing system
// prompt, the last K turns, and the new message. Caller must hold the
// session lock.
func (s *Service) chainInput(sess *session.Session, message string) map[string]any {
	return map[string]any{
		"system":  s.buildSystemPrompt(sess),
		"history": toSchemaMessages(sess.Recent(s.history)),
		"query":   message,
	}
}

func (s *Service) buildSystemPrompt(sess *session.Session) string {
	summaryJSON, err := json.Marshal(sess.Summary)
	if err != nil {
		summaryJSON = []byte("{}")
	}
	source := sess.SourceURL
	if source == "" {
		source = "an unknown page"
	}
	return fmt.Sprintf(systemPromptFormat, sess.Kind, source, summaryJSON)
}

func toSchemaMessages(turns []session.Turn) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}
	history := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case session.RoleUser:
			history = append(history, schema.UserMessage(turn.Text))
		case session.RoleAssistant:
			history = append(history, schema.AssistantMessage(turn.Text, nil))
		}
	}
	return history
}
