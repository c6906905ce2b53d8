package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/synapse-labs/synapse/internal/memory"
)

// ErrNotFound marks lookups of a conversation that does not exist or that
// the caller does not own. The two cases are deliberately the same error.
var ErrNotFound = errors.New("conversation not found")

// Service manages conversation threads and their durable message log.
type Service struct {
	repo Repository
}

// NewService creates a new conversation service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetOrCreateActive returns the conversation a chat message should land in.
// An explicit id wins; otherwise the most recently touched thread is reused,
// and a fresh one is opened for first-time users.
func (s *Service) GetOrCreateActive(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID, firstMessage string) (*Conversation, error) {
	if conversationID != nil {
		conv, err := s.repo.GetByID(ctx, *conversationID, userID)
		if err != nil {
			return nil, err
		}
		if conv == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, conversationID)
		}
		return conv, nil
	}

	conv, err := s.repo.MostRecent(ctx, userID)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		return conv, nil
	}

	conv = &Conversation{UserID: userID, Title: titleFrom(firstMessage)}
	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Create opens a new conversation thread.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, title string) (*Conversation, error) {
	conv := &Conversation{UserID: userID, Title: title}
	if conv.Title == "" {
		conv.Title = "New conversation"
	}
	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Append durably stores one turn. A failure here is fatal for the request
// that produced the turn.
func (s *Service) Append(ctx context.Context, conversationID uuid.UUID, role, content string) (*Message, error) {
	msg := &Message{ConversationID: conversationID, Role: role, Content: content}
	if err := s.repo.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Recent returns the newest `limit` turns, oldest first.
func (s *Service) Recent(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error) {
	return s.repo.RecentMessages(ctx, conversationID, limit)
}

// RecentTurns adapts the durable message log to the pipeline's conversation
// window. It backs the context assembler when the short-term cache is cold.
func (s *Service) RecentTurns(ctx context.Context, conversationID uuid.UUID, limit int) ([]memory.Turn, error) {
	msgs, err := s.repo.RecentMessages(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}
	turns := make([]memory.Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, memory.Turn{Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt})
	}
	return turns, nil
}

// List returns the user's conversations, most recently touched first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Conversation, int64, error) {
	return s.repo.List(ctx, userID, page, pageSize)
}

// History returns a page of a conversation's messages in chronological order.
func (s *Service) History(ctx context.Context, userID, conversationID uuid.UUID, page, pageSize int) ([]Message, int64, error) {
	conv, err := s.repo.GetByID(ctx, conversationID, userID)
	if err != nil {
		return nil, 0, err
	}
	if conv == nil {
		return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, conversationID)
	}
	return s.repo.ListMessages(ctx, conversationID, page, pageSize)
}

// Delete removes a conversation and its messages.
func (s *Service) Delete(ctx context.Context, userID, conversationID uuid.UUID) error {
	return s.repo.Delete(ctx, conversationID, userID)
}

// titleFrom derives a short thread title from the opening message.
func titleFrom(message string) string {
	cleaned := strings.Join(strings.Fields(message), " ")
	if cleaned == "" {
		return "New conversation"
	}
	const maxTitle = 60
	if len(cleaned) > maxTitle {
		cleaned = strings.TrimSpace(cleaned[:maxTitle]) + "..."
	}
	return cleaned
}
