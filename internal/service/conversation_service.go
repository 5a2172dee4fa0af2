package service

import (
	"context"
	"roofsite-go/internal/model"
	"roofsite-go/internal/repository"
	"time"
)

// ConversationService 定义了对话记录业务逻辑的接口。
type ConversationService interface {
	GetConversationHistory(ctx context.Context, userID uint, scope string) ([]model.ChatMessage, error)
	AppendTurn(ctx context.Context, userID uint, scope, question, answer string) error
}

type conversationService struct {
	repo repository.ConversationRepository
}

// NewConversationService 创建一个新的 ConversationService。
func NewConversationService(repo repository.ConversationRepository) ConversationService {
	return &conversationService{repo: repo}
}

// GetConversationHistory 获取用户在某个 scope 下当前会话的消息历史。
func (s *conversationService) GetConversationHistory(ctx context.Context, userID uint, scope string) ([]model.ChatMessage, error) {
	conversationID, err := s.repo.GetOrCreateConversationID(ctx, userID, scope)
	if err != nil {
		return nil, err
	}
	return s.repo.GetConversationHistory(ctx, conversationID)
}

// AppendTurn 将一轮问答追加到用户的对话历史中。
func (s *conversationService) AppendTurn(ctx context.Context, userID uint, scope, question, answer string) error {
	conversationID, err := s.repo.GetOrCreateConversationID(ctx, userID, scope)
	if err != nil {
		return err
	}
	history, err := s.repo.GetConversationHistory(ctx, conversationID)
	if err != nil {
		return err
	}
	now := time.Now()
	history = append(history,
		model.ChatMessage{Role: model.RoleUser, Content: question, Timestamp: now},
		model.ChatMessage{Role: model.RoleAssistant, Content: answer, Timestamp: now},
	)
	return s.repo.UpdateConversationHistory(ctx, conversationID, history)
}
