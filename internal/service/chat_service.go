package service

import (
	"context"
	"fmt"
	"roofsite-go/internal/model"
	"roofsite-go/internal/prompt"
	"roofsite-go/pkg/llm"
	"roofsite-go/pkg/log"
	"roofsite-go/pkg/siteconfig"
)

// ChatRequest 是一次对话请求。SiteID 非零时，edit 模式提取出的配置会合并到该站点的草稿。
type ChatRequest struct {
	Messages []model.ChatMessage
	Mode     prompt.Mode
	SiteID   uint
}

// ChatResult 汇总一轮流式对话的结果。
type ChatResult struct {
	Answer  string
	Display string
	Config  siteconfig.SiteConfig
	Changes []string
	Applied bool
}

// ChatService 定义了聊天操作的接口。
type ChatService interface {
	// StreamChat 将上游增量原样写入 w，user 为 nil 表示匿名用户。
	StreamChat(ctx context.Context, user *model.User, req ChatRequest, w llm.DeltaWriter) (*ChatResult, error)
}

type chatService struct {
	llmClient           llm.Client
	conversationService ConversationService
	siteService         SiteService
	gen                 *llm.GenerationParams
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(llmClient llm.Client, conversationService ConversationService, siteService SiteService, gen *llm.GenerationParams) ChatService {
	return &chatService{
		llmClient:           llmClient,
		conversationService: conversationService,
		siteService:         siteService,
		gen:                 gen,
	}
}

// StreamChat 选择模式提示词，流式转发模型输出，并在结束后保存对话、应用提取出的配置。
func (s *chatService) StreamChat(ctx context.Context, user *model.User, req ChatRequest, w llm.DeltaWriter) (*ChatResult, error) {
	mode := req.Mode
	if mode == nil {
		mode = prompt.Onboarding{}
	}
	if req.SiteID != 0 {
		if user == nil {
			return nil, ErrForbidden
		}
		if _, err := s.siteService.Get(user.ID, req.SiteID); err != nil {
			return nil, err
		}
	}

	systemPrompt, err := mode.SystemPrompt()
	if err != nil {
		return nil, err
	}
	messages := s.composeMessages(systemPrompt, req.Messages)

	extractor := siteconfig.NewExtractor(mode.ParsesChanges())
	tee := llm.DeltaWriterFunc(func(content string) error {
		extractor.Feed(content)
		return w.WriteDelta(content)
	})
	if err := s.llmClient.StreamChatMessages(ctx, messages, s.gen, tee); err != nil {
		return nil, err
	}
	extractor.Finish()

	result := &ChatResult{
		Answer:  extractor.Raw(),
		Display: extractor.Display(),
		Config:  extractor.Config(),
		Changes: extractor.Changes(),
	}

	// 使用后台上下文，请求结束后仍保存已生成的内容
	bg := context.Background()
	if user != nil && result.Answer != "" {
		if question := lastUserMessage(req.Messages); question != "" {
			if err := s.conversationService.AppendTurn(bg, user.ID, ConversationScope(mode.Name(), req.SiteID), question, result.Display); err != nil {
				log.Errorf("保存对话历史失败: %v", err)
			}
		}
	}

	if mode.Name() == prompt.ModeEdit && req.SiteID != 0 && result.Config != nil {
		if _, err := s.siteService.ApplyConfig(user.ID, req.SiteID, result.Config); err != nil {
			log.Errorf("合并站点配置失败: site=%d, error: %v", req.SiteID, err)
		} else {
			result.Applied = true
			log.Infow("站点配置已更新", "site", req.SiteID, "changes", len(result.Changes))
		}
	}
	return result, nil
}

func (s *chatService) composeMessages(systemPrompt string, history []model.ChatMessage) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, llm.Message{Role: model.RoleSystem, Content: systemPrompt})
	for _, m := range history {
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	return msgs
}

func lastUserMessage(msgs []model.ChatMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}

// ConversationScope 返回对话历史的作用域：模式名，关联站点时追加站点 ID。
func ConversationScope(mode string, siteID uint) string {
	if siteID != 0 {
		return fmt.Sprintf("%s:site-%d", mode, siteID)
	}
	return mode
}
