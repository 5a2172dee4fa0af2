package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"roofsite-go/internal/model"
	"roofsite-go/internal/prompt"
	"roofsite-go/internal/service"
	"roofsite-go/pkg/log"
	"roofsite-go/pkg/ratelimit"
	"roofsite-go/pkg/siteconfig"
	"roofsite-go/pkg/sse"
	"roofsite-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源，鉴权由路径中的 token 完成
	},
}

// ChatMessageBody 是请求中的一条对话消息。
type ChatMessageBody struct {
	Role    string `json:"role" binding:"required,oneof=user assistant"`
	Content string `json:"content"`
}

// ChatRequestBody 是 POST /api/v1/chat 与 websocket 消息的请求体。
type ChatRequestBody struct {
	Messages      []ChatMessageBody     `json:"messages" binding:"required,min=1,dive"`
	Mode          string                `json:"mode"`
	CurrentConfig siteconfig.SiteConfig `json:"currentConfig"`
	SiteID        uint                  `json:"siteId"`
}

func (b ChatRequestBody) toRequest() (service.ChatRequest, error) {
	mode, err := prompt.FromRequest(b.Mode, b.CurrentConfig)
	if err != nil {
		return service.ChatRequest{}, err
	}
	msgs := make([]model.ChatMessage, 0, len(b.Messages))
	for _, m := range b.Messages {
		msgs = append(msgs, model.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return service.ChatRequest{Messages: msgs, Mode: mode, SiteID: b.SiteID}, nil
}

// ChatHandler 负责处理流式聊天请求（SSE 与 WebSocket 两种传输）。
type ChatHandler struct {
	chatService service.ChatService
	userService service.UserService
	jwtManager  *token.JWTManager
	limiter     *ratelimit.Limiter
}

// NewChatHandler 创建一个新的 ChatHandler。limiter 用于 WebSocket 连接内的逐条消息限流。
func NewChatHandler(chatService service.ChatService, userService service.UserService, jwtManager *token.JWTManager, limiter *ratelimit.Limiter) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		userService: userService,
		jwtManager:  jwtManager,
		limiter:     limiter,
	}
}

// Stream 处理 POST /api/v1/chat，以 text/event-stream 逐个转发模型增量。
// 首个字节发出前失败时返回 JSON 错误；之后失败则直接关闭流，不发送 [DONE]。
func (h *ChatHandler) Stream(c *gin.Context) {
	var body ChatRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		log.Warnf("Chat: Invalid request payload, error: %v", err)
		fail(c, http.StatusBadRequest, "无效的请求负载："+err.Error())
		return
	}
	req, err := body.toRequest()
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	user := currentUser(c)
	w := sse.NewWriter(c.Writer)
	if _, err := h.chatService.StreamChat(c.Request.Context(), user, req, w); err != nil {
		if w.Started() {
			log.Errorf("流式响应中断: %v", err)
			return
		}
		if errors.Is(err, context.Canceled) {
			log.Infof("客户端已断开: %s", c.ClientIP())
			return
		}
		respondError(c, err)
		return
	}
	if err := w.Done(); err != nil {
		log.Warnf("发送结束事件失败: %v", err)
	}
}

// Handle 处理 WebSocket 连接 /chat/ws/:token。每条文本消息是一个 ChatRequestBody，
// 回复使用与 SSE 相同的 "data: ..." 帧，每帧一条 websocket 消息。
func (h *ChatHandler) Handle(c *gin.Context) {
	tokenString := c.Param("token")
	claims, err := h.jwtManager.VerifyToken(tokenString)
	if err != nil || h.userService.IsRevoked(c.Request.Context(), tokenString) {
		fail(c, http.StatusUnauthorized, "无效的 token")
		return
	}
	user, err := h.userService.GetProfile(claims.Username)
	if err != nil {
		fail(c, http.StatusInternalServerError, "无法获取用户信息")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()
	log.Infof("WebSocket 连接已建立，用户: %s", claims.Username)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			return
		}
		if err := h.handleMessage(c.Request.Context(), conn, user, message); err != nil {
			log.Warnf("WebSocket 写入失败，关闭连接: %v", err)
			return
		}
	}
}

// handleMessage 处理一条 websocket 消息，只有写连接失败时返回错误。
func (h *ChatHandler) handleMessage(ctx context.Context, conn *websocket.Conn, user *model.User, message []byte) error {
	var body ChatRequestBody
	if err := json.Unmarshal(message, &body); err != nil {
		return writeWSError(conn, http.StatusBadRequest, "无效的请求负载")
	}
	if err := binding.Validator.ValidateStruct(&body); err != nil {
		return writeWSError(conn, http.StatusBadRequest, "无效的请求负载："+err.Error())
	}
	req, err := body.toRequest()
	if err != nil {
		return writeWSError(conn, http.StatusBadRequest, err.Error())
	}

	if res := h.limiter.Allow(ctx, fmt.Sprintf("chat:%d", user.ID)); !res.Allowed {
		return writeWSJSON(conn, gin.H{
			"error":      "Too many requests. Please try again later.",
			"retryAfter": res.RetryAfter(),
		})
	}

	w := &wsDeltaWriter{conn: conn}
	if _, err := h.chatService.StreamChat(ctx, user, req, w); err != nil {
		if w.err != nil {
			return w.err
		}
		if w.started {
			log.Errorf("WebSocket 流式响应中断: %v", err)
			return writeWSError(conn, http.StatusBadGateway, msgUpstreamFailed)
		}
		status, msg := errorStatus(err)
		return writeWSError(conn, status, msg)
	}
	return conn.WriteMessage(websocket.TextMessage, sse.DoneFrame())
}

// wsDeltaWriter 将增量编码为 SSE 帧写入 websocket。
type wsDeltaWriter struct {
	conn    *websocket.Conn
	started bool
	err     error
}

func (w *wsDeltaWriter) WriteDelta(content string) error {
	frame, err := sse.DeltaFrame(content)
	if err != nil {
		return err
	}
	if err := w.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		w.err = err
		return err
	}
	w.started = true
	return nil
}

func writeWSError(conn *websocket.Conn, status int, message string) error {
	return writeWSJSON(conn, gin.H{"code": status, "error": message})
}

func writeWSJSON(conn *websocket.Conn, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, b)
}
