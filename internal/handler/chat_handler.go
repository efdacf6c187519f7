// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"ai-edu-go/internal/model"
	"ai-edu-go/internal/service"
	"ai-edu-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	missingIdentifiersMessage = "Missing chat_id or user_id."
	upstreamFailureMessage    = "AIサービスが一時的に利用できません。しばらくしてから再度お試しください。"
	streamDoneMarker          = "[DONE]"
)

// ChatHandler 负责 /chat、SSE 流式与 WebSocket 流式三个入口。
type ChatHandler struct {
	chatService service.ChatService
	upgrader    websocket.Upgrader
}

// NewChatHandler 创建一个新的 ChatHandler。originPattern 同时用于 WebSocket 的来源校验。
func NewChatHandler(chatService service.ChatService, originPattern string) *ChatHandler {
	allowed := regexp.MustCompile(originPattern)
	return &ChatHandler{
		chatService: chatService,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// 非浏览器客户端不带 Origin
				return origin == "" || allowed.MatchString(origin)
			},
		},
	}
}

// Chat 处理一次非流式聊天请求。
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Chat: 无效的请求体: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body."})
		return
	}

	reply, err := h.chatService.Handle(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingIdentifiers):
			c.JSON(http.StatusBadRequest, gin.H{"error": missingIdentifiersMessage})
		case errors.Is(err, service.ErrUpstream):
			c.PureJSON(http.StatusBadGateway, gin.H{"error": upstreamFailureMessage})
		default:
			log.Errorf("Chat: 处理请求失败: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.PureJSON(http.StatusOK, reply)
}

// Stream 以 SSE 形式逐条返回增量内容，最后发送 [DONE]。
func (h *ChatHandler) Stream(c *gin.Context) {
	var req model.StreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Stream: 无效的请求体: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body."})
		return
	}

	c.Header("Content-Type", "text/event-stream; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	w := &sseWriter{c: c}
	if err := h.chatService.Stream(c.Request.Context(), req.Messages, w); err != nil {
		if errors.Is(err, service.ErrClientGone) {
			log.Warnf("Stream: 客户端已断开: %v", err)
			return
		}
		log.Errorf("Stream: 流式响应失败: %v", err)
		_ = w.writeEvent(gin.H{"error": upstreamFailureMessage})
	}
	_ = w.writeData([]byte(streamDoneMarker))
}

// sseWriter 把每个增量写成一条 data 事件并立即 flush。
type sseWriter struct {
	c *gin.Context
}

func (w *sseWriter) WriteToken(token string) error {
	return w.writeEvent(gin.H{"token": token})
}

func (w *sseWriter) writeEvent(v any) error {
	data, err := marshalUnescaped(v)
	if err != nil {
		return err
	}
	return w.writeData(data)
}

func (w *sseWriter) writeData(data []byte) error {
	buf := make([]byte, 0, len(data)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, data...)
	buf = append(buf, "\n\n"...)
	if _, err := w.c.Writer.Write(buf); err != nil {
		return err
	}
	w.c.Writer.Flush()
	return nil
}

// WebSocket 每收到一帧 {"messages": [...]} 就流式返回 {"token"} 帧，最后发送 [DONE] 文本帧。
func (h *ChatHandler) WebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()
	log.Infof("WebSocket 连接已建立: %s", c.ClientIP())

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			return
		}

		var req model.StreamRequest
		if err := json.Unmarshal(message, &req); err != nil {
			log.Warnf("WebSocket: 无效的消息: %v", err)
			if err := conn.WriteJSON(gin.H{"error": "Invalid message."}); err != nil {
				return
			}
			continue
		}

		w := wsWriter{conn: conn}
		if err := h.chatService.Stream(c.Request.Context(), req.Messages, w); err != nil {
			if errors.Is(err, service.ErrClientGone) {
				log.Warnf("WebSocket: 客户端已断开: %v", err)
				return
			}
			log.Errorf("WebSocket: 流式响应失败: %v", err)
			if werr := conn.WriteJSON(gin.H{"error": upstreamFailureMessage}); werr != nil {
				return
			}
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(streamDoneMarker)); err != nil {
			return
		}
	}
}

type wsWriter struct {
	conn *websocket.Conn
}

func (w wsWriter) WriteToken(token string) error {
	data, err := marshalUnescaped(gin.H{"token": token})
	if err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// marshalUnescaped 序列化 JSON，不转义 HTML 字符，也不带结尾换行。
func marshalUnescaped(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
