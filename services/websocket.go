package services

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/qianlnk/mafia/models"
)

// WebSocketManager WebSocket连接管理器，实现Notifier接口
type WebSocketManager struct {
	connections map[string]*websocket.Conn // playerID -> connection
	sessions    map[string][]string        // sessionID -> []playerID
	registry    *SessionRegistry
	mutex       sync.RWMutex
}

// NewWebSocketManager 创建WebSocket管理器实例
func NewWebSocketManager() *WebSocketManager {
	return &WebSocketManager{
		connections: make(map[string]*websocket.Conn),
		sessions:    make(map[string][]string),
	}
}

// SetRegistry 设置会话注册表实例
func (wm *WebSocketManager) SetRegistry(r *SessionRegistry) {
	wm.registry = r
}

// Message WebSocket消息结构
type Message struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id"`
	Content   interface{} `json:"content"`
}

// RegisterConnection 注册新的WebSocket连接
func (wm *WebSocketManager) RegisterConnection(playerID string, conn *websocket.Conn) {
	wm.mutex.Lock()
	defer wm.mutex.Unlock()

	// 清理该玩家的旧连接
	if oldConn, exists := wm.connections[playerID]; exists {
		oldConn.Close()
		delete(wm.connections, playerID)
	}
	wm.connections[playerID] = conn

	go wm.handleMessages(playerID, conn)
	go wm.startPingHandler(playerID, conn)
}

// JoinSession 将玩家加入会话的广播组
func (wm *WebSocketManager) JoinSession(sessionID, playerID string) {
	wm.mutex.Lock()
	defer wm.mutex.Unlock()

	for _, pid := range wm.sessions[sessionID] {
		if pid == playerID {
			return
		}
	}
	wm.sessions[sessionID] = append(wm.sessions[sessionID], playerID)
}

// BroadcastToSession 向会话内所有玩家广播消息
func (wm *WebSocketManager) BroadcastToSession(sessionID string, message interface{}) {
	msgBytes, err := json.Marshal(message)
	if err != nil {
		log.Printf("[WebSocket广播] 消息序列化失败: %v", err)
		return
	}

	wm.mutex.RLock()
	playerIDs, exists := wm.sessions[sessionID]
	if !exists {
		wm.mutex.RUnlock()
		return
	}
	connections := make([]*websocket.Conn, 0, len(playerIDs))
	for _, playerID := range playerIDs {
		if conn, ok := wm.connections[playerID]; ok {
			connections = append(connections, conn)
		}
	}
	wm.mutex.RUnlock()

	for _, conn := range connections {
		if err := conn.WriteMessage(websocket.TextMessage, msgBytes); err != nil {
			log.Printf("[WebSocket广播] 向连接发送消息失败: %v", err)
		}
	}
}

// SendToPlayer 向指定玩家私发消息，带重试
func (wm *WebSocketManager) SendToPlayer(playerID string, message interface{}) error {
	wm.mutex.RLock()
	conn, exists := wm.connections[playerID]
	wm.mutex.RUnlock()
	if !exists {
		// 机器人和离线玩家没有连接，不算错误
		return nil
	}

	msg := Message{
		Type:    "private",
		Content: message,
	}

	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		conn.SetWriteDeadline(time.Now().Add(time.Second * 5))
		err := conn.WriteJSON(msg)
		conn.SetWriteDeadline(time.Time{})

		if err == nil {
			return nil
		}
		if i == maxRetries-1 {
			go wm.RemoveConnection(playerID)
			return err
		}

		log.Printf("发送消息到玩家 %s 失败 (尝试 %d/%d): %v", playerID, i+1, maxRetries, err)
		time.Sleep(time.Second * time.Duration(i+1))
	}

	return errors.New("发送消息失败，已达到最大重试次数")
}

// startPingHandler 启动心跳检测
func (wm *WebSocketManager) startPingHandler(playerID string, conn *websocket.Conn) {
	ticker := time.NewTicker(time.Second * 15)
	defer ticker.Stop()

	maxFailures := 3
	failures := 0

	for range ticker.C {
		wm.mutex.RLock()
		current, exists := wm.connections[playerID]
		wm.mutex.RUnlock()
		if !exists || current != conn {
			// 连接已被替换或移除
			return
		}

		if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second)); err != nil {
			failures++
			if failures >= maxFailures {
				log.Printf("玩家 %s 的连接已断开（心跳检测失败达到上限）", playerID)
				wm.RemoveConnection(playerID)
				return
			}
			continue
		}
		failures = 0
	}
}

// 断线后保留的重连窗口期
const playerCleanupDelay = 30 * time.Second

// RemoveConnection 移除WebSocket连接，窗口期内允许重连
func (wm *WebSocketManager) RemoveConnection(playerID string) {
	wm.mutex.Lock()
	conn, exists := wm.connections[playerID]
	if !exists {
		wm.mutex.Unlock()
		return
	}
	delete(wm.connections, playerID)
	wm.mutex.Unlock()

	conn.Close()

	go func() {
		time.Sleep(playerCleanupDelay)

		wm.mutex.Lock()
		defer wm.mutex.Unlock()

		// 玩家已重连则不清理
		if _, reconnected := wm.connections[playerID]; reconnected {
			return
		}
		for sessionID, players := range wm.sessions {
			for i, pid := range players {
				if pid == playerID {
					wm.sessions[sessionID] = append(players[:i], players[i+1:]...)
					break
				}
			}
			if len(wm.sessions[sessionID]) == 0 {
				delete(wm.sessions, sessionID)
			}
		}
		log.Printf("玩家 %s 未在重连窗口期内重连，已清理会话资源", playerID)
	}()
}

// handleMessages 处理接收到的WebSocket消息
func (wm *WebSocketManager) handleMessages(playerID string, conn *websocket.Conn) {
	conn.SetReadLimit(512 * 1024)

	for {
		_, p, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				break
			}
			log.Printf("读取消息失败: %v", err)
			wm.RemoveConnection(playerID)
			break
		}

		var msg Message
		if err := json.Unmarshal(p, &msg); err != nil {
			log.Printf("解析消息失败: %v", err)
			continue
		}

		switch msg.Type {
		case "game_action":
			wm.handleGameAction(playerID, msg)
		case "chat":
			if chat, ok := msg.Content.(map[string]interface{}); ok {
				wm.BroadcastToSession(msg.SessionID, map[string]interface{}{
					"type":      "chat",
					"player_id": playerID,
					"message":   chat["message"],
				})
			}
		default:
			log.Printf("未知的消息类型: %s", msg.Type)
		}
	}
}

// handleGameAction 将WebSocket动作转发给游戏协调器
func (wm *WebSocketManager) handleGameAction(playerID string, msg Message) {
	sendError := func(text string) {
		wm.SendToPlayer(playerID, map[string]interface{}{
			"type":    "error",
			"message": text,
		})
	}

	if msg.SessionID == "" {
		sendError("缺少会话ID")
		return
	}
	coordinator, exists := wm.registry.Get(msg.SessionID)
	if !exists {
		sendError("会话不存在")
		return
	}

	content, ok := msg.Content.(map[string]interface{})
	if !ok {
		sendError("无效的动作内容")
		return
	}
	kind, _ := content["kind"].(string)
	if kind == "" {
		sendError("无效的动作类型")
		return
	}

	// 开始游戏单独处理
	if kind == "start_game" {
		if err := coordinator.StartGame(); err != nil {
			sendError(err.Error())
		}
		return
	}

	targetID, _ := content["target_id"].(string)
	approve, _ := content["approve"].(bool)
	text, _ := content["content"].(string)

	action := models.GameAction{
		Kind:      models.ActionKind(kind),
		SessionID: msg.SessionID,
		PlayerID:  playerID,
		TargetID:  targetID,
		Approve:   approve,
		Content:   text,
	}
	if err := coordinator.SubmitAction(action); err != nil {
		sendError(err.Error())
	}
}
