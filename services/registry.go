package services

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qianlnk/mafia/config"
	"github.com/qianlnk/mafia/models"
	"github.com/qianlnk/mafia/storage"
)

// SessionRegistry 会话注册表：创建、查找、加入和移除游戏会话
type SessionRegistry struct {
	cfg      *config.Config
	notifier Notifier
	store    *storage.Store

	coordinators map[string]*GameCoordinator
	mutex        sync.RWMutex
}

// NewSessionRegistry 创建注册表实例。store为nil时不做持久化。
func NewSessionRegistry(cfg *config.Config, notifier Notifier, store *storage.Store) *SessionRegistry {
	if notifier == nil {
		notifier = NopNotifier()
	}
	return &SessionRegistry{
		cfg:          cfg,
		notifier:     notifier,
		store:        store,
		coordinators: make(map[string]*GameCoordinator),
	}
}

// CreateSession 创建新会话
func (r *SessionRegistry) CreateSession(name string) *GameSession {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	session := NewGameSession(uuid.NewString(), name)
	coordinator := NewGameCoordinator(session, r.cfg, r.notifier, r.store, r, time.Now().UnixNano())
	r.coordinators[session.ID] = coordinator

	log.Printf("[注册表] 创建会话 %s（%s）", session.ID, name)
	return session
}

// Get 按ID查找协调器
func (r *SessionRegistry) Get(sessionID string) (*GameCoordinator, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	c, exists := r.coordinators[sessionID]
	return c, exists
}

// List 列出所有会话的状态快照
func (r *SessionRegistry) List() []models.SessionStatus {
	r.mutex.RLock()
	coordinators := make([]*GameCoordinator, 0, len(r.coordinators))
	for _, c := range r.coordinators {
		coordinators = append(coordinators, c)
	}
	r.mutex.RUnlock()

	statuses := make([]models.SessionStatus, 0, len(coordinators))
	for _, c := range coordinators {
		statuses = append(statuses, c.Status())
	}
	return statuses
}

// JoinSession 玩家加入会话。只允许在大厅阶段加入。
func (r *SessionRegistry) JoinSession(sessionID string, player models.Player) error {
	c, exists := r.Get(sessionID)
	if !exists {
		return ErrSessionNotFound
	}

	s := c.session
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.Phase != models.PhaseLobby {
		return ErrGameInProgress
	}
	if len(s.Players) >= r.cfg.MaxPlayers {
		return ErrSessionFull
	}
	for _, p := range s.Players {
		if p.ID == player.ID {
			// 重复加入时只更新名字
			p.Name = player.Name
			return nil
		}
	}

	if player.ID == "" {
		player.ID = uuid.NewString()
	}
	player.Type = models.HumanPlayer
	player.Alive = true
	s.Players = append(s.Players, &player)
	return nil
}

// AddBots 向会话补充机器人玩家
func (r *SessionRegistry) AddBots(sessionID string, count int) error {
	c, exists := r.Get(sessionID)
	if !exists {
		return ErrSessionNotFound
	}
	if count > r.cfg.MaxBots {
		count = r.cfg.MaxBots
	}

	s := c.session
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.Phase != models.PhaseLobby {
		return ErrGameInProgress
	}
	for i := 0; i < count; i++ {
		if len(s.Players) >= r.cfg.MaxPlayers {
			return ErrSessionFull
		}
		s.Players = append(s.Players, &models.Player{
			ID:    uuid.NewString(),
			Name:  fmt.Sprintf("机器人%d", len(s.Players)+1),
			Type:  models.BotPlayer,
			Alive: true,
		})
	}
	return nil
}

// Remove 从注册表移除会话
func (r *SessionRegistry) Remove(sessionID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.coordinators[sessionID]; exists {
		delete(r.coordinators, sessionID)
		log.Printf("[注册表] 移除会话 %s", sessionID)
	}
}
