package services

import (
	"math"
	"sync"
	"time"

	"github.com/qianlnk/mafia/models"
)

// pendingCheck 夜晚查验请求，天亮应用死亡之后才发放结论
type pendingCheck struct {
	investigatorID string
	targetID       string
	exact          bool // 军师查验得到具体角色，侦探和警长助手只得到阵营结论
}

// GameSession 一局游戏的全部状态。
// 所有字段由mutex保护，协调器在持锁状态下读写。
type GameSession struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Players     []*models.Player `json:"players"` // 座位顺序
	Phase       models.Phase     `json:"phase"`
	Round       int              `json:"round"`
	SpecialMode bool             `json:"special_mode"`
	CreatedAt   time.Time        `json:"created_at"`

	// 持久化关联
	gameRecordID int64

	// 夜晚临时状态
	mafiaTarget   string
	killerID      string
	healTarget    string
	healerID      string
	shootTarget   string
	shooterID     string
	potatoThrows  map[string]string // 投掷者 -> 目标
	pendingChecks []pendingCheck

	// 遗言
	lastWordsText  map[string]string
	lastWordsAwait map[string]bool
	lastWordsDone  chan struct{}

	// 投票临时状态
	lynchVotes      map[string]bool
	nominationVotes map[string]string
	candidateID     string
	confirmVotes    map[string]bool

	// 阶段结算守卫：同一阶段只允许结算一次
	resolving bool

	mutex sync.Mutex
}

// NewGameSession 创建会话实例
func NewGameSession(id, name string) *GameSession {
	return &GameSession{
		ID:        id,
		Name:      name,
		Players:   make([]*models.Player, 0),
		Phase:     models.PhaseLobby,
		Round:     0,
		CreatedAt: time.Now(),
	}
}

// 以下辅助方法均要求调用方持有mutex

func (s *GameSession) playerByID(id string) *models.Player {
	for _, p := range s.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *GameSession) alivePlayers() []*models.Player {
	alive := make([]*models.Player, 0, len(s.Players))
	for _, p := range s.Players {
		if p.Alive {
			alive = append(alive, p)
		}
	}
	return alive
}

func (s *GameSession) aliveCount() int {
	count := 0
	for _, p := range s.Players {
		if p.Alive {
			count++
		}
	}
	return count
}

func (s *GameSession) mafiaAliveCount() int {
	count := 0
	for _, p := range s.Players {
		if p.Alive && models.FactionOf(p.Role) == models.FactionMafia {
			count++
		}
	}
	return count
}

// actingDonID 今晚决定刺杀目标的玩家：教父在世由教父决定，
// 否则按座位顺序由第一名存活黑手党接任。军师不接任。
func (s *GameSession) actingDonID() string {
	for _, p := range s.Players {
		if p.Alive && p.Role == models.Don {
			return p.ID
		}
	}
	for _, p := range s.Players {
		if p.Alive && p.Role == models.Mafia {
			return p.ID
		}
	}
	return ""
}

// requiredNightActors 今晚必须行动的玩家
func (s *GameSession) requiredNightActors() []string {
	ids := make([]string, 0)
	actingDon := s.actingDonID()
	for _, p := range s.Players {
		if !p.Alive {
			continue
		}
		switch {
		case p.ID == actingDon:
			ids = append(ids, p.ID)
		case p.Role == models.Doctor, p.Role == models.Detective,
			p.Role == models.Deputy, p.Role == models.Consigliere:
			ids = append(ids, p.ID)
		case p.Role == models.Petrushka && !p.HasUsedSwap:
			ids = append(ids, p.ID)
		case s.SpecialMode && s.Round == 1 && p.Role == models.Civilian && !p.HasThrownSpud:
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// nightComplete 所有必须行动的玩家都已行动
func (s *GameSession) nightComplete() bool {
	for _, id := range s.requiredNightActors() {
		if p := s.playerByID(id); p != nil && !p.ActedThisNight {
			return false
		}
	}
	return true
}

// resetNightState 进入新的夜晚前清理夜晚临时状态
func (s *GameSession) resetNightState() {
	s.mafiaTarget = ""
	s.killerID = ""
	s.healTarget = ""
	s.healerID = ""
	s.shootTarget = ""
	s.shooterID = ""
	s.potatoThrows = make(map[string]string)
	s.pendingChecks = s.pendingChecks[:0]
	s.lastWordsText = make(map[string]string)
	s.lastWordsAwait = nil
	s.lastWordsDone = nil
	for _, p := range s.Players {
		p.ActedThisNight = false
	}
}

// resetVoteState 清理投票管线的临时状态
func (s *GameSession) resetVoteState() {
	s.lynchVotes = make(map[string]bool)
	s.nominationVotes = make(map[string]string)
	s.candidateID = ""
	s.confirmVotes = make(map[string]bool)
}

// weightedLynchTally 统计处决表决，市长权重为2
func (s *GameSession) weightedLynchTally() (yes, total int) {
	for id, approve := range s.lynchVotes {
		p := s.playerByID(id)
		if p == nil || !p.Alive {
			continue
		}
		w := models.VoteWeight(p.Role)
		total += w
		if approve {
			yes += w
		}
	}
	return yes, total
}

// nominationTally 统计提名票数，返回每个候选人的加权票数
func (s *GameSession) nominationTally() map[string]int {
	tally := make(map[string]int)
	for voterID, targetID := range s.nominationVotes {
		if targetID == "" {
			continue // 弃权
		}
		voter := s.playerByID(voterID)
		if voter == nil || !voter.Alive {
			continue
		}
		tally[targetID] += models.VoteWeight(voter.Role)
	}
	return tally
}

// nominationThreshold 候选人当选所需的最低加权票数
func (s *GameSession) nominationThreshold(ratio float64) int {
	return int(math.Ceil(float64(s.aliveCount()) * ratio))
}

// confirmTally 统计最终确认票，候选人本人不参与
func (s *GameSession) confirmTally() (yes int) {
	for id, approve := range s.confirmVotes {
		p := s.playerByID(id)
		if p == nil || !p.Alive || id == s.candidateID {
			continue
		}
		if approve {
			yes += models.VoteWeight(p.Role)
		}
	}
	return yes
}

// checkWin 胜负判定。黑手党全灭则平民胜；
// 黑手党人数追平或超过其余存活者则黑手党胜。
func (s *GameSession) checkWin() (models.Faction, bool) {
	mafiaAlive := s.mafiaAliveCount()
	townAlive := s.aliveCount() - mafiaAlive

	if mafiaAlive == 0 {
		return models.FactionTown, true
	}
	if mafiaAlive >= townAlive {
		return models.FactionMafia, true
	}
	return "", false
}

// status 构建对外状态快照，玩家列表使用公开视图
func (s *GameSession) status(timeLeft int) models.SessionStatus {
	players := make([]models.Player, 0, len(s.Players))
	for _, p := range s.Players {
		players = append(players, p.PublicView())
	}
	return models.SessionStatus{
		SessionID:   s.ID,
		Phase:       s.Phase,
		Round:       s.Round,
		Players:     players,
		SpecialMode: s.SpecialMode,
		TimeLeft:    timeLeft,
	}
}
