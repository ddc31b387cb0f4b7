package services

import (
	"sync"

	"github.com/qianlnk/mafia/models"
)

// SuspicionLevel 怀疑等级
type SuspicionLevel int

const (
	SuspicionTrusted        SuspicionLevel = 1 // 信任
	SuspicionNeutral        SuspicionLevel = 2 // 中立
	SuspicionSuspicious     SuspicionLevel = 3 // 可疑
	SuspicionVerySuspicious SuspicionLevel = 4 // 非常可疑
	SuspicionConfirmedMafia SuspicionLevel = 5 // 确认黑手党
)

// voteRecord 一条提名记录：谁提名了谁
type voteRecord struct {
	voterID  string
	targetID string
}

// BotMemory 机器人对局记忆。每个机器人玩家一份，跨回合累积。
type BotMemory struct {
	suspicion      map[string]SuspicionLevel
	suspicionOrder []string // 记录写入顺序，超量时先淘汰最旧的
	confirmedRoles map[string]models.Role
	votingHistory  []voteRecord
	defendedMe     map[string]bool
	accusedMe      map[string]bool
	lastTarget     string // 上一夜选过的目标
	roundsObserved int

	mutex sync.Mutex
}

// NewBotMemory 创建机器人记忆
func NewBotMemory() *BotMemory {
	return &BotMemory{
		suspicion:      make(map[string]SuspicionLevel),
		confirmedRoles: make(map[string]models.Role),
		defendedMe:     make(map[string]bool),
		accusedMe:      make(map[string]bool),
	}
}

// SuspicionOf 查询对某玩家的怀疑等级，未记录视为中立
func (m *BotMemory) SuspicionOf(playerID string) SuspicionLevel {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if level, ok := m.suspicion[playerID]; ok {
		return level
	}
	return SuspicionNeutral
}

// SetSuspicion 更新怀疑等级
func (m *BotMemory) SetSuspicion(playerID string, level SuspicionLevel) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.setSuspicionLocked(playerID, level)
}

func (m *BotMemory) setSuspicionLocked(playerID string, level SuspicionLevel) {
	if _, exists := m.suspicion[playerID]; !exists {
		m.suspicionOrder = append(m.suspicionOrder, playerID)
	}
	m.suspicion[playerID] = level
}

// RecordCheckVerdict 记录阵营查验结论
func (m *BotMemory) RecordCheckVerdict(playerID string, verdict models.CheckVerdict) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if verdict == models.VerdictMafia {
		m.setSuspicionLocked(playerID, SuspicionConfirmedMafia)
	} else {
		m.setSuspicionLocked(playerID, SuspicionTrusted)
	}
}

// RecordExactRole 记录具体角色（军师查验）
func (m *BotMemory) RecordExactRole(playerID string, role models.Role) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.confirmedRoles[playerID] = role
	if models.FactionOf(role) == models.FactionMafia {
		m.setSuspicionLocked(playerID, SuspicionConfirmedMafia)
	} else {
		m.setSuspicionLocked(playerID, SuspicionTrusted)
	}
}

// RecordAccusation 记录提名或指控我的玩家。
// 每次指控把怀疑等级抬高一级，封顶在确认黑手党，反复指控会逐步升级。
func (m *BotMemory) RecordAccusation(accuserID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.accusedMe[accuserID] = true
	level, ok := m.suspicion[accuserID]
	if !ok {
		level = SuspicionNeutral
	}
	if level < SuspicionConfirmedMafia {
		m.setSuspicionLocked(accuserID, level+1)
	}
}

// RecordVote 记录一条提名，用于统计玩家的指控活跃度
func (m *BotMemory) RecordVote(voterID, targetID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.votingHistory = append(m.votingHistory, voteRecord{voterID: voterID, targetID: targetID})
}

// AccusationCount 该玩家发起过多少次提名
func (m *BotMemory) AccusationCount(playerID string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	count := 0
	for _, v := range m.votingHistory {
		if v.voterID == playerID {
			count++
		}
	}
	return count
}

// RecordDefense 记录为我开脱的玩家
func (m *BotMemory) RecordDefense(defenderID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.defendedMe[defenderID] = true
}

// AccusedMe 该玩家是否指控过我
func (m *BotMemory) AccusedMe(playerID string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.accusedMe[playerID]
}

// DefendedMe 该玩家是否为我开脱过
func (m *BotMemory) DefendedMe(playerID string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.defendedMe[playerID]
}

// WasAccused 是否有人指控过我
func (m *BotMemory) WasAccused() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.accusedMe) > 0
}

// ConfirmedRoleOf 查询已确认的角色（查验结果或死亡亮牌）
func (m *BotMemory) ConfirmedRoleOf(playerID string) (models.Role, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	role, ok := m.confirmedRoles[playerID]
	return role, ok
}

// LastTarget 上一夜的目标
func (m *BotMemory) LastTarget() string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.lastTarget
}

// SetLastTarget 记录本夜目标
func (m *BotMemory) SetLastTarget(playerID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.lastTarget = playerID
}

// ConfirmedMafiaTargets 返回已确认为黑手党且仍被记录的玩家
func (m *BotMemory) ConfirmedMafiaTargets() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	ids := make([]string, 0)
	for _, id := range m.suspicionOrder {
		if m.suspicion[id] == SuspicionConfirmedMafia {
			ids = append(ids, id)
		}
	}
	return ids
}

// SuspiciousTargets 返回怀疑等级不低于min的玩家
func (m *BotMemory) SuspiciousTargets(min SuspicionLevel) []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	ids := make([]string, 0)
	for _, id := range m.suspicionOrder {
		if m.suspicion[id] >= min {
			ids = append(ids, id)
		}
	}
	return ids
}

// ObserveDeath 死亡亮牌是公开信息，记入已确认角色
func (m *BotMemory) ObserveDeath(playerID string, role models.Role) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.confirmedRoles[playerID] = role
	if m.lastTarget == playerID {
		m.lastTarget = ""
	}
}

// AdvanceRound 回合推进，并在记忆超量时淘汰最旧的条目
func (m *BotMemory) AdvanceRound(aliveCount int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.roundsObserved++
	for len(m.suspicionOrder) > aliveCount {
		oldest := m.suspicionOrder[0]
		m.suspicionOrder = m.suspicionOrder[1:]
		delete(m.suspicion, oldest)
	}
}

// RoundsObserved 已观察的回合数
func (m *BotMemory) RoundsObserved() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.roundsObserved
}
