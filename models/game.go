package models

// Phase 游戏阶段
type Phase string

const (
	PhaseLobby        Phase = "lobby"        // 大厅等待
	PhaseNight        Phase = "night"        // 夜晚行动
	PhaseDay          Phase = "day"          // 白天讨论
	PhaseLynchVote    Phase = "lynch_vote"   // 处决表决
	PhaseNomination   Phase = "nomination"   // 提名投票
	PhaseConfirmation Phase = "confirmation" // 最终确认
	PhaseEnded        Phase = "ended"        // 游戏结束
)

// Role 游戏角色
type Role string

const (
	// 黑手党阵营
	Don         Role = "don"         // 教父
	Mafia       Role = "mafia"       // 黑手党
	Consigliere Role = "consigliere" // 军师

	// 平民阵营
	Doctor      Role = "doctor"      // 医生
	Detective   Role = "detective"   // 侦探
	Deputy      Role = "deputy"      // 警长助手
	Mayor       Role = "mayor"       // 市长
	Executioner Role = "executioner" // 刽子手
	Petrushka   Role = "petrushka"   // 彼得鲁什卡
	Civilian    Role = "civilian"    // 平民
)

// Faction 阵营
type Faction string

const (
	FactionMafia Faction = "mafia" // 黑手党阵营
	FactionTown  Faction = "town"  // 平民阵营
)

// PlayerType 玩家类型
type PlayerType string

const (
	HumanPlayer PlayerType = "human" // 真人玩家
	BotPlayer   PlayerType = "bot"   // 机器人玩家
)

// Player 玩家信息
type Player struct {
	ID     string     `json:"id"`
	UserID string     `json:"user_id,omitempty"` // 账号标识，用于积分统计
	Name   string     `json:"name"`
	Type   PlayerType `json:"type"`
	Role   Role       `json:"role,omitempty"`
	Alive  bool       `json:"alive"`

	// 一次性能力标记
	HasSelfHealed  bool `json:"-"` // 医生是否已自救
	HasUsedGun     bool `json:"-"` // 侦探是否已开枪
	HasUsedSwap    bool `json:"-"` // 彼得鲁什卡是否已换牌
	HasRopeBroken  bool `json:"-"` // 刽子手免死是否已消耗
	HasThrownSpud  bool `json:"-"` // 特殊模式下是否已扔土豆
	ActedThisNight bool `json:"-"` // 本夜是否已行动

	// 战绩统计
	Kills  int `json:"-"`
	Heals  int `json:"-"`
	Checks int `json:"-"` // 正确查验次数
}

// PublicView 返回可以广播的玩家信息，不泄露角色和能力状态
func (p *Player) PublicView() Player {
	return Player{
		ID:    p.ID,
		Name:  p.Name,
		Type:  p.Type,
		Alive: p.Alive,
	}
}

// FactionOf 返回角色所属阵营
func FactionOf(role Role) Faction {
	switch role {
	case Don, Mafia, Consigliere:
		return FactionMafia
	default:
		return FactionTown
	}
}

// VoteWeight 返回角色的投票权重，市长一票算两票
func VoteWeight(role Role) int {
	if role == Mayor {
		return 2
	}
	return 1
}

// ActionKind 动作类型
type ActionKind string

const (
	ActionKill      ActionKind = "kill"       // 黑手党杀人
	ActionHeal      ActionKind = "heal"       // 医生救治
	ActionCheck     ActionKind = "check"      // 查验身份
	ActionShoot     ActionKind = "shoot"      // 侦探开枪
	ActionSwap      ActionKind = "swap"       // 彼得鲁什卡换牌
	ActionPotato    ActionKind = "potato"     // 特殊模式扔土豆
	ActionSkip      ActionKind = "skip"       // 放弃本夜行动
	ActionVote      ActionKind = "vote"       // 处决表决
	ActionNominate  ActionKind = "nominate"   // 提名候选人
	ActionConfirm   ActionKind = "confirm"    // 最终确认投票
	ActionLastWords ActionKind = "last_words" // 遗言
)

// GameAction 游戏动作
type GameAction struct {
	Kind      ActionKind `json:"kind"`
	SessionID string     `json:"session_id"`
	PlayerID  string     `json:"player_id"`
	TargetID  string     `json:"target_id,omitempty"`
	Approve   bool       `json:"approve,omitempty"` // 表决类动作的赞成/反对
	Content   string     `json:"content,omitempty"` // 遗言内容
	Timestamp int64      `json:"timestamp"`
}

// SessionStatus 对外暴露的会话状态
type SessionStatus struct {
	SessionID   string   `json:"session_id"`
	Phase       Phase    `json:"phase"`
	Round       int      `json:"round"`
	Players     []Player `json:"players"` // 公开视图
	SpecialMode bool     `json:"special_mode"`
	TimeLeft    int      `json:"time_left"`
}

// CheckVerdict 查验结论
type CheckVerdict string

const (
	VerdictMafia    CheckVerdict = "mafia"     // 属于黑手党
	VerdictNotMafia CheckVerdict = "not_mafia" // 不属于黑手党
)
