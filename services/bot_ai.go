package services

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/qianlnk/mafia/config"
	"github.com/qianlnk/mafia/models"
)

// BotEngine 机器人决策引擎。所有决策基于配置中的权重和概率，
// 同一个种子下的决策序列可复现。
type BotEngine struct {
	cfg config.BotConfig
	rng *rand.Rand
	mu  sync.Mutex
}

// NewBotEngine 创建决策引擎
func NewBotEngine(cfg config.BotConfig, seed int64) *BotEngine {
	return &BotEngine{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

func (e *BotEngine) float64() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64()
}

func (e *BotEngine) intn(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Intn(n)
}

// jitter 权重抖动系数
func (e *BotEngine) jitter() float64 {
	return e.cfg.PriorityJitterMin + e.float64()*(e.cfg.PriorityJitterMax-e.cfg.PriorityJitterMin)
}

// delay 返回区间内的随机延迟，模拟真人反应时间
func (e *BotEngine) delay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(e.float64()*float64(max-min))
}

func (e *BotEngine) NightDelay() time.Duration    { return e.delay(2*time.Second, 8*time.Second) }
func (e *BotEngine) VoteDelay() time.Duration     { return e.delay(1*time.Second, 5*time.Second) }
func (e *BotEngine) NominateDelay() time.Duration { return e.delay(2*time.Second, 10*time.Second) }
func (e *BotEngine) ConfirmDelay() time.Duration  { return e.delay(1*time.Second, 8*time.Second) }

type scoredTarget struct {
	id    string
	score float64
}

// ChooseKillTarget 黑手党选择刺杀目标：按价值加权，
// 抖动后取前三名做累积权重抽样。
// 角色权重只对记忆中已确认角色的目标生效，机器人不偷看底牌。
func (e *BotEngine) ChooseKillTarget(self *models.Player, mem *BotMemory, alive []*models.Player) string {
	scored := make([]scoredTarget, 0, len(alive))
	for _, p := range alive {
		if p.ID == self.ID || models.FactionOf(p.Role) == models.FactionMafia {
			continue
		}

		score := 1.0
		if role, ok := mem.ConfirmedRoleOf(p.ID); ok {
			switch role {
			case models.Detective:
				score *= e.cfg.KillPriorityDetective
			case models.Doctor:
				score *= e.cfg.KillPriorityDoctor
			case models.Deputy, models.Mayor:
				score *= e.cfg.KillPrioritySpecial
			}
		}
		if p.Type == models.HumanPlayer {
			score *= e.cfg.KillPriorityHuman
		}
		if mem.AccusedMe(p.ID) {
			score *= e.cfg.KillPriorityAccuser
		}
		if mem.LastTarget() == p.ID {
			score *= e.cfg.RepeatTargetDiscount
		}
		score *= e.jitter()

		scored = append(scored, scoredTarget{id: p.ID, score: score})
	}
	if len(scored) == 0 {
		return ""
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > 3 {
		scored = scored[:3]
	}

	target := e.sampleByWeight(scored)
	mem.SetLastTarget(target)
	return target
}

// sampleByWeight 按累积权重抽样
func (e *BotEngine) sampleByWeight(scored []scoredTarget) string {
	total := 0.0
	for _, s := range scored {
		total += s.score
	}
	roll := e.float64() * total
	acc := 0.0
	for _, s := range scored {
		acc += s.score
		if roll <= acc {
			return s.id
		}
	}
	return scored[len(scored)-1].id
}

// ChooseHealTarget 医生选择救治目标：取加权最高者。
// 自救从配置的最低回合起可用，且每局只有一次；被指控过的医生优先自保。
// 角色权重只对记忆中已确认角色的目标生效。
func (e *BotEngine) ChooseHealTarget(self *models.Player, mem *BotMemory, alive []*models.Player, round int) string {
	if !self.HasSelfHealed && round >= e.cfg.DoctorSelfHealMinRound && mem.WasAccused() {
		return self.ID
	}

	best := ""
	bestScore := 0.0
	for _, p := range alive {
		if p.ID == self.ID {
			if self.HasSelfHealed || round < e.cfg.DoctorSelfHealMinRound {
				continue
			}
		}

		score := 1.0
		if role, ok := mem.ConfirmedRoleOf(p.ID); ok {
			switch role {
			case models.Detective:
				score *= e.cfg.HealPriorityDetective
			case models.Deputy, models.Mayor:
				score *= e.cfg.HealPrioritySpecial
			}
		}
		if mem.SuspicionOf(p.ID) == SuspicionTrusted {
			score *= e.cfg.HealPriorityTrusted
		}
		if p.Type == models.HumanPlayer {
			score *= e.cfg.HealPriorityHuman
		}
		if mem.DefendedMe(p.ID) {
			score *= e.cfg.HealPriorityDefender
		}
		if mem.LastTarget() == p.ID {
			score *= 0.6
		}
		score *= e.jitter()

		if score > bestScore {
			bestScore = score
			best = p.ID
		}
	}
	if best != "" {
		mem.SetLastTarget(best)
	}
	return best
}

// DecideDetectiveAction 侦探在查验和开枪之间抉择。
// 开枪是一次性的：确认黑手党后高概率开枪，久攻不下时对高度可疑者低概率开枪。
func (e *BotEngine) DecideDetectiveAction(self *models.Player, mem *BotMemory, alive []*models.Player, round int) (models.ActionKind, string) {
	aliveSet := make(map[string]bool, len(alive))
	for _, p := range alive {
		aliveSet[p.ID] = true
	}

	if !self.HasUsedGun && round >= e.cfg.DetectiveShootMinRound {
		confirmed := make([]string, 0)
		for _, id := range mem.ConfirmedMafiaTargets() {
			if aliveSet[id] && id != self.ID {
				confirmed = append(confirmed, id)
			}
		}
		if len(confirmed) > 0 && e.float64() < e.cfg.DetectiveShootConfirmedProb {
			return models.ActionShoot, confirmed[e.intn(len(confirmed))]
		}

		if round >= 5 {
			suspicious := make([]string, 0)
			for _, id := range mem.SuspiciousTargets(SuspicionVerySuspicious) {
				if aliveSet[id] && id != self.ID {
					suspicious = append(suspicious, id)
				}
			}
			if len(suspicious) > 0 && e.float64() < e.cfg.DetectiveShootSuspiciousProb {
				return models.ActionShoot, suspicious[e.intn(len(suspicious))]
			}
		}
	}

	return models.ActionCheck, e.ChooseCheckTarget(self, mem, alive)
}

// ChooseCheckTarget 查验目标：按可疑程度和指控活跃度加权，取最高分。
// 角色已确认的玩家不再浪费查验。
func (e *BotEngine) ChooseCheckTarget(self *models.Player, mem *BotMemory, alive []*models.Player) string {
	best := ""
	bestScore := 0.0
	others := make([]string, 0, len(alive))
	for _, p := range alive {
		if p.ID == self.ID {
			continue
		}
		others = append(others, p.ID)
		if _, ok := mem.ConfirmedRoleOf(p.ID); ok {
			continue
		}

		score := 1.0
		switch level := mem.SuspicionOf(p.ID); {
		case level >= SuspicionVerySuspicious:
			score *= e.cfg.CheckPriorityVerySuspicious
		case level == SuspicionSuspicious:
			score *= e.cfg.CheckPrioritySuspicious
		}
		if p.Type == models.HumanPlayer {
			score *= e.cfg.CheckPriorityHuman
		}
		if mem.AccusationCount(p.ID) >= 2 {
			score *= e.cfg.CheckPriorityAccuser
		}
		score *= e.jitter()

		if score > bestScore {
			bestScore = score
			best = p.ID
		}
	}
	if best != "" {
		return best
	}
	// 所有人都已确认角色，随便查一个
	if len(others) > 0 {
		return others[e.intn(len(others))]
	}
	return ""
}

// DecideChaosSwap 彼得鲁什卡是否使用换牌。第二回合起半数概率出手。
func (e *BotEngine) DecideChaosSwap(self *models.Player, alive []*models.Player, round int) (bool, string) {
	if self.HasUsedSwap || round < 2 || e.float64() < 0.5 {
		return false, ""
	}
	others := make([]string, 0, len(alive))
	for _, p := range alive {
		if p.ID != self.ID {
			others = append(others, p.ID)
		}
	}
	if len(others) == 0 {
		return false, ""
	}
	return true, others[e.intn(len(others))]
}

// ChoosePotatoTarget 特殊模式第一夜的土豆目标
func (e *BotEngine) ChoosePotatoTarget(self *models.Player, alive []*models.Player) string {
	others := make([]string, 0, len(alive))
	for _, p := range alive {
		if p.ID != self.ID {
			others = append(others, p.ID)
		}
	}
	if len(others) == 0 {
		return ""
	}
	return others[e.intn(len(others))]
}

// DecideLynchVote 是否赞成今天处决某人
func (e *BotEngine) DecideLynchVote(self *models.Player) bool {
	if models.FactionOf(self.Role) == models.FactionMafia {
		return e.float64() < e.cfg.MafiaVoteYesProb
	}
	return e.float64() < e.cfg.TownVoteYesProb
}

// ChooseNomination 提名目标。黑手党优先报复指控者，
// 平民倾向跟随当前多数票，否则提名最可疑的玩家。返回空串表示弃权。
func (e *BotEngine) ChooseNomination(self *models.Player, mem *BotMemory, alive []*models.Player, tally map[string]int) string {
	selfMafia := models.FactionOf(self.Role) == models.FactionMafia

	if selfMafia {
		accusers := make([]string, 0)
		for _, p := range alive {
			if p.ID != self.ID && mem.AccusedMe(p.ID) {
				accusers = append(accusers, p.ID)
			}
		}
		if len(accusers) > 0 && e.float64() < e.cfg.MafiaTargetAccuserProb {
			return accusers[e.intn(len(accusers))]
		}
	}

	// 跟随当前多数
	if len(tally) > 0 && e.float64() < e.cfg.FollowPopularVoteProb {
		leader := ""
		leaderVotes := 0
		for id, votes := range tally {
			if id == self.ID {
				continue
			}
			if selfMafia {
				if p := findPlayer(alive, id); p != nil && models.FactionOf(p.Role) == models.FactionMafia {
					continue // 不跟票提名队友
				}
			}
			if votes > leaderVotes {
				leaderVotes = votes
				leader = id
			}
		}
		if leader != "" {
			return leader
		}
	}

	// 提名最可疑的玩家
	best := ""
	bestLevel := SuspicionNeutral
	for _, p := range alive {
		if p.ID == self.ID {
			continue
		}
		if selfMafia && models.FactionOf(p.Role) == models.FactionMafia {
			continue
		}
		if level := mem.SuspicionOf(p.ID); level > bestLevel {
			bestLevel = level
			best = p.ID
		}
	}
	if best != "" {
		return best
	}

	// 没有可疑对象，随机指一个；黑手党倾向把水搅向真人玩家
	candidates := make([]string, 0, len(alive))
	humans := make([]string, 0, len(alive))
	for _, p := range alive {
		if p.ID == self.ID {
			continue
		}
		if selfMafia && models.FactionOf(p.Role) == models.FactionMafia {
			continue
		}
		candidates = append(candidates, p.ID)
		if p.Type == models.HumanPlayer {
			humans = append(humans, p.ID)
		}
	}
	if selfMafia && len(humans) > 0 && e.float64() < 0.7 {
		return humans[e.intn(len(humans))]
	}
	if len(candidates) == 0 {
		return ""
	}
	return candidates[e.intn(len(candidates))]
}

// DecideConfirmVote 最终确认投票。黑手党保队友、送平民；
// 平民按对候选人的怀疑等级投票，中立时跟随当前风向。
func (e *BotEngine) DecideConfirmVote(self *models.Player, mem *BotMemory, candidate *models.Player, yesSoFar, votesSoFar int) bool {
	if models.FactionOf(self.Role) == models.FactionMafia {
		if models.FactionOf(candidate.Role) == models.FactionMafia {
			return false
		}
		if mem.AccusedMe(candidate.ID) {
			return true
		}
		return e.float64() < e.cfg.MafiaVoteYesProb
	}

	switch level := mem.SuspicionOf(candidate.ID); {
	case level >= SuspicionVerySuspicious:
		return e.float64() < e.cfg.ConfirmVerySuspiciousYes
	case level == SuspicionSuspicious:
		return e.float64() < e.cfg.ConfirmSuspiciousYes
	case level == SuspicionTrusted:
		return e.float64() >= e.cfg.ConfirmTrustedNo
	default:
		if votesSoFar > 0 {
			return e.float64() < float64(yesSoFar)/float64(votesSoFar)
		}
		return e.float64() < e.cfg.ConfirmNeutralYes
	}
}

func findPlayer(players []*models.Player, id string) *models.Player {
	for _, p := range players {
		if p.ID == id {
			return p
		}
	}
	return nil
}
