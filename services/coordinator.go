package services

import (
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qianlnk/mafia/config"
	"github.com/qianlnk/mafia/models"
	"github.com/qianlnk/mafia/storage"
)

// GameCoordinator 游戏流程协调器：负责阶段推进、计时、结算和机器人调度。
// 一个会话对应一个协调器。
type GameCoordinator struct {
	session  *GameSession
	cfg      *config.Config
	notifier Notifier
	store    *storage.Store // 可以为nil，此时不做持久化
	registry *SessionRegistry

	bots     *BotEngine
	dialogue *BotDialogue
	memories map[string]*BotMemory // 开局时初始化，之后只读

	// rng、timer和timerSeq由session.mutex保护。
	// timerSeq给每次起表编号，迟到的超时回调按编号拦下。
	rng      *rand.Rand
	timer    *phaseTimer
	timerSeq uint64

	// 会话内的后台任务（机器人行动、发言），游戏结束时统一取消
	tasks    sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once

	// 持久化行号映射
	playerRows map[string]int64 // playerID -> game_players行
	userRows   map[string]int64 // playerID -> users行
}

// NewGameCoordinator 创建协调器实例
func NewGameCoordinator(session *GameSession, cfg *config.Config, notifier Notifier, store *storage.Store, registry *SessionRegistry, seed int64) *GameCoordinator {
	engine := NewBotEngine(cfg.Bot, seed)
	return &GameCoordinator{
		session:    session,
		cfg:        cfg,
		notifier:   notifier,
		store:      store,
		registry:   registry,
		bots:       engine,
		dialogue:   NewBotDialogue(engine),
		memories:   make(map[string]*BotMemory),
		rng:        rand.New(rand.NewSource(seed)),
		stop:       make(chan struct{}),
		playerRows: make(map[string]int64),
		userRows:   make(map[string]int64),
	}
}

// Session 返回所属会话
func (c *GameCoordinator) Session() *GameSession {
	return c.session
}

// Status 返回当前会话状态快照
func (c *GameCoordinator) Status() models.SessionStatus {
	s := c.session
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.status(0)
}

// StartGame 开始游戏：补足机器人、掷特殊模式、分配角色并进入第一夜
func (c *GameCoordinator) StartGame() error {
	s := c.session

	s.mutex.Lock()
	if s.Phase != models.PhaseLobby {
		s.mutex.Unlock()
		return ErrGameInProgress
	}
	if len(s.Players) == 0 {
		s.mutex.Unlock()
		return ErrNotEnoughPlayers
	}

	// 人数不足时补足机器人
	for i := 0; len(s.Players) < c.cfg.MinPlayers; i++ {
		s.Players = append(s.Players, &models.Player{
			ID:    uuid.NewString(),
			Name:  fmt.Sprintf("机器人%d", len(s.Players)+1),
			Type:  models.BotPlayer,
			Alive: true,
		})
	}
	if len(s.Players) > c.cfg.MaxPlayers {
		s.mutex.Unlock()
		return ErrSessionFull
	}

	s.SpecialMode = c.cfg.SpecialModeEnabled && c.rng.Float64() < c.cfg.SpecialModeChance
	assignRoles(s.Players, c.cfg.RoleTable, c.rng)

	for _, p := range s.Players {
		if p.Type == models.BotPlayer {
			c.memories[p.ID] = NewBotMemory()
		}
	}

	players := make([]*models.Player, len(s.Players))
	copy(players, s.Players)
	specialMode := s.SpecialMode
	s.mutex.Unlock()

	c.persistGameStart(players, specialMode)

	// 私发角色
	mafiaTeam := make([]models.Player, 0)
	for _, p := range players {
		if models.FactionOf(p.Role) == models.FactionMafia {
			mafiaTeam = append(mafiaTeam, p.PublicView())
		}
	}
	for _, p := range players {
		if p.Type != models.HumanPlayer {
			continue
		}
		msg := map[string]interface{}{
			"type": "role_assigned",
			"role": p.Role,
		}
		if models.FactionOf(p.Role) == models.FactionMafia {
			// 黑手党互认队友
			msg["teammates"] = mafiaTeam
		}
		if err := c.notifier.SendToPlayer(p.ID, msg); err != nil {
			log.Printf("[开局] 向玩家 %s 发送角色失败: %v", p.ID, err)
		}
	}

	c.notifier.BroadcastToSession(s.ID, map[string]interface{}{
		"type":         "game_started",
		"special_mode": specialMode,
		"players":      publicViews(players),
	})
	log.Printf("[开局] 会话 %s 开始，%d名玩家，特殊模式=%v", s.ID, len(players), specialMode)

	c.startNight(1)
	return nil
}

// persistGameStart 记录对局和参局玩家
func (c *GameCoordinator) persistGameStart(players []*models.Player, specialMode bool) {
	if c.store == nil {
		return
	}

	gameID, err := c.store.AddGame(c.session.ID, specialMode)
	if err != nil {
		log.Printf("[持久化] 记录对局失败: %v", err)
		return
	}
	c.session.mutex.Lock()
	c.session.gameRecordID = gameID
	c.session.mutex.Unlock()

	for _, p := range players {
		isBot := p.Type == models.BotPlayer
		var userID int64
		if !isBot {
			external := p.UserID
			if external == "" {
				external = p.ID
			}
			userID, err = c.store.GetOrCreateUser(external, p.Name)
			if err != nil {
				log.Printf("[持久化] 创建用户失败: %v", err)
				continue
			}
			c.userRows[p.ID] = userID
		}
		rowID, err := c.store.AddGamePlayer(gameID, userID, p.Name, string(p.Role), isBot)
		if err != nil {
			log.Printf("[持久化] 记录参局玩家失败: %v", err)
			continue
		}
		c.playerRows[p.ID] = rowID
	}
}

// startTimer 启动当前阶段的计时器，周期性广播剩余时间。
// 创建和挂载在会话锁内一次完成：阶段已被提前结算推走时不再起表，
// 否则本次起表拿到新编号，旧计时器迟到的超时回调按编号拦下。
func (c *GameCoordinator) startTimer(d time.Duration, phase models.Phase) {
	s := c.session

	s.mutex.Lock()
	if s.Phase != phase || s.resolving {
		s.mutex.Unlock()
		return
	}
	c.timerSeq++
	seq := c.timerSeq
	c.timer = newPhaseTimer(d, c.cfg.TimerUpdateInterval,
		func(remaining time.Duration) {
			c.notifier.BroadcastToSession(s.ID, map[string]interface{}{
				"type":      "timer_update",
				"phase":     phase,
				"time_left": int(remaining.Seconds()),
			})
		},
		func() {
			c.onPhaseTimeout(phase, seq)
		},
	)
	s.mutex.Unlock()
}

// onPhaseTimeout 阶段超时：和提前结算竞争，只有一方能进入结算。
// 编号不匹配说明是上一块表的残留回调，直接丢弃。
func (c *GameCoordinator) onPhaseTimeout(phase models.Phase, seq uint64) {
	s := c.session
	s.mutex.Lock()
	if s.Phase != phase || s.resolving || seq != c.timerSeq {
		s.mutex.Unlock()
		return
	}
	s.resolving = true
	c.timer = nil
	s.mutex.Unlock()

	c.resolvePhase(phase)
}

// tryResolveEarly 所有必要动作完成时提前结算。
// 先取消计时器并等它退出，再进入结算，保证结算只发生一次。
func (c *GameCoordinator) tryResolveEarly(phase models.Phase) {
	s := c.session
	s.mutex.Lock()
	if s.Phase != phase || s.resolving {
		s.mutex.Unlock()
		return
	}
	s.resolving = true
	t := c.timer
	c.timer = nil
	s.mutex.Unlock()

	if t != nil {
		t.stop()
	}
	c.resolvePhase(phase)
}

func (c *GameCoordinator) resolvePhase(phase models.Phase) {
	switch phase {
	case models.PhaseNight:
		c.resolveNight()
	case models.PhaseDay:
		c.startLynchVote()
	case models.PhaseLynchVote:
		c.resolveLynchVote()
	case models.PhaseNomination:
		c.resolveNomination()
	case models.PhaseConfirmation:
		c.resolveConfirmation()
	}
}

// startNight 进入夜晚
func (c *GameCoordinator) startNight(round int) {
	s := c.session

	s.mutex.Lock()
	s.Phase = models.PhaseNight
	s.Round = round
	s.resolving = false
	s.resetNightState()
	actingDon := s.actingDonID()
	donAlive := false
	if p := s.playerByID(actingDon); p != nil && p.Role == models.Don {
		donAlive = true
	}
	status := s.status(int(c.cfg.NightDuration.Seconds()))
	s.mutex.Unlock()

	c.notifier.BroadcastToSession(s.ID, map[string]interface{}{
		"type":   "night_started",
		"round":  round,
		"status": status,
	})
	// 教父死后由资历最深的黑手党接手刺杀决定权
	if actingDon != "" && !donAlive {
		c.notifier.SendToPlayer(actingDon, map[string]interface{}{
			"type":    "acting_don",
			"message": "教父已死，今晚由你决定刺杀目标",
		})
	}

	c.scheduleBotNightActions()
	c.startTimer(c.cfg.NightDuration, models.PhaseNight)
	log.Printf("[夜晚] 会话 %s 第%d夜开始", s.ID, round)
}

// resolveNight 夜晚结算。调用前必须已经持有resolving守卫。
func (c *GameCoordinator) resolveNight() {
	s := c.session

	s.mutex.Lock()
	// 收集死亡名单
	deaths := make(map[string]bool)
	potatoKillers := make(map[string][]string) // 目标 -> 投掷者
	if s.mafiaTarget != "" {
		deaths[s.mafiaTarget] = true
	}
	if s.shootTarget != "" {
		deaths[s.shootTarget] = true
	}
	for thrower, target := range s.potatoThrows {
		if c.rng.Float64() < c.cfg.PotatoKillChance {
			deaths[target] = true
			potatoKillers[target] = append(potatoKillers[target], thrower)
		}
	}

	// 医生救治
	saved := false
	if s.healTarget != "" && deaths[s.healTarget] {
		delete(deaths, s.healTarget)
		saved = true
		if healer := s.playerByID(s.healerID); healer != nil {
			healer.Heals++
		}
	}
	savedID := s.healTarget

	victims := make([]*models.Player, 0, len(deaths))
	for id := range deaths {
		if p := s.playerByID(id); p != nil && p.Alive {
			victims = append(victims, p)
		}
	}

	// 真人受害者有一段遗言窗口
	humanVictims := 0
	for _, v := range victims {
		if v.Type == models.HumanPlayer {
			humanVictims++
		}
	}
	if humanVictims > 0 {
		s.lastWordsAwait = make(map[string]bool, humanVictims)
		for _, v := range victims {
			if v.Type == models.HumanPlayer {
				s.lastWordsAwait[v.ID] = true
			}
		}
		s.lastWordsDone = make(chan struct{})
	}
	done := s.lastWordsDone
	s.mutex.Unlock()

	// 先通知受害者和获救者，再等遗言
	for _, v := range victims {
		c.notifier.SendToPlayer(v.ID, map[string]interface{}{
			"type":    "night_victim",
			"message": "你在夜里遇袭身亡，可以留下遗言",
		})
	}
	if saved && savedID != "" {
		c.notifier.SendToPlayer(savedID, map[string]interface{}{
			"type":    "night_saved",
			"message": "你在夜里遭到袭击，医生救了你一命",
		})
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(c.cfg.LastWordsTimeout):
		}
	}

	// 应用死亡并统计战绩
	s.mutex.Lock()
	type deathInfo struct {
		ID   string      `json:"id"`
		Name string      `json:"name"`
		Role models.Role `json:"role"`
	}
	deathList := make([]deathInfo, 0, len(victims))
	for _, v := range victims {
		v.Alive = false
		deathList = append(deathList, deathInfo{ID: v.ID, Name: v.Name, Role: v.Role})
		for _, mem := range c.memories {
			mem.ObserveDeath(v.ID, v.Role)
		}
	}
	if deaths[s.mafiaTarget] {
		if killer := s.playerByID(s.killerID); killer != nil {
			killer.Kills++
		}
	}
	if deaths[s.shootTarget] {
		if shooter := s.playerByID(s.shooterID); shooter != nil {
			shooter.Kills++
		}
	}
	for target, throwers := range potatoKillers {
		if !deaths[target] {
			continue
		}
		for _, throwerID := range throwers {
			if thrower := s.playerByID(throwerID); thrower != nil {
				thrower.Kills++
			}
		}
	}

	// 晨间事件摘要，客户端据此播报昨夜剧情
	events := make([]string, 0, 2)
	switch len(deathList) {
	case 0:
		if saved {
			events = append(events, "doctor_saved")
		} else {
			events = append(events, "everyone_alive")
		}
	case 1:
		events = append(events, "single_death")
		switch deathList[0].Role {
		case models.Don:
			mafiaLeft := false
			for _, p := range s.Players {
				if p.Alive && p.Role == models.Mafia {
					mafiaLeft = true
					break
				}
			}
			if mafiaLeft {
				events = append(events, "don_dead_mafia_alive")
			} else {
				events = append(events, "don_dead_no_mafia")
			}
		case models.Doctor:
			events = append(events, "doctor_dead")
		case models.Detective:
			events = append(events, "detective_dead")
		default:
			events = append(events, "civilian_dead")
		}
	default:
		events = append(events, "multiple_deaths")
	}

	// 查验结论在死亡应用之后发放
	type checkResult struct {
		investigatorID string
		targetID       string
		targetName     string
		exact          bool
		role           models.Role
		verdict        models.CheckVerdict
	}
	results := make([]checkResult, 0, len(s.pendingChecks))
	for _, pc := range s.pendingChecks {
		target := s.playerByID(pc.targetID)
		if target == nil {
			continue
		}
		r := checkResult{
			investigatorID: pc.investigatorID,
			targetID:       pc.targetID,
			targetName:     target.Name,
			exact:          pc.exact,
			role:           target.Role,
			verdict:        checkVerdictFor(target.Role),
		}
		results = append(results, r)
		if r.verdict == models.VerdictMafia {
			if investigator := s.playerByID(pc.investigatorID); investigator != nil {
				investigator.Checks++
			}
		}
	}

	aliveCount := s.aliveCount()
	for _, mem := range c.memories {
		mem.AdvanceRound(aliveCount)
	}

	lastWords := make(map[string]string, len(s.lastWordsText))
	for id, text := range s.lastWordsText {
		lastWords[id] = text
	}
	winner, over := s.checkWin()
	round := s.Round
	s.mutex.Unlock()

	for _, r := range results {
		if mem, ok := c.memories[r.investigatorID]; ok {
			if r.exact {
				mem.RecordExactRole(r.targetID, r.role)
			} else {
				mem.RecordCheckVerdict(r.targetID, r.verdict)
			}
		}
		msg := map[string]interface{}{
			"type":        "check_result",
			"target_id":   r.targetID,
			"target_name": r.targetName,
		}
		if r.exact {
			msg["role"] = r.role
		} else {
			msg["verdict"] = r.verdict
		}
		c.notifier.SendToPlayer(r.investigatorID, msg)
	}

	c.notifier.BroadcastToSession(s.ID, map[string]interface{}{
		"type":         "morning_report",
		"round":        round,
		"deaths":       deathList,
		"events":       events,
		"doctor_saved": saved, // 不公开获救者身份
		"last_words":   lastWords,
	})
	log.Printf("[夜晚] 会话 %s 第%d夜结算：%d人死亡，获救=%v", s.ID, round, len(deathList), saved)

	if over {
		c.endGame(winner)
		return
	}
	c.startDay()
}

// startDay 进入白天讨论
func (c *GameCoordinator) startDay() {
	s := c.session

	s.mutex.Lock()
	s.Phase = models.PhaseDay
	s.resolving = false
	status := s.status(int(c.cfg.DayDuration.Seconds()))
	s.mutex.Unlock()

	c.notifier.BroadcastToSession(s.ID, map[string]interface{}{
		"type":   "day_started",
		"status": status,
	})

	c.scheduleBotChatter()
	c.startTimer(c.cfg.DayDuration, models.PhaseDay)
}

// startLynchVote 进入处决表决：今天要不要处决人
func (c *GameCoordinator) startLynchVote() {
	s := c.session

	s.mutex.Lock()
	s.Phase = models.PhaseLynchVote
	s.resolving = false
	s.resetVoteState()
	s.mutex.Unlock()

	c.notifier.BroadcastToSession(s.ID, map[string]interface{}{
		"type":    "lynch_vote_started",
		"message": "今天是否处决嫌疑人？",
	})

	c.scheduleBotLynchVotes()
	c.startTimer(c.cfg.VotingDuration, models.PhaseLynchVote)
}

// resolveLynchVote 处决表决结算：加权赞成票过半才进入提名
func (c *GameCoordinator) resolveLynchVote() {
	s := c.session

	s.mutex.Lock()
	yes, total := s.weightedLynchTally()
	aliveCount := s.aliveCount()
	round := s.Round
	s.mutex.Unlock()

	proceed := float64(yes) > float64(aliveCount)/2
	c.notifier.BroadcastToSession(s.ID, map[string]interface{}{
		"type":    "lynch_vote_result",
		"yes":     yes,
		"total":   total,
		"proceed": proceed,
	})
	log.Printf("[表决] 会话 %s 处决表决：%d/%d，通过=%v", s.ID, yes, total, proceed)

	if proceed {
		c.startNomination()
	} else {
		c.startNight(round + 1)
	}
}

// startNomination 进入提名投票
func (c *GameCoordinator) startNomination() {
	s := c.session

	s.mutex.Lock()
	s.Phase = models.PhaseNomination
	s.resolving = false
	s.nominationVotes = make(map[string]string)
	s.mutex.Unlock()

	c.notifier.BroadcastToSession(s.ID, map[string]interface{}{
		"type":    "nomination_started",
		"message": "请提名你怀疑的玩家",
	})

	c.scheduleBotNominations()
	c.startTimer(c.cfg.VotingDuration, models.PhaseNomination)
}

// resolveNomination 提名结算：最高票需达到存活人数×阈值比例，平票随机
func (c *GameCoordinator) resolveNomination() {
	s := c.session

	s.mutex.Lock()
	tally := s.nominationTally()
	threshold := s.nominationThreshold(c.cfg.NominationThresholdRatio)
	round := s.Round

	maxVotes := 0
	for _, votes := range tally {
		if votes > maxVotes {
			maxVotes = votes
		}
	}
	leaders := make([]string, 0)
	for id, votes := range tally {
		if votes == maxVotes && maxVotes > 0 {
			leaders = append(leaders, id)
		}
	}

	candidateID := ""
	if maxVotes >= threshold && len(leaders) > 0 {
		candidateID = leaders[c.rng.Intn(len(leaders))]
		s.candidateID = candidateID
	}
	var candidateName string
	if p := s.playerByID(candidateID); p != nil {
		candidateName = p.Name
	}
	s.mutex.Unlock()

	if candidateID == "" {
		c.notifier.BroadcastToSession(s.ID, map[string]interface{}{
			"type":    "nomination_result",
			"message": "没有人获得足够的提名票，今天无人受审",
		})
		c.startNight(round + 1)
		return
	}

	c.notifier.BroadcastToSession(s.ID, map[string]interface{}{
		"type":           "nomination_result",
		"candidate_id":   candidateID,
		"candidate_name": candidateName,
		"votes":          maxVotes,
	})
	log.Printf("[提名] 会话 %s 候选人 %s（%d票，门槛%d）", s.ID, candidateName, maxVotes, threshold)
	c.startConfirmation()
}

// startConfirmation 进入最终确认
func (c *GameCoordinator) startConfirmation() {
	s := c.session

	s.mutex.Lock()
	s.Phase = models.PhaseConfirmation
	s.resolving = false
	s.confirmVotes = make(map[string]bool)
	candidateID := s.candidateID
	s.mutex.Unlock()

	c.notifier.BroadcastToSession(s.ID, map[string]interface{}{
		"type":         "confirmation_started",
		"candidate_id": candidateID,
		"message":      "是否处决该候选人？候选人本人不参与投票",
	})

	c.scheduleBotConfirmVotes()
	c.startTimer(c.cfg.ConfirmationDuration, models.PhaseConfirmation)
}

// resolveConfirmation 最终确认结算：加权赞成票需超过投票人数的一半
func (c *GameCoordinator) resolveConfirmation() {
	s := c.session

	s.mutex.Lock()
	yes := s.confirmTally()
	voters := s.aliveCount() - 1
	round := s.Round
	candidateID := s.candidateID
	s.mutex.Unlock()

	approved := yes > voters/2
	c.notifier.BroadcastToSession(s.ID, map[string]interface{}{
		"type":     "confirmation_result",
		"yes":      yes,
		"voters":   voters,
		"approved": approved,
	})

	if !approved {
		log.Printf("[确认] 会话 %s 候选人 %s 被赦免", s.ID, candidateID)
		c.startNight(round + 1)
		return
	}
	c.executeCandidate()
}

// executeCandidate 执行处决，带断绳概率
func (c *GameCoordinator) executeCandidate() {
	s := c.session

	s.mutex.Lock()
	cand := s.playerByID(s.candidateID)
	if cand == nil {
		s.mutex.Unlock()
		return
	}

	var chance float64
	if cand.Role == models.Executioner && !cand.HasRopeBroken {
		// 刽子手第一次上绞架必定触发免死判定，无论结果都消耗掉
		chance = c.cfg.ExecutionerRopeBreakChance
		cand.HasRopeBroken = true
	} else {
		chance = c.cfg.NormalRopeBreakChance
		for _, p := range s.Players {
			if p.Alive && p.ID != cand.ID && p.Role == models.Executioner {
				chance -= c.cfg.ExecutionerReducesBreakBy
			}
		}
		if chance < 0 {
			chance = 0
		}
	}

	broke := c.rng.Float64() < chance
	var revealedRole models.Role
	if !broke {
		cand.Alive = false
		revealedRole = cand.Role
		for _, mem := range c.memories {
			mem.ObserveDeath(cand.ID, cand.Role)
		}
	}
	candName := cand.Name
	candID := cand.ID
	winner, over := s.checkWin()
	round := s.Round
	s.mutex.Unlock()

	if broke {
		c.notifier.BroadcastToSession(s.ID, map[string]interface{}{
			"type":    "execution_result",
			"broke":   true,
			"message": fmt.Sprintf("绳子断了！%s 活了下来", candName),
		})
		log.Printf("[处决] 会话 %s 绳子断裂，%s 幸存", s.ID, candName)
		c.startNight(round + 1)
		return
	}

	c.notifier.BroadcastToSession(s.ID, map[string]interface{}{
		"type":          "execution_result",
		"broke":         false,
		"executed_id":   candID,
		"executed_name": candName,
		"role":          revealedRole,
	})
	log.Printf("[处决] 会话 %s 处决了 %s（%s）", s.ID, candName, revealedRole)

	if over {
		c.endGame(winner)
		return
	}
	c.startNight(round + 1)
}

// endGame 游戏结束：公布结果、发放积分、落库并从注册表移除会话
func (c *GameCoordinator) endGame(winner models.Faction) {
	s := c.session

	s.mutex.Lock()
	s.Phase = models.PhaseEnded
	t := c.timer
	c.timer = nil
	players := make([]*models.Player, len(s.Players))
	copy(players, s.Players)
	round := s.Round
	gameID := s.gameRecordID
	s.mutex.Unlock()

	if t != nil {
		// 可能正处在计时协程内，不能同步等待
		go t.stop()
	}

	// 取消所有待执行的机器人任务。endGame可能正运行在某个任务协程里，
	// 等待也放到后台做。
	c.stopOnce.Do(func() { close(c.stop) })
	go func() {
		c.tasks.Wait()
		log.Printf("[结束] 会话 %s 后台任务已全部退出", s.ID)
	}()

	reveal := make([]map[string]interface{}, 0, len(players))
	for _, p := range players {
		reveal = append(reveal, map[string]interface{}{
			"id":    p.ID,
			"name":  p.Name,
			"role":  p.Role,
			"alive": p.Alive,
		})
	}
	c.notifier.BroadcastToSession(s.ID, map[string]interface{}{
		"type":   "game_over",
		"winner": winner,
		"round":  round,
		"roles":  reveal,
	})
	log.Printf("[结束] 会话 %s 结束，胜方=%s，共%d回合", s.ID, winner, round)

	c.awardPoints(players, winner, round, gameID)

	if c.registry != nil {
		c.registry.Remove(s.ID)
	}
}

// awardPoints 计算并持久化积分
func (c *GameCoordinator) awardPoints(players []*models.Player, winner models.Faction, round int, gameID int64) {
	if c.store == nil {
		return
	}

	for _, p := range players {
		if rowID, ok := c.playerRows[p.ID]; ok {
			if err := c.store.UpdateGamePlayer(rowID, p.Alive, p.Kills, p.Heals, p.Checks); err != nil {
				log.Printf("[积分] 回写玩家 %s 战绩失败: %v", p.ID, err)
			}
		}

		userID, ok := c.userRows[p.ID]
		if !ok {
			continue // 机器人不计积分
		}
		won := models.FactionOf(p.Role) == winner
		points := c.cfg.PointsLoss
		if won {
			points = c.cfg.PointsWin
		}
		points += p.Kills*c.cfg.PointsKill + p.Heals*c.cfg.PointsSave + p.Checks*c.cfg.PointsCorrectCheck
		if err := c.store.AddUserResult(userID, points, won, p.Kills, p.Heals, p.Checks); err != nil {
			log.Printf("[积分] 累加用户 %s 积分失败: %v", p.ID, err)
		}
	}

	if gameID > 0 {
		if err := c.store.FinishGame(gameID, string(winner), round); err != nil {
			log.Printf("[积分] 更新对局记录失败: %v", err)
		}
	}
}

func publicViews(players []*models.Player) []models.Player {
	views := make([]models.Player, 0, len(players))
	for _, p := range players {
		views = append(views, p.PublicView())
	}
	return views
}
