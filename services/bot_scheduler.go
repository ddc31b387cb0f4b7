package services

import (
	"log"
	"time"

	"github.com/qianlnk/mafia/models"
)

// 机器人调度：每个阶段开始时为机器人安排带随机延迟的后台任务，
// 到点后重新检查局面再决策，最终和真人一样走SubmitAction提交。

func (c *GameCoordinator) scheduleBotNightActions() {
	s := c.session

	s.mutex.Lock()
	botIDs := make([]string, 0)
	for _, id := range s.requiredNightActors() {
		if p := s.playerByID(id); p != nil && p.Type == models.BotPlayer {
			botIDs = append(botIDs, id)
		}
	}
	s.mutex.Unlock()

	for _, id := range botIDs {
		c.spawnBotTask(c.bots.NightDelay(), id, c.submitBotNightAction)
	}
}

func (c *GameCoordinator) scheduleBotLynchVotes() {
	for _, id := range c.aliveBotIDs() {
		c.spawnBotTask(c.bots.VoteDelay(), id, c.submitBotLynchVote)
	}
}

func (c *GameCoordinator) scheduleBotNominations() {
	for _, id := range c.aliveBotIDs() {
		c.spawnBotTask(c.bots.NominateDelay(), id, c.submitBotNomination)
	}
}

func (c *GameCoordinator) scheduleBotConfirmVotes() {
	for _, id := range c.aliveBotIDs() {
		c.spawnBotTask(c.bots.ConfirmDelay(), id, c.submitBotConfirmVote)
	}
}

func (c *GameCoordinator) scheduleBotChatter() {
	for _, id := range c.aliveBotIDs() {
		c.spawnBotTask(c.bots.delay(3*time.Second, 20*time.Second), id, c.submitBotChatter)
	}
}

func (c *GameCoordinator) aliveBotIDs() []string {
	s := c.session
	s.mutex.Lock()
	defer s.mutex.Unlock()

	ids := make([]string, 0)
	for _, p := range s.Players {
		if p.Alive && p.Type == models.BotPlayer {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func (c *GameCoordinator) spawnBotTask(delay time.Duration, id string, fn func(string)) {
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		select {
		case <-time.After(delay):
		case <-c.stop:
			return
		}
		fn(id)
	}()
}

func (c *GameCoordinator) submitBotNightAction(id string) {
	s := c.session

	s.mutex.Lock()
	if s.Phase != models.PhaseNight || s.resolving {
		s.mutex.Unlock()
		return
	}
	p := s.playerByID(id)
	mem := c.memories[id]
	if p == nil || !p.Alive || p.ActedThisNight || mem == nil {
		s.mutex.Unlock()
		return
	}
	alive := s.alivePlayers()
	round := s.Round
	actingDon := s.actingDonID()

	kind := models.ActionSkip
	target := ""
	switch {
	case id == actingDon:
		kind, target = models.ActionKill, c.bots.ChooseKillTarget(p, mem, alive)
	case p.Role == models.Doctor:
		kind, target = models.ActionHeal, c.bots.ChooseHealTarget(p, mem, alive, round)
	case p.Role == models.Detective:
		kind, target = c.bots.DecideDetectiveAction(p, mem, alive, round)
	case p.Role == models.Deputy || p.Role == models.Consigliere:
		kind, target = models.ActionCheck, c.bots.ChooseCheckTarget(p, mem, alive)
	case p.Role == models.Petrushka:
		if use, t := c.bots.DecideChaosSwap(p, alive, round); use {
			kind, target = models.ActionSwap, t
		}
	case p.Role == models.Civilian:
		if t := c.bots.ChoosePotatoTarget(p, alive); t != "" {
			kind, target = models.ActionPotato, t
		}
	}
	s.mutex.Unlock()

	if target == "" && kind != models.ActionSkip {
		kind = models.ActionSkip
	}
	if err := c.SubmitAction(models.GameAction{Kind: kind, SessionID: s.ID, PlayerID: id, TargetID: target}); err != nil {
		// 目标不可用（比如换牌撞上最后一名黑手党）时降级为放弃
		if err := c.SubmitAction(models.GameAction{Kind: models.ActionSkip, SessionID: s.ID, PlayerID: id}); err != nil {
			log.Printf("[机器人] %s 夜晚行动失败: %v", id, err)
		}
	}
}

func (c *GameCoordinator) submitBotLynchVote(id string) {
	s := c.session

	s.mutex.Lock()
	if s.Phase != models.PhaseLynchVote || s.resolving {
		s.mutex.Unlock()
		return
	}
	p := s.playerByID(id)
	if p == nil || !p.Alive {
		s.mutex.Unlock()
		return
	}
	if _, voted := s.lynchVotes[id]; voted {
		s.mutex.Unlock()
		return
	}
	approve := c.bots.DecideLynchVote(p)
	s.mutex.Unlock()

	if err := c.SubmitAction(models.GameAction{Kind: models.ActionVote, SessionID: s.ID, PlayerID: id, Approve: approve}); err != nil {
		log.Printf("[机器人] %s 处决表决失败: %v", id, err)
	}
}

func (c *GameCoordinator) submitBotNomination(id string) {
	s := c.session

	s.mutex.Lock()
	if s.Phase != models.PhaseNomination || s.resolving {
		s.mutex.Unlock()
		return
	}
	p := s.playerByID(id)
	mem := c.memories[id]
	if p == nil || !p.Alive || mem == nil {
		s.mutex.Unlock()
		return
	}
	if _, voted := s.nominationVotes[id]; voted {
		s.mutex.Unlock()
		return
	}
	alive := s.alivePlayers()
	tally := s.nominationTally()
	target := c.bots.ChooseNomination(p, mem, alive, tally)
	s.mutex.Unlock()

	if err := c.SubmitAction(models.GameAction{Kind: models.ActionNominate, SessionID: s.ID, PlayerID: id, TargetID: target}); err != nil {
		log.Printf("[机器人] %s 提名失败: %v", id, err)
	}
}

func (c *GameCoordinator) submitBotConfirmVote(id string) {
	s := c.session

	s.mutex.Lock()
	if s.Phase != models.PhaseConfirmation || s.resolving {
		s.mutex.Unlock()
		return
	}
	p := s.playerByID(id)
	mem := c.memories[id]
	candidate := s.playerByID(s.candidateID)
	if p == nil || !p.Alive || mem == nil || candidate == nil || p.ID == candidate.ID {
		s.mutex.Unlock()
		return
	}
	if _, voted := s.confirmVotes[id]; voted {
		s.mutex.Unlock()
		return
	}
	yesSoFar := 0
	for _, approve := range s.confirmVotes {
		if approve {
			yesSoFar++
		}
	}
	approve := c.bots.DecideConfirmVote(p, mem, candidate, yesSoFar, len(s.confirmVotes))
	s.mutex.Unlock()

	if err := c.SubmitAction(models.GameAction{Kind: models.ActionConfirm, SessionID: s.ID, PlayerID: id, Approve: approve}); err != nil {
		log.Printf("[机器人] %s 确认投票失败: %v", id, err)
	}
}

func (c *GameCoordinator) submitBotChatter(id string) {
	s := c.session

	s.mutex.Lock()
	if s.Phase != models.PhaseDay {
		s.mutex.Unlock()
		return
	}
	p := s.playerByID(id)
	mem := c.memories[id]
	if p == nil || !p.Alive || mem == nil {
		s.mutex.Unlock()
		return
	}
	line := c.dialogue.GenerateDayLine(p, mem, s.alivePlayers())
	name := p.Name
	s.mutex.Unlock()

	c.notifier.BroadcastToSession(s.ID, map[string]interface{}{
		"type":        "chat",
		"player_id":   id,
		"player_name": name,
		"message":     line,
	})
}
