package services

import (
	"time"

	"github.com/qianlnk/mafia/models"
)

// SubmitAction 统一的动作入口，真人和机器人都从这里提交。
// 校验、应用和完成度检查在会话锁内完成；触发提前结算在锁外进行。
func (c *GameCoordinator) SubmitAction(action models.GameAction) error {
	s := c.session

	s.mutex.Lock()

	// 遗言由刚死的玩家提交，单独处理
	if action.Kind == models.ActionLastWords {
		err := s.applyLastWords(action.PlayerID, action.Content)
		s.mutex.Unlock()
		return err
	}

	if s.Phase == models.PhaseLobby || s.Phase == models.PhaseEnded {
		s.mutex.Unlock()
		return ErrGameNotStarted
	}
	actor := s.playerByID(action.PlayerID)
	if actor == nil {
		s.mutex.Unlock()
		return ErrPlayerNotFound
	}
	if !actor.Alive {
		s.mutex.Unlock()
		return ErrPlayerDead
	}
	action.Timestamp = time.Now().Unix()

	phase := s.Phase
	var completed bool
	var notify func()
	var err error

	switch action.Kind {
	case models.ActionKill, models.ActionHeal, models.ActionCheck, models.ActionShoot,
		models.ActionSwap, models.ActionPotato, models.ActionSkip:
		if s.Phase != models.PhaseNight {
			err = ErrWrongPhase
			break
		}
		notify, err = c.applyNightAction(actor, action)
		if err == nil {
			completed = s.nightComplete()
		}

	case models.ActionVote:
		if s.Phase != models.PhaseLynchVote {
			err = ErrWrongPhase
			break
		}
		if _, voted := s.lynchVotes[actor.ID]; voted {
			err = ErrAlreadyActed
			break
		}
		s.lynchVotes[actor.ID] = action.Approve
		completed = s.lynchComplete()

	case models.ActionNominate:
		if s.Phase != models.PhaseNomination {
			err = ErrWrongPhase
			break
		}
		if _, voted := s.nominationVotes[actor.ID]; voted {
			err = ErrAlreadyActed
			break
		}
		// 空目标为弃权
		if action.TargetID != "" {
			target := s.playerByID(action.TargetID)
			if target == nil || !target.Alive || target.ID == actor.ID {
				err = ErrInvalidTarget
				break
			}
			if mem, ok := c.memories[target.ID]; ok {
				mem.RecordAccusation(actor.ID)
			}
			// 提名是公开行为，所有机器人都记一笔
			for _, mem := range c.memories {
				mem.RecordVote(actor.ID, target.ID)
			}
		}
		s.nominationVotes[actor.ID] = action.TargetID
		completed = s.nominationComplete()

	case models.ActionConfirm:
		if s.Phase != models.PhaseConfirmation {
			err = ErrWrongPhase
			break
		}
		if actor.ID == s.candidateID {
			err = ErrRoleMismatch
			break
		}
		if _, voted := s.confirmVotes[actor.ID]; voted {
			err = ErrAlreadyActed
			break
		}
		s.confirmVotes[actor.ID] = action.Approve
		if mem, ok := c.memories[s.candidateID]; ok {
			if action.Approve {
				mem.RecordAccusation(actor.ID)
			} else {
				mem.RecordDefense(actor.ID)
			}
		}
		completed = s.confirmComplete()

	default:
		err = ErrWrongPhase
	}

	s.mutex.Unlock()

	if err != nil {
		return err
	}
	if notify != nil {
		notify()
	}
	if completed {
		c.tryResolveEarly(phase)
	}
	return nil
}

// applyNightAction 夜晚动作的校验和应用。调用方持有会话锁。
// 返回需要在锁外发送的私发消息。
func (c *GameCoordinator) applyNightAction(actor *models.Player, action models.GameAction) (func(), error) {
	s := c.session

	if actor.ActedThisNight {
		return nil, ErrAlreadyActed
	}

	switch action.Kind {
	case models.ActionKill:
		if actor.ID != s.actingDonID() {
			return nil, ErrRoleMismatch
		}
		target := s.playerByID(action.TargetID)
		if target == nil || !target.Alive || models.FactionOf(target.Role) == models.FactionMafia {
			return nil, ErrInvalidTarget
		}
		s.mafiaTarget = target.ID
		s.killerID = actor.ID

	case models.ActionHeal:
		if actor.Role != models.Doctor {
			return nil, ErrRoleMismatch
		}
		target := s.playerByID(action.TargetID)
		if target == nil || !target.Alive {
			return nil, ErrInvalidTarget
		}
		if target.ID == actor.ID {
			if actor.HasSelfHealed {
				return nil, ErrAbilityConsumed
			}
			actor.HasSelfHealed = true
		}
		s.healTarget = target.ID
		s.healerID = actor.ID

	case models.ActionCheck:
		if actor.Role != models.Detective && actor.Role != models.Deputy && actor.Role != models.Consigliere {
			return nil, ErrRoleMismatch
		}
		target := s.playerByID(action.TargetID)
		if target == nil || !target.Alive || target.ID == actor.ID {
			return nil, ErrInvalidTarget
		}
		s.pendingChecks = append(s.pendingChecks, pendingCheck{
			investigatorID: actor.ID,
			targetID:       target.ID,
			exact:          actor.Role == models.Consigliere,
		})

	case models.ActionShoot:
		if actor.Role != models.Detective {
			return nil, ErrRoleMismatch
		}
		if actor.HasUsedGun {
			return nil, ErrAbilityConsumed
		}
		target := s.playerByID(action.TargetID)
		if target == nil || !target.Alive || target.ID == actor.ID {
			return nil, ErrInvalidTarget
		}
		// 提交即消耗，结算前就锁定，防止和确认流程竞争
		actor.HasUsedGun = true
		s.shootTarget = target.ID
		s.shooterID = actor.ID

	case models.ActionSwap:
		if actor.Role != models.Petrushka {
			return nil, ErrRoleMismatch
		}
		if actor.HasUsedSwap {
			return nil, ErrAbilityConsumed
		}
		target := s.playerByID(action.TargetID)
		if target == nil || !target.Alive || target.ID == actor.ID {
			return nil, ErrInvalidTarget
		}
		_, newRole, err := applyChaosSwap(target, s.Players, c.rng)
		if err != nil {
			// 目标不可替换，不消耗能力，允许重新选择
			return nil, ErrInvalidTarget
		}
		actor.HasUsedSwap = true
		targetID := target.ID
		actorID := actor.ID
		notify := func() {
			c.notifier.SendToPlayer(targetID, map[string]interface{}{
				"type":    "role_changed",
				"role":    newRole,
				"message": "一股神秘力量改变了你的身份",
			})
			c.notifier.SendToPlayer(actorID, map[string]interface{}{
				"type":    "swap_done",
				"message": "换牌完成",
			})
		}
		actor.ActedThisNight = true
		return notify, nil

	case models.ActionPotato:
		if !s.SpecialMode || s.Round != 1 {
			return nil, ErrWrongPhase
		}
		if actor.Role != models.Civilian {
			return nil, ErrRoleMismatch
		}
		if actor.HasThrownSpud {
			return nil, ErrAbilityConsumed
		}
		target := s.playerByID(action.TargetID)
		if target == nil || !target.Alive || target.ID == actor.ID {
			return nil, ErrInvalidTarget
		}
		actor.HasThrownSpud = true
		s.potatoThrows[actor.ID] = target.ID

	case models.ActionSkip:
		// 放弃本夜行动

	default:
		return nil, ErrWrongPhase
	}

	actor.ActedThisNight = true
	return nil, nil
}

// applyLastWords 记录遗言。调用方持有会话锁。
func (s *GameSession) applyLastWords(playerID, content string) error {
	if s.lastWordsAwait == nil || !s.lastWordsAwait[playerID] {
		return ErrNoLastWords
	}
	s.lastWordsText[playerID] = content
	delete(s.lastWordsAwait, playerID)
	if len(s.lastWordsAwait) == 0 && s.lastWordsDone != nil {
		close(s.lastWordsDone)
		s.lastWordsDone = nil
	}
	return nil
}

// lynchComplete 所有存活玩家都已表决
func (s *GameSession) lynchComplete() bool {
	for _, p := range s.Players {
		if !p.Alive {
			continue
		}
		if _, voted := s.lynchVotes[p.ID]; !voted {
			return false
		}
	}
	return true
}

// nominationComplete 所有存活玩家都已提名或弃权
func (s *GameSession) nominationComplete() bool {
	for _, p := range s.Players {
		if !p.Alive {
			continue
		}
		if _, voted := s.nominationVotes[p.ID]; !voted {
			return false
		}
	}
	return true
}

// confirmComplete 除候选人外所有存活玩家都已投票
func (s *GameSession) confirmComplete() bool {
	for _, p := range s.Players {
		if !p.Alive || p.ID == s.candidateID {
			continue
		}
		if _, voted := s.confirmVotes[p.ID]; !voted {
			return false
		}
	}
	return true
}
