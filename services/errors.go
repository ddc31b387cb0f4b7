package services

import "errors"

var (
	ErrSessionNotFound  = errors.New("会话不存在")
	ErrSessionFull      = errors.New("会话已满")
	ErrGameNotStarted   = errors.New("游戏尚未开始")
	ErrGameInProgress   = errors.New("游戏已经开始")
	ErrNotEnoughPlayers = errors.New("玩家人数不足")
	ErrPlayerNotFound   = errors.New("玩家不存在")
	ErrPlayerDead       = errors.New("玩家已死亡")
	ErrWrongPhase       = errors.New("当前阶段不允许该动作")
	ErrRoleMismatch     = errors.New("角色无权执行该动作")
	ErrAlreadyActed     = errors.New("本阶段已经行动过")
	ErrInvalidTarget    = errors.New("无效的目标玩家")
	ErrAbilityConsumed  = errors.New("一次性能力已经用过")
	ErrNoLastWords      = errors.New("当前没有等待中的遗言")
)
