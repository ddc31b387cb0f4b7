package services

import (
	"fmt"

	"github.com/qianlnk/mafia/models"
)

// BotDialogue 机器人发言生成器，白天讨论阶段用来活跃气氛
type BotDialogue struct {
	engine *BotEngine
}

// NewBotDialogue 创建发言生成器
func NewBotDialogue(engine *BotEngine) *BotDialogue {
	return &BotDialogue{engine: engine}
}

// GenerateDayLine 生成白天讨论发言
func (bd *BotDialogue) GenerateDayLine(player *models.Player, mem *BotMemory, alive []*models.Player) string {
	// 有明确怀疑对象时点名
	suspects := mem.SuspiciousTargets(SuspicionSuspicious)
	if len(suspects) > 0 {
		if target := findPlayer(alive, suspects[bd.engine.intn(len(suspects))]); target != nil {
			return fmt.Sprintf("我觉得%s昨天的表现很反常，大家注意一下", target.Name)
		}
	}

	switch models.FactionOf(player.Role) {
	case models.FactionMafia:
		return bd.mafiaLine()
	default:
		return bd.townLine(player)
	}
}

// mafiaLine 黑手党需要伪装和误导
func (bd *BotDialogue) mafiaLine() string {
	lines := []string{
		"昨晚我好像听到了一些动静，但不确定是什么",
		"大家要冷静分析，不要被表象迷惑",
		"我觉得真正的凶手藏得很深",
		"先别急着投票，再观察一天",
	}
	return lines[bd.engine.intn(len(lines))]
}

// townLine 平民阵营积极推动讨论
func (bd *BotDialogue) townLine(player *models.Player) string {
	if player.Role == models.Detective || player.Role == models.Deputy {
		lines := []string{
			"我有一些重要的信息要分享",
			"我觉得有些人的行为很值得怀疑",
			"相信我，我知道的比你们多",
		}
		return lines[bd.engine.intn(len(lines))]
	}

	lines := []string{
		"大家有没有发现什么可疑的人？",
		"昨晚的情况大家怎么看？",
		"我们要抓紧时间找出黑手党",
		"让我们好好分析一下局势",
	}
	return lines[bd.engine.intn(len(lines))]
}
