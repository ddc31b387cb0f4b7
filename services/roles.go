package services

import (
	"errors"
	"log"
	"math/rand"

	"github.com/qianlnk/mafia/models"
)

// assignRoles 按人数从分配表取角色并洗牌分配。
// 表中没有对应档位或长度不符时退化为 教父+医生+侦探+平民 的保底分配。
func assignRoles(players []*models.Player, table map[int][]models.Role, rng *rand.Rand) {
	count := len(players)

	roles, ok := table[count]
	if !ok || len(roles) != count {
		log.Printf("[分配] 分配表缺少%d人档位（存在=%v），使用保底分配", count, ok)
		roles = fallbackRoles(count)
	}

	shuffled := make([]models.Role, len(roles))
	copy(shuffled, roles)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	for i, p := range players {
		p.Role = shuffled[i]
		p.Alive = true
	}
}

// fallbackRoles 保底角色分配
func fallbackRoles(count int) []models.Role {
	roles := []models.Role{models.Don, models.Doctor, models.Detective}
	for len(roles) < count {
		roles = append(roles, models.Civilian)
	}
	return roles[:count]
}

var errSwapLastMafia = errors.New("不能替换最后一名存活的黑手党")

// chaosSwapPool 换牌可能得到的新角色
var chaosSwapPool = []models.Role{
	models.Mafia,
	models.Doctor,
	models.Detective,
	models.Deputy,
	models.Mayor,
	models.Executioner,
	models.Civilian,
}

// applyChaosSwap 彼得鲁什卡换牌：目标随机换成一个新角色。
// 目标是最后一名存活黑手党时拒绝换牌，否则可能直接终结游戏。
// 换成医生重置自救标记，换成侦探重置开枪标记。
// 返回换牌前后的角色。
func applyChaosSwap(target *models.Player, players []*models.Player, rng *rand.Rand) (models.Role, models.Role, error) {
	oldRole := target.Role

	if models.FactionOf(oldRole) == models.FactionMafia {
		mafiaAlive := 0
		for _, p := range players {
			if p.Alive && models.FactionOf(p.Role) == models.FactionMafia {
				mafiaAlive++
			}
		}
		if mafiaAlive <= 1 {
			return oldRole, oldRole, errSwapLastMafia
		}
	}

	candidates := make([]models.Role, 0, len(chaosSwapPool))
	for _, r := range chaosSwapPool {
		if r != oldRole {
			candidates = append(candidates, r)
		}
	}
	newRole := candidates[rng.Intn(len(candidates))]

	target.Role = newRole
	switch newRole {
	case models.Doctor:
		target.HasSelfHealed = false
	case models.Detective:
		target.HasUsedGun = false
	}

	return oldRole, newRole, nil
}

// checkVerdictFor 侦探和警长助手的查验结论：只区分是否黑手党
func checkVerdictFor(role models.Role) models.CheckVerdict {
	if models.FactionOf(role) == models.FactionMafia {
		return models.VerdictMafia
	}
	return models.VerdictNotMafia
}
