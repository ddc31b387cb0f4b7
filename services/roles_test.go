package services

import (
	"bytes"
	"log"
	"math/rand"
	"os"
	"strings"
	"testing"

	"github.com/qianlnk/mafia/config"
	"github.com/qianlnk/mafia/models"
)

func TestAssignRolesMatchesTable(t *testing.T) {
	table := config.Default().RoleTable

	for count := 5; count <= 15; count++ {
		players := make([]*models.Player, count)
		for i := range players {
			players[i] = &models.Player{ID: string(rune('a' + i))}
		}
		assignRoles(players, table, rand.New(rand.NewSource(int64(count))))

		want := make(map[models.Role]int)
		for _, r := range table[count] {
			want[r]++
		}
		got := make(map[models.Role]int)
		for _, p := range players {
			got[p.Role]++
			if !p.Alive {
				t.Fatalf("%d人局分配后玩家应存活", count)
			}
		}
		for role, n := range want {
			if got[role] != n {
				t.Fatalf("%d人局角色 %s 数量错误: got %d, want %d", count, role, got[role], n)
			}
		}
	}
}

func TestAssignRolesFallback(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	// 分配表没有4人档位，退化为保底分配
	players := make([]*models.Player, 4)
	for i := range players {
		players[i] = &models.Player{ID: string(rune('a' + i))}
	}
	assignRoles(players, config.Default().RoleTable, rand.New(rand.NewSource(1)))

	got := make(map[models.Role]int)
	for _, p := range players {
		got[p.Role]++
	}
	if got[models.Don] != 1 || got[models.Doctor] != 1 || got[models.Detective] != 1 || got[models.Civilian] != 1 {
		t.Fatalf("保底分配错误: %v", got)
	}
	if !strings.Contains(buf.String(), "保底分配") {
		t.Fatalf("退化分配应留下日志: %q", buf.String())
	}
}

func TestChaosSwapRefusesLastMafia(t *testing.T) {
	don := &models.Player{ID: "don", Role: models.Don, Alive: true}
	players := []*models.Player{
		don,
		{ID: "civ", Role: models.Civilian, Alive: true},
	}

	_, _, err := applyChaosSwap(don, players, rand.New(rand.NewSource(1)))
	if err == nil {
		t.Fatal("最后一名黑手党不能被替换")
	}
	if don.Role != models.Don {
		t.Fatalf("拒绝换牌时角色不应改变: got %s", don.Role)
	}
}

func TestChaosSwapAllowsMafiaWithBackup(t *testing.T) {
	don := &models.Player{ID: "don", Role: models.Don, Alive: true}
	players := []*models.Player{
		don,
		{ID: "m1", Role: models.Mafia, Alive: true},
		{ID: "civ", Role: models.Civilian, Alive: true},
	}

	oldRole, newRole, err := applyChaosSwap(don, players, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("还有其他黑手党时换牌应成功: %v", err)
	}
	if oldRole != models.Don || newRole == models.Don {
		t.Fatalf("换牌结果错误: %s -> %s", oldRole, newRole)
	}
}

func TestChaosSwapResetsAbilityFlags(t *testing.T) {
	for seed := int64(0); seed < 100; seed++ {
		target := &models.Player{
			ID:            "t",
			Role:          models.Civilian,
			Alive:         true,
			HasSelfHealed: true,
			HasUsedGun:    true,
		}
		players := []*models.Player{
			target,
			{ID: "don", Role: models.Don, Alive: true},
		}

		old, newRole, err := applyChaosSwap(target, players, rand.New(rand.NewSource(seed)))
		if err != nil {
			t.Fatalf("seed %d: 平民换牌应成功: %v", seed, err)
		}
		if newRole == old {
			t.Fatalf("seed %d: 新角色不应和旧角色相同", seed)
		}
		if newRole == models.Doctor && target.HasSelfHealed {
			t.Fatalf("seed %d: 换成医生应重置自救标记", seed)
		}
		if newRole == models.Detective && target.HasUsedGun {
			t.Fatalf("seed %d: 换成侦探应重置开枪标记", seed)
		}
	}
}
