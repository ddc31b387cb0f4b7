package config

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("默认配置应通过校验: %v", err)
	}
	if cfg.MinPlayers != 5 || cfg.MaxPlayers != 15 {
		t.Fatalf("默认人数范围错误: %d-%d", cfg.MinPlayers, cfg.MaxPlayers)
	}
	if cfg.NightDuration != 40*time.Second {
		t.Fatalf("默认夜晚时长错误: %v", cfg.NightDuration)
	}
	if cfg.Bot.KillPriorityDetective != 3.0 {
		t.Fatalf("默认机器人参数错误: %v", cfg.Bot.KillPriorityDetective)
	}
}

func TestRoleTableCoversAllCounts(t *testing.T) {
	table := Default().RoleTable
	for count := 5; count <= 15; count++ {
		roles, ok := table[count]
		if !ok {
			t.Fatalf("缺少%d人档位", count)
		}
		if len(roles) != count {
			t.Fatalf("%d人档位角色数错误: %d", count, len(roles))
		}
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"min_players过小", func(c *Config) { c.MinPlayers = 2 }},
		{"max小于min", func(c *Config) { c.MaxPlayers = c.MinPlayers - 1 }},
		{"夜晚时长为零", func(c *Config) { c.NightDuration = 0 }},
		{"表决时长为负", func(c *Config) { c.VotingDuration = -time.Second }},
		{"土豆概率越界", func(c *Config) { c.PotatoKillChance = 1.5 }},
		{"断绳概率为负", func(c *Config) { c.NormalRopeBreakChance = -0.1 }},
		{"抖动区间颠倒", func(c *Config) { c.Bot.PriorityJitterMin = 1.5 }},
		{"分配表长度不符", func(c *Config) { c.RoleTable[5] = c.RoleTable[6] }},
	}

	for _, tc := range cases {
		cfg := Default()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: 应返回校验错误", tc.name)
		}
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("指定的配置文件不存在时应报错")
	}
}
