package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/qianlnk/mafia/models"
)

// Config 运行时配置，带默认值，可被config.yaml覆盖
type Config struct {
	ListenAddr   string `mapstructure:"listen_addr"`
	DatabaseFile string `mapstructure:"database_file"`

	MinPlayers int `mapstructure:"min_players"`
	MaxPlayers int `mapstructure:"max_players"`
	MaxBots    int `mapstructure:"max_bots"`

	// 各阶段时长
	NightDuration        time.Duration `mapstructure:"night_duration"`
	DayDuration          time.Duration `mapstructure:"day_duration"`
	VotingDuration       time.Duration `mapstructure:"voting_duration"`
	ConfirmationDuration time.Duration `mapstructure:"confirmation_duration"`
	LastWordsTimeout     time.Duration `mapstructure:"last_words_timeout"`
	TimerUpdateInterval  time.Duration `mapstructure:"timer_update_interval"`

	// 特殊模式
	SpecialModeEnabled bool    `mapstructure:"special_mode_enabled"`
	SpecialModeChance  float64 `mapstructure:"special_mode_chance"`
	PotatoKillChance   float64 `mapstructure:"potato_kill_chance"`

	// 投票
	NominationThresholdRatio float64 `mapstructure:"nomination_threshold_ratio"`

	// 刽子手
	ExecutionerRopeBreakChance float64 `mapstructure:"executioner_rope_break_chance"`
	ExecutionerReducesBreakBy  float64 `mapstructure:"executioner_reduces_break_by"`
	NormalRopeBreakChance      float64 `mapstructure:"normal_rope_break_chance"`

	// 积分
	PointsWin          int `mapstructure:"points_win"`
	PointsLoss         int `mapstructure:"points_loss"`
	PointsKill         int `mapstructure:"points_kill"`
	PointsSave         int `mapstructure:"points_save"`
	PointsCorrectCheck int `mapstructure:"points_correct_check"`

	Bot BotConfig `mapstructure:"bot"`

	// 角色分配表，键为玩家人数
	RoleTable map[int][]models.Role `mapstructure:"-"`
}

// BotConfig 机器人决策参数
type BotConfig struct {
	// 杀人目标权重
	KillPriorityDetective float64 `mapstructure:"kill_priority_detective"`
	KillPriorityDoctor    float64 `mapstructure:"kill_priority_doctor"`
	KillPrioritySpecial   float64 `mapstructure:"kill_priority_special"`
	KillPriorityHuman     float64 `mapstructure:"kill_priority_human"`
	KillPriorityAccuser   float64 `mapstructure:"kill_priority_accuser"`
	RepeatTargetDiscount  float64 `mapstructure:"repeat_target_discount"`

	// 救治目标权重
	HealPriorityDetective float64 `mapstructure:"heal_priority_detective"`
	HealPrioritySpecial   float64 `mapstructure:"heal_priority_special"`
	HealPriorityTrusted   float64 `mapstructure:"heal_priority_trusted"`
	HealPriorityHuman     float64 `mapstructure:"heal_priority_human"`
	HealPriorityDefender  float64 `mapstructure:"heal_priority_defender"`

	// 查验目标权重
	CheckPriorityVerySuspicious float64 `mapstructure:"check_priority_very_suspicious"`
	CheckPrioritySuspicious     float64 `mapstructure:"check_priority_suspicious"`
	CheckPriorityHuman          float64 `mapstructure:"check_priority_human"`
	CheckPriorityAccuser        float64 `mapstructure:"check_priority_accuser"`

	PriorityJitterMin      float64 `mapstructure:"priority_jitter_min"`
	PriorityJitterMax      float64 `mapstructure:"priority_jitter_max"`
	DoctorSelfHealMinRound int     `mapstructure:"doctor_self_heal_min_round"`

	// 侦探开枪
	DetectiveShootMinRound       int     `mapstructure:"detective_shoot_min_round"`
	DetectiveShootConfirmedProb  float64 `mapstructure:"detective_shoot_confirmed_prob"`
	DetectiveShootSuspiciousProb float64 `mapstructure:"detective_shoot_suspicious_prob"`

	// 投票行为
	FollowPopularVoteProb  float64 `mapstructure:"follow_popular_vote_prob"`
	MafiaTargetAccuserProb float64 `mapstructure:"mafia_target_accuser_prob"`
	MafiaVoteYesProb       float64 `mapstructure:"mafia_vote_yes_prob"`
	TownVoteYesProb        float64 `mapstructure:"town_vote_yes_prob"`

	// 最终确认
	ConfirmVerySuspiciousYes float64 `mapstructure:"confirm_very_suspicious_yes"`
	ConfirmSuspiciousYes     float64 `mapstructure:"confirm_suspicious_yes"`
	ConfirmTrustedNo         float64 `mapstructure:"confirm_trusted_no"`
	ConfirmNeutralYes        float64 `mapstructure:"confirm_neutral_yes"`
}

// defaultRoleTable 各人数下的固定角色分配表
func defaultRoleTable() map[int][]models.Role {
	return map[int][]models.Role{
		5:  {models.Don, models.Doctor, models.Detective, models.Civilian, models.Civilian},
		6:  {models.Don, models.Mafia, models.Doctor, models.Detective, models.Civilian, models.Civilian},
		7:  {models.Don, models.Mafia, models.Doctor, models.Detective, models.Petrushka, models.Civilian, models.Civilian},
		8:  {models.Don, models.Mafia, models.Doctor, models.Detective, models.Deputy, models.Petrushka, models.Civilian, models.Civilian},
		9:  {models.Don, models.Mafia, models.Doctor, models.Detective, models.Deputy, models.Mayor, models.Petrushka, models.Civilian, models.Civilian},
		10: {models.Don, models.Mafia, models.Consigliere, models.Doctor, models.Detective, models.Deputy, models.Mayor, models.Petrushka, models.Civilian, models.Civilian},
		11: {models.Don, models.Mafia, models.Consigliere, models.Doctor, models.Detective, models.Deputy, models.Mayor, models.Executioner, models.Petrushka, models.Civilian, models.Civilian},
		12: {models.Don, models.Mafia, models.Mafia, models.Consigliere, models.Doctor, models.Detective, models.Deputy, models.Mayor, models.Executioner, models.Petrushka, models.Civilian, models.Civilian},
		13: {models.Don, models.Mafia, models.Mafia, models.Consigliere, models.Doctor, models.Detective, models.Deputy, models.Mayor, models.Executioner, models.Petrushka, models.Civilian, models.Civilian, models.Civilian},
		14: {models.Don, models.Mafia, models.Mafia, models.Consigliere, models.Doctor, models.Detective, models.Deputy, models.Mayor, models.Executioner, models.Petrushka, models.Civilian, models.Civilian, models.Civilian, models.Civilian},
		15: {models.Don, models.Mafia, models.Mafia, models.Consigliere, models.Doctor, models.Detective, models.Deputy, models.Mayor, models.Executioner, models.Petrushka, models.Civilian, models.Civilian, models.Civilian, models.Civilian, models.Civilian},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("database_file", "mafia.db")

	v.SetDefault("min_players", 5)
	v.SetDefault("max_players", 15)
	v.SetDefault("max_bots", 10)

	v.SetDefault("night_duration", "40s")
	v.SetDefault("day_duration", "70s")
	v.SetDefault("voting_duration", "20s")
	v.SetDefault("confirmation_duration", "20s")
	v.SetDefault("last_words_timeout", "20s")
	v.SetDefault("timer_update_interval", "15s")

	v.SetDefault("special_mode_enabled", true)
	v.SetDefault("special_mode_chance", 0.20)
	v.SetDefault("potato_kill_chance", 0.5)

	v.SetDefault("nomination_threshold_ratio", 0.3)

	v.SetDefault("executioner_rope_break_chance", 0.5)
	v.SetDefault("executioner_reduces_break_by", 0.1)
	v.SetDefault("normal_rope_break_chance", 0.15)

	v.SetDefault("points_win", 10)
	v.SetDefault("points_loss", 3)
	v.SetDefault("points_kill", 2)
	v.SetDefault("points_save", 3)
	v.SetDefault("points_correct_check", 1)

	v.SetDefault("bot.kill_priority_detective", 3.0)
	v.SetDefault("bot.kill_priority_doctor", 2.5)
	v.SetDefault("bot.kill_priority_special", 1.8)
	v.SetDefault("bot.kill_priority_human", 1.5)
	v.SetDefault("bot.kill_priority_accuser", 2.0)
	v.SetDefault("bot.repeat_target_discount", 0.5)

	v.SetDefault("bot.heal_priority_detective", 2.5)
	v.SetDefault("bot.heal_priority_special", 2.0)
	v.SetDefault("bot.heal_priority_trusted", 1.8)
	v.SetDefault("bot.heal_priority_human", 1.3)
	v.SetDefault("bot.heal_priority_defender", 2.2)

	v.SetDefault("bot.check_priority_very_suspicious", 3.0)
	v.SetDefault("bot.check_priority_suspicious", 2.0)
	v.SetDefault("bot.check_priority_human", 1.3)
	v.SetDefault("bot.check_priority_accuser", 1.5)

	v.SetDefault("bot.priority_jitter_min", 0.8)
	v.SetDefault("bot.priority_jitter_max", 1.2)
	v.SetDefault("bot.doctor_self_heal_min_round", 2)

	v.SetDefault("bot.detective_shoot_min_round", 3)
	v.SetDefault("bot.detective_shoot_confirmed_prob", 0.8)
	v.SetDefault("bot.detective_shoot_suspicious_prob", 0.4)

	v.SetDefault("bot.follow_popular_vote_prob", 0.6)
	v.SetDefault("bot.mafia_target_accuser_prob", 0.7)
	v.SetDefault("bot.mafia_vote_yes_prob", 0.65)
	v.SetDefault("bot.town_vote_yes_prob", 0.6)

	v.SetDefault("bot.confirm_very_suspicious_yes", 0.8)
	v.SetDefault("bot.confirm_suspicious_yes", 0.6)
	v.SetDefault("bot.confirm_trusted_no", 0.75)
	v.SetDefault("bot.confirm_neutral_yes", 0.55)
}

// Load 加载配置。path为空时只使用默认值和当前目录下的config.yaml（如果存在）
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		// 配置文件不存在时使用默认值
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	cfg.RoleTable = defaultRoleTable()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 返回默认配置，主要用于测试
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate 校验配置合法性，启动时发现问题立即失败
func (c *Config) Validate() error {
	if c.MinPlayers < 3 {
		return fmt.Errorf("min_players过小: %d", c.MinPlayers)
	}
	if c.MaxPlayers < c.MinPlayers {
		return fmt.Errorf("max_players不能小于min_players: %d < %d", c.MaxPlayers, c.MinPlayers)
	}
	for _, d := range []struct {
		name string
		val  time.Duration
	}{
		{"night_duration", c.NightDuration},
		{"day_duration", c.DayDuration},
		{"voting_duration", c.VotingDuration},
		{"confirmation_duration", c.ConfirmationDuration},
		{"last_words_timeout", c.LastWordsTimeout},
		{"timer_update_interval", c.TimerUpdateInterval},
	} {
		if d.val <= 0 {
			return fmt.Errorf("%s必须为正值: %v", d.name, d.val)
		}
	}
	for _, p := range []struct {
		name string
		val  float64
	}{
		{"special_mode_chance", c.SpecialModeChance},
		{"potato_kill_chance", c.PotatoKillChance},
		{"nomination_threshold_ratio", c.NominationThresholdRatio},
		{"executioner_rope_break_chance", c.ExecutionerRopeBreakChance},
		{"executioner_reduces_break_by", c.ExecutionerReducesBreakBy},
		{"normal_rope_break_chance", c.NormalRopeBreakChance},
	} {
		if p.val < 0 || p.val > 1 {
			return fmt.Errorf("%s必须在[0,1]范围内: %v", p.name, p.val)
		}
	}
	if c.Bot.PriorityJitterMin > c.Bot.PriorityJitterMax {
		return fmt.Errorf("priority_jitter区间非法: [%v, %v]", c.Bot.PriorityJitterMin, c.Bot.PriorityJitterMax)
	}
	for count, roles := range c.RoleTable {
		if len(roles) != count {
			return fmt.Errorf("角色分配表%d人档位的角色数不匹配: %d", count, len(roles))
		}
	}
	return nil
}
