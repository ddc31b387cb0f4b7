package services

import (
	"testing"

	"github.com/qianlnk/mafia/config"
	"github.com/qianlnk/mafia/models"
)

func newTestEngine(seed int64) *BotEngine {
	return NewBotEngine(config.Default().Bot, seed)
}

func TestKillTargetBlindWithoutIntel(t *testing.T) {
	engine := newTestEngine(42)
	self := &models.Player{ID: "don", Role: models.Don, Type: models.BotPlayer, Alive: true}
	alive := []*models.Player{
		self,
		{ID: "det", Role: models.Detective, Type: models.BotPlayer, Alive: true},
		{ID: "doc", Role: models.Doctor, Type: models.BotPlayer, Alive: true},
		{ID: "civ", Role: models.Civilian, Type: models.BotPlayer, Alive: true},
	}

	const rounds = 6000
	picks := make(map[string]int)
	for i := 0; i < rounds; i++ {
		mem := NewBotMemory()
		target := engine.ChooseKillTarget(self, mem, alive)
		if target == "" || target == "don" {
			t.Fatalf("非法刺杀目标: %q", target)
		}
		picks[target]++
	}

	// 没有任何情报时不偷看底牌，三个目标应接近均匀
	for _, id := range []string{"det", "doc", "civ"} {
		rate := float64(picks[id]) / float64(rounds)
		if rate < 0.25 || rate > 0.42 {
			t.Fatalf("无情报时 %s 被选率偏离均匀: got %.3f, want [0.25, 0.42]", id, rate)
		}
	}
}

func TestKillTargetPrefersConfirmedRoles(t *testing.T) {
	engine := newTestEngine(43)
	self := &models.Player{ID: "don", Role: models.Don, Type: models.BotPlayer, Alive: true}
	alive := []*models.Player{
		self,
		{ID: "det", Role: models.Detective, Type: models.BotPlayer, Alive: true},
		{ID: "doc", Role: models.Doctor, Type: models.BotPlayer, Alive: true},
		{ID: "civ", Role: models.Civilian, Type: models.BotPlayer, Alive: true},
	}

	const rounds = 6000
	picks := make(map[string]int)
	for i := 0; i < rounds; i++ {
		mem := NewBotMemory()
		mem.RecordExactRole("det", models.Detective)
		mem.RecordExactRole("doc", models.Doctor)
		target := engine.ChooseKillTarget(self, mem, alive)
		if target == "" || target == "don" {
			t.Fatalf("非法刺杀目标: %q", target)
		}
		picks[target]++
	}

	if picks["det"] <= picks["doc"] || picks["det"] <= picks["civ"] {
		t.Fatalf("确认身份的侦探应是首选目标: det=%d doc=%d civ=%d", picks["det"], picks["doc"], picks["civ"])
	}
	if picks["doc"] <= picks["civ"] {
		t.Fatalf("确认身份的医生优先级应高于平民: doc=%d civ=%d", picks["doc"], picks["civ"])
	}
}

func TestKillTargetNeverPicksMafia(t *testing.T) {
	engine := newTestEngine(7)
	self := &models.Player{ID: "don", Role: models.Don, Type: models.BotPlayer, Alive: true}
	alive := []*models.Player{
		self,
		{ID: "m1", Role: models.Mafia, Type: models.BotPlayer, Alive: true},
		{ID: "con", Role: models.Consigliere, Type: models.BotPlayer, Alive: true},
		{ID: "civ", Role: models.Civilian, Type: models.BotPlayer, Alive: true},
	}

	for i := 0; i < 500; i++ {
		mem := NewBotMemory()
		if target := engine.ChooseKillTarget(self, mem, alive); target != "civ" {
			t.Fatalf("唯一合法目标是平民: got %q", target)
		}
	}
}

func TestHealTargetBlindWithoutIntel(t *testing.T) {
	engine := newTestEngine(11)
	self := &models.Player{ID: "doc", Role: models.Doctor, Type: models.BotPlayer, Alive: true}
	alive := []*models.Player{
		self,
		{ID: "det", Role: models.Detective, Type: models.BotPlayer, Alive: true},
		{ID: "mayor", Role: models.Mayor, Type: models.BotPlayer, Alive: true},
		{ID: "civ", Role: models.Civilian, Type: models.BotPlayer, Alive: true},
	}

	const rounds = 6000
	picks := make(map[string]int)
	for i := 0; i < rounds; i++ {
		mem := NewBotMemory()
		target := engine.ChooseHealTarget(self, mem, alive, 1)
		if target == "" {
			t.Fatal("应选出救治目标")
		}
		if target == "doc" {
			t.Fatal("第一回合不允许自救")
		}
		picks[target]++
	}

	// 没有情报时不偷看底牌，救治目标接近均匀
	for _, id := range []string{"det", "mayor", "civ"} {
		rate := float64(picks[id]) / float64(rounds)
		if rate < 0.25 || rate > 0.42 {
			t.Fatalf("无情报时 %s 被救率偏离均匀: got %.3f, want [0.25, 0.42]", id, rate)
		}
	}
}

func TestHealTargetPrefersConfirmedDetective(t *testing.T) {
	engine := newTestEngine(13)
	self := &models.Player{ID: "doc", Role: models.Doctor, Type: models.BotPlayer, Alive: true}
	alive := []*models.Player{
		self,
		{ID: "det", Role: models.Detective, Type: models.BotPlayer, Alive: true},
		{ID: "mayor", Role: models.Mayor, Type: models.BotPlayer, Alive: true},
		{ID: "civ", Role: models.Civilian, Type: models.BotPlayer, Alive: true},
	}

	for i := 0; i < 500; i++ {
		mem := NewBotMemory()
		mem.RecordExactRole("det", models.Detective)
		if target := engine.ChooseHealTarget(self, mem, alive, 1); target != "det" {
			t.Fatalf("确认身份的侦探应是救治首选: got %q", target)
		}
	}
}

func TestDoctorSelfHealsWhenAccused(t *testing.T) {
	engine := newTestEngine(17)
	self := &models.Player{ID: "doc", Role: models.Doctor, Type: models.BotPlayer, Alive: true}
	alive := []*models.Player{
		self,
		{ID: "civ", Role: models.Civilian, Type: models.BotPlayer, Alive: true},
	}
	mem := NewBotMemory()
	mem.RecordAccusation("civ")

	if got := engine.ChooseHealTarget(self, mem, alive, 2); got != "doc" {
		t.Fatalf("被指控的医生应优先自救: got %q", got)
	}

	// 自救机会已消耗则照常救别人
	self.HasSelfHealed = true
	if got := engine.ChooseHealTarget(self, mem, alive, 2); got != "civ" {
		t.Fatalf("自救用掉后应救别人: got %q", got)
	}
}

func TestDetectiveShootGatedByRound(t *testing.T) {
	engine := newTestEngine(23)
	self := &models.Player{ID: "det", Role: models.Detective, Type: models.BotPlayer, Alive: true}
	alive := []*models.Player{
		self,
		{ID: "don", Role: models.Don, Type: models.BotPlayer, Alive: true},
		{ID: "civ", Role: models.Civilian, Type: models.BotPlayer, Alive: true},
	}
	mem := NewBotMemory()
	mem.RecordCheckVerdict("don", models.VerdictMafia)

	// 第3回合之前即使确认了黑手党也不开枪
	for i := 0; i < 200; i++ {
		kind, _ := engine.DecideDetectiveAction(self, mem, alive, 1)
		if kind != models.ActionCheck {
			t.Fatalf("第1回合应只查验: got %s", kind)
		}
	}

	// 第3回合起按概率对确认目标开枪
	const rounds = 4000
	shots := 0
	for i := 0; i < rounds; i++ {
		kind, target := engine.DecideDetectiveAction(self, mem, alive, 3)
		if kind == models.ActionShoot {
			if target != "don" {
				t.Fatalf("应射击确认的黑手党: got %q", target)
			}
			shots++
		}
	}
	rate := float64(shots) / float64(rounds)
	if rate < 0.7 || rate > 0.9 {
		t.Fatalf("确认目标的开枪率超出预期区间: got %.3f, want [0.70, 0.90]", rate)
	}
}

func TestDetectiveNeverShootsWithGunConsumed(t *testing.T) {
	engine := newTestEngine(31)
	self := &models.Player{ID: "det", Role: models.Detective, Type: models.BotPlayer, Alive: true, HasUsedGun: true}
	alive := []*models.Player{
		self,
		{ID: "don", Role: models.Don, Type: models.BotPlayer, Alive: true},
		{ID: "civ", Role: models.Civilian, Type: models.BotPlayer, Alive: true},
	}
	mem := NewBotMemory()
	mem.RecordCheckVerdict("don", models.VerdictMafia)

	for i := 0; i < 500; i++ {
		if kind, _ := engine.DecideDetectiveAction(self, mem, alive, 6); kind != models.ActionCheck {
			t.Fatalf("枪已用掉只能查验: got %s", kind)
		}
	}
}

func TestDetectiveShootRequiresVerySuspicious(t *testing.T) {
	engine := newTestEngine(29)
	self := &models.Player{ID: "det", Role: models.Detective, Type: models.BotPlayer, Alive: true}
	alive := []*models.Player{
		self,
		{ID: "sus", Role: models.Don, Type: models.BotPlayer, Alive: true},
		{ID: "civ", Role: models.Civilian, Type: models.BotPlayer, Alive: true},
	}

	// 仅仅可疑不足以开枪
	mem := NewBotMemory()
	mem.SetSuspicion("sus", SuspicionSuspicious)
	for i := 0; i < 500; i++ {
		if kind, _ := engine.DecideDetectiveAction(self, mem, alive, 6); kind != models.ActionCheck {
			t.Fatalf("仅可疑时不应开枪: got %s", kind)
		}
	}

	// 高度可疑后按低概率开枪
	mem.SetSuspicion("sus", SuspicionVerySuspicious)
	const rounds = 4000
	shots := 0
	for i := 0; i < rounds; i++ {
		kind, target := engine.DecideDetectiveAction(self, mem, alive, 6)
		if kind == models.ActionShoot {
			if target != "sus" {
				t.Fatalf("应射击高度可疑者: got %q", target)
			}
			shots++
		}
	}
	rate := float64(shots) / float64(rounds)
	if rate < 0.3 || rate > 0.5 {
		t.Fatalf("对高度可疑者的开枪率超出预期区间: got %.3f, want [0.30, 0.50]", rate)
	}
}

func TestCheckTargetPrefersSuspiciousSkipsConfirmed(t *testing.T) {
	engine := newTestEngine(37)
	self := &models.Player{ID: "det", Role: models.Detective, Type: models.BotPlayer, Alive: true}
	alive := []*models.Player{
		self,
		{ID: "known", Role: models.Don, Type: models.BotPlayer, Alive: true},
		{ID: "sus", Role: models.Mafia, Type: models.BotPlayer, Alive: true},
		{ID: "civ", Role: models.Civilian, Type: models.BotPlayer, Alive: true},
	}
	mem := NewBotMemory()
	mem.RecordExactRole("known", models.Mafia)
	mem.SetSuspicion("sus", SuspicionVerySuspicious)

	for i := 0; i < 500; i++ {
		if got := engine.ChooseCheckTarget(self, mem, alive); got != "sus" {
			t.Fatalf("应查验高度可疑且未确认身份的玩家: got %q", got)
		}
	}
}

func TestLynchVoteRates(t *testing.T) {
	engine := newTestEngine(57)
	mafia := &models.Player{ID: "m", Role: models.Mafia, Type: models.BotPlayer, Alive: true}
	town := &models.Player{ID: "c", Role: models.Civilian, Type: models.BotPlayer, Alive: true}

	const rounds = 4000
	mafiaYes, townYes := 0, 0
	for i := 0; i < rounds; i++ {
		if engine.DecideLynchVote(mafia) {
			mafiaYes++
		}
		if engine.DecideLynchVote(town) {
			townYes++
		}
	}

	mafiaRate := float64(mafiaYes) / float64(rounds)
	if mafiaRate < 0.55 || mafiaRate > 0.75 {
		t.Fatalf("黑手党赞成率超出预期区间: got %.3f, want [0.55, 0.75]", mafiaRate)
	}
	townRate := float64(townYes) / float64(rounds)
	if townRate < 0.50 || townRate > 0.70 {
		t.Fatalf("平民赞成率超出预期区间: got %.3f, want [0.50, 0.70]", townRate)
	}
}

func TestNominationMafiaTargetsAccuser(t *testing.T) {
	engine := newTestEngine(73)
	self := &models.Player{ID: "don", Role: models.Don, Type: models.BotPlayer, Alive: true}
	alive := []*models.Player{
		self,
		{ID: "m1", Role: models.Mafia, Type: models.BotPlayer, Alive: true},
		{ID: "acc", Role: models.Civilian, Type: models.BotPlayer, Alive: true},
		{ID: "civ", Role: models.Civilian, Type: models.BotPlayer, Alive: true},
	}

	const rounds = 4000
	accuserPicks := 0
	for i := 0; i < rounds; i++ {
		mem := NewBotMemory()
		mem.RecordAccusation("acc")
		target := engine.ChooseNomination(self, mem, alive, nil)
		if target == "m1" {
			t.Fatal("黑手党不应提名队友")
		}
		if target == "acc" {
			accuserPicks++
		}
	}

	rate := float64(accuserPicks) / float64(rounds)
	// 0.7概率直接报复，未触发时指控者仍是最可疑对象
	if rate < 0.6 {
		t.Fatalf("报复指控者的比例过低: got %.3f", rate)
	}
}

func TestNominationMafiaFallbackPrefersHumans(t *testing.T) {
	engine := newTestEngine(83)
	self := &models.Player{ID: "don", Role: models.Don, Type: models.BotPlayer, Alive: true}
	alive := []*models.Player{
		self,
		{ID: "hum", Role: models.Civilian, Type: models.HumanPlayer, Alive: true},
		{ID: "bot", Role: models.Civilian, Type: models.BotPlayer, Alive: true},
	}

	const rounds = 4000
	humanPicks := 0
	for i := 0; i < rounds; i++ {
		if target := engine.ChooseNomination(self, NewBotMemory(), alive, nil); target == "hum" {
			humanPicks++
		}
	}
	rate := float64(humanPicks) / float64(rounds)
	// 0.7概率点真人，其余情况真人和机器人对半
	if rate < 0.78 || rate > 0.92 {
		t.Fatalf("指向真人的比例超出预期区间: got %.3f, want [0.78, 0.92]", rate)
	}
}

func TestConfirmVoteTiers(t *testing.T) {
	engine := newTestEngine(91)
	self := &models.Player{ID: "c", Role: models.Civilian, Type: models.BotPlayer, Alive: true}
	candidate := &models.Player{ID: "cand", Role: models.Civilian, Type: models.BotPlayer, Alive: true}

	const rounds = 4000

	trusted := NewBotMemory()
	trusted.RecordCheckVerdict("cand", models.VerdictNotMafia)
	trustedYes := 0
	for i := 0; i < rounds; i++ {
		if engine.DecideConfirmVote(self, trusted, candidate, 0, 0) {
			trustedYes++
		}
	}
	rate := float64(trustedYes) / float64(rounds)
	if rate < 0.15 || rate > 0.35 {
		t.Fatalf("对信任对象的赞成率超出预期: got %.3f, want [0.15, 0.35]", rate)
	}

	confirmed := NewBotMemory()
	confirmed.RecordCheckVerdict("cand", models.VerdictMafia)
	confirmedYes := 0
	for i := 0; i < rounds; i++ {
		if engine.DecideConfirmVote(self, confirmed, candidate, 0, 0) {
			confirmedYes++
		}
	}
	rate = float64(confirmedYes) / float64(rounds)
	if rate < 0.7 || rate > 0.9 {
		t.Fatalf("对确认黑手党的赞成率超出预期: got %.3f, want [0.70, 0.90]", rate)
	}
}

func TestConfirmVoteMafiaProtectsTeammate(t *testing.T) {
	engine := newTestEngine(99)
	self := &models.Player{ID: "m1", Role: models.Mafia, Type: models.BotPlayer, Alive: true}
	teammate := &models.Player{ID: "don", Role: models.Don, Type: models.BotPlayer, Alive: true}

	for i := 0; i < 500; i++ {
		if engine.DecideConfirmVote(self, NewBotMemory(), teammate, 0, 0) {
			t.Fatal("黑手党不应投票处决队友")
		}
	}
}

func TestConfirmVoteMafiaCondemnsAccuser(t *testing.T) {
	engine := newTestEngine(101)
	self := &models.Player{ID: "m1", Role: models.Mafia, Type: models.BotPlayer, Alive: true}
	candidate := &models.Player{ID: "acc", Role: models.Civilian, Type: models.BotPlayer, Alive: true}
	mem := NewBotMemory()
	mem.RecordAccusation("acc")

	for i := 0; i < 500; i++ {
		if !engine.DecideConfirmVote(self, mem, candidate, 0, 0) {
			t.Fatal("指控过自己的候选人必须投处决票")
		}
	}
}
