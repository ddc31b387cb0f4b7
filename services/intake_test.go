package services

import (
	"errors"
	"testing"

	"github.com/qianlnk/mafia/models"
)

func submitErr(c *GameCoordinator, action models.GameAction) error {
	action.SessionID = c.session.ID
	return c.SubmitAction(action)
}

func TestIntakeRejectsWrongPhase(t *testing.T) {
	c := newTestGame([]seat{
		{"don", models.Don},
		{"doc", models.Doctor},
		{"det", models.Detective},
		{"civ1", models.Civilian},
		{"civ2", models.Civilian},
	}, testConfig())
	c.startNight(1)

	if err := submitErr(c, models.GameAction{Kind: models.ActionVote, PlayerID: "civ1", Approve: true}); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("夜晚不能表决: got %v", err)
	}
	if err := submitErr(c, models.GameAction{Kind: models.ActionNominate, PlayerID: "civ1", TargetID: "don"}); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("夜晚不能提名: got %v", err)
	}
}

func TestIntakeRejectsDeadActor(t *testing.T) {
	c := newTestGame([]seat{
		{"don", models.Don},
		{"doc", models.Doctor},
		{"det", models.Detective},
		{"civ1", models.Civilian},
		{"civ2", models.Civilian},
	}, testConfig())
	c.session.playerByID("civ1").Alive = false
	c.startNight(1)

	if err := submitErr(c, models.GameAction{Kind: models.ActionSkip, PlayerID: "civ1"}); !errors.Is(err, ErrPlayerDead) {
		t.Fatalf("死者不能行动: got %v", err)
	}
	if err := submitErr(c, models.GameAction{Kind: models.ActionKill, PlayerID: "ghost", TargetID: "civ2"}); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("未知玩家: got %v", err)
	}
}

func TestIntakeRejectsRoleMismatch(t *testing.T) {
	c := newTestGame([]seat{
		{"don", models.Don},
		{"doc", models.Doctor},
		{"det", models.Detective},
		{"civ1", models.Civilian},
		{"civ2", models.Civilian},
	}, testConfig())
	c.startNight(1)

	if err := submitErr(c, models.GameAction{Kind: models.ActionKill, PlayerID: "civ1", TargetID: "civ2"}); !errors.Is(err, ErrRoleMismatch) {
		t.Fatalf("平民不能刺杀: got %v", err)
	}
	if err := submitErr(c, models.GameAction{Kind: models.ActionHeal, PlayerID: "det", TargetID: "civ1"}); !errors.Is(err, ErrRoleMismatch) {
		t.Fatalf("侦探不能救治: got %v", err)
	}
}

func TestIntakeKillCannotTargetMafia(t *testing.T) {
	c := newTestGame([]seat{
		{"don", models.Don},
		{"m1", models.Mafia},
		{"doc", models.Doctor},
		{"det", models.Detective},
		{"civ1", models.Civilian},
		{"civ2", models.Civilian},
	}, testConfig())
	c.startNight(1)

	if err := submitErr(c, models.GameAction{Kind: models.ActionKill, PlayerID: "don", TargetID: "m1"}); !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("不能刺杀自己人: got %v", err)
	}
}

func TestIntakeActingDonSuccession(t *testing.T) {
	c := newTestGame([]seat{
		{"don", models.Don},
		{"m1", models.Mafia},
		{"doc", models.Doctor},
		{"det", models.Detective},
		{"civ1", models.Civilian},
		{"civ2", models.Civilian},
	}, testConfig())
	c.session.playerByID("don").Alive = false
	c.startNight(1)

	// 教父死后普通黑手党接任刺杀决定权
	if err := submitErr(c, models.GameAction{Kind: models.ActionKill, PlayerID: "m1", TargetID: "civ1"}); err != nil {
		t.Fatalf("代理教父应能刺杀: %v", err)
	}
}

func TestIntakeDuplicateNightActionRejected(t *testing.T) {
	c := newTestGame([]seat{
		{"don", models.Don},
		{"doc", models.Doctor},
		{"det", models.Detective},
		{"civ1", models.Civilian},
		{"civ2", models.Civilian},
	}, testConfig())
	c.startNight(1)

	submit(t, c, models.GameAction{Kind: models.ActionKill, PlayerID: "don", TargetID: "civ1"})
	if err := submitErr(c, models.GameAction{Kind: models.ActionKill, PlayerID: "don", TargetID: "civ2"}); !errors.Is(err, ErrAlreadyActed) {
		t.Fatalf("一夜只能行动一次: got %v", err)
	}
}

func TestIntakeSelfHealOncePerGame(t *testing.T) {
	c := newTestGame([]seat{
		{"don", models.Don},
		{"doc", models.Doctor},
		{"det", models.Detective},
		{"civ1", models.Civilian},
		{"civ2", models.Civilian},
	}, testConfig())
	c.session.playerByID("doc").HasSelfHealed = true
	c.startNight(1)

	if err := submitErr(c, models.GameAction{Kind: models.ActionHeal, PlayerID: "doc", TargetID: "doc"}); !errors.Is(err, ErrAbilityConsumed) {
		t.Fatalf("自救只有一次: got %v", err)
	}
	// 救别人不受限制
	if err := submitErr(c, models.GameAction{Kind: models.ActionHeal, PlayerID: "doc", TargetID: "civ1"}); err != nil {
		t.Fatalf("救治他人应成功: %v", err)
	}
}

func TestIntakeShootOncePerGame(t *testing.T) {
	c := newTestGame([]seat{
		{"don", models.Don},
		{"doc", models.Doctor},
		{"det", models.Detective},
		{"civ1", models.Civilian},
		{"civ2", models.Civilian},
	}, testConfig())
	c.session.playerByID("det").HasUsedGun = true
	c.startNight(1)

	if err := submitErr(c, models.GameAction{Kind: models.ActionShoot, PlayerID: "det", TargetID: "don"}); !errors.Is(err, ErrAbilityConsumed) {
		t.Fatalf("开枪只有一次: got %v", err)
	}
}

func TestIntakeDuplicateVoteRejected(t *testing.T) {
	c := newTestGame([]seat{
		{"a", models.Civilian},
		{"b", models.Civilian},
		{"d", models.Civilian},
		{"e", models.Don},
		{"f", models.Doctor},
	}, testConfig())
	c.session.Round = 1
	c.startLynchVote()

	submit(t, c, models.GameAction{Kind: models.ActionVote, PlayerID: "a", Approve: true})
	if err := submitErr(c, models.GameAction{Kind: models.ActionVote, PlayerID: "a", Approve: false}); !errors.Is(err, ErrAlreadyActed) {
		t.Fatalf("不能重复表决: got %v", err)
	}
}

func TestIntakeCandidateCannotConfirm(t *testing.T) {
	c := newTestGame([]seat{
		{"don", models.Don},
		{"a", models.Civilian},
		{"b", models.Civilian},
		{"d", models.Civilian},
		{"e", models.Doctor},
	}, testConfig())
	c.session.Round = 1
	c.session.candidateID = "don"
	c.startConfirmation()

	if err := submitErr(c, models.GameAction{Kind: models.ActionConfirm, PlayerID: "don", Approve: false}); !errors.Is(err, ErrRoleMismatch) {
		t.Fatalf("候选人不能给自己投票: got %v", err)
	}
}

func TestIntakePotatoOnlyInSpecialModeRoundOne(t *testing.T) {
	c := newTestGame([]seat{
		{"don", models.Don},
		{"doc", models.Doctor},
		{"det", models.Detective},
		{"civ1", models.Civilian},
		{"civ2", models.Civilian},
	}, testConfig())
	c.startNight(1)

	if err := submitErr(c, models.GameAction{Kind: models.ActionPotato, PlayerID: "civ1", TargetID: "civ2"}); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("普通模式不能扔土豆: got %v", err)
	}
}

func TestIntakeLastWordsWithoutWindow(t *testing.T) {
	c := newTestGame([]seat{
		{"don", models.Don},
		{"doc", models.Doctor},
		{"det", models.Detective},
		{"civ1", models.Civilian},
		{"civ2", models.Civilian},
	}, testConfig())
	c.startNight(1)

	if err := submitErr(c, models.GameAction{Kind: models.ActionLastWords, PlayerID: "civ1", Content: "我走了"}); !errors.Is(err, ErrNoLastWords) {
		t.Fatalf("没有遗言窗口时应拒绝: got %v", err)
	}
}

func TestChaosSwapRefusalDoesNotConsumeAbility(t *testing.T) {
	c := newTestGame([]seat{
		{"don", models.Don},
		{"doc", models.Doctor},
		{"det", models.Detective},
		{"pet", models.Petrushka},
		{"civ1", models.Civilian},
	}, testConfig())
	c.startNight(1)

	// 教父是最后一名黑手党，换牌被拒且不消耗能力
	if err := submitErr(c, models.GameAction{Kind: models.ActionSwap, PlayerID: "pet", TargetID: "don"}); !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("不能替换最后一名黑手党: got %v", err)
	}
	pet := c.session.playerByID("pet")
	if pet.HasUsedSwap {
		t.Fatal("被拒绝的换牌不应消耗能力")
	}
	if pet.ActedThisNight {
		t.Fatal("被拒绝的换牌不应算作已行动")
	}

	// 换普通目标成功
	if err := submitErr(c, models.GameAction{Kind: models.ActionSwap, PlayerID: "pet", TargetID: "civ1"}); err != nil {
		t.Fatalf("换牌应成功: %v", err)
	}
	if !pet.HasUsedSwap {
		t.Fatal("成功的换牌应消耗能力")
	}
	if got := c.session.playerByID("civ1").Role; got == models.Civilian {
		t.Fatalf("目标角色应已改变: got %s", got)
	}
}
