package engagement

import (
	"strings"
	"testing"
	"time"
)

func TestLevelFor(t *testing.T) {
	cases := []struct {
		total int
		name  string
	}{
		{0, "Новичок"},
		{5, "Новичок"},
		{6, "Неравнодушный"},
		{15, "Неравнодушный"},
		{16, "Активист"},
		{30, "Активист"},
		{31, "Волонтёр"},
		{50, "Волонтёр"},
		{51, "Амбассадор добра"},
		{1000, "Амбассадор добра"},
	}
	for _, c := range cases {
		level, _ := LevelFor(c.total)
		if level.Name != c.name {
			t.Fatalf("для %d просмотров ожидали уровень %q, получили %q", c.total, c.name, level.Name)
		}
	}
}

func TestLevelForNext(t *testing.T) {
	_, next := LevelFor(10)
	if next == nil || next.Name != "Активист" {
		t.Fatalf("ожидали следующий уровень «Активист»")
	}
	if next.Threshold != 16 {
		t.Fatalf("ожидали порог 16, получили %d", next.Threshold)
	}
	if _, next := LevelFor(51); next != nil {
		t.Fatalf("на максимальном уровне следующего быть не должно")
	}
}

func TestDecideSameDayEdits(t *testing.T) {
	loc := time.UTC
	policy := NewPolicyWithPicker(loc, func(int) int { return 0 })
	now := time.Date(2025, 3, 10, 18, 0, 0, 0, loc)
	earlier := now.Add(-6 * time.Hour)

	decision := policy.Decide(12, 9, &earlier, true, now)
	if decision.Kind != DecisionEditExisting {
		t.Fatalf("в тот же день ожидали редактирование, получили %s", decision.Kind)
	}
}

func TestDecideNextDaySendsNew(t *testing.T) {
	loc := time.UTC
	policy := NewPolicyWithPicker(loc, func(int) int { return 0 })
	now := time.Date(2025, 3, 11, 0, 30, 0, 0, loc)
	yesterday := time.Date(2025, 3, 10, 23, 30, 0, 0, loc)

	decision := policy.Decide(12, 9, &yesterday, true, now)
	if decision.Kind != DecisionSendNew {
		t.Fatalf("после полуночи ожидали новое сообщение, получили %s", decision.Kind)
	}
}

func TestDecideSameDayRespectsLocation(t *testing.T) {
	// 23:30 и 00:30 UTC — один календарный день в UTC+3.
	loc := time.FixedZone("UTC+3", 3*60*60)
	policy := NewPolicyWithPicker(loc, func(int) int { return 0 })
	last := time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC)
	now := time.Date(2025, 3, 10, 20, 30, 0, 0, time.UTC)

	if d := policy.Decide(5, 3, &last, true, now); d.Kind != DecisionEditExisting {
		t.Fatalf("в пределах дня UTC+3 ожидали редактирование")
	}
}

func TestDecideWithoutStateSendsNew(t *testing.T) {
	policy := NewPolicyWithPicker(time.UTC, func(int) int { return 0 })
	decision := policy.Decide(3, 0, nil, false, time.Now())
	if decision.Kind != DecisionSendNew {
		t.Fatalf("без прежнего уведомления ожидали новое сообщение")
	}
}

func TestDecideSameDayWithoutRefSendsNew(t *testing.T) {
	loc := time.UTC
	policy := NewPolicyWithPicker(loc, func(int) int { return 0 })
	now := time.Date(2025, 3, 10, 18, 0, 0, 0, loc)
	earlier := now.Add(-time.Hour)

	if d := policy.Decide(12, 9, &earlier, false, now); d.Kind != DecisionSendNew {
		t.Fatalf("без ссылки на сообщение редактировать нечего")
	}
}

func TestDecideClampsNegativeDelta(t *testing.T) {
	policy := NewPolicyWithPicker(time.UTC, func(int) int { return 0 })
	decision := policy.Decide(3, 10, nil, false, time.Now())
	if !strings.Contains(decision.Text, "Новых просмотров: +0") {
		t.Fatalf("отрицательная дельта должна показываться как +0: %q", decision.Text)
	}
}

func TestComposeMessageFields(t *testing.T) {
	policy := NewPolicyWithPicker(time.UTC, func(int) int { return 2 })
	decision := policy.Decide(12, 9, nil, false, time.Now())

	for _, want := range []string{
		"📊 Ваша активность в инициативах",
		"🆕 Новых просмотров: +3",
		"👀 Всего просмотров: 12",
		"🏅 Уровень: «Неравнодушный»",
		"🎯 До уровня «Активист» осталось просмотров: 4",
		motivationalLines[2],
	} {
		if !strings.Contains(decision.Text, want) {
			t.Fatalf("в сообщении нет строки %q:\n%s", want, decision.Text)
		}
	}
}

func TestComposeMessageMaxLevel(t *testing.T) {
	policy := NewPolicyWithPicker(time.UTC, func(int) int { return 0 })
	decision := policy.Decide(60, 55, nil, false, time.Now())
	if !strings.Contains(decision.Text, "🏆 Вы достигли максимального уровня!") {
		t.Fatalf("на максимальном уровне ожидали поздравление: %q", decision.Text)
	}
	if strings.Contains(decision.Text, "🎯") {
		t.Fatalf("на максимальном уровне следующей цели быть не должно")
	}
}
