package engagement

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// DecisionKind описывает вид решения движка уведомлений.
type DecisionKind string

const (
	// DecisionSendNew — отправить новое сообщение.
	DecisionSendNew DecisionKind = "send_new"
	// DecisionEditExisting — обновить текст дневного сообщения на месте.
	DecisionEditExisting DecisionKind = "edit_existing"
)

// Decision содержит вид действия и готовый текст уведомления.
type Decision struct {
	Kind DecisionKind
	Text string
}

// Level описывает именованный уровень вовлечённости.
type Level struct {
	Threshold int
	Name      string
}

// Таблица уровней по суммарному числу просмотров. Уровень — последний,
// чей порог не превышает текущую сумму.
var levels = []Level{
	{Threshold: 0, Name: "Новичок"},
	{Threshold: 6, Name: "Неравнодушный"},
	{Threshold: 16, Name: "Активист"},
	{Threshold: 31, Name: "Волонтёр"},
	{Threshold: 51, Name: "Амбассадор добра"},
}

var motivationalLines = []string{
	"💙 Каждый просмотр — шаг к доброму делу!",
	"🌟 Спасибо, что не остаётесь в стороне!",
	"🤝 Вместе мы можем больше. Продолжайте изучать инициативы!",
	"✨ Ваш интерес вдохновляет авторов инициатив!",
	"🚀 Так держать! Добрые дела начинаются с внимания.",
}

// LevelFor возвращает текущий уровень для суммарного числа просмотров и
// следующий уровень, если он существует.
func LevelFor(total int) (Level, *Level) {
	current := levels[0]
	for i, level := range levels {
		if total < level.Threshold {
			next := levels[i]
			return current, &next
		}
		current = level
	}
	return current, nil
}

// Policy принимает решения об уведомлениях. Единственный недетерминизм —
// выбор мотивационной строки из фиксированного пула.
type Policy struct {
	loc  *time.Location
	pick func(n int) int
}

// NewPolicy создаёт политику с зафиксированным часовым поясом для проверки
// «то же календарное число».
func NewPolicy(loc *time.Location) *Policy {
	return &Policy{loc: loc, pick: rand.Intn}
}

// NewPolicyWithPicker создаёт политику с детерминированным выбором строки пула.
func NewPolicyWithPicker(loc *time.Location, pick func(n int) int) *Policy {
	return &Policy{loc: loc, pick: pick}
}

// Decide строит решение по снимку активности пользователя. Сообщение
// формируется всегда; редактирование выбирается только когда предыдущее
// уведомление отправлено в тот же календарный день и ссылка на него известна.
func (p *Policy) Decide(total, lastNotifiedTotal int, lastNotifiedAt *time.Time, hasMessageRef bool, now time.Time) Decision {
	delta := total - lastNotifiedTotal
	if delta < 0 {
		// Аномалия данных или часов: не показываем отрицательный прогресс.
		delta = 0
	}
	text := p.composeMessage(delta, total)
	if lastNotifiedAt != nil && hasMessageRef && sameDay(*lastNotifiedAt, now, p.loc) {
		return Decision{Kind: DecisionEditExisting, Text: text}
	}
	return Decision{Kind: DecisionSendNew, Text: text}
}

func (p *Policy) composeMessage(delta, total int) string {
	current, next := LevelFor(total)
	lines := []string{
		"📊 Ваша активность в инициативах",
		"",
		fmt.Sprintf("🆕 Новых просмотров: +%d", delta),
		fmt.Sprintf("👀 Всего просмотров: %d", total),
		fmt.Sprintf("🏅 Уровень: «%s»", current.Name),
	}
	if next != nil {
		lines = append(lines, fmt.Sprintf("🎯 До уровня «%s» осталось просмотров: %d", next.Name, next.Threshold-total))
	} else {
		lines = append(lines, "🏆 Вы достигли максимального уровня!")
	}
	lines = append(lines, "", motivationalLines[p.pick(len(motivationalLines))])
	return strings.Join(lines, "\n")
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
