package bot

import (
	"strings"
	"testing"

	"dobro-cards-bot/internal/domain"
)

func TestBuildStartMessage(t *testing.T) {
	h := &Handler{}
	msg := h.buildStartMessage("Аня")
	if !strings.Contains(msg, "Привет, Аня!") {
		t.Fatalf("ожидали приветствие по имени: %s", msg)
	}
	if !strings.Contains(msg, "бот помощи приграничным территориям") {
		t.Fatalf("в приветствии нет описания бота: %s", msg)
	}
}

func TestBuildStartMessageWithoutName(t *testing.T) {
	h := &Handler{}
	msg := h.buildStartMessage("")
	if !strings.Contains(msg, "Привет!") {
		t.Fatalf("без имени ожидали нейтральное приветствие: %s", msg)
	}
	if strings.Contains(msg, "Привет, !") {
		t.Fatalf("пустое имя не должно попадать в приветствие: %s", msg)
	}
}

func TestIsAdmin(t *testing.T) {
	admins := []int64{10, 20}
	if !isAdmin(admins, 20) {
		t.Fatalf("модератор из списка должен распознаваться")
	}
	if isAdmin(admins, 30) {
		t.Fatalf("посторонний пользователь не модератор")
	}
	if isAdmin(nil, 10) {
		t.Fatalf("пустой список означает отсутствие модераторов")
	}
}

func TestParseModerationAction(t *testing.T) {
	status, cardID, ok := parseModerationAction("approve:card-1")
	if !ok || status != domain.CardStatusAccepted || cardID != "card-1" {
		t.Fatalf("ожидали принятие card-1, получили %q %q %v", status, cardID, ok)
	}
	status, cardID, ok = parseModerationAction("reject:card-2")
	if !ok || status != domain.CardStatusRejected || cardID != "card-2" {
		t.Fatalf("ожидали отклонение card-2, получили %q %q %v", status, cardID, ok)
	}
	for _, data := range []string{"stats", "approve:", ""} {
		if _, _, ok := parseModerationAction(data); ok {
			t.Fatalf("%q не является действием модерации", data)
		}
	}
}

func TestFormatPendingCard(t *testing.T) {
	msg := formatPendingCard(domain.Card{
		Title:    "Сбор вещей",
		Category: "помощь",
		Text:     "Собираем тёплые вещи.",
		AuthorID: 42,
	})
	for _, want := range []string{"📋 Сбор вещей", "Категория: помощь", "Собираем тёплые вещи.", "Автор: 42"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("в карточке модерации нет строки %q:\n%s", want, msg)
		}
	}
}

func TestModerationKeyboard(t *testing.T) {
	markup := moderationKeyboard("card-1")
	if len(markup.InlineKeyboard) != 1 || len(markup.InlineKeyboard[0]) != 2 {
		t.Fatalf("ожидали один ряд из двух кнопок")
	}
	if *markup.InlineKeyboard[0][0].CallbackData != "approve:card-1" {
		t.Fatalf("кнопка принятия несёт неверные данные: %s", *markup.InlineKeyboard[0][0].CallbackData)
	}
	if *markup.InlineKeyboard[0][1].CallbackData != "reject:card-1" {
		t.Fatalf("кнопка отклонения несёт неверные данные: %s", *markup.InlineKeyboard[0][1].CallbackData)
	}
}

func TestMainKeyboard(t *testing.T) {
	h := &Handler{webAppURL: "https://t.me/app"}
	markup := h.mainKeyboard()
	if len(markup.InlineKeyboard) != 3 {
		t.Fatalf("ожидали 3 ряда кнопок, получили %d", len(markup.InlineKeyboard))
	}

	h = &Handler{}
	markup = h.mainKeyboard()
	if len(markup.InlineKeyboard) != 2 {
		t.Fatalf("без мини-приложения ожидали 2 ряда, получили %d", len(markup.InlineKeyboard))
	}
}
