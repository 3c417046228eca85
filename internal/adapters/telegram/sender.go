package telegram

import (
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"dobro-cards-bot/internal/domain"
	"dobro-cards-bot/internal/infra/metrics"
)

// Sender реализует domain.Messenger поверх Bot API.
type Sender struct {
	bot *tgbotapi.BotAPI
}

var _ domain.Messenger = (*Sender)(nil)

// NewSender создаёт мессенджер.
func NewSender(bot *tgbotapi.BotAPI) *Sender {
	return &Sender{bot: bot}
}

// Send отправляет сообщение пользователю и возвращает ссылку на него.
func (s *Sender) Send(chatID int64, text string) (domain.MessageRef, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	start := time.Now()
	sent, err := s.bot.Send(msg)
	metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
	if err != nil {
		metrics.BotSendErrors.Inc()
		return domain.MessageRef{}, err
	}
	return domain.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// Edit обновляет текст ранее отправленного сообщения. Исчезнувшее сообщение —
// ожидаемый исход (found=false), а не ошибка.
func (s *Sender) Edit(ref domain.MessageRef, text string) (bool, error) {
	edit := tgbotapi.NewEditMessageText(ref.ChatID, ref.MessageID, text)
	start := time.Now()
	_, err := s.bot.Send(edit)
	metrics.ObserveNetworkRequest("telegram_bot", "edit_message", strconv.FormatInt(ref.ChatID, 10), start, err)
	if err == nil {
		return true, nil
	}
	if isMessageGone(err) {
		return false, nil
	}
	return false, err
}

// isMessageGone распознаёт ответы Bot API о недоступном для правки сообщении.
func isMessageGone(err error) bool {
	text := strings.ToLower(err.Error())
	return strings.Contains(text, "message to edit not found") ||
		strings.Contains(text, "message can't be edited")
}
