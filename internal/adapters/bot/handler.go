package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"dobro-cards-bot/internal/adapters/telegram"
	"dobro-cards-bot/internal/domain"
	"dobro-cards-bot/internal/infra/metrics"
	"dobro-cards-bot/internal/usecase/cards"
	"dobro-cards-bot/internal/usecase/engagement"
	"dobro-cards-bot/internal/usecase/rating"
)

const vkDobroURL = "https://dobro.mail.ru/"

// Handler обслуживает вебхук бота.
type Handler struct {
	bot          *tgbotapi.BotAPI
	log          zerolog.Logger
	users        domain.UserRepo
	engagementUC *engagement.Service
	ratingUC     *rating.Service
	cardsUC      *cards.Service
	webAppURL    string
	admins       []int64
	topAuthors   int
	topViewers   int
}

// NewHandler создаёт обработчик.
func NewHandler(bot *tgbotapi.BotAPI, log zerolog.Logger, users domain.UserRepo, engagementUC *engagement.Service, ratingUC *rating.Service, cardsUC *cards.Service, webAppURL string, admins []int64, topAuthors, topViewers int) *Handler {
	return &Handler{
		bot:          bot,
		log:          log,
		users:        users,
		engagementUC: engagementUC,
		ratingUC:     ratingUC,
		cardsUC:      cardsUC,
		webAppURL:    webAppURL,
		admins:       admins,
		topAuthors:   topAuthors,
		topViewers:   topViewers,
	}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		h.handleMessage(ctx, upd.Message)
	} else if upd.CallbackQuery != nil {
		h.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	switch {
	case strings.HasPrefix(text, "/start"):
		h.handleStart(msg)
	case strings.HasPrefix(text, "/stats"):
		h.handleStats(ctx, msg.Chat.ID, fromID(msg))
	case strings.HasPrefix(text, "/top"):
		h.handleTop(msg.Chat.ID)
	case strings.HasPrefix(text, "/moderate"):
		h.handleModerate(msg.Chat.ID, fromID(msg))
	case strings.HasPrefix(text, "/help"):
		h.reply(msg.Chat.ID, h.buildHelpMessage(), h.mainKeyboard())
	default:
		h.reply(msg.Chat.ID, "Неизвестная команда. Используйте /help", nil)
	}
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	start := time.Now()
	_, err := h.bot.Request(tgbotapi.NewCallback(cb.ID, ""))
	metrics.ObserveNetworkRequest("telegram_bot", "answer_callback", metrics.FormatUserID(cb.From.ID), start, err)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось ответить на callback")
	}
	switch cb.Data {
	case "stats":
		h.handleStats(ctx, cb.Message.Chat.ID, cb.From.ID)
	case "top":
		h.handleTop(cb.Message.Chat.ID)
	case "help":
		h.reply(cb.Message.Chat.ID, h.buildHelpMessage(), h.mainKeyboard())
	default:
		if status, cardID, ok := parseModerationAction(cb.Data); ok {
			h.handleModerationAction(ctx, cb.Message.Chat.ID, cb.From.ID, cardID, status)
		}
	}
}

// handleModerate показывает модератору карточки, ожидающие решения.
func (h *Handler) handleModerate(chatID, tgUserID int64) {
	if !isAdmin(h.admins, tgUserID) {
		h.reply(chatID, "Команда доступна только модераторам", nil)
		return
	}
	pending, err := h.cardsUC.ListPending(moderationPageSize, 0)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось получить карточки на модерации")
		h.reply(chatID, "Не удалось получить карточки. Попробуйте позже", nil)
		return
	}
	if len(pending) == 0 {
		h.reply(chatID, "Карточек на модерации нет", nil)
		return
	}
	for _, card := range pending {
		h.reply(chatID, formatPendingCard(card), moderationKeyboard(card.ID))
	}
}

func (h *Handler) handleModerationAction(ctx context.Context, chatID, tgUserID int64, cardID string, status domain.CardStatus) {
	if !isAdmin(h.admins, tgUserID) {
		h.reply(chatID, "Действие доступно только модераторам", nil)
		return
	}
	card, err := h.cardsUC.SetStatus(ctx, cardID, status)
	if err != nil {
		if errors.Is(err, domain.ErrCardNotFound) {
			h.reply(chatID, "Карточка уже удалена", nil)
			return
		}
		h.log.Error().Err(err).Str("card", cardID).Msg("не удалось сменить статус карточки")
		h.reply(chatID, "Не удалось сменить статус. Попробуйте позже", nil)
		return
	}
	verdict := "принята"
	if status == domain.CardStatusRejected {
		verdict = "отклонена"
	}
	h.reply(chatID, fmt.Sprintf("Карточка «%s» %s", card.Title, verdict), nil)
}

// handleStart регистрирует пользователя и приветствует его. Перезапуск
// диалога делает прежние ссылки на сообщения невалидными, поэтому состояние
// вовлечённости очищается.
func (h *Handler) handleStart(msg *tgbotapi.Message) {
	if msg.From == nil {
		h.reply(msg.Chat.ID, "Не удалось определить пользователя", nil)
		return
	}
	name := strings.TrimSpace(strings.Join([]string{msg.From.FirstName, msg.From.LastName}, " "))
	user, _, err := h.users.UpsertByTGID(msg.From.ID, name, msg.From.LanguageCode)
	if err != nil {
		h.reply(msg.Chat.ID, fmt.Sprintf("Ошибка сохранения профиля: %v", err), nil)
		return
	}
	if err := h.engagementUC.Reset(msg.From.ID); err != nil {
		h.log.Error().Err(err).Int64("user", msg.From.ID).Msg("не удалось сбросить состояние вовлечённости")
	}
	h.reply(msg.Chat.ID, h.buildStartMessage(user.Name), h.mainKeyboard())
}

// handleStats отправляет статистику просмотров как мотивационное уведомление.
func (h *Handler) handleStats(ctx context.Context, chatID, tgUserID int64) {
	if err := h.engagementUC.Notify(ctx, tgUserID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			h.reply(chatID, "Сначала отправьте /start", nil)
			return
		}
		h.log.Error().Err(err).Int64("user", tgUserID).Msg("не удалось отправить статистику")
		h.reply(chatID, "Не удалось получить статистику. Попробуйте позже", nil)
	}
}

func (h *Handler) handleTop(chatID int64) {
	authors, err := h.ratingUC.TopAuthors(h.topAuthors)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось получить рейтинг авторов")
		h.reply(chatID, "Не удалось получить рейтинг. Попробуйте позже", nil)
		return
	}
	viewers, err := h.ratingUC.TopViewers(h.topViewers)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось получить рейтинг по просмотрам")
		h.reply(chatID, "Не удалось получить рейтинг. Попробуйте позже", nil)
		return
	}
	h.reply(chatID, rating.FormatTopMessage(authors, viewers), nil)
}

const moderationPageSize = 10

const (
	approveCallbackPrefix = "approve:"
	rejectCallbackPrefix  = "reject:"
)

func isAdmin(admins []int64, tgUserID int64) bool {
	for _, id := range admins {
		if id == tgUserID {
			return true
		}
	}
	return false
}

// parseModerationAction разбирает callback-данные кнопок модерации.
func parseModerationAction(data string) (domain.CardStatus, string, bool) {
	if cardID, ok := strings.CutPrefix(data, approveCallbackPrefix); ok && cardID != "" {
		return domain.CardStatusAccepted, cardID, true
	}
	if cardID, ok := strings.CutPrefix(data, rejectCallbackPrefix); ok && cardID != "" {
		return domain.CardStatusRejected, cardID, true
	}
	return "", "", false
}

func formatPendingCard(card domain.Card) string {
	lines := []string{
		fmt.Sprintf("📋 %s", card.Title),
		fmt.Sprintf("Категория: %s", card.Category),
	}
	if card.Subtitle != "" {
		lines = append(lines, card.Subtitle)
	}
	lines = append(lines, "", card.Text, "", fmt.Sprintf("Автор: %d", card.AuthorID))
	return strings.Join(lines, "\n")
}

func moderationKeyboard(cardID string) *tgbotapi.InlineKeyboardMarkup {
	markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Принять", approveCallbackPrefix+cardID),
		tgbotapi.NewInlineKeyboardButtonData("❌ Отклонить", rejectCallbackPrefix+cardID),
	))
	return &markup
}

func fromID(msg *tgbotapi.Message) int64 {
	if msg.From == nil {
		return 0
	}
	return msg.From.ID
}

func (h *Handler) reply(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	parts := telegram.SplitMessage(text)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		if i == 0 && keyboard != nil {
			msg.ReplyMarkup = keyboard
		}
		start := time.Now()
		_, err := h.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", metrics.FormatUserID(chatID), start, err)
		if err != nil {
			metrics.BotSendErrors.Inc()
			h.log.Error().Err(err).Msg("не удалось отправить сообщение")
			return
		}
	}
}

func (h *Handler) mainKeyboard() *tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{}
	if h.webAppURL != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("🌱 Открыть мини-приложение", h.webAppURL),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonURL("💙 Перейти на VK Добро", vkDobroURL),
	))
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📊 Статистика", "stats"),
		tgbotapi.NewInlineKeyboardButtonData("🏆 Рейтинг", "top"),
	))
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

func (h *Handler) buildStartMessage(name string) string {
	greeting := "Привет!"
	if name != "" {
		greeting = fmt.Sprintf("Привет, %s!", name)
	}
	lines := []string{
		fmt.Sprintf("Это бот помощи приграничным территориям. %s", greeting),
		"",
		"Здесь собраны инициативы поддержки, а ещё больше возможностей помогать найдёшь на ВК Добро.",
		"",
		"Открывайте карточки инициатив в мини-приложении — за активность бот присваивает уровни и показывает ваш прогресс.",
	}
	return strings.Join(lines, "\n")
}

func (h *Handler) buildHelpMessage() string {
	sections := []string{
		"📖 Команды бота:",
		"",
		"• /start — перезапустить диалог и открыть меню.",
		"• /stats — ваша статистика просмотров и текущий уровень.",
		"• /top — рейтинг авторов инициатив и самых активных читателей.",
		"",
		"Карточки инициатив создаются и просматриваются в мини-приложении.",
	}
	return strings.Join(sections, "\n")
}
