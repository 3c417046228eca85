package cards

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"dobro-cards-bot/internal/domain"
)

var (
	// ErrInvalidCard возвращается при незаполненных обязательных полях.
	ErrInvalidCard = errors.New("карточка заполнена некорректно")
	// ErrNotAuthor возвращается при попытке изменить чужую карточку.
	ErrNotAuthor = errors.New("карточку может менять только автор")
	// ErrUnknownStatus возвращается для неизвестного статуса модерации.
	ErrUnknownStatus = errors.New("неизвестный статус карточки")
)

// Input описывает данные новой или обновляемой карточки.
type Input struct {
	Category string
	Title    string
	Subtitle string
	Text     string
	Link     string
	Image    string
}

// Service управляет карточками инициатив.
type Service struct {
	repo      domain.CardRepo
	bizEvents domain.BusinessMetricRepo
	textMax   int
	log       zerolog.Logger
}

// NewService создаёт сервис карточек.
func NewService(repo domain.CardRepo, bizEvents domain.BusinessMetricRepo, textMax int, log zerolog.Logger) *Service {
	return &Service{repo: repo, bizEvents: bizEvents, textMax: textMax, log: log}
}

// Create сохраняет карточку в статусе «на модерации».
func (s *Service) Create(ctx context.Context, authorTGID int64, input Input) (domain.Card, error) {
	if err := s.validate(input); err != nil {
		return domain.Card{}, err
	}
	card, err := s.repo.CreateCard(domain.Card{
		Category: strings.TrimSpace(input.Category),
		Title:    strings.TrimSpace(input.Title),
		Subtitle: strings.TrimSpace(input.Subtitle),
		Text:     strings.TrimSpace(input.Text),
		Status:   domain.CardStatusModerate,
		Link:     strings.TrimSpace(input.Link),
		Image:    input.Image,
		AuthorID: authorTGID,
	})
	if err != nil {
		return domain.Card{}, fmt.Errorf("сохранение карточки: %w", err)
	}
	s.recordEvent(ctx, domain.BusinessMetricEventCardCreated, card, nil)
	return card, nil
}

// Get возвращает карточку по идентификатору.
func (s *Service) Get(id string) (domain.Card, error) {
	if id == "" {
		return domain.Card{}, domain.ErrCardNotFound
	}
	card, err := s.repo.GetCard(id)
	if err != nil {
		return domain.Card{}, err
	}
	return card, nil
}

// ListAccepted возвращает одобренные карточки, новые первыми.
func (s *Service) ListAccepted(category string, limit, offset int) ([]domain.Card, error) {
	return s.repo.ListCards(domain.CardFilter{
		Status:   domain.CardStatusAccepted,
		Category: strings.TrimSpace(category),
		Limit:    limit,
		Offset:   offset,
	})
}

// ListPending возвращает карточки, ожидающие модерации, новые первыми.
func (s *Service) ListPending(limit, offset int) ([]domain.Card, error) {
	return s.repo.ListCards(domain.CardFilter{
		Status: domain.CardStatusModerate,
		Limit:  limit,
		Offset: offset,
	})
}

// ListByAuthor возвращает карточки автора во всех статусах.
func (s *Service) ListByAuthor(authorTGID int64) ([]domain.Card, error) {
	return s.repo.ListUserCards(authorTGID)
}

// Update обновляет содержимое карточки. Изменение доступно только автору и
// возвращает карточку на модерацию.
func (s *Service) Update(ctx context.Context, authorTGID int64, id string, input Input) (domain.Card, error) {
	if err := s.validate(input); err != nil {
		return domain.Card{}, err
	}
	existing, err := s.repo.GetCard(id)
	if err != nil {
		return domain.Card{}, err
	}
	if existing.AuthorID != authorTGID {
		return domain.Card{}, ErrNotAuthor
	}
	existing.Category = strings.TrimSpace(input.Category)
	existing.Title = strings.TrimSpace(input.Title)
	existing.Subtitle = strings.TrimSpace(input.Subtitle)
	existing.Text = strings.TrimSpace(input.Text)
	existing.Link = strings.TrimSpace(input.Link)
	existing.Image = input.Image
	existing.Status = domain.CardStatusModerate
	updated, err := s.repo.UpdateCard(existing)
	if err != nil {
		return domain.Card{}, fmt.Errorf("обновление карточки: %w", err)
	}
	return updated, nil
}

// SetStatus переводит карточку в новый статус модерации.
func (s *Service) SetStatus(ctx context.Context, id string, status domain.CardStatus) (domain.Card, error) {
	if !domain.KnownCardStatus(status) {
		return domain.Card{}, ErrUnknownStatus
	}
	card, err := s.repo.GetCard(id)
	if err != nil {
		return domain.Card{}, err
	}
	previous := card.Status
	card.Status = status
	updated, err := s.repo.UpdateCard(card)
	if err != nil {
		return domain.Card{}, fmt.Errorf("смена статуса: %w", err)
	}
	s.recordEvent(ctx, domain.BusinessMetricEventCardStatusChanged, updated, map[string]any{
		"from": string(previous),
		"to":   string(status),
	})
	return updated, nil
}

// Delete удаляет карточку автора.
func (s *Service) Delete(authorTGID int64, id string) error {
	return s.repo.DeleteCard(id, authorTGID)
}

func (s *Service) validate(input Input) error {
	if strings.TrimSpace(input.Title) == "" || strings.TrimSpace(input.Category) == "" {
		return ErrInvalidCard
	}
	if strings.TrimSpace(input.Text) == "" {
		return ErrInvalidCard
	}
	if s.textMax > 0 && utf8.RuneCountInString(input.Text) > s.textMax {
		return ErrInvalidCard
	}
	return nil
}

func (s *Service) recordEvent(ctx context.Context, event string, card domain.Card, extra map[string]any) {
	if s.bizEvents == nil {
		return
	}
	authorID := card.AuthorID
	cardID := card.ID
	meta := map[string]any{"category": card.Category}
	for k, v := range extra {
		meta[k] = v
	}
	err := s.bizEvents.RecordBusinessMetric(ctx, domain.BusinessMetric{
		Event:    event,
		UserID:   &authorID,
		CardID:   &cardID,
		Metadata: meta,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("card", card.ID).Msg("cards: не удалось записать бизнес-метрику")
	}
}
