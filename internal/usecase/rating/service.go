package rating

import (
	"fmt"
	"strings"

	"dobro-cards-bot/internal/domain"
)

// Service строит рейтинги пользователей по инициативам и просмотрам.
type Service struct {
	cards domain.CardRepo
	views domain.ViewRepo
}

// NewService создаёт сервис рейтингов.
func NewService(cards domain.CardRepo, views domain.ViewRepo) *Service {
	return &Service{cards: cards, views: views}
}

// TopAuthors возвращает авторов с наибольшим числом одобренных инициатив.
func (s *Service) TopAuthors(limit int) ([]domain.TopAuthor, error) {
	if limit <= 0 {
		limit = 10
	}
	top, err := s.cards.TopAuthors(limit)
	if err != nil {
		return nil, fmt.Errorf("рейтинг авторов: %w", err)
	}
	return top, nil
}

// TopViewers возвращает пользователей с наибольшим суммарным числом просмотров.
func (s *Service) TopViewers(limit int) ([]domain.TopViewer, error) {
	if limit <= 0 {
		limit = 5
	}
	top, err := s.views.TopViewers(limit)
	if err != nil {
		return nil, fmt.Errorf("рейтинг по просмотрам: %w", err)
	}
	return top, nil
}

// FormatTopMessage строит текст сообщения с двумя рейтингами для бота.
func FormatTopMessage(authors []domain.TopAuthor, viewers []domain.TopViewer) string {
	var b strings.Builder
	b.WriteString("🏆 Топ авторов инициатив:\n")
	if len(authors) == 0 {
		b.WriteString("пока никто не создал инициативу\n")
	}
	for i, a := range authors {
		name := a.Name
		if name == "" {
			name = fmt.Sprintf("Пользователь %d", a.UserID)
		}
		b.WriteString(fmt.Sprintf("%d. %s — инициатив: %d, просмотров: %d\n", i+1, name, a.CardsCount, a.TotalViews))
	}
	b.WriteString("\n👀 Топ по просмотрам:\n")
	if len(viewers) == 0 {
		b.WriteString("пока никто не просматривал карточки\n")
	}
	for i, v := range viewers {
		name := v.Name
		if name == "" {
			name = fmt.Sprintf("Пользователь %d", v.UserID)
		}
		b.WriteString(fmt.Sprintf("%d. %s — просмотров: %d\n", i+1, name, v.TotalViews))
	}
	return strings.TrimRight(b.String(), "\n")
}
