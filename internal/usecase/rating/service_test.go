package rating

import (
	"strings"
	"testing"

	"dobro-cards-bot/internal/domain"
)

type stubCardRepo struct {
	authors   []domain.TopAuthor
	lastLimit int
}

func (s *stubCardRepo) CreateCard(card domain.Card) (domain.Card, error)   { return card, nil }
func (s *stubCardRepo) GetCard(string) (domain.Card, error)                { return domain.Card{}, nil }
func (s *stubCardRepo) ListCards(domain.CardFilter) ([]domain.Card, error) { return nil, nil }
func (s *stubCardRepo) ListUserCards(int64) ([]domain.Card, error)         { return nil, nil }
func (s *stubCardRepo) UpdateCard(card domain.Card) (domain.Card, error)   { return card, nil }
func (s *stubCardRepo) DeleteCard(string, int64) error                     { return nil }
func (s *stubCardRepo) TopAuthors(limit int) ([]domain.TopAuthor, error) {
	s.lastLimit = limit
	return s.authors, nil
}

type stubViewRepo struct {
	viewers   []domain.TopViewer
	lastLimit int
}

func (s *stubViewRepo) TrackView(int64, string) (int, error)     { return 0, nil }
func (s *stubViewRepo) CardViewCount(int64, string) (int, error) { return 0, nil }
func (s *stubViewRepo) UserTotalViews(int64) (int, error)        { return 0, nil }
func (s *stubViewRepo) ViewedCardIDs(int64) ([]string, error)    { return nil, nil }
func (s *stubViewRepo) TopViewers(limit int) ([]domain.TopViewer, error) {
	s.lastLimit = limit
	return s.viewers, nil
}

func TestTopLimitsFallBackToDefaults(t *testing.T) {
	cards := &stubCardRepo{}
	views := &stubViewRepo{}
	svc := NewService(cards, views)

	if _, err := svc.TopAuthors(0); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if cards.lastLimit != 10 {
		t.Fatalf("ожидали лимит авторов по умолчанию 10, получили %d", cards.lastLimit)
	}
	if _, err := svc.TopViewers(-1); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if views.lastLimit != 5 {
		t.Fatalf("ожидали лимит зрителей по умолчанию 5, получили %d", views.lastLimit)
	}
}

func TestFormatTopMessage(t *testing.T) {
	authors := []domain.TopAuthor{
		{UserID: 1, Name: "Аня", CardsCount: 3, TotalViews: 40},
		{UserID: 2, CardsCount: 1, TotalViews: 5},
	}
	viewers := []domain.TopViewer{{UserID: 7, Name: "Борис", TotalViews: 12}}

	msg := FormatTopMessage(authors, viewers)
	for _, want := range []string{
		"🏆 Топ авторов инициатив:",
		"1. Аня — инициатив: 3, просмотров: 40",
		"2. Пользователь 2 — инициатив: 1, просмотров: 5",
		"👀 Топ по просмотрам:",
		"1. Борис — просмотров: 12",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("в сообщении нет строки %q:\n%s", want, msg)
		}
	}
}

func TestFormatTopMessageEmpty(t *testing.T) {
	msg := FormatTopMessage(nil, nil)
	if !strings.Contains(msg, "пока никто не создал инициативу") {
		t.Fatalf("пустой рейтинг авторов должен иметь заглушку: %s", msg)
	}
	if !strings.Contains(msg, "пока никто не просматривал карточки") {
		t.Fatalf("пустой рейтинг просмотров должен иметь заглушку: %s", msg)
	}
}
