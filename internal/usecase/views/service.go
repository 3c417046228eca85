package views

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dobro-cards-bot/internal/domain"
	"dobro-cards-bot/internal/infra/metrics"
)

// ErrBadUserID возвращается для неположительного идентификатора пользователя.
var ErrBadUserID = errors.New("некорректный идентификатор пользователя")

// ErrBadCardID возвращается для пустого идентификатора карточки.
var ErrBadCardID = errors.New("некорректный идентификатор карточки")

// Service отслеживает просмотры карточек и отдаёт агрегаты по пользователю.
type Service struct {
	views     domain.ViewRepo
	cache     domain.Cache
	viewedTTL time.Duration
}

// NewService создаёт трекер просмотров. Cache опционален: без него выборка
// просмотренных карточек всегда идёт в хранилище.
func NewService(views domain.ViewRepo, cache domain.Cache, viewedTTL time.Duration) *Service {
	return &Service{views: views, cache: cache, viewedTTL: viewedTTL}
}

// RecordView фиксирует просмотр карточки пользователем и возвращает
// количество просмотров этой карточки после инкремента. Инкремент атомарен
// на уровне хранилища: параллельные вызовы не теряются.
func (s *Service) RecordView(tgUserID int64, cardID string) (int, error) {
	if tgUserID <= 0 {
		return 0, ErrBadUserID
	}
	if cardID == "" {
		return 0, ErrBadCardID
	}
	count, err := s.views.TrackView(tgUserID, cardID)
	if err != nil {
		return 0, fmt.Errorf("фиксация просмотра: %w", err)
	}
	metrics.ViewsTracked.Inc()
	if s.cache != nil {
		_ = s.cache.Del(viewedKey(tgUserID))
	}
	return count, nil
}

// TotalViews возвращает суммарное количество просмотров пользователя по всем
// карточкам. Отсутствие записей — это 0, а не ошибка.
func (s *Service) TotalViews(tgUserID int64) (int, error) {
	if tgUserID <= 0 {
		return 0, ErrBadUserID
	}
	total, err := s.views.UserTotalViews(tgUserID)
	if err != nil {
		return 0, fmt.Errorf("сумма просмотров: %w", err)
	}
	return total, nil
}

// ViewedCardIDs возвращает идентификаторы карточек, которые пользователь
// открывал хотя бы один раз. Повторные просмотры записей не добавляют.
func (s *Service) ViewedCardIDs(tgUserID int64) ([]string, error) {
	if tgUserID <= 0 {
		return nil, ErrBadUserID
	}
	if s.cache != nil {
		if raw, err := s.cache.Get(viewedKey(tgUserID)); err == nil {
			var ids []string
			if err := json.Unmarshal(raw, &ids); err == nil {
				return ids, nil
			}
		}
	}
	ids, err := s.views.ViewedCardIDs(tgUserID)
	if err != nil {
		return nil, fmt.Errorf("просмотренные карточки: %w", err)
	}
	if s.cache != nil {
		if raw, err := json.Marshal(ids); err == nil {
			_ = s.cache.Set(viewedKey(tgUserID), raw, s.viewedTTL)
		}
	}
	return ids, nil
}

// CardViewCount возвращает количество просмотров конкретной карточки
// пользователем, 0 если карточка не открывалась.
func (s *Service) CardViewCount(tgUserID int64, cardID string) (int, error) {
	if tgUserID <= 0 {
		return 0, ErrBadUserID
	}
	if cardID == "" {
		return 0, ErrBadCardID
	}
	count, err := s.views.CardViewCount(tgUserID, cardID)
	if err != nil {
		return 0, fmt.Errorf("просмотры карточки: %w", err)
	}
	return count, nil
}

func viewedKey(tgUserID int64) string {
	return fmt.Sprintf("views:viewed:%d", tgUserID)
}
