package engagement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"dobro-cards-bot/internal/domain"
	"dobro-cards-bot/internal/infra/metrics"
)

// ErrNotificationFailed возвращается, когда не удалось ни отредактировать,
// ни отправить уведомление. Вызывающая сторона только логирует эту ошибку
// и никогда не поднимает её до исходного запроса.
var ErrNotificationFailed = errors.New("не удалось доставить уведомление")

const inflightTTL = 10 * time.Second

// Service исполняет решения политики: отправляет или редактирует
// мотивационные сообщения и сохраняет состояние вовлечённости.
type Service struct {
	users     domain.UserRepo
	views     domain.ViewRepo
	messenger domain.Messenger
	policy    *Policy
	cache     domain.Cache
	bizEvents domain.BusinessMetricRepo
	log       zerolog.Logger
	now       func() time.Time
}

// NewService создаёт сервис уведомлений. Cache и bizEvents опциональны.
func NewService(users domain.UserRepo, views domain.ViewRepo, messenger domain.Messenger, policy *Policy, cache domain.Cache, bizEvents domain.BusinessMetricRepo, log zerolog.Logger) *Service {
	return &Service{
		users:     users,
		views:     views,
		messenger: messenger,
		policy:    policy,
		cache:     cache,
		bizEvents: bizEvents,
		log:       log,
		now:       time.Now,
	}
}

// Notify строит и доставляет уведомление пользователю.
//
// Решение EditExisting с исходом «сообщение не найдено» переходит в отправку
// нового сообщения в рамках того же вызова; наружу такая развилка не видна.
func (s *Service) Notify(ctx context.Context, tgUserID int64) error {
	if s.cache != nil {
		// Лучшее из возможного: гонка двух триггеров даёт максимум одно
		// лишнее сообщение, строгая сериализация не требуется.
		return s.cache.Once(fmt.Sprintf("engagement:inflight:%d", tgUserID), inflightTTL, func() error {
			return s.notify(ctx, tgUserID)
		})
	}
	return s.notify(ctx, tgUserID)
}

func (s *Service) notify(ctx context.Context, tgUserID int64) error {
	user, err := s.users.GetByTGID(tgUserID)
	if err != nil {
		return fmt.Errorf("получение пользователя: %w", err)
	}
	total, err := s.views.UserTotalViews(user.TGUserID)
	if err != nil {
		return fmt.Errorf("сумма просмотров: %w", err)
	}
	state, err := s.users.EngagementState(user.ID)
	if err != nil {
		return fmt.Errorf("состояние вовлечённости: %w", err)
	}

	now := s.now()
	decision := s.policy.Decide(total, state.LastNotifiedTotal, state.LastNotifiedAt, state.LastMessageRef != nil, now)
	metrics.IncEngagementDecision(string(decision.Kind))

	ref, err := s.deliver(decision, state, tgUserID)
	if err != nil {
		metrics.EngagementFailures.Inc()
		return fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}

	if err := s.users.SaveEngagementState(user.ID, total, ref, now); err != nil {
		return fmt.Errorf("сохранение состояния: %w", err)
	}
	s.recordSent(ctx, user.ID, total, decision.Kind)
	return nil
}

// deliver выполняет двухветочный автомат доставки: редактирование с
// откатом на отправку либо прямая отправка нового сообщения.
func (s *Service) deliver(decision Decision, state domain.EngagementState, tgUserID int64) (domain.MessageRef, error) {
	if decision.Kind == DecisionEditExisting && state.LastMessageRef != nil {
		found, err := s.messenger.Edit(*state.LastMessageRef, decision.Text)
		if err == nil && found {
			return *state.LastMessageRef, nil
		}
		if err != nil {
			s.log.Warn().Err(err).Int64("user", tgUserID).Msg("engagement: редактирование не удалось, отправляем новое сообщение")
		}
		metrics.EngagementEditFallbacks.Inc()
	}
	return s.messenger.Send(tgUserID, decision.Text)
}

// Reset очищает состояние вовлечённости. Вызывается по сигналу перезапуска
// диалога: ссылки на сообщения из прошлого диалога больше не действуют.
func (s *Service) Reset(tgUserID int64) error {
	user, err := s.users.GetByTGID(tgUserID)
	if err != nil {
		return fmt.Errorf("получение пользователя: %w", err)
	}
	if err := s.users.ClearEngagementState(user.ID); err != nil {
		return fmt.Errorf("очистка состояния: %w", err)
	}
	return nil
}

func (s *Service) recordSent(ctx context.Context, userID int64, total int, kind DecisionKind) {
	if s.bizEvents == nil {
		return
	}
	id := userID
	err := s.bizEvents.RecordBusinessMetric(ctx, domain.BusinessMetric{
		Event:  domain.BusinessMetricEventEngagementSent,
		UserID: &id,
		Metadata: map[string]any{
			"total_views": total,
			"decision":    string(kind),
		},
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("engagement: не удалось записать бизнес-метрику")
	}
}
