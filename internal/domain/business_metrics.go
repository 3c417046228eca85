package domain

import (
	"context"
	"time"
)

// BusinessMetric описывает бизнесовое событие, которое сохраняется для последующего анализа.
type BusinessMetric struct {
	Event      string
	UserID     *int64
	CardID     *string
	Metadata   map[string]any
	OccurredAt time.Time
}

const (
	// BusinessMetricEventUserRegistered фиксирует регистрацию нового пользователя.
	BusinessMetricEventUserRegistered = "user_registered"
	// BusinessMetricEventCardCreated фиксирует создание карточки инициативы.
	BusinessMetricEventCardCreated = "card_created"
	// BusinessMetricEventCardStatusChanged фиксирует смену статуса карточки.
	BusinessMetricEventCardStatusChanged = "card_status_changed"
	// BusinessMetricEventEngagementSent фиксирует отправку мотивационного уведомления.
	BusinessMetricEventEngagementSent = "engagement_sent"
)

// BusinessMetricRepo сохраняет бизнесовые события.
type BusinessMetricRepo interface {
	RecordBusinessMetric(ctx context.Context, metric BusinessMetric) error
}
