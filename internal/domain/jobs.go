package domain

import (
	"context"
	"time"
)

// EngagementJobCause описывает источник запроса на уведомление.
type EngagementJobCause string

const (
	// EngagementCauseAppClose — пользователь закрыл мини-приложение.
	EngagementCauseAppClose EngagementJobCause = "app_close"
	// EngagementCauseStats — пользователь запросил статистику командой.
	EngagementCauseStats EngagementJobCause = "stats"
)

// EngagementJob содержит информацию о задаче на мотивационное уведомление.
type EngagementJob struct {
	ID          string             `json:"job_id,omitempty"`
	UserTGID    int64              `json:"user_tg_id"`
	RequestedAt time.Time          `json:"requested_at"`
	Cause       EngagementJobCause `json:"cause"`
}

// EngagementQueue описывает очередь задач на уведомления.
type EngagementQueue interface {
	Enqueue(ctx context.Context, job EngagementJob) error
	Receive(ctx context.Context) (EngagementJob, EngagementAckFunc, error)
}

// EngagementAckFunc подтверждает успешную обработку или запрашивает повтор доставки задачи.
type EngagementAckFunc func(success bool) error
