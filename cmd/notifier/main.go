package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"dobro-cards-bot/internal/adapters/repo"
	"dobro-cards-bot/internal/adapters/telegram"
	"dobro-cards-bot/internal/domain"
	"dobro-cards-bot/internal/infra/cache"
	"dobro-cards-bot/internal/infra/config"
	"dobro-cards-bot/internal/infra/db"
	"dobro-cards-bot/internal/infra/log"
	"dobro-cards-bot/internal/infra/metrics"
	"dobro-cards-bot/internal/infra/queue"
	"dobro-cards-bot/internal/usecase/engagement"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("notifier: нет подключения к БД")
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("notifier: не удалось создать бота")
	}

	repoAdapter := repo.NewPostgres(pool)
	policy := engagement.NewPolicy(cfg.Location())
	engagementService := engagement.NewService(repoAdapter, repoAdapter, telegram.NewSender(botAPI), policy, cache.NewRedis(redisClient), repoAdapter, logger)

	var jobs domain.EngagementQueue
	if cfg.Queues.Backend == "rabbitmq" {
		rq, err := queue.NewRabbitEngagementQueue(cfg.AMQP.URL, cfg.Queues.Engagement)
		if err != nil {
			logger.Fatal().Err(err).Msg("notifier: не удалось подключиться к очереди")
		}
		defer rq.Close()
		jobs = rq
	} else {
		jobs = queue.NewRedisEngagementQueue(redisClient, cfg.Queues.Engagement)
	}

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")

	logger.Info().Str("backend", cfg.Queues.Backend).Msg("notifier запущен")
	for {
		job, ack, err := jobs.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			logger.Error().Err(err).Msg("notifier: ошибка получения задачи")
			continue
		}

		err = engagementService.Notify(ctx, job.UserTGID)
		if err != nil {
			// Сбой доставки только логируется: задача считается обработанной,
			// просмотры пользователя не теряются и войдут в следующее уведомление.
			logger.Warn().Err(err).
				Str("job", job.ID).
				Int64("user", job.UserTGID).
				Str("cause", string(job.Cause)).
				Msg("notifier: уведомление не доставлено")
		}
		if ackErr := ack(true); ackErr != nil {
			logger.Error().Err(ackErr).Str("job", job.ID).Msg("notifier: не удалось подтвердить задачу")
		}
	}
	logger.Info().Msg("notifier остановлен")
}
