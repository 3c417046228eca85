package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"dobro-cards-bot/internal/adapters/bot"
	"dobro-cards-bot/internal/adapters/repo"
	"dobro-cards-bot/internal/adapters/telegram"
	"dobro-cards-bot/internal/domain"
	"dobro-cards-bot/internal/infra/cache"
	"dobro-cards-bot/internal/infra/config"
	"dobro-cards-bot/internal/infra/db"
	"dobro-cards-bot/internal/infra/log"
	"dobro-cards-bot/internal/infra/metrics"
	"dobro-cards-bot/internal/usecase/cards"
	"dobro-cards-bot/internal/usecase/engagement"
	"dobro-cards-bot/internal/usecase/rating"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	repoAdapter := repo.NewPostgres(pool)

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}

	policy := engagement.NewPolicy(cfg.Location())
	engagementService := engagement.NewService(repoAdapter, repoAdapter, telegram.NewSender(botAPI), policy, cache.NewRedis(redisClient), repoAdapter, logger)
	ratingService := rating.NewService(repoAdapter, repoAdapter)
	cardsService := cards.NewService(repoAdapter, repoAdapter, cfg.Limits.CardTextMax, logger.With().Str("component", "cards").Logger())

	h := bot.NewHandler(botAPI, logger, repoAdapter, engagementService, ratingService, cardsService, cfg.WebAppURL, cfg.Admins, cfg.Limits.TopAuthors, cfg.Limits.TopViewers)

	r := chi.NewRouter()
	r.Post("/bot/webhook", func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.HandleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: ":8080", Handler: r}
	go func() {
		logger.Info().Msg("бот-гейтвей запущен")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Info().Msg("остановка бота")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

var _ domain.UserRepo = (*repo.Postgres)(nil)
var _ domain.CardRepo = (*repo.Postgres)(nil)
var _ domain.ViewRepo = (*repo.Postgres)(nil)
var _ domain.BusinessMetricRepo = (*repo.Postgres)(nil)
