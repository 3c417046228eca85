package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"dobro-cards-bot/internal/adapters/repo"
	"dobro-cards-bot/internal/domain"
	"dobro-cards-bot/internal/infra/cache"
	"dobro-cards-bot/internal/infra/config"
	"dobro-cards-bot/internal/infra/db"
	httpinfra "dobro-cards-bot/internal/infra/http"
	applog "dobro-cards-bot/internal/infra/log"
	"dobro-cards-bot/internal/infra/metrics"
	"dobro-cards-bot/internal/infra/queue"
	"dobro-cards-bot/internal/usecase/cards"
	"dobro-cards-bot/internal/usecase/rating"
	"dobro-cards-bot/internal/usecase/views"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	redisCache := cache.NewRedis(redisClient)

	repoAdapter := repo.NewPostgres(pool)
	viewsUC := views.NewService(repoAdapter, redisCache, cfg.Cache.ViewedTTL)
	cardsUC := cards.NewService(repoAdapter, repoAdapter, cfg.Limits.CardTextMax, logger.With().Str("component", "cards").Logger())
	ratingUC := rating.NewService(repoAdapter, repoAdapter)

	jobs, closeQueue, err := buildQueue(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось создать очередь уведомлений")
	}
	defer closeQueue()

	srv := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	registerRoutes(srv.Router, logger, cfg, viewsUC, cardsUC, ratingUC, jobs)

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")

	go func() {
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("api: сервер остановлен")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func buildQueue(cfg config.AppConfig, redisClient *redis.Client) (domain.EngagementQueue, func(), error) {
	if cfg.Queues.Backend == "rabbitmq" {
		q, err := queue.NewRabbitEngagementQueue(cfg.AMQP.URL, cfg.Queues.Engagement)
		if err != nil {
			return nil, nil, err
		}
		return q, func() { _ = q.Close() }, nil
	}
	return queue.NewRedisEngagementQueue(redisClient, cfg.Queues.Engagement), func() {}, nil
}

func registerRoutes(r chi.Router, logger zerolog.Logger, cfg config.AppConfig, viewsUC *views.Service, cardsUC *cards.Service, ratingUC *rating.Service, jobs domain.EngagementQueue) {
	r.Route("/api/v1", func(api chi.Router) {
		api.Group(func(protected chi.Router) {
			if cfg.Telegram.Token != "" {
				protected.Use(httpinfra.WebAppAuthMiddleware(cfg.Telegram.Token))
			}

			protected.Get("/cards", func(w http.ResponseWriter, r *http.Request) {
				limit := intQuery(r, "limit", cfg.Limits.CardsPage)
				offset := intQuery(r, "offset", 0)
				list, err := cardsUC.ListAccepted(r.URL.Query().Get("category"), limit, offset)
				if err != nil {
					logger.Error().Err(err).Msg("api: список карточек")
					httpinfra.WriteError(w, http.StatusInternalServerError, "не удалось получить карточки")
					return
				}
				httpinfra.WriteJSON(w, map[string]any{"ok": true, "data": toCardDTOs(list)})
			})

			protected.Post("/cards", func(w http.ResponseWriter, r *http.Request) {
				defer r.Body.Close()
				var req cardRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					httpinfra.WriteError(w, http.StatusBadRequest, "некорректное тело запроса")
					return
				}
				if req.UserID <= 0 {
					httpinfra.WriteError(w, http.StatusBadRequest, "user_id обязателен")
					return
				}
				card, err := cardsUC.Create(r.Context(), req.UserID, req.input())
				if err != nil {
					if errors.Is(err, cards.ErrInvalidCard) {
						httpinfra.WriteError(w, http.StatusBadRequest, err.Error())
						return
					}
					logger.Error().Err(err).Msg("api: создание карточки")
					httpinfra.WriteError(w, http.StatusInternalServerError, "не удалось создать карточку")
					return
				}
				httpinfra.WriteJSON(w, map[string]any{"ok": true, "data": toCardDTO(card)})
			})

			protected.Get("/cards/my", func(w http.ResponseWriter, r *http.Request) {
				userID, ok := userIDQuery(w, r)
				if !ok {
					return
				}
				list, err := cardsUC.ListByAuthor(userID)
				if err != nil {
					logger.Error().Err(err).Msg("api: карточки автора")
					httpinfra.WriteError(w, http.StatusInternalServerError, "не удалось получить карточки")
					return
				}
				httpinfra.WriteJSON(w, map[string]any{"ok": true, "data": toCardDTOs(list)})
			})

			protected.Get("/cards/viewed", func(w http.ResponseWriter, r *http.Request) {
				userID, ok := userIDQuery(w, r)
				if !ok {
					return
				}
				ids, err := viewsUC.ViewedCardIDs(userID)
				if err != nil {
					logger.Error().Err(err).Int64("user", userID).Msg("api: просмотренные карточки")
					httpinfra.WriteError(w, http.StatusInternalServerError, "не удалось получить просмотры")
					return
				}
				if ids == nil {
					ids = []string{}
				}
				httpinfra.WriteJSON(w, map[string]any{"ok": true, "data": ids})
			})

			protected.Get("/cards/{id}", func(w http.ResponseWriter, r *http.Request) {
				card, err := cardsUC.Get(chi.URLParam(r, "id"))
				if err != nil {
					if errors.Is(err, domain.ErrCardNotFound) {
						httpinfra.WriteError(w, http.StatusNotFound, "карточка не найдена")
						return
					}
					logger.Error().Err(err).Msg("api: получение карточки")
					httpinfra.WriteError(w, http.StatusInternalServerError, "не удалось получить карточку")
					return
				}
				httpinfra.WriteJSON(w, map[string]any{"ok": true, "data": toCardDTO(card)})
			})

			protected.Put("/cards/{id}", func(w http.ResponseWriter, r *http.Request) {
				defer r.Body.Close()
				var req cardRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					httpinfra.WriteError(w, http.StatusBadRequest, "некорректное тело запроса")
					return
				}
				card, err := cardsUC.Update(r.Context(), req.UserID, chi.URLParam(r, "id"), req.input())
				if err != nil {
					writeCardError(w, logger, err)
					return
				}
				httpinfra.WriteJSON(w, map[string]any{"ok": true, "data": toCardDTO(card)})
			})

			protected.Patch("/cards/{id}/status", func(w http.ResponseWriter, r *http.Request) {
				defer r.Body.Close()
				var req statusRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					httpinfra.WriteError(w, http.StatusBadRequest, "некорректное тело запроса")
					return
				}
				if !isAdmin(cfg.Admins, req.UserID) {
					httpinfra.WriteError(w, http.StatusForbidden, "смена статуса доступна только модераторам")
					return
				}
				card, err := cardsUC.SetStatus(r.Context(), chi.URLParam(r, "id"), domain.CardStatus(req.Status))
				if err != nil {
					if errors.Is(err, cards.ErrUnknownStatus) {
						httpinfra.WriteError(w, http.StatusBadRequest, err.Error())
						return
					}
					writeCardError(w, logger, err)
					return
				}
				httpinfra.WriteJSON(w, map[string]any{"ok": true, "data": toCardDTO(card)})
			})

			protected.Get("/cards/{id}/views", func(w http.ResponseWriter, r *http.Request) {
				userID, ok := userIDQuery(w, r)
				if !ok {
					return
				}
				count, err := viewsUC.CardViewCount(userID, chi.URLParam(r, "id"))
				if err != nil {
					logger.Error().Err(err).Int64("user", userID).Msg("api: просмотры карточки")
					httpinfra.WriteError(w, http.StatusInternalServerError, "не удалось получить просмотры")
					return
				}
				httpinfra.WriteJSON(w, map[string]any{"ok": true, "view_count": count})
			})

			protected.Delete("/cards/{id}", func(w http.ResponseWriter, r *http.Request) {
				userID, ok := userIDQuery(w, r)
				if !ok {
					return
				}
				if err := cardsUC.Delete(userID, chi.URLParam(r, "id")); err != nil {
					writeCardError(w, logger, err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})

			protected.Get("/rating/authors", func(w http.ResponseWriter, r *http.Request) {
				top, err := ratingUC.TopAuthors(intQuery(r, "limit", cfg.Limits.TopAuthors))
				if err != nil {
					logger.Error().Err(err).Msg("api: рейтинг авторов")
					httpinfra.WriteError(w, http.StatusInternalServerError, "не удалось получить рейтинг")
					return
				}
				httpinfra.WriteJSON(w, map[string]any{"ok": true, "data": top})
			})

			protected.Get("/rating/viewers", func(w http.ResponseWriter, r *http.Request) {
				top, err := ratingUC.TopViewers(intQuery(r, "limit", cfg.Limits.TopViewers))
				if err != nil {
					logger.Error().Err(err).Msg("api: рейтинг по просмотрам")
					httpinfra.WriteError(w, http.StatusInternalServerError, "не удалось получить рейтинг")
					return
				}
				httpinfra.WriteJSON(w, map[string]any{"ok": true, "data": top})
			})

			protected.Post("/cards/{id}/view", func(w http.ResponseWriter, r *http.Request) {
				defer r.Body.Close()
				var req trackViewRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					httpinfra.WriteError(w, http.StatusBadRequest, "некорректное тело запроса")
					return
				}
				count, err := viewsUC.RecordView(req.UserID, chi.URLParam(r, "id"))
				if err != nil {
					if errors.Is(err, views.ErrBadUserID) || errors.Is(err, views.ErrBadCardID) {
						httpinfra.WriteError(w, http.StatusBadRequest, err.Error())
						return
					}
					logger.Error().Err(err).Int64("user", req.UserID).Msg("api: фиксация просмотра")
					httpinfra.WriteError(w, http.StatusInternalServerError, "не удалось зафиксировать просмотр")
					return
				}
				httpinfra.WriteJSON(w, map[string]any{"ok": true, "view_count": count})
			})
		})

		// Закрытие мини-приложения ставит задачу уведомления в очередь и
		// сразу отвечает: исходный запрос никогда не ждёт доставки.
		api.Post("/app-close", func(w http.ResponseWriter, r *http.Request) {
			defer r.Body.Close()
			var req appCloseRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpinfra.WriteError(w, http.StatusBadRequest, "некорректное тело запроса")
				return
			}
			if req.UserID <= 0 {
				httpinfra.WriteError(w, http.StatusBadRequest, "user_id обязателен и должен быть положительным")
				return
			}
			job := domain.EngagementJob{
				ID:          uuid.NewString(),
				UserTGID:    req.UserID,
				RequestedAt: time.Now().UTC(),
				Cause:       domain.EngagementCauseAppClose,
			}
			if err := jobs.Enqueue(r.Context(), job); err != nil {
				logger.Error().Err(err).Int64("user", req.UserID).Msg("api: не удалось поставить задачу уведомления")
			}
			httpinfra.WriteJSON(w, map[string]any{"ok": true})
		})
	})
}

func writeCardError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrCardNotFound):
		httpinfra.WriteError(w, http.StatusNotFound, "карточка не найдена")
	case errors.Is(err, cards.ErrNotAuthor):
		httpinfra.WriteError(w, http.StatusForbidden, "карточку может менять только автор")
	case errors.Is(err, cards.ErrInvalidCard):
		httpinfra.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error().Err(err).Msg("api: операция с карточкой")
		httpinfra.WriteError(w, http.StatusInternalServerError, "внутренняя ошибка")
	}
}

func userIDQuery(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		httpinfra.WriteError(w, http.StatusBadRequest, "параметр user_id обязателен")
		return 0, false
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		httpinfra.WriteError(w, http.StatusBadRequest, "user_id должен быть положительным числом")
		return 0, false
	}
	return userID, true
}

func intQuery(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

type cardRequest struct {
	UserID   int64  `json:"user_id"`
	Category string `json:"category"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Text     string `json:"text"`
	Link     string `json:"link"`
	Image    string `json:"image"`
}

func (r cardRequest) input() cards.Input {
	return cards.Input{
		Category: r.Category,
		Title:    r.Title,
		Subtitle: r.Subtitle,
		Text:     r.Text,
		Link:     r.Link,
		Image:    r.Image,
	}
}

type trackViewRequest struct {
	UserID int64 `json:"user_id"`
}

type statusRequest struct {
	UserID int64  `json:"user_id"`
	Status string `json:"status"`
}

func isAdmin(admins []int64, tgUserID int64) bool {
	for _, id := range admins {
		if id == tgUserID {
			return true
		}
	}
	return false
}

type appCloseRequest struct {
	UserID int64 `json:"user_id"`
}

type cardDTO struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	Title     string `json:"title"`
	Subtitle  string `json:"subtitle"`
	Text      string `json:"text"`
	Status    string `json:"status"`
	Date      string `json:"date"`
	Link      string `json:"link,omitempty"`
	Image     string `json:"image,omitempty"`
	UserID    int64  `json:"user_id,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

func toCardDTO(card domain.Card) cardDTO {
	return cardDTO{
		ID:        card.ID,
		Category:  card.Category,
		Title:     card.Title,
		Subtitle:  card.Subtitle,
		Text:      card.Text,
		Status:    string(card.Status),
		Date:      card.CreatedAt.UTC().Format(time.RFC3339),
		Link:      card.Link,
		Image:     card.Image,
		UserID:    card.AuthorID,
		UpdatedAt: card.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toCardDTOs(list []domain.Card) []cardDTO {
	dtos := make([]cardDTO, 0, len(list))
	for _, card := range list {
		dtos = append(dtos, toCardDTO(card))
	}
	return dtos
}
