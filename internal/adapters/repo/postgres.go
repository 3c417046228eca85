package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dobro-cards-bot/internal/domain"
	"dobro-cards-bot/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.UserRepo = (*Postgres)(nil)
var _ domain.CardRepo = (*Postgres)(nil)
var _ domain.ViewRepo = (*Postgres)(nil)
var _ domain.BusinessMetricRepo = (*Postgres)(nil)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return p.connCtx()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// RecordBusinessMetric сохраняет бизнесовую метрику в БД.
func (p *Postgres) RecordBusinessMetric(ctx context.Context, metric domain.BusinessMetric) error {
	if metric.Event == "" {
		return nil
	}
	if metric.OccurredAt.IsZero() {
		metric.OccurredAt = time.Now().UTC()
	}

	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var userID sql.NullInt64
	if metric.UserID != nil {
		userID = sql.NullInt64{Int64: *metric.UserID, Valid: true}
	}
	var cardID sql.NullString
	if metric.CardID != nil {
		cardID = sql.NullString{String: *metric.CardID, Valid: true}
	}
	var payload []byte
	if len(metric.Metadata) > 0 {
		raw, err := json.Marshal(metric.Metadata)
		if err != nil {
			return err
		}
		payload = raw
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO business_metrics (event, user_id, card_id, metadata, occurred_at)
VALUES ($1, $2, $3, $4, $5)
`, metric.Event, userID, cardID, payload, metric.OccurredAt)
	metrics.ObserveNetworkRequest("postgres", "business_metrics_insert", "business_metrics", start, err)
	return err
}

// UpsertByTGID реализует domain.UserRepo.
func (p *Postgres) UpsertByTGID(tgUserID int64, name, locale string) (domain.User, bool, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	nameValue := strings.TrimSpace(name)
	localeValue := strings.TrimSpace(locale)

	var (
		user    domain.User
		created bool
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO users (tg_user_id, name, locale)
VALUES ($1, NULLIF($2,''), COALESCE(NULLIF($3,''),'ru-RU'))
ON CONFLICT (tg_user_id) DO UPDATE SET name = COALESCE(EXCLUDED.name, users.name), locale = EXCLUDED.locale, updated_at = now()
RETURNING id, tg_user_id, COALESCE(name,''), locale, created_at, updated_at, (xmax = 0) AS inserted
`, tgUserID, nameValue, localeValue).Scan(&user.ID, &user.TGUserID, &user.Name, &user.Locale, &user.CreatedAt, &user.UpdatedAt, &created)
	metrics.ObserveNetworkRequest("postgres", "users_upsert", "users", start, err)
	if err != nil {
		return domain.User{}, false, err
	}
	if created {
		userID := user.ID
		_ = p.RecordBusinessMetric(ctx, domain.BusinessMetric{
			Event:  domain.BusinessMetricEventUserRegistered,
			UserID: &userID,
			Metadata: map[string]any{
				"tg_user_id": user.TGUserID,
				"locale":     user.Locale,
			},
		})
	}
	return user, created, nil
}

// GetByTGID возвращает пользователя по Telegram ID.
func (p *Postgres) GetByTGID(tgUserID int64) (domain.User, error) {
	var user domain.User
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, tg_user_id, COALESCE(name,''), locale, created_at, updated_at
FROM users WHERE tg_user_id=$1
`, tgUserID).Scan(&user.ID, &user.TGUserID, &user.Name, &user.Locale, &user.CreatedAt, &user.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "users_get_by_tgid", "users", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, err
}

// EngagementState возвращает снимок последнего уведомления пользователя.
func (p *Postgres) EngagementState(userID int64) (domain.EngagementState, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var (
		state      domain.EngagementState
		notifiedAt sql.NullTime
		chatID     sql.NullInt64
		messageID  sql.NullInt64
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT last_notified_total, last_notified_at, last_message_chat_id, last_message_id
FROM users WHERE id=$1
`, userID).Scan(&state.LastNotifiedTotal, &notifiedAt, &chatID, &messageID)
	metrics.ObserveNetworkRequest("postgres", "users_engagement_state", "users", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.EngagementState{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.EngagementState{}, err
	}
	if notifiedAt.Valid {
		ts := notifiedAt.Time
		state.LastNotifiedAt = &ts
	}
	if chatID.Valid && messageID.Valid {
		state.LastMessageRef = &domain.MessageRef{ChatID: chatID.Int64, MessageID: int(messageID.Int64)}
	}
	return state, nil
}

// SaveEngagementState сохраняет снимок после доставленного уведомления.
// GREATEST защищает монотонность last_notified_total при гонке двух доставок.
func (p *Postgres) SaveEngagementState(userID int64, total int, ref domain.MessageRef, at time.Time) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE users
SET last_notified_total = GREATEST(last_notified_total, $2),
    last_notified_at = $3,
    last_message_chat_id = $4,
    last_message_id = $5,
    updated_at = now()
WHERE id=$1
`, userID, total, at, ref.ChatID, ref.MessageID)
	metrics.ObserveNetworkRequest("postgres", "users_save_engagement", "users", start, err)
	return err
}

// ClearEngagementState полностью очищает снимок уведомлений пользователя.
func (p *Postgres) ClearEngagementState(userID int64) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE users
SET last_notified_total = 0,
    last_notified_at = NULL,
    last_message_chat_id = NULL,
    last_message_id = NULL,
    updated_at = now()
WHERE id=$1
`, userID)
	metrics.ObserveNetworkRequest("postgres", "users_clear_engagement", "users", start, err)
	return err
}

// TrackView атомарно увеличивает счётчик просмотров пары (пользователь, карточка).
// Один upsert-запрос, конкурентные инкременты не теряются.
func (p *Postgres) TrackView(userID int64, cardID string) (int, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var count int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO card_views (user_id, card_id, view_count, viewed_at)
VALUES ($1, $2, 1, now())
ON CONFLICT (user_id, card_id) DO UPDATE SET view_count = card_views.view_count + 1, viewed_at = now()
RETURNING view_count
`, userID, cardID).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "card_views_track", "card_views", start, err)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CardViewCount возвращает количество просмотров карточки пользователем.
func (p *Postgres) CardViewCount(userID int64, cardID string) (int, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var count int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT view_count FROM card_views WHERE user_id=$1 AND card_id=$2
`, userID, cardID).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "card_views_count", "card_views", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// UserTotalViews возвращает сумму просмотров пользователя по всем карточкам.
func (p *Postgres) UserTotalViews(userID int64) (int, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var total int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT COALESCE(SUM(view_count), 0) FROM card_views WHERE user_id=$1
`, userID).Scan(&total)
	metrics.ObserveNetworkRequest("postgres", "card_views_total", "card_views", start, err)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// ViewedCardIDs возвращает идентификаторы просмотренных карточек.
func (p *Postgres) ViewedCardIDs(userID int64) ([]string, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT card_id FROM card_views WHERE user_id=$1
`, userID)
	metrics.ObserveNetworkRequest("postgres", "card_views_viewed", "card_views", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TopViewers возвращает пользователей с наибольшей суммой просмотров.
func (p *Postgres) TopViewers(limit int) ([]domain.TopViewer, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT v.user_id, COALESCE(u.name, ''), SUM(v.view_count) AS total_views
FROM card_views v
LEFT JOIN users u ON u.tg_user_id = v.user_id
GROUP BY v.user_id, u.name
ORDER BY total_views DESC
LIMIT $1
`, limit)
	metrics.ObserveNetworkRequest("postgres", "card_views_top", "card_views", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var top []domain.TopViewer
	for rows.Next() {
		var v domain.TopViewer
		if err := rows.Scan(&v.UserID, &v.Name, &v.TotalViews); err != nil {
			return nil, err
		}
		top = append(top, v)
	}
	return top, rows.Err()
}

// CreateCard сохраняет новую карточку.
func (p *Postgres) CreateCard(card domain.Card) (domain.Card, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO cards (id, category, title, subtitle, body, status, link, image, author_id)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7,''), NULLIF($8,''), $9)
RETURNING created_at, updated_at
`, card.ID, card.Category, card.Title, card.Subtitle, card.Text, string(card.Status), card.Link, card.Image, card.AuthorID).Scan(&card.CreatedAt, &card.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "cards_insert", "cards", start, err)
	if err != nil {
		return domain.Card{}, err
	}
	return card, nil
}

// GetCard возвращает карточку по идентификатору.
func (p *Postgres) GetCard(id string) (domain.Card, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	card, err := scanCard(p.pool.QueryRow(ctx, `
SELECT id, category, title, subtitle, body, status, COALESCE(link,''), COALESCE(image,''), author_id, created_at, updated_at
FROM cards WHERE id=$1
`, id))
	metrics.ObserveNetworkRequest("postgres", "cards_get", "cards", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Card{}, domain.ErrCardNotFound
	}
	return card, err
}

// ListCards возвращает карточки по фильтру, новые первыми.
func (p *Postgres) ListCards(filter domain.CardFilter) ([]domain.Card, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, category, title, subtitle, body, status, COALESCE(link,''), COALESCE(image,''), author_id, created_at, updated_at
FROM cards
WHERE ($1 = '' OR status = $1)
  AND ($2 = '' OR category = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4
`, string(filter.Status), filter.Category, limit, filter.Offset)
	metrics.ObserveNetworkRequest("postgres", "cards_list", "cards", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCards(rows)
}

// ListUserCards возвращает карточки автора во всех статусах, новые первыми.
func (p *Postgres) ListUserCards(authorID int64) ([]domain.Card, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, category, title, subtitle, body, status, COALESCE(link,''), COALESCE(image,''), author_id, created_at, updated_at
FROM cards WHERE author_id=$1
ORDER BY created_at DESC
`, authorID)
	metrics.ObserveNetworkRequest("postgres", "cards_list_by_author", "cards", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCards(rows)
}

// UpdateCard перезаписывает содержимое карточки.
func (p *Postgres) UpdateCard(card domain.Card) (domain.Card, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
UPDATE cards
SET category=$2, title=$3, subtitle=$4, body=$5, status=$6, link=NULLIF($7,''), image=NULLIF($8,''), updated_at=now()
WHERE id=$1
RETURNING updated_at
`, card.ID, card.Category, card.Title, card.Subtitle, card.Text, string(card.Status), card.Link, card.Image).Scan(&card.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "cards_update", "cards", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Card{}, domain.ErrCardNotFound
	}
	if err != nil {
		return domain.Card{}, err
	}
	return card, nil
}

// DeleteCard удаляет карточку автора. Записи о просмотрах не каскадируются:
// их очистка — забота внешнего обслуживания.
func (p *Postgres) DeleteCard(id string, authorID int64) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	res, err := p.pool.Exec(ctx, `
DELETE FROM cards WHERE id=$1 AND author_id=$2
`, id, authorID)
	metrics.ObserveNetworkRequest("postgres", "cards_delete", "cards", start, err)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return domain.ErrCardNotFound
	}
	return nil
}

// TopAuthors возвращает авторов с наибольшим числом одобренных карточек,
// вместе с суммой просмотров их карточек.
func (p *Postgres) TopAuthors(limit int) ([]domain.TopAuthor, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT c.author_id, COALESCE(u.name, ''), COUNT(*) AS cards_count, COALESCE(SUM(cv.views), 0) AS total_views
FROM cards c
LEFT JOIN users u ON u.tg_user_id = c.author_id
LEFT JOIN (
    SELECT card_id, SUM(view_count) AS views FROM card_views GROUP BY card_id
) cv ON cv.card_id = c.id
WHERE c.status = 'accepted'
GROUP BY c.author_id, u.name
ORDER BY cards_count DESC, total_views DESC
LIMIT $1
`, limit)
	metrics.ObserveNetworkRequest("postgres", "cards_top_authors", "cards", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var top []domain.TopAuthor
	for rows.Next() {
		var a domain.TopAuthor
		if err := rows.Scan(&a.UserID, &a.Name, &a.CardsCount, &a.TotalViews); err != nil {
			return nil, err
		}
		top = append(top, a)
	}
	return top, rows.Err()
}

func scanCard(row pgx.Row) (domain.Card, error) {
	var (
		card   domain.Card
		status string
	)
	err := row.Scan(&card.ID, &card.Category, &card.Title, &card.Subtitle, &card.Text, &status, &card.Link, &card.Image, &card.AuthorID, &card.CreatedAt, &card.UpdatedAt)
	if err != nil {
		return domain.Card{}, err
	}
	card.Status = domain.CardStatus(status)
	return card, nil
}

func collectCards(rows pgx.Rows) ([]domain.Card, error) {
	var cards []domain.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}
