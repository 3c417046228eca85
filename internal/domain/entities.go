package domain

import "time"

// User описывает пользователя Telegram в системе.
type User struct {
	ID        int64
	TGUserID  int64
	Name      string
	Locale    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CardStatus описывает статус модерации карточки.
type CardStatus string

const (
	// CardStatusModerate — карточка ожидает модерации.
	CardStatusModerate CardStatus = "moderate"
	// CardStatusAccepted — карточка одобрена и видна всем.
	CardStatusAccepted CardStatus = "accepted"
	// CardStatusRejected — карточка отклонена модератором.
	CardStatusRejected CardStatus = "rejected"
)

// KnownCardStatus сообщает, является ли строка допустимым статусом карточки.
func KnownCardStatus(status CardStatus) bool {
	switch status {
	case CardStatusModerate, CardStatusAccepted, CardStatusRejected:
		return true
	}
	return false
}

// Card представляет карточку благотворительной инициативы.
type Card struct {
	ID        string
	Category  string
	Title     string
	Subtitle  string
	Text      string
	Status    CardStatus
	Link      string
	Image     string
	AuthorID  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CardView хранит агрегированный счётчик просмотров карточки пользователем.
// На пару (user_id, card_id) существует не более одной записи.
type CardView struct {
	UserID    int64
	CardID    string
	ViewCount int
	ViewedAt  time.Time
}

// MessageRef идентифицирует отправленное ботом сообщение.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// EngagementState хранит снимок последнего мотивационного уведомления пользователя.
// LastNotifiedTotal монотонно не убывает; состояние очищается целиком
// при перезапуске диалога, потому что старые ссылки на сообщения становятся невалидными.
type EngagementState struct {
	LastNotifiedTotal int
	LastNotifiedAt    *time.Time
	LastMessageRef    *MessageRef
}

// TopAuthor описывает позицию рейтинга по созданным инициативам.
type TopAuthor struct {
	UserID     int64
	Name       string
	CardsCount int
	TotalViews int
}

// TopViewer описывает позицию рейтинга по просмотрам карточек.
type TopViewer struct {
	UserID     int64
	Name       string
	TotalViews int
}
