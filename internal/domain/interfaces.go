package domain

import "time"

// CardFilter ограничивает выборку карточек.
type CardFilter struct {
	Status   CardStatus
	Category string
	Limit    int
	Offset   int
}

// UserRepo управляет пользователями и их состоянием вовлечённости.
type UserRepo interface {
	UpsertByTGID(tgUserID int64, name, locale string) (User, bool, error)
	GetByTGID(tgUserID int64) (User, error)
	EngagementState(userID int64) (EngagementState, error)
	SaveEngagementState(userID int64, total int, ref MessageRef, at time.Time) error
	ClearEngagementState(userID int64) error
}

// CardRepo управляет карточками инициатив.
type CardRepo interface {
	CreateCard(card Card) (Card, error)
	GetCard(id string) (Card, error)
	ListCards(filter CardFilter) ([]Card, error)
	ListUserCards(authorID int64) ([]Card, error)
	UpdateCard(card Card) (Card, error)
	DeleteCard(id string, authorID int64) error
	TopAuthors(limit int) ([]TopAuthor, error)
}

// ViewRepo хранит счётчики просмотров карточек.
type ViewRepo interface {
	// TrackView атомарно создаёт запись со счётчиком 1 либо увеличивает
	// существующий счётчик на единицу. Возвращает значение после инкремента.
	TrackView(userID int64, cardID string) (int, error)
	CardViewCount(userID int64, cardID string) (int, error)
	UserTotalViews(userID int64) (int, error)
	ViewedCardIDs(userID int64) ([]string, error)
	TopViewers(limit int) ([]TopViewer, error)
}

// Messenger отправляет и редактирует сообщения пользователям.
type Messenger interface {
	Send(chatID int64, text string) (MessageRef, error)
	// Edit обновляет текст ранее отправленного сообщения. Если сообщение
	// больше не существует, возвращает found=false без ошибки: это ожидаемый
	// исход, а не сбой.
	Edit(ref MessageRef, text string) (found bool, err error)
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	// Once выполняет fn, если ключ свободен, и снимает ключ после завершения.
	// Вызов при занятом ключе возвращает nil, не дожидаясь владельца.
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
	Del(key string) error
}
