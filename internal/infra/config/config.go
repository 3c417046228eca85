package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	// TZ задаёт часовой пояс для проверки «то же календарное число» при
	// редактировании дневного уведомления. Фиксируется явно, чтобы поведение
	// не зависело от локали сервера.
	TZ   string `envconfig:"TZ" default:"Europe/Moscow"`
	Port int    `envconfig:"PORT" default:"8080"`

	Telegram struct {
		Token      string `envconfig:"TG_BOT_TOKEN"`
		WebhookURL string `envconfig:"TG_WEBHOOK_URL"`
	} `envconfig:""`

	WebAppURL string `envconfig:"WEB_APP_URL"`

	// Admins перечисляет Telegram ID модераторов карточек.
	Admins []int64 `envconfig:"ADMIN_TG_IDS"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	AMQP struct {
		URL string `envconfig:"AMQP_URL"`
	} `envconfig:""`

	Queues struct {
		// Backend выбирает реализацию очереди уведомлений: redis или rabbitmq.
		Backend    string `envconfig:"ENGAGEMENT_QUEUE_BACKEND" default:"redis"`
		Engagement string `envconfig:"ENGAGEMENT_QUEUE_KEY" default:"engagement_jobs"`
	} `envconfig:""`

	Limits struct {
		CardsPage   int `envconfig:"CARDS_PAGE_SIZE" default:"50"`
		TopAuthors  int `envconfig:"TOP_AUTHORS_LIMIT" default:"10"`
		TopViewers  int `envconfig:"TOP_VIEWERS_LIMIT" default:"5"`
		CardTextMax int `envconfig:"CARD_TEXT_MAX" default:"4000"`
	} `envconfig:""`

	Cache struct {
		ViewedTTL time.Duration `envconfig:"VIEWED_CACHE_TTL" default:"1m"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Location возвращает зафиксированный часовой пояс приложения.
func (c AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TZ)
	if err != nil {
		log.Fatalf("некорректный часовой пояс %q: %v", c.TZ, err)
	}
	return loc
}
