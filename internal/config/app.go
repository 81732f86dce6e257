package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig — настройки ядра, не относящиеся к БД.
type AppConfig struct {
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	Env      string `envconfig:"ENV" default:"dev"`

	// Платёжный шлюз.
	MidtransServerKey  string `envconfig:"MIDTRANS_SERVER_KEY" required:"true"`
	MidtransProduction bool   `envconfig:"MIDTRANS_PRODUCTION" default:"false"`

	// Уведомления. Пустой URL отключает публикацию.
	AMQPURL      string `envconfig:"AMQP_URL" default:""`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"booking.events"`

	// Трейсинг. Пустой endpoint отключает экспорт.
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:""`

	// Сметание просроченных PENDING-броней.
	SweepIntervalMin   int `envconfig:"SWEEP_INTERVAL_MIN" default:"5"`
	SweepPendingTTLMin int `envconfig:"SWEEP_PENDING_TTL_MIN" default:"30"`
}

// LoadAppConfig читает настройки из окружения; .env подхватывается,
// если есть.
func LoadAppConfig() (*AppConfig, error) {
	_ = godotenv.Load()

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
