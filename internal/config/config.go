package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL"`
	DatabaseURL string `env:"DATABASE_URL"`

	JWT      JWT      `envPrefix:"JWT_"`
	Paystack Paystack `envPrefix:"PAYSTACK_"`
	Escrow   Escrow   `envPrefix:"ESCROW_"`
}

type Paystack struct {
	BaseApiURL string `env:"BASE_API_URL" envDefault:"https://api.paystack.co"`
	SecretKey  string `env:"SECRET_KEY"`
}

type JWT struct {
	Secret string `env:"SECRET"`
}

// Escrow carries the money-movement policy knobs.
type Escrow struct {
	Currency          string        `env:"CURRENCY" envDefault:"KES"`
	DefaultFeePercent float64       `env:"DEFAULT_FEE_PERCENT" envDefault:"10"`
	MinWithdrawal     float64       `env:"MIN_WITHDRAWAL" envDefault:"100"`
	OverdueAfter      time.Duration `env:"OVERDUE_AFTER" envDefault:"168h"`
	DisputeWindow     time.Duration `env:"DISPUTE_WINDOW" envDefault:"168h"`
	InitiatedTTL      time.Duration `env:"INITIATED_TTL" envDefault:"24h"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
