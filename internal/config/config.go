package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// App holds the runtime configuration loaded from the environment.
type App struct {
	Env             string
	Port            string
	MetricsPort     string
	StoreBackend    string
	MongoURI        string
	MongoDatabase   string
	DatabaseURL     string
	MigrationsDir   string
	JWTSecret       string
	JWTIssuer       string
	TokenTTL        time.Duration
	AllowedDomains  []string
	EmailUser       string
	EmailPass       string
	SMTPHost        string
	SMTPPort        int
	NotifyMode      string
	RedisAddr       string
	NotifyQueueKey  string
	RateLimitPerMin int
	CORSOrigins     []string
	BcryptCost      int
}

// Load reads .env when present, then the environment, and validates the API
// settings.
func Load() (App, error) {
	cfg := load()
	return cfg, cfg.validate()
}

// LoadMailer loads the settings cmd/mailer needs: SMTP credentials and redis.
func LoadMailer() (App, error) {
	cfg := load()
	if !cfg.MailEnabled() {
		return cfg, errors.New("EMAIL_USER and EMAIL_PASS are required")
	}
	if cfg.RedisAddr == "" {
		return cfg, errors.New("REDIS_ADDR is required")
	}
	if cfg.MetricsPort == "" {
		cfg.MetricsPort = "9102"
	}
	return cfg, nil
}

func load() App {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables.")
	}

	return App{
		Env:             getEnv("APP_ENV", "development"),
		Port:            getEnv("API_PORT", "5000"),
		MetricsPort:     os.Getenv("MAILER_METRICS_PORT"),
		StoreBackend:    strings.ToLower(getEnv("STORE_BACKEND", "mongo")),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:   getEnv("MONGO_DATABASE", "consultation"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		MigrationsDir:   os.Getenv("MIGRATIONS_DIR"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		JWTIssuer:       getEnv("JWT_ISSUER", "consultation-portal"),
		TokenTTL:        durationEnv("TOKEN_TTL", 24*time.Hour),
		AllowedDomains:  listEnv("ALLOWED_EMAIL_DOMAINS", []string{"gmail.com", "sru.edu.in"}),
		EmailUser:       os.Getenv("EMAIL_USER"),
		EmailPass:       os.Getenv("EMAIL_PASS"),
		SMTPHost:        getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:        intEnv("SMTP_PORT", 465),
		NotifyMode:      strings.ToLower(getEnv("NOTIFY_MODE", "async")),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		NotifyQueueKey:  getEnv("NOTIFY_QUEUE_KEY", "consultation:notifications"),
		RateLimitPerMin: intEnv("RATE_LIMIT_PER_MIN", 60),
		CORSOrigins:     listEnv("CORS_ORIGINS", []string{"*"}),
		BcryptCost:      intEnv("BCRYPT_COST", bcrypt.DefaultCost),
	}
}

func (c App) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.StoreBackend {
	case "mongo", "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	default:
		return errors.New("STORE_BACKEND must be one of mongo, postgres, memory")
	}
	switch c.NotifyMode {
	case "inline", "async", "queue":
	default:
		return errors.New("NOTIFY_MODE must be one of inline, async, queue")
	}
	if len(c.AllowedDomains) == 0 {
		return errors.New("ALLOWED_EMAIL_DOMAINS must list at least one domain")
	}
	return nil
}

// MailEnabled reports whether delivery credentials are present.
func (c App) MailEnabled() bool {
	return c.EmailUser != "" && c.EmailPass != ""
}

// Production reports whether the service runs with production defaults.
func (c App) Production() bool {
	return c.Env == "production" || c.Env == "prod"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Printf("invalid int for %s, using fallback %d", key, fallback)
			return fallback
		}
		return parsed
	}
	return fallback
}

func listEnv(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
