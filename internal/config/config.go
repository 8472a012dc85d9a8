package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode      Mode
	HTTPAddr  string
	PublicURL string
	LogMode   string // dev|prod

	DBDriver string
	DBDSN    string

	// Host quiz platform tables live in the same database under this prefix.
	HostTablePrefix     string
	BootstrapHostSchema bool

	AuthHMACSecret string
	SessionSecret  string
	AdminUser      string
	AdminPassHash  string // bcrypt

	CORSOrigins []string

	RedisAddr     string // empty: in-process descriptor cache
	DescriptorTTL time.Duration

	AMQPURL      string // empty: consumer disabled
	AMQPExchange string
	AMQPQueue    string

	// Hook names registered on top of the built-in ones, for host versions
	// that publish completions under another name.
	ExtraHooks []string

	HostQuizURL string // page where the host renders a quiz; fq_quiz=<token> is appended
	MenuURL     string
}

func FromEnv() Config {
	// .env is optional
	_ = godotenv.Load()

	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	pub := strings.TrimSuffix(os.Getenv("PUBLIC_URL"), "/")
	return Config{
		Mode:      mode,
		HTTPAddr:  envOr("HTTP_ADDR", ":8080"),
		PublicURL: pub,
		LogMode:   envOr("LOG_MODE", "dev"),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		HostTablePrefix:     envOr("HOST_TABLE_PREFIX", "wp_aysquiz_"),
		BootstrapHostSchema: envBool("BOOTSTRAP_HOST_SCHEMA", mode == ModeOffline),

		AuthHMACSecret: envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		SessionSecret:  envOr("SESSION_SECRET", "dev-session-secret-change-me"),
		AdminUser:      envOr("ADMIN_USER", "admin"),
		AdminPassHash:  envOr("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),

		CORSOrigins: csvOr("CORS_ORIGINS", "http://localhost:3000"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		DescriptorTTL: envDuration("DESCRIPTOR_TTL", time.Hour),

		AMQPURL:      os.Getenv("AMQP_URL"),
		AMQPExchange: envOr("AMQP_EXCHANGE", "quiz.events"),
		AMQPQueue:    envOr("AMQP_QUEUE", "failedq-completions"),

		ExtraHooks: csvOr("EXTRA_HOOKS", ""),

		HostQuizURL: envOr("HOST_QUIZ_URL", pub+"/quiz"),
		MenuURL:     envOr("MENU_URL", pub+"/failed-questions"),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func envDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
