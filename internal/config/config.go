package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	ServerPort      string
	Environment     string
	Debug           bool
	DatabaseType    string
	DatabasePath    string
	DatabaseURL     string
	SessionDuration time.Duration
	UploadMaxSize   int64
	MediaDir        string
	AppBaseURL      string

	JWTSecret           string
	CSRFSecret          string
	RequireVerifiedMail bool

	EmailProvider  string
	EmailFrom      string
	EmailFromName  string
	SESRegion      string
	SendGridAPIKey string

	AIBaseURL         string
	AIAPIKey          string
	AIModel           string
	AITranscribeModel string
	AITimeout         time.Duration
	AIMaxRetries      int
	GradingWorkers    int

	GoogleClientID       string
	GoogleClientSecret   string
	OAuthRedirectBaseURL string

	RollbarToken string
	CodeVersion  string
}

func defaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("DEBUG", false)
	v.SetDefault("DATABASE_TYPE", "sqlite")
	v.SetDefault("DB_PATH", "./ieltsprep.db")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SESSION_DURATION", 24*time.Hour)
	v.SetDefault("UPLOAD_MAX_SIZE", int64(20*1024*1024)) // 20MB
	v.SetDefault("MEDIA_DIR", "./media")
	v.SetDefault("APP_BASE_URL", "http://localhost:8080")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("CSRF_SECRET", "")
	v.SetDefault("AUTH_REQUIRE_VERIFIED", true)
	v.SetDefault("EMAIL_PROVIDER", "log")
	v.SetDefault("EMAIL_FROM", "")
	v.SetDefault("EMAIL_FROM_NAME", "IELTS Prep")
	v.SetDefault("SES_REGION", "us-east-1")
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("AI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("AI_API_KEY", "")
	v.SetDefault("AI_MODEL", "gpt-4o-mini")
	v.SetDefault("AI_TRANSCRIBE_MODEL", "whisper-1")
	v.SetDefault("AI_TIMEOUT", 60*time.Second)
	v.SetDefault("AI_MAX_RETRIES", 3)
	v.SetDefault("GRADING_WORKERS", 2)
	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("OAUTH_REDIRECT_BASE_URL", "")
	v.SetDefault("ROLLBAR_TOKEN", "")
	v.SetDefault("CODE_VERSION", "dev")
}

// Load reads configuration from an optional .env file and environment variables with sensible defaults
func Load() *Config {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("Warning: failed to load .env: %v", err)
		}
	}

	v := viper.New()
	defaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		ServerPort:      v.GetString("PORT"),
		Environment:     v.GetString("ENVIRONMENT"),
		Debug:           v.GetBool("DEBUG"),
		DatabaseType:    v.GetString("DATABASE_TYPE"),
		DatabasePath:    v.GetString("DB_PATH"),
		DatabaseURL:     v.GetString("DATABASE_URL"),
		SessionDuration: v.GetDuration("SESSION_DURATION"),
		UploadMaxSize:   v.GetInt64("UPLOAD_MAX_SIZE"),
		MediaDir:        v.GetString("MEDIA_DIR"),
		AppBaseURL:      v.GetString("APP_BASE_URL"),

		JWTSecret:           v.GetString("JWT_SECRET"),
		CSRFSecret:          v.GetString("CSRF_SECRET"),
		RequireVerifiedMail: v.GetBool("AUTH_REQUIRE_VERIFIED"),

		EmailProvider:  v.GetString("EMAIL_PROVIDER"),
		EmailFrom:      v.GetString("EMAIL_FROM"),
		EmailFromName:  v.GetString("EMAIL_FROM_NAME"),
		SESRegion:      v.GetString("SES_REGION"),
		SendGridAPIKey: v.GetString("SENDGRID_API_KEY"),

		AIBaseURL:         v.GetString("AI_BASE_URL"),
		AIAPIKey:          v.GetString("AI_API_KEY"),
		AIModel:           v.GetString("AI_MODEL"),
		AITranscribeModel: v.GetString("AI_TRANSCRIBE_MODEL"),
		AITimeout:         v.GetDuration("AI_TIMEOUT"),
		AIMaxRetries:      v.GetInt("AI_MAX_RETRIES"),
		GradingWorkers:    v.GetInt("GRADING_WORKERS"),

		GoogleClientID:       v.GetString("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:   v.GetString("GOOGLE_CLIENT_SECRET"),
		OAuthRedirectBaseURL: v.GetString("OAUTH_REDIRECT_BASE_URL"),

		RollbarToken: v.GetString("ROLLBAR_TOKEN"),
		CodeVersion:  v.GetString("CODE_VERSION"),
	}

	if cfg.JWTSecret == "" {
		log.Println("Warning: JWT_SECRET not set, using an insecure development secret")
		cfg.JWTSecret = "dev-jwt-secret-change-me"
	}
	if cfg.CSRFSecret == "" {
		cfg.CSRFSecret = cfg.JWTSecret
	}
	if cfg.GradingWorkers < 1 {
		cfg.GradingWorkers = 1
	}

	return cfg
}

// IsProduction reports whether the app runs in the production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
