package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env             string
	LogLevel        string
	ServerAddr      string
	FrontendOrigins []string

	MongoURI          string
	MongoDB           string
	MongoTransactions bool

	RedisURL        string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	CacheTTLSeconds int

	RateLimitWindowSec      int
	RateLimitContact        int
	RateLimitFaqVote        int
	RateLimitFaqRead        int
	RateLimitResourceRead   int
	RateLimitResourceSearch int
	RateLimitShare          int
	ContactDedupMinutes     int
	ViewDedupMinutes        int

	AdminAPIKey       string
	JWTSecret         string
	AccessTTLMinutes  int
	RefreshTTLMinutes int
	CookieSecure      bool

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioPublicURL string
	MediaMaxMB     int

	BrevoAPIKey      string
	BrevoSenderEmail string
	BrevoSenderName  string
	BrevoSandbox     bool
	StaffNotifyEmail string

	Timezone *time.Location
}

var defaults = map[string]interface{}{
	"APP_ENV":                    "development",
	"LOG_LEVEL":                  "info",
	"SERVER_ADDR":                ":8080",
	"FRONTEND_ORIGINS":           "http://localhost:3000",
	"MONGO_URI":                  "mongodb://localhost:27017/cms",
	"MONGO_DB":                   "",
	"MONGO_TRANSACTIONS":         false,
	"REDIS_DB":                   0,
	"CACHE_TTL_SECONDS":          300,
	"RATE_LIMIT_WINDOW_SEC":      60,
	"RATE_LIMIT_CONTACT":         5,
	"RATE_LIMIT_FAQ_VOTE":        10,
	"RATE_LIMIT_FAQ_READ":        60,
	"RATE_LIMIT_RESOURCE_READ":   100,
	"RATE_LIMIT_RESOURCE_SEARCH": 30,
	"RATE_LIMIT_SHARE":           20,
	"CONTACT_DEDUP_MINUTES":      10,
	"VIEW_DEDUP_MINUTES":         60,
	"ACCESS_TTL_MINUTES":         15,
	"REFRESH_TTL_MINUTES":        43200,
	"COOKIE_SECURE":              false,
	"MINIO_BUCKET":               "cms-media",
	"MINIO_USE_SSL":              false,
	"MEDIA_MAX_MB":               5,
	"BREVO_SANDBOX":              false,
	"TZ":                         "UTC",
}

func Load() (*Config, error) {
	// Variables already present in the environment win over .env.
	_ = godotenv.Load(".env")

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	loc, err := time.LoadLocation(v.GetString("TZ"))
	if err != nil {
		return nil, err
	}

	mongoURI := v.GetString("MONGO_URI")
	mongoDB := v.GetString("MONGO_DB")
	if mongoDB == "" {
		mongoDB = mongoDBFromURI(mongoURI)
	}
	if mongoDB == "" {
		mongoDB = "cms"
	}

	cfg := &Config{
		Env:             v.GetString("APP_ENV"),
		LogLevel:        strings.ToLower(v.GetString("LOG_LEVEL")),
		ServerAddr:      v.GetString("SERVER_ADDR"),
		FrontendOrigins: splitList(v.GetString("FRONTEND_ORIGINS")),

		MongoURI:          mongoURI,
		MongoDB:           mongoDB,
		MongoTransactions: v.GetBool("MONGO_TRANSACTIONS"),

		RedisURL:        v.GetString("REDIS_URL"),
		RedisAddr:       v.GetString("REDIS_ADDR"),
		RedisPassword:   v.GetString("REDIS_PASSWORD"),
		RedisDB:         v.GetInt("REDIS_DB"),
		CacheTTLSeconds: v.GetInt("CACHE_TTL_SECONDS"),

		RateLimitWindowSec:      v.GetInt("RATE_LIMIT_WINDOW_SEC"),
		RateLimitContact:        v.GetInt("RATE_LIMIT_CONTACT"),
		RateLimitFaqVote:        v.GetInt("RATE_LIMIT_FAQ_VOTE"),
		RateLimitFaqRead:        v.GetInt("RATE_LIMIT_FAQ_READ"),
		RateLimitResourceRead:   v.GetInt("RATE_LIMIT_RESOURCE_READ"),
		RateLimitResourceSearch: v.GetInt("RATE_LIMIT_RESOURCE_SEARCH"),
		RateLimitShare:          v.GetInt("RATE_LIMIT_SHARE"),
		ContactDedupMinutes:     v.GetInt("CONTACT_DEDUP_MINUTES"),
		ViewDedupMinutes:        v.GetInt("VIEW_DEDUP_MINUTES"),

		AdminAPIKey:       v.GetString("ADMIN_API_KEY"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		AccessTTLMinutes:  v.GetInt("ACCESS_TTL_MINUTES"),
		RefreshTTLMinutes: v.GetInt("REFRESH_TTL_MINUTES"),
		CookieSecure:      v.GetBool("COOKIE_SECURE"),

		MinioEndpoint:  v.GetString("MINIO_ENDPOINT"),
		MinioAccessKey: v.GetString("MINIO_ACCESS_KEY"),
		MinioSecretKey: v.GetString("MINIO_SECRET_KEY"),
		MinioBucket:    v.GetString("MINIO_BUCKET"),
		MinioUseSSL:    v.GetBool("MINIO_USE_SSL"),
		MinioPublicURL: v.GetString("MINIO_PUBLIC_URL"),
		MediaMaxMB:     v.GetInt("MEDIA_MAX_MB"),

		BrevoAPIKey:      v.GetString("BREVO_API_KEY"),
		BrevoSenderEmail: v.GetString("BREVO_SENDER_EMAIL"),
		BrevoSenderName:  v.GetString("BREVO_SENDER_NAME"),
		BrevoSandbox:     v.GetBool("BREVO_SANDBOX"),
		StaffNotifyEmail: v.GetString("STAFF_NOTIFY_EMAIL"),

		Timezone: loc,
	}

	return cfg, nil
}

// Debug reports whether internal error details may be returned to clients.
func (c *Config) Debug() bool {
	return c.Env == "development" || c.Env == "local"
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSec) * time.Second
}

func mongoDBFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	db := strings.Trim(u.Path, "/")
	if db == "" {
		return ""
	}
	// mongodb URIs sometimes include extra path segments; we only support the first one as db name.
	if idx := strings.Index(db, "/"); idx >= 0 {
		db = db[:idx]
	}
	return db
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
