package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"storefront/internal/ratelimiter"
)

type config struct {
	addr        string
	env         string
	logLevel    string
	storeDriver string
	kvDriver    string
	currency    string
	db          dbConfig
	auth        authConfig
	rateLimiter ratelimiter.Config
	khalti      khaltiConfig
	expo        expoConfig
	mail        mailConfig
	pricing     pricingConfig
	orderNumber orderNumberConfig
}

type dbConfig struct {
	addr        string
	maxConns    int32
	maxIdleTime string
}

type authConfig struct {
	basic basicConfig
	token tokenConfig
}

type tokenConfig struct {
	secret string
	exp    time.Duration
	iss    string
}

type basicConfig struct {
	user string
	pass string
}

type khaltiConfig struct {
	secretKey  string
	production bool
	returnURL  string
	websiteURL string
}

type expoConfig struct {
	accessToken string
}

type mailConfig struct {
	host      string
	port      int
	user      string
	pass      string
	fromEmail string
	alertTo   []string
}

type pricingConfig struct {
	discountCodes string
	taxRates      string
}

type orderNumberConfig struct {
	secret string
	prefix string
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && strings.TrimSpace(val) != "" {
		return strings.TrimSpace(val)
	}
	return fallback
}

func getInt(key string, fallback int) int {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		fmt.Println("Invalid", key+", defaulting to", fallback)
		return fallback
	}
	return parsed
}

func getBool(key string, fallback bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		fmt.Println("Invalid", key+", defaulting to", fallback)
		return fallback
	}
	return parsed
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil || parsed <= 0 {
		fmt.Println("Invalid", key+", defaulting to", fallback)
		return fallback
	}
	return parsed
}

func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadRateLimiterConfig retrieves rate limiter settings from environment variables
func LoadRateLimiterConfig() ratelimiter.Config {
	return ratelimiter.Config{
		Enabled: getBool("RATE_LIMITER_ENABLED", true),
		Window:  getDuration("RATE_LIMITER_WINDOW", time.Minute),
	}
}

func loadConfig() config {
	return config{
		addr:        getString("ADDR", ":8080"),
		env:         getString("ENV", "development"),
		logLevel:    getString("LOG_LEVEL", "info"),
		storeDriver: strings.ToLower(getString("STORE_DRIVER", "memory")),
		kvDriver:    strings.ToLower(getString("KV_DRIVER", "memory")),
		currency:    strings.ToUpper(getString("CURRENCY", "NPR")),
		db: dbConfig{
			addr:        os.Getenv("DB_ADDR"),
			maxConns:    int32(getInt("DB_MAX_CONNS", 30)),
			maxIdleTime: getString("DB_MAX_IDLE_TIME", "15m"),
		},
		auth: authConfig{
			basic: basicConfig{
				user: os.Getenv("AUTH_BASIC_USER"),
				pass: os.Getenv("AUTH_BASIC_PASS"),
			},
			token: tokenConfig{
				secret: os.Getenv("AUTH_TOKEN_SECRET"),
				exp:    getDuration("AUTH_TOKEN_EXP", 24*time.Hour),
				iss:    getString("AUTH_TOKEN_ISS", "storefront"),
			},
		},
		rateLimiter: LoadRateLimiterConfig(),
		khalti: khaltiConfig{
			secretKey:  os.Getenv("KHALTI_SECRET_KEY"),
			production: getBool("KHALTI_PRODUCTION", false),
			returnURL:  os.Getenv("KHALTI_RETURN_URL"),
			websiteURL: os.Getenv("KHALTI_WEBSITE_URL"),
		},
		expo: expoConfig{
			accessToken: os.Getenv("EXPO_ACCESS_TOKEN"),
		},
		mail: mailConfig{
			host:      os.Getenv("SMTP_HOST"),
			port:      getInt("SMTP_PORT", 587),
			user:      os.Getenv("SMTP_USER"),
			pass:      os.Getenv("SMTP_PASS"),
			fromEmail: os.Getenv("ALERT_EMAIL_FROM"),
			alertTo:   getList("ALERT_EMAIL_TO"),
		},
		pricing: pricingConfig{
			discountCodes: os.Getenv("DISCOUNT_CODES"),
			taxRates:      os.Getenv("TAX_RATES"),
		},
		orderNumber: orderNumberConfig{
			secret: os.Getenv("ORDER_NUMBER_SECRET"),
			prefix: getString("ORDER_NUMBER_PREFIX", "ORD"),
		},
	}
}
