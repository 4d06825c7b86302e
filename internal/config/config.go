package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                    string
	AllowedOrigin           string
	DatabaseURL             string
	RedisAddr               string
	RedisPassword           string
	RedisDB                 int
	AuthSecret              string
	AccessTokenTTLMinutes   int
	AllowNegativeStock      bool
	LowStockCacheTTLSeconds int
	SeedAdminPassword       string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	lowStockTTL, err := strconv.Atoi(getEnv("LOW_STOCK_CACHE_TTL_SECONDS", "30"))
	if err != nil || lowStockTTL < 1 {
		lowStockTTL = 30
	}

	// Legacy deployments let stock go negative; flip this off to reject
	// outbound movements that would drop below zero.
	allowNegative := !strings.EqualFold(getEnv("ALLOW_NEGATIVE_STOCK", "true"), "false")

	cfg := Config{
		Port:                    getEnv("PORT", "8080"),
		AllowedOrigin:           getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		RedisAddr:               os.Getenv("REDIS_ADDR"),
		RedisPassword:           os.Getenv("REDIS_PASSWORD"),
		RedisDB:                 redisDB,
		AuthSecret:              strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:   tokenTTL,
		AllowNegativeStock:      allowNegative,
		LowStockCacheTTLSeconds: lowStockTTL,
		SeedAdminPassword:       os.Getenv("SEED_ADMIN_PASSWORD"),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
