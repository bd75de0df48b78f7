package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the resolved server configuration.
type Config struct {
	HTTPAddr string
	LogMode  string
	Seed     bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AIBaseURL string
	AIAPIKey  string
	AITimeout time.Duration

	GradingAIFallback bool
	GradingWorkers    int

	CORSOrigins []string
}

func defaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("log.mode", "dev")
	v.SetDefault("seed", true)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 8)
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.timeout", 60*time.Second)
	v.SetDefault("grading.ai_fallback", true)
	v.SetDefault("grading.workers", 4)
	v.SetDefault("cors.origins", []string{
		"http://localhost:5173",
		"http://localhost:3000",
		"http://127.0.0.1:5173",
		"http://127.0.0.1:3000",
	})
}

// Load reads configuration from defaults, an optional dotenv file and PYQ_*
// environment variables, in increasing order of precedence. envFile may be
// empty; a missing file is not an error.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: stat %s: %w", envFile, err)
		}
	}

	v := viper.New()
	defaults(v)
	v.SetEnvPrefix("PYQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Config{
		HTTPAddr:          v.GetString("http.addr"),
		LogMode:           v.GetString("log.mode"),
		Seed:              v.GetBool("seed"),
		RedisAddr:         v.GetString("redis.addr"),
		RedisPassword:     v.GetString("redis.password"),
		RedisDB:           v.GetInt("redis.db"),
		AIBaseURL:         strings.TrimRight(v.GetString("ai.base_url"), "/"),
		AIAPIKey:          v.GetString("ai.api_key"),
		AITimeout:         v.GetDuration("ai.timeout"),
		GradingAIFallback: v.GetBool("grading.ai_fallback"),
		GradingWorkers:    v.GetInt("grading.workers"),
		CORSOrigins:       v.GetStringSlice("cors.origins"),
	}
	if cfg.GradingWorkers < 1 {
		return Config{}, fmt.Errorf("config: grading.workers must be positive, got %d", cfg.GradingWorkers)
	}
	if cfg.AITimeout <= 0 {
		return Config{}, fmt.Errorf("config: ai.timeout must be positive, got %s", cfg.AITimeout)
	}
	return cfg, nil
}

// AIEnabled reports whether a remote AI endpoint is configured.
func (c Config) AIEnabled() bool {
	return c.AIBaseURL != ""
}
