package platform

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the process configuration read at startup in cmd/ and passed
// down explicitly.
type Config struct {
	LogLevel  string
	LogPretty bool

	BaseYear    int
	BaseIndex   float64
	TargetYear  int
	TargetIndex float64

	DefaultMaterial string
	Port            int
	APIKey          string

	Store string // none, clickhouse or postgres

	// ClickHouseDSN wins over the CLICKHOUSE_HOST style settings when set.
	ClickHouseDSN string
	DatabaseURL   string
}

// LoadConfig reads an optional .env file and then the environment.
// A missing .env file is not an error.
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, err
		}
	}

	return &Config{
		LogLevel:        GetEnv("CAPEX_LOG_LEVEL", "info"),
		LogPretty:       GetEnvBool("CAPEX_LOG_PRETTY", false),
		BaseYear:        GetEnvInt("CAPEX_BASE_YEAR", 2017),
		BaseIndex:       GetEnvFloat("CAPEX_BASE_INDEX", 0),
		TargetYear:      GetEnvInt("CAPEX_TARGET_YEAR", 0),
		TargetIndex:     GetEnvFloat("CAPEX_TARGET_INDEX", 0),
		DefaultMaterial: GetEnv("CAPEX_DEFAULT_MATERIAL", "CS"),
		Port:            GetEnvInt("CAPEX_PORT", 8080),
		APIKey:          GetEnv("CAPEX_API_KEY", ""),
		Store:           GetEnv("CAPEX_STORE", "none"),
		ClickHouseDSN:   GetEnv("CLICKHOUSE_DSN", ""),
		DatabaseURL:     GetEnv("DATABASE_URL", ""),
	}, nil
}

func GetEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func GetEnvInt(key string, defaultVal int) int {
	if val, exists := os.LookupEnv(key); exists {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func GetEnvFloat(key string, defaultVal float64) float64 {
	if val, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func GetEnvBool(key string, defaultVal bool) bool {
	if val, exists := os.LookupEnv(key); exists {
		if strings.ToLower(val) == "true" || val == "1" {
			return true
		}
		return false
	}
	return defaultVal
}
