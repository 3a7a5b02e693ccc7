package config

import (
	"encoding/json"
	"flag"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port          string `json:"port"`
	DSLDir        string `json:"dslDir"`
	MigrationsDir string `json:"migrationsDir"`
	DBURL         string `json:"dbUrl"`

	// AutoMigrate — применить pending-миграции на старте сервера
	AutoMigrate bool `json:"autoMigrate"`
	// VerifyOnStart — сверка леджера с живой схемой на старте;
	// расхождение фатально, сервер не стартует
	VerifyOnStart bool `json:"verifyOnStart"`
}

func def() Config {
	return Config{
		Port:          "8080",
		DSLDir:        "dsl",
		MigrationsDir: "migrations",
		DBURL:         "",
		AutoMigrate:   false,
		VerifyOnStart: true,
	}
}

func loadJSON(path string) (Config, error) {
	c := def()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, err
	}
	return c, nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func getenvBool(k string, fallback bool) bool {
	if v, ok := os.LookupEnv(k); ok {
		v = strings.TrimSpace(strings.ToLower(v))
		if v == "1" || v == "true" || v == "yes" {
			return true
		}
		if v == "0" || v == "false" || v == "no" {
			return false
		}
	}
	return fallback
}

func parseBool(s string) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	return s == "true" || s == "1" || s == "yes"
}

// LoadWithPath читает JSON по указанному пути, потом применяет ENV и флаги.
func LoadWithPath(jsonPath string) Config {
	cfg := def()

	// JSON (если файл существует)
	if st, err := os.Stat(jsonPath); err == nil && !st.IsDir() {
		if c2, err := loadJSON(jsonPath); err == nil {
			cfg = c2
		}
	}

	// ENV overrides
	cfg.Port = getenv("LETOPIS_PORT", cfg.Port)
	cfg.DSLDir = getenv("LETOPIS_DSL_DIR", cfg.DSLDir)
	cfg.MigrationsDir = getenv("LETOPIS_MIGRATIONS_DIR", cfg.MigrationsDir)
	cfg.DBURL = getenv("LETOPIS_DB_URL", cfg.DBURL)
	cfg.AutoMigrate = getenvBool("LETOPIS_AUTO_MIGRATE", cfg.AutoMigrate)
	cfg.VerifyOnStart = getenvBool("LETOPIS_VERIFY_ON_START", cfg.VerifyOnStart)

	// Flags overrides
	configPath := flag.String("config", jsonPath, "Path to config JSON")
	port := flag.String("port", cfg.Port, "HTTP port")
	dsl := flag.String("dsl", cfg.DSLDir, "Path to DSL directory")
	migrations := flag.String("migrations", cfg.MigrationsDir, "Path to migrations directory")
	db := flag.String("db", cfg.DBURL, "Postgres URL (empty = in-memory)")
	auto := flag.String("auto-migrate", strconv.FormatBool(cfg.AutoMigrate), "Apply pending migrations on start (true/false)")
	verify := flag.String("verify", strconv.FormatBool(cfg.VerifyOnStart), "Verify ledger vs live schema on start (true/false)")

	flag.Parse()

	// Если через флаг передали другой конфиг — перечитаем
	if *configPath != jsonPath {
		return LoadWithPath(*configPath)
	}

	cfg.Port = strings.TrimSpace(*port)
	cfg.DSLDir = strings.TrimSpace(*dsl)
	cfg.MigrationsDir = strings.TrimSpace(*migrations)
	cfg.DBURL = strings.TrimSpace(*db)
	cfg.AutoMigrate = parseBool(*auto)
	cfg.VerifyOnStart = parseBool(*verify)

	return cfg
}
