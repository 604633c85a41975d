package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreMemory    = "memory"
	StoreFirestore = "firestore"
	StorePostgres  = "postgres"
)

type Config struct {
	Env      string
	Addr     string
	LogLevel string

	Store string
	DBDSN string

	FirestoreProject    string
	FirestoreDatabase   string
	FirestoreCollection string
	FirestoreEndpoint   string
	GoogleCredentials   string

	RedisAddr  string
	RedisDB    int
	JournalTTL time.Duration

	WriteMaxAttempts int
	WriteBackoff     time.Duration
	AtomicWrites     bool
	HealOnRead       bool

	GoogleClientID string
	AppleServiceID string

	// MutationRate is the number of relationship mutations a caller may issue per minute.
	MutationRate int
}

func Load() (Config, error) {
	path := os.Getenv("APP_ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := loadDotEnvFile(path, os.Setenv, os.Getenv); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("APP_ENV_FILE: %w", err)
	}
	return LoadFromEnv(os.Getenv)
}

func LoadFromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Env:                 getenv("APP_ENV"),
		Addr:                getenv("APP_ADDR"),
		LogLevel:            getenv("APP_LOG_LEVEL"),
		Store:               strings.ToLower(strings.TrimSpace(getenv("APP_STORE"))),
		DBDSN:               getenv("APP_DB_DSN"),
		FirestoreProject:    getenv("APP_FIRESTORE_PROJECT"),
		FirestoreDatabase:   getenv("APP_FIRESTORE_DATABASE"),
		FirestoreCollection: getenv("APP_FIRESTORE_COLLECTION"),
		FirestoreEndpoint:   getenv("APP_FIRESTORE_ENDPOINT"),
		GoogleCredentials:   getenv("APP_GOOGLE_CREDENTIALS"),
		RedisAddr:           getenv("APP_REDIS_ADDR"),
		GoogleClientID:      getenv("APP_GOOGLE_CLIENT_ID"),
		AppleServiceID:      getenv("APP_APPLE_SERVICE_ID"),
	}

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}
	if cfg.FirestoreDatabase == "" {
		cfg.FirestoreDatabase = "(default)"
	}
	if cfg.FirestoreCollection == "" {
		cfg.FirestoreCollection = "users"
	}

	switch cfg.Env {
	case "dev", "prod", "test":
	default:
		return Config{}, errors.New("APP_ENV: must be one of dev, test, prod")
	}

	var err error
	if cfg.RedisDB, err = intVar(getenv, "APP_REDIS_DB", 0, 0); err != nil {
		return Config{}, err
	}
	if cfg.WriteMaxAttempts, err = intVar(getenv, "APP_WRITE_MAX_ATTEMPTS", 5, 1); err != nil {
		return Config{}, err
	}
	if cfg.MutationRate, err = intVar(getenv, "APP_MUTATION_RATE", 30, 1); err != nil {
		return Config{}, err
	}
	if cfg.JournalTTL, err = durationVar(getenv, "APP_JOURNAL_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.WriteBackoff, err = durationVar(getenv, "APP_WRITE_BACKOFF", 25*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.AtomicWrites, err = boolVar(getenv, "APP_ATOMIC_WRITES", false); err != nil {
		return Config{}, err
	}
	if cfg.HealOnRead, err = boolVar(getenv, "APP_HEAL_ON_READ", true); err != nil {
		return Config{}, err
	}

	if cfg.Store == "" {
		switch {
		case cfg.DBDSN != "":
			cfg.Store = StorePostgres
		case cfg.FirestoreProject != "" || cfg.FirestoreEndpoint != "":
			cfg.Store = StoreFirestore
		default:
			cfg.Store = StoreMemory
		}
	}
	switch cfg.Store {
	case StoreMemory:
	case StorePostgres:
		if cfg.DBDSN == "" {
			return Config{}, errors.New("APP_DB_DSN: required for the postgres store")
		}
	case StoreFirestore:
		if cfg.FirestoreProject == "" && cfg.GoogleCredentials == "" {
			return Config{}, errors.New("APP_FIRESTORE_PROJECT: required for the firestore store")
		}
	default:
		return Config{}, errors.New("APP_STORE: must be one of memory, firestore, postgres")
	}

	if cfg.IsProd() {
		if cfg.Store == StoreMemory {
			return Config{}, errors.New("APP_STORE: memory is not allowed in prod")
		}
		if cfg.GoogleClientID == "" && cfg.AppleServiceID == "" {
			return Config{}, errors.New("APP_GOOGLE_CLIENT_ID or APP_APPLE_SERVICE_ID: required in prod")
		}
	}

	return cfg, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

func intVar(getenv func(string) string, key string, def, min int) (int, error) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if v < min {
		return 0, fmt.Errorf("%s: must be >= %d", key, min)
	}
	return v, nil
}

func durationVar(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be > 0", key)
	}
	return d, nil
}

func boolVar(getenv func(string) string, key string, def bool) (bool, error) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
