package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	Redis    RedisConfig
	Postgres PostgresConfig
	AMQP     AMQPConfig
	Persist  PersistConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret string
}

type RedisConfig struct {
	// Addr empty disables Redis: no cache, no pub/sub, no rate limiting.
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

type AMQPConfig struct {
	// URL empty disables the AMQP publisher.
	URL string
}

// Persistence backends for ledger snapshots.
const (
	PersistMemory   = "memory"
	PersistFile     = "file"
	PersistRedis    = "redis"
	PersistPostgres = "postgres"
)

type PersistConfig struct {
	Backend string
	// FilePath is used by the file backend.
	FilePath string
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverHost := os.Getenv("SERVER_HOST")
	if serverHost == "" {
		serverHost = "localhost"
	}

	serverPortStr := os.Getenv("SERVER_PORT")
	if serverPortStr == "" {
		serverPortStr = "8080"
	}

	serverPort, err := strconv.Atoi(serverPortStr)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid SERVER_PORT: %w", op, err)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("%s: missing JWT_SECRET", op)
	}

	redisCfg := RedisConfig{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	}

	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		db, err := strconv.Atoi(dbStr)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid REDIS_DB: %w", op, err)
		}
		redisCfg.DB = db
	}

	persistBackend := os.Getenv("PERSIST_BACKEND")
	if persistBackend == "" {
		persistBackend = PersistMemory
	}

	switch persistBackend {
	case PersistMemory, PersistFile, PersistRedis, PersistPostgres:
	default:
		return nil, fmt.Errorf("%s: unknown PERSIST_BACKEND %q", op, persistBackend)
	}

	persistFile := os.Getenv("PERSIST_FILE")
	if persistBackend == PersistFile && persistFile == "" {
		persistFile = "seatwave-ledgers.json"
	}

	if persistBackend == PersistRedis && redisCfg.Addr == "" {
		return nil, fmt.Errorf("%s: PERSIST_BACKEND=redis requires REDIS_ADDR", op)
	}

	var postgresCfg PostgresConfig
	if persistBackend == PersistPostgres {
		postgresHost := os.Getenv("POSTGRES_HOST")
		if postgresHost == "" {
			postgresHost = "localhost"
		}

		postgresPortStr := os.Getenv("POSTGRES_PORT")
		if postgresPortStr == "" {
			postgresPortStr = "5432"
		}

		postgresPort, err := strconv.Atoi(postgresPortStr)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid POSTGRES_PORT: %w", op, err)
		}

		postgresUser := os.Getenv("POSTGRES_USER")
		if postgresUser == "" {
			return nil, fmt.Errorf("%s: missing POSTGRES_USER", op)
		}

		postgresPassword := os.Getenv("POSTGRES_PASSWORD")
		if postgresPassword == "" {
			return nil, fmt.Errorf("%s: missing POSTGRES_PASSWORD", op)
		}

		postgresDB := os.Getenv("POSTGRES_DB")
		if postgresDB == "" {
			return nil, fmt.Errorf("%s: missing POSTGRES_DB", op)
		}

		postgresSSLMode := os.Getenv("POSTGRES_SSLMODE")
		if postgresSSLMode == "" {
			postgresSSLMode = "disable"
		}

		postgresCfg = PostgresConfig{
			User:     postgresUser,
			Password: postgresPassword,
			Name:     postgresDB,
			Host:     postgresHost,
			Port:     postgresPort,
			SSLMode:  postgresSSLMode,
		}
	}

	return &Config{
		Server: ServerConfig{
			Host: serverHost,
			Port: serverPort,
		},
		Auth:     AuthConfig{JWTSecret: jwtSecret},
		Redis:    redisCfg,
		Postgres: postgresCfg,
		AMQP:     AMQPConfig{URL: os.Getenv("AMQP_URL")},
		Persist: PersistConfig{
			Backend:  persistBackend,
			FilePath: persistFile,
		},
	}, nil
}
