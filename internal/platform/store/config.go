package store

import (
	"time"

	"gourcewall/internal/platform/config"
)

// Config aggregates per backend configuration
type Config struct {
	AppName string

	PG  PGConfig
	RDS RedisConfig
}

// PGConfig configures postgres connectivity and tracing
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	// zero means the opener defaults (20 attempts, 3s per ping)
	PingAttempts int
	PingTimeout  time.Duration
}

// RedisConfig configures redis connectivity
type RedisConfig struct {
	Enabled bool
	Addr    string
	DB      int
}

// FromConfig reads SERVICE_* keys; a backend is enabled when its address is present
func FromConfig(cfg config.Conf, appName string) Config {
	svc := cfg.Prefix("SERVICE_")
	pgURL := svc.MayString("PGSQL_DBURL", "")
	rdsAddr := svc.MayString("REDIS_ADDR", "")
	return Config{
		AppName: appName,
		PG: PGConfig{
			Enabled:     pgURL != "",
			URL:         pgURL,
			MaxConns:    int32(svc.MayInt("PGSQL_MAX_CONNS", 4)),
			LogSQL:      svc.MayBool("PGSQL_LOG_SQL", false),
			SlowQueryMs: svc.MayInt("PGSQL_SLOW_MS", 250),

			PingAttempts: svc.MayInt("PGSQL_PING_ATTEMPTS", 0),
			PingTimeout:  svc.MayDuration("PGSQL_PING_TIMEOUT", 0),
		},
		RDS: RedisConfig{
			Enabled: rdsAddr != "",
			Addr:    rdsAddr,
			DB:      svc.MayInt("REDIS_DB", 0),
		},
	}
}
