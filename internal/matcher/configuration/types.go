package configuration

import "time"

type PostgresConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// Connection holds libpq key/value connection parameters,
	// e.g. host, port, user, password, dbname, sslmode.
	Connection map[string]string
}

type MatcherConfiguration struct {
	Postgres PostgresConfig
}
