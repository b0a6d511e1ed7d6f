// Package matcher wires the cluster query layer together: a postgres-backed
// repository executing predicate specs built by the query package.
package matcher

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/berthproject/berth/internal/matcher/configuration"
	"github.com/berthproject/berth/internal/matcher/postgres"
	"github.com/berthproject/berth/internal/matcher/repository"
	"github.com/berthproject/berth/internal/matcher/repository/schema"
)

// StartUp connects to postgres, brings the schema up to date and returns the
// cluster repository together with a cleanup function.
func StartUp(config configuration.MatcherConfiguration) (*repository.SQLClusterRepository, func(), error) {
	db, err := postgres.Open(config.Postgres)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to postgres")
	}

	if err := schema.UpdateDatabase(db); err != nil {
		_ = db.Close()
		return nil, nil, errors.Wrap(err, "failed to update database schema")
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			log.Errorf("failed to close db connection: %v", err)
		}
	}
	return repository.NewSQLClusterRepository(db), cleanup, nil
}
