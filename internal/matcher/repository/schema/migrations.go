package schema

import (
	"database/sql"
	"embed"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationFs embed.FS

type migration struct {
	id   int
	name string
	sql  string
}

// UpdateDatabase applies any migrations newer than the database's recorded
// version, in id order.
func UpdateDatabase(db *sql.DB) error {
	log.Info("Updating database...")
	version, err := readVersion(db)
	if err != nil {
		return err
	}
	log.Infof("Current version %v", version)
	migrations, err := getMigrations()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.id > version {
			if _, err := db.Exec(m.sql); err != nil {
				return errors.Wrapf(err, "failed to apply migration %s", m.name)
			}
			version = m.id
			if err := setVersion(db, version); err != nil {
				return err
			}
		}
	}
	log.Info("Database updated.")
	return nil
}

func readVersion(db *sql.DB) (int, error) {
	_, err := db.Exec(
		`CREATE SEQUENCE IF NOT EXISTS database_version START WITH 0 MINVALUE 0;`)
	if err != nil {
		return 0, err
	}

	result, err := db.Query(
		`SELECT last_value FROM database_version`)
	if err != nil {
		return 0, err
	}
	defer result.Close()

	var version int
	result.Next()
	err = result.Scan(&version)

	return version, err
}

func setVersion(db *sql.DB, version int) error {
	_, err := db.Exec(`SELECT setval('database_version', $1)`, version)
	return err
}

func getMigrations() ([]migration, error) {
	files, err := migrationFs.ReadDir("migrations")
	if err != nil {
		return nil, errors.WithStack(err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

	migrations := make([]migration, 0, len(files))
	for _, f := range files {
		content, err := migrationFs.ReadFile("migrations/" + f.Name())
		if err != nil {
			return nil, errors.WithStack(err)
		}
		id, err := strconv.Atoi(strings.Split(f.Name(), "_")[0])
		if err != nil {
			return nil, errors.Wrapf(err, "migration file %s has no numeric prefix", f.Name())
		}
		migrations = append(migrations, migration{
			id:   id,
			name: f.Name(),
			sql:  string(content),
		})
	}
	return migrations, nil
}
