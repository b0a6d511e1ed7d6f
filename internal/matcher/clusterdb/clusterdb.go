// Package clusterdb is an in-memory cluster collection that can execute query
// specs directly, without a SQL engine. It backs tests and embedded use; the
// postgres-backed repository package is the production executor.
package clusterdb

import (
	"github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"

	"github.com/berthproject/berth/internal/matcher/model"
)

const (
	clustersTable     = "clusters"
	commandsTable     = "commands"
	applicationsTable = "applications"

	idIndex = "id"
)

// ClusterDb stores clusters, commands and applications in a go-memdb
// database. Reads and writes are transactional and safe for concurrent use.
type ClusterDb struct {
	db *memdb.MemDB
}

func NewClusterDb() (*ClusterDb, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &ClusterDb{db: db}, nil
}

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			clustersTable: {
				Name: clustersTable,
				Indexes: map[string]*memdb.IndexSchema{
					idIndex: {
						Name:    idIndex,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Id"},
					},
				},
			},
			commandsTable: {
				Name: commandsTable,
				Indexes: map[string]*memdb.IndexSchema{
					idIndex: {
						Name:    idIndex,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Id"},
					},
				},
			},
			applicationsTable: {
				Name: applicationsTable,
				Indexes: map[string]*memdb.IndexSchema{
					idIndex: {
						Name:    idIndex,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Id"},
					},
				},
			},
		},
	}
}

func (c *ClusterDb) UpsertClusters(clusters []*model.Cluster) error {
	txn := c.db.Txn(true)
	defer txn.Abort()
	for _, cluster := range clusters {
		if err := txn.Insert(clustersTable, cluster); err != nil {
			return errors.WithStack(err)
		}
	}
	txn.Commit()
	return nil
}

func (c *ClusterDb) UpsertCommands(commands []*model.Command) error {
	txn := c.db.Txn(true)
	defer txn.Abort()
	for _, command := range commands {
		if err := txn.Insert(commandsTable, command); err != nil {
			return errors.WithStack(err)
		}
	}
	txn.Commit()
	return nil
}

func (c *ClusterDb) UpsertApplications(applications []*model.Application) error {
	txn := c.db.Txn(true)
	defer txn.Abort()
	for _, application := range applications {
		if err := txn.Insert(applicationsTable, application); err != nil {
			return errors.WithStack(err)
		}
	}
	txn.Commit()
	return nil
}

func (c *ClusterDb) lookupCommand(txn *memdb.Txn, id string) (*model.Command, error) {
	obj, err := txn.First(commandsTable, idIndex, id)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if obj == nil {
		return nil, nil
	}
	return obj.(*model.Command), nil
}

func (c *ClusterDb) lookupApplication(txn *memdb.Txn, id string) (*model.Application, error) {
	obj, err := txn.First(applicationsTable, idIndex, id)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if obj == nil {
		return nil, nil
	}
	return obj.(*model.Application), nil
}
