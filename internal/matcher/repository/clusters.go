package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/berthproject/berth/internal/matcher/model"
	"github.com/berthproject/berth/internal/matcher/query"
)

// ClusterRepository executes cluster query specs against a stored collection.
type ClusterRepository interface {
	FindClusters(ctx context.Context, spec *query.Spec) ([]*model.Cluster, error)
}

type SQLClusterRepository struct {
	goquDb *goqu.Database
}

func NewSQLClusterRepository(db *sql.DB) *SQLClusterRepository {
	return &SQLClusterRepository{goquDb: goqu.New("postgres", db)}
}

type clusterRow struct {
	Id      string    `db:"id"`
	Name    string    `db:"name"`
	Status  string    `db:"status"`
	Updated time.Time `db:"updated"`
}

type clusterTagRow struct {
	ClusterId string `db:"cluster_id"`
	Tag       string `db:"tag"`
}

type clusterCommandRow struct {
	ClusterId string `db:"cluster_id"`
	CommandId string `db:"command_id"`
}

// FindClusters runs the spec and returns matching clusters ordered by id,
// with tags and ordered command ids hydrated.
func (r *SQLClusterRepository) FindClusters(ctx context.Context, spec *query.Spec) ([]*model.Cluster, error) {
	ds, err := createClusterDataset(r.goquDb, spec)
	if err != nil {
		return nil, err
	}

	rows := make([]*clusterRow, 0)
	if err := ds.Prepared(true).ScanStructsContext(ctx, &rows); err != nil {
		return nil, err
	}

	clusters := make([]*model.Cluster, 0, len(rows))
	byId := map[string]*model.Cluster{}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		cluster := &model.Cluster{
			Id:      row.Id,
			Name:    row.Name,
			Status:  model.ClusterStatus(row.Status),
			Updated: row.Updated,
		}
		clusters = append(clusters, cluster)
		byId[cluster.Id] = cluster
		ids = append(ids, cluster.Id)
	}
	if len(clusters) == 0 {
		return clusters, nil
	}

	if err := r.hydrateTags(ctx, ids, byId); err != nil {
		return nil, err
	}
	if err := r.hydrateCommandIds(ctx, ids, byId); err != nil {
		return nil, err
	}
	return clusters, nil
}

func (r *SQLClusterRepository) hydrateTags(ctx context.Context, ids []string, byId map[string]*model.Cluster) error {
	ds := r.goquDb.
		From(clusterTagTable).
		Select(clusterTag_clusterId, clusterTag_tag).
		Where(clusterTag_clusterId.In(ids)).
		Order(clusterTag_clusterId.Asc(), clusterTag_tag.Asc())

	tagRows := make([]*clusterTagRow, 0)
	if err := ds.Prepared(true).ScanStructsContext(ctx, &tagRows); err != nil {
		return err
	}
	for _, row := range tagRows {
		cluster := byId[row.ClusterId]
		cluster.Tags = append(cluster.Tags, row.Tag)
	}
	return nil
}

func (r *SQLClusterRepository) hydrateCommandIds(ctx context.Context, ids []string, byId map[string]*model.Cluster) error {
	ds := r.goquDb.
		From(clusterCommandTable).
		Select(clusterCommand_clusterId, clusterCommand_commandId).
		Where(clusterCommand_clusterId.In(ids)).
		Order(clusterCommand_clusterId.Asc(), clusterCommand_commandOrder.Asc())

	commandRows := make([]*clusterCommandRow, 0)
	if err := ds.Prepared(true).ScanStructsContext(ctx, &commandRows); err != nil {
		return err
	}
	for _, row := range commandRows {
		cluster := byId[row.ClusterId]
		cluster.CommandIds = append(cluster.CommandIds, row.CommandId)
	}
	return nil
}
