package repository

import (
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/pkg/errors"

	"github.com/berthproject/berth/internal/matcher/query"
)

// createClusterDataset translates a query spec into a select over the cluster
// table. Join requirements become inner joins, the distinct flag becomes
// SELECT DISTINCT, and an empty predicate produces no WHERE clause at all.
func createClusterDataset(db *goqu.Database, spec *query.Spec) (*goqu.SelectDataset, error) {
	if err := spec.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid cluster query spec")
	}

	ds := db.From(clusterTable)
	for _, join := range spec.Joins {
		switch join {
		case query.JoinClusterCommands:
			ds = ds.
				InnerJoin(clusterCommandTable, goqu.On(cluster_id.Eq(clusterCommand_clusterId))).
				InnerJoin(commandTable, goqu.On(clusterCommand_commandId.Eq(command_id)))
		case query.JoinCommandApplication:
			ds = ds.InnerJoin(applicationTable, goqu.On(command_applicationId.Eq(application_id)))
		default:
			return nil, errors.Errorf("unknown join %q", join)
		}
	}

	where, err := compileNode(db, spec.Where)
	if err != nil {
		return nil, err
	}
	if where != nil {
		ds = ds.Where(where)
	}

	ds = ds.
		Select(cluster_id, cluster_name, cluster_status, cluster_updated).
		Order(cluster_id.Asc())
	if spec.Distinct {
		ds = ds.Distinct()
	}
	return ds, nil
}

// compileNode returns nil for an empty conjunction, which callers must treat
// as "match everything".
func compileNode(db *goqu.Database, node *query.Node) (goqu.Expression, error) {
	if node == nil {
		return nil, nil
	}
	switch node.Op {
	case query.OpAnd, query.OpOr:
		children := make([]goqu.Expression, 0, len(node.Children))
		for _, child := range node.Children {
			expr, err := compileNode(db, child)
			if err != nil {
				return nil, err
			}
			if expr != nil {
				children = append(children, expr)
			}
		}
		if len(children) == 0 {
			return nil, nil
		}
		if node.Op == query.OpAnd {
			return goqu.And(children...), nil
		}
		return goqu.Or(children...), nil
	case query.OpMemberOf:
		subDs := db.From(clusterTagTable).
			Select(clusterTag_clusterId).
			Where(clusterTag_tag.Eq(node.Value))
		return cluster_id.In(subDs), nil
	case query.OpEquals, query.OpLike, query.OpGreaterOrEqual, query.OpLessThan:
		col, ok := columnForField[node.Field]
		if !ok {
			return nil, errors.Errorf("no column for field %q", node.Field)
		}
		switch node.Op {
		case query.OpEquals:
			return col.Eq(node.Value), nil
		case query.OpLike:
			return col.Like(node.Value), nil
		case query.OpGreaterOrEqual:
			return col.Gte(node.Value), nil
		default:
			return col.Lt(node.Value), nil
		}
	default:
		return nil, errors.Errorf("unknown predicate op %q", node.Op)
	}
}
