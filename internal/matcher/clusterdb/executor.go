package clusterdb

import (
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"

	"github.com/berthproject/berth/internal/common/util"
	"github.com/berthproject/berth/internal/matcher/model"
	"github.com/berthproject/berth/internal/matcher/query"
)

// row is one join tuple a predicate is evaluated against. command and
// application are nil unless the spec declares the corresponding join.
type row struct {
	cluster     *model.Cluster
	command     *model.Command
	application *model.Application
}

// FindClusters evaluates the spec against the stored clusters. A cluster
// yields one tuple per joined command (inner-join semantics: unresolvable
// command or application references drop the tuple), and is returned once per
// matching tuple unless the spec demands distinct results.
func (c *ClusterDb) FindClusters(spec *query.Spec) ([]*model.Cluster, error) {
	if err := spec.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid cluster query spec")
	}

	txn := c.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(clustersTable, idIndex)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	result := make([]*model.Cluster, 0)
	for obj := it.Next(); obj != nil; obj = it.Next() {
		cluster := obj.(*model.Cluster)
		rows, err := c.joinRows(txn, cluster, spec)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			matched, err := evalNode(spec.Where, r)
			if err != nil {
				return nil, err
			}
			if matched {
				result = append(result, cluster)
				if spec.Distinct {
					break
				}
			}
		}
	}
	return result, nil
}

func (c *ClusterDb) joinRows(txn *memdb.Txn, cluster *model.Cluster, spec *query.Spec) ([]row, error) {
	if !spec.HasJoin(query.JoinClusterCommands) {
		return []row{{cluster: cluster}}, nil
	}

	rows := make([]row, 0, len(cluster.CommandIds))
	for _, commandId := range cluster.CommandIds {
		command, err := c.lookupCommand(txn, commandId)
		if err != nil {
			return nil, err
		}
		if command == nil {
			continue
		}
		if !spec.HasJoin(query.JoinCommandApplication) {
			rows = append(rows, row{cluster: cluster, command: command})
			continue
		}
		if command.ApplicationId == "" {
			continue
		}
		application, err := c.lookupApplication(txn, command.ApplicationId)
		if err != nil {
			return nil, err
		}
		if application == nil {
			continue
		}
		rows = append(rows, row{cluster: cluster, command: command, application: application})
	}
	return rows, nil
}

func evalNode(node *query.Node, r row) (bool, error) {
	if node == nil {
		return true, nil
	}
	switch node.Op {
	case query.OpAnd:
		for _, child := range node.Children {
			matched, err := evalNode(child, r)
			if err != nil || !matched {
				return false, err
			}
		}
		return true, nil
	case query.OpOr:
		for _, child := range node.Children {
			matched, err := evalNode(child, r)
			if err != nil {
				return false, err
			}
			if matched {
				return true, nil
			}
		}
		return false, nil
	case query.OpMemberOf:
		tag, err := stringValue(node)
		if err != nil {
			return false, err
		}
		return util.ContainsString(r.cluster.Tags, tag), nil
	case query.OpEquals:
		fieldValue, err := resolveString(node.Field, r)
		if err != nil {
			return false, err
		}
		value, err := stringValue(node)
		if err != nil {
			return false, err
		}
		return fieldValue == value, nil
	case query.OpLike:
		fieldValue, err := resolveString(node.Field, r)
		if err != nil {
			return false, err
		}
		pattern, err := stringValue(node)
		if err != nil {
			return false, err
		}
		return matchLike(pattern, fieldValue)
	case query.OpGreaterOrEqual, query.OpLessThan:
		fieldValue, err := resolveTime(node.Field, r)
		if err != nil {
			return false, err
		}
		value, ok := node.Value.(time.Time)
		if !ok {
			return false, errors.Errorf("field %q compared against non-time value %v", node.Field, node.Value)
		}
		if node.Op == query.OpGreaterOrEqual {
			return !fieldValue.Before(value), nil
		}
		return fieldValue.Before(value), nil
	default:
		return false, errors.Errorf("unknown predicate op %q", node.Op)
	}
}

func resolveString(field string, r row) (string, error) {
	switch field {
	case query.FieldClusterName:
		return r.cluster.Name, nil
	case query.FieldClusterStatus:
		return string(r.cluster.Status), nil
	case query.FieldCommandId:
		if r.command == nil {
			return "", errors.Errorf("field %q referenced without %q join", field, query.JoinClusterCommands)
		}
		return r.command.Id, nil
	case query.FieldCommandName:
		if r.command == nil {
			return "", errors.Errorf("field %q referenced without %q join", field, query.JoinClusterCommands)
		}
		return r.command.Name, nil
	case query.FieldCommandStatus:
		if r.command == nil {
			return "", errors.Errorf("field %q referenced without %q join", field, query.JoinClusterCommands)
		}
		return string(r.command.Status), nil
	case query.FieldApplicationId:
		if r.application == nil {
			return "", errors.Errorf("field %q referenced without %q join", field, query.JoinCommandApplication)
		}
		return r.application.Id, nil
	case query.FieldApplicationName:
		if r.application == nil {
			return "", errors.Errorf("field %q referenced without %q join", field, query.JoinCommandApplication)
		}
		return r.application.Name, nil
	case query.FieldApplicationStatus:
		if r.application == nil {
			return "", errors.Errorf("field %q referenced without %q join", field, query.JoinCommandApplication)
		}
		return string(r.application.Status), nil
	default:
		return "", errors.Errorf("field %q has no string value", field)
	}
}

func resolveTime(field string, r row) (time.Time, error) {
	if field != query.FieldClusterUpdated {
		return time.Time{}, errors.Errorf("field %q has no time value", field)
	}
	return r.cluster.Updated, nil
}

func stringValue(node *query.Node) (string, error) {
	value, ok := node.Value.(string)
	if !ok {
		return "", errors.Errorf("field %q compared against non-string value %v", node.Field, node.Value)
	}
	return value, nil
}

// matchLike implements case-sensitive SQL LIKE matching: % matches any run of
// characters, _ matches exactly one.
func matchLike(pattern string, value string) (bool, error) {
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	re, err := regexp.Compile(sb.String())
	if err != nil {
		return false, errors.Wrapf(err, "invalid pattern %q", pattern)
	}
	return re.MatchString(value), nil
}
