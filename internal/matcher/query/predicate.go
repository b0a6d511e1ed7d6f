// Package query builds declarative predicate trees describing which clusters
// qualify for a search or for job execution. Trees are storage-agnostic: the
// executors in clusterdb and repository translate them into actual lookups.
package query

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

type Op string

const (
	OpEquals         Op = "equals"
	OpLike           Op = "like"
	OpGreaterOrEqual Op = "greaterOrEqual"
	OpLessThan       Op = "lessThan"
	OpMemberOf       Op = "memberOf"
	OpAnd            Op = "and"
	OpOr             Op = "or"
)

// Qualified field names predicates can reference. Fields outside the cluster
// entity are only reachable through the corresponding join.
const (
	FieldClusterName    = "cluster.name"
	FieldClusterStatus  = "cluster.status"
	FieldClusterUpdated = "cluster.updated"
	FieldClusterTags    = "cluster.tags"

	FieldCommandId     = "command.id"
	FieldCommandName   = "command.name"
	FieldCommandStatus = "command.status"

	FieldApplicationId     = "application.id"
	FieldApplicationName   = "application.name"
	FieldApplicationStatus = "application.status"
)

type Join string

const (
	JoinClusterCommands    Join = "cluster->command"
	JoinCommandApplication Join = "command->application"
)

// joinForField maps each field to the join it needs, if any.
// The command->application join additionally requires cluster->command.
var joinForField = map[string]Join{
	FieldCommandId:         JoinClusterCommands,
	FieldCommandName:       JoinClusterCommands,
	FieldCommandStatus:     JoinClusterCommands,
	FieldApplicationId:     JoinCommandApplication,
	FieldApplicationName:   JoinCommandApplication,
	FieldApplicationStatus: JoinCommandApplication,
}

var allFields = map[string]bool{
	FieldClusterName:       true,
	FieldClusterStatus:     true,
	FieldClusterUpdated:    true,
	FieldClusterTags:       true,
	FieldCommandId:         true,
	FieldCommandName:       true,
	FieldCommandStatus:     true,
	FieldApplicationId:     true,
	FieldApplicationName:   true,
	FieldApplicationStatus: true,
}

// Node is one predicate tree node. Comparison nodes carry Field and Value;
// and/or nodes carry Children only.
type Node struct {
	Op       Op
	Field    string
	Value    interface{}
	Children []*Node
}

func Equals(field string, value interface{}) *Node {
	return &Node{Op: OpEquals, Field: field, Value: value}
}

func Like(field string, pattern string) *Node {
	return &Node{Op: OpLike, Field: field, Value: pattern}
}

func GreaterOrEqual(field string, value interface{}) *Node {
	return &Node{Op: OpGreaterOrEqual, Field: field, Value: value}
}

func LessThan(field string, value interface{}) *Node {
	return &Node{Op: OpLessThan, Field: field, Value: value}
}

func MemberOf(field string, value string) *Node {
	return &Node{Op: OpMemberOf, Field: field, Value: value}
}

// And conjoins the given conditions. With no children it is the
// match-everything predicate.
func And(children ...*Node) *Node {
	return &Node{Op: OpAnd, Children: children}
}

func Or(children ...*Node) *Node {
	return &Node{Op: OpOr, Children: children}
}

// Spec is a complete query description handed to an executor: the predicate
// tree, the joins the tree's field references rely on, and whether the
// executor must suppress duplicate clusters produced by join fan-out.
type Spec struct {
	Where    *Node
	Joins    []Join
	Distinct bool
}

func (s *Spec) HasJoin(join Join) bool {
	for _, j := range s.Joins {
		if j == join {
			return true
		}
	}
	return false
}

// Validate checks that the spec is well-formed: every field reference must be
// reachable through the declared joins, the command->application join must not
// appear without cluster->command, and all ops and fields must be known.
func (s *Spec) Validate() error {
	var result *multierror.Error
	if s.HasJoin(JoinCommandApplication) && !s.HasJoin(JoinClusterCommands) {
		result = multierror.Append(result,
			errors.Errorf("join %q requires join %q", JoinCommandApplication, JoinClusterCommands))
	}
	for _, join := range s.Joins {
		if join != JoinClusterCommands && join != JoinCommandApplication {
			result = multierror.Append(result, errors.Errorf("unknown join %q", join))
		}
	}
	s.validateNode(s.Where, &result)
	return result.ErrorOrNil()
}

func (s *Spec) validateNode(node *Node, result **multierror.Error) {
	if node == nil {
		return
	}
	switch node.Op {
	case OpAnd, OpOr:
		for _, child := range node.Children {
			s.validateNode(child, result)
		}
	case OpEquals, OpLike, OpGreaterOrEqual, OpLessThan, OpMemberOf:
		if !allFields[node.Field] {
			*result = multierror.Append(*result, errors.Errorf("unknown field %q", node.Field))
			return
		}
		if join, ok := joinForField[node.Field]; ok && !s.HasJoin(join) {
			*result = multierror.Append(*result,
				errors.Errorf("field %q requires join %q", node.Field, join))
		}
	default:
		*result = multierror.Append(*result, errors.Errorf("unknown predicate op %q", node.Op))
	}
}
