package query

import (
	"strings"
	"time"

	"github.com/berthproject/berth/internal/matcher/model"
)

// ClusterFilter builds the predicate for a cluster search. Every argument is
// optional: blank or nil inputs simply contribute no condition, so an empty
// filter set compiles to the match-everything predicate.
//
// Name is matched with the executor's pattern syntax (SQL LIKE semantics).
// The update-time window is half-open, [minUpdateTime, maxUpdateTime), so a
// page's upper bound can be reused as the next page's lower bound without
// double-counting the boundary row. Tags are conjoined (every tag must be
// present on the cluster); statuses are disjoined (any requested status
// matches).
func ClusterFilter(
	name string,
	statuses []model.ClusterStatus,
	tags []string,
	minUpdateTime *int64,
	maxUpdateTime *int64,
) *Spec {
	conditions := make([]*Node, 0)

	if !isBlank(name) {
		conditions = append(conditions, Like(FieldClusterName, name))
	}
	if minUpdateTime != nil {
		conditions = append(conditions, GreaterOrEqual(FieldClusterUpdated, fromEpochMillis(*minUpdateTime)))
	}
	if maxUpdateTime != nil {
		conditions = append(conditions, LessThan(FieldClusterUpdated, fromEpochMillis(*maxUpdateTime)))
	}
	for _, tag := range tags {
		conditions = append(conditions, MemberOf(FieldClusterTags, tag))
	}
	if len(statuses) > 0 {
		statusConditions := make([]*Node, 0, len(statuses))
		for _, status := range statuses {
			statusConditions = append(statusConditions, Equals(FieldClusterStatus, string(status)))
		}
		conditions = append(conditions, Or(statusConditions...))
	}

	return &Spec{Where: And(conditions...)}
}

// ResourceMatch builds the predicate selecting clusters capable of running a
// job. The command and application identifiers are optional; criteria is
// required but its tag set may be empty.
//
// The command branch is only entered when a command id or name is given, and
// it is what makes clusters viable for execution: the joined command must be
// ACTIVE and the cluster itself UP. An application filter narrows further to
// commands whose application matches and is ACTIVE. When both an id and a name
// are given for the same entity, the id wins.
//
// An application filter supplied without any command filter is ignored: the
// application join hangs off the command branch, so without a command filter
// there is nothing to attach it to. Callers relying on application narrowing
// must supply a command filter as well.
func ResourceMatch(
	applicationId string,
	applicationName string,
	commandId string,
	commandName string,
	criteria model.ClusterCriteria,
) *Spec {
	// Joins fan out to one row per qualifying command, so executors must
	// collapse duplicates back to one row per cluster.
	spec := &Spec{Distinct: true}
	conditions := make([]*Node, 0)

	if !isBlank(commandId) || !isBlank(commandName) {
		spec.Joins = append(spec.Joins, JoinClusterCommands)
		if !isBlank(commandId) {
			conditions = append(conditions, Equals(FieldCommandId, commandId))
		} else {
			conditions = append(conditions, Equals(FieldCommandName, commandName))
		}
		conditions = append(conditions, Equals(FieldCommandStatus, string(model.CommandActive)))
		conditions = append(conditions, Equals(FieldClusterStatus, string(model.ClusterUp)))

		if !isBlank(applicationId) || !isBlank(applicationName) {
			spec.Joins = append(spec.Joins, JoinCommandApplication)
			if !isBlank(applicationId) {
				conditions = append(conditions, Equals(FieldApplicationId, applicationId))
			} else {
				conditions = append(conditions, Equals(FieldApplicationName, applicationName))
			}
			conditions = append(conditions, Equals(FieldApplicationStatus, string(model.ApplicationActive)))
		}
	}

	for _, tag := range criteria.Tags {
		conditions = append(conditions, MemberOf(FieldClusterTags, tag))
	}

	spec.Where = And(conditions...)
	return spec
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func fromEpochMillis(millis int64) time.Time {
	return time.UnixMilli(millis).UTC()
}
