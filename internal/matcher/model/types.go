package model

import "time"

type (
	ClusterStatus     string
	CommandStatus     string
	ApplicationStatus string
)

const (
	// ClusterUp is the only cluster status considered viable for job execution.
	ClusterUp           ClusterStatus = "UP"
	ClusterOutOfService ClusterStatus = "OUT_OF_SERVICE"
	ClusterTerminated   ClusterStatus = "TERMINATED"

	CommandActive     CommandStatus = "ACTIVE"
	CommandDeprecated CommandStatus = "DEPRECATED"
	CommandInactive   CommandStatus = "INACTIVE"

	ApplicationActive     ApplicationStatus = "ACTIVE"
	ApplicationDeprecated ApplicationStatus = "DEPRECATED"
	ApplicationInactive   ApplicationStatus = "INACTIVE"
)

var AllClusterStatuses = []ClusterStatus{
	ClusterUp,
	ClusterOutOfService,
	ClusterTerminated,
}

// Cluster is a compute cluster that jobs can be matched onto.
// Entities are owned by the persistence layer; the query layer only reads them.
type Cluster struct {
	Id      string
	Name    string
	Status  ClusterStatus
	Updated time.Time
	// Tags is an unordered set, membership-tested by the query layer.
	Tags []string
	// CommandIds lists the commands this cluster can run, in configured order.
	CommandIds []string
}

// Command is an executable a cluster can run, optionally backed by an application.
type Command struct {
	Id     string
	Name   string
	Status CommandStatus
	// ApplicationId is empty if the command has no application dependency.
	ApplicationId string
}

type Application struct {
	Id     string
	Name   string
	Status ApplicationStatus
}

// ClusterCriteria is the set of tags a job requires of a cluster.
// It is transient and never persisted.
type ClusterCriteria struct {
	Tags []string
}
