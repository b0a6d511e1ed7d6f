package repository

import (
	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/berthproject/berth/internal/matcher/query"
)

var (
	// Tables
	clusterTable        = goqu.T("cluster")
	commandTable        = goqu.T("command")
	applicationTable    = goqu.T("application")
	clusterCommandTable = goqu.T("cluster_command")
	clusterTagTable     = goqu.T("cluster_tag")

	// Columns: cluster table
	cluster_id      = goqu.I("cluster.id")
	cluster_name    = goqu.I("cluster.name")
	cluster_status  = goqu.I("cluster.status")
	cluster_updated = goqu.I("cluster.updated")

	// Columns: cluster_tag table
	clusterTag_clusterId = goqu.I("cluster_tag.cluster_id")
	clusterTag_tag       = goqu.I("cluster_tag.tag")

	// Columns: cluster_command table
	clusterCommand_clusterId    = goqu.I("cluster_command.cluster_id")
	clusterCommand_commandId    = goqu.I("cluster_command.command_id")
	clusterCommand_commandOrder = goqu.I("cluster_command.command_order")

	// Columns: command table
	command_id            = goqu.I("command.id")
	command_name          = goqu.I("command.name")
	command_status        = goqu.I("command.status")
	command_applicationId = goqu.I("command.application_id")

	// Columns: application table
	application_id     = goqu.I("application.id")
	application_name   = goqu.I("application.name")
	application_status = goqu.I("application.status")
)

// columnForField maps predicate field names onto columns. cluster.tags is
// absent: tag membership is compiled as a subquery against cluster_tag.
var columnForField = map[string]exp.IdentifierExpression{
	query.FieldClusterName:       cluster_name,
	query.FieldClusterStatus:     cluster_status,
	query.FieldClusterUpdated:    cluster_updated,
	query.FieldCommandId:         command_id,
	query.FieldCommandName:       command_name,
	query.FieldCommandStatus:     command_status,
	query.FieldApplicationId:     application_id,
	query.FieldApplicationName:   application_name,
	query.FieldApplicationStatus: application_status,
}
