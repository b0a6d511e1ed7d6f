package clusterdb

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berthproject/berth/internal/matcher/model"
	"github.com/berthproject/berth/internal/matcher/query"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newCluster(name string, status model.ClusterStatus, tags []string, commandIds ...string) *model.Cluster {
	return &model.Cluster{
		Id:         uuid.NewString(),
		Name:       name,
		Status:     status,
		Updated:    baseTime,
		Tags:       tags,
		CommandIds: commandIds,
	}
}

func withClusterDb(t *testing.T, action func(*ClusterDb)) {
	t.Helper()
	db, err := NewClusterDb()
	require.NoError(t, err)
	action(db)
}

func findNames(t *testing.T, db *ClusterDb, spec *query.Spec) []string {
	t.Helper()
	clusters, err := db.FindClusters(spec)
	require.NoError(t, err)
	names := make([]string, 0, len(clusters))
	for _, cluster := range clusters {
		names = append(names, cluster.Name)
	}
	return names
}

func TestFindClusters_EmptyFilterMatchesEveryCluster(t *testing.T) {
	withClusterDb(t, func(db *ClusterDb) {
		require.NoError(t, db.UpsertClusters([]*model.Cluster{
			newCluster("prod-east", model.ClusterUp, nil),
			newCluster("prod-west", model.ClusterOutOfService, nil),
			newCluster("staging", model.ClusterTerminated, nil),
		}))

		names := findNames(t, db, query.ClusterFilter("", nil, nil, nil, nil))
		assert.ElementsMatch(t, []string{"prod-east", "prod-west", "staging"}, names)
	})
}

func TestFindClusters_NamePattern(t *testing.T) {
	withClusterDb(t, func(db *ClusterDb) {
		require.NoError(t, db.UpsertClusters([]*model.Cluster{
			newCluster("prod-east", model.ClusterUp, nil),
			newCluster("staging-east", model.ClusterUp, nil),
		}))

		names := findNames(t, db, query.ClusterFilter("prod%", nil, nil, nil, nil))
		assert.Equal(t, []string{"prod-east"}, names)

		names = findNames(t, db, query.ClusterFilter("%east", nil, nil, nil, nil))
		assert.ElementsMatch(t, []string{"prod-east", "staging-east"}, names)

		// LIKE is case-sensitive and unanchored patterns must be explicit.
		names = findNames(t, db, query.ClusterFilter("PROD%", nil, nil, nil, nil))
		assert.Empty(t, names)
		names = findNames(t, db, query.ClusterFilter("east", nil, nil, nil, nil))
		assert.Empty(t, names)
	})
}

func TestFindClusters_EveryRequestedTagMustBePresent(t *testing.T) {
	withClusterDb(t, func(db *ClusterDb) {
		require.NoError(t, db.UpsertClusters([]*model.Cluster{
			newCluster("both", model.ClusterUp, []string{"hadoop", "gpu"}),
			newCluster("one", model.ClusterUp, []string{"hadoop"}),
			newCluster("none", model.ClusterUp, nil),
		}))

		names := findNames(t, db, query.ClusterFilter("", nil, []string{"hadoop", "gpu"}, nil, nil))
		assert.Equal(t, []string{"both"}, names)
	})
}

func TestFindClusters_AnyRequestedStatusMatches(t *testing.T) {
	withClusterDb(t, func(db *ClusterDb) {
		require.NoError(t, db.UpsertClusters([]*model.Cluster{
			newCluster("up", model.ClusterUp, nil),
			newCluster("oos", model.ClusterOutOfService, nil),
			newCluster("terminated", model.ClusterTerminated, nil),
		}))

		names := findNames(t, db, query.ClusterFilter("", []model.ClusterStatus{model.ClusterUp, model.ClusterOutOfService}, nil, nil, nil))
		assert.ElementsMatch(t, []string{"up", "oos"}, names)
	})
}

func TestFindClusters_UpdateTimeWindowIsHalfOpen(t *testing.T) {
	withClusterDb(t, func(db *ClusterDb) {
		atMin := newCluster("at-min", model.ClusterUp, nil)
		atMax := newCluster("at-max", model.ClusterUp, nil)
		between := newCluster("between", model.ClusterUp, nil)

		min := baseTime.UnixMilli()
		max := baseTime.Add(time.Hour).UnixMilli()
		atMin.Updated = time.UnixMilli(min).UTC()
		atMax.Updated = time.UnixMilli(max).UTC()
		between.Updated = time.UnixMilli(min).Add(time.Minute).UTC()
		require.NoError(t, db.UpsertClusters([]*model.Cluster{atMin, atMax, between}))

		names := findNames(t, db, query.ClusterFilter("", nil, nil, &min, &max))
		assert.ElementsMatch(t, []string{"at-min", "between"}, names)
	})
}

func TestFindClusters_NameStatusTagScenario(t *testing.T) {
	withClusterDb(t, func(db *ClusterDb) {
		require.NoError(t, db.UpsertClusters([]*model.Cluster{
			newCluster("prod-east", model.ClusterUp, []string{"hadoop", "hdfs"}),
			newCluster("prod-west", model.ClusterOutOfService, []string{"hadoop"}),
		}))

		names := findNames(t, db, query.ClusterFilter("prod%", []model.ClusterStatus{model.ClusterUp}, []string{"hadoop"}, nil, nil))
		assert.Equal(t, []string{"prod-east"}, names)
	})
}

// seedCommandFixtures stores a hive command backed by an inactive application,
// so tests can tell whether the application gate is being applied.
func seedCommandFixtures(t *testing.T, db *ClusterDb) {
	t.Helper()
	require.NoError(t, db.UpsertApplications([]*model.Application{
		{Id: "app-hive", Name: "hiveApp", Status: model.ApplicationInactive},
		{Id: "app-spark", Name: "sparkApp", Status: model.ApplicationActive},
	}))
	require.NoError(t, db.UpsertCommands([]*model.Command{
		{Id: "cmd-hive", Name: "hive-cmd", Status: model.CommandActive, ApplicationId: "app-hive"},
		{Id: "cmd-spark", Name: "spark-cmd", Status: model.CommandActive, ApplicationId: "app-spark"},
		{Id: "cmd-old", Name: "hive-cmd", Status: model.CommandInactive, ApplicationId: "app-hive"},
		{Id: "cmd-bare", Name: "bare-cmd", Status: model.CommandActive},
	}))
}

func TestFindClusters_CommandFilterAppliesStatusGates(t *testing.T) {
	withClusterDb(t, func(db *ClusterDb) {
		seedCommandFixtures(t, db)
		require.NoError(t, db.UpsertClusters([]*model.Cluster{
			newCluster("up-with-hive", model.ClusterUp, []string{"gpu"}, "cmd-hive"),
			newCluster("up-with-old-hive", model.ClusterUp, []string{"gpu"}, "cmd-old"),
			newCluster("down-with-hive", model.ClusterOutOfService, []string{"gpu"}, "cmd-hive"),
			newCluster("up-without-hive", model.ClusterUp, []string{"gpu"}, "cmd-spark"),
			newCluster("up-missing-tag", model.ClusterUp, nil, "cmd-hive"),
		}))

		// No application filter, so the hive application being INACTIVE is
		// irrelevant: only command and cluster gates apply.
		names := findNames(t, db, query.ResourceMatch("", "", "", "hive-cmd", model.ClusterCriteria{Tags: []string{"gpu"}}))
		assert.Equal(t, []string{"up-with-hive"}, names)
	})
}

func TestFindClusters_ApplicationFilterAddsApplicationGate(t *testing.T) {
	withClusterDb(t, func(db *ClusterDb) {
		seedCommandFixtures(t, db)
		require.NoError(t, db.UpsertClusters([]*model.Cluster{
			newCluster("hive-cluster", model.ClusterUp, nil, "cmd-hive"),
			newCluster("spark-cluster", model.ClusterUp, nil, "cmd-spark"),
			newCluster("bare-cluster", model.ClusterUp, nil, "cmd-bare"),
		}))

		// sparkApp is ACTIVE, so spark-cluster qualifies.
		names := findNames(t, db, query.ResourceMatch("", "sparkApp", "", "spark-cmd", model.ClusterCriteria{}))
		assert.Equal(t, []string{"spark-cluster"}, names)

		// hiveApp exists but is INACTIVE: the application gate now excludes it.
		names = findNames(t, db, query.ResourceMatch("", "hiveApp", "", "hive-cmd", model.ClusterCriteria{}))
		assert.Empty(t, names)

		// Commands without an application drop out of the extended join chain.
		names = findNames(t, db, query.ResourceMatch("", "sparkApp", "", "bare-cmd", model.ClusterCriteria{}))
		assert.Empty(t, names)
	})
}

func TestFindClusters_ApplicationFilterWithoutCommandFilterIsIgnored(t *testing.T) {
	withClusterDb(t, func(db *ClusterDb) {
		seedCommandFixtures(t, db)
		require.NoError(t, db.UpsertClusters([]*model.Cluster{
			newCluster("hive-cluster", model.ClusterUp, nil, "cmd-hive"),
			newCluster("unrelated", model.ClusterTerminated, nil),
		}))

		// Without a command filter there is no join to hang the application
		// filter on, so every cluster matches regardless of "myApp".
		names := findNames(t, db, query.ResourceMatch("", "myApp", "", "", model.ClusterCriteria{Tags: []string{}}))
		assert.ElementsMatch(t, []string{"hive-cluster", "unrelated"}, names)
	})
}

func TestFindClusters_DistinctSuppressesJoinFanOut(t *testing.T) {
	withClusterDb(t, func(db *ClusterDb) {
		require.NoError(t, db.UpsertCommands([]*model.Command{
			{Id: "cmd-a", Name: "hive-cmd", Status: model.CommandActive},
			{Id: "cmd-b", Name: "hive-cmd", Status: model.CommandActive},
		}))
		require.NoError(t, db.UpsertClusters([]*model.Cluster{
			newCluster("doubled", model.ClusterUp, nil, "cmd-a", "cmd-b"),
		}))

		spec := query.ResourceMatch("", "", "", "hive-cmd", model.ClusterCriteria{})
		require.True(t, spec.Distinct)
		names := findNames(t, db, spec)
		assert.Equal(t, []string{"doubled"}, names)

		// Without the distinct requirement the join fans out to one result
		// per qualifying command.
		spec.Distinct = false
		names = findNames(t, db, spec)
		assert.Equal(t, []string{"doubled", "doubled"}, names)
	})
}

func TestFindClusters_CommandIdFilter(t *testing.T) {
	withClusterDb(t, func(db *ClusterDb) {
		seedCommandFixtures(t, db)
		require.NoError(t, db.UpsertClusters([]*model.Cluster{
			newCluster("hive-cluster", model.ClusterUp, nil, "cmd-hive"),
			newCluster("spark-cluster", model.ClusterUp, nil, "cmd-spark"),
		}))

		names := findNames(t, db, query.ResourceMatch("", "", "cmd-spark", "", model.ClusterCriteria{}))
		assert.Equal(t, []string{"spark-cluster"}, names)
	})
}

func TestFindClusters_UnresolvableCommandReferenceDropsTuple(t *testing.T) {
	withClusterDb(t, func(db *ClusterDb) {
		require.NoError(t, db.UpsertClusters([]*model.Cluster{
			newCluster("dangling", model.ClusterUp, nil, "cmd-missing"),
		}))

		names := findNames(t, db, query.ResourceMatch("", "", "cmd-missing", "", model.ClusterCriteria{}))
		assert.Empty(t, names)
	})
}

func TestFindClusters_RejectsInvalidSpec(t *testing.T) {
	withClusterDb(t, func(db *ClusterDb) {
		spec := &query.Spec{Where: query.And(query.Equals(query.FieldCommandName, "hive-cmd"))}
		_, err := db.FindClusters(spec)
		assert.Error(t, err)
	})
}

func TestUpsertClusters_ReplacesExisting(t *testing.T) {
	withClusterDb(t, func(db *ClusterDb) {
		cluster := newCluster("prod-east", model.ClusterUp, nil)
		require.NoError(t, db.UpsertClusters([]*model.Cluster{cluster}))

		updated := *cluster
		updated.Status = model.ClusterTerminated
		require.NoError(t, db.UpsertClusters([]*model.Cluster{&updated}))

		names := findNames(t, db, query.ClusterFilter("", []model.ClusterStatus{model.ClusterUp}, nil, nil, nil))
		assert.Empty(t, names)
		names = findNames(t, db, query.ClusterFilter("", []model.ClusterStatus{model.ClusterTerminated}, nil, nil, nil))
		assert.Equal(t, []string{"prod-east"}, names)
	})
}
