package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aomanu/cidrd/pkg/metrics"
	"github.com/aomanu/cidrd/pkg/models"
	"github.com/aomanu/cidrd/pkg/scheduler"
	"github.com/aomanu/cidrd/pkg/worker"
)

// These tests run the real job pipeline against the container: enqueue
// through the store, process with the worker, verify the cidr table.

func enqueue(t *testing.T, store *Store, action models.Action, list *models.List, cidrs []string, ttl *int64) {
	t.Helper()
	job := models.NewCidrJob(action, list, cidrs, ttl)
	require.NoError(t, store.EnqueueJob(context.Background(), job))
}

func TestPipelineSafeCarvesDeny(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	w := worker.New(store, metrics.New(), time.Second, true)

	alice := createTestUser(t, store, "alice_01")
	deny := createTestList(t, store, alice.ID, "DENY_A", models.ListTypeDeny, true)
	safe := createTestList(t, store, alice.ID, "SAFE_A", models.ListTypeSafe, true)

	enqueue(t, store, models.ActionAdd, deny, []string{"66.66.1.0/24"}, nil)
	require.NoError(t, w.RunOnce(ctx))

	enqueue(t, store, models.ActionAdd, safe, []string{"66.66.1.0/26"}, nil)
	require.NoError(t, w.RunOnce(ctx))

	assert.ElementsMatch(t,
		[]string{"66.66.1.64/26", "66.66.1.128/25"},
		listAddresses(t, store, "DENY_A"))
	assert.Equal(t, []string{"66.66.1.0/26"}, listAddresses(t, store, "SAFE_A"))
}

func TestPipelineDenyAdditionTrimmedBySafe(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	w := worker.New(store, metrics.New(), time.Second, true)

	alice := createTestUser(t, store, "alice_01")
	deny := createTestList(t, store, alice.ID, "DENY_A", models.ListTypeDeny, true)
	safe := createTestList(t, store, alice.ID, "SAFE_A", models.ListTypeSafe, true)

	enqueue(t, store, models.ActionAdd, safe, []string{"13.1.0.0/16"}, nil)
	require.NoError(t, w.RunOnce(ctx))

	// Fully covered by SAFE: nothing lands in the DENY list.
	enqueue(t, store, models.ActionAdd, deny, []string{"13.1.1.0/24"}, nil)
	require.NoError(t, w.RunOnce(ctx))

	assert.Empty(t, listAddresses(t, store, "DENY_A"))
}

func TestPipelineEnableDeferredSafeList(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	w := worker.New(store, metrics.New(), time.Second, true)

	alice := createTestUser(t, store, "alice_01")
	deny := createTestList(t, store, alice.ID, "DENY_A", models.ListTypeDeny, true)
	safe := createTestList(t, store, alice.ID, "SAFE_A", models.ListTypeSafe, false)

	enqueue(t, store, models.ActionAdd, deny, []string{"66.66.1.0/24"}, nil)
	enqueue(t, store, models.ActionAdd, safe, []string{"66.66.1.0/26"}, nil)
	require.NoError(t, w.RunOnce(ctx))

	// Disabled SAFE coverage has no effect yet.
	assert.Equal(t, []string{"66.66.1.0/24"}, listAddresses(t, store, "DENY_A"))

	// Enabling the list fires the deferred cleanup, in the same
	// transaction as the list write.
	safe.Enabled = true
	job := models.NewCidrJob(models.ActionUpdate, safe, nil, nil)
	require.NoError(t, store.UpdateList(ctx, safe, job))
	require.NoError(t, w.RunOnce(ctx))

	assert.ElementsMatch(t,
		[]string{"66.66.1.64/26", "66.66.1.128/25"},
		listAddresses(t, store, "DENY_A"))
}

func TestPipelineRedisabledSafeListLeavesDenyAlone(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	w := worker.New(store, metrics.New(), time.Second, true)

	alice := createTestUser(t, store, "alice_01")
	deny := createTestList(t, store, alice.ID, "DENY_A", models.ListTypeDeny, true)
	safe := createTestList(t, store, alice.ID, "SAFE_A", models.ListTypeSafe, false)

	enqueue(t, store, models.ActionAdd, deny, []string{"66.66.1.0/24"}, nil)
	enqueue(t, store, models.ActionAdd, safe, []string{"66.66.1.0/26"}, nil)
	require.NoError(t, w.RunOnce(ctx))

	safe.Enabled = true
	job := models.NewCidrJob(models.ActionUpdate, safe, nil, nil)
	require.NoError(t, store.UpdateList(ctx, safe, job))

	// The list flips back to disabled before the worker drains the
	// update job; the deferred cleanup must not run.
	safe.Enabled = false
	require.NoError(t, store.UpdateList(ctx, safe, nil))
	require.NoError(t, w.RunOnce(ctx))

	assert.Equal(t, []string{"66.66.1.0/24"}, listAddresses(t, store, "DENY_A"))
}

func TestPipelineDeleteSplitsRows(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	w := worker.New(store, metrics.New(), time.Second, true)

	alice := createTestUser(t, store, "alice_01")
	deny := createTestList(t, store, alice.ID, "DENY_A", models.ListTypeDeny, true)

	enqueue(t, store, models.ActionAdd, deny, []string{"66.66.1.0/24"}, nil)
	enqueue(t, store, models.ActionDelete, deny, []string{"66.66.1.0/26"}, nil)
	require.NoError(t, w.RunOnce(ctx))

	assert.ElementsMatch(t,
		[]string{"66.66.1.64/26", "66.66.1.128/25"},
		listAddresses(t, store, "DENY_A"))
}

func TestPipelineTTLReap(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	m := metrics.New()
	w := worker.New(store, m, time.Second, true)
	reaper := scheduler.New(store, m, time.Second)

	alice := createTestUser(t, store, "alice_01")
	deny := createTestList(t, store, alice.ID, "DENY_A", models.ListTypeDeny, true)

	ttl := int64(1)
	enqueue(t, store, models.ActionAdd, deny, []string{"8.8.8.0/24"}, &ttl)
	enqueue(t, store, models.ActionAdd, deny, []string{"9.9.9.0/24"}, nil)
	require.NoError(t, w.RunOnce(ctx))
	require.Len(t, listAddresses(t, store, "DENY_A"), 2)

	time.Sleep(1100 * time.Millisecond)
	require.NoError(t, reaper.RunOnce(ctx))

	assert.Equal(t, []string{"9.9.9.0/24"}, listAddresses(t, store, "DENY_A"))
}
