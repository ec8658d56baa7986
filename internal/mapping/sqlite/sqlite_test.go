package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuriy-kovalchuk/yk-speeddial/internal/mapping"
)

func setupTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "speeddial.db")
	s, err := Open(logr.Discard(), path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func mustNew(t *testing.T, hostname, addr string, port int) mapping.Mapping {
	t.Helper()
	m, err := mapping.New(hostname, addr, port)
	require.NoError(t, err)
	return m
}

func TestStore_AddAndGet(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestStore(t)

	m := mustNew(t, "app.home.local", "192.168.1.50", 8080)
	require.NoError(t, s.Add(ctx, m))

	got, err := s.GetByHostname(ctx, "App.Home.Local")
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, "192.168.1.50", got.TargetAddress)
	assert.Equal(t, 8080, got.TargetPort)
	assert.True(t, got.Active)
	assert.True(t, got.CreatedAt.Equal(m.CreatedAt))

	got, err = s.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "app.home.local", got.Hostname)

	_, err = s.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, mapping.ErrNotFound)
	_, err = s.GetByHostname(ctx, "missing.local")
	assert.ErrorIs(t, err, mapping.ErrNotFound)
}

func TestStore_AddReplacesActive(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestStore(t)

	first := mustNew(t, "app.home.local", "10.0.0.1", 80)
	second := mustNew(t, "APP.home.local", "10.0.0.2", 81)
	require.NoError(t, s.Add(ctx, first))
	require.NoError(t, s.Add(ctx, second))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, second.ID, list[0].ID)

	history, err := s.History(ctx, "app.home.local")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, first.ID, history[0].ID)
	assert.False(t, history[0].Active)
	require.NotNil(t, history[0].RemovedAt)
	assert.True(t, history[1].Active)
}

func TestStore_RemoveByHostname(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestStore(t)

	m := mustNew(t, "app.home.local", "10.0.0.1", 80)
	require.NoError(t, s.Add(ctx, m))

	removed, err := s.RemoveByHostname(ctx, "app.home.local")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.RemoveByHostname(ctx, "app.home.local")
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = s.GetByID(ctx, m.ID)
	assert.ErrorIs(t, err, mapping.ErrNotFound)

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_ListInsertionOrderAndReopen(t *testing.T) {
	ctx := context.Background()
	s, path := setupTestStore(t)

	hosts := []string{"c.local", "a.local", "b.local"}
	for _, h := range hosts {
		require.NoError(t, s.Add(ctx, mustNew(t, h, "10.0.0.1", 80)))
	}
	require.NoError(t, s.Close())

	reopened, err := Open(logr.Discard(), path)
	require.NoError(t, err)
	defer reopened.Close()

	list, err := reopened.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, h := range hosts {
		assert.Equal(t, h, list[i].Hostname)
	}
}

func TestStore_UniqueActiveHostname(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestStore(t)
	require.NoError(t, s.Add(ctx, mustNew(t, "app.local", "10.0.0.1", 80)))

	// Bypass Add to prove the index itself enforces the invariant.
	_, err := s.db.Exec(`INSERT INTO mappings (id, hostname, target_address, target_port, created_at, active) VALUES ('x', 'app.local', '10.0.0.2', 80, '2024-01-01T00:00:00Z', 1)`)
	assert.Error(t, err)
}

func TestStore_ConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := mapping.New(fmt.Sprintf("svc%d.local", i%4), "10.0.0.1", 80+i)
			if err != nil {
				t.Error(err)
				return
			}
			if err := s.Add(ctx, m); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 4)
}
