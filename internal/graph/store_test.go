package graph

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testStore interface {
	BatchStore
	Reader
}

func storeFactories() map[string]func(t *testing.T) testStore {
	return map[string]func(t *testing.T) testStore{
		"memory": func(t *testing.T) testStore {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) testStore {
			s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "graph.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close(context.Background()) })
			return s
		},
	}
}

func TestStoreUpsertNodeMergesAttributes(t *testing.T) {
	for name, open := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			require.NoError(t, s.EnsureUniqueConstraint(ctx, "Repository", "full_name"))
			require.NoError(t, s.EnsureUniqueConstraint(ctx, "Repository", "full_name"))

			require.NoError(t, s.UpsertNode(ctx, "Repository", "full_name", "a/root",
				map[string]any{"language": "Go", "description": "first"}))
			require.NoError(t, s.UpsertNode(ctx, "Repository", "full_name", "a/root",
				map[string]any{"description": "second"}))

			snap, err := s.Snapshot(ctx)
			require.NoError(t, err)
			require.Len(t, snap.Nodes, 1)
			assert.Equal(t, "a/root", snap.Nodes[0].Key)
			assert.Equal(t, "Go", snap.Nodes[0].Props["language"])
			assert.Equal(t, "second", snap.Nodes[0].Props["description"])
		})
	}
}

func TestStoreRejectsUnknownLabel(t *testing.T) {
	for name, open := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			err := s.UpsertNode(ctx, "User", "login", "u1", nil)
			assert.ErrorIs(t, err, ErrUnknownLabel)

			require.NoError(t, s.EnsureUniqueConstraint(ctx, "User", "login"))
			err = s.UpsertNode(ctx, "User", "id", "u1", nil)
			assert.ErrorIs(t, err, ErrUnknownLabel)
		})
	}
}

func TestStoreConstraintKeyConflict(t *testing.T) {
	for name, open := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			require.NoError(t, s.EnsureUniqueConstraint(ctx, "User", "login"))
			assert.Error(t, s.EnsureUniqueConstraint(ctx, "User", "email"))
			assert.Error(t, s.EnsureUniqueConstraint(ctx, "User; DROP", "login"))
		})
	}
}

func TestStoreEdgesAreIdempotent(t *testing.T) {
	for name, open := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			require.NoError(t, s.EnsureUniqueConstraint(ctx, "Repository", "full_name"))
			require.NoError(t, s.EnsureUniqueConstraint(ctx, "User", "login"))
			require.NoError(t, s.UpsertNode(ctx, "Repository", "full_name", "a/root", nil))
			require.NoError(t, s.UpsertNode(ctx, "User", "login", "u1", map[string]any{"name": "U"}))

			for i := 0; i < 3; i++ {
				require.NoError(t, s.UpsertEdge(ctx, "STARS", "User", "u1", "Repository", "a/root"))
			}

			snap, err := s.Snapshot(ctx)
			require.NoError(t, err)
			require.Len(t, snap.Edges, 1)
			assert.Equal(t, Edge{Label: "STARS", FromLabel: "User", FromKey: "u1", ToLabel: "Repository", ToKey: "a/root"}, snap.Edges[0])
		})
	}
}

func TestStoreEdgeRequiresEndpoints(t *testing.T) {
	for name, open := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			require.NoError(t, s.EnsureUniqueConstraint(ctx, "Repository", "full_name"))
			require.NoError(t, s.EnsureUniqueConstraint(ctx, "User", "login"))
			require.NoError(t, s.UpsertNode(ctx, "User", "login", "u1", nil))

			err := s.UpsertEdge(ctx, "STARS", "User", "u1", "Repository", "a/missing")
			assert.ErrorIs(t, err, ErrMissingEndpoint)

			err = s.UpsertEdges(ctx, "STARS", "User", "Repository", []EdgeRow{{From: "u1", To: "a/missing"}})
			assert.ErrorIs(t, err, ErrMissingEndpoint)

			snap, err := s.Snapshot(ctx)
			require.NoError(t, err)
			assert.Empty(t, snap.Edges)
		})
	}
}

func TestStoreBatchUpserts(t *testing.T) {
	for name, open := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			require.NoError(t, s.EnsureUniqueConstraint(ctx, "Repository", "full_name"))
			require.NoError(t, s.EnsureUniqueConstraint(ctx, "User", "login"))

			require.NoError(t, s.UpsertNodes(ctx, "Repository", "full_name", []NodeRow{
				{Key: "a/root", Attrs: map[string]any{"stargazers_count": 2}},
				{Key: "b/other", Attrs: map[string]any{"stargazers_count": 0}},
			}))
			require.NoError(t, s.UpsertNodes(ctx, "User", "login", []NodeRow{
				{Key: "u1", Attrs: map[string]any{"name": ""}},
				{Key: "u2", Attrs: map[string]any{"name": ""}},
			}))
			require.NoError(t, s.UpsertEdges(ctx, "STARS", "User", "Repository", []EdgeRow{
				{From: "u1", To: "a/root"},
				{From: "u2", To: "a/root"},
				{From: "u1", To: "b/other"},
				{From: "u1", To: "a/root"},
			}))

			snap, err := s.Snapshot(ctx)
			require.NoError(t, err)
			assert.Len(t, snap.Nodes, 4)
			assert.Len(t, snap.Edges, 3)

			repos := snap.Repositories()
			require.Len(t, repos, 2)
			assert.Equal(t, "a/root", repos[0].FullName)
			assert.Equal(t, 2, repos[0].StargazersCount)
		})
	}
}

func TestSQLiteStorePersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "graph.db")

	s, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.EnsureUniqueConstraint(ctx, "User", "login"))
	require.NoError(t, s.UpsertNode(ctx, "User", "login", "u1", map[string]any{"bio": "hi"}))
	require.NoError(t, s.Close(ctx))

	s, err = NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer s.Close(ctx)
	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Users(), 1)
	assert.Equal(t, "hi", snap.Users()[0].Bio)
}

func TestMemoryStoreFailWrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.EnsureUniqueConstraint(ctx, "User", "login"))

	boom := errors.New("disk full")
	m.FailWrites(boom)
	assert.ErrorIs(t, m.UpsertNode(ctx, "User", "login", "u1", nil), boom)

	m.FailWrites(nil)
	assert.NoError(t, m.UpsertNode(ctx, "User", "login", "u1", nil))
	assert.True(t, m.HasNode("User", "u1"))
}
