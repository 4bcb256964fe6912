package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/gnomegl/gitgraph/internal/models"
)

type Counts struct {
	Repositories int
	Users        int
	Edges        int
}

func (c *Counts) add(o Counts) {
	c.Repositories += o.Repositories
	c.Users += o.Users
	c.Edges += o.Edges
}

// Writer commits batches to a Store. Within one batch it writes all
// repositories, then all users, then all edges, so every edge's endpoints are
// committed first. Flushes are serialised, and a user or edge already
// committed by this Writer is not written again, except that a completed
// profile replaces a user first written from a bare stargazer record.
type Writer struct {
	store Store

	mu          sync.Mutex
	schemaReady bool
	repos       map[string]struct{}
	users       map[string]bool // login -> written with a full profile
	edges       map[string]struct{}
	totals      Counts
}

func NewWriter(store Store) *Writer {
	return &Writer{
		store: store,
		repos: make(map[string]struct{}),
		users: make(map[string]bool),
		edges: make(map[string]struct{}),
	}
}

// EnsureSchema establishes the uniqueness constraints on repository and
// user keys.
func (w *Writer) EnsureSchema(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ensureSchema(ctx)
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.schemaReady {
		return nil
	}
	if err := w.store.EnsureUniqueConstraint(ctx, models.RepositoryLabel, models.RepositoryKey); err != nil {
		return fmt.Errorf("repository constraint: %w", err)
	}
	if err := w.store.EnsureUniqueConstraint(ctx, models.UserLabel, models.UserKey); err != nil {
		return fmt.Errorf("user constraint: %w", err)
	}
	w.schemaReady = true
	return nil
}

// Flush commits b and returns how many entities were new to this Writer.
// Nothing is written if an edge of b points at an entity that neither b nor
// an earlier flush committed.
func (w *Writer) Flush(ctx context.Context, b *Batch) (Counts, error) {
	var committed Counts
	if b.Empty() {
		return committed, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ensureSchema(ctx); err != nil {
		return committed, err
	}

	repos := b.Repositories()
	var users []models.UserNode
	newUsers := 0
	for _, u := range b.Users() {
		complete, written := w.users[u.Login]
		switch {
		case !written:
			newUsers++
		case complete || !b.Complete(u.Login):
			continue
		}
		users = append(users, u)
	}
	var edges []models.StarsEdge
	for _, e := range b.Stars() {
		if _, ok := w.edges[e.Key()]; ok {
			continue
		}
		if !w.hasRepo(b, e.Repository) || !w.hasUser(b, e.User) {
			return committed, fmt.Errorf("%w: %s -> %s", ErrDanglingEdge, e.User, e.Repository)
		}
		edges = append(edges, e)
	}

	if err := w.writeRepositories(ctx, repos); err != nil {
		return committed, err
	}
	for _, r := range repos {
		if _, ok := w.repos[r.FullName]; !ok {
			w.repos[r.FullName] = struct{}{}
			committed.Repositories++
		}
	}

	if err := w.writeUsers(ctx, users); err != nil {
		w.totals.add(committed)
		return committed, err
	}
	for _, u := range users {
		w.users[u.Login] = b.Complete(u.Login)
	}
	committed.Users = newUsers

	if err := w.writeEdges(ctx, edges); err != nil {
		w.totals.add(committed)
		return committed, err
	}
	for _, e := range edges {
		w.edges[e.Key()] = struct{}{}
	}
	committed.Edges = len(edges)

	w.totals.add(committed)
	return committed, nil
}

// Totals reports the distinct entities committed so far.
func (w *Writer) Totals() Counts {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.totals
}

func (w *Writer) hasRepo(b *Batch, fullName string) bool {
	if _, ok := w.repos[fullName]; ok {
		return true
	}
	_, ok := b.repos[fullName]
	return ok
}

func (w *Writer) hasUser(b *Batch, login string) bool {
	if _, ok := w.users[login]; ok {
		return true
	}
	return b.HasUser(login)
}

func (w *Writer) writeRepositories(ctx context.Context, repos []models.RepositoryNode) error {
	if len(repos) == 0 {
		return nil
	}
	if bs, ok := w.store.(BatchStore); ok {
		rows := make([]NodeRow, 0, len(repos))
		for _, r := range repos {
			rows = append(rows, NodeRow{Key: r.FullName, Attrs: r.Attributes()})
		}
		if err := bs.UpsertNodes(ctx, models.RepositoryLabel, models.RepositoryKey, rows); err != nil {
			return fmt.Errorf("write repositories: %w", err)
		}
		return nil
	}
	for _, r := range repos {
		if err := w.store.UpsertNode(ctx, models.RepositoryLabel, models.RepositoryKey, r.FullName, r.Attributes()); err != nil {
			return fmt.Errorf("write repository %s: %w", r.FullName, err)
		}
	}
	return nil
}

func (w *Writer) writeUsers(ctx context.Context, users []models.UserNode) error {
	if len(users) == 0 {
		return nil
	}
	if bs, ok := w.store.(BatchStore); ok {
		rows := make([]NodeRow, 0, len(users))
		for _, u := range users {
			rows = append(rows, NodeRow{Key: u.Login, Attrs: u.Attributes()})
		}
		if err := bs.UpsertNodes(ctx, models.UserLabel, models.UserKey, rows); err != nil {
			return fmt.Errorf("write users: %w", err)
		}
		return nil
	}
	for _, u := range users {
		if err := w.store.UpsertNode(ctx, models.UserLabel, models.UserKey, u.Login, u.Attributes()); err != nil {
			return fmt.Errorf("write user %s: %w", u.Login, err)
		}
	}
	return nil
}

func (w *Writer) writeEdges(ctx context.Context, edges []models.StarsEdge) error {
	if len(edges) == 0 {
		return nil
	}
	if bs, ok := w.store.(BatchStore); ok {
		rows := make([]EdgeRow, 0, len(edges))
		for _, e := range edges {
			rows = append(rows, EdgeRow{From: e.User, To: e.Repository})
		}
		if err := bs.UpsertEdges(ctx, models.StarsLabel, models.UserLabel, models.RepositoryLabel, rows); err != nil {
			return fmt.Errorf("write stars: %w", err)
		}
		return nil
	}
	for _, e := range edges {
		if err := w.store.UpsertEdge(ctx, models.StarsLabel, models.UserLabel, e.User, models.RepositoryLabel, e.Repository); err != nil {
			return fmt.Errorf("write star %s -> %s: %w", e.User, e.Repository, err)
		}
	}
	return nil
}
