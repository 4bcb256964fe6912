package graph

import "github.com/gnomegl/gitgraph/internal/models"

// Batch stages the writes produced by one expansion step. Repositories are
// last-write-wins, users first-write-wins unless replaced by a completed
// profile, and edges a set.
type Batch struct {
	repos     map[string]models.RepositoryNode
	repoOrder []string
	users     map[string]models.UserNode
	userOrder []string
	complete  map[string]struct{}
	edges     map[string]models.StarsEdge
	edgeOrder []string
}

func NewBatch() *Batch {
	return &Batch{
		repos:    make(map[string]models.RepositoryNode),
		users:    make(map[string]models.UserNode),
		complete: make(map[string]struct{}),
		edges:    make(map[string]models.StarsEdge),
	}
}

func (b *Batch) AddRepository(repo models.RepositoryNode) {
	if repo.FullName == "" {
		return
	}
	if _, ok := b.repos[repo.FullName]; !ok {
		b.repoOrder = append(b.repoOrder, repo.FullName)
	}
	b.repos[repo.FullName] = repo
}

// AddUser stages a user unless one with the same login is already staged.
func (b *Batch) AddUser(user models.UserNode) bool {
	if user.Login == "" {
		return false
	}
	if _, ok := b.users[user.Login]; ok {
		return false
	}
	b.users[user.Login] = user
	b.userOrder = append(b.userOrder, user.Login)
	return true
}

// ReplaceUser overwrites a staged user with a completed profile. Users that
// were never staged are ignored.
func (b *Batch) ReplaceUser(user models.UserNode) {
	if _, ok := b.users[user.Login]; ok {
		b.users[user.Login] = user
		b.complete[user.Login] = struct{}{}
	}
}

// Complete reports whether the staged user carries a full profile.
func (b *Batch) Complete(login string) bool {
	_, ok := b.complete[login]
	return ok
}

func (b *Batch) HasUser(login string) bool {
	_, ok := b.users[login]
	return ok
}

func (b *Batch) AddStar(edge models.StarsEdge) bool {
	if edge.User == "" || edge.Repository == "" {
		return false
	}
	k := edge.Key()
	if _, ok := b.edges[k]; ok {
		return false
	}
	b.edges[k] = edge
	b.edgeOrder = append(b.edgeOrder, k)
	return true
}

func (b *Batch) Repositories() []models.RepositoryNode {
	out := make([]models.RepositoryNode, 0, len(b.repoOrder))
	for _, k := range b.repoOrder {
		out = append(out, b.repos[k])
	}
	return out
}

func (b *Batch) Users() []models.UserNode {
	out := make([]models.UserNode, 0, len(b.userOrder))
	for _, k := range b.userOrder {
		out = append(out, b.users[k])
	}
	return out
}

func (b *Batch) Stars() []models.StarsEdge {
	out := make([]models.StarsEdge, 0, len(b.edgeOrder))
	for _, k := range b.edgeOrder {
		out = append(out, b.edges[k])
	}
	return out
}

func (b *Batch) Empty() bool {
	return b == nil || len(b.repos)+len(b.users)+len(b.edges) == 0
}
