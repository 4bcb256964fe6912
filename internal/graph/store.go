// Package graph persists the discovered star graph. Stores expose a narrow
// property-graph interface (unique constraints, node upsert, edge upsert) and
// the Writer commits staged batches through it in dependency order.
package graph

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
)

var (
	ErrMissingEndpoint = errors.New("edge endpoint not in store")
	ErrUnknownLabel    = errors.New("no unique constraint for label")
	ErrDanglingEdge    = errors.New("edge endpoint not committed")
)

// Store is any property-graph backend offering idempotent writes.
type Store interface {
	// EnsureUniqueConstraint declares keyField as the unique key of label.
	// Repeating it is a no-op.
	EnsureUniqueConstraint(ctx context.Context, label, keyField string) error
	// UpsertNode creates the node if absent, then overwrites the given
	// attributes.
	UpsertNode(ctx context.Context, label, keyField, keyValue string, attrs map[string]any) error
	// UpsertEdge creates the edge if absent; existing edges are untouched.
	// Both endpoints must already exist.
	UpsertEdge(ctx context.Context, edgeLabel, fromLabel, fromKey, toLabel, toKey string) error
	Close(ctx context.Context) error
}

type NodeRow struct {
	Key   string
	Attrs map[string]any
}

type EdgeRow struct {
	From string
	To   string
}

// BatchStore is implemented by stores that can write many rows of one kind
// in a single round trip.
type BatchStore interface {
	Store
	UpsertNodes(ctx context.Context, label, keyField string, rows []NodeRow) error
	UpsertEdges(ctx context.Context, edgeLabel, fromLabel, toLabel string, rows []EdgeRow) error
}

// Reader is implemented by stores that can dump their content.
type Reader interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

type Node struct {
	Label string
	Key   string
	Props map[string]any
}

type Edge struct {
	Label     string
	FromLabel string
	FromKey   string
	ToLabel   string
	ToKey     string
}

type Snapshot struct {
	Nodes []Node
	Edges []Edge
}

func (s *Snapshot) sort() {
	sort.Slice(s.Nodes, func(i, j int) bool {
		if s.Nodes[i].Label != s.Nodes[j].Label {
			return s.Nodes[i].Label < s.Nodes[j].Label
		}
		return s.Nodes[i].Key < s.Nodes[j].Key
	})
	sort.Slice(s.Edges, func(i, j int) bool {
		a, b := s.Edges[i], s.Edges[j]
		if a.FromKey != b.FromKey {
			return a.FromKey < b.FromKey
		}
		return a.ToKey < b.ToKey
	})
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// checkIdentifiers guards names that end up inside query text.
func checkIdentifiers(names ...string) error {
	for _, name := range names {
		if !identifier.MatchString(name) {
			return fmt.Errorf("invalid label or property name %q", name)
		}
	}
	return nil
}
