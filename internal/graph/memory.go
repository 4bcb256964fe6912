package graph

import (
	"context"
	"fmt"
	"maps"
	"sync"
)

func nodeKey(label, key string) string {
	return label + "|" + key
}

func edgeKey(label, fromLabel, fromKey, toLabel, toKey string) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", label, fromLabel, fromKey, toLabel, toKey)
}

// MemoryStore keeps the graph in maps. It backs dry runs and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	constraints map[string]string
	nodes       map[string]*Node
	edges       map[string]*Edge
	nodeWrites  int
	edgeWrites  int
	failWith    error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		constraints: make(map[string]string),
		nodes:       make(map[string]*Node),
		edges:       make(map[string]*Edge),
	}
}

// FailWrites makes every later write return err; nil restores normal
// behaviour.
func (m *MemoryStore) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

func (m *MemoryStore) EnsureUniqueConstraint(ctx context.Context, label, keyField string) error {
	if err := checkIdentifiers(label, keyField); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.constraints[label]; ok && existing != keyField {
		return fmt.Errorf("label %s already keyed by %s", label, existing)
	}
	m.constraints[label] = keyField
	return nil
}

func (m *MemoryStore) UpsertNode(ctx context.Context, label, keyField, keyValue string, attrs map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if m.constraints[label] != keyField {
		return fmt.Errorf("%w: %s.%s", ErrUnknownLabel, label, keyField)
	}
	m.upsertNode(label, keyValue, attrs)
	return nil
}

// UpsertNodes applies every row or none of them.
func (m *MemoryStore) UpsertNodes(ctx context.Context, label, keyField string, rows []NodeRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if m.constraints[label] != keyField {
		return fmt.Errorf("%w: %s.%s", ErrUnknownLabel, label, keyField)
	}
	for _, row := range rows {
		m.upsertNode(label, row.Key, row.Attrs)
	}
	return nil
}

func (m *MemoryStore) upsertNode(label, keyValue string, attrs map[string]any) {
	m.nodeWrites++
	k := nodeKey(label, keyValue)
	node, ok := m.nodes[k]
	if !ok {
		node = &Node{Label: label, Key: keyValue, Props: make(map[string]any)}
		m.nodes[k] = node
	}
	maps.Copy(node.Props, attrs)
}

func (m *MemoryStore) UpsertEdge(ctx context.Context, edgeLabel, fromLabel, fromKey, toLabel, toKey string) error {
	return m.UpsertEdges(ctx, edgeLabel, fromLabel, toLabel, []EdgeRow{{From: fromKey, To: toKey}})
}

// UpsertEdges applies every row or none of them.
func (m *MemoryStore) UpsertEdges(ctx context.Context, edgeLabel, fromLabel, toLabel string, rows []EdgeRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for _, row := range rows {
		if _, ok := m.nodes[nodeKey(fromLabel, row.From)]; !ok {
			return fmt.Errorf("%w: %s %s", ErrMissingEndpoint, fromLabel, row.From)
		}
		if _, ok := m.nodes[nodeKey(toLabel, row.To)]; !ok {
			return fmt.Errorf("%w: %s %s", ErrMissingEndpoint, toLabel, row.To)
		}
	}
	for _, row := range rows {
		m.upsertEdge(edgeLabel, fromLabel, row.From, toLabel, row.To)
	}
	return nil
}

func (m *MemoryStore) upsertEdge(edgeLabel, fromLabel, fromKey, toLabel, toKey string) {
	m.edgeWrites++
	k := edgeKey(edgeLabel, fromLabel, fromKey, toLabel, toKey)
	if _, exists := m.edges[k]; exists {
		return
	}
	m.edges[k] = &Edge{
		Label:     edgeLabel,
		FromLabel: fromLabel,
		FromKey:   fromKey,
		ToLabel:   toLabel,
		ToKey:     toKey,
	}
}

func (m *MemoryStore) HasNode(label, key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.nodes[nodeKey(label, key)]
	return ok
}

func (m *MemoryStore) NodeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}

func (m *MemoryStore) EdgeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.edges)
}

// Writes reports how many node and edge writes reached the store.
func (m *MemoryStore) Writes() (nodes, edges int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nodeWrites, m.edgeWrites
}

func (m *MemoryStore) Snapshot(ctx context.Context) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := &Snapshot{
		Nodes: make([]Node, 0, len(m.nodes)),
		Edges: make([]Edge, 0, len(m.edges)),
	}
	for _, n := range m.nodes {
		snap.Nodes = append(snap.Nodes, Node{Label: n.Label, Key: n.Key, Props: maps.Clone(n.Props)})
	}
	for _, e := range m.edges {
		snap.Edges = append(snap.Edges, *e)
	}
	snap.sort()
	return snap, nil
}

func (m *MemoryStore) Close(ctx context.Context) error {
	return nil
}
