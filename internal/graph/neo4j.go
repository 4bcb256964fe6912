package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/gnomegl/gitgraph/internal/models"
)

type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

// Neo4jStore writes through MERGE statements. The model's labels are known
// from the start so a fresh store can read back an existing graph; other
// labels are learned from EnsureUniqueConstraint.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string

	mu   sync.RWMutex
	keys map[string]string
}

func NewNeo4jStore(ctx context.Context, cfg Neo4jConfig) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("connect to neo4j at %s: %w", cfg.URI, err)
	}
	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}
	return &Neo4jStore{
		driver:   driver,
		database: database,
		keys:     modelKeys(),
	}, nil
}

func modelKeys() map[string]string {
	return map[string]string{
		models.RepositoryLabel: models.RepositoryKey,
		models.UserLabel:       models.UserKey,
	}
}

func (s *Neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   mode,
	})
}

func (s *Neo4jStore) keyField(label string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[label]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownLabel, label)
	}
	return key, nil
}

func (s *Neo4jStore) EnsureUniqueConstraint(ctx context.Context, label, keyField string) error {
	if err := checkIdentifiers(label, keyField); err != nil {
		return err
	}
	query := fmt.Sprintf(
		"CREATE CONSTRAINT %s_%s_unique IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE",
		label, keyField, label, keyField)

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	result, err := session.Run(ctx, query, nil)
	if err != nil {
		return fmt.Errorf("create constraint %s.%s: %w", label, keyField, err)
	}
	if _, err := result.Consume(ctx); err != nil {
		return fmt.Errorf("create constraint %s.%s: %w", label, keyField, err)
	}

	s.mu.Lock()
	s.keys[label] = keyField
	s.mu.Unlock()
	return nil
}

func (s *Neo4jStore) UpsertNode(ctx context.Context, label, keyField, keyValue string, attrs map[string]any) error {
	return s.UpsertNodes(ctx, label, keyField, []NodeRow{{Key: keyValue, Attrs: attrs}})
}

func (s *Neo4jStore) UpsertNodes(ctx context.Context, label, keyField string, rows []NodeRow) error {
	registered, err := s.keyField(label)
	if err != nil {
		return err
	}
	if registered != keyField {
		return fmt.Errorf("%w: %s.%s", ErrUnknownLabel, label, keyField)
	}

	params := make([]any, 0, len(rows))
	for _, row := range rows {
		params = append(params, map[string]any{"key": row.Key, "props": row.Attrs})
	}
	query := fmt.Sprintf(`
UNWIND $rows AS row
MERGE (n:%s {%s: row.key})
SET n += row.props`, label, keyField)

	_, err = s.write(ctx, query, map[string]any{"rows": params})
	if err != nil {
		return fmt.Errorf("upsert %s nodes: %w", label, err)
	}
	return nil
}

func (s *Neo4jStore) UpsertEdge(ctx context.Context, edgeLabel, fromLabel, fromKey, toLabel, toKey string) error {
	return s.UpsertEdges(ctx, edgeLabel, fromLabel, toLabel, []EdgeRow{{From: fromKey, To: toKey}})
}

// UpsertEdges merges edges between existing nodes. Rows whose endpoints are
// missing would silently match nothing, so the matched count is checked.
func (s *Neo4jStore) UpsertEdges(ctx context.Context, edgeLabel, fromLabel, toLabel string, rows []EdgeRow) error {
	if err := checkIdentifiers(edgeLabel); err != nil {
		return err
	}
	fromKey, err := s.keyField(fromLabel)
	if err != nil {
		return err
	}
	toKey, err := s.keyField(toLabel)
	if err != nil {
		return err
	}

	params := make([]any, 0, len(rows))
	for _, row := range rows {
		params = append(params, map[string]any{"from": row.From, "to": row.To})
	}
	query := fmt.Sprintf(`
UNWIND $rows AS row
MATCH (a:%s {%s: row.from})
MATCH (b:%s {%s: row.to})
MERGE (a)-[:%s]->(b)
RETURN count(*) AS matched`, fromLabel, fromKey, toLabel, toKey, edgeLabel)

	record, err := s.write(ctx, query, map[string]any{"rows": params})
	if err != nil {
		return fmt.Errorf("upsert %s edges: %w", edgeLabel, err)
	}
	matched, _ := record.Get("matched")
	if n, ok := matched.(int64); ok && int(n) < len(rows) {
		return fmt.Errorf("%w: %d of %d %s edges matched", ErrMissingEndpoint, n, len(rows), edgeLabel)
	}
	return nil
}

// write runs query in a managed write transaction and returns its single
// result record, if any.
func (s *Neo4jStore) write(ctx context.Context, query string, params map[string]any) (*neo4j.Record, error) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		if result.Next(ctx) {
			record := result.Record()
			_, err := result.Consume(ctx)
			return record, err
		}
		_, err = result.Consume(ctx)
		return (*neo4j.Record)(nil), err
	})
	if err != nil {
		return nil, err
	}
	record, _ := out.(*neo4j.Record)
	if record == nil {
		record = &neo4j.Record{}
	}
	return record, nil
}

func (s *Neo4jStore) Snapshot(ctx context.Context) (*Snapshot, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	s.mu.RLock()
	keys := make(map[string]string, len(s.keys))
	for label, key := range s.keys {
		keys[label] = key
	}
	s.mu.RUnlock()

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		snap := &Snapshot{}

		result, err := tx.Run(ctx, "MATCH (n) RETURN labels(n) AS labels, properties(n) AS props", nil)
		if err != nil {
			return nil, err
		}
		for result.Next(ctx) {
			record := result.Record()
			label, key, props, ok := recordNode(record, "labels", "props", keys)
			if !ok {
				continue
			}
			delete(props, keys[label])
			snap.Nodes = append(snap.Nodes, Node{Label: label, Key: key, Props: props})
		}
		if err := result.Err(); err != nil {
			return nil, err
		}

		result, err = tx.Run(ctx, `
MATCH (a)-[r]->(b)
RETURN type(r) AS type, labels(a) AS fromLabels, properties(a) AS fromProps,
       labels(b) AS toLabels, properties(b) AS toProps`, nil)
		if err != nil {
			return nil, err
		}
		for result.Next(ctx) {
			record := result.Record()
			fromLabel, fromKey, _, ok := recordNode(record, "fromLabels", "fromProps", keys)
			if !ok {
				continue
			}
			toLabel, toKey, _, ok := recordNode(record, "toLabels", "toProps", keys)
			if !ok {
				continue
			}
			edgeType, _ := record.Get("type")
			label, _ := edgeType.(string)
			snap.Edges = append(snap.Edges, Edge{
				Label:     label,
				FromLabel: fromLabel,
				FromKey:   fromKey,
				ToLabel:   toLabel,
				ToKey:     toKey,
			})
		}
		return snap, result.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}

	snap := out.(*Snapshot)
	snap.sort()
	return snap, nil
}

// recordNode picks the first label of a node that has a registered key.
func recordNode(record *neo4j.Record, labelsField, propsField string, keys map[string]string) (string, string, map[string]any, bool) {
	rawLabels, _ := record.Get(labelsField)
	rawProps, _ := record.Get(propsField)
	labels, _ := rawLabels.([]any)
	props, _ := rawProps.(map[string]any)

	for _, l := range labels {
		label, _ := l.(string)
		keyField, ok := keys[label]
		if !ok {
			continue
		}
		key, _ := props[keyField].(string)
		return label, key, props, key != ""
	}
	return "", "", nil, false
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}
