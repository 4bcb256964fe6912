package graph

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gnomegl/gitgraph/internal/models"
)

// Repositories decodes the repository nodes of the snapshot.
func (s *Snapshot) Repositories() []models.RepositoryNode {
	var out []models.RepositoryNode
	for _, n := range s.Nodes {
		if n.Label != models.RepositoryLabel {
			continue
		}
		out = append(out, models.RepositoryNode{
			FullName:        n.Key,
			Language:        propString(n.Props, "language"),
			Description:     propString(n.Props, "description"),
			StargazersCount: propInt(n.Props, "stargazers_count"),
			ForksCount:      propInt(n.Props, "forks_count"),
		})
	}
	return out
}

func (s *Snapshot) Users() []models.UserNode {
	var out []models.UserNode
	for _, n := range s.Nodes {
		if n.Label != models.UserLabel {
			continue
		}
		out = append(out, models.UserNode{
			Login: n.Key,
			Name:  propString(n.Props, "name"),
			Bio:   propString(n.Props, "bio"),
		})
	}
	return out
}

func (s *Snapshot) Stars() []models.StarsEdge {
	var out []models.StarsEdge
	for _, e := range s.Edges {
		if e.Label != models.StarsLabel || e.FromLabel != models.UserLabel || e.ToLabel != models.RepositoryLabel {
			continue
		}
		out = append(out, models.StarsEdge{User: e.FromKey, Repository: e.ToKey})
	}
	return out
}

func propString(props map[string]any, name string) string {
	s, _ := props[name].(string)
	return s
}

// propInt accepts the numeric types the stores hand back: int from memory,
// int64 from Neo4j and float64 from JSON.
func propInt(props map[string]any, name string) int {
	switch v := props[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return int(v)
	default:
		return 0
	}
}

// WriteCSV writes users.csv, repos.csv and stars.csv into dir, the flat
// tables the feature pipeline reads.
func WriteCSV(dir string, snap *Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	var users [][]string
	for _, u := range snap.Users() {
		users = append(users, []string{u.Login, u.Name, u.Bio})
	}
	if err := writeCSVFile(filepath.Join(dir, "users.csv"), []string{"login", "name", "bio"}, users); err != nil {
		return err
	}

	var repos [][]string
	for _, r := range snap.Repositories() {
		repos = append(repos, []string{
			r.FullName,
			r.Language,
			r.Description,
			strconv.Itoa(r.StargazersCount),
			strconv.Itoa(r.ForksCount),
		})
	}
	if err := writeCSVFile(filepath.Join(dir, "repos.csv"),
		[]string{"full_name", "language", "description", "stargazers_count", "forks_count"}, repos); err != nil {
		return err
	}

	var stars [][]string
	for _, e := range snap.Stars() {
		stars = append(stars, []string{e.User, e.Repository})
	}
	return writeCSVFile(filepath.Join(dir, "stars.csv"), []string{"source", "target"}, stars)
}

func writeCSVFile(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
