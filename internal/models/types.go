package models

import "strings"

const (
	RepositoryLabel = "Repository"
	RepositoryKey   = "full_name"
	UserLabel       = "User"
	UserKey         = "login"
	StarsLabel      = "STARS"
)

type RepositoryNode struct {
	FullName        string
	Language        string
	Description     string
	StargazersCount int
	ForksCount      int
}

func (r RepositoryNode) Attributes() map[string]any {
	return map[string]any{
		"language":         r.Language,
		"description":      r.Description,
		"stargazers_count": r.StargazersCount,
		"forks_count":      r.ForksCount,
	}
}

type UserNode struct {
	Login string
	Name  string
	Bio   string
}

func (u UserNode) Attributes() map[string]any {
	return map[string]any{
		"name": u.Name,
		"bio":  u.Bio,
	}
}

// StarsEdge is a directed (User)-[:STARS]->(Repository) relation without payload.
type StarsEdge struct {
	User       string
	Repository string
}

// Key identifies the edge for set semantics. Logins and full names are
// case-insensitive on GitHub, so the key is folded.
func (e StarsEdge) Key() string {
	return strings.ToLower(e.User) + "|" + strings.ToLower(e.Repository)
}
