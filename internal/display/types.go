package display

// NDJSON record kinds. Every line carries one so consumers can switch on it.
const (
	KindMeta       = "meta"
	KindRepository = "repository"
	KindUser       = "user"
	KindStars      = "stars"
)

type NDJSONMeta struct {
	Type         string `json:"type"`
	Repositories int    `json:"repositories"`
	Users        int    `json:"users"`
	Edges        int    `json:"edges"`
}

type JSONRepository struct {
	Type            string `json:"type"`
	FullName        string `json:"full_name"`
	Language        string `json:"language,omitempty"`
	Description     string `json:"description,omitempty"`
	StargazersCount int    `json:"stargazers_count"`
	ForksCount      int    `json:"forks_count"`
}

type JSONUser struct {
	Type  string `json:"type"`
	Login string `json:"login"`
	Name  string `json:"name,omitempty"`
	Bio   string `json:"bio,omitempty"`
}

type JSONStar struct {
	Type       string `json:"type"`
	User       string `json:"user"`
	Repository string `json:"repository"`
}

// RepoRank is a repository with the number of crawled users starring it.
type RepoRank struct {
	FullName string
	Language string
	InDegree int
}

type UserRank struct {
	Login     string
	OutDegree int
}

type LanguageCount struct {
	Language string
	Count    int
}

// Summary ranks the graph for the terminal report.
type Summary struct {
	Repositories int
	Users        int
	Edges        int
	TopRepos     []RepoRank
	TopUsers     []UserRank
	Languages    []LanguageCount
}
