package models

import (
	"strings"

	gh "github.com/google/go-github/v57/github"
)

// RepositoryFromGitHub normalizes a provider repository record. Absent text
// becomes "" and absent or negative counts become 0.
func RepositoryFromGitHub(repo *gh.Repository) RepositoryNode {
	return RepositoryNode{
		FullName:        repo.GetFullName(),
		Language:        repo.GetLanguage(),
		Description:     repo.GetDescription(),
		StargazersCount: nonNegative(repo.GetStargazersCount()),
		ForksCount:      nonNegative(repo.GetForksCount()),
	}
}

// UserFromGitHub normalizes a provider user record.
func UserFromGitHub(user *gh.User) UserNode {
	return UserNode{
		Login: user.GetLogin(),
		Name:  user.GetName(),
		Bio:   strings.ReplaceAll(user.GetBio(), "\n", " "),
	}
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
