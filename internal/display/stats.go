package display

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/gnomegl/gitgraph/internal/graph"
)

var headerColor = color.New(color.Bold, color.FgCyan)

const unknownLanguage = "(none)"

// Summarize ranks repositories by how many crawled users star them, users by
// how many crawled repositories they star, and languages by repository count.
// Ties break on name so the report is stable.
func Summarize(snap *graph.Snapshot, top int) Summary {
	repos := snap.Repositories()
	users := snap.Users()
	stars := snap.Stars()

	inDegree := make(map[string]int)
	outDegree := make(map[string]int)
	for _, s := range stars {
		inDegree[s.Repository]++
		outDegree[s.User]++
	}

	summary := Summary{
		Repositories: len(repos),
		Users:        len(users),
		Edges:        len(stars),
	}

	languages := make(map[string]int)
	for _, r := range repos {
		summary.TopRepos = append(summary.TopRepos, RepoRank{
			FullName: r.FullName,
			Language: r.Language,
			InDegree: inDegree[r.FullName],
		})
		lang := r.Language
		if lang == "" {
			lang = unknownLanguage
		}
		languages[lang]++
	}
	sort.Slice(summary.TopRepos, func(i, j int) bool {
		a, b := summary.TopRepos[i], summary.TopRepos[j]
		if a.InDegree != b.InDegree {
			return a.InDegree > b.InDegree
		}
		return a.FullName < b.FullName
	})

	for _, u := range users {
		summary.TopUsers = append(summary.TopUsers, UserRank{Login: u.Login, OutDegree: outDegree[u.Login]})
	}
	sort.Slice(summary.TopUsers, func(i, j int) bool {
		a, b := summary.TopUsers[i], summary.TopUsers[j]
		if a.OutDegree != b.OutDegree {
			return a.OutDegree > b.OutDegree
		}
		return a.Login < b.Login
	})

	for lang, n := range languages {
		summary.Languages = append(summary.Languages, LanguageCount{Language: lang, Count: n})
	}
	sort.Slice(summary.Languages, func(i, j int) bool {
		a, b := summary.Languages[i], summary.Languages[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Language < b.Language
	})

	if top > 0 {
		summary.TopRepos = truncate(summary.TopRepos, top)
		summary.TopUsers = truncate(summary.TopUsers, top)
		summary.Languages = truncate(summary.Languages, top)
	}
	return summary
}

func truncate[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func WriteSummary(w io.Writer, s Summary) {
	fmt.Fprintln(w)
	headerColor.Fprintln(w, "GRAPH SUMMARY")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "%s %d\n", color.WhiteString("Repositories:"), s.Repositories)
	fmt.Fprintf(w, "%s %d\n", color.WhiteString("Users:"), s.Users)
	fmt.Fprintf(w, "%s %d\n", color.WhiteString("Stars:"), s.Edges)

	if len(s.TopRepos) > 0 {
		fmt.Fprintln(w)
		headerColor.Fprintln(w, "MOST STARRED BY CRAWLED USERS")
		fmt.Fprintln(w, strings.Repeat("-", 60))
		for i, r := range s.TopRepos {
			lang := ""
			if r.Language != "" {
				lang = color.CyanString(" [%s]", r.Language)
			}
			fmt.Fprintf(w, "%3d. %s%s %s\n", i+1, color.GreenString(r.FullName), lang,
				color.WhiteString("(%d)", r.InDegree))
		}
	}

	if len(s.TopUsers) > 0 {
		fmt.Fprintln(w)
		headerColor.Fprintln(w, "MOST ACTIVE STARGAZERS")
		fmt.Fprintln(w, strings.Repeat("-", 60))
		for i, u := range s.TopUsers {
			fmt.Fprintf(w, "%3d. %s %s\n", i+1, color.YellowString(u.Login), color.WhiteString("(%d)", u.OutDegree))
		}
	}

	if len(s.Languages) > 0 {
		fmt.Fprintln(w)
		headerColor.Fprintln(w, "LANGUAGES")
		fmt.Fprintln(w, strings.Repeat("-", 60))
		for _, l := range s.Languages {
			percentage := 0.0
			if s.Repositories > 0 {
				percentage = float64(l.Count) / float64(s.Repositories) * 100
			}
			fmt.Fprintf(w, "  %-20s %4d  %5.1f%%\n", l.Language, l.Count, percentage)
		}
	}
}
