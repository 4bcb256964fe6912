package display

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gnomegl/gitgraph/internal/graph"
)

// WriteNDJSON writes a meta line followed by one line per repository, user
// and STARS edge.
func WriteNDJSON(w io.Writer, snap *graph.Snapshot) error {
	repos := snap.Repositories()
	users := snap.Users()
	stars := snap.Stars()

	encoder := json.NewEncoder(w)
	meta := NDJSONMeta{
		Type:         KindMeta,
		Repositories: len(repos),
		Users:        len(users),
		Edges:        len(stars),
	}
	if err := encoder.Encode(meta); err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}

	for _, r := range repos {
		rec := JSONRepository{
			Type:            KindRepository,
			FullName:        r.FullName,
			Language:        r.Language,
			Description:     r.Description,
			StargazersCount: r.StargazersCount,
			ForksCount:      r.ForksCount,
		}
		if err := encoder.Encode(rec); err != nil {
			return fmt.Errorf("encode repository %s: %w", r.FullName, err)
		}
	}
	for _, u := range users {
		if err := encoder.Encode(JSONUser{Type: KindUser, Login: u.Login, Name: u.Name, Bio: u.Bio}); err != nil {
			return fmt.Errorf("encode user %s: %w", u.Login, err)
		}
	}
	for _, s := range stars {
		if err := encoder.Encode(JSONStar{Type: KindStars, User: s.User, Repository: s.Repository}); err != nil {
			return fmt.Errorf("encode edge %s: %w", s.Key(), err)
		}
	}
	return nil
}
