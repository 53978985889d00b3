package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type seedTitle struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Synopsis string `json:"synopsis"`
	Released int64  `json:"released"`
	Genre    string `json:"genre"`
	Image    string `json:"image"`
}

// SeedFromFile loads the catalog from a JSON array of titles. Existing
// rows are updated in place, so re-seeding is safe.
func (s *Store) SeedFromFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}

	var seeds []seedTitle
	if err := json.Unmarshal(data, &seeds); err != nil {
		return 0, fmt.Errorf("parse seed file: %w", err)
	}

	count := 0
	for _, seed := range seeds {
		if strings.TrimSpace(seed.ID) == "" || strings.TrimSpace(seed.Title) == "" {
			continue
		}

		var image sql.Null[string]
		if strings.TrimSpace(seed.Image) != "" {
			image = sql.Null[string]{Valid: true, V: seed.Image}
		}

		title := Title{
			ID:       seed.ID,
			Title:    seed.Title,
			Synopsis: seed.Synopsis,
			Released: seed.Released,
			Genre:    seed.Genre,
			Image:    image,
		}
		if err := s.UpsertTitle(ctx, &title); err != nil {
			return count, fmt.Errorf("seed title %s: %w", seed.ID, err)
		}
		count++
	}
	return count, nil
}
