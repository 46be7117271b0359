// Package content is the static quiz content store: category groups, their
// categories, and the word pairs inside them. The data ships inside the
// binary; the rest of the system treats it as read-only.
package content

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/kapisz0n951/learnengpol/internal/domain"
	"github.com/kapisz0n951/learnengpol/internal/errors"
)

//go:embed data/categories.json
var raw []byte

type entry struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Icon   string `json:"icon,omitempty"`
}

var catalog map[string]map[string][]entry

func init() {
	if err := json.Unmarshal(raw, &catalog); err != nil {
		panic(fmt.Sprintf("content: malformed embedded catalog: %v", err))
	}
}

// Groups lists the category groups, sorted.
func Groups() []string {
	gs := make([]string, 0, len(catalog))
	for g := range catalog {
		gs = append(gs, g)
	}
	sort.Strings(gs)
	return gs
}

// Categories lists the categories of a group, sorted.
func Categories(group string) ([]string, error) {
	g, ok := catalog[group]
	if !ok {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("content: unknown group %q", group))
	}

	cs := make([]string, 0, len(g))
	for c := range g {
		cs = append(cs, c)
	}
	sort.Strings(cs)
	return cs, nil
}

// Lookup returns the words of a category in catalog order.
func Lookup(group, category string) ([]domain.Word, error) {
	g, ok := catalog[group]
	if !ok {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("content: unknown group %q", group))
	}

	es, ok := g[category]
	if !ok {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("content: unknown category %q in group %q", category, group))
	}

	words := make([]domain.Word, 0, len(es))
	for _, e := range es {
		words = append(words, domain.Word{
			ID:     e.ID,
			Source: e.Source,
			Target: e.Target,
			Icon:   e.Icon,
		})
	}
	return words, nil
}

// Validate checks that a round config names an existing category within its
// group with valid enum fields.
func Validate(cfg domain.RoundConfig) error {
	if !cfg.Difficulty.Valid() {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("content: invalid difficulty %q", cfg.Difficulty))
	}
	if !cfg.Mode.Valid() {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("content: invalid mode %q", cfg.Mode))
	}

	_, err := Lookup(cfg.Group, cfg.Category)
	return err
}
