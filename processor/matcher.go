package processor

import (
	"errors"
	"strings"

	"modscout/models"
)

var ErrNoInputLocations = errors.New("no valid location")

// SplitQuery tokenizes a raw location query. Commas take precedence so that
// multi-word names like "Arbiters of Hexis, Suda" survive; without a comma the
// query is split on whitespace.
func SplitQuery(raw string) []string {
	if strings.Contains(raw, ",") {
		return strings.Split(raw, ",")
	}
	return strings.Fields(raw)
}

// NormalizeTokens trims every token, expands alias codes to their canonical
// location, lower-cases the result and drops empties and repeats.
func NormalizeTokens(raw []string, aliases map[string]string) []string {
	tokens := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))

	for _, t := range raw {
		t = strings.TrimSpace(t)
		if name, ok := aliases[t]; ok {
			t = strings.TrimSpace(name)
		}
		t = strings.ToLower(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		tokens = append(tokens, t)
	}
	return tokens
}

// Match returns every catalog mod with at least one drop location containing
// a token, together with all of its drop locations that did. Tokens are
// normalized again without aliases, so callers may pass raw input.
func Match(tokens []string, catalog []models.ModRecord) (models.MatchResult, error) {
	tokens = NormalizeTokens(tokens, nil)
	if len(tokens) == 0 {
		return nil, ErrNoInputLocations
	}

	result := make(models.MatchResult)
	for _, mod := range catalog {
		for _, drop := range mod.Drops {
			if !containsAny(strings.ToLower(drop.Location), tokens) {
				continue
			}
			set, ok := result[mod.Name]
			if !ok {
				set = models.NewLocationSet()
				result[mod.Name] = set
			}
			set.Add(drop.Location)
		}
	}
	return result, nil
}

func containsAny(location string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(location, t) {
			return true
		}
	}
	return false
}
