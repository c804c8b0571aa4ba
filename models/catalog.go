package models

import "sort"

// ModRecord is one catalog entry. Name is the join key against the marketplace.
type ModRecord struct {
	Name  string       `json:"name"`
	Drops []DropRecord `json:"drops"`
}

// DropRecord describes where a mod can be obtained. Only Location takes part in
// matching; the remaining fields are carried for display.
type DropRecord struct {
	Location string  `json:"location"`
	Type     string  `json:"type,omitempty"`
	Rarity   string  `json:"rarity,omitempty"`
	Chance   float64 `json:"chance,omitempty"`
}

// LocationSet is a set of drop-location strings as they appear in the catalog.
type LocationSet map[string]struct{}

func NewLocationSet(locations ...string) LocationSet {
	s := make(LocationSet, len(locations))
	for _, l := range locations {
		s.Add(l)
	}
	return s
}

func (s LocationSet) Add(location string) {
	s[location] = struct{}{}
}

func (s LocationSet) Has(location string) bool {
	_, ok := s[location]
	return ok
}

// Sorted returns the locations in lexical order.
func (s LocationSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// MatchResult maps a mod name to the drop locations that matched the search.
// Every key holds a non-empty set.
type MatchResult map[string]LocationSet

// Names returns the matched mod names in lexical order.
func (m MatchResult) Names() []string {
	out := make([]string, 0, len(m))
	for name := range m {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Lists converts the result into plain slices, which is the shape front ends render.
func (m MatchResult) Lists() map[string][]string {
	out := make(map[string][]string, len(m))
	for name, locations := range m {
		out[name] = locations.Sorted()
	}
	return out
}
