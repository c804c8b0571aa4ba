package models

import "time"

// SearchResult is everything a front end needs to render one search.
type SearchResult struct {
	RunID      string            `json:"run_id"`
	Query      string            `json:"search_query"`
	Tokens     []string          `json:"tokens"`
	Mods       MatchResult       `json:"-"`
	Orders     []EnrichedOrder   `json:"orders"`
	Unresolved []string          `json:"unresolved,omitempty"`
	Ambiguous  []string          `json:"ambiguous,omitempty"`
	Failed     map[string]string `json:"failed,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	Duration   time.Duration     `json:"duration_ns"`
}

// NoSellers reports the "matches existed but nobody is selling" state.
func (r *SearchResult) NoSellers() bool {
	return len(r.Orders) == 0
}

// ModsFound returns Mods as sorted lists, keyed by mod name.
func (r *SearchResult) ModsFound() map[string][]string {
	return r.Mods.Lists()
}

// AggregateOutcome is what one order-book job reports back: either orders or the
// reason it failed. Index is the job's position in the submitted batch.
type AggregateOutcome struct {
	Index    int
	ModName  string
	Slug     string
	Orders   []EnrichedOrder
	Err      error
	Duration time.Duration
}
