package processor

import (
	"sort"

	"golang.org/x/text/cases"

	"modscout/models"
)

// foldName is the single case-insensitive key used for item names.
func foldName(name string) string {
	return cases.Fold().String(name)
}

// Resolve finds the marketplace slug for modName by exact, case-insensitive
// item name. The first item with that name decides: an empty slug there means
// the mod is not listed.
func Resolve(modName string, items []models.MarketItem) (string, bool) {
	key := foldName(modName)
	for _, item := range items {
		if foldName(item.ItemName) == key {
			return item.URLName, item.URLName != ""
		}
	}
	return "", false
}

// Directory indexes the item directory once per snapshot. Lookups follow the
// same first-match-wins rule as Resolve, and names listed more than once are
// remembered so callers can report them.
type Directory struct {
	slugs      map[string]string
	duplicates map[string]string
}

func NewDirectory(items []models.MarketItem) *Directory {
	d := &Directory{
		slugs:      make(map[string]string, len(items)),
		duplicates: make(map[string]string),
	}
	for _, item := range items {
		key := foldName(item.ItemName)
		if _, ok := d.slugs[key]; ok {
			if _, seen := d.duplicates[key]; !seen {
				d.duplicates[key] = item.ItemName
			}
			continue
		}
		d.slugs[key] = item.URLName
	}
	return d
}

func (d *Directory) Resolve(modName string) (string, bool) {
	slug := d.slugs[foldName(modName)]
	return slug, slug != ""
}

// Ambiguous reports whether more than one item carries modName.
func (d *Directory) Ambiguous(modName string) bool {
	_, ok := d.duplicates[foldName(modName)]
	return ok
}

// Duplicates lists item names that occur more than once, sorted.
func (d *Directory) Duplicates() []string {
	out := make([]string, 0, len(d.duplicates))
	for _, name := range d.duplicates {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len counts distinct names that resolve to a slug.
func (d *Directory) Len() int {
	n := 0
	for _, slug := range d.slugs {
		if slug != "" {
			n++
		}
	}
	return n
}
