package processor

import (
	"reflect"
	"testing"

	"modscout/models"
)

func testItems() []models.MarketItem {
	return []models.MarketItem{
		{ItemName: "Vigor", URLName: "vigor"},
		{ItemName: "Hornet Strike", URLName: "hornet_strike"},
		{ItemName: "hornet strike", URLName: "hornet_strike_dup"},
		{ItemName: "Broken", URLName: ""},
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		mod    string
		want   string
		wantOK bool
	}{
		{"exact", "Vigor", "vigor", true},
		{"case insensitive", "VIGOR", "vigor", true},
		{"first match wins", "Hornet Strike", "hornet_strike", true},
		{"substring is not enough", "Vig", "", false},
		{"missing", "Serration", "", false},
		{"empty slug", "Broken", "", false},
	}

	dir := NewDirectory(testItems())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve(tt.mod, testItems())
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("Resolve(%q) = %q, %v; want %q, %v", tt.mod, got, ok, tt.want, tt.wantOK)
			}
			got, ok = dir.Resolve(tt.mod)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("Directory.Resolve(%q) = %q, %v; want %q, %v", tt.mod, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestResolveNotListed(t *testing.T) {
	if _, ok := Resolve("Hornet Strike", []models.MarketItem{{ItemName: "Vigor", URLName: "vigor"}}); ok {
		t.Fatal("expected not found")
	}
}

func TestDirectoryDuplicates(t *testing.T) {
	dir := NewDirectory(testItems())
	if !dir.Ambiguous("HORNET STRIKE") {
		t.Fatal("Hornet Strike should be ambiguous")
	}
	if dir.Ambiguous("Vigor") {
		t.Fatal("Vigor should not be ambiguous")
	}
	if got := dir.Duplicates(); !reflect.DeepEqual(got, []string{"hornet strike"}) {
		t.Fatalf("Duplicates = %v", got)
	}
	if dir.Len() != 2 {
		t.Fatalf("Len = %d, want 2", dir.Len())
	}
}

func TestResolveEmptyFirstSlugIsNotListed(t *testing.T) {
	items := []models.MarketItem{
		{ItemName: "Serration", URLName: ""},
		{ItemName: "Serration", URLName: "serration"},
	}
	if slug, ok := Resolve("Serration", items); ok {
		t.Fatalf("Resolve = %q, want not listed", slug)
	}
	if slug, ok := NewDirectory(items).Resolve("Serration"); ok {
		t.Fatalf("Directory.Resolve = %q, want not listed", slug)
	}
}

func TestResolveAndDirectoryFoldAlike(t *testing.T) {
	items := []models.MarketItem{
		{ItemName: "Serration", URLName: "serration"},
		{ItemName: "Kelvin", URLName: "kelvin"},
	}
	dir := NewDirectory(items)

	// U+017F long s and U+212A Kelvin sign fold to s and k.
	for _, name := range []string{"SERRATION", "\u017Ferration", "\u212Aelvin", "kELVIN"} {
		want, wantOK := Resolve(name, items)
		got, ok := dir.Resolve(name)
		if !wantOK || got != want || ok != wantOK {
			t.Fatalf("%q: Resolve = %q, %v; Directory.Resolve = %q, %v", name, want, wantOK, got, ok)
		}
	}
}
