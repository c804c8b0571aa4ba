package writer

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"modscout/config"
	"modscout/internal/pipeline"
	"modscout/logger"
	"modscout/models"
	"modscout/processor"
)

const (
	unknownLocation = "Unknown Location"
	noSellers       = "No in-game sellers found."
)

// Console renders searches as plain text for the command line.
type Console struct {
	out    io.Writer
	market config.MarketSourceConfig
	log    *logger.Log
}

func NewConsole(out io.Writer, market config.MarketSourceConfig) *Console {
	return &Console{
		out:    out,
		market: market,
		log:    logger.GetLogger(),
	}
}

// WriteMenu lists the alias codes a user can type instead of a location.
func (c *Console) WriteMenu(aliases config.AliasConfig) error {
	var b strings.Builder
	b.WriteString("Select one or more locations (number or name):\n")
	for _, code := range aliases.Keys() {
		fmt.Fprintf(&b, "%s. %s\n", code, strings.Trim(aliases.Locations[code], ", "))
	}
	return c.write(b.String())
}

// WriteResult prints the matched mods, per-mod problems and the ranked orders.
func (c *Console) WriteResult(result *models.SearchResult) error {
	var b strings.Builder

	fmt.Fprintf(&b, "\nSearching for mods dropped at: %s\n", strings.Join(result.Tokens, ", "))

	names := result.Mods.Names()
	fmt.Fprintf(&b, "\n%d mods found:\n", len(names))
	for _, name := range names {
		fmt.Fprintf(&b, " - %s\n", name)
	}
	for _, name := range result.Unresolved {
		fmt.Fprintf(&b, "  ↳ Market data not found for '%s'\n", name)
	}
	for _, name := range result.Ambiguous {
		fmt.Fprintf(&b, "  ↳ '%s' is listed more than once, using the first listing\n", name)
	}
	for _, name := range sortedKeys(result.Failed) {
		fmt.Fprintf(&b, "  ↳ Failed to fetch orders for '%s'\n", name)
	}

	b.WriteString("\nAll Orders (sorted by price: high → low, in-game users only):\n")
	if result.NoSellers() {
		fmt.Fprintf(&b, "  %s\n", noSellers)
	}
	for _, o := range result.Orders {
		fmt.Fprintf(&b, "  • %s\n", c.FormatOrder(o))
	}

	return c.write(b.String())
}

// FormatOrder renders one ranked order on a single line.
func (c *Console) FormatOrder(o models.EnrichedOrder) string {
	return fmt.Sprintf("%s [Rank %s] → %d platinum → %s | Locations: %s | %s",
		SellerName(o), RankLabel(o), o.Platinum, o.ModName, LocationsLabel(o), c.market.ItemPage(o.ModURLName))
}

// WriteError prints input errors the way a user should read them and returns
// anything else unchanged.
func (c *Console) WriteError(err error) error {
	switch {
	case errors.Is(err, processor.ErrNoInputLocations):
		return c.write("Invalid input. Please enter at least one valid location.\n")
	case errors.Is(err, pipeline.ErrNoMatchingMods):
		return c.write("No mods found for the selected location(s).\n")
	default:
		return err
	}
}

func (c *Console) write(s string) error {
	if _, err := io.WriteString(c.out, s); err != nil {
		c.log.WithComponent("console_writer").WithError(err).Error("failed to write output")
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// RankLabel is the order's mod rank, or "N/A" when the listing has none.
func RankLabel(o models.EnrichedOrder) string {
	if o.ModRank == nil {
		return "N/A"
	}
	return strconv.Itoa(*o.ModRank)
}

func LocationsLabel(o models.EnrichedOrder) string {
	if len(o.MatchedLocations) == 0 {
		return unknownLocation
	}
	return strings.Join(o.MatchedLocations, ", ")
}

func SellerName(o models.EnrichedOrder) string {
	if o.User.IngameName == "" {
		return "Unknown"
	}
	return o.User.IngameName
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
