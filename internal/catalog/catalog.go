package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Tier classifies an item for purchase analysis
type Tier int

const (
	TierNone Tier = iota
	TierLegendary
	TierMythic
)

func (t Tier) String() string {
	switch t {
	case TierLegendary:
		return "legendary"
	case TierMythic:
		return "mythic"
	default:
		return "none"
	}
}

// DefaultAliases maps evolved item names onto the item they evolve from.
// Evolution happens in place and is never a new purchase.
var DefaultAliases = map[string]string{
	"Muramana":         "Manamune",
	"Seraph's Embrace": "Archangel's Staff",
}

// Item is one catalog entry
type Item struct {
	ID   int
	Name string
	Tier Tier
}

// Catalog is the immutable item classification for one run.
// All methods are safe for concurrent use.
type Catalog struct {
	legendary map[int]string
	mythic    map[int]string
	aliases   map[int]int
}

// New builds a catalog from id->name maps. The tiers must be disjoint and
// every alias must point between legendary items.
func New(legendary, mythic map[int]string, aliases map[int]int) (*Catalog, error) {
	c := &Catalog{
		legendary: make(map[int]string, len(legendary)),
		mythic:    make(map[int]string, len(mythic)),
		aliases:   make(map[int]int, len(aliases)),
	}

	for id, name := range legendary {
		if id <= 0 {
			return nil, fmt.Errorf("invalid legendary item id %d", id)
		}
		c.legendary[id] = name
	}
	for id, name := range mythic {
		if id <= 0 {
			return nil, fmt.Errorf("invalid mythic item id %d", id)
		}
		if _, dup := c.legendary[id]; dup {
			return nil, fmt.Errorf("item %d (%s) is both legendary and mythic", id, name)
		}
		c.mythic[id] = name
	}
	for evolved, base := range aliases {
		if _, ok := c.legendary[evolved]; !ok {
			return nil, fmt.Errorf("alias source %d is not a legendary item", evolved)
		}
		if _, ok := c.legendary[base]; !ok {
			return nil, fmt.Errorf("alias target %d is not a legendary item", base)
		}
		c.aliases[evolved] = base
	}

	return c, nil
}

// TierOf returns the tier of a raw item id
func (c *Catalog) TierOf(id int) Tier {
	if _, ok := c.legendary[id]; ok {
		return TierLegendary
	}
	if _, ok := c.mythic[id]; ok {
		return TierMythic
	}
	return TierNone
}

// Resolve maps an evolved item onto its base item. Other ids are returned unchanged.
func (c *Catalog) Resolve(id int) int {
	if base, ok := c.aliases[id]; ok {
		return base
	}
	return id
}

// Name returns the display name of a catalog item, or "" if unknown
func (c *Catalog) Name(id int) string {
	if name, ok := c.legendary[id]; ok {
		return name
	}
	return c.mythic[id]
}

// MythicItems returns the mythic items sorted by id
func (c *Catalog) MythicItems() []Item {
	return sortedItems(c.mythic, TierMythic)
}

// LegendaryItems returns the legendary items sorted by id
func (c *Catalog) LegendaryItems() []Item {
	return sortedItems(c.legendary, TierLegendary)
}

// Len returns the number of classified items
func (c *Catalog) Len() int {
	return len(c.legendary) + len(c.mythic)
}

func sortedItems(m map[int]string, tier Tier) []Item {
	items := make([]Item, 0, len(m))
	for id, name := range m {
		items = append(items, Item{ID: id, Name: name, Tier: tier})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

// Build classifies Data Dragon items by matching their lowercased names against
// the scraped legendary and mythic name lists. Every scraped name must map to at
// least one id, otherwise purchases would be silently misclassified.
// A name present in both lists is classified as legendary.
func Build(items map[int]string, legendaryNames, mythicNames []string, aliasNames map[string]string) (*Catalog, error) {
	legendarySet := normalizeNames(legendaryNames)
	mythicSet := normalizeNames(mythicNames)

	legendary := make(map[int]string)
	mythic := make(map[int]string)
	matched := make(map[string]bool)

	for id, name := range items {
		key := normalizeName(name)
		switch {
		case legendarySet[key]:
			legendary[id] = name
			matched[key] = true
		case mythicSet[key]:
			mythic[id] = name
			matched[key] = true
		}
	}

	var missing []string
	for name := range legendarySet {
		if !matched[name] {
			missing = append(missing, name)
		}
	}
	for name := range mythicSet {
		if !matched[name] && !legendarySet[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("failed to map %d item names to ids: %s", len(missing), strings.Join(missing, ", "))
	}

	aliases, err := resolveAliases(legendary, aliasNames)
	if err != nil {
		return nil, err
	}

	return New(legendary, mythic, aliases)
}

// resolveAliases turns evolved->base names into ids. Data Dragon can list the same
// name under several ids (map variants), so every evolved id is mapped onto the
// lowest base id.
func resolveAliases(legendary map[int]string, aliasNames map[string]string) (map[int]int, error) {
	aliases := make(map[int]int)
	for evolvedName, baseName := range aliasNames {
		evolvedIDs := idsByName(legendary, evolvedName)
		baseIDs := idsByName(legendary, baseName)
		if len(evolvedIDs) == 0 || len(baseIDs) == 0 {
			return nil, fmt.Errorf("alias %q -> %q not found among legendary items", evolvedName, baseName)
		}
		for _, id := range evolvedIDs {
			aliases[id] = baseIDs[0]
		}
	}
	return aliases, nil
}

func idsByName(m map[int]string, name string) []int {
	var ids []int
	key := normalizeName(name)
	for id, n := range m {
		if normalizeName(n) == key {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

func normalizeNames(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		if key := normalizeName(n); key != "" {
			set[key] = true
		}
	}
	return set
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
