package hierarchy

import "strings"

// Category selects how a snapshot's hierarchy is built.
type Category uint8

const (
	// CategorySpot derives cross-exchange spreads from NanoArbitrage.
	CategorySpot Category = iota + 1
	// CategorySports derives two-way odds arbitrage from the sports book.
	CategorySports
)

var categoryNames = map[Category]string{
	CategorySpot:   "spot",
	CategorySports: "sports",
}

// AllCategories lists every category the engine knows how to build.
func AllCategories() []Category {
	return []Category{CategorySpot, CategorySports}
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// MarshalText renders the category name.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// ParseCategory maps a name to a Category. An empty name means spot.
func ParseCategory(name string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "spot":
		return CategorySpot, nil
	case "sports":
		return CategorySports, nil
	default:
		return 0, &UnsupportedCategoryError{Category: name}
	}
}

// ParseCategories maps a list of names, failing on the first unknown one.
func ParseCategories(names []string) ([]Category, error) {
	out := make([]Category, 0, len(names))
	for _, name := range names {
		c, err := ParseCategory(name)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
