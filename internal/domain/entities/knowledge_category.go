package entities

import (
	"fmt"
	"strings"
)

// KnowledgeCategory is the closed set of knowledge domains a quiz question belongs to.
// The zero value means the category has not been resolved.
type KnowledgeCategory uint8

const (
	CategoryUnknown KnowledgeCategory = iota
	CategoryFood
	CategoryBeverage
	CategoryWine
	CategoryProcedures
)

// NumCategories is the number of resolvable knowledge categories.
const NumCategories = 4

// AllCategories lists the resolvable categories in declaration order.
// Tie-breaks everywhere in the engine follow this order.
var AllCategories = [NumCategories]KnowledgeCategory{
	CategoryFood,
	CategoryBeverage,
	CategoryWine,
	CategoryProcedures,
}

var categoryNames = [...]string{
	CategoryUnknown:    "",
	CategoryFood:       "food",
	CategoryBeverage:   "beverage",
	CategoryWine:       "wine",
	CategoryProcedures: "procedures",
}

// String returns the wire name of the category.
func (c KnowledgeCategory) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("KnowledgeCategory(%d)", uint8(c))
}

// IsValid reports whether c is one of the four resolvable categories.
func (c KnowledgeCategory) IsValid() bool {
	return c >= CategoryFood && c <= CategoryProcedures
}

// Index returns the position of c in AllCategories. It panics for invalid categories.
func (c KnowledgeCategory) Index() int {
	if !c.IsValid() {
		panic(fmt.Sprintf("entities: index of unresolved category %d", uint8(c)))
	}
	return int(c) - 1
}

// ParseKnowledgeCategory parses a wire name. Empty input yields CategoryUnknown without error.
func ParseKnowledgeCategory(s string) (KnowledgeCategory, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return CategoryUnknown, nil
	case "food":
		return CategoryFood, nil
	case "beverage":
		return CategoryBeverage, nil
	case "wine":
		return CategoryWine, nil
	case "procedures":
		return CategoryProcedures, nil
	}
	return CategoryUnknown, fmt.Errorf("unknown knowledge category %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (c KnowledgeCategory) MarshalText() ([]byte, error) {
	if c != CategoryUnknown && !c.IsValid() {
		return nil, fmt.Errorf("invalid knowledge category %d", uint8(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *KnowledgeCategory) UnmarshalText(text []byte) error {
	parsed, err := ParseKnowledgeCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
