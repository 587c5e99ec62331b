package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Condition of a catalog item
type Condition string

const (
	ConditionNew  Condition = "new"
	ConditionUsed Condition = "used"
)

// Gender a uniform item is cut for
type Gender string

const (
	GenderBoys   Gender = "boys"
	GenderGirls  Gender = "girls"
	GenderUnisex Gender = "unisex"
)

// Product represents a product in the catalog
type Product struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	Name        string           `json:"name" db:"name"`
	Description string           `json:"description" db:"description"`
	Price       decimal.Decimal  `json:"price" db:"price"`
	Brand       string           `json:"brand" db:"brand"`
	Condition   Condition        `json:"condition" db:"condition"`
	Gender      Gender           `json:"gender" db:"gender"`
	Category    string           `json:"category" db:"category"`
	Images      []string         `json:"images" db:"images"`
	Inventory   []InventoryEntry `json:"inventory,omitempty" db:"-"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`
}

// InventoryEntry is the stock count of one product at one size
type InventoryEntry struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	Size      string    `json:"size" db:"size"`
	Quantity  int       `json:"quantity" db:"quantity"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ProductFilter narrows a catalog listing
type ProductFilter struct {
	Category  string
	Gender    Gender
	Condition Condition
	Brand     string
	Search    string
}

// ValidCondition reports whether c is a known condition
func ValidCondition(c Condition) bool {
	return c == ConditionNew || c == ConditionUsed
}

// ValidGender reports whether g is a known gender
func ValidGender(g Gender) bool {
	switch g {
	case GenderBoys, GenderGirls, GenderUnisex:
		return true
	}
	return false
}
