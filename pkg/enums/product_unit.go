package enums

import "fmt"

// ProductUnit is the selling unit of a product listing.
type ProductUnit string

const (
	ProductUnitKilogram ProductUnit = "kg"
	ProductUnitGram     ProductUnit = "g"
	ProductUnitPiece    ProductUnit = "pc"
	ProductUnitDozen    ProductUnit = "dz"
	ProductUnitLiter    ProductUnit = "l"
)

var validProductUnits = []ProductUnit{
	ProductUnitKilogram,
	ProductUnitGram,
	ProductUnitPiece,
	ProductUnitDozen,
	ProductUnitLiter,
}

// String implements fmt.Stringer.
func (u ProductUnit) String() string {
	return string(u)
}

// IsValid reports whether the value is a known ProductUnit.
func (u ProductUnit) IsValid() bool {
	for _, candidate := range validProductUnits {
		if candidate == u {
			return true
		}
	}
	return false
}

// ParseProductUnit converts raw input into a ProductUnit.
func ParseProductUnit(value string) (ProductUnit, error) {
	for _, candidate := range validProductUnits {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product unit %q", value)
}
