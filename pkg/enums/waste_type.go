package enums

import "fmt"

// WasteType classifies submitted waste material.
type WasteType string

const (
	WasteTypeCardboard WasteType = "cardboard"
	WasteTypeGlass     WasteType = "glass"
	WasteTypeMetal     WasteType = "metal"
	WasteTypePaper     WasteType = "paper"
	WasteTypePlastic   WasteType = "plastic"
	WasteTypeTrash     WasteType = "trash"
	WasteTypeOrganic   WasteType = "organic"
	WasteTypePackaging WasteType = "packaging"
	WasteTypeOther     WasteType = "other"
)

var validWasteTypes = []WasteType{
	WasteTypeCardboard,
	WasteTypeGlass,
	WasteTypeMetal,
	WasteTypePaper,
	WasteTypePlastic,
	WasteTypeTrash,
	WasteTypeOrganic,
	WasteTypePackaging,
	WasteTypeOther,
}

// String implements fmt.Stringer.
func (w WasteType) String() string {
	return string(w)
}

// IsValid reports whether the value is a known WasteType.
func (w WasteType) IsValid() bool {
	for _, candidate := range validWasteTypes {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWasteType converts raw input into a WasteType.
func ParseWasteType(value string) (WasteType, error) {
	for _, candidate := range validWasteTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid waste type %q", value)
}
