package waste

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmloop-backend/internal/users"
	"github.com/angelmondragon/farmloop-backend/pkg/enums"
)

// defaultPointsPerUnit applies when a report names no category.
var defaultPointsPerUnit = map[enums.WasteType]int{
	enums.WasteTypeCardboard: 10,
	enums.WasteTypeGlass:     15,
	enums.WasteTypeMetal:     20,
	enums.WasteTypePaper:     10,
	enums.WasteTypePlastic:   15,
	enums.WasteTypeTrash:     5,
	enums.WasteTypeOrganic:   10,
	enums.WasteTypePackaging: 10,
	enums.WasteTypeOther:     5,
}

// impactFactor is the saving per reported unit of one waste type.
type impactFactor struct {
	carbon decimal.Decimal // kg CO2
	trees  decimal.Decimal
	water  decimal.Decimal // litres
}

func factor(carbon, trees, water string) impactFactor {
	return impactFactor{
		carbon: decimal.RequireFromString(carbon),
		trees:  decimal.RequireFromString(trees),
		water:  decimal.RequireFromString(water),
	}
}

var impactFactors = map[enums.WasteType]impactFactor{
	enums.WasteTypeCardboard: factor("0.96", "0.017", "3.8"),
	enums.WasteTypePaper:     factor("0.91", "0.017", "3.5"),
	enums.WasteTypeGlass:     factor("0.31", "0", "0.5"),
	enums.WasteTypeMetal:     factor("1.80", "0", "2.0"),
	enums.WasteTypePlastic:   factor("1.50", "0", "2.5"),
	enums.WasteTypeOrganic:   factor("0.50", "0", "0.8"),
	enums.WasteTypePackaging: factor("0.70", "0.008", "1.5"),
	enums.WasteTypeTrash:     factor("0.10", "0", "0"),
	enums.WasteTypeOther:     factor("0.10", "0", "0"),
}

// pointsFor returns floor(quantity x pointsPerUnit), doubled for organic waste.
func pointsFor(wasteType enums.WasteType, quantity decimal.Decimal, pointsPerUnit int) int {
	pts := int(quantity.Mul(decimal.NewFromInt(int64(pointsPerUnit))).Floor().IntPart())
	if wasteType == enums.WasteTypeOrganic {
		pts *= 2
	}
	return pts
}

// impactOf sums the factor table over per-type quantities.
func impactOf(quantities map[enums.WasteType]decimal.Decimal) users.Impact {
	impact := users.Impact{CarbonSaved: decimal.Zero, TreesSaved: decimal.Zero, WaterSaved: decimal.Zero}
	for wasteType, qty := range quantities {
		f, ok := impactFactors[wasteType]
		if !ok {
			continue
		}
		impact.CarbonSaved = impact.CarbonSaved.Add(qty.Mul(f.carbon))
		impact.TreesSaved = impact.TreesSaved.Add(qty.Mul(f.trees))
		impact.WaterSaved = impact.WaterSaved.Add(qty.Mul(f.water))
	}
	impact.CarbonSaved = impact.CarbonSaved.Round(3)
	impact.TreesSaved = impact.TreesSaved.Round(3)
	impact.WaterSaved = impact.WaterSaved.Round(3)
	return impact
}
