package enums

import "fmt"

// PointsReason explains a reward points ledger entry.
type PointsReason string

const (
	PointsReasonOrderEarned   PointsReason = "order_earned"
	PointsReasonOrderRedeemed PointsReason = "order_redeemed"
	PointsReasonWasteApproved PointsReason = "waste_approved"
	PointsReasonAdjustment    PointsReason = "adjustment"
)

var validPointsReasons = []PointsReason{
	PointsReasonOrderEarned,
	PointsReasonOrderRedeemed,
	PointsReasonWasteApproved,
	PointsReasonAdjustment,
}

// String implements fmt.Stringer.
func (r PointsReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known PointsReason.
func (r PointsReason) IsValid() bool {
	for _, candidate := range validPointsReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParsePointsReason converts raw input into a PointsReason.
func ParsePointsReason(value string) (PointsReason, error) {
	for _, candidate := range validPointsReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid points reason %q", value)
}
