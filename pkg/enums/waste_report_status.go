package enums

import "fmt"

// WasteReportStatus tracks review and pickup of a waste report.
type WasteReportStatus string

const (
	WasteReportStatusPending   WasteReportStatus = "pending"
	WasteReportStatusApproved  WasteReportStatus = "approved"
	WasteReportStatusRejected  WasteReportStatus = "rejected"
	WasteReportStatusCollected WasteReportStatus = "collected"
)

var validWasteReportStatuses = []WasteReportStatus{
	WasteReportStatusPending,
	WasteReportStatusApproved,
	WasteReportStatusRejected,
	WasteReportStatusCollected,
}

// String implements fmt.Stringer.
func (s WasteReportStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known WasteReportStatus.
func (s WasteReportStatus) IsValid() bool {
	for _, candidate := range validWasteReportStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseWasteReportStatus converts raw input into a WasteReportStatus.
func ParseWasteReportStatus(value string) (WasteReportStatus, error) {
	for _, candidate := range validWasteReportStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid waste report status %q", value)
}
