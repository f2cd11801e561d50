package reporting

// ActionCount is the number of stored entries of one action kind.
type ActionCount struct {
	Action string `json:"action"`
	Count  int64  `json:"count"`
}

// Stats is the activity dashboard summary.
//
// Total always equals the sum of ByType counts, and Recent7Days never exceeds Total.
// Actions with no entries are omitted from ByType.
type Stats struct {
	Total       int64         `json:"total"`
	ByType      []ActionCount `json:"byType"`
	Recent7Days int64         `json:"recent7Days"`
}
