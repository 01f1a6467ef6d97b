package quota

import "github.com/angelmondragon/mapfinderz-backend/pkg/enums"

// Decision is the daily quota answer for a requested unit count. Client-side
// copies are advisory; the authority re-checks at submission.
type Decision struct {
	CanOrder         bool           `json:"can_order"`
	WithinDailyLimit bool           `json:"within_daily_limit"`
	Remaining        int            `json:"remaining"`
	DailyLimit       int            `json:"daily_limit"`
	PackageName      string         `json:"package_name,omitempty"`
	TierKind         enums.TierKind `json:"tier_kind,omitempty"`
}

// IsFree reports whether the order may be placed at zero cost.
func (d Decision) IsFree() bool {
	return d.CanOrder && d.WithinDailyLimit
}

// NotFree is the decision used whenever the quota could not be confirmed.
func NotFree() Decision {
	return Decision{}
}
