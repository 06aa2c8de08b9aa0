package wish

import "time"

// Reason names which boundary a wish crossed.
type Reason string

const (
	ReasonNone  Reason = ""
	ReasonTime  Reason = "time"
	ReasonViews Reason = "views"
)

// Verdict is the result of Evaluate.
type Verdict struct {
	Expired bool
	Reason  Reason
}

// Evaluate reports whether w has crossed its time or view boundary at now.
// Time is checked before views. It has no side effects.
func Evaluate(w *Wish, now time.Time) Verdict {
	if w.ExpiresAt != nil && !now.Before(*w.ExpiresAt) {
		return Verdict{Expired: true, Reason: ReasonTime}
	}
	if w.MaxViews != nil && w.CurrentViews >= *w.MaxViews {
		return Verdict{Expired: true, Reason: ReasonViews}
	}
	return Verdict{}
}

// RemainingViews returns MaxViews - CurrentViews clamped at zero,
// or nil when the wish has no view cap.
func RemainingViews(w *Wish) *int {
	if w.MaxViews == nil {
		return nil
	}
	remaining := *w.MaxViews - w.CurrentViews
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}
