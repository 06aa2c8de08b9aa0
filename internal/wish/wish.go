package wish

import "time"

// State is the lifecycle state of a wish.
type State string

const (
	// StateActive wishes can be viewed.
	StateActive State = "active"

	// StateSoftDeleted wishes are read-only and pending reclamation.
	StateSoftDeleted State = "soft_deleted"

	// StateHardDeleted is terminal and never persisted: absence from the
	// store is this state.
	StateHardDeleted State = "hard_deleted"
)

// Wish is a shareable message that expires by time, by view count,
// or by explicit deletion.
type Wish struct {
	// ID is a ULID assigned at creation
	ID string `json:"id"`

	// Slug is the public identifier (8-10 chars from slug.Alphabet)
	Slug string `json:"slug"`

	Title   *string `json:"title,omitempty"`
	Message string  `json:"message"`
	Theme   string  `json:"theme"`

	// ExpiresAt is the absolute time boundary (nil = no time expiry)
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// MaxViews is the view ceiling (nil = no view expiry)
	MaxViews *int `json:"max_views,omitempty"`

	// CurrentViews never decreases
	CurrentViews int `json:"current_views"`

	// OriginFingerprint is the keyed hash of the creating client's origin
	OriginFingerprint string `json:"-"`

	CreatedAt time.Time `json:"created_at"`

	// SoftDeletedAt is set exactly once, on the transition out of Active
	SoftDeletedAt *time.Time `json:"soft_deleted_at,omitempty"`
}

// State derives the lifecycle state from SoftDeletedAt.
func (w *Wish) State() State {
	if w.SoftDeletedAt != nil {
		return StateSoftDeleted
	}
	return StateActive
}

// Image is a stored media file attached to a wish.
type Image struct {
	ID        string    `json:"id"`
	WishID    string    `json:"wish_id"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}
