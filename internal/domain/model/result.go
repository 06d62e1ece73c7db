package model

// ResultSlot names one of the independent result-URL channels a single
// generation run may populate.
type ResultSlot string

const (
	SlotPrimary       ResultSlot = "primary"
	SlotWatermarkFree ResultSlot = "watermark_free"
	SlotMirror        ResultSlot = "mirror"
)

// ResultSet accumulates classified result URLs with first-seen-wins
// semantics per slot.
type ResultSet struct {
	PrimaryURL       string `json:"primaryUrl,omitempty"`
	WatermarkFreeURL string `json:"watermarkFreeUrl,omitempty"`
	MirrorURL        string `json:"mirrorUrl,omitempty"`
}

// SetIfAbsent records url under slot unless that slot is already taken.
// Reports whether the url was stored.
func (r *ResultSet) SetIfAbsent(slot ResultSlot, url string) bool {
	if url == "" {
		return false
	}
	switch slot {
	case SlotPrimary:
		if r.PrimaryURL == "" {
			r.PrimaryURL = url
			return true
		}
	case SlotWatermarkFree:
		if r.WatermarkFreeURL == "" {
			r.WatermarkFreeURL = url
			return true
		}
	case SlotMirror:
		if r.MirrorURL == "" {
			r.MirrorURL = url
			return true
		}
	}
	return false
}

// Any reports whether at least one slot is populated.
func (r *ResultSet) Any() bool {
	return r.PrimaryURL != "" || r.WatermarkFreeURL != "" || r.MirrorURL != ""
}
