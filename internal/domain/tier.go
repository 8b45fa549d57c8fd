package domain

// Tier is a coarse severity bucket derived from a flood probability.
type Tier string

const (
	TierNeutral Tier = "neutral"
	TierLow     Tier = "low"
	TierMedium  Tier = "medium"
	TierHigh    Tier = "high"
)

// Tier thresholds. Boundary values belong to the higher tier.
const (
	HighRiskThreshold   = 0.75
	MediumRiskThreshold = 0.5
)

// SelectTier maps a probability to its severity tier.
func SelectTier(probability float64) Tier {
	switch {
	case probability >= HighRiskThreshold:
		return TierHigh
	case probability >= MediumRiskThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// MarkerIcon describes the image used to draw a marker.
type MarkerIcon struct {
	URL         string `json:"url"`
	Size        [2]int `json:"size"`
	Anchor      [2]int `json:"anchor"`
	PopupAnchor [2]int `json:"popup_anchor"`
}

// icons is built once at package init and shared read-only by every session.
var icons = map[Tier]MarkerIcon{
	TierNeutral: newMarkerIcon("https://cdnjs.cloudflare.com/ajax/libs/leaflet/1.7.1/images/marker-icon.png"),
	TierLow:     newMarkerIcon("https://raw.githubusercontent.com/pointhi/leaflet-color-markers/master/img/marker-icon-2x-green.png"),
	TierMedium:  newMarkerIcon("https://raw.githubusercontent.com/pointhi/leaflet-color-markers/master/img/marker-icon-2x-yellow.png"),
	TierHigh:    newMarkerIcon("https://raw.githubusercontent.com/pointhi/leaflet-color-markers/master/img/marker-icon-2x-red.png"),
}

func newMarkerIcon(url string) MarkerIcon {
	return MarkerIcon{
		URL:         url,
		Size:        [2]int{25, 41},
		Anchor:      [2]int{12, 41},
		PopupAnchor: [2]int{1, -34},
	}
}

// IconFor returns the marker icon for a tier. Unknown tiers get the neutral icon.
func IconFor(t Tier) MarkerIcon {
	if icon, ok := icons[t]; ok {
		return icon
	}
	return icons[TierNeutral]
}
