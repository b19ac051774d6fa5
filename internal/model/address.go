package model

// Extraction layers, in order of trust.
const (
	LayerStructured = "structured"
	LayerMarkup     = "markup"
	LayerPattern    = "pattern"
)

// AddressCandidate is a span of text that looks like an address.
type AddressCandidate struct {
	SourceID   string   `json:"source_id"`
	Text       string   `json:"text"`
	Confidence float64  `json:"confidence"`
	Layer      string   `json:"layer"`
	Listing    *Listing `json:"listing,omitempty"`
}

// Listing is the business metadata a structured record carried next to
// its address, such as a maps place or a JSON-LD organization.
type Listing struct {
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Website string `json:"website,omitempty"`
}

// Empty reports whether the listing carries no field.
func (l *Listing) Empty() bool {
	return l == nil || (l.Name == "" && l.Phone == "" && l.Website == "")
}

// Component is one labeled piece of a parsed address (road, city, ...).
// Labels come from the parser's taxonomy and are not interpreted here
// beyond ordering.
type Component struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// LatLon is a geocoded coordinate pair.
type LatLon struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NormalizedAddress is the deduplicated output unit.
type NormalizedAddress struct {
	Components  []Component `json:"components"`
	Canonical   string      `json:"canonical"`
	Sources     []string    `json:"sources"`
	Confidence  float64     `json:"confidence"`
	Coordinates *LatLon     `json:"coordinates,omitempty"`
	Listing     *Listing    `json:"listing,omitempty"`
}

// Component returns the first value for label, or "".
func (a NormalizedAddress) Component(label string) string {
	for _, c := range a.Components {
		if c.Label == label {
			return c.Value
		}
	}
	return ""
}
