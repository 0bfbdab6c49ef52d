package geocode

import (
	"github.com/lysyi3m/civic-events/app/geo"
)

// Outcome classifies a lookup. Public entry points collapse everything but
// Found into "no result"; the distinction is kept for logs and tests.
type Outcome int

const (
	Found Outcome = iota
	NotFound
	Rejected
	Error
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	case Rejected:
		return "rejected"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

type Result struct {
	Query   string
	Point   *geo.Point
	Outcome Outcome
	Reason  string
	Err     error
	Cached  bool
}

// feature is one element of the address-search response array.
type feature struct {
	Geometry struct {
		Coordinates []float64 `json:"coordinates"`
		Type        string    `json:"type"`
	} `json:"geometry"`
	Type       string `json:"type"`
	Properties struct {
		AddressCode string `json:"addressCode"`
		Title       string `json:"title"`
	} `json:"properties"`
}
