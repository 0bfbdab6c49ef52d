package resolve

import (
	"context"
	"log/slog"
	"strings"

	"github.com/lysyi3m/civic-events/app/facility"
	"github.com/lysyi3m/civic-events/app/geo"
	"github.com/lysyi3m/civic-events/app/geocode"
	"github.com/lysyi3m/civic-events/app/locale"
)

// Resolver is the per-event entry point collectors call. It combines the
// facility master, the geocoder and the point validator; every method is
// total and degrades to nil or "".
type Resolver struct {
	geocoder  *geocode.Resolver
	master    *facility.Master
	validator *geo.Validator
}

func NewResolver(geocoder *geocode.Resolver, master *facility.Master, validator *geo.Validator) *Resolver {
	return &Resolver{
		geocoder:  geocoder,
		master:    master,
		validator: validator,
	}
}

// Resolution is the outcome of Resolve. Fallback is set when Point is the
// locale's declared center rather than a resolved venue.
type Resolution struct {
	Point    *geo.Point
	Address  string
	Fallback bool
}

// ResolveEventPoint decides the point for one event. A point attached to a
// placeholder venue without a street-level address is discarded.
func (r *Resolver) ResolveEventPoint(loc *locale.Locale, venue string, current *geo.Point, currentAddress string) *geo.Point {
	if loc == nil {
		return r.validate(current, geo.Area{})
	}

	generic := loc.IsGenericVenue(venue)
	if current != nil && generic && !HasStreetToken(currentAddress) {
		slog.Debug("Point discarded for generic venue", "source", loc.Key, "venue", venue)
		current = nil
	}

	if p := r.validate(current, loc.Area()); p != nil {
		if !generic && r.master != nil {
			r.master.SetPoint(loc.Key, venue, p)
		}
		return p
	}

	if generic || r.master == nil {
		return nil
	}

	p := r.validate(r.master.GetPoint(loc.Key, venue), loc.Area())
	if p != nil {
		r.master.SetPoint(loc.Key, venue, p)
	}
	return p
}

// ResolveEventAddress picks the event's address: the page's own address
// unless it is municipal-office boilerplate, then the facility master, then
// the reverse address on point when it names the expected municipality. The
// winner is recorded for the venue.
func (r *Resolver) ResolveEventAddress(loc *locale.Locale, venue, currentAddress string, point *geo.Point) string {
	if loc == nil {
		return SanitizeAddress(currentAddress)
	}

	generic := loc.IsGenericVenue(venue)
	address := ""

	if a := SanitizeAddress(currentAddress); a != "" && !loc.IsBoilerplateAddress(a) {
		address = a
	}

	if address == "" && !generic && r.master != nil {
		address = r.master.GetAddress(loc.Key, venue)
	}

	if address == "" && point != nil && matchesMunicipality(point.Address, loc.ExpectedMunicipality()) {
		address = point.Address
	}

	if address != "" && r.master != nil {
		r.master.SetAddress(loc.Key, venue, address)
	}
	return address
}

// Resolve runs the full chain for one event: facility master, ranked
// geocoding, point and address resolution, and finally the locale's center.
func (r *Resolver) Resolve(ctx context.Context, loc *locale.Locale, title, venue, address string) Resolution {
	var current *geo.Point

	if loc != nil && r.master != nil && !loc.IsGenericVenue(venue) {
		current = r.master.GetPoint(loc.Key, venue)
	}

	if current == nil && r.geocoder != nil {
		area := geo.Area{}
		if loc != nil {
			area = loc.Area()
		}
		current = r.geocoder.ResolveRanked(ctx, BuildCandidates(title, venue, address, loc), area)
	}

	point := r.ResolveEventPoint(loc, venue, current, address)
	res := Resolution{
		Point:   point,
		Address: r.ResolveEventAddress(loc, venue, address, point),
	}

	if res.Point == nil && loc != nil && loc.Center != nil {
		center := *loc.Center
		res.Point = &center
		res.Fallback = true
	}
	return res
}

func (r *Resolver) validate(p *geo.Point, area geo.Area) *geo.Point {
	if p == nil {
		return nil
	}
	if r.validator == nil {
		if !p.IsFinite() {
			return nil
		}
		return p
	}
	return r.validator.Validate(p, area)
}

func matchesMunicipality(address, expected string) bool {
	if address == "" || expected == "" {
		return false
	}
	m := geocode.Municipality(address)
	if m == "" {
		return false
	}
	if m == expected {
		return true
	}
	// Designated-city wards are labelled "横浜市中区".
	return strings.HasPrefix(expected, m) && strings.HasPrefix(geocode.StripPrefecture(address), expected)
}
