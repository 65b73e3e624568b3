// Package crs resolves well-known coordinate reference system identifiers
// into the definitions the transform package knows how to project.
package crs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrUnknownCRS is returned when an identifier does not name a supported CRS.
var ErrUnknownCRS = errors.New("unknown CRS")

// Kind distinguishes geographic from projected systems.
type Kind int

const (
	Geographic Kind = iota
	Projected
)

func (k Kind) String() string {
	switch k {
	case Geographic:
		return "geographic"
	case Projected:
		return "projected"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Projection names the map projection of a projected CRS.
type Projection string

const (
	ProjectionNone          Projection = ""
	ProjectionWebMercator   Projection = "web_mercator"
	ProjectionTransverseUTM Projection = "utm"
)

// EPSG codes with special handling.
const (
	CodeWGS84          = 4326
	CodePseudoMercator = 3857
)

const (
	codeUTMNorthFirst = 32601
	codeUTMNorthLast  = 32660
	codeUTMSouthFirst = 32701
	codeUTMSouthLast  = 32760
	utmNorthZoneBase  = 32600
	utmSouthZoneBase  = 32700

	urnPrefix  = "urn:ogc:def:crs:epsg:"
	epsgPrefix = "epsg:"
)

// CRS describes one supported coordinate reference system.
//
// Geographic systems use traditional GIS axis order: x is longitude and
// y is latitude, both in degrees. Projected systems use easting/northing
// in metres.
type CRS struct {
	Code       int        `json:"code"`
	Name       string     `json:"name"`
	Kind       Kind       `json:"kind"`
	Projection Projection `json:"projection,omitempty"`

	// Zone and South are set for UTM systems only.
	Zone  int  `json:"zone,omitempty"`
	South bool `json:"south,omitempty"`
}

// Identifier returns the canonical "EPSG:<code>" form.
func (c CRS) Identifier() string {
	return "EPSG:" + strconv.Itoa(c.Code)
}

func (c CRS) String() string {
	return fmt.Sprintf("%s (%s)", c.Identifier(), c.Name)
}

// IsGeographic reports whether coordinates are lon/lat degrees.
func (c CRS) IsGeographic() bool {
	return c.Kind == Geographic
}

// Lookup returns the CRS for an EPSG code.
func Lookup(code int) (CRS, error) {
	switch {
	case code == CodeWGS84:
		return CRS{Code: code, Name: "WGS 84", Kind: Geographic}, nil
	case code == CodePseudoMercator:
		return CRS{
			Code:       code,
			Name:       "WGS 84 / Pseudo-Mercator",
			Kind:       Projected,
			Projection: ProjectionWebMercator,
		}, nil
	case code >= codeUTMNorthFirst && code <= codeUTMNorthLast:
		zone := code - utmNorthZoneBase
		return CRS{
			Code:       code,
			Name:       fmt.Sprintf("WGS 84 / UTM zone %dN", zone),
			Kind:       Projected,
			Projection: ProjectionTransverseUTM,
			Zone:       zone,
		}, nil
	case code >= codeUTMSouthFirst && code <= codeUTMSouthLast:
		zone := code - utmSouthZoneBase
		return CRS{
			Code:       code,
			Name:       fmt.Sprintf("WGS 84 / UTM zone %dS", zone),
			Kind:       Projected,
			Projection: ProjectionTransverseUTM,
			Zone:       zone,
			South:      true,
		}, nil
	}
	return CRS{}, fmt.Errorf("EPSG:%d: %w", code, ErrUnknownCRS)
}

// Parse resolves an identifier such as "EPSG:4326", "4326" or
// "urn:ogc:def:crs:EPSG::32631". Matching is case-insensitive and
// compatibility-normalized, so full-width digits are accepted.
func Parse(id string) (CRS, error) {
	s := strings.ToLower(strings.TrimSpace(norm.NFKC.String(id)))
	if s == "" {
		return CRS{}, fmt.Errorf("empty identifier: %w", ErrUnknownCRS)
	}

	switch {
	case strings.HasPrefix(s, urnPrefix):
		// The version segment between the two colons is optional.
		rest := strings.TrimPrefix(s, urnPrefix)
		if i := strings.LastIndexByte(rest, ':'); i >= 0 {
			rest = rest[i+1:]
		}
		s = rest
	case strings.HasPrefix(s, epsgPrefix):
		s = strings.TrimPrefix(s, epsgPrefix)
	}

	code, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return CRS{}, fmt.Errorf("%q: %w", id, ErrUnknownCRS)
	}
	c, err := Lookup(code)
	if err != nil {
		return CRS{}, fmt.Errorf("%q: %w", id, ErrUnknownCRS)
	}
	return c, nil
}

// MustParse is like Parse but panics on error. Intended for constants in
// tests and defaults.
func MustParse(id string) CRS {
	c, err := Parse(id)
	if err != nil {
		panic(err)
	}
	return c
}

// Known returns the geographic and mercator systems followed by every UTM
// zone, north then south.
func Known() []CRS {
	out := make([]CRS, 0, 2+2*60)
	for _, code := range []int{CodeWGS84, CodePseudoMercator} {
		c, _ := Lookup(code)
		out = append(out, c)
	}
	for code := codeUTMNorthFirst; code <= codeUTMNorthLast; code++ {
		c, _ := Lookup(code)
		out = append(out, c)
	}
	for code := codeUTMSouthFirst; code <= codeUTMSouthLast; code++ {
		c, _ := Lookup(code)
		out = append(out, c)
	}
	return out
}
