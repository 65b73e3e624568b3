package transform

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/s2"

	"github.com/roach88/reprojcheck/internal/crs"
)

// webMercatorMaxX is half the equatorial circumference of the WGS 84
// sphere used by EPSG:3857 (pi * 6378137).
const webMercatorMaxX = 20037508.342789244

// utmFalseNorthingSouth is added to northings in the southern hemisphere.
const utmFalseNorthingSouth = 10000000.0

var errOutOfDomain = errors.New("coordinate outside projection domain")

// step converts between one CRS and geographic lon/lat degrees.
type step interface {
	toGeographic(x, y float64) (lon, lat float64, err error)
	fromGeographic(lon, lat float64) (x, y float64, err error)
}

func newStep(c crs.CRS) (step, error) {
	switch {
	case c.IsGeographic():
		return geographicStep{}, nil
	case c.Projection == crs.ProjectionWebMercator:
		return mercatorStep{proj: s2.NewMercatorProjection(webMercatorMaxX)}, nil
	case c.Projection == crs.ProjectionTransverseUTM:
		return utmStep{proj: newUTMProjection(c.Zone, c.South)}, nil
	default:
		return nil, fmt.Errorf("%s: %w", c.Identifier(), ErrNoPath)
	}
}

type geographicStep struct{}

func (geographicStep) toGeographic(x, y float64) (float64, float64, error) {
	return x, y, nil
}

func (geographicStep) fromGeographic(lon, lat float64) (float64, float64, error) {
	return lon, lat, nil
}

type mercatorStep struct {
	proj s2.Projection
}

func (s mercatorStep) toGeographic(x, y float64) (float64, float64, error) {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return 0, 0, errOutOfDomain
	}
	ll := s.proj.ToLatLng(r2.Point{X: x, Y: y})
	return ll.Lng.Degrees(), ll.Lat.Degrees(), nil
}

func (s mercatorStep) fromGeographic(lon, lat float64) (float64, float64, error) {
	if math.IsNaN(lon) || math.Abs(lat) >= 90 || math.IsNaN(lat) {
		return 0, 0, errOutOfDomain
	}
	p := s.proj.FromLatLng(s2.LatLngFromDegrees(lat, lon))
	if math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
		return 0, 0, errOutOfDomain
	}
	return p.X, p.Y, nil
}

// utmStep projects onto a fixed UTM zone. Northings always follow the
// target CRS hemisphere convention, even for points across the equator.
type utmStep struct {
	proj *transverseMercator
}

func (s utmStep) toGeographic(x, y float64) (float64, float64, error) {
	ll, err := s.proj.inverse(x, y)
	if err != nil {
		return 0, 0, err
	}
	return ll.Lng.Degrees(), ll.Lat.Degrees(), nil
}

func (s utmStep) fromGeographic(lon, lat float64) (float64, float64, error) {
	if math.IsNaN(lon) || math.IsNaN(lat) {
		return 0, 0, errOutOfDomain
	}
	return s.proj.forward(s2.LatLngFromDegrees(lat, lon))
}
