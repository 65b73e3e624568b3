package transform

import (
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// WGS 84 ellipsoid and UTM grid constants.
const (
	wgs84A         = 6378137.0
	wgs84F         = 1 / 298.257223563
	utmScale       = 0.9996
	utmFalseEast   = 500000.0
	utmZoneWidth   = 6.0
	utmMaxLonDelta = 90.0
)

// transverseMercator is an ellipsoidal transverse Mercator projection
// evaluated with the Krüger series to fourth order in the third
// flattening. Within a few thousand kilometres of the central meridian the
// series is accurate to well under a millimetre.
//
// A transverseMercator holds only coefficients computed at construction
// and is safe for concurrent use.
type transverseMercator struct {
	lon0       s1.Angle
	falseEast  float64
	falseNorth float64
	scale      float64 // k0 * A, the rectifying radius scaled to the grid
	e          float64
	alpha      [4]float64
	beta       [4]float64
	delta      [4]float64
}

func newUTMProjection(zone int, south bool) *transverseMercator {
	tm := newTransverseMercator(wgs84A, wgs84F, utmScale)
	tm.lon0 = s1.Angle(float64(zone)*utmZoneWidth-183) * s1.Degree
	tm.falseEast = utmFalseEast
	if south {
		tm.falseNorth = utmFalseNorthingSouth
	}
	return tm
}

func newTransverseMercator(a, f, k0 float64) *transverseMercator {
	n := f / (2 - f)
	n2 := n * n
	n3 := n2 * n
	n4 := n3 * n
	return &transverseMercator{
		scale: k0 * a / (1 + n) * (1 + n2/4 + n4/64),
		e:     math.Sqrt(f * (2 - f)),
		alpha: [4]float64{
			n/2 - 2*n2/3 + 5*n3/16 + 41*n4/180,
			13*n2/48 - 3*n3/5 + 557*n4/1440,
			61*n3/240 - 103*n4/140,
			49561 * n4 / 161280,
		},
		beta: [4]float64{
			n/2 - 2*n2/3 + 37*n3/96 - n4/360,
			n2/48 + n3/15 - 437*n4/1440,
			17*n3/480 - 37*n4/840,
			4397 * n4 / 161280,
		},
		delta: [4]float64{
			2*n - 2*n2/3 - 2*n3 + 116*n4/45,
			7*n2/3 - 8*n3/5 - 227*n4/45,
			56*n3/15 - 136*n4/35,
			4279 * n4 / 630,
		},
	}
}

// forward returns the easting and northing of ll.
func (tm *transverseMercator) forward(ll s2.LatLng) (float64, float64, error) {
	dlon := (ll.Lng - tm.lon0).Normalized()
	if math.IsNaN(dlon.Radians()) || !(math.Abs(ll.Lat.Degrees()) <= 90) || math.Abs(dlon.Degrees()) >= utmMaxLonDelta {
		return 0, 0, errOutOfDomain
	}
	phi, lam := ll.Lat.Radians(), dlon.Radians()

	sinPhi := math.Sin(phi)
	t := math.Sinh(math.Atanh(sinPhi) - tm.e*math.Atanh(tm.e*sinPhi))
	xiP := math.Atan2(t, math.Cos(lam))
	etaP := math.Atanh(math.Sin(lam) / math.Sqrt(1+t*t))

	xi, eta := xiP, etaP
	for j, a := range tm.alpha {
		k := float64(2 * (j + 1))
		xi += a * math.Sin(k*xiP) * math.Cosh(k*etaP)
		eta += a * math.Cos(k*xiP) * math.Sinh(k*etaP)
	}
	return tm.falseEast + tm.scale*eta, tm.falseNorth + tm.scale*xi, nil
}

// inverse returns the geographic position of a grid coordinate.
func (tm *transverseMercator) inverse(x, y float64) (s2.LatLng, error) {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return s2.LatLng{}, errOutOfDomain
	}
	xi := (y - tm.falseNorth) / tm.scale
	eta := (x - tm.falseEast) / tm.scale
	if math.Abs(xi) > math.Pi/2 {
		return s2.LatLng{}, errOutOfDomain
	}

	xiP, etaP := xi, eta
	for j, b := range tm.beta {
		k := float64(2 * (j + 1))
		xiP -= b * math.Sin(k*xi) * math.Cosh(k*eta)
		etaP -= b * math.Cos(k*xi) * math.Sinh(k*eta)
	}

	chi := math.Asin(math.Sin(xiP) / math.Cosh(etaP))
	phi := chi
	for j, d := range tm.delta {
		phi += d * math.Sin(float64(2*(j+1))*chi)
	}
	lam := math.Atan2(math.Sinh(etaP), math.Cos(xiP))
	if math.IsNaN(phi) || math.IsNaN(lam) {
		return s2.LatLng{}, errOutOfDomain
	}

	return s2.LatLng{
		Lat: s1.Angle(phi),
		Lng: (s1.Angle(lam) + tm.lon0).Normalized(),
	}, nil
}
