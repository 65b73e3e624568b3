// Package transform converts coordinate sequences between the reference
// systems known to package crs.
//
// A Transformer is constructed once for a (source, target) pair and then
// applied to slices of x and y values in place. Every path pivots through
// geographic WGS 84 longitude/latitude:
//
//	source --toGeographic--> lon/lat --fromGeographic--> target
//
// Web Mercator uses the github.com/golang/geo/s2 MercatorProjection. UTM is
// an ellipsoidal transverse Mercator on WGS 84 evaluated with the Krüger
// series (see tmerc.go).
//
// # Failed points
//
// A point that cannot be projected (for example a latitude outside the
// projection's domain) is overwritten with +Inf on both axes, and Transform
// reports a *PointError counting the failures. The remaining points are
// still transformed.
//
// # Concurrency
//
// A Transformation is safe for concurrent use by multiple goroutines. Every
// step holds only immutable state. Whether results stay bit-identical under
// load is exactly what the harness package checks.
package transform
