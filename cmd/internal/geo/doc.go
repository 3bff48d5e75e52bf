// Package geo holds the geographic primitives shared by the server stores and the
// client sync loop: a (longitude, latitude) Point with its GeoJSON encoding,
// spherical distance, and an in-memory spatial hash index.
//
// Coordinates are always handled longitude first. The Point type exists so that
// the ordering is fixed by the compiler instead of by convention.
package geo
