// Package conv provides checked integer conversions.
//
// The wire format stores counts and lengths as signed 32-bit integers while the
// in-memory types use int. Every narrowing on the way to or from the wire goes
// through this package so that overflow surfaces as an error instead of a
// silently wrapped header field.
package conv
