// Package units converts between document units (inches) and rendering units
// (pixels at a given DPI).
package units

import "math"

// DefaultDPI is the export resolution used when the caller does not choose one.
const DefaultDPI = 150.0

// SquareInchesPerSquareFoot is used to derive printable area for pricing.
const SquareInchesPerSquareFoot = 144.0

// InchesToPixels scales a document measurement to pixels at dpi.
func InchesToPixels(v, dpi float64) float64 {
	return v * dpi
}

// PixelsToInches is the inverse of InchesToPixels.
func PixelsToInches(px, dpi float64) float64 {
	if dpi == 0 {
		return 0
	}
	return px / dpi
}

// PixelSize returns the whole-pixel extent of a canvas dimension. It never
// returns less than one pixel.
func PixelSize(inches, dpi float64) int {
	n := int(math.Round(InchesToPixels(inches, dpi)))
	if n < 1 {
		return 1
	}
	return n
}

// AreaSqFt returns the area of a width x height rectangle, given in inches,
// in square feet.
func AreaSqFt(widthIn, heightIn float64) float64 {
	return widthIn * heightIn / SquareInchesPerSquareFoot
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// NormalizeDegrees wraps a rotation into [0, 360). Stored rotations are left
// untouched; this is for display.
func NormalizeDegrees(deg float64) float64 {
	r := math.Mod(deg, 360)
	if r < 0 {
		r += 360
	}
	return r
}
