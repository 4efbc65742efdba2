package domain

import (
	"strconv"
)

// Seat map of every flight: rows 1..SeatRows, columns A..F.
const (
	SeatRows    = 30
	SeatColumns = "ABCDEF"
	SeatCount   = SeatRows * len(SeatColumns)
)

// SeatNumber formats a seat as row followed by column letter, e.g. "12C".
// row is 1-based, col is 0-based.
func SeatNumber(row, col int) string {
	return strconv.Itoa(row) + SeatColumns[col:col+1]
}

// ValidSeat reports whether seat names a seat on the map. The row is
// plain decimal digits without sign, padding or leading zero, so every
// seat has exactly one spelling.
func ValidSeat(seat string) bool {
	if len(seat) < 2 || len(seat) > 3 {
		return false
	}
	col := seat[len(seat)-1]
	if col < 'A' || col > 'F' {
		return false
	}
	digits := seat[:len(seat)-1]
	if digits[0] == '0' {
		return false
	}
	row := 0
	for i := 0; i < len(digits); i++ {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		row = row*10 + int(c-'0')
	}
	return row >= 1 && row <= SeatRows
}
