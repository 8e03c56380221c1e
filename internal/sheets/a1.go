// Package sheets is a thin client for a Google-Sheets-shaped tabular
// store: range reads, single-cell writes and row appends over HTTP, with
// service-account bearer auth.
package sheets

import (
	"fmt"
	"strconv"
	"strings"
)

// ColumnLetter converts a 1-based column number to its A1 letter form
// (1 -> "A", 27 -> "AA").
func ColumnLetter(column int) string {
	var letter strings.Builder
	for column > 0 {
		rem := (column - 1) % 26
		letter.WriteByte(byte('A' + rem))
		column = (column - rem - 1) / 26
	}
	// runes were appended low-order first
	runes := []byte(letter.String())
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

// ColumnNumber is the inverse of ColumnLetter ("A" -> 1, "AA" -> 27).
func ColumnNumber(letters string) (int, error) {
	if letters == "" {
		return 0, fmt.Errorf("empty column reference")
	}
	n := 0
	for _, r := range strings.ToUpper(letters) {
		if r < 'A' || r > 'Z' {
			return 0, fmt.Errorf("invalid column reference %q", letters)
		}
		n = n*26 + int(r-'A'+1)
	}
	return n, nil
}

// CellRef builds an A1 cell reference from 1-based column and row numbers.
func CellRef(column, row int) string {
	return ColumnLetter(column) + strconv.Itoa(row)
}

// SplitRef breaks an A1 cell reference into its 1-based column and row.
func SplitRef(ref string) (column, row int, err error) {
	i := 0
	for i < len(ref) && ref[i] >= 'A' && ref[i] <= 'Z' {
		i++
	}
	if i == 0 || i == len(ref) {
		return 0, 0, fmt.Errorf("invalid cell reference %q", ref)
	}
	column, err = ColumnNumber(ref[:i])
	if err != nil {
		return 0, 0, err
	}
	row, err = strconv.Atoi(ref[i:])
	if err != nil || row < 1 {
		return 0, 0, fmt.Errorf("invalid cell reference %q", ref)
	}
	return column, row, nil
}
