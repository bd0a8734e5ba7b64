package model

import (
    "errors"
    "strconv"
    "strings"
)

// SeatsPerRow is the fixed width of every full row.  The last row of a
// screening may be shorter when the total is not a multiple of it.
const SeatsPerRow = 10

// ErrMalformedSeat is returned by ParseSeat when the label is not a row
// of letters followed by a positive seat number.
var ErrMalformedSeat = errors.New("malformed seat label")

// Seat identifies a seat by zero-based row index and one-based column.
// Row 0 is labelled "A", row 25 "Z", row 26 "AA" and so on.
type Seat struct {
    Row int
    Col int
}

// String returns the canonical label, e.g. "B2".
func (s Seat) String() string { return RowLabel(s.Row) + strconv.Itoa(s.Col) }

// ParseSeat parses a label such as "b2" or " AA10 " into a Seat.  It
// only checks the shape of the label; range checks belong to Layout.
func ParseSeat(raw string) (Seat, error) {
    s := strings.ToUpper(strings.TrimSpace(raw))
    i := 0
    for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
        i++
    }
    if i == 0 || i == len(s) {
        return Seat{}, ErrMalformedSeat
    }
    row, ok := RowIndex(s[:i])
    if !ok {
        return Seat{}, ErrMalformedSeat
    }
    digits := s[i:]
    if digits[0] == '0' {
        return Seat{}, ErrMalformedSeat
    }
    col, err := strconv.Atoi(digits)
    if err != nil || col < 1 {
        return Seat{}, ErrMalformedSeat
    }
    return Seat{Row: row, Col: col}, nil
}

// RowLabel converts a zero-based row index to its alphabetical label
// (A, B, ..., Z, AA, AB, ...).
func RowLabel(i int) string {
    if i < 0 {
        return ""
    }
    res := []byte{}
    for {
        res = append(res, byte('A'+i%26))
        i = i/26 - 1
        if i < 0 {
            break
        }
    }
    for j, k := 0, len(res)-1; j < k; j, k = j+1, k-1 {
        res[j], res[k] = res[k], res[j]
    }
    return string(res)
}

// RowIndex converts a row label like "A" or "AA" into its zero-based
// index.  The label must be upper-case ASCII letters.
func RowIndex(label string) (int, bool) {
    if label == "" || len(label) > 4 {
        return -1, false
    }
    n := 0
    for i := 0; i < len(label); i++ {
        ch := label[i]
        if ch < 'A' || ch > 'Z' {
            return -1, false
        }
        n = n*26 + int(ch-'A'+1)
    }
    return n - 1, true
}

// Layout is the seat arrangement derived from a screening's total
// seat count.  It is the only place seat bounds are computed, so the
// availability report and claim validation can never disagree.
type Layout struct {
    Total int
}

// NewLayout returns the layout for total seats.
func NewLayout(total int) Layout {
    if total < 0 {
        total = 0
    }
    return Layout{Total: total}
}

// Rows returns the number of rows, counting a partial last row.
func (l Layout) Rows() int { return (l.Total + SeatsPerRow - 1) / SeatsPerRow }

// RowWidth returns the number of seats in row r, or 0 when r is out of
// range.  The last row holds Total mod SeatsPerRow seats, or a full row
// when Total divides evenly.
func (l Layout) RowWidth(r int) int {
    rows := l.Rows()
    if r < 0 || r >= rows {
        return 0
    }
    if r == rows-1 {
        if rem := l.Total % SeatsPerRow; rem != 0 {
            return rem
        }
    }
    return SeatsPerRow
}

// Contains reports whether s lies within the layout.
func (l Layout) Contains(s Seat) bool {
    return s.Col >= 1 && s.Col <= l.RowWidth(s.Row)
}

// Index returns the dense zero-based index of s, row-major.
func (l Layout) Index(s Seat) (int, bool) {
    if !l.Contains(s) {
        return -1, false
    }
    return s.Row*SeatsPerRow + s.Col - 1, true
}

// SeatAt is the inverse of Index.
func (l Layout) SeatAt(i int) Seat {
    return Seat{Row: i / SeatsPerRow, Col: i%SeatsPerRow + 1}
}

// Seats lists every seat in row-major order.
func (l Layout) Seats() []Seat {
    out := make([]Seat, 0, l.Total)
    for i := 0; i < l.Total; i++ {
        out = append(out, l.SeatAt(i))
    }
    return out
}
