package model

import (
    "encoding/json"
    "errors"
    "fmt"
    "strconv"
    "strings"
)

// Cents is a fixed-point amount with two decimal places.  It is
// serialised as a decimal string ("12.50") so clients never see
// floating point.
type Cents int64

// ErrMalformedAmount is returned when a price string is not a
// non-negative decimal with at most two fractional digits.
var ErrMalformedAmount = errors.New("malformed amount")

// ParseCents parses "12", "12.5" or "12.50" into 1250.
func ParseCents(raw string) (Cents, error) {
    s := strings.TrimSpace(raw)
    if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
        return 0, ErrMalformedAmount
    }
    whole, frac, hasFrac := strings.Cut(s, ".")
    if !digitsOnly(whole) || (hasFrac && (!digitsOnly(frac) || len(frac) > 2)) {
        return 0, ErrMalformedAmount
    }
    w, err := strconv.ParseInt(whole, 10, 64)
    if err != nil {
        return 0, ErrMalformedAmount
    }
    var f int64
    if hasFrac {
        if len(frac) == 1 {
            frac += "0"
        }
        f, err = strconv.ParseInt(frac, 10, 64)
        if err != nil {
            return 0, ErrMalformedAmount
        }
    }
    if w > (1<<62)/100 {
        return 0, ErrMalformedAmount
    }
    return Cents(w*100 + f), nil
}

// String formats the amount with exactly two decimals.
func (c Cents) String() string {
    sign := ""
    v := int64(c)
    if v < 0 {
        sign = "-"
        v = -v
    }
    return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON encodes the amount as a decimal string.
func (c Cents) MarshalJSON() ([]byte, error) { return json.Marshal(c.String()) }

// UnmarshalJSON accepts either a decimal string or a JSON number.
func (c *Cents) UnmarshalJSON(b []byte) error {
    var s string
    if err := json.Unmarshal(b, &s); err != nil {
        var n json.Number
        if err := json.Unmarshal(b, &n); err != nil {
            return ErrMalformedAmount
        }
        s = n.String()
    }
    v, err := ParseCents(s)
    if err != nil {
        return err
    }
    *c = v
    return nil
}

func digitsOnly(s string) bool {
    if s == "" {
        return false
    }
    for i := 0; i < len(s); i++ {
        if s[i] < '0' || s[i] > '9' {
            return false
        }
    }
    return true
}
