package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrBadPrice = errors.New("unparseable price")

// ParsePrice turns a vendor formatted price ("$1,234.56", "1.234,56 €",
// "¥1,200") into minor units. The last '.' or ',' followed by one or two
// digits is the decimal separator; every other separator groups thousands.
func ParsePrice(s string) (int64, error) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	clean := strings.Trim(b.String(), ".,")
	if clean == "" {
		return 0, fmt.Errorf("%w: %q", ErrBadPrice, s)
	}

	whole, frac := clean, ""
	if i := strings.LastIndexAny(clean, ".,"); i >= 0 {
		if tail := clean[i+1:]; len(tail) == 1 || len(tail) == 2 {
			whole, frac = clean[:i], tail
		}
	}
	whole = strings.NewReplacer(".", "", ",", "").Replace(whole)
	if whole == "" {
		whole = "0"
	}
	for len(frac) < 2 {
		frac += "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadPrice, s)
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadPrice, s)
	}
	return units*100 + cents, nil
}
