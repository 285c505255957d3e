package dca

import (
	"fmt"
	"strings"
)

// Display selects the currency amounts are shown in.
type Display int

const (
	Base      Display = iota // Base shows amounts in the recording currency.
	Secondary                // Secondary shows amounts converted with the quote's rate.
)

func (d Display) String() string {
	switch d {
	case Base:
		return "base"
	case Secondary:
		return "secondary"
	default:
		return fmt.Sprintf("Display(%d)", int(d))
	}
}

// ParseDisplay parses "base" or "secondary", or one of the asset's currency
// codes, into a Display.
func ParseDisplay(s string, a Asset) (Display, error) {
	switch {
	case strings.EqualFold(s, "base"), strings.EqualFold(s, a.Base):
		return Base, nil
	case strings.EqualFold(s, "secondary"), strings.EqualFold(s, a.Secondary):
		return Secondary, nil
	}
	return Base, fmt.Errorf("invalid display currency %q want %q or %q", s, a.Base, a.Secondary)
}
