package listing

import (
	"fmt"
	"strings"
	"unicode"
)

// Money is an amount in hundredths of the currency unit.
type Money int64

func Units(n int64) Money {
	return Money(n * 100)
}

// ParseMoney reads scraped amounts such as "2 599 zł" or "1.500,50 zł".
// Grouping separators are dropped; a comma or period followed by exactly two
// trailing digits is taken as the fractional part. Reports false when the text
// holds no digits at all.
func ParseMoney(text string) (Money, bool) {
	var whole, frac strings.Builder
	inFraction := false

	for _, r := range text {
		switch {
		case unicode.IsDigit(r) && r <= unicode.MaxASCII:
			if inFraction {
				frac.WriteRune(r)
			} else {
				whole.WriteRune(r)
			}
		case r == ',' || r == '.':
			if inFraction {
				// another separator: what we took for a fraction was a group
				whole.WriteString(frac.String())
				frac.Reset()
			}
			inFraction = whole.Len() > 0
		}
	}

	if inFraction && frac.Len() != 2 {
		whole.WriteString(frac.String())
		frac.Reset()
	}

	if whole.Len() == 0 && frac.Len() == 0 {
		return 0, false
	}

	var amount int64
	for _, r := range whole.String() {
		amount = amount*10 + int64(r-'0')
	}
	amount *= 100
	if frac.Len() == 2 {
		f := frac.String()
		amount += int64(f[0]-'0')*10 + int64(f[1]-'0')
	}

	return Money(amount), true
}

func (m Money) Whole() int64 {
	return int64(m) / 100
}

func (m Money) String() string {
	if m%100 == 0 {
		return fmt.Sprintf("%d zł", m.Whole())
	}
	return fmt.Sprintf("%d,%02d zł", m.Whole(), int64(m)%100)
}
