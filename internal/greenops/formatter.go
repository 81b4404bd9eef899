package greenops

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// printer is the locale-aware message printer for number formatting.
// Uses English locale for consistent thousand separators.
//
//nolint:gochecknoglobals // Global printer is idiomatic for x/text/message usage.
var printer = message.NewPrinter(language.English)

// FormatNumber formats an integer with thousand separators.
// Example: FormatNumber(18248) returns "18,248".
func FormatNumber(n int64) string {
	return printer.Sprintf("%d", n)
}

// FormatDecimal rounds d half away from zero to places and adds thousand separators.
// Example: FormatDecimal(decimal.RequireFromString("1234.567"), 2) returns "1,234.57".
func FormatDecimal(d decimal.Decimal, places int32) string {
	fixed := d.StringFixed(places)

	negative := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	intPart, fracPart, hasFrac := strings.Cut(fixed, ".")
	grouped := groupThousands(intPart)
	if hasFrac {
		grouped += "." + fracPart
	}
	if negative && strings.Trim(grouped, "0.,") != "" {
		return "-" + grouped
	}
	return grouped
}

// groupThousands inserts commas into a string of ASCII digits.
func groupThousands(digits string) string {
	const group = 3
	if len(digits) <= group {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % group
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += group {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+group])
	}
	return b.String()
}

// FormatTonnes formats a metric-ton quantity with two decimals and the unit.
// Example: FormatTonnes(decimal.NewFromInt(1500)) returns "1,500.00 tCO2e".
func FormatTonnes(d decimal.Decimal) string {
	return FormatDecimal(d, 2) + " tCO2e"
}

// FormatLarge formats large numbers with abbreviated notation.
//
// Values below LargeNumberThreshold (1 million) use comma-separated format.
// Values at or above LargeNumberThreshold use "~X.X million" format.
// Values at or above BillionThreshold use "~X.X billion" format.
//
// Example: FormatLarge(1500000000) returns "~1.5 billion".
func FormatLarge(n float64) string {
	if n >= BillionThreshold {
		billions := n / BillionThreshold
		return fmt.Sprintf("~%.1f billion", billions)
	}

	if n >= LargeNumberThreshold {
		millions := n / LargeNumberThreshold
		return fmt.Sprintf("~%.1f million", millions)
	}

	return FormatNumber(int64(math.Round(n)))
}
