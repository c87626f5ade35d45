package utils

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// FormatNumber formate un entier à la française : "12 345"
func FormatNumber(n int) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	return sign + groupThousands(strconv.Itoa(n))
}

// FormatEuro formate un montant : "12 345,67 €"
func FormatEuro(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	cents := int64(math.Round(amount * 100))
	units := strconv.FormatInt(cents/100, 10)
	dec := cents % 100

	decStr := strconv.FormatInt(dec, 10)
	if dec < 10 {
		decStr = "0" + decStr
	}
	return sign + groupThousands(units) + "," + decStr + " €"
}

// FormatPercent formats a ratio (0.125) as "12,5 %".
func FormatPercent(ratio float64) string {
	s := strconv.FormatFloat(ratio*100, 'f', 1, 64)
	return strings.Replace(s, ".", ",", 1) + " %"
}

// FormatDateTimeFR : "19/10/2026 à 14:05"
func FormatDateTimeFR(t time.Time) string {
	return t.Format("02/01/2006") + " à " + t.Format("15:04")
}

// ISODate returns the YYYY-MM-DD part used in export filenames.
func ISODate(t time.Time) string {
	return t.Format("2006-01-02")
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
