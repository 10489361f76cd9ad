package utils

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)

// ValidateHeaderIDs rejects empty batches and non-positive ids
func ValidateHeaderIDs(ids []int64) error {
	if len(ids) == 0 {
		return fmt.Errorf("at least one header id is required")
	}
	for _, id := range ids {
		if id <= 0 {
			return fmt.Errorf("invalid header id: %d", id)
		}
	}
	return nil
}

// DedupeIDs drops repeated ids, keeping first occurrence order
func DedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// ValidateActor requires a non-blank actor id
func ValidateActor(actor string) error {
	if strings.TrimSpace(actor) == "" {
		return fmt.Errorf("actor is required")
	}
	return nil
}

// ParseAmountCents converts a major-unit amount such as "1,234.50" to minor units
func ParseAmountCents(s string) (int64, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if clean == "" {
		return 0, fmt.Errorf("amount is empty")
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return AmountToCents(f)
}

// AmountToCents rounds a major-unit amount to minor units
func AmountToCents(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid amount: %v", f)
	}
	if f < 0 {
		return 0, fmt.Errorf("amount must not be negative: %.2f", f)
	}
	return int64(math.Round(f * 100)), nil
}

// FormatCents renders minor units as a major-unit string with two decimals
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// SanitizeString removes control characters
func SanitizeString(s string) string {
	return controlChars.ReplaceAllString(s, "")
}
