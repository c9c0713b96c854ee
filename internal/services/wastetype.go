package services

import (
	"strings"
	"unicode"
)

// Points awarded per kg of verified drop-off, by normalized waste type.
var pointsRatePerKg = map[string]int{
	"ewaste":    50,
	"plastic":   10,
	"polythene": 10,
	"glass":     5,
	"paper":     5,
	"metal":     20,
	"organic":   3,
}

// defaultPointsRatePerKg applies to waste types missing from the rate table.
const defaultPointsRatePerKg = 5

// wasteTypeSynonyms maps stripped spellings to their canonical inventory key.
var wasteTypeSynonyms = map[string]string{
	"ewaste":      "ewaste",
	"ewastes":     "ewaste",
	"electronic":  "ewaste",
	"electronics": "ewaste",
	"plastics":    "plastic",
	"polythenes":  "polythene",
	"polythene":   "polythene",
	"papers":      "paper",
	"metals":      "metal",
	"organics":    "organic",
}

// NormalizeWasteType lowercases the type, strips every non-letter rune and
// maps the result through the synonym table. Unmapped types pass through
// verbatim and become new inventory keys.
func NormalizeWasteType(wasteType string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(wasteType) {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	stripped := b.String()
	if canonical, ok := wasteTypeSynonyms[stripped]; ok {
		return canonical
	}
	return stripped
}

// PointsForDropoff computes the points earned for a verified drop-off:
// floor(rate * quantity) with the per-type rate table.
func PointsForDropoff(wasteType string, quantity float64) int {
	rate, ok := pointsRatePerKg[NormalizeWasteType(wasteType)]
	if !ok {
		rate = defaultPointsRatePerKg
	}
	return int(float64(rate) * quantity)
}
