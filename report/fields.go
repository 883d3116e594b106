package report

import (
	"math"
	"strconv"
	"time"
)

const displayDateLayout = "02/01/2006"

// tierLadder maps pl_total to a client tier and marketing score. Buckets are
// checked top-down as pl_total > threshold; the first match wins and any
// non-null value below the last threshold lands in the default bucket.
var tierLadder = []struct {
	threshold float64
	tier      string
	score     int
}{
	{1_000_000, "T1", 1000},
	{750_000, "T2", 900},
	{500_000, "T3", 600},
	{300_000, "T4", 500},
	{150_000, "T5", 400},
	{50_000, "T6", 300},
	{1_000, "T7", 200},
}

const (
	defaultTier  = "T8"
	defaultScore = 100
)

// clientTier derives the tier and score for a total asset value. A null
// pl_total yields no tier and score zero.
func clientTier(totalAssets *float64) (string, int) {
	if totalAssets == nil {
		return "", 0
	}
	for _, bucket := range tierLadder {
		if *totalAssets > bucket.threshold {
			return bucket.tier, bucket.score
		}
	}
	return defaultTier, defaultScore
}

// ageInYears floors the elapsed time since birth over the mean year length.
func ageInYears(birthDate *time.Time, now time.Time) string {
	if birthDate == nil {
		return ""
	}
	elapsed := now.Sub(*birthDate)
	years := math.Floor(elapsed.Hours() / (24 * 365.25))
	return strconv.Itoa(int(years))
}

// safePercent returns part/total*100 with a zero or null denominator
// collapsing to 0 instead of an error or NaN.
func safePercent(part, total *float64) float64 {
	if total == nil || *total == 0 {
		return 0
	}
	value := 0.0
	if part != nil {
		value = *part
	}
	return value / *total * 100
}

// brazilianStates holds the normalized state names treated as in-country
// residency.
var brazilianStates = map[string]struct{}{
	"ACRE":                {},
	"ALAGOAS":             {},
	"AMAPA":               {},
	"AMAZONAS":            {},
	"BAHIA":               {},
	"CEARA":               {},
	"DISTRITO FEDERAL":    {},
	"ESPIRITO SANTO":      {},
	"GOIAS":               {},
	"MARANHAO":            {},
	"MATO GROSSO":         {},
	"MATO GROSSO DO SUL":  {},
	"MINAS GERAIS":        {},
	"PARA":                {},
	"PARAIBA":             {},
	"PARANA":              {},
	"PERNAMBUCO":          {},
	"PIAUI":               {},
	"RIO DE JANEIRO":      {},
	"RIO GRANDE DO NORTE": {},
	"RIO GRANDE DO SUL":   {},
	"RONDONIA":            {},
	"RORAIMA":             {},
	"SANTA CATARINA":      {},
	"SAO PAULO":           {},
	"SERGIPE":             {},
	"TOCANTINS":           {},
}

func residencyCountry(state string) string {
	if _, ok := brazilianStates[state]; ok {
		return "Brasil"
	}
	return "Fora"
}

func hasInvested(firstInvestmentAt *time.Time) string {
	if firstInvestmentAt != nil {
		return "Sim"
	}
	return "Não"
}

func formatDisplayDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(displayDateLayout)
}

func formatNumber(value *float64) string {
	if value == nil {
		return ""
	}
	return strconv.FormatFloat(*value, 'f', -1, 64)
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
