package analyzer

import (
	"math"
	"regexp"
	"strings"

	"github.com/jward/pennyone/internal/config"
)

const (
	minScore = 1.0
	maxScore = 10.0
)

var (
	identifierRe   = regexp.MustCompile(`\b[a-zA-Z_][a-zA-Z0-9_]*\b`)
	conventionRe   = regexp.MustCompile(`^[a-z][a-zA-Z0-9]*$|^[A-Z][a-zA-Z0-9]*$`)
	utilityValueRe = regexp.MustCompile(`\[[^\]]+\]`)
)

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) {
		return minScore
	}
	return clamp(v, minScore, maxScore)
}

// LogicScore rates control-flow load. An empty file scores 10.
func LogicScore(lines, decisions, nesting int) float64 {
	if lines == 0 {
		return maxScore
	}
	d := math.Max(1, 10-float64(decisions)/2)
	n := math.Max(1, 10-float64(nesting)*1.5)
	return clampScore(0.7*d + 0.3*n)
}

// StyleScore combines line-length symmetry, identifier naming purity and a
// density penalty for long runs of uncommented lines.
func StyleScore(lines []Line, src string, cfg config.ScoringConfig) float64 {
	var nonBlank []Line
	for _, l := range lines {
		if strings.TrimSpace(l.Raw) != "" {
			nonBlank = append(nonBlank, l)
		}
	}
	if len(nonBlank) == 0 {
		return maxScore
	}

	lengths := make([]float64, len(nonBlank))
	var sum float64
	for i, l := range nonBlank {
		lengths[i] = float64(len(strings.TrimSpace(l.Raw)))
		sum += lengths[i]
	}
	mean := sum / float64(len(lengths))
	var variance float64
	for _, v := range lengths {
		variance += (v - mean) * (v - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(lengths)))
	symmetry := math.Max(1, 10-stdDev/cfg.SymmetryDivisor)

	var code strings.Builder
	for _, l := range lines {
		code.WriteString(l.Code)
		code.WriteByte('\n')
	}
	purity := 10.0
	if ids := identifierRe.FindAllString(code.String(), -1); len(ids) > 0 {
		valid := 0
		for _, id := range ids {
			if conventionRe.MatchString(id) {
				valid++
			}
		}
		purity = 10 * float64(valid) / float64(len(ids))
	}

	var penalty float64
	run := 0
	for _, l := range nonBlank {
		if l.Comment {
			run = 0
			continue
		}
		run++
		if run > cfg.ClaustrophobiaRun {
			penalty += cfg.ClaustrophobiaPenalty
		}
	}
	density := math.Max(1, 10-penalty)

	score := cfg.SymmetryWeight*symmetry + cfg.NamingWeight*purity + cfg.DensityWeight*density
	if strings.Contains(src, "className") {
		score -= float64(len(utilityValueRe.FindAllString(src, -1))) * cfg.UtilityClassPenalty
	}
	return clampScore(score)
}

// DocumentationScore rates comment density, with a bonus for files that
// export something.
func DocumentationScore(lines, comments int, hasExports bool, cfg config.ScoringConfig) float64 {
	base := math.Min(10, 1+cfg.DocDensityScale*float64(comments)/math.Max(float64(lines), 1))
	if hasExports {
		base = 0.85*base + cfg.ExportBonus
	}
	return clampScore(base)
}

// OverallScore averages the three scores and applies the gravity and anomaly
// penalties.
func OverallScore(logic, style, doc float64, gravity int, anomaly float64, cfg config.ScoringConfig) float64 {
	overall := (logic + style + doc) / 3
	if gravity > cfg.GravityThreshold {
		overall -= cfg.GravitySurcharge
	}
	overall -= cfg.AnomalyWeight * clamp(anomaly, 0, 1)
	return clampScore(overall)
}
