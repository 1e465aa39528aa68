package grading

import (
	"math"
	"strconv"
	"strings"

	"github.com/funmath/funmath-backend/internal/model"
)

// equationStrategy accepts a numerically equal answer within tolerance or an
// expression equal after markup normalisation ("x = 2", "x=2", "$x=2$").
// A correct_answer of the form "3.14;tol=0.01" overrides the tolerance.
type equationStrategy struct{ tol float64 }

func (s equationStrategy) Grade(q model.Question, answer string) Outcome {
	out := Outcome{MaxPoints: 1}

	target, tol := splitTolerance(q.CorrectAnswer, s.tol)
	if normalizeExpr(answer) == normalizeExpr(target) {
		out.Points = 1
		return out
	}

	aLHS, aRHS, ok := splitAssignment(answer)
	if !ok {
		return out
	}
	tLHS, tRHS, ok := splitAssignment(target)
	if !ok {
		return out
	}
	// A bare value answers an assignment key; a named one must name the same side.
	if aLHS != "" && aLHS != tLHS {
		return out
	}

	rv, rOK := parseNumber(aRHS)
	tv, tOK := parseNumber(tRHS)
	if rOK && tOK && math.Abs(rv-tv) <= tol {
		out.Points = 1
	}
	return out
}

func splitTolerance(key string, fallback float64) (string, float64) {
	parts := strings.Split(key, ";")
	tol := fallback
	for _, p := range parts[1:] {
		p = strings.TrimSpace(strings.ToLower(p))
		if v, ok := strings.CutPrefix(p, "tol="); ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
				tol = f
			}
		}
	}
	return strings.TrimSpace(parts[0]), tol
}

// normalizeExpr strips math delimiters, whitespace and case.
func normalizeExpr(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "$")
	s = strings.TrimPrefix(s, `\(`)
	s = strings.TrimSuffix(s, `\)`)
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch r {
		case ' ', '\t', '\n', '\r':
			continue
		case '×', '·':
			b.WriteRune('*')
		case '−':
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// splitAssignment normalises s and splits "x = 2" into its sides. A bare
// value has an empty left side. Chained or empty sides are rejected.
func splitAssignment(s string) (lhs, rhs string, ok bool) {
	s = normalizeExpr(s)
	switch strings.Count(s, "=") {
	case 0:
		return "", s, s != ""
	case 1:
		lhs, rhs, _ = strings.Cut(s, "=")
		return lhs, rhs, lhs != "" && rhs != ""
	default:
		return "", "", false
	}
}

// parseNumber accepts plain numbers and simple fractions like "3/4".
func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(s, ",", ".")
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 == nil && err2 == nil && d != 0 {
			return n / d, true
		}
	}
	return 0, false
}
