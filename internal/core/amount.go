// Package core provides the vault bot domain types.
//
// This file contains evaluation of the amounts typed by users when they
// answer a period report question.
package core

import (
	"math"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
)

const maxAmountExpressionLength = 200

var spacedDigits = regexp.MustCompile(`[0-9]+(?: [0-9]+)+`)

// EvalAmount evaluates a user supplied amount.
//
// Plain numbers and simple arithmetic are accepted so that a balance can be
// typed as the sum of its parts. A decimal comma is treated as a dot.
// Negative results are allowed (credit lines, loans).
//
// Examples:
//
//	EvalAmount("1200")     -> 1200, nil
//	EvalAmount("1 000,50") -> 1000.5, nil
//	EvalAmount("100+20*2") -> 140, nil
//	EvalAmount("100 20")   -> 0, ErrInvalidAmount
//	EvalAmount("hello")    -> 0, ErrInvalidAmount
func EvalAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxAmountExpressionLength {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	for _, r := range s {
		if !strings.ContainsRune("0123456789.+-*/() ", r) {
			return 0, ErrInvalidAmount
		}
	}
	s = joinDigitGroups(s)

	program, err := expr.Compile(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	out, err := expr.Run(program, nil)
	if err != nil {
		return 0, ErrInvalidAmount
	}

	var v float64
	switch n := out.(type) {
	case int:
		v = float64(n)
	case int64:
		v = float64(n)
	case float64:
		v = n
	default:
		return 0, ErrInvalidAmount
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// joinDigitGroups removes the spaces of thousands grouping such as
// "1 000 000": a leading group of one to three digits, then groups of
// exactly three. Any other space is left to the parser, which rejects two
// numbers side by side.
func joinDigitGroups(s string) string {
	var b strings.Builder
	last := 0
	for _, loc := range spacedDigits.FindAllStringIndex(s, -1) {
		start, end := loc[0], loc[1]
		if start > 0 && s[start-1] == '.' {
			continue // fraction digits are never grouped
		}
		groups := strings.Split(s[start:end], " ")
		if len(groups[0]) > 3 {
			continue
		}
		grouped := true
		for _, g := range groups[1:] {
			if len(g) != 3 {
				grouped = false
				break
			}
		}
		if !grouped {
			continue
		}
		b.WriteString(s[last:start])
		b.WriteString(strings.Join(groups, ""))
		last = end
	}
	b.WriteString(s[last:])
	return b.String()
}
