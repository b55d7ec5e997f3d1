package entity

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CurrencySet is an insertion-ordered set of currency codes
type CurrencySet struct {
	codes []string
	seen  map[string]struct{}
}

// NewCurrencySet creates a set from codes, dropping duplicates
func NewCurrencySet(codes ...string) CurrencySet {
	var s CurrencySet
	for _, c := range codes {
		s.Add(c)
	}
	return s
}

// Add inserts code and reports whether it was new
func (s *CurrencySet) Add(code string) bool {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[code]; ok {
		return false
	}
	s.seen[code] = struct{}{}
	s.codes = append(s.codes, code)
	return true
}

// Contains reports whether code is in the set
func (s CurrencySet) Contains(code string) bool {
	_, ok := s.seen[code]
	return ok
}

// Codes returns a copy of the codes in insertion order
func (s CurrencySet) Codes() []string {
	out := make([]string, len(s.codes))
	copy(out, s.codes)
	return out
}

func (s CurrencySet) Len() int {
	return len(s.codes)
}

func (s CurrencySet) String() string {
	return strings.Join(s.codes, ", ")
}

// MarshalJSON encodes the set as a JSON array
func (s CurrencySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Codes())
}

// NormalizeCurrency upper-cases code and checks it is a three-letter ISO code
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", fmt.Errorf("%w: %q should be 3 letters (e.g., USD, GBP, CHF)", ErrInvalidCurrency, code)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("%w: %q contains non-letter characters", ErrInvalidCurrency, code)
		}
	}
	return code, nil
}
