package domain

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName trims surrounding space from a parameter name. Case is kept,
// so a name outside ^[a-z][a-z0-9_]*$ still fails validation.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

// NormalizeText composes text into NFC so visually identical prompts compare
// equal in the (template_id, text) unique key.
func NormalizeText(text string) string {
	return norm.NFC.String(text)
}

// NormalizeValues trims nothing but composes every value into NFC.
func NormalizeValues(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = NormalizeText(v)
	}
	return out
}

// UniqueStrings drops duplicates while keeping first-seen order.
func UniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
