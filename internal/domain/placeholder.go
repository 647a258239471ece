package domain

import (
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// ExtractPlaceholders returns the unique placeholder names in template, in
// order of first appearance.
func ExtractPlaceholders(template string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(template, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}

// Substitute replaces every {{name}} occurrence with its assigned value.
func Substitute(template string, values []ParameterValue) string {
	out := template
	for _, v := range values {
		out = strings.ReplaceAll(out, "{{"+v.Name+"}}", v.Value)
	}
	return out
}

// Combinations computes the cartesian product of the parameters' values as an
// iterative fold. The first parameter is the outer axis and values keep their
// stored order. No parameters yields a single empty assignment.
func Combinations(params []Parameter) [][]ParameterValue {
	acc := [][]ParameterValue{{}}
	for _, p := range params {
		next := make([][]ParameterValue, 0, len(acc)*len(p.Values))
		for _, partial := range acc {
			for _, value := range p.Values {
				combo := make([]ParameterValue, len(partial), len(partial)+1)
				copy(combo, partial)
				next = append(next, append(combo, ParameterValue{Name: p.Name, Value: value}))
			}
		}
		acc = next
	}
	return acc
}
