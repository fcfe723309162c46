// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
)

var placeholderPattern = regexp.MustCompile(`\{\$([A-Za-z0-9_.-]+)\}`)

// expandPlaceholders replaces {$key} references in values with the expanded
// value of key. References may chain; a reference back to a key still being
// expanded is a *PlaceholderCycleError.
func expandPlaceholders(values map[string]string) (map[string]string, error) {
	done := make(map[string]string, len(values))

	var resolve func(key string, stack []string) (string, error)
	resolve = func(key string, stack []string) (string, error) {
		if v, ok := done[key]; ok {
			return v, nil
		}
		if i := slices.Index(stack, key); i >= 0 {
			return "", &PlaceholderCycleError{Keys: append(slices.Clone(stack[i:]), key)}
		}
		raw, ok := values[key]
		if !ok {
			return "", fmt.Errorf("%w: {$%s}", ErrUnknownPlaceholder, key)
		}

		stack = append(stack, key)
		var firstErr error
		expanded := placeholderPattern.ReplaceAllStringFunc(raw, func(m string) string {
			if firstErr != nil {
				return m
			}
			v, err := resolve(placeholderPattern.FindStringSubmatch(m)[1], stack)
			if err != nil {
				firstErr = err
				return m
			}
			return v
		})
		if firstErr != nil {
			return "", firstErr
		}

		done[key] = expanded
		return expanded, nil
	}

	for _, key := range slices.Sorted(maps.Keys(values)) {
		if _, err := resolve(key, nil); err != nil {
			return nil, err
		}
	}
	return done, nil
}

func hasPlaceholder(s string) bool {
	return placeholderPattern.MatchString(s)
}
