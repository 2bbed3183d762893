package stats

import (
	"sort"
	"strings"
)

// The key-set identifying a statistic. Always contains "key".
type Keys map[string]string

// Returns the canonical identifier of the key-set.
func (k Keys) ID() string {
	names := make([]string, 0, len(k))
	for name := range k {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + k[name]
	}
	return strings.Join(parts, ",")
}

// Returns a copy of the key-set extended with other.
// Existing keys take precedence.
func (k Keys) With(other map[string]string) Keys {
	keys := make(Keys, len(k)+len(other))
	for name, value := range other {
		keys[name] = value
	}
	for name, value := range k {
		keys[name] = value
	}
	return keys
}

// Returns true if every entry of subset is also in k.
func (k Keys) Applies(subset Keys) bool {
	for name, value := range subset {
		if v, ok := k[name]; !ok || v != value {
			return false
		}
	}
	return true
}

func (k Keys) String() string {
	return k.ID()
}
