package resolve

// OrderByKeys reorders values to match the order of the requested keys.
// Keys with no value yield the zero value; the result always has the same
// length and order as keys. Batch resolvers depend on this to map decoded
// rows back onto their input list.
func OrderByKeys[K comparable, V any](keys []K, values map[K]V) []V {
	out := make([]V, len(keys))
	for i, k := range keys {
		out[i] = values[k]
	}
	return out
}

// GroupByKey groups values by a key function, preserving encounter order
// within each group.
func GroupByKey[K comparable, V any](values []V, keyFn func(V) K) map[K][]V {
	out := make(map[K][]V)
	for _, v := range values {
		k := keyFn(v)
		out[k] = append(out[k], v)
	}
	return out
}

// Distinct returns the keys with duplicates removed, first occurrence wins.
func Distinct[K comparable](keys []K) []K {
	seen := make(map[K]struct{}, len(keys))
	out := make([]K, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
