// Copyright (c) 2026 Conduit Framework Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

// Map is an in-memory [Source] and [Store].
type Map map[string]any

// Apply implements the [Source] interface. Nested maps are walked
// down to their leaves so overlapping sources merge instead of
// replacing whole subtrees.
func (m Map) Apply(store Store) error {
	return applyMap(nil, m, store)
}

func applyMap(chain []string, m map[string]any, store Store) error {
	for k, v := range m {
		sub, ok := subMap(v)
		if !ok {
			err := store.Set(append(chain, k), v)
			if err != nil {
				return err
			}
			continue
		}

		err := applyMap(append(chain, k), sub, store)
		if err != nil {
			return err
		}
	}
	return nil
}

func subMap(v any) (map[string]any, bool) {
	switch x := v.(type) {
	case map[string]any:
		return x, true
	case Map:
		return x, true
	default:
		return nil, false
	}
}

// Set implements the [Store] interface.
func (m Map) Set(chain []string, value any) error {
	if len(chain) == 0 {
		return nil
	}

	cur := m
	for _, k := range chain[:len(chain)-1] {
		sub, ok := subMap(cur[k])
		if !ok {
			sub = make(map[string]any)
			cur[k] = sub
		}
		cur = sub
	}
	cur[chain[len(chain)-1]] = value
	return nil
}
