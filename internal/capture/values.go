package capture

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		if x != math.Trunc(x) {
			return 0, false
		}
		return int64(x), true
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, true
		}
		f, err := x.Float64()
		if err != nil || f != math.Trunc(f) {
			return 0, false
		}
		return int64(f), true
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f != math.Trunc(f) {
			return 0, false
		}
		return int64(f), true
	}
	return 0, false
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "", "0", "false", "no", "off":
			return false
		case "1", "true", "yes", "on":
			return true
		}
		n, ok := toInt64(x)
		return ok && n != 0
	case nil:
		return false
	}
	n, ok := toInt64(v)
	return ok && n != 0
}

// asList accepts JSON arrays and index-keyed maps ({"0":..,"1":..}) as
// produced by form fields like questions_ids[0]. Map entries come back in
// index order.
func asList(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, true
	case map[string]any:
		m, order, ok := indexed(x)
		if !ok {
			return nil, false
		}
		out := make([]any, 0, len(order))
		for _, i := range order {
			out = append(out, m[i])
		}
		return out, true
	}
	return nil, false
}

// indexed returns the entries of a list or index-keyed map under their own
// indexes, plus the indexes in ascending order. Sparse form keys keep their
// gaps so parallel fields pair by key.
func indexed(v any) (map[int]any, []int, bool) {
	if x, ok := v.(map[string]any); ok {
		m := make(map[int]any, len(x))
		order := make([]int, 0, len(x))
		for k, val := range x {
			i, err := strconv.Atoi(k)
			if err != nil || i < 0 {
				return nil, nil, false
			}
			m[i] = val
			order = append(order, i)
		}
		sort.Ints(order)
		return m, order, true
	}
	l, ok := asList(v)
	if !ok {
		return nil, nil, false
	}
	m := make(map[int]any, len(l))
	order := make([]int, len(l))
	for i, val := range l {
		m[i] = val
		order[i] = i
	}
	return m, order, true
}

// lookupList finds key at the top level or inside any of the named wrappers.
func lookupList(p map[string]any, key string, wrappers ...string) ([]any, bool) {
	if l, ok := asList(p[key]); ok {
		return l, true
	}
	for _, w := range wrappers {
		if nested, ok := p[w].(map[string]any); ok {
			if l, ok := asList(nested[key]); ok {
				return l, true
			}
		}
	}
	return nil, false
}
