package cells

import "reflect"

// is reports value identity: the comparison used by the eager bail-out
// and dependency checks. Comparable values compare by ==; values of
// uncomparable types are never identical, so slices, maps, and funcs
// always count as changed.
func is(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// depsEqual compares dependency lists element-wise with is. A nil list
// means "no dependencies declared": never equal, so the effect or memo
// re-runs every pass.
func depsEqual(prev, next []any) bool {
	if prev == nil || next == nil {
		return false
	}
	if len(prev) != len(next) {
		return false
	}
	for i := range prev {
		if !is(prev[i], next[i]) {
			return false
		}
	}
	return true
}
