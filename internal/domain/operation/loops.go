package operation

import "strings"

// LoopSeparator is used when joining loops into a single string.
const LoopSeparator = ";"

// LoopList is an ordered, duplicate-free collection of alarm loop codes.
// Values are trimmed on insert, empty values are rejected and duplicates
// are compared case-insensitively.
type LoopList []string

// ParseLoopList splits a separated list produced by String back into a
// LoopList, applying the usual insert rules.
func ParseLoopList(s string) LoopList {
	var loops LoopList
	for _, item := range strings.Split(s, LoopSeparator) {
		loops.Add(item)
	}

	return loops
}

// Add appends a loop code, trimming whitespace and dropping empty values
// and duplicates. It reports whether the value was added.
func (l *LoopList) Add(loop string) bool {
	loop = strings.TrimSpace(loop)
	if loop == "" {
		return false
	}

	if l.Contains(loop) {
		return false
	}

	*l = append(*l, loop)

	return true
}

// Contains reports whether the loop code is present, ignoring case.
func (l LoopList) Contains(loop string) bool {
	for _, item := range l {
		if strings.EqualFold(item, loop) {
			return true
		}
	}

	return false
}

// Clone returns a copy of the list.
func (l LoopList) Clone() LoopList {
	if l == nil {
		return nil
	}

	return append(LoopList(nil), l...)
}

// String joins all loops using LoopSeparator.
func (l LoopList) String() string {
	return strings.Join(l, LoopSeparator)
}
