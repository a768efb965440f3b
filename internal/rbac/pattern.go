package rbac

import "strings"

type patternKind int

const (
	kindExact patternKind = iota
	kindPrefix
	kindGlobal
)

// Pattern is a parsed permission grant: an exact "resource.action", a
// "resource.*" prefix, or the global "*".
type Pattern struct {
	kind  patternKind
	value string
}

func ParsePattern(s string) Pattern {
	s = strings.TrimSpace(s)
	switch {
	case s == "*":
		return Pattern{kind: kindGlobal}
	case strings.HasSuffix(s, ".*"):
		return Pattern{kind: kindPrefix, value: strings.TrimSuffix(s, "*")}
	default:
		return Pattern{kind: kindExact, value: s}
	}
}

func Compile(perms []string) []Pattern {
	out := make([]Pattern, 0, len(perms))
	for _, p := range perms {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, ParsePattern(p))
	}
	return out
}

func (p Pattern) Matches(required string) bool {
	switch p.kind {
	case kindGlobal:
		return true
	case kindPrefix:
		// "orders.*" matches "orders.create" but not "orders" or "ordersx.read"
		return strings.HasPrefix(required, p.value) && len(required) > len(p.value)
	default:
		return p.value == required
	}
}

func (p Pattern) String() string {
	switch p.kind {
	case kindGlobal:
		return "*"
	case kindPrefix:
		return p.value + "*"
	default:
		return p.value
	}
}
