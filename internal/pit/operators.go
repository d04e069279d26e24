package pit

import (
	"fmt"
	"sort"
	"strings"
)

// Named operator subsets. The deletion set follows Deng et al.'s statement
// deletion operators; sufficient follows Offutt's sufficient set.
var (
	deletionOperators = []string{
		"REMOVE_CONDITIONALS",
		"VOID_METHOD_CALLS",
		"NON_VOID_METHOD_CALLS",
		"CONSTRUCTOR_CALLS",
		"TRUE_RETURNS",
		"FALSE_RETURNS",
		"PRIMITIVE_RETURNS",
		"EMPTY_RETURNS",
	}

	sufficientOperators = []string{
		"ABS",
		"AOR",
		"ROR",
		"UOI",
	}

	defaultOperators = []string{
		"CONDITIONALS_BOUNDARY",
		"INCREMENTS",
		"INVERT_NEGS",
		"MATH",
		"NEGATE_CONDITIONALS",
		"RETURN_VALS",
		"VOID_METHOD_CALLS",
	}

	// Operators beyond those above that the full set adds
	extraOperators = []string{
		"CONDITIONALS_BOUNDARY",
		"NEGATE_CONDITIONALS",
		"MATH",
		"INCREMENTS",
		"INVERT_NEGS",
		"INLINE_CONSTS",
		"RETURN_VALS",
		"EXPERIMENTAL_MEMBER_VARIABLE",
		"EXPERIMENTAL_SWITCH",
		"EXPERIMENTAL_LOCAL_VARIABLE",
		"ABS",
		"AOD",
		"AOR",
		"CRCR",
		"OBBN",
		"ROR",
		"UOI",
	}
)

// extensionOperators only exist in the research build of PIT and need the
// extended ANT target.
var extensionOperators = map[string]bool{
	"ABS":                         true,
	"AOD":                         true,
	"AOR":                         true,
	"CRCR":                        true,
	"OBBN":                        true,
	"ROR":                         true,
	"UOI":                         true,
	"EXPERIMENTAL_LOCAL_VARIABLE": true,
}

// AllOperators returns the full operator list, sorted and deduplicated
func AllOperators() []string {
	seen := make(map[string]bool)
	var all []string
	for _, op := range append(append([]string{}, deletionOperators...), extraOperators...) {
		if !seen[op] {
			seen[op] = true
			all = append(all, op)
		}
	}
	sort.Strings(all)
	return all
}

// Subset returns the operators of a named subset
func Subset(name string) ([]string, error) {
	switch name {
	case "deletion":
		return append([]string{}, deletionOperators...), nil
	case "sufficient":
		return append([]string{}, sufficientOperators...), nil
	case "default":
		return append([]string{}, defaultOperators...), nil
	case "all", "full":
		return AllOperators(), nil
	default:
		return nil, fmt.Errorf("unknown operator subset: %s", name)
	}
}

// SubsetNames lists the named subsets
func SubsetNames() []string {
	return []string{"deletion", "default", "sufficient", "all"}
}

// ParseOperators resolves an operator spec: either a named subset or a
// comma-separated operator list validated against the full set.
func ParseOperators(spec string) ([]string, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("empty operator spec")
	}

	if ops, err := Subset(spec); err == nil {
		return ops, nil
	}

	known := make(map[string]bool)
	for _, op := range AllOperators() {
		known[op] = true
	}

	var ops []string
	for _, raw := range strings.Split(spec, ",") {
		op := strings.ToUpper(strings.TrimSpace(raw))
		if op == "" {
			continue
		}
		if !known[op] {
			return nil, fmt.Errorf("unknown mutation operator: %s", op)
		}
		ops = append(ops, op)
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("empty operator spec")
	}

	return ops, nil
}

// RequiresExtension reports whether any operator needs the research build
func RequiresExtension(ops []string) bool {
	for _, op := range ops {
		if extensionOperators[op] {
			return true
		}
	}
	return false
}

// AntTarget picks the build target for the given operators
func AntTarget(ops []string) string {
	if RequiresExtension(ops) {
		return "pitPlus"
	}
	return "pit"
}
