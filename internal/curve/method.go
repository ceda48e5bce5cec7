package curve

import (
	"fmt"
	"strings"
)

// Method names an interpolation scheme.
type Method string

const (
	MethodLinear Method = "linear"
	MethodCubic  Method = "cubic"
)

// DefaultMethod is used when a caller does not ask for one.
const DefaultMethod = MethodLinear

// ParseMethod normalises a method string. Empty input selects DefaultMethod.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case "":
		return DefaultMethod, nil
	case MethodLinear, MethodCubic:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedMethod, s)
}

func (m Method) String() string { return string(m) }
