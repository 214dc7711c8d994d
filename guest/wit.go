package guest

import (
	"regexp"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/hostbridge/bridge"
	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/value"
)

var funcPattern = regexp.MustCompile(`(?:export\s+)?([a-zA-Z_][a-zA-Z0-9_-]*)\s*:\s*func\s*\(([^)]*)\)(?:\s*->\s*([^;]+))?`)

// ParseSignatures extracts function declarations from WIT text in
// declaration order:
//
//	export test_func_1: func(xs: list<s32>, i: int) -> s32;
//
// Besides the WIT primitives it understands the host aliases int (a host
// immediate integer) and handle (a host object reference).
func ParseSignatures(witText string) ([]bridge.Signature, error) {
	var sigs []bridge.Signature
	seen := make(map[string]bool)

	for _, match := range funcPattern.FindAllStringSubmatch(witText, -1) {
		name := match[1]
		if seen[name] {
			return nil, errors.InvalidInput(errors.PhaseParse, "duplicate function "+name)
		}
		seen[name] = true

		sig := bridge.Signature{Name: name, Result: value.UnitType}

		if params := strings.TrimSpace(match[2]); params != "" {
			for _, p := range splitTopLevel(params) {
				typStr := p
				if idx := strings.Index(p, ":"); idx != -1 {
					typStr = p[idx+1:]
				}
				t, err := ParseType(typStr)
				if err != nil {
					return nil, errors.Wrap(errors.PhaseParse, errors.KindInvalidInput, err, name+": parse param type "+strings.TrimSpace(typStr))
				}
				sig.Params = append(sig.Params, t)
			}
		}

		if res := strings.TrimSpace(match[3]); res != "" && res != "()" {
			t, err := ParseType(res)
			if err != nil {
				return nil, errors.Wrap(errors.PhaseParse, errors.KindInvalidInput, err, name+": parse result type "+res)
			}
			sig.Result = t
		}

		sigs = append(sigs, sig)
	}

	if len(sigs) == 0 {
		return nil, errors.InvalidInput(errors.PhaseParse, "no functions found in WIT text")
	}
	return sigs, nil
}

// ParseType parses one WIT type into a native value type.
func ParseType(s string) (value.Type, error) {
	s = strings.TrimSpace(s)

	switch s {
	case "int":
		return value.IntType, nil
	case "handle":
		return value.HandleType, nil
	}

	if inner, ok := generic(s, "list"); ok {
		elem, err := ParseType(inner)
		if err != nil {
			return value.Type{}, err
		}
		return value.ArrayOf(elem), nil
	}
	if inner, ok := generic(s, "option"); ok {
		elem, err := ParseType(inner)
		if err != nil {
			return value.Type{}, err
		}
		return value.OptionOf(elem), nil
	}
	if inner, ok := generic(s, "tuple"); ok {
		var fields []value.Type
		for _, part := range splitTopLevel(inner) {
			ft, err := ParseType(part)
			if err != nil {
				return value.Type{}, err
			}
			fields = append(fields, ft)
		}
		return value.TupleOf(fields...), nil
	}

	wt, err := wit.ParseType(s)
	if err != nil {
		return value.Type{}, errors.Wrap(errors.PhaseParse, errors.KindInvalidInput, err, "unknown type "+s)
	}
	switch wt.(type) {
	case wit.Bool:
		return value.BoolType, nil
	case wit.S32:
		return value.Int32Type, nil
	case wit.S64:
		return value.Int64Type, nil
	case wit.F64:
		return value.FloatType, nil
	case wit.String:
		return value.StringType, nil
	}
	return value.Type{}, errors.Unsupported(errors.PhaseParse, "WIT type "+s)
}

func generic(s, name string) (string, bool) {
	if !strings.HasPrefix(s, name+"<") || !strings.HasSuffix(s, ">") {
		return "", false
	}
	return s[len(name)+1 : len(s)-1], true
}

// splitTopLevel splits on commas outside <> and ().
func splitTopLevel(s string) []string {
	var parts []string
	var cur strings.Builder
	depth := 0
	for _, ch := range s {
		switch ch {
		case '<', '(':
			depth++
		case '>', ')':
			depth--
		case ',':
			if depth == 0 {
				if p := strings.TrimSpace(cur.String()); p != "" {
					parts = append(parts, p)
				}
				cur.Reset()
				continue
			}
		}
		cur.WriteRune(ch)
	}
	if p := strings.TrimSpace(cur.String()); p != "" {
		parts = append(parts, p)
	}
	return parts
}
