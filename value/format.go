package value

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/host"
)

// Format renders v as a host-language literal, for example [|1; 2; 3|]
// or Some (1, "a").
func Format(v Value) string {
	var b strings.Builder
	format(&b, v, false)
	return b.String()
}

func format(b *strings.Builder, v Value, nested bool) {
	switch x := v.(type) {
	case nil:
		b.WriteString("<nil>")
	case Unit:
		b.WriteString("()")
	case Bool:
		b.WriteString(strconv.FormatBool(bool(x)))
	case Int:
		b.WriteString(strconv.FormatInt(int64(x), 10))
	case Int32:
		b.WriteString(strconv.FormatInt(int64(x), 10))
		b.WriteByte('l')
	case Int64:
		b.WriteString(strconv.FormatInt(int64(x), 10))
		b.WriteByte('L')
	case Float:
		b.WriteString(formatFloat(float64(x)))
	case String:
		b.WriteString(strconv.Quote(string(x)))
	case Array:
		b.WriteString("[|")
		for i, e := range x.Elems {
			if i > 0 {
				b.WriteString("; ")
			}
			format(b, e, false)
		}
		b.WriteString("|]")
	case Tuple:
		b.WriteByte('(')
		for i, e := range x {
			if i > 0 {
				b.WriteString(", ")
			}
			format(b, e, false)
		}
		b.WriteByte(')')
	case Record:
		b.WriteByte('{')
		for i, e := range x.Fields {
			if i > 0 {
				b.WriteString(";")
			}
			b.WriteByte(' ')
			if i < len(x.Names) {
				b.WriteString(x.Names[i])
			}
			b.WriteString(" = ")
			format(b, e, false)
		}
		b.WriteString(" }")
	case Option:
		if !x.IsSome() {
			b.WriteString("None")
			return
		}
		if nested {
			b.WriteByte('(')
		}
		b.WriteString("Some ")
		format(b, x.Value, true)
		if nested {
			b.WriteByte(')')
		}
	case Handle:
		b.WriteString("<handle @")
		b.WriteString(strconv.FormatUint(uint64(x.ID), 10))
		b.WriteByte('>')
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "infinity"
	case math.IsInf(f, -1):
		return "neg_infinity"
	case math.IsNaN(f):
		return "nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += "."
	}
	return s
}

// Parse reads a literal of type t. It accepts everything Format produces,
// plus [a; b] as a shorthand for arrays and unsuffixed integers for every
// integer kind.
func Parse(text string, t Type) (Value, error) {
	p := &parser{src: text}
	v, err := p.value(t, nil)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.fail(nil, "trailing input %q", p.src[p.pos:])
	}
	return v, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) fail(path []string, format string, args ...any) error {
	return errors.New(errors.PhaseParse, errors.KindInvalidInput).
		Path(path...).
		Detail("offset %d: "+format, append([]any{p.pos}, args...)...).
		Build()
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *parser) accept(tok string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

func (p *parser) expect(tok string, path []string) error {
	if !p.accept(tok) {
		return p.fail(path, "expected %q", tok)
	}
	return nil
}

func (p *parser) word() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '_' || c == '.' || c == '+' || c == '-' || unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c)) {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *parser) value(t Type, path []string) (Value, error) {
	p.skipSpace()
	switch t.Kind {
	case KindUnit:
		if err := p.expect("()", path); err != nil {
			return nil, err
		}
		return Unit{}, nil

	case KindBool:
		switch w := p.word(); w {
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		default:
			return nil, p.fail(path, "expected bool, got %q", w)
		}

	case KindInt, KindInt32, KindInt64:
		return p.integer(t.Kind, path)

	case KindFloat:
		w := p.word()
		switch w {
		case "infinity":
			return Float(math.Inf(1)), nil
		case "neg_infinity":
			return Float(math.Inf(-1)), nil
		case "nan":
			return Float(math.NaN()), nil
		}
		f, err := strconv.ParseFloat(strings.TrimSuffix(w, "."), 64)
		if err != nil {
			return nil, p.fail(path, "expected float, got %q", w)
		}
		return Float(f), nil

	case KindString:
		q, err := strconv.QuotedPrefix(p.src[p.pos:])
		if err != nil {
			return nil, p.fail(path, "expected quoted string")
		}
		p.pos += len(q)
		s, err := strconv.Unquote(q)
		if err != nil {
			return nil, p.fail(path, "bad string literal %s", q)
		}
		return String(s), nil

	case KindArray:
		if t.Elem == nil {
			return nil, p.fail(path, "array type without element type")
		}
		closer := "|]"
		if !p.accept("[|") {
			if !p.accept("[") {
				return nil, p.fail(path, "expected array")
			}
			closer = "]"
		}
		arr := Array{Elem: *t.Elem}
		if p.accept(closer) {
			return arr, nil
		}
		for {
			e, err := p.value(*t.Elem, errors.Extend(path, errors.PathIndex(len(arr.Elems))))
			if err != nil {
				return nil, err
			}
			arr.Elems = append(arr.Elems, e)
			if p.accept(closer) {
				return arr, nil
			}
			if !p.accept(";") && !p.accept(",") {
				return nil, p.fail(path, "expected ; or %s", closer)
			}
		}

	case KindTuple:
		if err := p.expect("(", path); err != nil {
			return nil, err
		}
		out := make(Tuple, len(t.Fields))
		for i, ft := range t.Fields {
			if i > 0 {
				if err := p.expect(",", path); err != nil {
					return nil, err
				}
			}
			v, err := p.value(ft, errors.Extend(path, errors.PathIndex(i)))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		if err := p.expect(")", path); err != nil {
			return nil, err
		}
		return out, nil

	case KindRecord:
		if err := p.expect("{", path); err != nil {
			return nil, err
		}
		rec := Record{Names: append([]string(nil), t.Names...), Fields: make([]Value, len(t.Fields))}
		for i, ft := range t.Fields {
			if i > 0 {
				if err := p.expect(";", path); err != nil {
					return nil, err
				}
			}
			name := p.word()
			if i >= len(t.Names) || name != t.Names[i] {
				return nil, p.fail(path, "unexpected field %q", name)
			}
			if err := p.expect("=", path); err != nil {
				return nil, err
			}
			v, err := p.value(ft, errors.Extend(path, name))
			if err != nil {
				return nil, err
			}
			rec.Fields[i] = v
		}
		p.accept(";")
		if err := p.expect("}", path); err != nil {
			return nil, err
		}
		return rec, nil

	case KindOption:
		if t.Elem == nil {
			return nil, p.fail(path, "option type without element type")
		}
		if p.accept("None") {
			return None(*t.Elem), nil
		}
		paren := p.accept("(")
		if err := p.expect("Some", path); err != nil {
			return nil, err
		}
		v, err := p.value(*t.Elem, errors.Extend(path, "Some"))
		if err != nil {
			return nil, err
		}
		if paren {
			if err := p.expect(")", path); err != nil {
				return nil, err
			}
		}
		return Some(*t.Elem, v), nil
	}

	return nil, errors.Unsupported(errors.PhaseParse, "literal of type "+t.String())
}

func (p *parser) integer(kind Kind, path []string) (Value, error) {
	w := p.word()
	w = strings.TrimRight(w, "lLn")
	n, err := strconv.ParseInt(w, 0, 64)
	if err != nil {
		return nil, p.fail(path, "expected integer, got %q", w)
	}
	switch kind {
	case KindInt32:
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, errors.Truncation(errors.PhaseParse, path, n, "int32")
		}
		return Int32(n), nil
	case KindInt64:
		return Int64(n), nil
	default:
		if !host.FitsInt(n) {
			return nil, errors.Truncation(errors.PhaseParse, path, n, "int")
		}
		return Int(n), nil
	}
}
