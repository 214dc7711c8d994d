package bridge

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/value"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	frameType   = reflect.TypeOf((*Frame)(nil))
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	handleType  = reflect.TypeOf(value.Handle{})
	bytesType   = reflect.TypeOf([]byte(nil))
)

// reflectFunc calls an ordinary Go function, converting between native
// values and Go values at the edges.
type reflectFunc struct {
	fn        reflect.Value
	params    []reflect.Type
	result    reflect.Type
	sig       Signature
	wantCtx   bool
	wantFrame bool
	hasErr    bool
}

func newReflectFunc(name string, fn reflect.Value) (*reflectFunc, error) {
	ft := fn.Type()
	if ft.IsVariadic() {
		return nil, fmt.Errorf("variadic functions are not supported")
	}

	rf := &reflectFunc{fn: fn, sig: Signature{Name: name, Result: value.UnitType}}

	i := 0
	if i < ft.NumIn() && ft.In(i) == contextType {
		rf.wantCtx = true
		i++
	}
	if i < ft.NumIn() && ft.In(i) == frameType {
		rf.wantFrame = true
		i++
	}
	for ; i < ft.NumIn(); i++ {
		pt := ft.In(i)
		vt, err := typeFor(pt)
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i, err)
		}
		rf.params = append(rf.params, pt)
		rf.sig.Params = append(rf.sig.Params, vt)
	}

	switch ft.NumOut() {
	case 0:
	case 1:
		if ft.Out(0) == errorType {
			rf.hasErr = true
		} else {
			rf.result = ft.Out(0)
		}
	case 2:
		if ft.Out(1) != errorType {
			return nil, fmt.Errorf("second result must be error, got %s", ft.Out(1))
		}
		rf.result = ft.Out(0)
		rf.hasErr = true
	default:
		return nil, fmt.Errorf("at most two results are supported, got %d", ft.NumOut())
	}

	if rf.result != nil {
		vt, err := typeFor(rf.result)
		if err != nil {
			return nil, fmt.Errorf("result: %w", err)
		}
		rf.sig.Result = vt
	}

	return rf, nil
}

func (rf *reflectFunc) Signature() Signature { return rf.sig }

func (rf *reflectFunc) Invoke(ctx context.Context, f *Frame, args []value.Value) (value.Value, error) {
	in := make([]reflect.Value, 0, len(args)+2)
	if rf.wantCtx {
		in = append(in, reflect.ValueOf(ctx))
	}
	if rf.wantFrame {
		in = append(in, reflect.ValueOf(f))
	}
	for i, a := range args {
		gv, err := toGo(a, rf.params[i], []string{rf.sig.Name, errors.PathIndex(i)})
		if err != nil {
			return nil, err
		}
		in = append(in, gv)
	}

	out := rf.fn.Call(in)

	if rf.hasErr {
		if errv := out[len(out)-1]; !errv.IsNil() {
			return nil, errv.Interface().(error)
		}
	}
	if rf.result == nil {
		return value.Unit{}, nil
	}
	return fromGo(out[0], rf.sig.Result)
}

// typeFor maps a Go type onto the native type it marshals as.
func typeFor(t reflect.Type) (value.Type, error) {
	if t == handleType {
		return value.HandleType, nil
	}
	if t == bytesType {
		return value.StringType, nil
	}

	switch t.Kind() {
	case reflect.Bool:
		return value.BoolType, nil
	case reflect.Int:
		return value.IntType, nil
	case reflect.Int32:
		return value.Int32Type, nil
	case reflect.Int64:
		return value.Int64Type, nil
	case reflect.Float64:
		return value.FloatType, nil
	case reflect.String:
		return value.StringType, nil
	case reflect.Slice:
		elem, err := typeFor(t.Elem())
		if err != nil {
			return value.Type{}, err
		}
		return value.ArrayOf(elem), nil
	case reflect.Pointer:
		elem, err := typeFor(t.Elem())
		if err != nil {
			return value.Type{}, err
		}
		return value.OptionOf(elem), nil
	case reflect.Struct:
		if t.NumField() == 0 {
			return value.UnitType, nil
		}
		var names []string
		var fields []value.Type
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if !sf.IsExported() {
				continue
			}
			name := fieldName(sf)
			if name == "-" {
				continue
			}
			ft, err := typeFor(sf.Type)
			if err != nil {
				return value.Type{}, fmt.Errorf("field %s: %w", sf.Name, err)
			}
			names = append(names, name)
			fields = append(fields, ft)
		}
		return value.RecordOf(names, fields), nil
	}

	return value.Type{}, errors.Unsupported(errors.PhaseRegister, "Go type "+t.String())
}

// fieldName uses the host:"name" tag when present, otherwise the Go field
// name in snake_case.
func fieldName(sf reflect.StructField) string {
	if tag := sf.Tag.Get("host"); tag != "" {
		return tag
	}
	return toSnakeCase(sf.Name)
}

func toSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func toGo(v value.Value, t reflect.Type, path []string) (reflect.Value, error) {
	mismatch := func() error {
		return errors.Mismatch(errors.PhaseToNative, path, t.String(), value.TypeOf(v).String())
	}

	if t == handleType {
		h, ok := v.(value.Handle)
		if !ok {
			return reflect.Value{}, mismatch()
		}
		return reflect.ValueOf(h), nil
	}
	if t == bytesType {
		s, ok := v.(value.String)
		if !ok {
			return reflect.Value{}, mismatch()
		}
		return reflect.ValueOf([]byte(s)), nil
	}

	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Bool:
		x, ok := v.(value.Bool)
		if !ok {
			return reflect.Value{}, mismatch()
		}
		out.SetBool(bool(x))
	case reflect.Int:
		x, ok := v.(value.Int)
		if !ok {
			return reflect.Value{}, mismatch()
		}
		out.SetInt(int64(x))
	case reflect.Int32:
		x, ok := v.(value.Int32)
		if !ok {
			return reflect.Value{}, mismatch()
		}
		out.SetInt(int64(x))
	case reflect.Int64:
		x, ok := v.(value.Int64)
		if !ok {
			return reflect.Value{}, mismatch()
		}
		out.SetInt(int64(x))
	case reflect.Float64:
		x, ok := v.(value.Float)
		if !ok {
			return reflect.Value{}, mismatch()
		}
		out.SetFloat(float64(x))
	case reflect.String:
		x, ok := v.(value.String)
		if !ok {
			return reflect.Value{}, mismatch()
		}
		out.SetString(string(x))
	case reflect.Slice:
		arr, ok := v.(value.Array)
		if !ok {
			return reflect.Value{}, mismatch()
		}
		out = reflect.MakeSlice(t, len(arr.Elems), len(arr.Elems))
		for i, e := range arr.Elems {
			ev, err := toGo(e, t.Elem(), errors.Extend(path, errors.PathIndex(i)))
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(ev)
		}
	case reflect.Pointer:
		opt, ok := v.(value.Option)
		if !ok {
			return reflect.Value{}, mismatch()
		}
		if opt.IsSome() {
			ev, err := toGo(opt.Value, t.Elem(), errors.Extend(path, "Some"))
			if err != nil {
				return reflect.Value{}, err
			}
			p := reflect.New(t.Elem())
			p.Elem().Set(ev)
			out = p
		}
	case reflect.Struct:
		if t.NumField() == 0 {
			if _, ok := v.(value.Unit); !ok {
				return reflect.Value{}, mismatch()
			}
			break
		}
		rec, ok := v.(value.Record)
		if !ok {
			return reflect.Value{}, mismatch()
		}
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if !sf.IsExported() {
				continue
			}
			name := fieldName(sf)
			if name == "-" {
				continue
			}
			fv, ok := rec.Get(name)
			if !ok {
				return reflect.Value{}, errors.Mismatch(errors.PhaseToNative, errors.Extend(path, name), sf.Type.String(), "missing field")
			}
			gv, err := toGo(fv, sf.Type, errors.Extend(path, name))
			if err != nil {
				return reflect.Value{}, err
			}
			out.Field(i).Set(gv)
		}
	default:
		return reflect.Value{}, errors.Unsupported(errors.PhaseToNative, "Go type "+t.String())
	}
	return out, nil
}

func fromGo(rv reflect.Value, t value.Type) (value.Value, error) {
	if rv.Type() == handleType {
		return rv.Interface().(value.Handle), nil
	}
	if rv.Type() == bytesType {
		return value.String(append([]byte(nil), rv.Bytes()...)), nil
	}

	switch t.Kind {
	case value.KindUnit:
		return value.Unit{}, nil
	case value.KindBool:
		return value.Bool(rv.Bool()), nil
	case value.KindInt:
		return value.Int(rv.Int()), nil
	case value.KindInt32:
		return value.Int32(rv.Int()), nil
	case value.KindInt64:
		return value.Int64(rv.Int()), nil
	case value.KindFloat:
		return value.Float(rv.Float()), nil
	case value.KindString:
		return value.String(rv.String()), nil
	case value.KindArray:
		arr := value.Array{Elem: *t.Elem, Elems: make([]value.Value, rv.Len())}
		for i := 0; i < rv.Len(); i++ {
			ev, err := fromGo(rv.Index(i), *t.Elem)
			if err != nil {
				return nil, err
			}
			arr.Elems[i] = ev
		}
		return arr, nil
	case value.KindOption:
		if rv.IsNil() {
			return value.None(*t.Elem), nil
		}
		ev, err := fromGo(rv.Elem(), *t.Elem)
		if err != nil {
			return nil, err
		}
		return value.Some(*t.Elem, ev), nil
	case value.KindRecord:
		rec := value.Record{Names: append([]string(nil), t.Names...), Fields: make([]value.Value, 0, len(t.Fields))}
		rt := rv.Type()
		fi := 0
		for i := 0; i < rt.NumField(); i++ {
			sf := rt.Field(i)
			if !sf.IsExported() || fieldName(sf) == "-" {
				continue
			}
			fv, err := fromGo(rv.Field(i), t.Fields[fi])
			if err != nil {
				return nil, err
			}
			rec.Fields = append(rec.Fields, fv)
			fi++
		}
		return rec, nil
	}
	return nil, errors.Unsupported(errors.PhaseFromNative, "native type "+t.String())
}

func errors.Extend(path []string, seg string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, seg)
}
