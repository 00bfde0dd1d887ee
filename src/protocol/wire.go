package protocol

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"google.golang.org/protobuf/encoding/protowire"
)

// Messages are plain structs whose fields carry a `wire:"<number>"` tag, or
// `wire:"<number>,enum=<table>"` for enum fields held as their value names.
// Encoding follows proto3: zero scalars are omitted, optional fields (*string)
// and nested messages are written whenever they are set, unknown fields are
// skipped on decode.

type fieldKind int

const (
	kindString fieldKind = iota
	kindOptString
	kindBool
	kindUint32
	kindUint64
	kindInt32
	kindBytes
	kindStrings
	kindEnum
	kindMessage
	kindMessages
)

type enumTable struct {
	names   []string
	numbers map[string]uint64
}

func newEnumTable(names ...string) *enumTable {
	t := &enumTable{names: names, numbers: make(map[string]uint64, len(names))}
	for i, n := range names {
		t.numbers[n] = uint64(i)
	}
	return t
}

func (t *enumTable) name(n uint64) string {
	if n < uint64(len(t.names)) {
		return t.names[n]
	}
	return strconv.FormatUint(n, 10)
}

var enumTables = map[string]*enumTable{
	"ChangeType": newEnumTable(
		ChangeTypeModifyFunction, ChangeTypeAddFunction, ChangeTypeDeleteFunction,
		ChangeTypeModifyType, ChangeTypeAddType, ChangeTypeAddDependency,
	),
	"ContextDepth": newEnumTable(DepthSignatures, DepthFull, DepthCallGraph),
	"SubmitStatus": newEnumTable(StatusAccepted, StatusRejected, StatusConflict),
}

type wireField struct {
	name  string
	num   protowire.Number
	index int
	kind  fieldKind
	enum  *enumTable
	elem  reflect.Type // struct type for kindMessage and kindMessages
}

type wireLayout struct {
	fields []wireField
	byNum  map[protowire.Number]int
}

var layouts sync.Map // reflect.Type -> *wireLayout

func layoutOf(t reflect.Type) (*wireLayout, error) {
	if l, ok := layouts.Load(t); ok {
		return l.(*wireLayout), nil
	}
	l := &wireLayout{byNum: make(map[protowire.Number]int)}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag, ok := sf.Tag.Lookup("wire")
		if !ok {
			continue
		}
		f, err := parseField(sf, tag)
		if err != nil {
			return nil, fmt.Errorf("protocol: %s.%s: %w", t.Name(), sf.Name, err)
		}
		f.index = i
		l.byNum[f.num] = len(l.fields)
		l.fields = append(l.fields, f)
	}
	actual, _ := layouts.LoadOrStore(t, l)
	return actual.(*wireLayout), nil
}

func parseField(sf reflect.StructField, tag string) (wireField, error) {
	numText, opts, _ := strings.Cut(tag, ",")
	n, err := strconv.Atoi(numText)
	if err != nil || !protowire.Number(n).IsValid() {
		return wireField{}, fmt.Errorf("bad field number %q", numText)
	}
	f := wireField{name: sf.Name, num: protowire.Number(n)}

	if table, ok := strings.CutPrefix(opts, "enum="); ok {
		f.enum = enumTables[table]
		if f.enum == nil || sf.Type.Kind() != reflect.String {
			return f, fmt.Errorf("bad enum %q", table)
		}
		f.kind = kindEnum
		return f, nil
	}

	t := sf.Type
	switch {
	case t.Kind() == reflect.String:
		f.kind = kindString
	case t.Kind() == reflect.Bool:
		f.kind = kindBool
	case t.Kind() == reflect.Uint32:
		f.kind = kindUint32
	case t.Kind() == reflect.Uint64:
		f.kind = kindUint64
	case t.Kind() == reflect.Int32:
		f.kind = kindInt32
	case t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.String:
		f.kind = kindOptString
	case t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct:
		f.kind, f.elem = kindMessage, t.Elem()
	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8:
		f.kind = kindBytes
	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.String:
		f.kind = kindStrings
	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Pointer && t.Elem().Elem().Kind() == reflect.Struct:
		f.kind, f.elem = kindMessages, t.Elem().Elem()
	default:
		return f, fmt.Errorf("unsupported type %s", t)
	}
	return f, nil
}

func (f wireField) wireType() protowire.Type {
	switch f.kind {
	case kindBool, kindUint32, kindUint64, kindInt32, kindEnum:
		return protowire.VarintType
	}
	return protowire.BytesType
}

func appendMessage(b []byte, v reflect.Value) ([]byte, error) {
	l, err := layoutOf(v.Type())
	if err != nil {
		return nil, err
	}
	for _, f := range l.fields {
		fv := v.Field(f.index)
		switch f.kind {
		case kindString:
			if s := fv.String(); s != "" {
				b = protowire.AppendTag(b, f.num, protowire.BytesType)
				b = protowire.AppendString(b, s)
			}
		case kindOptString:
			if !fv.IsNil() {
				b = protowire.AppendTag(b, f.num, protowire.BytesType)
				b = protowire.AppendString(b, fv.Elem().String())
			}
		case kindBool:
			if fv.Bool() {
				b = protowire.AppendTag(b, f.num, protowire.VarintType)
				b = protowire.AppendVarint(b, 1)
			}
		case kindUint32, kindUint64:
			if u := fv.Uint(); u != 0 {
				b = protowire.AppendTag(b, f.num, protowire.VarintType)
				b = protowire.AppendVarint(b, u)
			}
		case kindInt32:
			if i := fv.Int(); i != 0 {
				b = protowire.AppendTag(b, f.num, protowire.VarintType)
				b = protowire.AppendVarint(b, uint64(i))
			}
		case kindEnum:
			name := fv.String()
			if name == "" {
				continue
			}
			n, ok := f.enum.numbers[name]
			if !ok {
				return nil, fmt.Errorf("protocol: %s: unknown enum value %q", f.name, name)
			}
			if n != 0 {
				b = protowire.AppendTag(b, f.num, protowire.VarintType)
				b = protowire.AppendVarint(b, n)
			}
		case kindBytes:
			if fv.Len() > 0 {
				b = protowire.AppendTag(b, f.num, protowire.BytesType)
				b = protowire.AppendBytes(b, fv.Bytes())
			}
		case kindStrings:
			for i := 0; i < fv.Len(); i++ {
				b = protowire.AppendTag(b, f.num, protowire.BytesType)
				b = protowire.AppendString(b, fv.Index(i).String())
			}
		case kindMessage:
			if !fv.IsNil() {
				if b, err = appendNested(b, f.num, fv.Elem()); err != nil {
					return nil, err
				}
			}
		case kindMessages:
			for i := 0; i < fv.Len(); i++ {
				item := fv.Index(i)
				if item.IsNil() {
					continue
				}
				if b, err = appendNested(b, f.num, item.Elem()); err != nil {
					return nil, err
				}
			}
		}
	}
	return b, nil
}

func appendNested(b []byte, num protowire.Number, v reflect.Value) ([]byte, error) {
	inner, err := appendMessage(nil, v)
	if err != nil {
		return nil, err
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, inner), nil
}

func consumeMessage(b []byte, v reflect.Value) error {
	l, err := layoutOf(v.Type())
	if err != nil {
		return err
	}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		idx, known := l.byNum[num]
		if !known || l.fields[idx].wireType() != typ {
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			b = b[m:]
			continue
		}
		f := l.fields[idx]
		fv := v.Field(f.index)

		if typ == protowire.VarintType {
			x, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			b = b[m:]
			switch f.kind {
			case kindBool:
				fv.SetBool(protowire.DecodeBool(x))
			case kindUint32:
				fv.SetUint(uint64(uint32(x)))
			case kindUint64:
				fv.SetUint(x)
			case kindInt32:
				fv.SetInt(int64(int32(x)))
			case kindEnum:
				fv.SetString(f.enum.name(x))
			}
			continue
		}

		raw, m := protowire.ConsumeBytes(b)
		if m < 0 {
			return protowire.ParseError(m)
		}
		b = b[m:]
		switch f.kind {
		case kindString:
			fv.SetString(string(raw))
		case kindOptString:
			s := string(raw)
			fv.Set(reflect.ValueOf(&s))
		case kindBytes:
			fv.SetBytes(append([]byte{}, raw...))
		case kindStrings:
			fv.Set(reflect.Append(fv, reflect.ValueOf(string(raw))))
		case kindMessage, kindMessages:
			item := reflect.New(f.elem)
			if err := consumeMessage(raw, item.Elem()); err != nil {
				return err
			}
			if f.kind == kindMessage {
				fv.Set(item)
			} else {
				fv.Set(reflect.Append(fv, item))
			}
		}
	}

	// Absent enums hold their zero member.
	for _, f := range l.fields {
		if f.kind == kindEnum && v.Field(f.index).String() == "" {
			v.Field(f.index).SetString(f.enum.names[0])
		}
	}
	return nil
}

func messageValue(v any) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("protocol: %T is not a message pointer", v)
	}
	return rv.Elem(), nil
}

// MarshalWire encodes a message in the protobuf binary format.
func MarshalWire(v any) ([]byte, error) {
	rv, err := messageValue(v)
	if err != nil {
		return nil, err
	}
	return appendMessage(nil, rv)
}

// UnmarshalWire decodes the protobuf binary format into a message pointer.
func UnmarshalWire(data []byte, v any) error {
	rv, err := messageValue(v)
	if err != nil {
		return err
	}
	return consumeMessage(data, rv)
}
