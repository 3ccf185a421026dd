package domain

import (
	"fmt"
	"reflect"
	"sort"
)

// Kind discriminates the shapes a probe result can take. The set is closed:
// the flattener switches on it exhaustively and anything a probe produces
// that does not fit one of the value kinds is carried as KindUnsupported
// instead of being dropped silently.
type Kind int

const (
	KindAbsent Kind = iota
	KindScalar
	KindSequence
	KindMapping
	KindRecord
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	case KindRecord:
		return "record"
	default:
		return "unsupported"
	}
}

// Result is the value produced by evaluating a task's probe.
// Mappings and records keep their fields as an ordered slice so that
// flattening and serialization are deterministic.
type Result struct {
	kind     Kind
	scalar   any // int64, float64 or string
	items    []Result
	fields   []Field
	typeName string // set for KindUnsupported
}

// Field is one named entry of a mapping or record result.
type Field struct {
	Key   string
	Value Result
}

func Absent() Result { return Result{kind: KindAbsent} }

func Str(s string) Result { return Result{kind: KindScalar, scalar: s} }

func Int(i int64) Result { return Result{kind: KindScalar, scalar: i} }

func Float(f float64) Result { return Result{kind: KindScalar, scalar: f} }

func Seq(items ...Result) Result { return Result{kind: KindSequence, items: items} }

func Map(fields ...Field) Result { return Result{kind: KindMapping, fields: fields} }

// Rec builds a record result. A record behaves like a mapping keyed by its
// field names; a record whose fields carry no names degrades to a sequence
// when flattened.
func Rec(fields ...Field) Result { return Result{kind: KindRecord, fields: fields} }

// Unsupported wraps a value the result model has no shape for, keeping its
// Go type name for diagnostics.
func Unsupported(v any) Result {
	return Result{kind: KindUnsupported, typeName: fmt.Sprintf("%T", v)}
}

func (r Result) Kind() Kind { return r.kind }

// Scalar returns the underlying scalar value. Valid only for KindScalar.
func (r Result) Scalar() any { return r.scalar }

// Items returns the elements of a sequence result.
func (r Result) Items() []Result { return r.items }

// Fields returns the ordered fields of a mapping or record result.
func (r Result) Fields() []Field { return r.fields }

// TypeName identifies the rejected Go type of an unsupported result.
func (r Result) TypeName() string { return r.typeName }

// Named reports whether a record actually carries field names.
func (r Result) Named() bool {
	for _, f := range r.fields {
		if f.Key != "" {
			return true
		}
	}
	return false
}

// FromAny converts an arbitrary Go value into a Result. Probes written
// against the Result constructors never need it; it exists for probes that
// hand back plain Go values (maps, slices, structs) and lets the conversion
// decide the shape once instead of every probe doing its own switch.
//
// Map keys are sorted so conversion is deterministic; probes that care about
// field order build a Mapping themselves. Structs become records keyed by
// their exported field names. Booleans and everything else without a defined
// shape convert to KindUnsupported.
func FromAny(v any) Result {
	if v == nil {
		return Absent()
	}
	switch x := v.(type) {
	case Result:
		return x
	case string:
		return Str(x)
	case int:
		return Int(int64(x))
	case int32:
		return Int(int64(x))
	case int64:
		return Int(x)
	case uint:
		return Int(int64(x))
	case uint64:
		return Int(int64(x))
	case float32:
		return Float(float64(x))
	case float64:
		return Float(x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]Result, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items = append(items, FromAny(rv.Index(i).Interface()))
		}
		return Seq(items...)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Unsupported(v)
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		fields := make([]Field, 0, len(keys))
		for _, k := range keys {
			fields = append(fields, Field{Key: k, Value: FromAny(rv.MapIndex(reflect.ValueOf(k)).Interface())})
		}
		return Map(fields...)
	case reflect.Struct:
		rt := rv.Type()
		var fields []Field
		for i := 0; i < rt.NumField(); i++ {
			if !rt.Field(i).IsExported() {
				continue
			}
			fields = append(fields, Field{Key: rt.Field(i).Name, Value: FromAny(rv.Field(i).Interface())})
		}
		return Rec(fields...)
	case reflect.Ptr:
		if rv.IsNil() {
			return Absent()
		}
		return FromAny(rv.Elem().Interface())
	default:
		return Unsupported(v)
	}
}
