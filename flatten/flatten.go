// Package flatten converts probe results into broker publications.
//
// Primitive mode walks the result recursively and emits one publication per
// scalar leaf, extending the topic with the key path. JSON mode normalizes
// the result to a single ordered mapping and serializes it once. The walk is
// pure: no state, no I/O.
package flatten

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ecociel/beacon/domain"
)

// MaxDepth bounds the recursive walk. Results come from configured probes,
// so anything deeper is a malfunction, not data; the walk fails explicitly
// instead of running the stack out.
const MaxDepth = 16

// ErrTooDeep is returned when a result nests beyond MaxDepth.
var ErrTooDeep = errors.New("result nested too deep")

// Publication is one (topic, payload) pair to hand to the broker.
type Publication struct {
	Topic   string
	Payload string
}

// UnsupportedTypeError reports a leaf the flattener has no rendering for.
// It is a warning, not a failure: siblings of the offending leaf still
// publish.
type UnsupportedTypeError struct {
	Topic    string
	TypeName string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("type %s is not supported (%s)", e.TypeName, e.Topic)
}

// JoinTopic joins a topic prefix and suffix with exactly one separator.
// An empty prefix yields the suffix unchanged; a prefix already ending in
// "/" gets no extra separator.
func JoinTopic(prefix, suffix string) string {
	if prefix == "" {
		return suffix
	}
	if strings.HasSuffix(prefix, "/") {
		return prefix + suffix
	}
	return prefix + "/" + suffix
}

// Flatten walks r in primitive mode starting at topic. It returns the
// publications for every scalar leaf, one UnsupportedTypeError per leaf the
// result model cannot render, and ErrTooDeep if the result nests beyond
// MaxDepth.
func Flatten(topic string, r domain.Result) ([]Publication, []UnsupportedTypeError, error) {
	var pubs []Publication
	var warns []UnsupportedTypeError
	if err := walk(topic, r, 0, &pubs, &warns); err != nil {
		return nil, warns, err
	}
	return pubs, warns, nil
}

func walk(topic string, r domain.Result, depth int, pubs *[]Publication, warns *[]UnsupportedTypeError) error {
	if depth > MaxDepth {
		return fmt.Errorf("flatten %s: %w", topic, ErrTooDeep)
	}

	switch r.Kind() {
	case domain.KindAbsent:
		// Absent values publish nothing.
		return nil
	case domain.KindScalar:
		*pubs = append(*pubs, Publication{Topic: topic, Payload: renderScalar(r.Scalar())})
		return nil
	case domain.KindMapping:
		for _, f := range r.Fields() {
			if err := walk(JoinTopic(topic, f.Key), f.Value, depth+1, pubs, warns); err != nil {
				return err
			}
		}
		return nil
	case domain.KindSequence:
		for i, item := range r.Items() {
			if err := walk(JoinTopic(topic, strconv.Itoa(i)), item, depth+1, pubs, warns); err != nil {
				return err
			}
		}
		return nil
	case domain.KindRecord:
		// A named record flattens by field name; one without names is just
		// a sequence in disguise.
		for i, f := range r.Fields() {
			key := f.Key
			if !r.Named() {
				key = strconv.Itoa(i)
			}
			if err := walk(JoinTopic(topic, key), f.Value, depth+1, pubs, warns); err != nil {
				return err
			}
		}
		return nil
	default:
		*warns = append(*warns, UnsupportedTypeError{Topic: topic, TypeName: r.TypeName()})
		return nil
	}
}

func renderScalar(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// Normalize converts a result into the ordered mapping form used by JSON
// mode and the record sinks: mappings pass through, named records expand to
// their fields, sequences and unnamed records become index mappings keyed
// "0", "1", ..., and anything else is wrapped under the single key "0".
func Normalize(r domain.Result) []domain.Field {
	switch r.Kind() {
	case domain.KindMapping:
		return r.Fields()
	case domain.KindRecord:
		if r.Named() {
			return r.Fields()
		}
		fields := make([]domain.Field, 0, len(r.Fields()))
		for i, f := range r.Fields() {
			fields = append(fields, domain.Field{Key: strconv.Itoa(i), Value: f.Value})
		}
		return fields
	case domain.KindSequence:
		fields := make([]domain.Field, 0, len(r.Items()))
		for i, item := range r.Items() {
			fields = append(fields, domain.Field{Key: strconv.Itoa(i), Value: item})
		}
		return fields
	default:
		return []domain.Field{{Key: "0", Value: r}}
	}
}

// MarshalFields serializes an ordered field list as one JSON object,
// preserving field order. Unsupported leaves fail the whole marshal.
func MarshalFields(fields []domain.Field) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeObject(&buf, fields, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeObject(buf *bytes.Buffer, fields []domain.Field, depth int) error {
	if depth > MaxDepth {
		return ErrTooDeep
	}
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := writeValue(buf, f.Value, depth+1); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeValue(buf *bytes.Buffer, r domain.Result, depth int) error {
	if depth > MaxDepth {
		return ErrTooDeep
	}
	switch r.Kind() {
	case domain.KindAbsent:
		buf.WriteString("null")
		return nil
	case domain.KindScalar:
		b, err := json.Marshal(r.Scalar())
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	case domain.KindSequence:
		buf.WriteByte('[')
		for i, item := range r.Items() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, item, depth+1); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case domain.KindMapping:
		return writeObject(buf, r.Fields(), depth)
	case domain.KindRecord:
		return writeObject(buf, Normalize(r), depth)
	default:
		return &UnsupportedTypeError{TypeName: r.TypeName()}
	}
}
