package jsonx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/buger/jsonparser"
)

// ErrInvalid reports input that is not a single well-formed JSON document.
var ErrInvalid = errors.New("jsonx: invalid json")

type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

type Member struct {
	Key   string
	Value *Value
}

// Value is a JSON tree that keeps object members in document order, which
// encoding/json maps cannot do.
type Value struct {
	Kind    Kind
	Text    string
	Items   []*Value
	Members []Member
}

func Parse(data []byte) (*Value, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return nil, ErrInvalid
	}
	raw, dt, _, err := jsonparser.Get(trimmed)
	if err != nil {
		return nil, fmt.Errorf("jsonx: %w", err)
	}
	return build(raw, dt)
}

func build(raw []byte, dt jsonparser.ValueType) (*Value, error) {
	switch dt {
	case jsonparser.String:
		s, err := jsonparser.ParseString(raw)
		if err != nil {
			return nil, fmt.Errorf("jsonx: string: %w", err)
		}
		return &Value{Kind: String, Text: s}, nil
	case jsonparser.Number:
		return &Value{Kind: Number, Text: string(raw)}, nil
	case jsonparser.Boolean:
		return &Value{Kind: Bool, Text: string(raw)}, nil
	case jsonparser.Null:
		return &Value{Kind: Null, Text: "null"}, nil
	case jsonparser.Array:
		out := &Value{Kind: Array}
		var inner error
		_, err := jsonparser.ArrayEach(
			raw,
			func(value []byte, t jsonparser.ValueType, _ int, e error) {
				if inner != nil {
					return
				}
				if e != nil {
					inner = e
					return
				}
				item, err := build(value, t)
				if err != nil {
					inner = err
					return
				}
				out.Items = append(out.Items, item)
			},
		)
		if inner != nil {
			return nil, inner
		}
		if err != nil {
			return nil, fmt.Errorf("jsonx: array: %w", err)
		}
		return out, nil
	case jsonparser.Object:
		out := &Value{Kind: Object}
		err := jsonparser.ObjectEach(
			raw,
			func(key, value []byte, t jsonparser.ValueType, _ int) error {
				name, err := jsonparser.ParseString(key)
				if err != nil {
					return err
				}
				item, err := build(value, t)
				if err != nil {
					return err
				}
				out.Members = append(out.Members, Member{Key: name, Value: item})
				return nil
			},
		)
		if err != nil {
			return nil, fmt.Errorf("jsonx: object: %w", err)
		}
		return out, nil
	default:
		return nil, ErrInvalid
	}
}

func NewString(s string) *Value {
	return &Value{Kind: String, Text: s}
}

// Get returns the member value for key, or nil.
func (v *Value) Get(key string) *Value {
	if v == nil || v.Kind != Object {
		return nil
	}
	for _, m := range v.Members {
		if m.Key == key {
			return m.Value
		}
	}
	return nil
}

// Walk visits every scalar leaf with its path in $.a.b[0] form.
func (v *Value) Walk(fn func(path string, leaf *Value)) {
	v.walk("$", fn)
}

func (v *Value) walk(path string, fn func(string, *Value)) {
	if v == nil {
		return
	}
	switch v.Kind {
	case Object:
		for _, m := range v.Members {
			m.Value.walk(path+"."+m.Key, fn)
		}
	case Array:
		for i, item := range v.Items {
			item.walk(path+"["+strconv.Itoa(i)+"]", fn)
		}
	default:
		fn(path, v)
	}
}

// Interface converts the tree into encoding/json shaped values.
func (v *Value) Interface() any {
	if v == nil {
		return nil
	}
	switch v.Kind {
	case String:
		return v.Text
	case Number:
		f, err := strconv.ParseFloat(v.Text, 64)
		if err != nil {
			return v.Text
		}
		return f
	case Bool:
		return v.Text == "true"
	case Array:
		out := make([]any, 0, len(v.Items))
		for _, item := range v.Items {
			out = append(out, item.Interface())
		}
		return out
	case Object:
		out := make(map[string]any, len(v.Members))
		for _, m := range v.Members {
			out[m.Key] = m.Value.Interface()
		}
		return out
	default:
		return nil
	}
}
