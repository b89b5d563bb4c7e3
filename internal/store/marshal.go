package store

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/roach88/weave/internal/ir"
)

// jsonAPI decodes stored JSON. UseNumber keeps integers beyond 2^53 exact
// and lets ir.FromGo tell 2 from 2.0.
var jsonAPI = jsoniter.Config{UseNumber: true}.Froze()

// timeLayout is used for recorded_at. Fixed width so text order matches
// time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// marshalValue converts a Value to canonical JSON TEXT for storage.
func marshalValue(v ir.Value) (string, error) {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

// unmarshalValue parses stored JSON TEXT into a Value.
func unmarshalValue(data string) (ir.Value, error) {
	var raw any
	if err := jsonAPI.UnmarshalFromString(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	v, err := ir.FromGo(raw)
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}

// unmarshalObject parses stored JSON TEXT that must hold an object.
func unmarshalObject(data string) (ir.Object, error) {
	if data == "" || data == "{}" {
		return ir.Object{}, nil
	}
	v, err := unmarshalValue(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("unmarshal object: got %s", ir.TypeName(v))
	}
	return obj, nil
}

// unmarshalArray parses stored JSON TEXT that must hold an array.
func unmarshalArray(data string) (ir.Array, error) {
	if data == "" || data == "[]" {
		return ir.Array{}, nil
	}
	v, err := unmarshalValue(data)
	if err != nil {
		return nil, err
	}
	arr, ok := v.(ir.Array)
	if !ok {
		return nil, fmt.Errorf("unmarshal array: got %s", ir.TypeName(v))
	}
	return arr, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse recorded_at %q: %w", s, err)
	}
	return t, nil
}
