package question

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrNoOptions is non-fatal: the question is treated as unanswerable.
var ErrNoOptions = errors.New("no options defined")

type Option struct {
	Text  string          `json:"text"`
	Value string          `json:"value"`
	Score json.RawMessage `json:"score,omitempty"` // interpreted only by the scoring strategy
}

// NormalizeOptions accepts a native slice, a JSON document (as string, []byte
// or json.RawMessage), a keyed object whose values are the options, or a slice
// of bare strings. Keyed objects are read in key order (numeric keys
// numerically) so index-derived values are stable across calls.
func NormalizeOptions(raw any) ([]Option, error) {
	items, err := optionItems(raw, 0)
	if err != nil {
		return nil, err
	}
	out := make([]Option, 0, len(items))
	for i, it := range items {
		out = append(out, normalizeItem(it, i))
	}
	if len(out) == 0 {
		return nil, ErrNoOptions
	}
	return out, nil
}

// optionItems flattens raw into a sequence of decoded JSON values.
func optionItems(raw any, depth int) ([]any, error) {
	if depth > 2 {
		return nil, fmt.Errorf("%w: options nested too deeply", ErrNoOptions)
	}
	switch v := raw.(type) {
	case nil:
		return nil, ErrNoOptions
	case json.RawMessage:
		return decodeItems(v, depth)
	case []byte:
		return decodeItems(v, depth)
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, ErrNoOptions
		}
		return decodeItems([]byte(v), depth)
	case []any:
		return v, nil
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	case []Option:
		out := make([]any, len(v))
		for i, o := range v {
			m := map[string]any{"text": o.Text, "value": o.Value}
			if len(o.Score) > 0 {
				m["score"] = o.Score
			}
			out[i] = m
		}
		return out, nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sortKeys(keys)
		out := make([]any, 0, len(keys))
		for _, k := range keys {
			out = append(out, v[k])
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported options type %T", ErrNoOptions, raw)
	}
}

func decodeItems(b []byte, depth int) ([]any, error) {
	if len(strings.TrimSpace(string(b))) == 0 || string(b) == "null" {
		return nil, ErrNoOptions
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoOptions, err)
	}
	if _, isString := v.(string); isString && depth > 0 {
		return nil, fmt.Errorf("%w: doubly encoded options", ErrNoOptions)
	}
	return optionItems(v, depth+1)
}

func normalizeItem(item any, index int) Option {
	pos := strconv.Itoa(index)
	m, ok := item.(map[string]any)
	if !ok {
		return Option{Text: scalarString(item), Value: pos}
	}

	o := Option{Value: pos}
	if v, ok := nonEmpty(m, "value"); ok {
		o.Value = v
	} else if v, ok := nonEmpty(m, "id"); ok {
		o.Value = v
	}
	o.Text = o.Value
	for _, k := range []string{"text", "label", "content"} {
		if v, ok := nonEmpty(m, k); ok {
			o.Text = v
			break
		}
	}
	if s, ok := m["score"]; ok && s != nil {
		if raw, ok := s.(json.RawMessage); ok {
			o.Score = raw
		} else if b, err := json.Marshal(s); err == nil {
			o.Score = b
		}
	}
	return o
}

func nonEmpty(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", false
	}
	s := scalarString(v)
	if s == "" {
		return "", false
	}
	return s, true
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func sortKeys(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
}
