package frameurl

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
)

// Reserved widget attributes are consumed by the widget itself and never
// forwarded to the frame
var Reserved = map[string]bool{
	"url":   true,
	"debug": true,
	"name":  true,
}

// Flatten turns a decoded JSON value into query keys. Objects join keys
// with "." (parent.child), arrays with the element index (parent.0). Scalars
// are stringified; nulls are dropped.
func Flatten(prefix string, value interface{}) map[string]string {
	out := make(map[string]string)
	flatten(out, prefix, value)
	return out
}

func flatten(out map[string]string, prefix string, value interface{}) {
	switch v := value.(type) {
	case map[string]interface{}:
		for k, child := range v {
			flatten(out, join(prefix, k), child)
		}
	case []interface{}:
		for i, child := range v {
			flatten(out, join(prefix, strconv.Itoa(i)), child)
		}
	case nil:
		return
	default:
		out[prefix] = scalar(v)
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func scalar(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case json.Number:
		return s.String()
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	default:
		return fmt.Sprint(s)
	}
}

// Build appends the flattened widget attributes to the frame base URL.
// Query parameters already on base are kept unless an attribute overrides
// them.
func Build(base string, attrs map[string]interface{}) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid frame url: %w", err)
	}

	q := u.Query()
	for _, name := range sortedKeys(attrs) {
		if Reserved[name] {
			continue
		}
		for k, v := range Flatten(name, attrs[name]) {
			q.Set(k, v)
		}
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
