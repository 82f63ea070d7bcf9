package httpclient

import (
	"fmt"
	"net/url"
	"reflect"
	"slices"
	"strings"
	"time"
)

// flattenQuery turns structured query values into flat string pairs.
//
//	{"format": "test", "sort": {"desc": ["field1", "field2"]}}
//	=> {"format": "test", "sort[desc]": "field1,field2"}
//
// Slices join with commas, nested maps use bracket keys, and time.Time
// values are written as RFC 3339 instants in UTC. Empty values are dropped.
func flattenQuery(query map[string]any) (map[string]string, error) {
	if len(query) == 0 {
		return nil, nil
	}

	out := make(map[string]string, len(query))
	for k, v := range query {
		if err := flattenValue(out, k, v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func flattenValue(out map[string]string, key string, v any) error {
	if v == nil {
		return nil
	}

	switch t := v.(type) {
	case time.Time:
		out[key] = formatTime(t)
		return nil
	case *time.Time:
		if t != nil {
			out[key] = formatTime(*t)
		}
		return nil
	case fmt.Stringer:
		if s := t.String(); s != "" {
			out[key] = s
		}
		return nil
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("query %q: map keys must be strings", key)
		}
		iter := rv.MapRange()
		for iter.Next() {
			child := key + "[" + iter.Key().String() + "]"
			if err := flattenValue(out, child, iter.Value().Interface()); err != nil {
				return err
			}
		}
	case reflect.Slice, reflect.Array:
		parts := make([]string, 0, rv.Len())
		for i := range rv.Len() {
			s, ok := scalarString(rv.Index(i).Interface())
			if ok && s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) > 0 {
			out[key] = strings.Join(parts, ",")
		}
	default:
		if s, ok := scalarString(rv.Interface()); ok && s != "" {
			out[key] = s
		}
	}
	return nil
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case time.Time:
		return formatTime(t), true
	case fmt.Stringer:
		return t.String(), true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Func, reflect.Chan:
		return "", false
	}
	return fmt.Sprint(v), true
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// encodeQuery serializes flat pairs with sorted keys. Brackets and commas are
// left readable so nested keys and lists survive as written.
func encodeQuery(query map[string]string) string {
	if len(query) == 0 {
		return ""
	}

	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(escapeQuery(k))
		b.WriteByte('=')
		b.WriteString(escapeQuery(query[k]))
	}
	return b.String()
}

var queryUnescaper = strings.NewReplacer("%5B", "[", "%5D", "]", "%2C", ",")

func escapeQuery(s string) string {
	return queryUnescaper.Replace(url.QueryEscape(s))
}

// appendQuery joins a serialized query onto path, using & when path already
// carries a query string.
func appendQuery(path, query string) string {
	if path == "" {
		path = "/"
	}
	if query == "" {
		return path
	}
	if strings.Contains(path, "?") {
		return path + "&" + query
	}
	return path + "?" + query
}
