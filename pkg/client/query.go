package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strings"
	"time"
)

// encodeQuery turns a filter map into query parameters. Nil values, empty
// strings and empty slices are dropped; slices repeat the key; times are
// RFC 3339.
func encodeQuery(params map[string]any) url.Values {
	values := url.Values{}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		for _, s := range queryStrings(params[key]) {
			values.Add(key, s)
		}
	}
	return values
}

func queryStrings(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil
		}
		return []string{val}
	case *string:
		if val == nil {
			return nil
		}
		return queryStrings(*val)
	case time.Time:
		if val.IsZero() {
			return nil
		}
		return []string{val.UTC().Format(time.RFC3339)}
	case *time.Time:
		if val == nil {
			return nil
		}
		return queryStrings(*val)
	case fmt.Stringer:
		return queryStrings(val.String())
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		return queryStrings(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		var out []string
		for i := 0; i < rv.Len(); i++ {
			out = append(out, queryStrings(rv.Index(i).Interface())...)
		}
		return out
	default:
		return []string{fmt.Sprint(v)}
	}
}

// pathID validates and escapes a resource id for use in an endpoint path.
func pathID(kind, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", NewValidationError(kind+" id is required", nil)
	}
	return url.PathEscape(id), nil
}

// listPayload is a collection returned either as a bare array or as an
// object holding the array under a named key, optionally with a total.
type listPayload[T any] struct {
	Items []T
	Total *int
}

// decodeListPayload decodes data into a list, looking for the array under
// key (or "data"/"items") when data is an object.
func decodeListPayload[T any](data []byte, key string) (listPayload[T], error) {
	var out listPayload[T]

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		out.Items = []T{}
		return out, nil
	}

	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &out.Items); err != nil {
			return out, err
		}
		return out, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return out, err
	}

	for _, k := range []string{key, "data", "items"} {
		raw, ok := obj[k]
		if !ok || len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
			continue
		}
		if err := json.Unmarshal(raw, &out.Items); err != nil {
			return out, fmt.Errorf("decode %s: %w", k, err)
		}
		break
	}
	if out.Items == nil {
		out.Items = []T{}
	}

	for _, k := range []string{"total", "count"} {
		raw, ok := obj[k]
		if !ok {
			continue
		}
		var total int
		if err := json.Unmarshal(raw, &total); err == nil {
			out.Total = &total
			break
		}
	}
	return out, nil
}

// doList runs r and decodes the payload as a list of T.
func doList[T any](ctx context.Context, c *Client, r request, key string) (listPayload[T], error) {
	var raw json.RawMessage
	if err := c.do(ctx, r, &raw); err != nil {
		return listPayload[T]{}, err
	}
	list, err := decodeListPayload[T](raw, key)
	if err != nil {
		return listPayload[T]{}, &APIError{Class: ClassUnknown, Message: "unexpected list payload", Err: err}
	}
	return list, nil
}
