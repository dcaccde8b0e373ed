package modifier

import (
	"sort"
	"strconv"
)

// Properties is the configuration bag of a modifier binding, decoded
// from the device descriptor's `properties` mapping. Accessors return
// the caller's fallback when a key is absent or has an incompatible
// shape; device files are operator-written and treated permissively.
type Properties map[string]interface{}

// GetInteger reads a signed 32-bit property.
func (p Properties) GetInteger(key string, fallback int32) int32 {
	if n, ok := p.signed(key); ok && n >= -1<<31 && n <= 1<<31-1 {
		return int32(n)
	}
	return fallback
}

// GetLong reads a signed 64-bit property.
func (p Properties) GetLong(key string, fallback int64) int64 {
	if n, ok := p.signed(key); ok {
		return n
	}
	return fallback
}

// GetUnsignedLong reads an unsigned 64-bit property.
func (p Properties) GetUnsignedLong(key string, fallback uint64) uint64 {
	switch n := p[key].(type) {
	case int:
		if n >= 0 {
			return uint64(n)
		}
	case int64:
		if n >= 0 {
			return uint64(n)
		}
	case uint64:
		return n
	case string:
		if v, err := strconv.ParseUint(n, 10, 64); err == nil {
			return v
		}
	}
	return fallback
}

// GetString reads a string property.
func (p Properties) GetString(key string, fallback string) string {
	switch s := p[key].(type) {
	case string:
		return s
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case uint64:
		return strconv.FormatUint(s, 10)
	}
	return fallback
}

// GetStringSlice reads a list-valued property.
func (p Properties) GetStringSlice(key string) []string {
	raw, ok := p[key].([]interface{})
	if !ok {
		return nil
	}
	values := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			values = append(values, s)
		}
	}
	return values
}

// Keys returns the property names in sorted order.
func (p Properties) Keys() []string {
	keys := make([]string, 0, len(p))
	for key := range p {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (p Properties) signed(key string) (int64, bool) {
	switch n := p[key].(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n <= 1<<63-1 {
			return int64(n), true
		}
	case string:
		if v, err := strconv.ParseInt(n, 10, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}
