package jsonschema

import (
	"encoding/json"
	"math"
	"net"
	"net/mail"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Infer derives a JSON Schema from a sample value. Objects are closed and
// list every key as a property, arrays take their item shape from the first
// element, and strings carry a format when one is recognized. title is set
// on the returned root only.
func Infer(sample any, title string) Raw {
	out := infer(sample)
	if title != "" {
		out["title"] = title
	}
	return out
}

func infer(v any) Raw {
	switch t := v.(type) {
	case nil:
		return Raw{}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		props := make(Raw, len(t))
		for _, k := range keys {
			props[k] = infer(t[k])
		}
		return Raw{"type": "object", "properties": props, "additionalProperties": false}
	case []any:
		if len(t) == 0 {
			return Raw{"type": "array", "items": Raw{}}
		}
		return Raw{"type": "array", "items": infer(t[0])}
	case string:
		out := Raw{"type": "string"}
		if f := DetectFormat(t); f != "" {
			out["format"] = f
		}
		return out
	case bool:
		return Raw{"type": "boolean"}
	case json.Number:
		if i, err := t.Int64(); err == nil {
			if i > math.MaxInt32 || i < math.MinInt32 {
				return Raw{"type": "integer", "format": "int64"}
			}
			return Raw{"type": "integer"}
		}
		if !strings.ContainsAny(t.String(), ".eE") {
			// Integral but wider than int64.
			return Raw{"type": "integer", "format": "int64"}
		}
		return Raw{"type": "number"}
	case int, int32, int64, uint, uint32, uint64:
		return Raw{"type": "integer"}
	case float64:
		if t == float64(int64(t)) {
			return Raw{"type": "integer"}
		}
		return Raw{"type": "number"}
	case float32:
		return Raw{"type": "number"}
	}
	return Raw{}
}

var (
	dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeRe = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})?$`)
)

// DetectFormat returns the JSON Schema format a string sample looks like,
// or "" when none fits. Checks run from the most to the least specific.
func DetectFormat(s string) string {
	switch {
	case s == "":
		return ""
	case isUUID(s):
		return "uuid"
	case isEmail(s):
		return "email"
	case isIPv4(s):
		return "ipv4"
	case isIPv6(s):
		return "ipv6"
	case isDate(s):
		return "date"
	case isDateTime(s):
		return "date-time"
	case timeRe.MatchString(s):
		return "time"
	case isURI(s):
		return "uri"
	}
	return ""
}

func isUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func isEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	return at > 0 && strings.Contains(s[at+1:], ".")
}

func isIPv4(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil && strings.Count(s, ".") == 3
}

func isIPv6(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && strings.Contains(s, ":")
}

func isDate(s string) bool {
	if !dateRe.MatchString(s) {
		return false
	}
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}

func isDateTime(s string) bool {
	_, err := time.Parse(time.RFC3339Nano, s)
	return err == nil
}

func isURI(s string) bool {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https" || u.Scheme == "ftp" || u.Scheme == "ws" || u.Scheme == "wss"
}
