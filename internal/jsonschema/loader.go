package jsonschema

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Doer sends HTTP requests. *http.Client and the upstream transport both
// satisfy it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Loader reads schema and sample documents from disk or over HTTP. Relative
// references resolve against BaseDir.
type Loader struct {
	BaseDir string
	HTTP    Doer
}

// URL returns the absolute URL of ref.
func (l *Loader) URL(ref string) (string, error) {
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		return ref, nil
	}
	p := ref
	frag := ""
	if i := strings.IndexByte(p, '#'); i >= 0 {
		p, frag = p[:i], p[i:]
	}
	if !filepath.IsAbs(p) {
		base := l.BaseDir
		if base == "" {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			base = wd
		}
		p = filepath.Join(base, p)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(p)}).String() + frag, nil
}

// Load returns the raw bytes behind ref.
func (l *Loader) Load(ctx context.Context, ref string) ([]byte, error) {
	loc, err := l.URL(ref)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(loc)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "file":
		return os.ReadFile(filepath.FromSlash(u.Path))
	case "http", "https":
		u.Fragment = ""
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		doer := l.HTTP
		if doer == nil {
			doer = http.DefaultClient
		}
		resp, err := doer.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("GET %s: %s", u, resp.Status)
		}
		return io.ReadAll(resp.Body)
	default:
		return nil, fmt.Errorf("unsupported scheme %q in %s", u.Scheme, loc)
	}
}

// Value loads ref and decodes it as JSON or YAML.
func (l *Loader) Value(ctx context.Context, ref string) (any, error) {
	data, err := l.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	return Decode(data, isYAML(ref))
}

// Decode parses JSON, falling back to YAML. Numbers from JSON are kept as
// json.Number so integers stay distinguishable from floats.
func Decode(data []byte, preferYAML bool) (any, error) {
	if !preferYAML {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err == nil {
			return v, nil
		}
	}
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return normalizeYAML(v), nil
}

func isYAML(ref string) bool {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	switch strings.ToLower(path.Ext(ref)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeYAML(e)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = normalizeYAML(e)
		}
		return out
	case []any:
		for i, e := range t {
			t[i] = normalizeYAML(e)
		}
		return t
	default:
		return v
	}
}

// jsonLoader adapts the loader to the compiler's URL hook. YAML documents
// are re-encoded as JSON.
func (l *Loader) jsonLoader(ctx context.Context) func(string) (io.ReadCloser, error) {
	return func(loc string) (io.ReadCloser, error) {
		data, err := l.Load(ctx, loc)
		if err != nil {
			return nil, err
		}
		if isYAML(loc) {
			v, err := Decode(data, true)
			if err != nil {
				return nil, err
			}
			if data, err = json.Marshal(v); err != nil {
				return nil, err
			}
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	}
}
