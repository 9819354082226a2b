package httprt

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hanpama/restgraph/internal/compose"
	"github.com/hanpama/restgraph/internal/errs"
	"github.com/hanpama/restgraph/internal/executor"
	"github.com/hanpama/restgraph/internal/httptp"
	"github.com/hanpama/restgraph/internal/interpolate"
	"github.com/hanpama/restgraph/internal/schema"
)

const formContentType = "application/x-www-form-urlencoded"

// call performs one HTTP operation invocation.
func (r *Runtime) call(ctx context.Context, b *binding, task executor.AsyncResolveTask) (any, error) {
	field := b.op.Field
	if err := checkMethod(field, b.method); err != nil {
		return nil, err
	}
	vars := r.vars(ctx, task.ObjectType, task.Field, task.Source, task.Args)

	target, err := r.buildURL(field, vars, b.op.Path)
	if err != nil {
		return nil, err
	}
	r.log.Debug("interpolated url", "field", field, "url", target.String())

	header := make(http.Header)
	for k, v := range vars.RenderMap(r.source.OperationHeaders) {
		header.Set(k, v)
	}
	for k, v := range vars.RenderMap(b.op.Headers) {
		header.Set(k, v)
	}

	var input any
	if arg := b.field.Argument(compose.InputArgument); arg != nil {
		input = r.flattenInput(task.Args[compose.InputArgument], arg.Type)
	}

	var body io.Reader
	method := strings.ToUpper(b.method)
	if bodiless[method] {
		if obj, ok := input.(map[string]any); ok {
			q := target.Query()
			for k, v := range obj {
				q.Set(k, paramValue(v))
			}
			target.RawQuery = q.Encode()
		}
	} else if input != nil {
		ct := strings.ToLower(header.Get("Content-Type"))
		if strings.HasPrefix(ct, formContentType) {
			body = strings.NewReader(formValues(input).Encode())
		} else {
			data, err := json.Marshal(input)
			if err != nil {
				return nil, errs.Configuration(field, err, "encode request body")
			}
			body = bytes.NewReader(data)
			if header.Get("Content-Type") == "" {
				header.Set("Content-Type", "application/json")
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, errs.Configuration(field, err, "build request")
	}
	req.Header = header
	r.log.Debug("outgoing request", "field", field, "method", method, "url", req.URL.String(), "headers", len(header), "body", body != nil)

	resp, err := r.fetcher.Do(httptp.WithField(ctx, field), req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	text := string(raw)
	r.log.Debug("raw response", "field", field, "status", resp.StatusCode, "body", text)

	return r.interpret(field, b.field.Type, text)
}

// buildURL interpolates the base URL and path and joins them. A path that
// is already absolute replaces the base URL. Static query params are merged
// in before the input is.
func (r *Runtime) buildURL(field string, vars interpolate.Context, path string) (*url.URL, error) {
	base := vars.Render(r.source.BaseURL)
	p := vars.Render(path)
	joined := base
	switch {
	case strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://"):
		joined = p
	case p != "":
		joined = strings.TrimRight(base, "/") + "/" + strings.TrimLeft(p, "/")
	}
	u, err := url.Parse(joined)
	if err != nil {
		return nil, errs.Configuration(field, err, "invalid url %q", joined)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errs.Configuration(field, nil, "url %q is not absolute", joined)
	}
	if len(r.source.QueryParams) > 0 {
		q := u.Query()
		for k, v := range vars.RenderMap(r.source.QueryParams) {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}

// paramValue renders one query or form value. Objects and lists are JSON
// encoded and an explicit null is sent as an empty value.
func paramValue(v any) string {
	if v == nil {
		return ""
	}
	return interpolate.Format(v)
}

func formValues(input any) url.Values {
	vals := url.Values{}
	obj, ok := input.(map[string]any)
	if !ok {
		return vals
	}
	for k, v := range obj {
		vals.Set(k, paramValue(v))
	}
	return vals
}

// interpret parses the response text and applies error detection.
func (r *Runtime) interpret(field string, ret *schema.TypeRef, text string) (any, error) {
	parsed, ok := parseJSON(text)
	if !ok {
		if r.isScalar(ret) {
			r.log.Debug("decision", "field", field, "result", "raw text")
			return text, nil
		}
		r.log.Debug("decision", "field", field, "result", "upstream data error")
		return nil, errs.UpstreamData(field, text)
	}
	if obj, ok := parsed.(map[string]any); ok {
		if list, ok := obj["errors"].([]any); ok && len(list) > 0 && !r.declares(ret, "errors") {
			agg := &errs.Aggregate{}
			for _, e := range list {
				agg.Errors = append(agg.Errors, r.normalize(e))
			}
			r.log.Debug("decision", "field", field, "result", "aggregated errors", "count", len(agg.Errors))
			return nil, agg
		}
		if e, ok := obj["error"]; ok && e != nil && !r.declares(ret, "error") {
			r.log.Debug("decision", "field", field, "result", "single error")
			return nil, r.normalize(e)
		}
	}
	r.log.Debug("decision", "field", field, "result", "data")
	return parsed, nil
}

func parseJSON(text string) (any, bool) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return v, true
}

func (r *Runtime) isScalar(ret *schema.TypeRef) bool {
	if schema.Nullable(ret).IsList() {
		return false
	}
	t := r.schema.Types[ret.GetNamedType()]
	return t != nil && t.Kind == schema.TypeKindScalar
}

// declares reports whether the named return type models a field whose JSON
// key is key.
func (r *Runtime) declares(ret *schema.TypeRef, key string) bool {
	t := r.schema.Types[ret.GetNamedType()]
	if t == nil || t.Kind != schema.TypeKindObject {
		return false
	}
	for _, f := range t.Fields {
		if f.Name == key || f.SourceKey() == key {
			return true
		}
	}
	return false
}

// normalize turns an upstream error value into a classified error. The
// message comes from the source's template: a ${...} template is rendered
// against the error object, otherwise it names the message field. An empty
// message falls back to the compact JSON of the object.
func (r *Runtime) normalize(v any) *errs.Error {
	obj, ok := v.(map[string]any)
	if !ok {
		return errs.UpstreamApplication(interpolate.Format(v), nil)
	}
	tmpl := r.source.ErrorTemplate()
	var msg string
	if interpolate.Has(tmpl) {
		msg = interpolate.Object(tmpl, obj)
	} else if m, ok := interpolate.Lookup(obj, tmpl); ok {
		msg = interpolate.Format(m)
	}
	if msg == "" {
		msg = interpolate.Format(obj)
	}
	attrs := make(map[string]any, len(obj))
	for k, val := range obj {
		attrs[k] = val
	}
	return errs.UpstreamApplication(msg, attrs)
}
