package server

import (
	"net/http"
	"strings"
)

// Routes are the endpoints served next to GraphQL. Nil handlers are not
// mounted, nor is a webhook without a prefix.
type Routes struct {
	// Path of the GraphQL endpoint, "/graphql" when empty. The root path
	// serves it too.
	Path        string
	GraphQL     http.Handler
	Webhook     *Webhook
	Metrics     http.Handler
	MetricsPath string
}

// Mux mounts the routes on a new ServeMux with a /healthz probe.
func (rt Routes) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	path := rt.Path
	if path == "" {
		path = "/graphql"
	}
	mux.Handle(path, rt.GraphQL)
	if path != "/" {
		mux.Handle("/{$}", rt.GraphQL)
	}
	if rt.Webhook != nil {
		if p := strings.Trim(rt.Webhook.Prefix, "/"); p != "" {
			mux.Handle("/"+p+"/", rt.Webhook)
		}
	}
	if rt.Metrics != nil {
		mp := rt.MetricsPath
		if mp == "" {
			mp = "/metrics"
		}
		mux.Handle(mp, rt.Metrics)
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, false)
	})
	return mux
}
