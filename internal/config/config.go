// Package config holds the restgraph configuration: the JSON-schema source
// with its operations, plus the server, cache, pubsub and telemetry settings.
package config

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
)

type OperationType string

const (
	OperationQuery        OperationType = "query"
	OperationMutation     OperationType = "mutation"
	OperationSubscription OperationType = "subscription"
)

// Operation declares one GraphQL root field backed by an HTTP call or a
// pubsub topic. An operation is pubsub-kind when PubSubTopic is set.
type Operation struct {
	Type        OperationType `yaml:"type" json:"type"`
	Field       string        `yaml:"field" json:"field"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`

	Path    string            `yaml:"path,omitempty" json:"path,omitempty"`
	Method  string            `yaml:"method,omitempty" json:"method,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`

	PubSubTopic string `yaml:"pubsubTopic,omitempty" json:"pubsubTopic,omitempty"`

	// Samples are either a file path or URL (string) or an inline value.
	RequestSchema    string `yaml:"requestSchema,omitempty" json:"requestSchema,omitempty"`
	RequestSample    any    `yaml:"requestSample,omitempty" json:"requestSample,omitempty"`
	RequestTypeName  string `yaml:"requestTypeName,omitempty" json:"requestTypeName,omitempty"`
	ResponseSchema   string `yaml:"responseSchema,omitempty" json:"responseSchema,omitempty"`
	ResponseSample   any    `yaml:"responseSample,omitempty" json:"responseSample,omitempty"`
	ResponseTypeName string `yaml:"responseTypeName,omitempty" json:"responseTypeName,omitempty"`

	// ArgTypeMap overrides the GraphQL type of placeholder-derived arguments.
	ArgTypeMap map[string]string `yaml:"argTypeMap,omitempty" json:"argTypeMap,omitempty"`
}

// Source is one upstream API described by JSON schemas.
type Source struct {
	Name             string            `yaml:"name,omitempty" json:"name,omitempty"`
	BaseURL          string            `yaml:"baseUrl,omitempty" json:"baseUrl,omitempty"`
	OperationHeaders map[string]string `yaml:"operationHeaders,omitempty" json:"operationHeaders,omitempty"`
	QueryParams      map[string]string `yaml:"queryParams,omitempty" json:"queryParams,omitempty"`
	// ErrorMessage is either a field name of the upstream error object or a
	// template with ${...} placeholders. Defaults to "message".
	ErrorMessage string      `yaml:"errorMessage,omitempty" json:"errorMessage,omitempty"`
	Operations   []Operation `yaml:"operations" json:"operations"`

	// BaseDir resolves relative schema and sample paths. Set by LoadFile to
	// the directory of the configuration file.
	BaseDir string `yaml:"baseDir,omitempty" json:"baseDir,omitempty"`
}

type Config struct {
	Source    Source          `yaml:"source"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Cache     CacheConfig     `yaml:"cache"`
	PubSub    PubSubConfig    `yaml:"pubsub"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	Timeout         time.Duration `yaml:"timeout"`
	GraphiQL        bool          `yaml:"graphiql"`
	Pretty          bool          `yaml:"pretty"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
	ForwardHeaders  []string      `yaml:"forwardHeaders"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes"`
	WebhookPrefix   string        `yaml:"webhookPrefix"`
	MetricsPath     string        `yaml:"metricsPath"`
	Introspection   *bool         `yaml:"introspection"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type CacheConfig struct {
	// Backend is "memory" (default) or "nats".
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
	NATSURL string        `yaml:"natsUrl"`
	Bucket  string        `yaml:"bucket"`
}

type PubSubConfig struct {
	// Backend is "memory" (default), "mqtt" or "nats".
	Backend  string `yaml:"backend"`
	URL      string `yaml:"url"`
	ClientID string `yaml:"clientId"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlpEndpoint"`
	ServiceName  string `yaml:"serviceName"`
}

type UpstreamConfig struct {
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// Metadata is derived from an Operation and drives field placement and the
// HTTP method used by the runtime.
type Metadata struct {
	HTTPMethod    string
	OperationType OperationType
	RootTypeName  string
	FieldName     string
}

// IsPubSub reports whether the operation is bound to a pubsub topic.
func (op Operation) IsPubSub() bool { return op.PubSubTopic != "" }

// Metadata derives placement and method for the operation.
func (op Operation) Metadata() Metadata {
	md := Metadata{OperationType: op.Type, FieldName: op.Field}
	switch {
	case op.IsPubSub():
		md.RootTypeName = "Subscription"
	case op.Type == OperationMutation:
		md.RootTypeName = "Mutation"
	default:
		md.RootTypeName = "Query"
	}
	switch {
	case op.Method != "":
		md.HTTPMethod = strings.ToUpper(op.Method)
	case op.Type == OperationMutation:
		md.HTTPMethod = http.MethodPost
	default:
		md.HTTPMethod = http.MethodGet
	}
	return md
}

// TypeKey returns the composite-schema property holding the response side:
// "query", "mutation" or "subscription".
func (op Operation) TypeKey() string {
	switch {
	case op.IsPubSub():
		return string(OperationSubscription)
	case op.Type == OperationMutation:
		return string(OperationMutation)
	default:
		return string(OperationQuery)
	}
}

var nameRe = regexp.MustCompile(`^[_A-Za-z][_0-9A-Za-z]*$`)

// Validate checks the source for problems that would make schema synthesis
// ambiguous. Unsupported HTTP methods are reported when the field is called.
func (s *Source) Validate() error {
	seen := map[string]bool{}
	for i, op := range s.Operations {
		switch op.Type {
		case "", OperationQuery, OperationMutation, OperationSubscription:
		default:
			return fmt.Errorf("%w: operations[%d]: unknown type %q", ErrInvalidConfig, i, op.Type)
		}
		if op.Field == "" {
			return fmt.Errorf("%w: operations[%d]: field is required", ErrInvalidConfig, i)
		}
		if !nameRe.MatchString(op.Field) {
			return fmt.Errorf("%w: operations[%d]: %q is not a valid GraphQL field name", ErrInvalidConfig, i, op.Field)
		}
		key := op.Metadata().RootTypeName + "." + op.Field
		if seen[key] {
			return fmt.Errorf("%w: operations[%d]: duplicate field %s", ErrInvalidConfig, i, key)
		}
		seen[key] = true
		if !op.IsPubSub() && op.Path == "" && s.BaseURL == "" {
			return fmt.Errorf("%w: operations[%d]: %s needs a path or a source baseUrl", ErrInvalidConfig, i, op.Field)
		}
	}
	return nil
}

// ErrorTemplate returns the configured error message template.
func (s *Source) ErrorTemplate() string {
	if s.ErrorMessage == "" {
		return "message"
	}
	return s.ErrorMessage
}
