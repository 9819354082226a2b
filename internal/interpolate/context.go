package interpolate

import "strings"

// Scopes that may prefix a placeholder name. A name without one of these
// prefixes refers to a field argument.
const (
	ScopeRoot    = "root"
	ScopeArgs    = "args"
	ScopeContext = "context"
	ScopeInfo    = "info"
	ScopeEnv     = "env"
)

// Context is the per-request variable set used to render operation strings.
// Env is passed explicitly; interpolation never reads the process
// environment by itself.
type Context struct {
	Root    any
	Args    map[string]any
	Context map[string]any
	Info    map[string]any
	Env     map[string]string
}

func (c Context) scopes() map[string]any {
	env := make(map[string]any, len(c.Env))
	for k, v := range c.Env {
		env[k] = v
	}
	return map[string]any{
		ScopeRoot:    c.Root,
		ScopeArgs:    c.Args,
		ScopeContext: c.Context,
		ScopeInfo:    c.Info,
		ScopeEnv:     env,
	}
}

// Render substitutes every placeholder of s.
func (c Context) Render(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	scopes := c.scopes()
	return Render(s, func(name string) (any, bool) {
		return Lookup(scopes, qualify(name))
	})
}

// RenderMap renders every value of m into a new map.
func (c Context) RenderMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = c.Render(v)
	}
	return out
}

// ArgumentName reports the field argument a placeholder name refers to:
// "id" and "args.id" both name argument "id". Names in other scopes, or
// nested argument paths, yield false for the nested part only: "args.input.id"
// refers to argument "input".
func ArgumentName(name string) (string, bool) {
	head, rest, nested := strings.Cut(name, ".")
	switch head {
	case ScopeRoot, ScopeContext, ScopeInfo, ScopeEnv:
		return "", false
	case ScopeArgs:
		if !nested || rest == "" {
			return "", false
		}
		arg, _, _ := strings.Cut(rest, ".")
		return arg, true
	}
	if head == "" {
		return "", false
	}
	return head, true
}

func qualify(name string) string {
	head, _, _ := strings.Cut(name, ".")
	switch head {
	case ScopeRoot, ScopeArgs, ScopeContext, ScopeInfo, ScopeEnv:
		return name
	}
	return ScopeArgs + "." + name
}
