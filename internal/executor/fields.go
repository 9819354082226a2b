package executor

import (
	language "github.com/hanpama/restgraph/internal/language"
	schema "github.com/hanpama/restgraph/internal/schema"
)

// collectedFieldMap groups fields by response name in query order.
type collectedFieldMap struct {
	fields []collectedField
	index  map[string]int
}

type collectedField struct {
	ResponseName string
	Fields       []*language.Field
}

func newCollectedFieldMap() *collectedFieldMap {
	return &collectedFieldMap{index: make(map[string]int)}
}

func (m *collectedFieldMap) add(responseName string, field *language.Field) {
	if idx, ok := m.index[responseName]; ok {
		m.fields[idx].Fields = append(m.fields[idx].Fields, field)
		return
	}
	m.index[responseName] = len(m.fields)
	m.fields = append(m.fields, collectedField{ResponseName: responseName, Fields: []*language.Field{field}})
}

func (m *collectedFieldMap) orderedFields() []collectedField {
	return m.fields
}

func (s *executionState) collectFields(objectType *schema.Type, selectionSet language.SelectionSet) *collectedFieldMap {
	grouped := newCollectedFieldMap()
	s.collectInto(objectType, selectionSet, grouped, make(map[string]bool))
	return grouped
}

func (s *executionState) collectInto(objectType *schema.Type, selectionSet language.SelectionSet, grouped *collectedFieldMap, visited map[string]bool) {
	for _, selection := range selectionSet {
		switch sel := selection.(type) {
		case *language.Field:
			if !s.shouldInclude(sel.Directives) {
				continue
			}
			name := sel.Alias
			if name == "" {
				name = sel.Name
			}
			grouped.add(name, sel)

		case *language.InlineFragment:
			if !s.shouldInclude(sel.Directives) || !s.fragmentApplies(sel.TypeCondition, objectType) {
				continue
			}
			s.collectInto(objectType, sel.SelectionSet, grouped, visited)

		case *language.FragmentSpread:
			if !s.shouldInclude(sel.Directives) || visited[sel.Name] {
				continue
			}
			visited[sel.Name] = true
			def := s.document.Fragments.ForName(sel.Name)
			if def == nil || !s.fragmentApplies(def.TypeCondition, objectType) {
				continue
			}
			s.collectInto(objectType, def.SelectionSet, grouped, visited)
		}
	}
}

// fragmentApplies matches a type condition against the concrete object type,
// including conditions naming a union or interface it belongs to.
func (s *executionState) fragmentApplies(condition string, objectType *schema.Type) bool {
	if condition == "" || condition == objectType.Name {
		return true
	}
	if s.schema.PossibleType(condition, objectType.Name) {
		return true
	}
	for _, iface := range objectType.Interfaces {
		if iface == condition {
			return true
		}
	}
	return false
}

// shouldInclude evaluates @skip and @include.
func (s *executionState) shouldInclude(directives language.DirectiveList) bool {
	if d := directives.ForName("skip"); d != nil {
		if v, ok := s.directiveArgument(d, "if").(bool); ok && v {
			return false
		}
	}
	if d := directives.ForName("include"); d != nil {
		if v, ok := s.directiveArgument(d, "if").(bool); ok && !v {
			return false
		}
	}
	return true
}

func (s *executionState) directiveArgument(d *language.Directive, name string) any {
	arg := d.Arguments.ForName(name)
	if arg == nil {
		return nil
	}
	return valueFromAST(arg.Value, s.variables)
}
