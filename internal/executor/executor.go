package executor

import (
	"context"
	"fmt"
	"reflect"

	language "github.com/hanpama/restgraph/internal/language"
	schema "github.com/hanpama/restgraph/internal/schema"
)

type Executor struct {
	runtime Runtime
	schema  *schema.Schema
}

func NewExecutor(runtime Runtime, schema *schema.Schema) *Executor {
	return &Executor{runtime: runtime, schema: schema}
}

// pending is the placeholder written for an async field until its batch
// completes.
type pending struct{}

type asyncTask struct {
	task   AsyncResolveTask
	path   Path
	bubble Path
	typ    *schema.TypeRef
	fields []*language.Field
}

// executionState is the per-request state. bubble paths name the response
// location that becomes null when a Non-Null value at some path turns out
// null: the nearest nullable ancestor.
type executionState struct {
	ctx       context.Context
	runtime   Runtime
	schema    *schema.Schema
	document  *language.QueryDocument
	variables map[string]any
	queue     []asyncTask
	errors    []GraphQLError
	// tombstones are response paths nulled by propagation. Queued tasks
	// below them are dropped.
	tombstones []Path
}

func (e *Executor) newState(ctx context.Context, doc *language.QueryDocument, variables map[string]any) *executionState {
	return &executionState{
		ctx:       ctx,
		runtime:   e.runtime,
		schema:    e.schema,
		document:  doc,
		variables: variables,
	}
}

// prepare selects the operation, coerces variables and finds the root type.
func (e *Executor) prepare(document *language.QueryDocument, operationName string, variableValues map[string]any) (*language.OperationDefinition, map[string]any, *schema.Type, error) {
	operation := getOperation(document, operationName)
	if operation == nil {
		if operationName == "" {
			return nil, nil, nil, fmt.Errorf("must provide operation name if query contains multiple operations")
		}
		return nil, nil, nil, fmt.Errorf("unknown operation named %q", operationName)
	}
	variables, err := coerceVariableValues(e.schema, operation, variableValues)
	if err != nil {
		return nil, nil, nil, err
	}
	root := e.schema.RootType(string(operation.Operation))
	if root == nil {
		return nil, nil, nil, fmt.Errorf("schema does not support %s operations", operation.Operation)
	}
	return operation, variables, root, nil
}

// ExecuteRequest executes a query or mutation. Subscriptions go through
// Subscribe.
func (e *Executor) ExecuteRequest(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
	initialValue any,
) *ExecutionResult {
	operation, variables, root, err := e.prepare(document, operationName, variableValues)
	if err != nil {
		return &ExecutionResult{Errors: []GraphQLError{{Message: err.Error()}}}
	}
	if operation.Operation == language.Subscription {
		return &ExecutionResult{Errors: []GraphQLError{{Message: "subscription operations must be executed over a subscription transport"}}}
	}

	state := e.newState(ctx, document, variables)
	data := state.executeSelectionSet(root, operation.SelectionSet, initialValue, Path{}, nil)
	state.drain(data)
	return &ExecutionResult{Data: data, Errors: state.errors}
}

// Subscribe starts a subscription operation. Each event produced by the
// runtime is completed against the selection set of the single root field
// and delivered as one result. The channel closes when the event stream ends
// or ctx is done.
func (e *Executor) Subscribe(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
) (<-chan *ExecutionResult, error) {
	rt, ok := e.runtime.(SubscriptionRuntime)
	if !ok {
		return nil, fmt.Errorf("runtime does not support subscriptions")
	}
	operation, variables, root, err := e.prepare(document, operationName, variableValues)
	if err != nil {
		return nil, err
	}
	if operation.Operation != language.Subscription {
		return nil, fmt.Errorf("operation %q is a %s, not a subscription", operation.Name, operation.Operation)
	}

	state := e.newState(ctx, document, variables)
	grouped := state.collectFields(root, operation.SelectionSet).orderedFields()
	if len(grouped) != 1 {
		return nil, fmt.Errorf("subscription must select exactly one top level field")
	}
	selected := grouped[0]
	fieldDef := root.Field(selected.Fields[0].Name)
	if fieldDef == nil {
		return nil, fmt.Errorf("cannot query field %q on type %q", selected.Fields[0].Name, root.Name)
	}
	args, ok := state.coerceArgumentValues(fieldDef, selected.Fields[0].Arguments, Path{selected.ResponseName})
	if !ok {
		return nil, state.errors[0]
	}

	events, err := rt.Subscribe(ctx, root.Name, fieldDef.Name, args)
	if err != nil {
		return nil, err
	}
	out := make(chan *ExecutionResult)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				res := e.executeEvent(ctx, rt, document, variables, root, selected, fieldDef, args, event)
				select {
				case out <- res:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (e *Executor) executeEvent(
	ctx context.Context,
	rt SubscriptionRuntime,
	document *language.QueryDocument,
	variables map[string]any,
	root *schema.Type,
	selected collectedField,
	fieldDef *schema.Field,
	args map[string]any,
	event any,
) *ExecutionResult {
	state := e.newState(ctx, document, variables)
	path := Path{selected.ResponseName}
	data := map[string]any{selected.ResponseName: nil}

	value, err := rt.ResolveEvent(ctx, root.Name, fieldDef.Name, event, args)
	if err != nil {
		state.addError(err, path)
		return &ExecutionResult{Data: data, Errors: state.errors}
	}
	if completed := state.completeValue(fieldDef.Type, selected.Fields, value, path, path); !isNullish(completed) {
		data[selected.ResponseName] = completed
	}
	state.drain(data)
	return &ExecutionResult{Data: data, Errors: state.errors}
}

// drain resolves queued async tasks depth by depth until none remain.
func (s *executionState) drain(data map[string]any) {
	for len(s.queue) > 0 {
		live := s.queue[:0:0]
		for _, t := range s.queue {
			if !s.nullified(t.path) {
				live = append(live, t)
			}
		}
		s.queue = nil
		if len(live) == 0 {
			return
		}

		tasks := make([]AsyncResolveTask, len(live))
		for i, t := range live {
			tasks[i] = t.task
		}
		results := s.runtime.BatchResolveAsync(s.ctx, tasks)
		for i, t := range live {
			var res AsyncResolveResult
			if i < len(results) {
				res = results[i]
			} else {
				res.Error = fmt.Errorf("runtime returned no result for %s.%s", t.task.ObjectType, t.task.Field)
			}
			s.completeAsync(data, t, res)
		}
	}
}

func (s *executionState) completeAsync(data map[string]any, t asyncTask, res AsyncResolveResult) {
	if s.nullified(t.path) {
		return
	}
	var completed any
	if res.Error != nil {
		s.addError(res.Error, t.path)
	} else {
		completed = s.completeValue(t.typ, t.fields, res.Value, t.path, t.bubble)
	}
	if isNullish(completed) {
		if schema.IsNonNull(t.typ) {
			s.nullify(data, t.bubble)
			return
		}
		completed = nil
	}
	setValueAtPath(data, t.path, completed)
}

// executeSelectionSet executes the fields of one object value. It returns
// nil when a Non-Null field came back null and the object itself must be
// nulled.
func (s *executionState) executeSelectionSet(objectType *schema.Type, selectionSet language.SelectionSet, source any, path Path, bubble Path) map[string]any {
	result := make(map[string]any)
	for _, collected := range s.collectFields(objectType, selectionSet).orderedFields() {
		name := collected.ResponseName
		fieldPath := path.append(name)
		first := collected.Fields[0]

		if first.Name == "__typename" {
			result[name] = objectType.Name
			continue
		}
		fieldDef := objectType.Field(first.Name)
		if fieldDef == nil {
			s.addError(fmt.Errorf("cannot query field %q on type %q", first.Name, objectType.Name), fieldPath)
			continue
		}

		fieldBubble := fieldPath
		if schema.IsNonNull(fieldDef.Type) && bubble != nil {
			fieldBubble = bubble
		}
		args, ok := s.coerceArgumentValues(fieldDef, first.Arguments, fieldPath)
		if !ok {
			if schema.IsNonNull(fieldDef.Type) && len(path) > 0 {
				s.tombstone(path)
				return nil
			}
			result[name] = nil
			continue
		}

		if fieldDef.Async {
			s.queue = append(s.queue, asyncTask{
				task:   AsyncResolveTask{ObjectType: objectType.Name, Field: fieldDef.Name, Source: source, Args: args},
				path:   fieldPath,
				bubble: fieldBubble,
				typ:    fieldDef.Type,
				fields: collected.Fields,
			})
			result[name] = pending{}
			continue
		}

		var value any
		resolved, err := s.runtime.ResolveSync(s.ctx, objectType.Name, fieldDef.Name, source, args)
		if err != nil {
			s.addError(err, fieldPath)
		} else {
			value = s.completeValue(fieldDef.Type, collected.Fields, resolved, fieldPath, fieldBubble)
		}
		if isNullish(value) {
			if schema.IsNonNull(fieldDef.Type) && len(path) > 0 {
				s.tombstone(path)
				return nil
			}
			value = nil
		}
		result[name] = value
	}
	return result
}

// completeValue completes value against typ. bubble is where a null result
// for a Non-Null typ propagates to.
func (s *executionState) completeValue(typ *schema.TypeRef, fields []*language.Field, value any, path Path, bubble Path) any {
	if schema.IsNonNull(typ) {
		if isNullish(value) {
			if !s.hasErrorAt(path) {
				s.addError(fmt.Errorf("cannot return null for non-nullable field %s", path), path)
			}
			return nil
		}
		return s.completeNonNull(typ.OfType, fields, value, path, bubble)
	}
	if isNullish(value) {
		return nil
	}
	// A nullable value absorbs nulls from below.
	return s.completeNonNull(typ, fields, value, path, path)
}

// completeNonNull completes a value already known to be non-null against the
// nullable type typ.
func (s *executionState) completeNonNull(typ *schema.TypeRef, fields []*language.Field, value any, path Path, bubble Path) any {
	if typ.Kind == schema.TypeRefKindList {
		return s.completeList(typ, fields, value, path, bubble)
	}
	name := typ.GetNamedType()
	def := s.schema.Types[name]
	if def == nil {
		s.addError(fmt.Errorf("unknown type %s", name), path)
		return nil
	}
	switch def.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		out, err := s.runtime.SerializeLeafValue(s.ctx, name, value)
		if err != nil {
			s.addError(err, path)
			return nil
		}
		return out
	case schema.TypeKindObject:
		return s.executeSelectionSet(def, mergeSelectionSets(fields), value, path, bubble)
	case schema.TypeKindInterface, schema.TypeKindUnion:
		concrete, err := s.runtime.ResolveType(s.ctx, name, value)
		if err != nil {
			s.addError(err, path)
			return nil
		}
		obj := s.schema.Types[concrete]
		if obj == nil || obj.Kind != schema.TypeKindObject || !s.schema.PossibleType(name, concrete) {
			s.addError(fmt.Errorf("abstract type %s must resolve to one of its object types at runtime, got %q", name, concrete), path)
			return nil
		}
		return s.executeSelectionSet(obj, mergeSelectionSets(fields), value, path, bubble)
	}
	s.addError(fmt.Errorf("cannot complete value of unexpected type %s", def.Kind), path)
	return nil
}

func (s *executionState) completeList(typ *schema.TypeRef, fields []*language.Field, value any, path Path, bubble Path) any {
	items, ok := value.([]any)
	if !ok {
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			s.addError(fmt.Errorf("expected list value, got %T", value), path)
			return nil
		}
		items = make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
	}

	inner := typ.OfType
	out := make([]any, len(items))
	for i, item := range items {
		v := s.completeValue(inner, fields, item, path.append(i), bubble)
		if isNullish(v) {
			if schema.IsNonNull(inner) {
				s.tombstone(path)
				return nil
			}
			v = nil
		}
		out[i] = v
	}
	return out
}

func (s *executionState) addError(err error, path Path) {
	s.errors = append(s.errors, LocatedError(err, path))
}

func (s *executionState) hasErrorAt(path Path) bool {
	for _, e := range s.errors {
		if reflect.DeepEqual(e.Path, path) {
			return true
		}
	}
	return false
}

func (s *executionState) tombstone(p Path) {
	if len(p) > 0 {
		s.tombstones = append(s.tombstones, p)
	}
}

func (s *executionState) nullified(p Path) bool {
	for _, t := range s.tombstones {
		if p.HasPrefix(t) {
			return true
		}
	}
	return false
}

// nullify writes null at p and drops queued work below it.
func (s *executionState) nullify(data map[string]any, p Path) {
	setValueAtPath(data, p, nil)
	s.tombstone(p)
}

func getOperation(document *language.QueryDocument, operationName string) *language.OperationDefinition {
	if operationName == "" {
		if len(document.Operations) == 1 {
			return document.Operations[0]
		}
		return nil
	}
	return document.Operations.ForName(operationName)
}

// setValueAtPath replaces the value at p. Missing containers are not
// created: a missing parent means it was nulled.
func setValueAtPath(data map[string]any, p Path, value any) {
	if len(p) == 0 {
		return
	}
	var cur any = data
	for _, elem := range p[:len(p)-1] {
		switch e := elem.(type) {
		case string:
			m, ok := cur.(map[string]any)
			if !ok {
				return
			}
			cur = m[e]
		case int:
			l, ok := cur.([]any)
			if !ok || e >= len(l) {
				return
			}
			cur = l[e]
		}
	}
	switch e := p[len(p)-1].(type) {
	case string:
		if m, ok := cur.(map[string]any); ok {
			m[e] = value
		}
	case int:
		if l, ok := cur.([]any); ok && e < len(l) {
			l[e] = value
		}
	}
}

func mergeSelectionSets(fields []*language.Field) language.SelectionSet {
	var merged language.SelectionSet
	for _, f := range fields {
		merged = append(merged, f.SelectionSet...)
	}
	return merged
}

// isNullish reports nil interfaces and typed nils.
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	if _, ok := v.(pending); ok {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
