package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	cause := errors.New("no such file")
	err := Configuration("getUser", cause, "read sample %q", "user.json")
	require.Equal(t, `getUser: read sample "user.json": no such file`, err.Error())
	require.ErrorIs(t, err, cause)
	require.True(t, IsConfiguration(fmt.Errorf("build: %w", err)))
	require.False(t, IsUpstreamData(err))
}

func TestUpstreamApplicationExtensions(t *testing.T) {
	attrs := map[string]any{"message": "boom", "code": 42.0}
	err := UpstreamApplication("boom", attrs)
	ext := err.Extensions()
	require.Equal(t, attrs, ext)

	ext["code"] = 1
	require.Equal(t, 42.0, err.Attrs["code"])
}

func TestAggregate(t *testing.T) {
	agg := &Aggregate{Errors: []*Error{
		UpstreamApplication("first", nil),
		UpstreamApplication("second", nil),
	}}
	require.Equal(t, "first\nsecond", agg.Error())
	require.True(t, IsUpstreamApplication(agg))

	var target *Error
	require.True(t, errors.As(agg, &target))
	require.Equal(t, "first", target.Message)
}

func TestAggregateExtensions(t *testing.T) {
	agg := &Aggregate{Errors: []*Error{
		UpstreamApplication("first", map[string]any{"message": "first", "path": []any{"a"}}),
		UpstreamApplication("second", nil),
	}}
	require.Equal(t, map[string]any{"errors": []any{
		map[string]any{"message": "first", "path": []any{"a"}},
		map[string]any{"message": "second"},
	}}, agg.Extensions())
}

func TestKindString(t *testing.T) {
	require.Equal(t, "upstream_data", KindUpstreamData.String())
	require.Equal(t, "unknown", Kind(99).String())
}
