package jsonschema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypeName(t *testing.T) {
	cases := map[string]string{
		"user":            "User",
		"get_user-resp":   "GetUserResp",
		"GetUserResponse": "GetUserResponse",
		"2fa code":        "_2faCode",
		"!!!":             "",
	}
	for in, want := range cases {
		require.Equal(t, want, TypeName(in), in)
	}
}

func TestFieldName(t *testing.T) {
	require.Equal(t, "first_name", FieldName("first-name"))
	require.Equal(t, "_1st", FieldName("1st"))
	require.Equal(t, "_", FieldName(""))
	require.Equal(t, "ok", FieldName("ok"))
}

func TestEnumValueName(t *testing.T) {
	require.Equal(t, "_EMPTY", EnumValueName(""))
	require.Equal(t, "TRUE", EnumValueName(true))
	require.Equal(t, "NULL", EnumValueName("null"))
	require.Equal(t, "in_progress", EnumValueName("in-progress"))
	require.Equal(t, "_1", EnumValueName(int64(1)))
	require.Equal(t, "_1_5", EnumValueName(1.5))
}

func TestLocationName(t *testing.T) {
	require.Equal(t, "Address", locationName("file:///x/__composite.json#/properties/query/properties/getUser/properties/address"))
	require.Equal(t, "Tags", locationName("file:///x/__composite.json#/properties/tags/items"))
	require.Equal(t, "Pet", locationName("file:///x/schemas.json#/$defs/Pet"))
	require.Equal(t, "User", locationName("file:///x/user.json"))
	require.Equal(t, "User", locationName("file:///x/user.json#"))
	require.Equal(t, "", locationName("file:///x/__composite.json#"))
}
