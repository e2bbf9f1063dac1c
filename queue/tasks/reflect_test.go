package tasks_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/matchboxhq/matchbox/queue/tasks"
)

func TestReflectValue(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		value    interface{}
		expected string
	}{
		{
			name:     "bool",
			value:    false,
			expected: "bool",
		},
		{
			name:     "int",
			value:    json.Number("1"),
			expected: "int",
		},
		{
			name:     "int8",
			value:    json.Number("1"),
			expected: "int8",
		},
		{
			name:     "int16",
			value:    json.Number("1"),
			expected: "int16",
		},
		{
			name:     "int32",
			value:    json.Number("1"),
			expected: "int32",
		},
		{
			name:     "int64",
			value:    json.Number("1"),
			expected: "int64",
		},
		{
			name:     "uint",
			value:    json.Number("1"),
			expected: "uint",
		},
		{
			name:     "uint64",
			value:    json.Number("1"),
			expected: "uint64",
		},
		{
			name:     "float32",
			value:    json.Number("0.5"),
			expected: "float32",
		},
		{
			name:     "float64",
			value:    json.Number("0.5"),
			expected: "float64",
		},
		{
			name:     "string",
			value:    "hello world",
			expected: "string",
		},
		{
			name:     "[]bool",
			value:    []interface{}{true, false},
			expected: "[]bool",
		},
		{
			name:     "[]int64",
			value:    []interface{}{json.Number("1"), json.Number("2")},
			expected: "[]int64",
		},
		{
			name:     "[]float64",
			value:    []interface{}{json.Number("0.5"), json.Number("1.28")},
			expected: "[]float64",
		},
		{
			name:     "[]string",
			value:    []interface{}{"foo", "bar"},
			expected: "[]string",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			value, err := tasks.ReflectValue(tc.name, tc.value)
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, value.Type().String())
		})
	}
}

func TestReflectValueNilSlice(t *testing.T) {
	t.Parallel()

	value, err := tasks.ReflectValue("[]string", nil)
	assert.NoError(t, err)
	assert.Equal(t, "[]string", value.Type().String())
	assert.Equal(t, 0, value.Len())
}

func TestReflectValueUnsupportedType(t *testing.T) {
	t.Parallel()

	_, err := tasks.ReflectValue("map[string]string", map[string]string{})
	if assert.Error(t, err) {
		assert.Equal(t, "map[string]string is not one of supported types", err.Error())
	}

	_, err = tasks.ReflectValue("[]struct{}", []interface{}{})
	assert.Error(t, err)
}

func TestReflectValueTypeConversionError(t *testing.T) {
	t.Parallel()

	_, err := tasks.ReflectValue("string", 123)
	if assert.Error(t, err) {
		assert.Equal(t, "123 is not string", err.Error())
	}
}
