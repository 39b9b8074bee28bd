package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwarmErrorFormat(t *testing.T) {
	tests := []struct {
		name string
		err  *SwarmError
		want string
	}{
		{
			name: "without cause",
			err:  NewError(EXECUTOR_FAILED, "sandbox crashed"),
			want: "[EXECUTOR_FAILED] sandbox crashed",
		},
		{
			name: "with cause",
			err:  WrapError(VALIDATION_FAILED, "bad structured output", fmt.Errorf("unexpected token")),
			want: "[VALIDATION_FAILED] bad structured output: unexpected token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestSwarmErrorIs(t *testing.T) {
	wrapped := WrapError(JUDGE_FAILED, "judge returned garbage", errors.New("eof"))

	assert.True(t, errors.Is(wrapped, NewError(JUDGE_FAILED, "any message")))
	assert.False(t, errors.Is(wrapped, NewError(EXECUTOR_FAILED, "any message")))
}

func TestSwarmErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	wrapped := WrapError(EXECUTOR_FAILED, "executor call failed", cause)

	assert.Equal(t, cause, errors.Unwrap(wrapped))
}

func TestRetryableError(t *testing.T) {
	err := NewRetryableError(EXECUTOR_TIMEOUT, "deadline exceeded")
	assert.True(t, err.Retryable)
	assert.False(t, NewError(CONFIG_INVALID, "n too small").Retryable)
}

func TestFileMapClone(t *testing.T) {
	original := FileMap{"a.txt": []byte("hello")}
	clone := original.Clone()

	clone["a.txt"][0] = 'H'
	clone["b.txt"] = []byte("new")

	assert.Equal(t, []byte("hello"), original["a.txt"])
	assert.Len(t, original, 1)
}

func TestFileMapCloneNil(t *testing.T) {
	var f FileMap
	assert.Nil(t, f.Clone())
}

func TestFileMapMerge(t *testing.T) {
	base := FileMap{"a.txt": []byte("one"), "b.txt": []byte("two")}
	overlay := FileMap{"b.txt": []byte("TWO"), "c.txt": []byte("three")}

	merged := base.Merge(overlay)

	require.Len(t, merged, 3)
	assert.Equal(t, []byte("one"), merged["a.txt"])
	assert.Equal(t, []byte("TWO"), merged["b.txt"])
	assert.Equal(t, []byte("three"), merged["c.txt"])

	// Originals untouched
	assert.Equal(t, []byte("two"), base["b.txt"])
}

func TestFileMapWithPrefix(t *testing.T) {
	f := FileMap{"doc.md": []byte("x"), "src/main.go": []byte("y")}

	prefixed := f.WithPrefix("item_0")

	require.Len(t, prefixed, 2)
	assert.Contains(t, prefixed, "item_0/doc.md")
	assert.Contains(t, prefixed, "item_0/src/main.go")

	// Trailing slash variant behaves identically
	assert.True(t, prefixed.Equal(f.WithPrefix("item_0/")))
}

func TestFileMapEqual(t *testing.T) {
	a := FileMap{"x": []byte("1")}
	b := FileMap{"x": []byte("1")}
	c := FileMap{"x": []byte("2")}
	d := FileMap{"y": []byte("1")}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(d))
	assert.False(t, a.Equal(FileMap{}))
}

func TestFileMapPaths(t *testing.T) {
	f := FileMap{"b": nil, "a": nil, "c": nil}
	assert.Equal(t, []string{"a", "b", "c"}, f.Paths())
}

func TestObjectSchema(t *testing.T) {
	schema := ObjectSchema(map[string]*JSONSchema{
		"severity": StringProperty("issue severity"),
		"count":    NumberProperty("occurrence count"),
		"blocking": BoolProperty("whether the issue blocks release"),
	}, "severity")

	assert.Equal(t, "object", schema.Type)
	assert.Equal(t, []string{"severity"}, schema.Required)
	assert.Equal(t, "string", schema.Properties["severity"].Type)
	assert.Equal(t, "number", schema.Properties["count"].Type)
	assert.Equal(t, "boolean", schema.Properties["blocking"].Type)
}

func TestIDRoundTrip(t *testing.T) {
	id := NewID()
	require.NoError(t, id.Validate())

	parsed, err := ParseID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseIDRejectsGarbage(t *testing.T) {
	_, err := ParseID("not-a-uuid")
	assert.Error(t, err)

	_, err = ParseID("")
	assert.Error(t, err)
}
