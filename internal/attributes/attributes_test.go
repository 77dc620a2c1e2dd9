package attributes

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhangknight/heat/internal/template"
)

func TestSchemaFromOutputs(t *testing.T) {
	src := `
output "address" {
  description = "Where the server listens"
  value       = "x"
}

output "port" {
  value = 8080
}
`
	tmpl, err := template.Parse([]byte(src), "outputs.hcl")
	require.NoError(t, err)

	schema := SchemaFromOutputs(tmpl.Outputs)
	require.Len(t, schema, 2)
	assert.Equal(t, "Where the server listens", schema["address"].Description)
	assert.Empty(t, schema["port"].Description)
}

func TestGet(t *testing.T) {
	resolved := map[string]string{"address": "web.local"}
	attrs := New("web", Schema{"address": {}}, func(ctx context.Context, name string) (string, error) {
		return resolved[name], nil
	})

	assert.Equal(t, []string{"address"}, attrs.Names())
	assert.True(t, attrs.Has("address"))
	assert.False(t, attrs.Has("port"))

	value, err := attrs.Get(context.Background(), "address")
	require.NoError(t, err)
	assert.Equal(t, "web.local", value)
}

func TestGet_UnknownAttribute(t *testing.T) {
	attrs := New("web", Schema{"address": {}}, func(ctx context.Context, name string) (string, error) {
		t.Fatal("resolver must not run for names outside the schema")
		return "", nil
	})

	_, err := attrs.Get(context.Background(), "port")
	var invalid *InvalidAttributeError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "web", invalid.Resource)
	assert.Equal(t, "port", invalid.Name)
}

func TestGet_ResolutionIsLazy(t *testing.T) {
	calls := 0
	attrs := New("web", Schema{"address": {}}, func(ctx context.Context, name string) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("not ready")
		}
		return "web.local", nil
	})

	_, err := attrs.Get(context.Background(), "address")
	require.Error(t, err)

	value, err := attrs.Get(context.Background(), "address")
	require.NoError(t, err)
	assert.Equal(t, "web.local", value, "each read resolves afresh")
	assert.Equal(t, 2, calls)
}
