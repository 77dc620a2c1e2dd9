package environment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/zhangknight/heat/internal/template"
)

const paramsTemplate = `
parameter "name" {}

parameter "flavor" {
  default = "small"
}
`

func parseTemplate(t *testing.T, src string) *template.Template {
	t.Helper()
	tmpl, err := template.Parse([]byte(src), "test.hcl")
	require.NoError(t, err)
	return tmpl
}

func TestResolve_MergesDefaults(t *testing.T) {
	tmpl := parseTemplate(t, paramsTemplate)
	env := New(map[string]cty.Value{"name": cty.StringVal("web")})

	require.NoError(t, env.Resolve(tmpl))

	values := env.Values()
	assert.Equal(t, cty.StringVal("web"), values["name"])
	assert.Equal(t, cty.StringVal("small"), values["flavor"])
	assert.Equal(t, []string{"flavor", "name"}, env.ParameterNames())
}

func TestResolve_UserValueOverridesDefault(t *testing.T) {
	tmpl := parseTemplate(t, paramsTemplate)
	env := New(map[string]cty.Value{
		"name":   cty.StringVal("web"),
		"flavor": cty.StringVal("large"),
	})

	require.NoError(t, env.Resolve(tmpl))
	assert.Equal(t, cty.StringVal("large"), env.Values()["flavor"])
}

func TestResolve_MissingRequired(t *testing.T) {
	tmpl := parseTemplate(t, paramsTemplate)
	env := New(nil)

	err := env.Resolve(tmpl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `parameter "name" is required`)
}

func TestResolve_UnknownParameter(t *testing.T) {
	tmpl := parseTemplate(t, paramsTemplate)
	env := New(map[string]cty.Value{
		"name":  cty.StringVal("web"),
		"ghost": cty.StringVal("boo"),
	})

	err := env.Resolve(tmpl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown parameter "ghost"`)
}

func TestFromStrings(t *testing.T) {
	env := FromStrings(map[string]string{"name": "web"})
	assert.Equal(t, cty.StringVal("web"), env.UserValues()["name"])
}

func TestEvalContext_ExposesParams(t *testing.T) {
	tmpl := parseTemplate(t, paramsTemplate)
	env := New(map[string]cty.Value{"name": cty.StringVal("web")})
	require.NoError(t, env.Resolve(tmpl))

	evalCtx := env.EvalContext()
	params := evalCtx.Variables["param"]
	require.True(t, params.Type().IsObjectType())
	assert.Equal(t, cty.StringVal("web"), params.GetAttr("name"))
	assert.Equal(t, cty.StringVal("small"), params.GetAttr("flavor"))
}

func TestEvalContext_EmptyParams(t *testing.T) {
	env := New(nil)
	require.NoError(t, env.Resolve(parseTemplate(t, "")))

	evalCtx := env.EvalContext()
	assert.Equal(t, cty.EmptyObjectVal, evalCtx.Variables["param"])
}
