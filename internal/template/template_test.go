package template

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

const sampleTemplate = `
parameter "db_name" {
  description = "Name of the database"
  default     = "mydb"
}

parameter "flavor" {}

resource "database" "db" {
  arguments {
    name = param.db_name
  }
}

resource "server" "web" {
  arguments {
    flavor = param.flavor
    db     = resource.db.name
  }
  depends_on = ["db"]
}

output "address" {
  description = "Where the server listens"
  value       = "${resource.web.name}.local"
}

output "db_name" {
  value = param.db_name
}
`

func TestParse(t *testing.T) {
	tmpl, err := Parse([]byte(sampleTemplate), "sample.hcl")
	require.NoError(t, err)

	assert.Equal(t, 2, tmpl.ResourceCount())
	if diff := cmp.Diff([]string{"db", "web"}, tmpl.ResourceNames()); diff != "" {
		t.Errorf("resource names mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"address", "db_name"}, tmpl.OutputNames()); diff != "" {
		t.Errorf("output names mismatch (-want +got):\n%s", diff)
	}

	dbName := tmpl.Parameters["db_name"]
	require.NotNil(t, dbName)
	require.NotNil(t, dbName.Default)
	assert.Equal(t, cty.StringVal("mydb"), *dbName.Default)
	assert.Equal(t, "Name of the database", dbName.Description)

	flavor := tmpl.Parameters["flavor"]
	require.NotNil(t, flavor)
	assert.Nil(t, flavor.Default, "parameter without default is required")

	web := tmpl.ResourceByName("web")
	require.NotNil(t, web)
	assert.Equal(t, "server", web.Type)
	assert.Equal(t, []string{"db"}, web.DependsOn)
	assert.Contains(t, web.Arguments, "flavor")
	assert.Contains(t, web.Arguments, "db")

	assert.True(t, tmpl.HasOutput("address"))
	assert.False(t, tmpl.HasOutput("missing"))
	assert.Equal(t, "Where the server listens", tmpl.Outputs["address"].Description)
}

func TestParse_SyntaxError(t *testing.T) {
	src := `
resource "server" "web" {
  arguments {
`
	_, err := Parse([]byte(src), "broken.hcl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestParse_DuplicateOutput(t *testing.T) {
	src := `
output "x" { value = 1 }
output "x" { value = 2 }
`
	_, err := Parse([]byte(src), "dup.hcl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate output "x"`)
}

func TestParse_DuplicateParameter(t *testing.T) {
	src := `
parameter "x" {}
parameter "x" {}
`
	_, err := Parse([]byte(src), "dup.hcl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate parameter "x"`)
}

func TestValidate_DuplicateResourceName(t *testing.T) {
	src := `
resource "server" "web" {}
resource "database" "web" {}
`
	tmpl, err := Parse([]byte(src), "dup.hcl")
	require.NoError(t, err)

	err = tmpl.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate resource name "web"`)
}

func TestValidate_UnknownDependency(t *testing.T) {
	src := `
resource "server" "web" {
  depends_on = ["ghost"]
}
`
	tmpl, err := Parse([]byte(src), "dep.hcl")
	require.NoError(t, err)

	err = tmpl.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown resource "ghost"`)
}

func TestValidate_Empty(t *testing.T) {
	tmpl, err := Parse([]byte(""), "empty.hcl")
	require.NoError(t, err)
	require.NoError(t, tmpl.Validate())
	assert.Equal(t, 0, tmpl.ResourceCount())
}
