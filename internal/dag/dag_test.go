package dag

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhangknight/heat/internal/template"
)

func parse(t *testing.T, src string) *template.Template {
	t.Helper()
	tmpl, err := template.Parse([]byte(src), "test.hcl")
	require.NoError(t, err)
	return tmpl
}

func TestBuild_ExplicitDependencies(t *testing.T) {
	tmpl := parse(t, `
resource "t" "a" {}
resource "t" "b" { depends_on = ["a"] }
resource "t" "c" { depends_on = ["b"] }
`)
	g, err := Build(tmpl)
	require.NoError(t, err)

	order, err := g.Order(false)
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"a", "b", "c"}, order); diff != "" {
		t.Errorf("forward order mismatch (-want +got):\n%s", diff)
	}

	reversed, err := g.Order(true)
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"c", "b", "a"}, reversed); diff != "" {
		t.Errorf("reverse order mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_ImplicitDependencies(t *testing.T) {
	tmpl := parse(t, `
resource "database" "db" {}
resource "server" "web" {
  arguments {
    db = resource.db.name
  }
}
`)
	g, err := Build(tmpl)
	require.NoError(t, err)

	order, err := g.Order(false)
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "web"}, order)

	deps, err := g.Dependencies("web")
	require.NoError(t, err)
	assert.Equal(t, []string{"db"}, deps)
}

func TestBuild_DiamondIsDeterministic(t *testing.T) {
	tmpl := parse(t, `
resource "t" "root" {}
resource "t" "left" { depends_on = ["root"] }
resource "t" "right" { depends_on = ["root"] }
resource "t" "leaf" { depends_on = ["left", "right"] }
`)
	g, err := Build(tmpl)
	require.NoError(t, err)

	order, err := g.Order(false)
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "left", "right", "leaf"}, order)
}

func TestBuild_CycleRejected(t *testing.T) {
	tmpl := parse(t, `
resource "t" "a" { depends_on = ["b"] }
resource "t" "b" { depends_on = ["a"] }
`)
	_, err := Build(tmpl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestBuild_SelfReferenceRejected(t *testing.T) {
	tmpl := parse(t, `
resource "t" "a" {
  arguments {
    me = resource.a.name
  }
}
`)
	_, err := Build(tmpl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "references itself")
}

func TestBuild_UnknownReferenceRejected(t *testing.T) {
	tmpl := parse(t, `
resource "t" "a" {
  arguments {
    other = resource.ghost.name
  }
}
`)
	_, err := Build(tmpl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown resource "ghost"`)
}

func TestBuild_ParamRefsAreNotDependencies(t *testing.T) {
	tmpl := parse(t, `
parameter "flavor" { default = "small" }
resource "t" "a" {
  arguments {
    flavor = param.flavor
  }
}
`)
	g, err := Build(tmpl)
	require.NoError(t, err)

	deps, err := g.Dependencies("a")
	require.NoError(t, err)
	assert.Empty(t, deps)
}

func TestDependencies_UnknownResource(t *testing.T) {
	g, err := Build(parse(t, `resource "t" "a" {}`))
	require.NoError(t, err)

	_, err = g.Dependencies("ghost")
	require.Error(t, err)
}
