package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshly/tuberdash/internal/model"
)

func withJQ(t *testing.T, expr string) {
	t.Helper()
	flagJQ = expr
	t.Cleanup(func() { flagJQ = "" })
}

func TestPrintJSONIndents(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, &model.Tuple{Key: "cpu", Value: "500m"}))
	assert.Equal(t, "{\n  \"key\": \"cpu\",\n  \"value\": \"500m\"\n}\n", buf.String())
}

func TestPrintJSONWithJQ(t *testing.T) {
	tuples := []*model.Tuple{{Key: "cpu", Value: "500m"}, {Key: "replicas", Value: "3"}}

	withJQ(t, ".[] | select(.key == \"replicas\") | .value")
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, tuples))
	assert.Equal(t, "3\n", buf.String())

	withJQ(t, "map(.key)")
	buf.Reset()
	require.NoError(t, printJSON(&buf, tuples))
	assert.JSONEq(t, `["cpu","replicas"]`, buf.String())

	withJQ(t, "length")
	buf.Reset()
	require.NoError(t, printJSON(&buf, tuples))
	assert.Equal(t, "2\n", buf.String())
}

func TestPrintJSONBadExpression(t *testing.T) {
	withJQ(t, ".[")
	err := printJSON(&bytes.Buffer{}, []int{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid jq expression")

	withJQ(t, ".foo")
	err = printJSON(&bytes.Buffer{}, []int{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jq:")
}

func TestWantJSON(t *testing.T) {
	assert.False(t, wantJSON())
	withJQ(t, "  ")
	assert.False(t, wantJSON())
	withJQ(t, ".")
	assert.True(t, wantJSON())
}

func TestTableAligns(t *testing.T) {
	var buf bytes.Buffer
	tb := newTable(&buf, "KEY", "VALUE")
	tb.row("cpu", "500m")
	tb.row("replicas", "3")
	require.NoError(t, tb.flush())
	assert.Equal(t, "KEY       VALUE\ncpu       500m\nreplicas  3\n", buf.String())
}

func TestOrDash(t *testing.T) {
	assert.Equal(t, "-", orDash(""))
	assert.Equal(t, "x", orDash("x"))
}
