package formats

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pteich/elastic-frame/frame"
)

func sample(t *testing.T) *frame.Frame {
	t.Helper()
	f, err := frame.New("id", "species", "width", "tags", "note")
	require.NoError(t, err)
	require.NoError(t, f.Append(int64(1), "setosa", 0.2, []any{"a", "b"}, "two\nlines"))
	require.NoError(t, f.Append(int64(2), "virginica", 2.0, nil, nil))
	return f
}

func Test_formatCell(t *testing.T) {
	tests := []struct {
		name string
		val  any
		want string
	}{
		{"nil", nil, ""},
		{"string", "abc", "abc"},
		{"line breaks", "a\r\nb\nc", "abc"},
		{"int64", int64(42), "42"},
		{"integral float", 3.0, "3"},
		{"float", 3.25, "3.25"},
		{"bool", true, "true"},
		{"slice", []any{"a", 1.0}, `["a",1]`},
		{"map", map[string]any{"k": "v"}, `{"k":"v"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatCell(tt.val))
		})
	}
}

func TestCSV_Write(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV{}.Write(context.Background(), &buf, sample(t)))

	assert.Equal(t, "id,species,width,tags,note\n1,setosa,0.2,\"[\"\"a\"\",\"\"b\"\"]\",twolines\n2,virginica,2,,\n", buf.String())
}

func TestCSV_WriteFields(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV{Fields: []string{"species", "missing"}}.Write(context.Background(), &buf, sample(t)))

	assert.Equal(t, "species,missing\nsetosa,\nvirginica,\n", buf.String())
}

func TestReadCSV_TypesCells(t *testing.T) {
	in := "id,Sepal.Length,species,ok,empty\n10,5.1,setosa,true,\n11,4.9,\"vir, ginica\",false,\n"

	f, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "Sepal.Length", "species", "ok", "empty"}, f.Columns())
	assert.Equal(t, []any{int64(10), 5.1, "setosa", true, nil}, f.Row(0))
	assert.Equal(t, []any{int64(11), 4.9, "vir, ginica", false, nil}, f.Row(1))
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("a,b\n1\n"))
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("a,a\n1,2\n"))
	assert.Error(t, err)

	f, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, f.Len())
}

func TestParseCell(t *testing.T) {
	assert.Equal(t, "NaN", parseCell("NaN"))
	assert.Equal(t, "True", parseCell("True"))
	assert.Equal(t, int64(-3), parseCell("-3"))
	assert.Equal(t, 1e3, parseCell("1e3"))
}

func TestJSON_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON{}.Write(context.Background(), &buf, sample(t)))

	assert.Equal(t,
		`{"id":1,"species":"setosa","width":0.2,"tags":["a","b"],"note":"two\nlines"}`+"\n"+
			`{"id":2,"species":"virginica","width":2}`+"\n",
		buf.String())

	f, err := ReadJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Len())
	assert.Equal(t, []string{"id", "species", "width", "tags", "note"}, f.Columns())
	assert.Equal(t, []any{int64(1), int64(2)}, f.Column("id"))
}

func TestReadJSON_Array(t *testing.T) {
	f, err := ReadJSON(strings.NewReader(` [{"a":1,"n":{"x":true}},{"b":"z"}]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "n.x", "b"}, f.Columns())
	assert.Equal(t, []any{nil, nil, "z"}, f.Row(1))

	f, err = ReadJSON(strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Equal(t, 0, f.Len())

	_, err = ReadJSON(strings.NewReader(`{"a":1}` + "\n" + `[1]`))
	assert.Error(t, err)
}

func TestYAML_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, YAML{Fields: []string{"species", "id", "tags"}}.Write(context.Background(), &buf, sample(t)))

	assert.Equal(t, "- species: setosa\n  id: 1\n  tags:\n    - a\n    - b\n- species: virginica\n  id: 2\n", buf.String())

	f, err := ReadYAML(&buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"species", "id", "tags"}, f.Columns())
	assert.Equal(t, []any{"setosa", int64(1), []any{"a", "b"}}, f.Row(0))
	assert.Equal(t, []any{"virginica", int64(2), nil}, f.Row(1))
}

func TestReadYAML_Nested(t *testing.T) {
	f, err := ReadYAML(strings.NewReader("- name: a\n  dims:\n    w: 1\n    h: 2.5\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "dims.h", "dims.w"}, f.Columns())

	_, err = ReadYAML(strings.NewReader("a: 1\n"))
	assert.Error(t, err)
}

func TestNewAndReader(t *testing.T) {
	for _, format := range []string{FormatCSV, FormatJSON, FormatYAML} {
		_, err := New(format, nil, nil)
		assert.NoError(t, err)
		_, err = Reader(format)
		assert.NoError(t, err)
	}
	_, err := New("raw", nil, nil)
	assert.Error(t, err)
	_, err = Reader("xml")
	assert.Error(t, err)
}

func TestWrite_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	assert.ErrorIs(t, JSON{}.Write(ctx, &buf, sample(t)), context.Canceled)
	assert.ErrorIs(t, CSV{}.Write(ctx, &buf, sample(t)), context.Canceled)
	assert.ErrorIs(t, YAML{}.Write(ctx, &buf, sample(t)), context.Canceled)
}
