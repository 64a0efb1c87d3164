package transform_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/core/domain"
)

func TestMinify_ByExtension(t *testing.T) {
	tr := build(t, domain.TransformSpec{Use: "minify"})
	in := []domain.FileRecord{
		record("dist/main.css", "dist", "body {\n  margin : 0px ;\n}\n"),
		record("dist/data.json", "dist", "{ \"a\" : [ 1, 2 ] }"),
		record("dist/readme.txt", "dist", "  keep   me  "),
	}

	out, err := tr.Apply(t.Context(), in)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, "body{margin:0}", string(out[0].Contents))
	assert.Equal(t, `{"a":[1,2]}`, string(out[1].Contents))
	assert.Equal(t, in[2], out[2])
	assert.Equal(t, paths(in), paths(out))
}

func TestMinify_MediaTypeOverride(t *testing.T) {
	tr := build(t, domain.TransformSpec{Use: "minify", MediaType: "text/css"})
	out, err := tr.Apply(t.Context(), []domain.FileRecord{record("dist/theme.tpl", "dist", "a { color : red ; }")})
	require.NoError(t, err)
	assert.Equal(t, "a{color:red}", string(out[0].Contents))
}

func TestMinify_SyntaxErrorFailsStep(t *testing.T) {
	tr := build(t, domain.TransformSpec{Use: "minify"})
	_, err := tr.Apply(t.Context(), []domain.FileRecord{record("dist/app.js", "dist", "var = ;")})
	require.Error(t, err)

	var te *domain.TransformError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "minify", te.Transform)
}
