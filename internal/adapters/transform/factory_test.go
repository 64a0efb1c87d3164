package transform_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/transform"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

func TestFactory_Names(t *testing.T) {
	f := transform.NewFactory()
	assert.Equal(t, []string{"concat", "copy", "exec", "minify", "rename", "replace", "sprite"}, f.Names())
}

func TestFactory_UnknownTransform(t *testing.T) {
	_, err := transform.NewFactory().New(domain.TransformSpec{Use: "babel"})
	require.ErrorContains(t, err, domain.ErrUnknownTransform.Error())

	var zErr *zerr.Error
	require.True(t, errors.As(err, &zErr))
	assert.Equal(t, "babel", zErr.Metadata()["transform"])
}

func TestFactory_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		spec domain.TransformSpec
	}{
		{name: "rename without options", spec: domain.TransformSpec{Use: "rename"}},
		{name: "rename with slash", spec: domain.TransformSpec{Use: "rename", Prefix: "x/"}},
		{name: "replace without old", spec: domain.TransformSpec{Use: "replace", New: "x"}},
		{name: "concat without output", spec: domain.TransformSpec{Use: "concat"}},
		{name: "concat escaping root", spec: domain.TransformSpec{Use: "concat", Output: "../all.js"}},
		{name: "exec without cmd", spec: domain.TransformSpec{Use: "exec"}},
		{name: "minify unknown media type", spec: domain.TransformSpec{Use: "minify", MediaType: "text/x-nope"}},
		{name: "sprite absolute output", spec: domain.TransformSpec{Use: "sprite", Output: "/tmp/sprite.svg"}},
	}

	f := transform.NewFactory()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.New(tt.spec)
			require.ErrorContains(t, err, domain.ErrInvalidTransformOptions.Error())

			var zErr *zerr.Error
			require.True(t, errors.As(err, &zErr))
			assert.Equal(t, tt.spec.Use, zErr.Metadata()["transform"])
		})
	}
}

type upper struct{}

func (upper) Name() string { return "upper" }

func (upper) Apply(_ context.Context, in []domain.FileRecord) ([]domain.FileRecord, error) {
	return in, nil
}

func TestFactory_Register(t *testing.T) {
	f := transform.NewFactory()
	f.Register("upper", func(domain.TransformSpec) (ports.Transform, error) { return upper{}, nil })

	tr, err := f.New(domain.TransformSpec{Use: "upper"})
	require.NoError(t, err)
	assert.Equal(t, "upper", tr.Name())
	assert.Contains(t, f.Names(), "upper")
}

func build(t *testing.T, spec domain.TransformSpec) ports.Transform {
	t.Helper()
	tr, err := transform.NewFactory().New(spec)
	require.NoError(t, err)
	return tr
}

func record(p, base, contents string) domain.FileRecord {
	return domain.NewFileRecord(p, base, []byte(contents))
}

func paths(records []domain.FileRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Path)
	}
	return out
}
