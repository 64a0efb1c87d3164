package transform

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/json"
	"github.com/tdewolff/minify/v2/svg"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
)

// MinifyName is the registered name of the minify transform.
const MinifyName = "minify"

var mediaTypes = map[string]string{
	".css":  "text/css",
	".htm":  "text/html",
	".html": "text/html",
	".js":   "application/javascript",
	".mjs":  "application/javascript",
	".json": "application/json",
	".svg":  "image/svg+xml",
}

// Minify compacts css, html, js, json and svg files. Other files pass through unchanged.
type Minify struct {
	m         *minify.M
	mediaType string
}

func newMinify(spec domain.TransformSpec) (ports.Transform, error) {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)
	m.AddFuncRegexp(regexp.MustCompile("^(application|text)/(x-)?(java|ecma)script$"), js.Minify)
	m.AddFuncRegexp(regexp.MustCompile("[/+]json$"), json.Minify)

	mt := strings.TrimSpace(spec.MediaType)
	if mt != "" {
		if _, err := m.String(mt, ""); errors.Is(err, minify.ErrNotExist) {
			return nil, invalidOptions(MinifyName, "unsupported media type "+mt)
		}
	}
	return &Minify{m: m, mediaType: mt}, nil
}

// Name implements ports.Transform.
func (*Minify) Name() string { return MinifyName }

// Apply implements ports.Transform.
func (t *Minify) Apply(_ context.Context, inputs []domain.FileRecord) ([]domain.FileRecord, error) {
	return mapRecords(MinifyName, inputs, func(rec domain.FileRecord) (domain.FileRecord, error) {
		mt := t.mediaType
		if mt == "" {
			mt = mediaTypes[strings.ToLower(rec.Ext())]
		}
		if mt == "" {
			return rec, nil
		}
		out, err := t.m.Bytes(mt, rec.Contents)
		if err != nil {
			return rec, err
		}
		return rec.WithContents(out), nil
	})
}
