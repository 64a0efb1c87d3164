package transform

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"path"
	"regexp"
	"strings"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// SpriteName is the registered name of the svg sprite transform.
const SpriteName = "sprite"

// DefaultSpriteOutput is the file produced when no output is configured.
const DefaultSpriteOutput = "sprite.svg"

// Sprite merges svg files into one sprite of <symbol> elements, each identified by
// Prefix plus the source file stem. Attributes named in Strip are removed from the
// symbol contents, typically fill, stroke and style so icons inherit them from CSS.
type Sprite struct {
	Output string
	Prefix string
	Strip  []string

	strip *regexp.Regexp
}

var xmlName = regexp.MustCompile(`^[A-Za-z_][-A-Za-z0-9_.:]*$`)

type svgDocument struct {
	XMLName xml.Name `xml:"svg"`
	ViewBox string   `xml:"viewBox,attr"`
	Width   string   `xml:"width,attr"`
	Height  string   `xml:"height,attr"`
	Inner   string   `xml:",innerxml"`
}

func newSprite(spec domain.TransformSpec) (ports.Transform, error) {
	out := spec.Output
	if out == "" {
		out = DefaultSpriteOutput
	}
	out = path.Clean(out)
	if path.IsAbs(out) || strings.HasPrefix(out, "..") {
		return nil, invalidOptions(SpriteName, "output must be a relative file name")
	}
	s := Sprite{Output: out, Prefix: spec.Prefix, Strip: spec.Strip}
	if len(spec.Strip) > 0 {
		names := make([]string, 0, len(spec.Strip))
		for _, name := range spec.Strip {
			if !xmlName.MatchString(name) {
				return nil, invalidOptions(SpriteName, "invalid attribute name "+name)
			}
			names = append(names, regexp.QuoteMeta(name))
		}
		s.strip = regexp.MustCompile(`\s(?:` + strings.Join(names, "|") + `)\s*=\s*(?:"[^"]*"|'[^']*')`)
	}
	return s, nil
}

// Name implements ports.Transform.
func (Sprite) Name() string { return SpriteName }

// Aggregates implements ports.Aggregator.
func (Sprite) Aggregates() bool { return true }

// Apply implements ports.Transform.
func (s Sprite) Apply(_ context.Context, inputs []domain.FileRecord) ([]domain.FileRecord, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	buf.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" style="display:none">`)

	seen := make(map[string]string, len(inputs))
	for _, rec := range inputs {
		var doc svgDocument
		if err := xml.Unmarshal(rec.Contents, &doc); err != nil {
			return nil, domain.NewTransformError(SpriteName, zerr.With(zerr.Wrap(err, "invalid svg"), "path", rec.Path))
		}

		id := s.Prefix + symbolID(rec.Rel())
		if prev, dup := seen[id]; dup {
			return nil, domain.NewTransformError(SpriteName,
				zerr.With(zerr.With(zerr.New("duplicate symbol id "+id), "path", rec.Path), "previous", prev))
		}
		seen[id] = rec.Path

		buf.WriteString(`<symbol id="`)
		_ = xml.EscapeText(&buf, []byte(id))
		buf.WriteByte('"')
		if vb := viewBox(doc); vb != "" {
			buf.WriteString(` viewBox="`)
			_ = xml.EscapeText(&buf, []byte(vb))
			buf.WriteByte('"')
		}
		buf.WriteByte('>')
		inner := strings.TrimSpace(doc.Inner)
		if s.strip != nil {
			inner = s.strip.ReplaceAllString(inner, "")
		}
		buf.WriteString(inner)
		buf.WriteString(`</symbol>`)
	}
	buf.WriteString(`</svg>`)

	sprite := domain.NewFileRecord(s.Output, ".", buf.Bytes())
	sprite.ModTime = latestModTime(inputs)
	return []domain.FileRecord{sprite}, nil
}

func viewBox(doc svgDocument) string {
	if doc.ViewBox != "" {
		return doc.ViewBox
	}
	w := strings.TrimSuffix(doc.Width, "px")
	h := strings.TrimSuffix(doc.Height, "px")
	if w == "" || h == "" {
		return ""
	}
	return fmt.Sprintf("0 0 %s %s", w, h)
}

// symbolID derives an id from the file stem: lowercase letters, digits, '-' and '_'.
func symbolID(rel string) string {
	stem := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
	var b strings.Builder
	for _, r := range strings.ToLower(stem) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}
