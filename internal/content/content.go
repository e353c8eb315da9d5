package content

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"

	"github.com/drstein77/hostfront/internal/models"
)

var ErrNotFound = errors.New("page not found")

//go:embed pages/*.md
var pagesFS embed.FS

//go:embed faq.yaml
var faqYAML []byte

// Library holds the marketing pages, rendered once.
type Library struct {
	pages map[string]models.Page
	order []string
	faq   []models.FAQ
}

// Load renders every *.md file of pages and parses the FAQ document.
func Load(pages fs.FS, faq []byte) (*Library, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))

	files, err := fs.Glob(pages, "*.md")
	if err != nil {
		return nil, err
	}

	lib := &Library{pages: make(map[string]models.Page, len(files))}
	for _, name := range files {
		src, err := fs.ReadFile(pages, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var buf bytes.Buffer
		if err := md.Convert(src, &buf); err != nil {
			return nil, fmt.Errorf("render %s: %w", name, err)
		}
		slug := strings.TrimSuffix(path.Base(name), ".md")
		lib.pages[slug] = models.Page{Slug: slug, Title: title(src, slug), HTML: buf.String()}
		lib.order = append(lib.order, slug)
	}
	sort.Strings(lib.order)

	if err := yaml.Unmarshal(faq, &lib.faq); err != nil {
		return nil, fmt.Errorf("parse faq: %w", err)
	}
	return lib, nil
}

// Default returns the library built from the embedded pages.
func Default() *Library {
	sub, err := fs.Sub(pagesFS, "pages")
	if err != nil {
		panic(err)
	}
	lib, err := Load(sub, faqYAML)
	if err != nil {
		panic(err)
	}
	return lib
}

func (l *Library) Page(slug string) (models.Page, error) {
	p, ok := l.pages[strings.ToLower(slug)]
	if !ok {
		return models.Page{}, ErrNotFound
	}
	return p, nil
}

// Pages lists slug and title of every page, without bodies.
func (l *Library) Pages() []models.Page {
	out := make([]models.Page, 0, len(l.order))
	for _, slug := range l.order {
		p := l.pages[slug]
		out = append(out, models.Page{Slug: p.Slug, Title: p.Title})
	}
	return out
}

// FAQ returns the entries of one topic, or all of them for "".
func (l *Library) FAQ(topic string) []models.FAQ {
	topic = strings.ToLower(strings.TrimSpace(topic))
	out := make([]models.FAQ, 0, len(l.faq))
	for _, f := range l.faq {
		if topic == "" || f.Topic == topic {
			out = append(out, f)
		}
	}
	return out
}

func title(src []byte, slug string) string {
	for _, line := range strings.Split(string(src), "\n") {
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return strings.ToUpper(slug[:1]) + slug[1:]
}
