package countries

import (
	_ "embed"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/drstein77/hostfront/internal/models"
)

//go:embed countries.yaml
var countriesYAML []byte

type document struct {
	Default   string           `yaml:"default"`
	Countries []models.Country `yaml:"countries"`
}

// Directory is the set of countries the storefront sells to.
type Directory struct {
	list   []models.Country
	byCode map[string]models.Country
	def    models.Country
}

// Load parses a directory document.
func Load(raw []byte) (*Directory, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse countries: %w", err)
	}
	if len(doc.Countries) == 0 {
		return nil, fmt.Errorf("parse countries: empty directory")
	}

	d := &Directory{byCode: make(map[string]models.Country, len(doc.Countries))}
	for _, c := range doc.Countries {
		c.Code = strings.ToUpper(c.Code)
		c.Currency = strings.ToUpper(c.Currency)
		d.byCode[c.Code] = c
		d.list = append(d.list, c)
	}
	sort.Slice(d.list, func(i, j int) bool { return d.list[i].Name < d.list[j].Name })

	def, ok := d.byCode[strings.ToUpper(doc.Default)]
	if !ok {
		def = doc.Countries[0]
	}
	d.def = def
	return d, nil
}

// Default returns the embedded directory.
func Default() *Directory {
	d, err := Load(countriesYAML)
	if err != nil {
		panic(err)
	}
	return d
}

// List returns the countries ordered by name.
func (d *Directory) List() []models.Country {
	return append([]models.Country(nil), d.list...)
}

func (d *Directory) Lookup(code string) (models.Country, bool) {
	c, ok := d.byCode[strings.ToUpper(strings.TrimSpace(code))]
	return c, ok
}

func (d *Directory) Default() models.Country {
	return d.def
}

// Resolve picks the visitor's country: explicit ?country= first, then the
// stored preference, then the Accept-Language region, then the default.
func (d *Directory) Resolve(r *http.Request, preference string) models.Country {
	if c, ok := d.Lookup(r.URL.Query().Get("country")); ok {
		return c
	}
	if c, ok := d.Lookup(preference); ok {
		return c
	}
	for _, region := range acceptRegions(r.Header.Get("Accept-Language")) {
		if c, ok := d.Lookup(region); ok {
			return c
		}
	}
	return d.def
}

// acceptRegions returns region subtags in header order, e.g.
// "de-DE,de;q=0.9,en-GB;q=0.8" -> [DE GB].
func acceptRegions(header string) []string {
	var out []string
	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		pieces := strings.Split(tag, "-")
		if len(pieces) < 2 {
			continue
		}
		if region := pieces[len(pieces)-1]; len(region) == 2 {
			out = append(out, strings.ToUpper(region))
		}
	}
	return out
}
