package countries

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDirectory(t *testing.T) {
	d := Default()

	assert.Equal(t, "US", d.Default().Code)
	list := d.List()
	require.NotEmpty(t, list)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].Name, list[i].Name)
	}

	de, ok := d.Lookup(" de ")
	require.True(t, ok)
	assert.Equal(t, "EUR", de.Currency)
	assert.Equal(t, "de-DE", de.Market)

	_, ok = d.Lookup("ZZ")
	assert.False(t, ok)
}

func TestResolveOrder(t *testing.T) {
	d := Default()

	tests := []struct {
		name       string
		url        string
		preference string
		language   string
		want       string
	}{
		{"query wins", "/api/products?country=gb", "DE", "fr-FR", "GB"},
		{"preference next", "/api/products", "DE", "fr-FR", "DE"},
		{"accept-language region", "/api/products", "", "en;q=1,fr-FR;q=0.9", "FR"},
		{"unknown everything", "/api/products?country=zz", "XX", "pt-BR", "US"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.url, nil)
			if tt.language != "" {
				r.Header.Set("Accept-Language", tt.language)
			}
			assert.Equal(t, tt.want, d.Resolve(r, tt.preference).Code)
		})
	}
}

func TestLoadRejectsEmpty(t *testing.T) {
	_, err := Load([]byte("countries: []"))
	assert.Error(t, err)
}
