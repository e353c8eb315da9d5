package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type line struct {
	ID     string `json:"id" validate:"required"`
	Qty    int    `json:"qty" validate:"omitempty,min=1,max=99"`
	Domain string `json:"domain,omitempty" validate:"omitempty,fqdn"`
}

type order struct {
	Lines   []line `json:"lines" validate:"required,min=1,dive"`
	Country string `json:"country" validate:"omitempty,iso3166_1_alpha2"`
}

func TestStructReportsJSONPaths(t *testing.T) {
	v := New()

	require.NoError(t, v.Struct(order{Lines: []line{{ID: "a", Qty: 2, Domain: "example.com"}}, Country: "DE"}))

	err := v.Struct(order{Lines: []line{{Qty: 120, Domain: "not a domain"}}, Country: "XX"})
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, FieldErrors{
		"lines[0].id":     "is required",
		"lines[0].qty":    "must be at most 99",
		"lines[0].domain": "must be a domain name",
		"country":         "must be a two letter country code",
	}, verr.Fields)
	assert.Contains(t, verr.Error(), "country: must be a two letter country code")

	err = v.Struct(order{})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "is required", verr.Fields["lines"])
}
