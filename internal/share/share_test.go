package share

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkDefaults(t *testing.T) {
	p, err := Link("", "", "https://example.org/viewer?renderer=leaflet")
	require.NoError(t, err)

	assert.Equal(t, DefaultTitle, p.Title)
	assert.Equal(t, DefaultText, p.Text)
	require.True(t, strings.HasPrefix(p.Fallback, WhatsAppBase))

	decoded, err := url.QueryUnescape(strings.TrimPrefix(p.Fallback, WhatsAppBase))
	require.NoError(t, err)
	assert.Equal(t, DefaultText+": https://example.org/viewer?renderer=leaflet", decoded)
	assert.NotContains(t, strings.TrimPrefix(p.Fallback, WhatsAppBase), " ")
}

func TestLinkCustomText(t *testing.T) {
	p, err := Link("Riesgo", "Mira esto & comparte", "http://localhost:8086/")
	require.NoError(t, err)
	assert.Equal(t, "Riesgo", p.Title)
	assert.Contains(t, p.Fallback, "%26")
}

func TestLinkEncodesSpacesAsPercent20(t *testing.T) {
	p, err := Link("", "Hola mundo", "https://a.es/")
	require.NoError(t, err)
	assert.Equal(t, "https://wa.me/?text=Hola%20mundo%3A%20https%3A%2F%2Fa.es%2F", p.Fallback)

	p, err = Link("", "uno + dos", "https://a.es/")
	require.NoError(t, err)
	assert.Contains(t, p.Fallback, "uno%20%2B%20dos")
	assert.NotContains(t, strings.TrimPrefix(p.Fallback, WhatsAppBase), "+")
}

func TestLinkRejectsBadURL(t *testing.T) {
	_, err := Link("", "", "")
	assert.Error(t, err)
	_, err = Link("", "", "/relative/path")
	assert.Error(t, err)
}
