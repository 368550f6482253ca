package formatter

import (
	"encoding/json"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidFormat(t *testing.T) {
	for _, f := range []string{FormatPlain, FormatColor, FormatJSON} {
		assert.True(t, IsValidFormat(f), f)
	}
	assert.False(t, IsValidFormat("csv"))
	assert.False(t, IsValidFormat(""))
}

func TestNewFallsBackToPlain(t *testing.T) {
	f := New("html")
	assert.Equal(t, FormatPlain, f.Format())
	assert.Equal(t, "a.example.com", f.Line("a.example.com"))
}

func TestLineJSON(t *testing.T) {
	line := New(FormatJSON).Line("a.b.example.com")

	var data SubdomainData
	require.NoError(t, json.Unmarshal([]byte(line), &data))
	assert.Equal(t, SubdomainData{Subdomain: "a.b.example.com", Labels: 4}, data)
}

func TestLineColor(t *testing.T) {
	prev := color.NoColor
	t.Cleanup(func() { color.NoColor = prev })

	color.NoColor = true
	f := New(FormatColor)
	assert.Equal(t, "api.dev.example.com", f.Line("api.dev.example.com"))
	assert.Equal(t, "localhost", f.Line("localhost"))

	color.NoColor = false
	colored := f.Line("api.example.com")
	assert.Contains(t, colored, "api")
	assert.Contains(t, colored, "example.com")
	assert.NotEqual(t, "api.example.com", colored)
}
