package formatter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Format types
const (
	FormatPlain = "plain"
	FormatColor = "color"
	FormatJSON  = "json"
)

// IsValidFormat checks if the provided format is supported
func IsValidFormat(format string) bool {
	switch format {
	case FormatPlain, FormatColor, FormatJSON:
		return true
	default:
		return false
	}
}

// SubdomainData is the JSON shape of one echoed line
type SubdomainData struct {
	Subdomain string `json:"subdomain"`
	Labels    int    `json:"labels"`
}

// Formatter renders subdomains for the console. File output never goes
// through it.
type Formatter struct {
	format string
	sub    *color.Color
	domain *color.Color
}

// New returns a Formatter for format, falling back to plain for unknown
// values.
func New(format string) *Formatter {
	if !IsValidFormat(format) {
		format = FormatPlain
	}
	return &Formatter{
		format: format,
		sub:    color.New(color.FgHiBlue),
		domain: color.New(color.FgWhite),
	}
}

// Format returns the configured format name
func (f *Formatter) Format() string {
	return f.format
}

// Line renders a single subdomain without a trailing newline
func (f *Formatter) Line(subdomain string) string {
	switch f.format {
	case FormatColor:
		return f.colorize(subdomain)
	case FormatJSON:
		return formatJSON(subdomain)
	default:
		return subdomain
	}
}

// colorize highlights everything left of the last two labels
func (f *Formatter) colorize(subdomain string) string {
	parts := strings.Split(subdomain, ".")
	if len(parts) < 3 {
		return f.sub.Sprint(subdomain)
	}
	cut := len(parts) - 2
	return fmt.Sprintf("%s.%s",
		f.sub.Sprint(strings.Join(parts[:cut], ".")),
		f.domain.Sprint(strings.Join(parts[cut:], ".")))
}

func formatJSON(subdomain string) string {
	data := SubdomainData{
		Subdomain: subdomain,
		Labels:    strings.Count(subdomain, ".") + 1,
	}
	b, err := json.Marshal(data)
	if err != nil {
		// a struct of a string and an int always marshals
		return subdomain
	}
	return string(b)
}
