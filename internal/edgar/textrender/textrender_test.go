package textrender

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender_PlainHTML(t *testing.T) {
	out := Render(`<html><body><p>Hello</p><p>World</p></body></html>`)
	assert.Contains(t, out, "Hello")
	assert.Contains(t, out, "World")
}

func TestRender_XBRL(t *testing.T) {
	out := Render(`<html><body><xbrl>
		<us-gaap:Description contextRef="c1">Revenue grew 12%.</us-gaap:Description>
		<ignored-tag>skip me</ignored-tag>
	</xbrl></body></html>`)
	assert.Contains(t, out, "Revenue grew 12%.")
}

func TestRender_Empty(t *testing.T) {
	assert.Equal(t, "", Render(""))
}
