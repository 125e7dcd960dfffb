package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	for _, u := range []string{"http://example.com", "https://example.com/path"} {
		assert.NoError(t, ValidateURL(u), u)
	}
	for _, u := range []string{"ftp://example.com", "//example.com", "http:///"} {
		assert.Error(t, ValidateURL(u), u)
	}
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://example.com/a", NormalizeURL("  example.com/a "))
	assert.Equal(t, "http://example.com", NormalizeURL("http://example.com"))
	assert.Equal(t, "//cdn.example.com", NormalizeURL("//cdn.example.com"))
	assert.Equal(t, "", NormalizeURL(" "))
}

func TestDomain(t *testing.T) {
	assert.Equal(t, "example.com:8080", Domain("http://example.com:8080/x"))
	assert.Equal(t, "", Domain("::bad"))
}

func TestResolveURL(t *testing.T) {
	assert.Equal(t, "https://example.com/css/a.css", ResolveURL("https://example.com/page/", "../css/a.css"))
	assert.Equal(t, "https://cdn.example.com/x", ResolveURL("https://example.com", "https://cdn.example.com/x"))
}
