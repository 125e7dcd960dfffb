package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jar = `# Netscape HTTP Cookie File
.example.com	TRUE	/	TRUE	4102444800	sid	abc
#HttpOnly_.example.com	TRUE	/app	FALSE	0	token	x y
broken line
`

func TestParseNetscapeCookies(t *testing.T) {
	cookies, err := ParseNetscapeCookies(strings.NewReader(jar))
	require.NoError(t, err)
	require.Len(t, cookies, 2)

	assert.Equal(t, Cookie{Domain: ".example.com", Path: "/", Secure: true, Name: "sid", Value: "abc", Expires: 4102444800}, cookies[0])
	assert.True(t, cookies[1].HTTPOnly)
	assert.Equal(t, "x y", cookies[1].Value)
	assert.Zero(t, cookies[1].Expires)
}

func TestParseJSONCookies(t *testing.T) {
	cookies, err := ParseJSONCookies(strings.NewReader(`[{"name":"a","value":"1","domain":"example.com","httpOnly":true}]`))
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HTTPOnly)

	_, err = ParseJSONCookies(strings.NewReader(`{`))
	assert.Error(t, err)
}

func TestNewSessionUsesEarliestExpiry(t *testing.T) {
	s := NewSession("n", "https://example.com", []Cookie{
		{Name: "a", Expires: 4102444800},
		{Name: "b", Expires: 4000000000},
		{Name: "c"},
	})
	assert.Equal(t, time.Unix(4000000000, 0), s.ExpiresAt)
	assert.False(t, s.Expired())

	assert.True(t, NewSession("n", "", []Cookie{{Name: "a"}}).ExpiresAt.IsZero())
}
