package auth

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const httpOnlyPrefix = "#HttpOnly_"

// ParseJSONCookies reads a JSON array of cookies, the shape browser
// extensions and DevTools exports produce.
func ParseJSONCookies(r io.Reader) ([]Cookie, error) {
	var cookies []Cookie
	if err := json.NewDecoder(r).Decode(&cookies); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return cookies, nil
}

// ParseNetscapeCookies reads a Netscape/curl cookie jar. Lines with fewer
// than seven tab or space separated fields are skipped.
func ParseNetscapeCookies(r io.Reader) ([]Cookie, error) {
	var cookies []Cookie
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		httpOnly := false
		if strings.HasPrefix(line, httpOnlyPrefix) {
			line = strings.TrimPrefix(line, httpOnlyPrefix)
			httpOnly = true
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 7 {
			continue
		}

		cookie := Cookie{
			Domain:   fields[0],
			Path:     fields[2],
			Secure:   strings.EqualFold(fields[3], "TRUE"),
			Name:     fields[5],
			Value:    strings.Join(fields[6:], " "),
			HTTPOnly: httpOnly,
		}
		if exp, err := strconv.ParseInt(fields[4], 10, 64); err == nil && exp > 0 {
			cookie.Expires = float64(exp)
		}
		cookies = append(cookies, cookie)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cookies, nil
}

// NewSession builds a session from imported cookies. It expires with the
// earliest-expiring cookie, if any cookie carries an expiry.
func NewSession(name, url string, cookies []Cookie) *SessionData {
	session := &SessionData{
		Name:      name,
		URL:       url,
		Cookies:   cookies,
		Headers:   make(map[string]string),
		CreatedAt: time.Now(),
	}
	for _, c := range cookies {
		if c.Expires <= 0 {
			continue
		}
		expiry := time.Unix(int64(c.Expires), 0)
		if session.ExpiresAt.IsZero() || expiry.Before(session.ExpiresAt) {
			session.ExpiresAt = expiry
		}
	}
	return session
}
