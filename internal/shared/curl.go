// Utilities for lifting a session out of a browser "Copy as cURL" command.
package shared

import (
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"
)

var (
	curlHeaderRe = regexp.MustCompile(`(?:-H|--header)\s+(?:'([^']+)'|"([^"]+)")`)
	curlCookieRe = regexp.MustCompile(`(?:-b|--cookie)\s+(?:'([^']+)'|"([^"]+)")`)
)

// CurlHeaders represents parsed headers and cookies from a cURL command.
type CurlHeaders struct {
	Headers map[string]string
	Cookie  string
}

// ParseCurlFile reads a .sh file containing a cURL command and extracts headers.
func ParseCurlFile(path string) (*CurlHeaders, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}
	return ParseCurlCommand(content)
}

// ParseCurlCommand parses a cURL command string and extracts headers.
//
// The cookie comes from -b/--cookie, falling back to a "Cookie:" header.
func ParseCurlCommand(data []byte) (*CurlHeaders, error) {
	cmd := strings.ReplaceAll(string(data), "\\\n", " ")
	cmd = strings.ReplaceAll(cmd, "\\", "")

	headers := make(map[string]string)
	var headerCookie, cookie string

	for _, match := range curlHeaderRe.FindAllStringSubmatch(cmd, -1) {
		key, value, ok := strings.Cut(firstGroup(match), ":")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if strings.EqualFold(key, "cookie") {
			if headerCookie == "" {
				headerCookie = value
			}
			continue
		}
		headers[key] = value
	}

	if match := curlCookieRe.FindStringSubmatch(cmd); match != nil {
		cookie = firstGroup(match)
	}
	if cookie == "" {
		cookie = headerCookie
	}

	if len(headers) == 0 && cookie == "" {
		return nil, fmt.Errorf("%w: no headers found in curl command", ErrInvalidInput)
	}
	return &CurlHeaders{Headers: headers, Cookie: cookie}, nil
}

// CookieValue returns the value of the named cookie.
func (c *CurlHeaders) CookieValue(name string) (string, bool) {
	if c.Cookie == "" {
		return "", false
	}
	cookies, err := http.ParseCookie(c.Cookie)
	if err != nil {
		return "", false
	}
	for _, ck := range cookies {
		if ck.Name == name {
			return ck.Value, true
		}
	}
	return "", false
}

// SessionFromCurlFile extracts the named session cookie from a saved cURL command.
func SessionFromCurlFile(path, cookieName string) (string, error) {
	parsed, err := ParseCurlFile(path)
	if err != nil {
		return "", err
	}
	value, ok := parsed.CookieValue(cookieName)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: no %q cookie in %s", ErrInvalidInput, cookieName, path)
	}
	return value, nil
}

func firstGroup(match []string) string {
	if match[1] != "" {
		return match[1]
	}
	return match[2]
}
