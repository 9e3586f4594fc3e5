package middleware

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	// csrfCookieName holds the double-submit token. The cookie is NOT
	// HttpOnly: client script must be able to read it back and echo it in a
	// header or form field.
	csrfCookieName = "csrf_token"

	csrfHeaderName = "X-CSRF-Token"
	csrfFormField  = "_csrf"

	// csrfTokenLength is the hex encoding of 32 random bytes.
	csrfTokenLength = 64

	// maxCookieTokens caps how many distinct cookie tokens are collected per
	// request. Repeated Cookie headers from concurrent tabs can legitimately
	// carry several; beyond the cap they are ignored, not an error.
	maxCookieTokens = 32

	// maxBodyScan bounds the raw body scan for a submitted token.
	maxBodyScan = 64 * 1024

	// csrfCookieMaxAge is 7 days, independent of the credential expiry.
	csrfCookieMaxAge = 604800
)

// CSRFConfig configures the CSRF middleware.
type CSRFConfig struct {
	// CookieSecure sets the Secure flag on the issued cookie. Tied to the
	// production environment switch.
	CookieSecure bool
}

// NewCSRFMiddleware returns the double-submit-cookie CSRF middleware.
//
// Safe (GET-like) requests skip validation; if no valid token cookie exists
// one is minted and set on the response. State-changing requests must echo
// one of the cookie tokens through a form field, the raw body, or the
// X-CSRF-Token header. The match is a membership test against every token
// found across repeated Cookie headers, so multiple live browser sessions
// do not invalidate each other.
func NewCSRFMiddleware(config CSRFConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := zerolog.Ctx(c.Request.Context())

		if isSafeMethod(c.Request.Method) {
			ensureCSRFCookie(c, config, logger)
			c.Next()
			return
		}

		cookieTokens := collectCookieTokens(c.Request)
		if len(cookieTokens) == 0 {
			logger.Warn().
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Msg("CSRF token missing")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "CSRF token missing"})
			return
		}

		submitted := normalizeToken(extractSubmittedToken(c.Request))
		if submitted != "" {
			for _, token := range cookieTokens {
				if submitted == token {
					c.Next()
					return
				}
			}
		}

		logger.Warn().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("submitted", tokenPreview(submitted)).
			Strs("cookies", tokenPreviews(cookieTokens)).
			Msg("CSRF token mismatch")
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "CSRF token mismatch"})
	}
}

// isSafeMethod reports whether the method is read-only and exempt from
// validation.
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// ensureCSRFCookie mints a token when the request carries no valid one.
// An existing cookie with an invalid format is treated like an absent one
// and rotated. The fresh token is also added to the in-flight request's own
// cookie jar so same-request reads see it before the response goes out.
func ensureCSRFCookie(c *gin.Context, config CSRFConfig, logger *zerolog.Logger) {
	if cookie, err := c.Request.Cookie(csrfCookieName); err == nil {
		if isValidTokenFormat(normalizeToken(cookie.Value)) {
			return
		}
	}

	token, err := generateCSRFToken()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to generate CSRF token")
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   csrfCookieMaxAge,
		HttpOnly: false,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	c.Request.AddCookie(&http.Cookie{Name: csrfCookieName, Value: token})
}

// generateCSRFToken returns 32 cryptographically random bytes hex-encoded,
// always 64 lowercase hex characters.
func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// isValidTokenFormat reports whether s is exactly 64 lowercase hex digits.
func isValidTokenFormat(s string) bool {
	if len(s) != csrfTokenLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') {
			return false
		}
	}
	return true
}

// collectCookieTokens gathers every csrf_token value on the request: the
// parsed cookie jar entry first, then a raw scan of each repeated Cookie
// header. Values are percent-decoded, normalized and deduplicated, capped
// at maxCookieTokens.
func collectCookieTokens(r *http.Request) []string {
	var tokens []string
	seen := make(map[string]bool)

	add := func(value string) {
		value = normalizeToken(value)
		if value == "" || seen[value] || len(tokens) >= maxCookieTokens {
			return
		}
		seen[value] = true
		tokens = append(tokens, value)
	}

	if cookie, err := r.Cookie(csrfCookieName); err == nil {
		add(cookie.Value)
	}

	for _, header := range r.Header.Values("Cookie") {
		for _, pair := range strings.Split(header, ";") {
			pair = strings.TrimSpace(pair)
			eq := strings.IndexByte(pair, '=')
			if eq < 0 || strings.TrimSpace(pair[:eq]) != csrfCookieName {
				continue
			}
			value := pair[eq+1:]
			if decoded, err := url.QueryUnescape(value); err == nil {
				value = decoded
			}
			add(value)
		}
	}

	return tokens
}

// extractSubmittedToken finds the token the client echoed back, in priority
// order: an already-parsed form field, a bounded raw scan of the body, then
// the X-CSRF-Token header.
func extractSubmittedToken(r *http.Request) string {
	// (a) form field, only when the body was already parsed upstream. The
	// middleware itself never triggers parsing: that would consume the body
	// before the resource handler sees it.
	if r.PostForm != nil {
		if value := r.PostForm.Get(csrfFormField); value != "" {
			return value
		}
	}

	// (b) raw body scan, capped at maxBodyScan. The consumed prefix is
	// stitched back so the handler still reads the full body.
	if token := scanBodyForToken(r); token != "" {
		return token
	}

	// (c) header
	return r.Header.Get(csrfHeaderName)
}

// scanBodyForToken reads up to maxBodyScan bytes of the body, restores the
// body reader, and scans the prefix for a _csrf field in either url-encoded
// or multipart form shape.
func scanBodyForToken(r *http.Request) string {
	if r.Body == nil {
		return ""
	}

	buf, err := io.ReadAll(io.LimitReader(r.Body, maxBodyScan))
	if err != nil {
		return ""
	}
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(buf), r.Body), r.Body}

	if len(buf) == 0 {
		return ""
	}

	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "multipart/") {
		if token := scanMultipartBody(buf); token != "" {
			return token
		}
		return scanURLEncodedBody(buf)
	}
	if token := scanURLEncodedBody(buf); token != "" {
		return token
	}
	return scanMultipartBody(buf)
}

// scanURLEncodedBody splits the body on '&' and '=' by hand and decodes
// %XX and '+' in the _csrf value.
func scanURLEncodedBody(buf []byte) string {
	for _, pair := range bytes.Split(buf, []byte{'&'}) {
		eq := bytes.IndexByte(pair, '=')
		if eq < 0 {
			continue
		}
		key, err := url.QueryUnescape(string(pair[:eq]))
		if err != nil || key != csrfFormField {
			continue
		}
		value, err := url.QueryUnescape(string(pair[eq+1:]))
		if err != nil {
			continue
		}
		return value
	}
	return ""
}

// scanMultipartBody looks for the literal `name="_csrf"` part marker, skips
// the blank-line separator (CRLF CRLF or bare LF LF) and reads the value up
// to the next line break.
func scanMultipartBody(buf []byte) string {
	marker := []byte(`name="` + csrfFormField + `"`)
	idx := bytes.Index(buf, marker)
	if idx < 0 {
		return ""
	}
	rest := buf[idx+len(marker):]

	sep := bytes.Index(rest, []byte("\r\n\r\n"))
	sepLen := 4
	if sep < 0 {
		sep = bytes.Index(rest, []byte("\n\n"))
		sepLen = 2
	}
	if sep < 0 {
		return ""
	}
	rest = rest[sep+sepLen:]

	end := bytes.IndexAny(rest, "\r\n")
	if end < 0 {
		end = len(rest)
	}
	return string(rest[:end])
}

// normalizeToken trims surrounding whitespace and strips one layer of
// surrounding double quotes.
func normalizeToken(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return s
}

// tokenPreview truncates a token to 8 characters for logs, so mismatches can
// be diagnosed without leaking full token values.
func tokenPreview(s string) string {
	if s == "" {
		return "<empty>"
	}
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

func tokenPreviews(tokens []string) []string {
	previews := make([]string, len(tokens))
	for i, t := range tokens {
		previews[i] = tokenPreview(t)
	}
	return previews
}
