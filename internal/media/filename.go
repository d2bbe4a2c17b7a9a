package media

import (
	"path"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// maxFallbackLen caps the ASCII fallback filename length.
const maxFallbackLen = 180

// NormalizeFilename repairs filenames that were mis-decoded in transit: a
// UTF-8 name read byte-by-byte as single-byte text arrives with every byte
// widened to its own code point. When every code point fits in one byte, the
// byte sequence is reinterpreted as UTF-8; the reinterpretation is kept only
// if it decodes cleanly. Pure ASCII names pass through untouched (the
// reinterpretation is a no-op), and names already decoded as multi-byte text
// are never altered.
func NormalizeFilename(raw string) string {
	buf := make([]byte, 0, len(raw))
	for _, r := range raw {
		if r > 0xFF {
			return raw
		}
		buf = append(buf, byte(r))
	}

	decoded := string(buf)
	// ContainsRune with RuneError also matches invalid byte sequences.
	if strings.ContainsRune(decoded, utf8.RuneError) {
		return raw
	}
	return decoded
}

// ASCIIFallback derives a header-safe ASCII filename from a display name:
// the extension is stripped, the rest is compatibility-decomposed and reduced
// to [A-Za-z0-9._-], and the inferred extension is re-appended. Names with no
// salvageable alphanumeric content become "file".
func ASCIIFallback(displayName, ext string) string {
	base := strings.TrimSuffix(displayName, path.Ext(displayName))

	var b strings.Builder
	for _, r := range norm.NFKD.String(base) {
		if isFallbackSafe(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}

	name := strings.Trim(b.String(), "_")
	if !containsAlphanumeric(name) {
		name = "file"
	}
	if ext != "" {
		name += "." + ext
	}
	if len(name) > maxFallbackLen {
		name = name[:maxFallbackLen]
	}
	return name
}

// ContentDisposition builds an attachment disposition carrying both the ASCII
// fallback and the RFC 5987 extended form, so compliant clients display the
// true filename while every client stays safe from header injection.
func ContentDisposition(displayName, fallbackName string) string {
	return `attachment; filename="` + fallbackName + `"; filename*=UTF-8''` + rfc5987Encode(displayName)
}

// rfc5987Encode percent-encodes a UTF-8 string for use as an ext-value. The
// kept set is deliberately narrower than generic URI encoding: sub-delims
// valid in a URI component but disallowed in the header parameter charset
// (! ' ( ) *) are encoded too.
func rfc5987Encode(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == '-' || c == '_' || c == '.' || c == '~':
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0F])
		}
	}
	return b.String()
}

func isFallbackSafe(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') ||
		(r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-'
}

func containsAlphanumeric(s string) bool {
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return true
		}
	}
	return false
}
