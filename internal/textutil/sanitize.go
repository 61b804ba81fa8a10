package textutil

import (
	"path/filepath"
	"strings"
	"unicode"
)

// maxBaseLength bounds output base names in bytes, leaving room for an
// extension under the common 255-byte filename limit.
const maxBaseLength = 200

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters and control characters are removed. The result is trimmed of
// leading/trailing whitespace and dots.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, fileNameReplacer.Replace(name))
	name = strings.Join(strings.Fields(name), " ")
	return strings.Trim(name, " .")
}

// OutputBase derives the base name (without extension) for a subtitle file.
// The title wins when present; otherwise the source path or URL's last
// element is used without its extension. Returns "subtitles" when nothing
// usable remains.
func OutputBase(title, source string) string {
	base := SanitizeFileName(title)
	if base == "" {
		src := strings.TrimRight(strings.TrimSpace(source), "/")
		if i := strings.IndexAny(src, "?#"); i >= 0 && strings.Contains(src, "://") {
			src = src[:i]
		}
		src = filepath.Base(src)
		src = strings.TrimSuffix(src, filepath.Ext(src))
		base = SanitizeFileName(src)
	}
	base = truncateBytes(base, maxBaseLength)
	if base == "" || base == "." {
		return "subtitles"
	}
	return base
}

func truncateBytes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := 0
	for i := range s {
		if i > limit {
			break
		}
		cut = i
	}
	return strings.TrimRight(s[:cut], " .")
}

// SanitizeToken converts a string to a lowercase filesystem-safe token.
// Letters are lowercased, digits and hyphens/underscores are kept, everything
// else becomes an underscore. Returns "unknown" for empty input.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-.")
	if out == "" {
		return "unknown"
	}
	return out
}
