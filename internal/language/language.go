package language

import (
	"strings"

	"golang.org/x/text/cases"
	xlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// recognitionLanguages lists the ISO 639-1 codes the recognition engines can
// be asked for. Names for these codes are accepted anywhere a language is
// configured ("French", "french", "fr", "fra" and "fre" all resolve to fr).
var recognitionLanguages = []string{
	"af", "ar", "hy", "az", "be", "bs", "bg", "ca", "zh", "hr", "cs", "da", "nl",
	"en", "et", "fi", "fr", "gl", "de", "el", "he", "hi", "hu", "is", "id", "it",
	"ja", "kn", "kk", "ko", "lv", "lt", "mk", "ms", "mr", "mi", "ne", "no", "fa",
	"pl", "pt", "ro", "ru", "sr", "sk", "sl", "es", "sw", "sv", "tl", "ta", "th",
	"tr", "uk", "ur", "vi", "cy",
}

// bibliographic ISO 639-2/B codes that differ from the terminology codes x/text knows.
var bibliographic = map[string]string{
	"alb": "sq", "arm": "hy", "baq": "eu", "bur": "my", "chi": "zh", "cze": "cs",
	"dut": "nl", "fre": "fr", "geo": "ka", "ger": "de", "gre": "el", "ice": "is",
	"mac": "mk", "mao": "mi", "may": "ms", "per": "fa", "rum": "ro", "slo": "sk",
	"tib": "bo", "wel": "cy",
}

var (
	byName map[string]xlang.Base
	namer  = display.English.Languages()
)

// fold case-folds s. A Caser is stateful, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

func init() {
	byName = make(map[string]xlang.Base, len(recognitionLanguages))
	for _, code := range recognitionLanguages {
		tag := xlang.Make(code)
		base, _ := tag.Base()
		if name := namer.Name(tag); name != "" {
			byName[fold(name)] = base
		}
	}
}

func lookup(code string) (xlang.Base, bool) {
	code = strings.TrimSpace(strings.ReplaceAll(code, "\u0000", ""))
	if code == "" {
		return xlang.Base{}, false
	}
	folded := fold(code)
	if base, ok := byName[folded]; ok {
		return base, true
	}
	if mapped, ok := bibliographic[folded]; ok {
		folded = mapped
	}
	if len(folded) > 3 && !strings.ContainsAny(folded, "-_") {
		return xlang.Base{}, false
	}
	tag, err := xlang.Parse(folded)
	if err != nil {
		return xlang.Base{}, false
	}
	base, conf := tag.Base()
	if conf == xlang.No || base.String() == "und" {
		return xlang.Base{}, false
	}
	return base, true
}

// IsAuto reports whether value requests automatic language detection.
func IsAuto(value string) bool {
	switch fold(strings.TrimSpace(value)) {
	case "", "auto", "automatic", "automatic detection", "detect":
		return true
	}
	return false
}

// ToISO2 converts any recognized language code or English name to ISO 639-1.
// Returns empty string for unrecognized input. A 2-letter input x/text does
// not know passes through lowercased.
func ToISO2(code string) string {
	if base, ok := lookup(code); ok {
		if s := base.String(); len(s) == 2 {
			return s
		}
	}
	trimmed := strings.ToLower(strings.TrimSpace(code))
	if len(trimmed) == 2 {
		return trimmed
	}
	return ""
}

// ToISO3 converts any recognized language code or name to ISO 639-2.
// Returns "und" when the input is empty or unknown; 3-letter input passes
// through.
func ToISO3(code string) string {
	if base, ok := lookup(code); ok {
		return base.ISO3()
	}
	trimmed := strings.ToLower(strings.TrimSpace(code))
	if len(trimmed) == 3 {
		return trimmed
	}
	return "und"
}

// DisplayName returns the English name for a language code or name.
// Returns "Unknown" for empty input and the uppercased input otherwise.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	if base, ok := lookup(code); ok {
		if name := namer.Name(base); name != "" {
			return name
		}
	}
	return strings.ToUpper(strings.TrimSpace(code))
}

// Same reports whether a and b name the same language.
func Same(a, b string) bool {
	ba, okA := lookup(a)
	bb, okB := lookup(b)
	return okA && okB && ba == bb
}

// ExtractFromTags extracts and normalizes the language from stream metadata tags.
func ExtractFromTags(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	for _, key := range []string{"language", "LANGUAGE", "Language", "language_ietf", "lang", "LANG"} {
		if value, ok := tags[key]; ok {
			value = strings.TrimSpace(strings.ReplaceAll(value, "\u0000", ""))
			if value != "" {
				return strings.ToLower(value)
			}
		}
	}
	return ""
}
