package language

import "testing"

func TestToISO2(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"en", "en"},
		{"eng", "en"},
		{"English", "en"},
		{" french ", "fr"},
		{"fre", "fr"},
		{"fra", "fr"},
		{"ger", "de"},
		{"pt-BR", "pt"},
		{"zz", "zz"},
		{"klingonese", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ToISO2(tt.in); got != tt.want {
				t.Fatalf("ToISO2(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestToISO3(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"en", "eng"},
		{"Spanish", "spa"},
		{"deu", "deu"},
		{"qqq", "qqq"},
		{"", "und"},
		{"q", "und"},
	}
	for _, tt := range tests {
		if got := ToISO3(tt.in); got != tt.want {
			t.Fatalf("ToISO3(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"en", "English"},
		{"jpn", "Japanese"},
		{"german", "German"},
		{"", "Unknown"},
		{"zz", "ZZ"},
	}
	for _, tt := range tests {
		if got := DisplayName(tt.in); got != tt.want {
			t.Fatalf("DisplayName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSameAndAuto(t *testing.T) {
	if !Same("eng", "English") || !Same("fre", "fr") {
		t.Fatal("expected equivalent languages to match")
	}
	if Same("en", "de") || Same("", "") {
		t.Fatal("unexpected match")
	}
	for _, v := range []string{"", "auto", "Automatic Detection"} {
		if !IsAuto(v) {
			t.Fatalf("IsAuto(%q) = false", v)
		}
	}
	if IsAuto("en") {
		t.Fatal("IsAuto(en) = true")
	}
}

func TestExtractFromTags(t *testing.T) {
	if got := ExtractFromTags(map[string]string{"LANGUAGE": " ENG\u0000"}); got != "eng" {
		t.Fatalf("ExtractFromTags = %q", got)
	}
	if got := ExtractFromTags(nil); got != "" {
		t.Fatalf("ExtractFromTags(nil) = %q", got)
	}
}
