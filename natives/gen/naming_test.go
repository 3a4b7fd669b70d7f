package gen

import "testing"

func TestGoPackageToLumenNamespace(t *testing.T) {
	cases := map[string]string{
		"strings":      "go.strings",
		"encoding/json": "go.encoding.json",
		"net/http":     "go.net.http",
	}
	for in, want := range cases {
		if got := GoPackageToLumenNamespace(in); got != want {
			t.Errorf("GoPackageToLumenNamespace(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGoNameToLumenMethod(t *testing.T) {
	cases := map[string]string{
		"Marshal":   "marshal",
		"ToUpper":   "toUpper",
		"":          "",
		"ID":        "iD",
	}
	for in, want := range cases {
		if got := GoNameToLumenMethod(in); got != want {
			t.Errorf("GoNameToLumenMethod(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGoNameToLumenClassName(t *testing.T) {
	got := GoNameToLumenClassName("go.net.http", "Server")
	if got != "go.net.http.Server" {
		t.Errorf("got %q, want %q", got, "go.net.http.Server")
	}
}

func TestToPascal(t *testing.T) {
	cases := map[string]string{
		"go-cmp":     "GoCmp",
		"x_tools":    "XTools",
		"plain":      "Plain",
		"":           "",
	}
	for in, want := range cases {
		if got := toPascal(in); got != want {
			t.Errorf("toPascal(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeIdent(t *testing.T) {
	got := sanitizeIdent("go-cmp")
	if got != "go_cmp" {
		t.Errorf("sanitizeIdent(go-cmp) = %q, want %q", got, "go_cmp")
	}
}
