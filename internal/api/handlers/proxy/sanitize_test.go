package proxy

import (
	"encoding/json"
	"testing"

	"github.com/tidwall/gjson"
)

func TestSanitizeString(t *testing.T) {
	got := SanitizeString(`<a href="/x">'&\` + "`")
	want := "&lt;a href=&quot;&#x2F;x&quot;&gt;&#x27;&amp;&#x5C;&#96;"
	if got != want {
		t.Fatalf("got  %q\nwant %q", got, want)
	}
}

func TestSanitizeJSON(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		path  string
		want  string
		same  bool
		isErr bool
	}{
		{name: "untouched", in: `{"a":"plain","b":[1,true,null]}`, same: true},
		{name: "root string", in: `"<x>"`, path: "@this", want: "&lt;x&gt;"},
		{name: "root array", in: `["<", {"k":">"}]`, path: "1.k", want: "&gt;"},
		{name: "deep nesting", in: `{"a":{"b":{"c":["ok","</script>"]}}}`, path: "a.b.c.1", want: "&lt;&#x2F;script&gt;"},
		{name: "key with wildcard", in: `{"what?*":"'"}`, path: `what\?\*`, want: "&#x27;"},
		{name: "key with spaces", in: `{"full name":"a&b"}`, path: `full\ name`, want: "a&amp;b"},
		{name: "unicode key", in: `{"tên":"<"}`, path: "tên", want: "&lt;"},
		{name: "invalid", in: `{"a":`, isErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := SanitizeJSON([]byte(tt.in))
			if tt.isErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("SanitizeJSON: %v", err)
			}
			if tt.same {
				if string(out) != tt.in {
					t.Fatalf("changed: %s", out)
				}
				return
			}
			if got := gjson.GetBytes(out, tt.path).String(); got != tt.want {
				t.Fatalf("%s = %q, want %q (out %s)", tt.path, got, tt.want, out)
			}
		})
	}
}

func TestSanitizeJSONEmptyKeys(t *testing.T) {
	in := `{"":"<b>","k":{"":"<w>"},"n":1,"list":["&"]}`
	out, err := SanitizeJSON([]byte(in))
	if err != nil {
		t.Fatalf("SanitizeJSON: %v", err)
	}
	var got map[string]any
	if err = json.Unmarshal(out, &got); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, out)
	}
	if got[""] != "&lt;b&gt;" {
		t.Fatalf(`root "" = %v`, got[""])
	}
	if nested, _ := got["k"].(map[string]any); nested[""] != "&lt;w&gt;" {
		t.Fatalf(`k."" = %v`, got["k"])
	}
	if got["n"] != float64(1) {
		t.Fatalf("n = %v", got["n"])
	}
	if list, _ := got["list"].([]any); len(list) != 1 || list[0] != "&amp;" {
		t.Fatalf("list = %v", got["list"])
	}
}

func TestEscapePathKey(t *testing.T) {
	tests := map[string]string{
		"plain_key-1": "plain_key-1",
		"a.b":         `a\.b`,
		"#":           `\#`,
		"x|y@z":       `x\|y\@z`,
	}
	for in, want := range tests {
		if got := escapePathKey(in); got != want {
			t.Errorf("escapePathKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDecodeBodyUnsupported(t *testing.T) {
	if _, err := decodeBody("compress", []byte("x")); err == nil {
		t.Fatal("expected error")
	}
	if out, err := decodeBody("identity", []byte("x")); err != nil || string(out) != "x" {
		t.Fatalf("identity: %q %v", out, err)
	}
}
