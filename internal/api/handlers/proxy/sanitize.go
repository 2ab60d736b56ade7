package proxy

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var errInvalidJSON = errors.New("invalid JSON body")

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
	`\`, "&#x5C;",
	"`", "&#96;",
)

// SanitizeString HTML-escapes the characters that can open markup or script.
func SanitizeString(s string) string {
	return htmlEscaper.Replace(s)
}

// SanitizeJSON escapes every string value of a JSON document, at any depth.
// Keys, numbers, booleans and nulls are left alone.
func SanitizeJSON(body []byte) ([]byte, error) {
	if !gjson.ValidBytes(body) {
		return nil, errInvalidJSON
	}
	root := gjson.ParseBytes(body)
	if root.Type == gjson.String {
		return json.Marshal(SanitizeString(root.String()))
	}
	if root.IsObject() && hasEmptyKey(root) {
		// sjson has no path for an empty key at the root.
		return sanitizeMembers(root)
	}

	out := append([]byte(nil), body...)
	var err error
	walkStrings(root, "", func(path, value string) bool {
		clean := SanitizeString(value)
		if clean == value {
			return true
		}
		out, err = sjson.SetBytes(out, path, clean)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func hasEmptyKey(obj gjson.Result) bool {
	found := false
	obj.ForEach(func(key, _ gjson.Result) bool {
		found = key.String() == ""
		return !found
	})
	return found
}

// sanitizeMembers rebuilds obj from its raw keys and the sanitised raw values.
func sanitizeMembers(obj gjson.Result) ([]byte, error) {
	out := []byte{'{'}
	var err error
	first := true
	obj.ForEach(func(key, value gjson.Result) bool {
		var clean []byte
		if clean, err = SanitizeJSON([]byte(value.Raw)); err != nil {
			return false
		}
		if !first {
			out = append(out, ',')
		}
		first = false
		out = append(out, key.Raw...)
		out = append(out, ':')
		out = append(out, clean...)
		return true
	})
	if err != nil {
		return nil, err
	}
	return append(out, '}'), nil
}

// walkStrings calls fn with the sjson path of each string value under v. It stops
// when fn returns false.
func walkStrings(v gjson.Result, prefix string, fn func(path, value string) bool) bool {
	keepGoing := true
	switch {
	case v.IsArray():
		i := 0
		v.ForEach(func(_, elem gjson.Result) bool {
			keepGoing = visit(elem, joinPath(prefix, strconv.Itoa(i)), fn)
			i++
			return keepGoing
		})
	case v.IsObject():
		v.ForEach(func(key, elem gjson.Result) bool {
			keepGoing = visit(elem, joinPath(prefix, escapePathKey(key.String())), fn)
			return keepGoing
		})
	}
	return keepGoing
}

func visit(v gjson.Result, path string, fn func(path, value string) bool) bool {
	if v.Type == gjson.String {
		return fn(path, v.String())
	}
	return walkStrings(v, path, fn)
}

func joinPath(prefix, part string) string {
	if prefix == "" {
		return part
	}
	return prefix + "." + part
}

// escapePathKey backslash-escapes every byte of an object key that the gjson
// path syntax could interpret.
func escapePathKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c >= 0x80 || c == '_' || c == '-' ||
			(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('\\')
		b.WriteByte(c)
	}
	return b.String()
}
