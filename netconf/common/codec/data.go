package codec

import (
	"strings"
)

// ExtractData returns the text between the first <data> start tag in raw and the matching
// </data> end tag, byte for byte, with namespaces and whitespace as sent by the server.
//
// The start tag may carry attributes and a namespace prefix; an element such as <datastore>
// is not a match. A self-closing <data/> yields "" and true. If no data element can be
// located, ExtractData returns "" and false.
func ExtractData(raw string) (string, bool) {
	open, prefix := findDataStart(raw)
	if open < 0 {
		return "", false
	}
	gt := strings.IndexByte(raw[open:], '>')
	if gt < 0 {
		return "", false
	}
	gt += open
	if raw[gt-1] == '/' {
		return "", true
	}

	end := strings.Index(raw[gt+1:], "</"+prefix+"data>")
	if end < 0 {
		return "", false
	}
	return raw[gt+1 : gt+1+end], true
}

// findDataStart returns the offset of the first start tag named data, and its prefix
// including the colon.
func findDataStart(raw string) (int, string) {
	for from := 0; from < len(raw); {
		i := strings.IndexByte(raw[from:], '<')
		if i < 0 {
			return -1, ""
		}
		i += from
		name := tagName(raw[i+1:])
		if name == "data" || strings.HasSuffix(name, ":data") {
			return i, strings.TrimSuffix(name, "data")
		}
		from = i + 1
	}
	return -1, ""
}

// tagName returns the element name at the start of s, or "" if s does not start with a
// name terminated by whitespace, '>' or '/'.
func tagName(s string) string {
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == ' ', c == '\t', c == '\n', c == '\r', c == '>', c == '/':
			return s[:i]
		case c == ':', c == '-', c == '_', c == '.',
			c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9' && i > 0:
		default:
			return ""
		}
	}
	return ""
}
