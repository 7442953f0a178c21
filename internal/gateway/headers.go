package gateway

import (
	"net/http"
	"strings"
)

// Field is one response header line. Name is written exactly as given.
type Field struct {
	Name  string
	Value string
}

// Headers is an ordered header list. Lookups ignore case; names keep their
// original spelling on the wire and repeated names keep every value.
type Headers []Field

// H builds Headers from alternating name, value pairs. A trailing name
// without a value is ignored.
func H(pairs ...string) Headers {
	h := make(Headers, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		h = append(h, Field{Name: pairs[i], Value: pairs[i+1]})
	}
	return h
}

// Get returns the first value for name, or "".
func (h Headers) Get(name string) string {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// Values returns every value for name in order.
func (h Headers) Values(name string) []string {
	var out []string
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			out = append(out, f.Value)
		}
	}
	return out
}

func (h Headers) Has(name string) bool {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}

func (h *Headers) Add(name, value string) {
	*h = append(*h, Field{Name: name, Value: value})
}

// Set replaces every value for name with a single field.
func (h *Headers) Set(name, value string) {
	h.Del(name)
	h.Add(name, value)
}

func (h *Headers) Del(name string) {
	out := (*h)[:0]
	for _, f := range *h {
		if !strings.EqualFold(f.Name, name) {
			out = append(out, f)
		}
	}
	*h = out
}

// transportHeaders are read by net/http under their canonical key only.
var transportHeaders = map[string]bool{
	"Content-Length":    true,
	"Content-Type":      true,
	"Transfer-Encoding": true,
	"Trailer":           true,
	"Connection":        true,
	"Date":              true,
}

// WriteTo copies the fields into dst. Names are kept as spelled unless dst
// already holds the same name in another case, in which case the value joins
// that key. Headers net/http interprets are always written canonically.
func (h Headers) WriteTo(dst http.Header) {
	for _, f := range h {
		key := headerKey(dst, f.Name)
		dst[key] = append(dst[key], f.Value)
	}
}

func headerKey(dst http.Header, name string) string {
	if canonical := http.CanonicalHeaderKey(name); transportHeaders[canonical] {
		return canonical
	}
	if _, ok := dst[name]; ok {
		return name
	}
	for k := range dst {
		if strings.EqualFold(k, name) {
			return k
		}
	}
	return name
}
