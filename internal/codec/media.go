package codec

import (
	"mime"
	"strings"
)

// MediaType identifies a wire format.
type MediaType int

const (
	// JSON is application/json and the fallback for anything unrecognized.
	JSON MediaType = iota
	// XML is text/xml carrying a typed object graph.
	XML
)

const (
	mimeJSON = "application/json"
	mimeXML  = "text/xml"
)

// ContentType returns the header value for responses in this format.
func (m MediaType) ContentType() string {
	if m == XML {
		return mimeXML
	}
	return mimeJSON
}

func (m MediaType) String() string {
	return m.ContentType()
}

// ParseMediaType maps a Content-Type header value onto a MediaType.
// Parameters are ignored; unknown or empty values fall back to JSON.
func ParseMediaType(header string) MediaType {
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		mt, _, _ = strings.Cut(header, ";")
	}
	switch strings.ToLower(strings.TrimSpace(mt)) {
	case mimeXML:
		return XML
	default:
		return JSON
	}
}

// Negotiate picks the response format from an Accept header. Only the first
// listed preference counts; q-values are not weighed.
func Negotiate(accept string) MediaType {
	first, _, _ := strings.Cut(accept, ",")
	return ParseMediaType(first)
}
