package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed marks a payload that is not well-formed for its media type.
	ErrMalformed = errors.New("malformed payload")
	// ErrUnsupported marks a value the codec cannot encode.
	ErrUnsupported = errors.New("unsupported value")
)

// Codec converts between bytes and Values for one media type.
type Codec interface {
	Decode(body []byte) (Value, error)
	Encode(v Value) ([]byte, error)
	MediaType() MediaType
}

type jsonCodec struct{}

func (jsonCodec) Decode(body []byte) (Value, error) { return decodeJSON(body) }
func (jsonCodec) Encode(v Value) ([]byte, error)    { return encodeJSON(v) }
func (jsonCodec) MediaType() MediaType              { return JSON }

type xmlCodec struct{}

func (xmlCodec) Decode(body []byte) (Value, error) { return decodeXML(body) }
func (xmlCodec) Encode(v Value) ([]byte, error)    { return encodeXML(v) }
func (xmlCodec) MediaType() MediaType              { return XML }

// For returns the codec for m. Unknown media types get the JSON codec.
func For(m MediaType) Codec {
	if m == XML {
		return xmlCodec{}
	}
	return jsonCodec{}
}

// Decode parses body according to m.
func Decode(body []byte, m MediaType) (Value, error) {
	return For(m).Decode(body)
}

// Encode serializes v according to m.
func Encode(v Value, m MediaType) ([]byte, error) {
	return For(m).Encode(v)
}

// DecodeObject decodes body and requires the top-level value to be a mapping.
func DecodeObject(body []byte, m MediaType) (*Object, error) {
	v, err := Decode(body, m)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*Object)
	if !ok {
		return nil, fmt.Errorf("%w: expected an object, got %s", ErrMalformed, kind(v))
	}
	return obj, nil
}

func kind(v Value) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case Number:
		return "number"
	case []Value:
		return "sequence"
	case *Object:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
