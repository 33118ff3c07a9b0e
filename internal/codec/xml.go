package codec

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Element names of the object-graph XML form:
//
//	<h> mapping, children alternate key and value
//	<a> sequence
//	<s> string   <i> integer   <f> decimal
//	<y/> true    <n/> false    <z/> nil
const (
	tagHash   = "h"
	tagArray  = "a"
	tagString = "s"
	tagSymbol = "m"
	tagInt    = "i"
	tagFloat  = "f"
	tagTrue   = "y"
	tagFalse  = "n"
	tagNil    = "z"
)

func encodeXML(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeXML(&buf, v, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeXML(buf *bytes.Buffer, v Value, depth int) error {
	nv, ok := normalize(v)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnsupported, v)
	}

	indent := strings.Repeat("  ", depth)
	buf.WriteString(indent)

	switch tv := nv.(type) {
	case nil:
		buf.WriteString("<z/>\n")
	case bool:
		if tv {
			buf.WriteString("<y/>\n")
		} else {
			buf.WriteString("<n/>\n")
		}
	case string:
		return writeXMLText(buf, tagString, tv)
	case Number:
		if tv.IsInteger() {
			return writeXMLText(buf, tagInt, string(tv))
		}
		if !tv.Valid() {
			return fmt.Errorf("%w: number literal %q", ErrUnsupported, string(tv))
		}
		return writeXMLText(buf, tagFloat, string(tv))
	case []Value:
		if len(tv) == 0 {
			buf.WriteString("<a/>\n")
			return nil
		}
		buf.WriteString("<a>\n")
		for _, item := range tv {
			if err := writeXML(buf, item, depth+1); err != nil {
				return err
			}
		}
		buf.WriteString(indent + "</a>\n")
	case *Object:
		if tv.Len() == 0 {
			buf.WriteString("<h/>\n")
			return nil
		}
		buf.WriteString("<h>\n")
		for _, k := range tv.Keys() {
			if err := writeXML(buf, k, depth+1); err != nil {
				return err
			}
			item, _ := tv.Get(k)
			if err := writeXML(buf, item, depth+1); err != nil {
				return err
			}
		}
		buf.WriteString(indent + "</h>\n")
	}
	return nil
}

// writeXMLText refuses text XML 1.0 cannot carry instead of letting
// EscapeText substitute U+FFFD for it.
func writeXMLText(buf *bytes.Buffer, tag, text string) error {
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if (r == utf8.RuneError && size == 1) || !xmlChar(r) {
			return fmt.Errorf("%w: character %U in <%s> text", ErrUnsupported, r, tag)
		}
		i += size
	}
	buf.WriteString("<" + tag + ">")
	if err := xml.EscapeText(buf, []byte(text)); err != nil {
		return err
	}
	buf.WriteString("</" + tag + ">\n")
	return nil
}

// xmlChar reports whether r is in the XML 1.0 Char production.
func xmlChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		(r >= 0x20 && r <= 0xD7FF) ||
		(r >= 0xE000 && r <= 0xFFFD) ||
		(r >= 0x10000 && r <= 0x10FFFF)
}

func decodeXML(body []byte) (Value, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))

	start, err := nextStart(dec)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: xml: empty document", ErrMalformed)
		}
		return nil, fmt.Errorf("%w: xml: %v", ErrMalformed, err)
	}
	if start == nil {
		return nil, fmt.Errorf("%w: xml: no root element", ErrMalformed)
	}

	v, err := readXML(dec, *start)
	if err != nil {
		return nil, fmt.Errorf("%w: xml: %v", ErrMalformed, err)
	}

	extra, err := nextStart(dec)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: xml: %v", ErrMalformed, err)
	}
	if extra != nil {
		return nil, fmt.Errorf("%w: xml: more than one root element", ErrMalformed)
	}
	return v, nil
}

// nextStart skips prolog, comments and whitespace up to the next start
// element. It returns nil when an end element is reached instead.
func nextStart(dec *xml.Decoder) (*xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return &t, nil
		case xml.EndElement:
			return nil, nil
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return nil, fmt.Errorf("unexpected text %q", string(bytes.TrimSpace(t)))
			}
		case xml.ProcInst, xml.Comment, xml.Directive:
		}
	}
}

func readXML(dec *xml.Decoder, start xml.StartElement) (Value, error) {
	switch start.Name.Local {
	case tagString, tagSymbol:
		return readXMLText(dec)
	case tagInt:
		text, err := readXMLText(dec)
		if err != nil {
			return nil, err
		}
		text = strings.TrimSpace(text)
		if _, err := strconv.ParseInt(text, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid integer %q", text)
		}
		return Number(text), nil
	case tagFloat:
		text, err := readXMLText(dec)
		if err != nil {
			return nil, err
		}
		n := Number(strings.TrimSpace(text))
		if !n.Valid() {
			return nil, fmt.Errorf("invalid decimal %q", string(n))
		}
		return n, nil
	case tagTrue, tagFalse, tagNil:
		if err := readEmpty(dec, start.Name.Local); err != nil {
			return nil, err
		}
		switch start.Name.Local {
		case tagTrue:
			return true, nil
		case tagFalse:
			return false, nil
		}
		return nil, nil
	case tagArray:
		children, err := readChildren(dec)
		if err != nil {
			return nil, err
		}
		return children, nil
	case tagHash:
		children, err := readChildren(dec)
		if err != nil {
			return nil, err
		}
		if len(children)%2 != 0 {
			return nil, errors.New("mapping has a key without a value")
		}
		obj := NewObject()
		for i := 0; i < len(children); i += 2 {
			key, ok := children[i].(string)
			if !ok {
				return nil, fmt.Errorf("mapping key is %s, not a string", kind(children[i]))
			}
			obj.Set(key, children[i+1])
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unknown element <%s>", start.Name.Local)
	}
}

func readChildren(dec *xml.Decoder) ([]Value, error) {
	children := []Value{}
	for {
		child, err := nextStart(dec)
		if err != nil {
			return nil, err
		}
		if child == nil {
			return children, nil
		}
		v, err := readXML(dec, *child)
		if err != nil {
			return nil, err
		}
		children = append(children, v)
	}
}

func readXMLText(dec *xml.Decoder) (string, error) {
	var sb strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.EndElement:
			return sb.String(), nil
		case xml.StartElement:
			return "", fmt.Errorf("unexpected element <%s> inside text", t.Name.Local)
		}
	}
}

func readEmpty(dec *xml.Decoder, name string) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.EndElement:
			return nil
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return fmt.Errorf("<%s> must be empty", name)
			}
		case xml.StartElement:
			return fmt.Errorf("<%s> must be empty", name)
		}
	}
}
