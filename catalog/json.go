package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/bloomdesk/catalogkit/catalogerr"
	"github.com/bloomdesk/catalogkit/keytree"
)

// decodeJSON walks the document token by token so object key order
// survives and arrays are caught at the exact path they appear.
func decodeJSON(locale string, data []byte) (*keytree.Tree, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, syntaxError(err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, catalogerr.Malformed("", "document root must be an object")
	}

	var (
		roots []string
		tree  *keytree.Tree
	)
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, syntaxError(err)
		}
		key := kt.(string)
		roots = append(roots, key)
		if key != locale {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, syntaxError(err)
			}
			continue
		}
		vt, err := dec.Token()
		if err != nil {
			return nil, syntaxError(err)
		}
		if d, ok := vt.(json.Delim); !ok || d != '{' {
			return nil, catalogerr.Malformed(locale, "locale value must be an object")
		}
		if tree, err = decodeJSONObject(dec, ""); err != nil {
			return nil, err
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, syntaxError(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, catalogerr.Malformed("", "unexpected data after document")
	}

	if len(roots) != 1 || tree == nil {
		return nil, wrongRoot(locale, roots)
	}
	return tree, nil
}

// decodeJSONObject reads the members of an object whose '{' was consumed.
func decodeJSONObject(dec *json.Decoder, prefix string) (*keytree.Tree, error) {
	t := keytree.New()
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, syntaxError(err)
		}
		label := kt.(string)
		path := childPath(prefix, label)
		if err := checkLabel(path, label); err != nil {
			return nil, err
		}

		vt, err := dec.Token()
		if err != nil {
			return nil, syntaxError(err)
		}
		switch v := vt.(type) {
		case string:
			t.Set(label, v)
		case json.Delim:
			if v == '[' {
				return nil, catalogerr.Malformed(path, "arrays are not valid catalog values")
			}
			child, err := decodeJSONObject(dec, path)
			if err != nil {
				return nil, err
			}
			t.SetTree(label, child)
		case nil:
			return nil, catalogerr.Malformed(path, "leaf must be a string, got null")
		default:
			return nil, catalogerr.Malformed(path, "leaf must be a string, got %T", v)
		}
	}
	// closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, syntaxError(err)
	}
	return t, nil
}

func syntaxError(err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return catalogerr.Wrap(catalogerr.MalformedCatalog, "", err)
}

// encodeJSON writes the tree with two-space indentation in label order.
func encodeJSON(locale string, t *keytree.Tree) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString("{\n  ")
	b.WriteString(quoteJSON(locale))
	b.WriteString(": ")
	writeJSONTree(&b, t, 1)
	b.WriteString("\n}\n")
	return b.Bytes(), nil
}

func writeJSONTree(b *bytes.Buffer, t *keytree.Tree, depth int) {
	if t.Len() == 0 {
		b.WriteString("{}")
		return
	}
	indent := strings.Repeat("  ", depth+1)
	labels := t.Labels()

	b.WriteString("{\n")
	for i, label := range labels {
		b.WriteString(indent)
		b.WriteString(quoteJSON(label))
		b.WriteString(": ")
		if child, ok := t.Child(label); ok {
			writeJSONTree(b, child, depth+1)
		} else {
			v, _ := t.Leaf(label)
			b.WriteString(quoteJSON(v))
		}
		if i < len(labels)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteByte('}')
}

// quoteJSON encodes s as a JSON string without HTML escaping.
func quoteJSON(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}
