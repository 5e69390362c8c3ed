package catalog

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/bloomdesk/catalogkit/catalogerr"
	"github.com/bloomdesk/catalogkit/keytree"
)

// decodeYAML walks yaml.v3 nodes, which keep mapping order.
func decodeYAML(locale string, data []byte) (*keytree.Tree, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, catalogerr.Wrap(catalogerr.MalformedCatalog, "", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, wrongRoot(locale, nil)
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, catalogerr.Malformed("", "document root must be a mapping")
	}

	var (
		roots []string
		value *yaml.Node
	)
	for i := 0; i+1 < len(root.Content); i += 2 {
		roots = append(roots, root.Content[i].Value)
		if root.Content[i].Value == locale {
			value = root.Content[i+1]
		}
	}
	if len(roots) != 1 || value == nil {
		return nil, wrongRoot(locale, roots)
	}

	switch {
	case value.Kind == yaml.MappingNode:
		return decodeYAMLMapping(value, "")
	case value.Kind == yaml.ScalarNode && value.ShortTag() == "!!null":
		// "nl:" with nothing under it
		return keytree.New(), nil
	}
	return nil, catalogerr.Malformed(locale, "locale value must be a mapping")
}

func decodeYAMLMapping(node *yaml.Node, prefix string) (*keytree.Tree, error) {
	t := keytree.New()
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		label := keyNode.Value
		path := childPath(prefix, label)
		if keyNode.Kind != yaml.ScalarNode {
			return nil, catalogerr.Malformed(path, "labels must be scalars")
		}
		if err := checkLabel(path, label); err != nil {
			return nil, err
		}
		if valNode.Kind == yaml.AliasNode {
			valNode = valNode.Alias
		}

		switch valNode.Kind {
		case yaml.MappingNode:
			child, err := decodeYAMLMapping(valNode, path)
			if err != nil {
				return nil, err
			}
			t.SetTree(label, child)
		case yaml.SequenceNode:
			return nil, catalogerr.Malformed(path, "arrays are not valid catalog values")
		case yaml.ScalarNode:
			if tag := valNode.ShortTag(); tag != "!!str" {
				return nil, catalogerr.Malformed(path, "leaf must be a string, got %s", tag)
			}
			t.Set(label, valNode.Value)
		default:
			return nil, catalogerr.Malformed(path, "unsupported YAML node kind %d", valNode.Kind)
		}
	}
	return t, nil
}

func encodeYAML(locale string, t *keytree.Tree) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	root.Content = append(root.Content, strNode(locale), yamlMapping(t))
	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("marshaling YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshaling YAML: %w", err)
	}
	return buf.Bytes(), nil
}

func yamlMapping(t *keytree.Tree) *yaml.Node {
	m := &yaml.Node{Kind: yaml.MappingNode}
	for _, label := range t.Labels() {
		if child, ok := t.Child(label); ok {
			m.Content = append(m.Content, strNode(label), yamlMapping(child))
			continue
		}
		v, _ := t.Leaf(label)
		m.Content = append(m.Content, strNode(label), strNode(v))
	}
	return m
}

// strNode tags values as strings so "123" or "yes" are quoted on output.
func strNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}
