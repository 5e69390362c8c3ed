package catalog

import (
	"fmt"
	"sort"

	"github.com/pelletier/go-toml/v2"

	"github.com/bloomdesk/catalogkit/catalogerr"
	"github.com/bloomdesk/catalogkit/keytree"
)

// decodeTOML goes through a generic map, so labels come back sorted.
func decodeTOML(locale string, data []byte) (*keytree.Tree, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, catalogerr.Wrap(catalogerr.MalformedCatalog, "", err)
	}

	roots := make([]string, 0, len(doc))
	for k := range doc {
		roots = append(roots, k)
	}
	sort.Strings(roots)
	if len(roots) != 1 || roots[0] != locale {
		return nil, wrongRoot(locale, roots)
	}

	body, ok := doc[locale].(map[string]any)
	if !ok {
		return nil, catalogerr.Malformed(locale, "locale value must be a table")
	}
	return keytree.FromMap(body)
}

func encodeTOML(locale string, t *keytree.Tree) ([]byte, error) {
	data, err := toml.Marshal(map[string]any{locale: t.ToMap()})
	if err != nil {
		return nil, fmt.Errorf("marshaling TOML: %w", err)
	}
	return data, nil
}
