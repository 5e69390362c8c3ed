package extract

import (
	"go/ast"
	"go/parser"
	"go/token"
	"sort"
	"strconv"
	"strings"

	"github.com/bloomdesk/catalogkit/catalogerr"
	"github.com/bloomdesk/catalogkit/classify"
)

// scanGo extracts string literals from a Go source file. Import paths and
// struct tags are not literals in the translatable sense and are skipped.
// Raw (backtick) strings are reported as templates.
func scanGo(path string, src []byte, c *classify.Classifier) ([]Occurrence, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, path, src, parser.SkipObjectResolution)
	if err != nil {
		return nil, catalogerr.Wrap(catalogerr.ScanIO, path, err)
	}

	skip := make(map[*ast.BasicLit]bool)
	for _, imp := range f.Imports {
		skip[imp.Path] = true
	}

	lines := strings.Split(string(src), "\n")
	var out []Occurrence

	ast.Inspect(f, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.Field:
			if node.Tag != nil {
				skip[node.Tag] = true
			}
		case *ast.BasicLit:
			if node.Kind != token.STRING || skip[node] {
				return true
			}
			text, err := strconv.Unquote(node.Value)
			if err != nil {
				return true
			}
			text = strings.TrimSpace(text)
			if !c.IsTranslatable(text) {
				return true
			}
			kind := KindString
			if strings.HasPrefix(node.Value, "`") {
				kind = KindTemplate
			}
			pos := fset.Position(node.Pos())
			out = append(out, Occurrence{
				File:    path,
				Line:    pos.Line,
				Text:    text,
				Kind:    kind,
				Context: contextLine(lines, pos.Line),
			})
		}
		return true
	})

	sort.SliceStable(out, func(i, j int) bool { return out[i].Line < out[j].Line })
	return out, nil
}

func contextLine(lines []string, line int) string {
	if line < 1 || line > len(lines) {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(lines[line-1], "\r"))
}
