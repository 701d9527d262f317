package replacer

import (
	"bytes"
	"fmt"
	"github.com/dave/dst"
	"github.com/dave/dst/decorator"
	"github.com/dave/dst/dstutil"
	"go/token"
	"strconv"
	"strings"
)

// RewriteGoSource applies rs to the value of every string literal in a Go
// source file. Import paths are left alone. Comments and formatting are kept.
// It returns the printed file and the number of literals that changed.
func RewriteGoSource(rs *RuleSet, src []byte) ([]byte, int, error) {
	deco := decorator.NewDecorator(token.NewFileSet())
	sc, err := deco.Parse(src)
	if err != nil {
		return nil, 0, fmt.Errorf("parse go source: %w", err)
	}

	changed := applyToLiterals(sc, rs)
	if changed == 0 {
		return src, 0, nil
	}

	out, err := printResult(sc)
	if err != nil {
		return nil, 0, err
	}
	return out, changed, nil
}

func printResult(sc *dst.File) ([]byte, error) {
	res := decorator.NewRestorer()
	var out bytes.Buffer
	err := res.Fprint(&out, sc)
	if err != nil {
		return nil, fmt.Errorf("print go source: %w", err)
	}

	return out.Bytes(), nil
}

func applyToLiterals(sc dst.Node, rs *RuleSet) int {
	changed := 0
	dstutil.Apply(sc, func(cursor *dstutil.Cursor) bool {
		switch curNode := cursor.Node().(type) {
		case *dst.ImportSpec:
			// import paths are string literals too, skip the whole spec
			return false
		case *dst.BasicLit:
			if curNode.Kind != token.STRING {
				return true
			}
			if newValue, ok := rewriteLiteral(curNode.Value, rs); ok {
				curNode.Value = newValue
				changed++
			}
		}
		return true
	}, nil)
	return changed
}

func rewriteLiteral(lit string, rs *RuleSet) (string, bool) {
	value, err := strconv.Unquote(lit)
	if err != nil {
		return "", false
	}
	out := rs.Apply(value)
	if out == value {
		return "", false
	}
	if strings.HasPrefix(lit, "`") && !strings.ContainsAny(out, "`\r") {
		return "`" + out + "`", true
	}
	return strconv.Quote(out), true
}
