// Command sqllint checks that every inline SQL constant starts with a unique
// `--sql <uuid>` audit marker. Run it against internal/sqlinline in CI.
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	sqlMarkerPattern  = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with)\b`)
	uuidMarkerPattern = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

type violation struct {
	file    string
	name    string
	line    int
	message string
}

// seenMarker remembers where a marker was first declared.
type seenMarker struct {
	file string
	name string
}

type linter struct {
	markers    map[string]seenMarker
	violations []violation
}

func main() {
	flag.Parse()
	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{"internal/sqlinline"}
	}
	os.Exit(run(targets, os.Stderr))
}

func run(targets []string, stderr io.Writer) int {
	l := &linter{markers: make(map[string]seenMarker)}
	for _, target := range targets {
		if err := l.lintTarget(target); err != nil {
			fmt.Fprintf(stderr, "sqllint: %v\n", err)
			return 1
		}
	}
	if len(l.violations) > 0 {
		fmt.Fprintln(stderr, "sqllint: SQL audit marker violations")
		for _, v := range l.violations {
			fmt.Fprintf(stderr, "  %s:%d %s (%s)\n", v.file, v.line, v.message, v.name)
		}
		return 1
	}
	return 0
}

func (l *linter) lintTarget(target string) error {
	info, err := os.Stat(target)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		if filepath.Ext(target) != ".go" {
			return nil
		}
		return l.lintFile(target)
	}
	return filepath.WalkDir(target, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != target && (strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "_") || d.Name() == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		return l.lintFile(path)
	})
}

func (l *linter) lintFile(path string) error {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
	if err != nil {
		return err
	}
	ast.Inspect(file, func(n ast.Node) bool {
		vs, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		name := joinNames(vs.Names)
		for _, value := range vs.Values {
			bl, ok := value.(*ast.BasicLit)
			if !ok || bl.Kind != token.STRING {
				continue
			}
			raw, err := unquote(bl.Value)
			if err != nil || !sqlMarkerPattern.MatchString(raw) {
				continue
			}
			line := fset.Position(bl.Pos()).Line
			marker := firstLine(raw)
			if !uuidMarkerPattern.MatchString(marker) {
				l.violations = append(l.violations, violation{
					file:    path,
					line:    line,
					name:    name,
					message: "missing or invalid --sql <uuid> marker",
				})
				continue
			}
			if prev, dup := l.markers[marker]; dup {
				l.violations = append(l.violations, violation{
					file:    path,
					line:    line,
					name:    name,
					message: fmt.Sprintf("marker already used by %s in %s", prev.name, prev.file),
				})
				continue
			}
			l.markers[marker] = seenMarker{file: path, name: name}
		}
		return true
	})
	return nil
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if len(v) == 0 {
		return v, nil
	}
	if v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}

func joinNames(idents []*ast.Ident) string {
	parts := make([]string, 0, len(idents))
	for _, ident := range idents {
		if ident == nil {
			continue
		}
		parts = append(parts, ident.Name)
	}
	return strings.Join(parts, ",")
}
