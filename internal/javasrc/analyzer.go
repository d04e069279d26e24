// Package javasrc measures Java submissions with tree-sitter: classes,
// methods, and statement counts split into test and non-test code. The
// non-test statement count stands in for the grading export's
// statements.nontest column when no metadata file is available.
package javasrc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
)

// FileStats holds the counts for one source file
type FileStats struct {
	// Path is the analyzed file
	Path string

	// Package is the declared package, empty for the default package
	Package string

	// Classes lists the declared type names, nested types included
	Classes []string

	// Methods counts method and constructor declarations
	Methods int

	// Statements counts statement nodes
	Statements int

	// Test marks files that declare a *Test class or import JUnit
	Test bool
}

// ProjectStats folds file stats into project totals
type ProjectStats struct {
	Files    []FileStats
	Packages []string

	Classes           int
	Methods           int
	MethodsTest       int
	MethodsNontest    int
	Statements        int
	StatementsTest    int
	StatementsNontest int
}

// Loc returns the non-test statement count, the size measure the
// per-operator tables normalize by.
func (p *ProjectStats) Loc() int {
	return p.StatementsNontest
}

// Analyzer parses Java source files using tree-sitter
type Analyzer struct {
	parser *sitter.Parser
}

// NewAnalyzer creates an analyzer with the Java grammar loaded
func NewAnalyzer() *Analyzer {
	parser := sitter.NewParser()
	parser.SetLanguage(java.GetLanguage())
	return &Analyzer{parser: parser}
}

// AnalyzeFile parses a single file
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (*FileStats, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return a.AnalyzeContent(ctx, path, content)
}

// AnalyzeContent parses Java source content
func (a *Analyzer) AnalyzeContent(ctx context.Context, path string, content []byte) (*FileStats, error) {
	tree, err := a.parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	defer tree.Close()

	stats := &FileStats{Path: path}
	junit := false

	cursor := sitter.NewTreeCursor(tree.RootNode())
	defer cursor.Close()

	walkTree(cursor, func(n *sitter.Node) {
		switch n.Type() {
		case "package_declaration":
			for i := 0; i < int(n.ChildCount()); i++ {
				child := n.Child(i)
				if child.Type() == "scoped_identifier" || child.Type() == "identifier" {
					stats.Package = child.Content(content)
				}
			}
		case "import_declaration":
			imp := n.Content(content)
			if strings.Contains(imp, "org.junit") || strings.Contains(imp, "junit.framework") {
				junit = true
			}
		case "class_declaration", "interface_declaration", "enum_declaration":
			if name := n.ChildByFieldName("name"); name != nil {
				stats.Classes = append(stats.Classes, name.Content(content))
			}
		case "method_declaration", "constructor_declaration":
			stats.Methods++
		default:
			if isStatement(n.Type()) {
				stats.Statements++
			}
		}
	})

	stats.Test = junit || isTestFile(path, stats.Classes)
	return stats, nil
}

// AnalyzeProject walks a project's src tree and folds every .java file
// into project totals.
func (a *Analyzer) AnalyzeProject(ctx context.Context, projectDir string) (*ProjectStats, error) {
	srcDir := filepath.Join(projectDir, "src")

	var project ProjectStats
	pkgs := make(map[string]bool)

	err := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".java") {
			return nil
		}

		stats, err := a.AnalyzeFile(ctx, path)
		if err != nil {
			return err
		}

		project.Files = append(project.Files, *stats)
		if stats.Package != "" {
			pkgs[stats.Package] = true
		}

		project.Classes += len(stats.Classes)
		project.Methods += stats.Methods
		project.Statements += stats.Statements
		if stats.Test {
			project.MethodsTest += stats.Methods
			project.StatementsTest += stats.Statements
		} else {
			project.MethodsNontest += stats.Methods
			project.StatementsNontest += stats.Statements
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to analyze %s: %w", projectDir, err)
	}

	for pkg := range pkgs {
		project.Packages = append(project.Packages, pkg)
	}
	sort.Strings(project.Packages)

	return &project, nil
}

// isStatement reports whether a node type counts toward the statement
// total. Local variable declarations are statements in spirit even though
// the grammar does not suffix them.
func isStatement(nodeType string) bool {
	return strings.HasSuffix(nodeType, "_statement") || nodeType == "local_variable_declaration"
}

// isTestFile applies the naming convention: the file or any declared type
// ends with Test.
func isTestFile(path string, classes []string) bool {
	base := strings.TrimSuffix(filepath.Base(path), ".java")
	if strings.HasSuffix(base, "Test") {
		return true
	}
	for _, cls := range classes {
		if strings.HasSuffix(cls, "Test") {
			return true
		}
	}
	return false
}

// walkTree visits every node in depth-first order
func walkTree(cursor *sitter.TreeCursor, fn func(*sitter.Node)) {
	for {
		fn(cursor.CurrentNode())

		if cursor.GoToFirstChild() {
			continue
		}

		for {
			if cursor.GoToNextSibling() {
				break
			}
			if !cursor.GoToParent() {
				return
			}
		}
	}
}
