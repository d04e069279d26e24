package pit

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Targets derives PIT target globs from a clone's src tree. Every package
// directory that directly contains a .java file contributes `pkg.*` to the
// class targets and `pkg.*Test*` to the test targets. Sources in the
// default package contribute bare globs.
func Targets(cloneDir string) (classes, tests []string, err error) {
	srcDir := filepath.Join(cloneDir, "src")

	pkgs := make(map[string]bool)
	err = filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".java") {
			return nil
		}

		rel, err := filepath.Rel(srcDir, filepath.Dir(path))
		if err != nil {
			return err
		}
		pkgs[pkgFromRel(rel)] = true
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var names []string
	for pkg := range pkgs {
		names = append(names, pkg)
	}
	sort.Strings(names)

	for _, pkg := range names {
		if pkg == "" {
			classes = append(classes, "*")
			tests = append(tests, "*Test*")
			continue
		}
		classes = append(classes, pkg+".*")
		tests = append(tests, pkg+".*Test*")
	}

	return classes, tests, nil
}

func pkgFromRel(rel string) string {
	if rel == "." {
		return ""
	}
	return strings.ReplaceAll(filepath.ToSlash(rel), "/", ".")
}

// ExcludedClasses walks the clone's src tree and returns the fully
// qualified names of classes whose file name matches any of the given
// patterns. Used to keep GUI harness classes out of the mutation targets.
func ExcludedClasses(cloneDir string, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, nil
	}

	srcDir := filepath.Join(cloneDir, "src")

	var excluded []string
	err := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".java") {
			return nil
		}

		base := strings.TrimSuffix(filepath.Base(path), ".java")
		matched := false
		for _, pattern := range patterns {
			if ok, _ := filepath.Match(pattern, base); ok {
				matched = true
				break
			}
		}
		if !matched {
			return nil
		}

		rel, err := filepath.Rel(srcDir, filepath.Dir(path))
		if err != nil {
			return err
		}
		if pkg := pkgFromRel(rel); pkg != "" {
			excluded = append(excluded, pkg+"."+base)
		} else {
			excluded = append(excluded, base)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(excluded)
	return excluded, nil
}
