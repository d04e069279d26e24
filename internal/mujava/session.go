package mujava

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// sessionName is the muJava session directory created inside each clone.
const sessionName = "session"

// mutantDirPattern matches mutant directory names like SDL_1 or AORB_12.
var mutantDirPattern = regexp.MustCompile(`^[A-Z]{3,}_\d+`)

// Mutant is one generated mutant: the directory holding the mutated class
// file and the class file name the run target swaps in.
type Mutant struct {
	Dir   string
	Class string
}

// setupSession builds the session layout muJava expects. The tool can
// create this itself but chokes on pre-existing state, so the layout is
// rebuilt from scratch on every run:
//
//	session/src      source files
//	session/classes  compiled classes
//	session/testset  compiled test classes
//	session/result   mutant output, empty until genmutes runs
func setupSession(cloneDir string) error {
	sessionDir := filepath.Join(cloneDir, sessionName)
	if err := os.RemoveAll(sessionDir); err != nil {
		return err
	}

	for _, sub := range []string{"src", "classes", "testset", "result"} {
		if err := os.MkdirAll(filepath.Join(sessionDir, sub), 0755); err != nil {
			return err
		}
	}

	// muJava reads session files by bare name, so the trees are flattened
	if err := copyInto(filepath.Join(cloneDir, "src"), filepath.Join(sessionDir, "src"), ".java", false); err != nil {
		return err
	}
	if err := copyInto(filepath.Join(cloneDir, "classes"), filepath.Join(sessionDir, "classes"), ".class", false); err != nil {
		return err
	}
	return copyInto(filepath.Join(cloneDir, "classes"), filepath.Join(sessionDir, "testset"), ".class", true)
}

// copyInto flattens files with the given extension from root into dest.
// tests selects files whose base name ends in Test; otherwise those are
// skipped.
func copyInto(root, dest, ext string, tests bool) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return fmt.Errorf("clone has no %s directory", filepath.Base(root))
	}

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ext {
			return nil
		}
		name := strings.TrimSuffix(filepath.Base(path), ext)
		if strings.HasSuffix(name, "Test") != tests {
			return nil
		}
		return copyFile(path, filepath.Join(dest, filepath.Base(path)), info.Mode().Perm())
	})
}

func copyFile(src, dest string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// findMutants walks the session result tree for mutated class files.
// genmutes writes each mutant into its own operator-numbered directory
// under result/<Class>/traditional_mutants/<method>/. Walk order is
// lexical, so the cap in the runner selects a stable prefix.
func findMutants(resultDir string) ([]Mutant, error) {
	var mutants []Mutant

	err := filepath.Walk(resultDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".class") {
			return nil
		}
		dir := filepath.Dir(path)
		if mutantDirPattern.MatchString(filepath.Base(dir)) {
			mutants = append(mutants, Mutant{Dir: dir, Class: info.Name()})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mutants, nil
}
