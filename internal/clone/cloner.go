// Package clone prepares isolated project workspaces for mutation runs.
// Each submission is copied (or fetched) into the workdir, its sources are
// sanitized, and a synthetic package is injected so the mutation engine
// never mutates its own harness classes.
package clone

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mutbatch/mutbatch/internal/tasks"
)

// InjectedPackage is the synthetic package every cloned submission is moved
// into before the mutation engine runs.
const InjectedPackage = "com.example"

// packageDecl is prepended to every moved source file.
const packageDecl = "package " + InjectedPackage + ";\n"

// Cloner copies projects into isolated workspaces
type Cloner struct {
	workdir string

	// Token authenticates git fetches of private submissions
	Token string

	// SkipPackage leaves the sources in their original package. muJava
	// builds its own session layout and must see the unmodified structure.
	SkipPackage bool
}

// NewCloner creates a cloner rooted at workdir
func NewCloner(workdir string) *Cloner {
	return &Cloner{workdir: workdir}
}

// Clone is one prepared project workspace
type Clone struct {
	Name string
	Dir  string

	// Source is the original project path or git URL the clone came from
	Source string
}

// Clone prepares an isolated workspace for the given task. An existing
// workspace for the same project is removed first so every run starts from
// a fresh copy.
func (c *Cloner) Clone(ctx context.Context, task tasks.Task) (*Clone, error) {
	name := task.Name()
	if name == "" {
		return nil, fmt.Errorf("task has no project name")
	}
	dest := filepath.Join(c.workdir, name)

	// Remove stale clone from a previous run
	if _, err := os.Stat(dest); err == nil {
		log.Debug().Str("path", dest).Msg("removing stale clone")
		if err := os.RemoveAll(dest); err != nil {
			return nil, fmt.Errorf("failed to remove stale clone: %w", err)
		}
	}

	if err := os.MkdirAll(c.workdir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workdir: %w", err)
	}

	log.Info().
		Str("project", name).
		Str("dest", dest).
		Msg("cloning project")

	if task.GitURL != "" {
		if err := c.fetchGit(ctx, task.GitURL, dest); err != nil {
			return nil, err
		}
	} else {
		if err := copyTree(task.ProjectPath, dest); err != nil {
			return nil, fmt.Errorf("failed to copy project: %w", err)
		}
	}

	if err := sanitizeSources(filepath.Join(dest, "src")); err != nil {
		return nil, fmt.Errorf("failed to sanitize sources: %w", err)
	}

	if !c.SkipPackage {
		if err := injectPackage(dest); err != nil {
			return nil, fmt.Errorf("failed to inject package: %w", err)
		}
	}

	source := task.ProjectPath
	if source == "" {
		source = task.GitURL
	}

	return &Clone{Name: name, Dir: dest, Source: source}, nil
}

// copyTree recursively copies src into dest, preserving file modes
func copyTree(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", src)
	}

	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		if info.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}
		return copyFile(path, target, info.Mode().Perm())
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

// sanitizeSources strips non-ASCII bytes from every .java file under dir.
// Student submissions routinely contain smart quotes and accented names in
// comments that trip the mutation engine's source reader.
func sanitizeSources(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}

	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".java") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		cleaned := stripNonASCII(data)
		if len(cleaned) == len(data) {
			return nil
		}
		return os.WriteFile(path, cleaned, info.Mode().Perm())
	})
}

func stripNonASCII(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		if b < 0x80 {
			out = append(out, b)
		}
	}
	return out
}

// injectPackage moves every top-level src/*.java into src/com/example/ and
// prepends the package declaration. Files already under a subdirectory of
// src/ are left alone.
func injectPackage(cloneDir string) error {
	srcDir := filepath.Join(cloneDir, "src")
	if _, err := os.Stat(srcDir); os.IsNotExist(err) {
		return fmt.Errorf("clone has no src directory")
	}

	pkgDir := filepath.Join(srcDir, filepath.FromSlash(strings.ReplaceAll(InjectedPackage, ".", "/")))
	if err := os.MkdirAll(pkgDir, 0755); err != nil {
		return err
	}

	matches, err := filepath.Glob(filepath.Join(srcDir, "*.java"))
	if err != nil {
		return err
	}

	for _, path := range matches {
		target := filepath.Join(pkgDir, filepath.Base(path))
		if err := os.Rename(path, target); err != nil {
			return err
		}

		data, err := os.ReadFile(target)
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, append([]byte(packageDecl), data...), 0644); err != nil {
			return err
		}
	}

	log.Debug().Int("moved", len(matches)).Str("package", InjectedPackage).Msg("injected package")

	return nil
}
