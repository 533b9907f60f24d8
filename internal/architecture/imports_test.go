package architecture_test

import (
	"bufio"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

type importRef struct {
	file string
	imp  string
}

func TestImportBoundaries(t *testing.T) {
	root, modulePath := moduleRoot(t)

	var violations []string
	for _, ref := range internalImports(t, root) {
		layer := layerFor(ref.file)
		if layer == "" {
			continue
		}
		for _, bad := range disallowedImports(modulePath, layer) {
			if strings.HasPrefix(ref.imp, bad) {
				violations = append(violations, fmt.Sprintf("- %s imports %q (disallowed for %s: %q)", ref.file, ref.imp, layer, bad))
				break
			}
		}
	}
	if len(violations) > 0 {
		t.Fatalf("import boundary violations:\n%s", strings.Join(violations, "\n"))
	}
}

// The pipeline stages run offline in mirrorctl and must not reach for the
// store or any network client.
func TestPipelineStagesImportOnlyDomain(t *testing.T) {
	root, modulePath := moduleRoot(t)

	allowed := []string{
		modulePath + "/internal/domain/mirror",
		modulePath + "/internal/modules/mirror/",
	}
	var violations []string
	for _, ref := range internalImports(t, root) {
		if layerFor(ref.file) != "pipeline" || !strings.HasPrefix(ref.imp, modulePath+"/") {
			continue
		}
		ok := false
		for _, prefix := range allowed {
			if strings.HasPrefix(ref.imp, prefix) {
				ok = true
				break
			}
		}
		if !ok {
			violations = append(violations, fmt.Sprintf("- %s imports %q", ref.file, ref.imp))
		}
	}
	if len(violations) > 0 {
		t.Fatalf("pipeline stages must only import the mirror domain:\n%s", strings.Join(violations, "\n"))
	}
}

func layerFor(rel string) string {
	switch {
	case strings.HasPrefix(rel, "internal/platform/"):
		return "platform"
	case strings.HasPrefix(rel, "internal/domain/"):
		return "domain"
	case strings.HasPrefix(rel, "internal/modules/mirror/layout/"),
		strings.HasPrefix(rel, "internal/modules/mirror/fingerprint/"),
		strings.HasPrefix(rel, "internal/modules/mirror/classify/"),
		strings.HasPrefix(rel, "internal/modules/mirror/render/"):
		return "pipeline"
	case strings.HasPrefix(rel, "internal/modules/"):
		return "modules"
	case strings.HasPrefix(rel, "internal/data/"):
		return "data"
	default:
		return ""
	}
}

func disallowedImports(modulePath string, layer string) []string {
	switch layer {
	case "platform":
		return []string{
			modulePath + "/internal/modules/",
			modulePath + "/internal/http/",
			modulePath + "/internal/app",
			modulePath + "/internal/data/",
		}
	case "domain":
		return []string{
			modulePath + "/internal/",
		}
	case "modules", "pipeline":
		return []string{
			modulePath + "/internal/http/",
			modulePath + "/internal/app",
		}
	case "data":
		return []string{
			modulePath + "/internal/modules/",
			modulePath + "/internal/http/",
			modulePath + "/internal/app",
		}
	default:
		return nil
	}
}

func moduleRoot(t *testing.T) (string, string) {
	t.Helper()
	start, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	root, err := findModuleRoot(start)
	if err != nil {
		t.Fatalf("find module root: %v", err)
	}
	modulePath, err := readModulePath(filepath.Join(root, "go.mod"))
	if err != nil {
		t.Fatalf("read module path: %v", err)
	}
	return root, modulePath
}

func internalImports(t *testing.T, root string) []importRef {
	t.Helper()
	fset := token.NewFileSet()
	var out []importRef
	walkErr := filepath.WalkDir(filepath.Join(root, "internal"), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			switch d.Name() {
			case ".git", "vendor", "node_modules", ".gocache", "testdata":
				return filepath.SkipDir
			default:
				return nil
			}
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			return err
		}
		for _, spec := range f.Imports {
			if spec == nil || spec.Path == nil {
				continue
			}
			imp, err := strconv.Unquote(spec.Path.Value)
			if err != nil {
				continue
			}
			out = append(out, importRef{file: filepath.ToSlash(rel), imp: imp})
		}
		return nil
	})
	if walkErr != nil {
		t.Fatalf("walk internal/: %v", walkErr)
	}
	return out
}

func findModuleRoot(start string) (string, error) {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found from %s", start)
		}
		dir = parent
	}
}

func readModulePath(goModPath string) (string, error) {
	f, err := os.Open(goModPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "module ") {
			continue
		}
		mp := strings.TrimSpace(strings.TrimPrefix(line, "module "))
		if mp == "" {
			return "", fmt.Errorf("empty module path in %s", goModPath)
		}
		return mp, nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("module path not found in %s", goModPath)
}
