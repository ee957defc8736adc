package filesystem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	includeTag      = "!include"
	maxIncludeDepth = 8
)

var (
	errEmptyInclude    = errors.New("empty include reference")
	errAbsoluteInclude = errors.New("absolute include paths are not allowed")
	errEscapesRoot     = errors.New("include escapes the case root")
)

// IncludeResolver splices !include references into a case file. Structured
// files (.yaml, .yml, .json) replace the tagged node with their document;
// anything else becomes a string scalar.
//
// References are "@root/<p>" (case root), "@here/<p>" or a bare relative
// path (directory of the including file). References starting with "@" must
// be quoted in YAML: !include "@root/shared/share.yaml".
type IncludeResolver struct {
	rootDir string
}

// NewIncludeResolver creates a resolver bound to rootDir.
func NewIncludeResolver(rootDir string) *IncludeResolver {
	return &IncludeResolver{rootDir: rootDir}
}

// ResolveIncludes rewrites every !include node below node in place.
func (r *IncludeResolver) ResolveIncludes(node *yaml.Node, currentDir string) error {
	return r.walk(node, currentDir, 0)
}

func (r *IncludeResolver) walk(node *yaml.Node, currentDir string, depth int) error {
	if node == nil {
		return nil
	}
	if depth > maxIncludeDepth {
		return fmt.Errorf("includes nested deeper than %d levels", maxIncludeDepth)
	}
	if node.Tag == includeTag {
		return r.splice(node, currentDir, depth)
	}
	for _, child := range node.Content {
		if err := r.walk(child, currentDir, depth); err != nil {
			return err
		}
	}
	return nil
}

func (r *IncludeResolver) splice(node *yaml.Node, currentDir string, depth int) error {
	ref := strings.TrimSpace(node.Value)
	target, err := r.resolvePath(ref, currentDir)
	if err != nil {
		return fmt.Errorf("include %q: %w", ref, err)
	}
	if err := r.within(target); err != nil {
		return fmt.Errorf("include %q: %w", ref, err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return fmt.Errorf("include %q: %w", ref, err)
	}

	if !isCaseFile(target) {
		*node = yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: string(data)}
		return nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("include %q: %w", ref, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		*node = yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null"}
		return nil
	}
	if err := r.walk(&doc, filepath.Dir(target), depth+1); err != nil {
		return err
	}
	*node = *doc.Content[0]
	return nil
}

func (r *IncludeResolver) resolvePath(ref, currentDir string) (string, error) {
	switch {
	case ref == "":
		return "", errEmptyInclude
	case strings.HasPrefix(ref, "@root/"):
		return filepath.Join(r.rootDir, strings.TrimPrefix(ref, "@root/")), nil
	case strings.HasPrefix(ref, "@here/"):
		return filepath.Join(currentDir, strings.TrimPrefix(ref, "@here/")), nil
	case filepath.IsAbs(ref):
		return "", errAbsoluteInclude
	default:
		return filepath.Join(currentDir, ref), nil
	}
}

// within rejects targets outside the root once symlinks are resolved.
func (r *IncludeResolver) within(target string) error {
	resolved, err := filepath.EvalSymlinks(target)
	if err != nil {
		dir, dirErr := filepath.EvalSymlinks(filepath.Dir(target))
		if dirErr != nil {
			dir = filepath.Dir(target)
		}
		resolved = filepath.Join(dir, filepath.Base(target))
	}
	root, err := filepath.EvalSymlinks(r.rootDir)
	if err != nil {
		root = r.rootDir
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errEscapesRoot
	}
	return nil
}
