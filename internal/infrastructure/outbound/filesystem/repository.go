package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sophialabs/payprobe/internal/domain/params"
	"github.com/sophialabs/payprobe/internal/domain/testcase"
)

var _ testcase.Repository = (*CaseRepository)(nil)

// CaseRepository loads test cases from a case file, or from every case file
// under a directory. YAML and JSON are both accepted; JSON is parsed as YAML.
type CaseRepository struct {
	rootDir  string
	target   string
	resolver *IncludeResolver
}

// NewCaseRepository creates a repository for casePath, resolved against
// rootDir when relative. @root includes resolve against rootDir.
func NewCaseRepository(rootDir, casePath string) (*CaseRepository, error) {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root directory: %w", err)
	}
	target := casePath
	if !filepath.IsAbs(target) {
		target = filepath.Join(absRoot, casePath)
	}
	return &CaseRepository{
		rootDir:  absRoot,
		target:   target,
		resolver: NewIncludeResolver(absRoot),
	}, nil
}

// Target returns the case file or directory the repository reads.
func (r *CaseRepository) Target() string {
	return r.target
}

// LoadAll returns every case in file order. Directories are walked in
// lexical order.
func (r *CaseRepository) LoadAll(_ context.Context) ([]*testcase.TestCase, error) {
	info, err := os.Stat(r.target)
	if err != nil {
		return nil, fmt.Errorf("failed to open case source: %w", err)
	}
	if !info.IsDir() {
		return r.loadFile(r.target)
	}

	var cases []*testcase.TestCase
	err = filepath.WalkDir(r.target, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isCaseFile(path) {
			return nil
		}
		loaded, err := r.loadFile(path)
		if err != nil {
			return err
		}
		cases = append(cases, loaded...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk case directory: %w", err)
	}
	return cases, nil
}

// LoadByName loads a single case by name.
func (r *CaseRepository) LoadByName(ctx context.Context, name string) (*testcase.TestCase, error) {
	all, err := r.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load cases: %w", err)
	}
	for _, tc := range all {
		if tc.Name == name {
			return tc, nil
		}
	}
	return nil, testcase.ErrNotFound
}

func (r *CaseRepository) loadFile(path string) ([]*testcase.TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var rootNode yaml.Node
	if err := yaml.Unmarshal(data, &rootNode); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if rootNode.Kind != yaml.DocumentNode || len(rootNode.Content) == 0 {
		// empty file
		return nil, nil
	}

	if err := r.resolver.ResolveIncludes(&rootNode, filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("failed to resolve includes in %s: %w", path, err)
	}

	content := rootNode.Content[0]
	if content.Kind != yaml.SequenceNode {
		tc, err := decodeCaseNode(content)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		tc.SourceFile = path
		tc.SourceIndex = -1
		return []*testcase.TestCase{tc}, nil
	}

	cases := make([]*testcase.TestCase, 0, len(content.Content))
	for i, item := range content.Content {
		tc, err := decodeCaseNode(item)
		if err != nil {
			return nil, fmt.Errorf("%s: entry %d: %w", path, i, err)
		}
		tc.SourceFile = path
		tc.SourceIndex = i
		cases = append(cases, tc)
	}
	return cases, nil
}

func decodeCaseNode(node *yaml.Node) (*testcase.TestCase, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("case must be a mapping, got %s", nodeKind(node))
	}
	var yc yamlCase
	if err := node.Decode(&yc); err != nil {
		return nil, fmt.Errorf("failed to decode case: %w", err)
	}
	return toTestCase(&yc), nil
}

func toTestCase(yc *yamlCase) *testcase.TestCase {
	tc := &testcase.TestCase{
		Name:  yc.Name,
		Path:  yc.Path,
		Query: yc.Query,
		Expect: testcase.ExpectationSet{
			ShareParams:     toTree(yc.Expect.ShareParams),
			EntranceParams:  toTree(yc.Expect.EntranceParams),
			PromotionParams: toTree(yc.Expect.PromotionParams),
			PayParams:       toTree(yc.Expect.PayParams),
		},
	}
	for _, c := range yc.Checks {
		tc.Checks = append(tc.Checks, testcase.Check{
			Name:    c.Name,
			Bucket:  c.Bucket,
			Layer:   c.Layer,
			Path:    c.Path,
			Matcher: testcase.ParseStringMatcher(c.Matcher),
			Engine:  strings.ToLower(c.Engine),
			Source:  c.Source,
		})
	}
	return tc
}

func toTree(m map[string]any) params.Tree {
	if len(m) == 0 {
		return nil
	}
	return params.TreeFromAny(m)
}

func nodeKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.ScalarNode:
		return "scalar"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}

func isCaseFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
