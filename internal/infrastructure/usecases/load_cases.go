package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sophialabs/payprobe/internal/domain/testcase"
	"github.com/sophialabs/payprobe/internal/infrastructure/ports"
	"github.com/sophialabs/payprobe/internal/infrastructure/services"
)

// ErrInvalidCases indicates the case file cannot be used. It is fatal to a run.
var ErrInvalidCases = errors.New("invalid test cases")

// LoadCasesUseCase loads all test cases, compiles them, and builds an index.
type LoadCasesUseCase struct {
	repo     testcase.Repository
	compiler *services.Compiler
	logger   ports.Logger
}

// NewLoadCasesUseCase creates a new use case.
func NewLoadCasesUseCase(repo testcase.Repository, compiler *services.Compiler, logger ports.Logger) *LoadCasesUseCase {
	return &LoadCasesUseCase{
		repo:     repo,
		compiler: compiler,
		logger:   logger,
	}
}

// Execute loads, compiles, validates, and returns the built index. Every
// problem is collected and reported together as ErrInvalidCases.
func (uc *LoadCasesUseCase) Execute(ctx context.Context) (*services.CaseIndex, error) {
	cases, err := uc.repo.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCases, err)
	}
	uc.logger.Info("loaded test cases from repository", "count", len(cases))

	if len(cases) == 0 {
		return nil, fmt.Errorf("%w: no test cases defined", ErrInvalidCases)
	}

	index := services.NewCaseIndex()
	var problems []string

	for _, tc := range cases {
		cc, err := uc.compiler.CompileCase(tc)
		if err != nil {
			problems = append(problems, err.Error())
			uc.logger.Error("failed to compile test case", "case", tc.Name, "source", tc.SourceFile, "error", err)
			continue
		}
		if err := index.Add(cc); err != nil {
			problems = append(problems, err.Error())
			uc.logger.Error("rejected test case", "case", tc.Name, "source", tc.SourceFile, "error", err)
			continue
		}
		uc.logger.Debug("compiled test case", "case", tc.Name, "checks", len(cc.Checks))
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCases, strings.Join(problems, "; "))
	}

	uc.logger.Info("case index built", "cases", index.Len())
	return index, nil
}
