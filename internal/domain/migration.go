package domain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// StepKind is the kind of work a migration step performs
type StepKind string

const (
	StepDeploy StepKind = "deploy"
	StepLink   StepKind = "link"
	StepCall   StepKind = "call"
)

// Valid reports whether the kind is one the orchestrator understands
func (k StepKind) Valid() bool {
	switch k {
	case StepDeploy, StepLink, StepCall:
		return true
	}
	return false
}

// Step is one ordered unit of work in a migration
type Step struct {
	Kind     StepKind `json:"kind" yaml:"kind"`
	Contract string   `json:"contract" yaml:"contract"`
	Library  string   `json:"library,omitempty" yaml:"library,omitempty"`
	Method   string   `json:"method,omitempty" yaml:"method,omitempty"`
	Args     []any    `json:"args,omitempty" yaml:"args,omitempty"`
	Gas      uint64   `json:"gas,omitempty" yaml:"gas,omitempty"`
	Value    *big.Int `json:"value,omitempty" yaml:"-"`
}

func (s *Step) String() string {
	switch s.Kind {
	case StepDeploy:
		return fmt.Sprintf("deploy %s", s.Contract)
	case StepLink:
		return fmt.Sprintf("link %s into %s", s.Library, s.Contract)
	case StepCall:
		return fmt.Sprintf("call %s.%s", s.Contract, s.Method)
	default:
		return fmt.Sprintf("%s %s", s.Kind, s.Contract)
	}
}

// Migration is an ordered list of steps loaded from a migration file
type Migration struct {
	Name   string  `json:"name" yaml:"name"`
	Source string  `json:"source,omitempty" yaml:"-"`
	Steps  []*Step `json:"steps" yaml:"steps"`
}

// DeployedContract is the result of a successful deploy step. It is created
// once per deploy and never modified afterwards.
type DeployedContract struct {
	ID          string          `json:"id"`
	Address     common.Address  `json:"address"`
	ABI         json.RawMessage `json:"abi,omitempty"`
	TxHash      common.Hash     `json:"txHash"`
	BlockNumber uint64          `json:"blockNumber"`
	GasUsed     uint64          `json:"gasUsed"`
	StepIndex   int             `json:"stepIndex"`
}

// Validate checks the ordering invariants without touching the network:
// link and call targets must be deployed earlier, a library must be deployed
// before it is linked, and a contract can't be linked after its own deploy.
// deployed holds identifiers already on chain from a previous run.
func (m *Migration) Validate(deployed map[string]bool) error {
	var problems ValidationErrors

	seen := make(map[string]int)
	for id := range deployed {
		seen[id] = -1
	}

	for i, step := range m.Steps {
		fail := func(kind ErrorKind, format string, args ...any) {
			problems = append(problems, NewStepError(kind, i, step, fmt.Errorf(format, args...)))
		}

		if !step.Kind.Valid() {
			fail(ConfigError, "unknown step kind %q", step.Kind)
			continue
		}
		if strings.TrimSpace(step.Contract) == "" {
			fail(ConfigError, "step has no contract")
			continue
		}

		switch step.Kind {
		case StepDeploy:
			if at, ok := seen[step.Contract]; ok {
				if at < 0 {
					fail(DeployError, "%s was already deployed by a previous run", step.Contract)
				} else {
					fail(DeployError, "%s is already deployed by step %d", step.Contract, at)
				}
				continue
			}
			seen[step.Contract] = i

		case StepLink:
			if step.Library == "" {
				fail(LinkError, "link step has no library")
				continue
			}
			if step.Library == step.Contract {
				fail(LinkError, "%s cannot be linked into itself", step.Contract)
				continue
			}
			if _, ok := seen[step.Library]; !ok {
				fail(LinkError, "library %s is not deployed before it is linked", step.Library)
			}
			if _, ok := seen[step.Contract]; ok {
				fail(LinkError, "%s is deployed before %s is linked into it", step.Contract, step.Library)
			}

		case StepCall:
			if step.Method == "" {
				fail(CallError, "call step has no method")
				continue
			}
			if _, ok := seen[step.Contract]; !ok {
				fail(CallError, "%s is not deployed before it is called", step.Contract)
			}
		}
	}

	if len(problems) > 0 {
		return problems
	}
	return nil
}

// DeployCount returns the number of deploy steps
func (m *Migration) DeployCount() int {
	n := 0
	for _, s := range m.Steps {
		if s.Kind == StepDeploy {
			n++
		}
	}
	return n
}
