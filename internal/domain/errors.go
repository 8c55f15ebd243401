package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Sentinel errors for domain operations
var (
	// ErrNotFound is returned when a requested resource doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrConnection is returned when the network endpoint is unreachable or rejects the credential
	ErrConnection = errors.New("connection error")

	// ErrLink is returned when a library cannot be linked into a contract
	ErrLink = errors.New("link error")

	// ErrDeploy is returned when a contract creation fails
	ErrDeploy = errors.New("deploy error")

	// ErrCall is returned when a post-deploy call fails
	ErrCall = errors.New("call error")

	// ErrConfig is returned for invalid migration or network configuration
	ErrConfig = errors.New("configuration error")

	// ErrContractNotFound is returned when an artifact can't be found
	ErrContractNotFound = errors.New("contract not found")

	// ErrNoPlaceholder is returned when bytecode carries no placeholder for a library
	ErrNoPlaceholder = errors.New("no library placeholder")

	// ErrUnlinkedBytecode is returned when bytecode still has unresolved library placeholders
	ErrUnlinkedBytecode = errors.New("bytecode has unresolved library placeholders")

	// ErrReverted is returned when a mined transaction has a failed status
	ErrReverted = errors.New("transaction reverted")

	// ErrConfirmationTimeout is returned when a transaction isn't mined within the block deadline
	ErrConfirmationTimeout = errors.New("confirmation timeout")
)

// ErrorKind classifies a failed migration step
type ErrorKind string

const (
	ConnectionError ErrorKind = "ConnectionError"
	LinkError       ErrorKind = "LinkError"
	DeployError     ErrorKind = "DeployError"
	CallError       ErrorKind = "CallError"
	ConfigError     ErrorKind = "ConfigError"
)

var kindSentinels = map[ErrorKind]error{
	ConnectionError: ErrConnection,
	LinkError:       ErrLink,
	DeployError:     ErrDeploy,
	CallError:       ErrCall,
	ConfigError:     ErrConfig,
}

// StepError carries enough context for an operator to decide whether to
// resume, redeploy or abandon a run.
type StepError struct {
	Kind     ErrorKind
	Index    int // -1 when no step was being processed
	Step     *Step
	Contract string
	TxHash   common.Hash
	Err      error
}

func (e *StepError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Index >= 0 {
		fmt.Fprintf(&b, " at step %d", e.Index)
		if e.Step != nil {
			fmt.Fprintf(&b, " (%s)", e.Step)
		}
	}
	if e.Contract != "" && (e.Step == nil || e.Index < 0) {
		fmt.Fprintf(&b, " [%s]", e.Contract)
	}
	if e.TxHash != (common.Hash{}) {
		fmt.Fprintf(&b, " tx %s", e.TxHash.Hex())
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error kind, so errors.Is(err, ErrDeploy) works
func (e *StepError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// HasTx reports whether a transaction was submitted before the failure
func (e *StepError) HasTx() bool {
	return e.TxHash != (common.Hash{})
}

// NewStepError builds a StepError for the step at index
func NewStepError(kind ErrorKind, index int, step *Step, err error) *StepError {
	se := &StepError{
		Kind:  kind,
		Index: index,
		Step:  step,
		Err:   err,
	}
	if step != nil {
		se.Contract = step.Contract
	}
	return se
}

// ValidationErrors collects every static problem found in a migration
type ValidationErrors []*StepError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = "  - " + err.Error()
	}
	return fmt.Sprintf("migration has %d problem(s):\n%s", len(e), strings.Join(msgs, "\n"))
}

func (e ValidationErrors) Is(target error) bool {
	return target == ErrConfig
}

// First returns the earliest problem by step index
func (e ValidationErrors) First() *StepError {
	if len(e) == 0 {
		return nil
	}
	return e[0]
}
