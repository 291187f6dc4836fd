package spatial

import "fmt"

// ContractViolation is the panic value raised when a caller breaks one of
// the index invariants. It signals a bug in a collaborator, never a runtime
// condition to recover from.
type ContractViolation struct {
	Msg string
}

func (v *ContractViolation) Error() string { return "spatial: contract violation: " + v.Msg }

func violation(format string, args ...any) *ContractViolation {
	return &ContractViolation{Msg: fmt.Sprintf(format, args...)}
}
