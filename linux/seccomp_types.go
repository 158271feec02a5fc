package linux

// Width selects how many bytes of a syscall argument a condition compares.
type Width int

const (
	// DWORD compares only the least-significant 32 bits of the argument.
	DWORD Width = iota
	// QWORD compares the full 64-bit argument (both halves).
	QWORD
)

// Comparator is the relational operator a SeccompCondition applies.
type Comparator int

const (
	OpEq Comparator = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpMaskedEq
)

// SeccompCondition constrains one argument of a syscall rule.
type SeccompCondition struct {
	Arg        int // 0..5
	Width      Width
	Comparator Comparator
	Mask       uint64 // only meaningful for OpMaskedEq
	Value      uint64
}

// ActionKind enumerates the seccomp dispositions a rule or filter default
// can resolve to.
type ActionKind int

const (
	ActionAllow ActionKind = iota
	ActionErrno
	ActionKill
	ActionLog
	ActionTrace
	ActionTrap
)

// SeccompAction is the disposition applied when a rule (or the filter's
// default) matches.
type SeccompAction struct {
	Kind  ActionKind
	Value uint32 // errno for ActionErrno, trace value for ActionTrace
}

func Allow() SeccompAction         { return SeccompAction{Kind: ActionAllow} }
func Kill() SeccompAction          { return SeccompAction{Kind: ActionKill} }
func Log() SeccompAction           { return SeccompAction{Kind: ActionLog} }
func Trap() SeccompAction          { return SeccompAction{Kind: ActionTrap} }
func Errno(n uint32) SeccompAction { return SeccompAction{Kind: ActionErrno, Value: n} }
func Trace(n uint32) SeccompAction { return SeccompAction{Kind: ActionTrace, Value: n} }

// SeccompRule is a chain of AND'd conditions that, if all match, resolves to
// Action. An empty Conditions slice always matches.
type SeccompRule struct {
	Conditions []SeccompCondition
	Action     SeccompAction
}

// SyscallRules is one entry in a SeccompFilter's ordered dispatch table.
type SyscallRules struct {
	Nr    uint32
	Rules []SeccompRule
}

// SeccompFilter is an ordered map from syscall number to a rule chain, plus
// a default action applied when no chain matches. Syscalls is a slice, not a
// map, so that compilation is deterministic (iteration order is fixed).
type SeccompFilter struct {
	Syscalls []SyscallRules
	Default  SeccompAction
}

// AddSyscall appends a syscall dispatch entry built from an unconditional
// rule resolving to action — the shape used by the fixed deny-list.
func (f *SeccompFilter) AddSyscall(nr uint32, action SeccompAction) {
	f.Syscalls = append(f.Syscalls, SyscallRules{
		Nr:    nr,
		Rules: []SeccompRule{{Action: action}},
	})
}
