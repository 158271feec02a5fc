package linux

import (
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"

	serr "sandboxrun/errors"
)

// Seccomp constants. The PR_* and SECCOMP_MODE_FILTER values come from
// golang.org/x/sys/unix; the seccomp return-action values below are not
// exposed there (the package has no seccomp-specific header), so they stay
// hand-declared per the kernel UAPI.
const (
	SECCOMP_MODE_FILTER      = unix.SECCOMP_MODE_FILTER
	SECCOMP_RET_KILL_PROCESS = 0x80000000
	SECCOMP_RET_KILL_THREAD  = 0x00000000
	SECCOMP_RET_TRAP         = 0x00030000
	SECCOMP_RET_ERRNO        = 0x00050000
	SECCOMP_RET_TRACE        = 0x7ff00000
	SECCOMP_RET_LOG          = 0x7ffc0000
	SECCOMP_RET_ALLOW        = 0x7fff0000

	PR_SET_NO_NEW_PRIVS = unix.PR_SET_NO_NEW_PRIVS
	PR_SET_SECCOMP      = unix.PR_SET_SECCOMP
)

// BPF opcodes.
const (
	BPF_LD  = 0x00
	BPF_JMP = 0x05
	BPF_RET = 0x06
	BPF_ALU = 0x04
	BPF_W   = 0x00
	BPF_ABS = 0x20
	BPF_JEQ = 0x10
	BPF_JGE = 0x30
	BPF_JGT = 0x20
	BPF_JA  = 0x00
	BPF_AND = 0x50
	BPF_K   = 0x00
)

// Seccomp data offsets.
const (
	offsetNR   = 0
	offsetArch = 4
)

// Architecture audit values.
const (
	AUDIT_ARCH_X86_64  = 0xc000003e
	AUDIT_ARCH_AARCH64 = 0xc00000b7
)

// maxProgramLength is the kernel's hard cap on seccomp-BPF instruction
// count (BPF_MAXINSNS / seccomp filter limit).
const maxProgramLength = 4096

// sockFprog is the BPF program structure passed to prctl(2).
type sockFprog struct {
	Len    uint16
	Filter *sockFilter
}

// sockFilter is a single classic-BPF instruction.
type sockFilter struct {
	Code uint16
	Jt   uint8
	Jf   uint8
	K    uint32
}

func bpfStmt(code uint16, k uint32) sockFilter {
	return sockFilter{Code: code, K: k}
}

func bpfJump(code uint16, k uint32, jt, jf uint8) sockFilter {
	return sockFilter{Code: code, Jt: jt, Jf: jf, K: k}
}

// targetAuditArch returns the audit architecture constant for the host
// architecture. Only x86_64 and aarch64 are supported.
func targetAuditArch() (uint32, error) {
	switch runtime.GOARCH {
	case "amd64":
		return AUDIT_ARCH_X86_64, nil
	case "arm64":
		return AUDIT_ARCH_AARCH64, nil
	default:
		return 0, serr.ErrUnsupportedArch
	}
}

// littleEndian reports whether the host is little-endian, determining which
// half of a 64-bit seccomp argument holds the least-significant bits.
func littleEndian() bool {
	var x uint16 = 1
	b := (*[2]byte)(unsafe.Pointer(&x))
	return b[0] == 1
}

func actionToRet(a SeccompAction) uint32 {
	switch a.Kind {
	case ActionAllow:
		return SECCOMP_RET_ALLOW
	case ActionKill:
		// Modern kernels distinguish KILL_PROCESS from KILL_THREAD; this
		// compiler always emits KILL_PROCESS so a sandboxed target that
		// trips a deny-listed syscall terminates entirely rather than just
		// the offending thread.
		return SECCOMP_RET_KILL_PROCESS
	case ActionLog:
		return SECCOMP_RET_LOG
	case ActionTrap:
		return SECCOMP_RET_TRAP
	case ActionErrno:
		return SECCOMP_RET_ERRNO | (a.Value & 0xffff)
	case ActionTrace:
		return SECCOMP_RET_TRACE | (a.Value & 0xffff)
	default:
		return SECCOMP_RET_KILL_PROCESS
	}
}

// label identifies a symbolic jump target resolved during assembly.
type label int

// asmOp is one not-yet-positioned instruction. Jump ops reference symbolic
// labels instead of raw offsets; assemble() resolves them to byte offsets,
// inserting long-jump trampolines where an 8-bit jt/jf field would overflow.
type asmOp struct {
	instr   sockFilter
	isJump  bool
	jtLabel label
	jfLabel label
	hasJf   bool // false for unconditional (JA) jumps, which use K only
	isMark  bool // true if this op is a pure label marker, not an instruction
	mark    label
}

// assembler builds a seccomp-bpf program from symbolic operations.
type assembler struct {
	ops      []asmOp
	nextMark label
}

func newAssembler() *assembler {
	return &assembler{}
}

func (a *assembler) newLabel() label {
	a.nextMark++
	return a.nextMark
}

func (a *assembler) stmt(code uint16, k uint32) {
	a.ops = append(a.ops, asmOp{instr: bpfStmt(code, k)})
}

func (a *assembler) jumpEq(k uint32, jt, jf label) {
	a.ops = append(a.ops, asmOp{isJump: true, hasJf: true, jtLabel: jt, jfLabel: jf,
		instr: sockFilter{Code: BPF_JMP | BPF_JEQ | BPF_K, K: k}})
}

// assemble resolves all symbolic labels to concrete jt/jf/k offsets,
// inserting a long-jump trampoline whenever a conditional jump's offset
// would overflow the 8-bit jt/jf field. A trampoline is a single
// unconditional JA placed immediately after the jump, which carries the
// full 32-bit offset the conditional jump itself cannot encode; the
// conditional jump is redirected to land one instruction past itself (onto
// the trampoline) instead of at the real, far-away target.
func (a *assembler) assemble() ([]sockFilter, error) {
	// Each pass records every mark's instruction position, then expands
	// overflowing jumps; mark ops are kept so later passes can still resolve
	// them. Iterate until stable because inserting trampolines shifts every
	// later label.
	for pass := 0; pass < 8; pass++ {
		pos := 0
		marks := make(map[label]int)
		for _, op := range a.ops {
			if op.isMark {
				marks[op.mark] = pos
				continue
			}
			pos++
		}

		changed := false
		var expanded []asmOp
		i := -1
		for _, op := range a.ops {
			if !op.isMark {
				i++
			}
			if op.isMark || !op.isJump {
				expanded = append(expanded, op)
				continue
			}
			if !op.hasJf {
				// JA's K field is a full-width relative offset; never overflows.
				expanded = append(expanded, op)
				continue
			}
			jtOff := marks[op.jtLabel] - (i + 1)
			jfOff := marks[op.jfLabel] - (i + 1)
			if fits(jtOff) && fits(jfOff) {
				expanded = append(expanded, op)
				continue
			}
			// Needs a trampoline: redirect whichever side overflows to land
			// on a nearby JA instead of the real, far-away target; the JA's
			// K field carries the full offset. Each redirected side gets its
			// own trampoline, appended directly after this instruction.
			changed = true
			newOp := op
			var trampolines []asmOp
			if !fits(jfOff) {
				near := a.newLabel()
				newOp.jfLabel = near
				trampolines = append(trampolines,
					asmOp{isMark: true, mark: near},
					asmOp{isJump: true, hasJf: false, jtLabel: op.jfLabel,
						instr: sockFilter{Code: BPF_JMP | BPF_JA}})
			}
			if !fits(jtOff) {
				near := a.newLabel()
				newOp.jtLabel = near
				trampolines = append(trampolines,
					asmOp{isMark: true, mark: near},
					asmOp{isJump: true, hasJf: false, jtLabel: op.jtLabel,
						instr: sockFilter{Code: BPF_JMP | BPF_JA}})
			}
			expanded = append(expanded, newOp)
			expanded = append(expanded, trampolines...)
		}
		if !changed {
			break
		}
		a.ops = append([]asmOp{}, expanded...)
	}

	// Final resolution pass over the stabilized program.
	var final []asmOp
	pos := 0
	marks := make(map[label]int)
	for _, op := range a.ops {
		if op.isMark {
			marks[op.mark] = pos
			continue
		}
		final = append(final, op)
		pos++
	}

	out := make([]sockFilter, 0, len(final))
	for i, op := range final {
		if !op.isJump {
			out = append(out, op.instr)
			continue
		}
		instr := op.instr
		if op.hasJf {
			jt := marks[op.jtLabel] - (i + 1)
			jf := marks[op.jfLabel] - (i + 1)
			if !fits(jt) || !fits(jf) {
				return nil, serr.Wrap(fmt.Errorf("jump offset still overflows after trampoline pass"), serr.ErrSeccompIntoBpf, "assemble")
			}
			instr.Jt = uint8(jt)
			instr.Jf = uint8(jf)
		} else {
			instr.K = uint32(marks[op.jtLabel] - (i + 1))
		}
		out = append(out, instr)
	}
	return out, nil
}

func fits(off int) bool { return off >= 0 && off <= 255 }

// argOffset is the byte offset of argument n within struct seccomp_data.
func argOffset(n int) uint32 { return 16 + uint32(n)*8 }

func halfOffsets(n int) (msb, lsb uint32) {
	base := argOffset(n)
	if littleEndian() {
		return base, base + 4
	}
	return base + 4, base
}

// compareOp returns the BPF comparison opcode used for the non-equality,
// non-masked comparators. Eq/Ne/MaskedEq are handled specially since they
// compile to both-halves equality checks.
func compareOp(c Comparator) uint16 {
	switch c {
	case OpGe:
		return BPF_JMP | BPF_JGE | BPF_K
	case OpGt:
		return BPF_JMP | BPF_JGT | BPF_K
	default:
		return BPF_JMP | BPF_JEQ | BPF_K
	}
}

// CompileFilter translates a SeccompFilter into a BPF instruction stream per
// the fixed ABI: an architecture gate, a per-syscall dispatch chain in
// filter order, and a terminal RET of the default action.
func CompileFilter(f *SeccompFilter) ([]sockFilter, error) {
	if f == nil {
		return nil, serr.ErrEmptyRulesVector
	}
	for _, sc := range f.Syscalls {
		if len(sc.Rules) == 0 {
			return nil, serr.ErrEmptyRulesVector
		}
		for _, r := range sc.Rules {
			for _, c := range r.Conditions {
				if c.Arg < 0 || c.Arg > 5 {
					return nil, serr.ErrInvalidArgumentNumber
				}
			}
		}
	}

	arch, err := targetAuditArch()
	if err != nil {
		return nil, err
	}

	asm := newAssembler()

	// Architecture gate.
	killArch := asm.newLabel()
	dispatch := asm.newLabel()
	asm.stmt(BPF_LD|BPF_W|BPF_ABS, offsetArch)
	asm.jumpEq(arch, dispatch, killArch)
	asm.ops = append(asm.ops, asmOp{isMark: true, mark: killArch})
	asm.stmt(BPF_RET|BPF_K, SECCOMP_RET_KILL_PROCESS)
	asm.ops = append(asm.ops, asmOp{isMark: true, mark: dispatch})

	terminal := asm.newLabel()

	for _, sc := range f.Syscalls {
		chainStart := asm.newLabel()
		nextChain := asm.newLabel()
		asm.ops = append(asm.ops, asmOp{isMark: true, mark: chainStart})
		asm.stmt(BPF_LD|BPF_W|BPF_ABS, offsetNR)
		ruleStart := asm.newLabel()
		asm.jumpEq(sc.Nr, ruleStart, nextChain)
		asm.ops = append(asm.ops, asmOp{isMark: true, mark: ruleStart})

		for ri, rule := range sc.Rules {
			var failNext label
			if ri == len(sc.Rules)-1 {
				failNext = nextChain
			} else {
				failNext = asm.newLabel()
			}
			if err := compileRule(asm, rule, failNext); err != nil {
				return nil, err
			}
			if ri != len(sc.Rules)-1 {
				asm.ops = append(asm.ops, asmOp{isMark: true, mark: failNext})
			}
		}
		asm.ops = append(asm.ops, asmOp{isMark: true, mark: nextChain})
	}

	asm.ops = append(asm.ops, asmOp{isMark: true, mark: terminal})
	asm.stmt(BPF_RET|BPF_K, actionToRet(f.Default))

	prog, err := asm.assemble()
	if err != nil {
		return nil, err
	}
	if len(prog) >= maxProgramLength {
		return nil, serr.ErrFilterTooLarge
	}
	return prog, nil
}

// compileRule emits a rule's conditions (each may require up to two 32-bit
// compares) followed by RET action on full match, falling through to
// failNext the instant any condition fails.
func compileRule(asm *assembler, rule SeccompRule, failNext label) error {
	pass := asm.newLabel()
	for _, cond := range rule.Conditions {
		msbOff, lsbOff := halfOffsets(cond.Arg)

		switch cond.Comparator {
		case OpEq, OpMaskedEq:
			mask := cond.Mask
			if cond.Comparator == OpEq {
				mask = ^uint64(0)
			}
			lsbMask := uint32(mask)
			lsbVal := uint32(cond.Value) & lsbMask
			lsbOk := asm.newLabel()
			asm.stmt(BPF_LD|BPF_W|BPF_ABS, lsbOff)
			if lsbMask != 0xffffffff {
				asm.stmt(BPF_ALU|BPF_AND|BPF_K, lsbMask)
			}
			if cond.Width == QWORD {
				asm.jumpEq(lsbVal, lsbOk, failNext)
				asm.ops = append(asm.ops, asmOp{isMark: true, mark: lsbOk})
				msbMask := uint32(mask >> 32)
				msbVal := uint32(cond.Value>>32) & msbMask
				msbOk := asm.newLabel()
				asm.stmt(BPF_LD|BPF_W|BPF_ABS, msbOff)
				if msbMask != 0xffffffff {
					asm.stmt(BPF_ALU|BPF_AND|BPF_K, msbMask)
				}
				asm.jumpEq(msbVal, msbOk, failNext)
				asm.ops = append(asm.ops, asmOp{isMark: true, mark: msbOk})
			} else {
				asm.jumpEq(lsbVal, lsbOk, failNext)
				asm.ops = append(asm.ops, asmOp{isMark: true, mark: lsbOk})
			}
		case OpNe:
			// Equal-to-value fails the rule; anything else passes.
			lsbVal := uint32(cond.Value)
			asm.stmt(BPF_LD|BPF_W|BPF_ABS, lsbOff)
			ok := asm.newLabel()
			asm.jumpEq(lsbVal, failNext, ok)
			asm.ops = append(asm.ops, asmOp{isMark: true, mark: ok})
		case OpLt, OpLe, OpGt, OpGe:
			// Approximate 64-bit ordering by comparing the MSB half with the
			// strict comparator (it alone decides unless equal), then the
			// LSB half with the original comparator when the MSB ties. Only
			// exercised for QWORD conditions in this filter set; DWORD-width
			// ordering conditions compare the LSB half directly.
			val := uint32(cond.Value)
			if cond.Width == DWORD {
				ok := asm.newLabel()
				asm.stmt(BPF_LD|BPF_W|BPF_ABS, lsbOff)
				asm.ops = append(asm.ops, asmOp{isJump: true, hasJf: true,
					jtLabel: orderJt(cond.Comparator, ok, failNext),
					jfLabel: orderJf(cond.Comparator, ok, failNext),
					instr:   sockFilter{Code: compareOp(strictify(cond.Comparator)), K: val}})
				asm.ops = append(asm.ops, asmOp{isMark: true, mark: ok})
			} else {
				msbVal := uint32(cond.Value >> 32)
				tieLabel := asm.newLabel()
				ok := asm.newLabel()
				asm.stmt(BPF_LD|BPF_W|BPF_ABS, msbOff)
				asm.ops = append(asm.ops, asmOp{isJump: true, hasJf: true,
					jtLabel: tieLabel, jfLabel: orderJf(cond.Comparator, ok, failNext),
					instr: sockFilter{Code: BPF_JMP | BPF_JEQ | BPF_K, K: msbVal}})
				asm.ops = append(asm.ops, asmOp{isMark: true, mark: tieLabel})
				asm.stmt(BPF_LD|BPF_W|BPF_ABS, lsbOff)
				asm.ops = append(asm.ops, asmOp{isJump: true, hasJf: true,
					jtLabel: orderJt(cond.Comparator, ok, failNext),
					jfLabel: orderJf(cond.Comparator, ok, failNext),
					instr:   sockFilter{Code: compareOp(strictify(cond.Comparator)), K: uint32(cond.Value)}})
				asm.ops = append(asm.ops, asmOp{isMark: true, mark: ok})
			}
		}
	}
	asm.ops = append(asm.ops, asmOp{isMark: true, mark: pass})
	asm.stmt(BPF_RET|BPF_K, actionToRet(rule.Action))
	return nil
}

// strictify turns Ge/Le into their strict Gt/Lt counterparts for the
// tie-breaking MSB compare in a two-word ordering condition.
func strictify(c Comparator) Comparator {
	switch c {
	case OpGe:
		return OpGt
	case OpLe:
		return OpLt
	default:
		return c
	}
}

func orderJt(c Comparator, ok, failNext label) label {
	if c == OpGt || c == OpGe {
		return ok
	}
	return failNext
}

func orderJf(c Comparator, ok, failNext label) label {
	if c == OpGt || c == OpGe {
		return failNext
	}
	return ok
}

// InstallFilter loads a compiled program via prctl, first disabling new
// privileges (required by the kernel before an unprivileged seccomp load).
func InstallFilter(prog []sockFilter) error {
	if len(prog) == 0 {
		return serr.ErrEmptyRulesVector
	}
	if err := unix.Prctl(PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return serr.WrapWithDetail(err, serr.ErrSeccompLoad, "install", "PR_SET_NO_NEW_PRIVS")
	}
	fprog := sockFprog{
		Len:    uint16(len(prog)),
		Filter: &prog[0],
	}
	if err := unix.Prctl(PR_SET_SECCOMP, SECCOMP_MODE_FILTER, uintptr(unsafe.Pointer(&fprog)), 0, 0); err != nil {
		return serr.WrapWithDetail(err, serr.ErrSeccompLoad, "install", "PR_SET_SECCOMP")
	}
	return nil
}

// BuildDenyListFilter constructs the fixed default-allow filter with Kill
// rules for the sandbox's deny list (see DenyListSyscalls). A deny-list name
// with no syscall number on the active architecture (a legacy x86-only call
// the generic syscall ABI never gave arm64 a number for) is skipped rather
// than treated as an error — there is no syscall to deny because the kernel
// has none to invoke.
func BuildDenyListFilter() (*SeccompFilter, error) {
	f := &SeccompFilter{Default: Allow()}
	for _, name := range DenyListSyscalls {
		nr, ok := SyscallNumber(name)
		if !ok {
			if runtime.GOARCH == "arm64" {
				continue
			}
			return nil, serr.WrapWithDetail(fmt.Errorf("%s", name), serr.ErrSeccompIntoBpf, "deny-list", "unknown syscall name")
		}
		f.AddSyscall(uint32(nr), Kill())
	}
	return f, nil
}

// SyscallNumber resolves a syscall name to its number on the active
// architecture (x86_64 or aarch64 — see targetAuditArch).
func SyscallNumber(name string) (int, bool) {
	if runtime.GOARCH == "arm64" {
		n, ok := syscallMapARM64[name]
		return n, ok
	}
	n, ok := syscallMap[name]
	return n, ok
}
