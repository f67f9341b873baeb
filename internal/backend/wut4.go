package backend

import (
	"fmt"
	"io"

	"github.com/gmofishsauce/occ/internal/ir"
	"github.com/gmofishsauce/occ/internal/types"
)

// wut4Backend is the one fully-implemented backend (SPEC_FULL.md §2): a
// 16-bit vendor machine adapted wholesale from the teacher's instruction
// set and Emitter-style textual assembly writer (lang/yasm/types.go's
// register/format constants, lang/ygen/emit.go's Comment/Directive/Label/
// Instr2/Instr3 helpers). Unlike the teacher, which consumed its own flat
// string-opcode IR, Emit here walks the SSA ir.Program this module
// produces: every SSA value is assigned a stack slot at function entry
// (no register allocator — the teacher's own ygen never allocated
// registers across an expression either, relying on exactly this
// compute-into-R1-spill-to-slot discipline for its accumulator-style
// codegen), so correctness does not depend on cross-instruction register
// liveness.
type wut4Backend struct {
	model types.DataModel
}

func newWut4Backend(model types.DataModel) *wut4Backend {
	return &wut4Backend{model: model}
}

func (b *wut4Backend) Architecture() Architecture { return WUT4 }
func (b *wut4Backend) DataModel() types.DataModel  { return b.model }

// Register names, carried over verbatim from lang/ygen/ir_types.go's
// RegName table: R1..R3 are argument/return/caller-saved, R4..R6 are
// callee-saved temporaries, R7 is the stack pointer.
const (
	regZero  = 0
	regArg0  = 1
	regArg1  = 2
	regArg2  = 3
	regTemp1 = 4
	regTemp2 = 5
	regTemp3 = 6
	regSP    = 7
)

func regName(r int) string {
	return [...]string{"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7"}[r]
}

// emitter is the teacher's lang/ygen/emit.go Emitter, generalized to
// write into any io.Writer instead of a *bufio.Writer specifically.
type emitter struct {
	w          io.Writer
	labelCount int
}

func (e *emitter) Comment(format string, args ...interface{}) {
	fmt.Fprintf(e.w, "; %s\n", fmt.Sprintf(format, args...))
}

func (e *emitter) BlankLine() { fmt.Fprintln(e.w) }

func (e *emitter) Directive(dir string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintf(e.w, "    %s %v\n", dir, fmt.Sprint(args...))
	} else {
		fmt.Fprintf(e.w, "    %s\n", dir)
	}
}

func (e *emitter) Label(name string) { fmt.Fprintf(e.w, "%s:\n", name) }

func (e *emitter) Instr1(op string, a1 interface{}) { fmt.Fprintf(e.w, "    %s %v\n", op, a1) }
func (e *emitter) Instr2(op string, a1, a2 interface{}) {
	fmt.Fprintf(e.w, "    %s %v, %v\n", op, a1, a2)
}
func (e *emitter) Instr3(op string, a1, a2, a3 interface{}) {
	fmt.Fprintf(e.w, "    %s %v, %v, %v\n", op, a1, a2, a3)
}

// NewLabel mints a unique block/merge-temporary label, carried over
// directly from the teacher's own NewLabel: a bare monotonic counter
// keyed off prefix. Assembly output must be byte-reproducible across runs
// of the same input, so the label carries no run-specific entropy.
func (e *emitter) NewLabel(prefix string) string {
	label := fmt.Sprintf("L_%s%d", prefix, e.labelCount)
	e.labelCount++
	return label
}

// frame assigns a stack slot to every SSA value that needs one (every
// instruction with a non-void result, plus every parameter).
type frame struct {
	slot map[*ir.Instr]int
	paramSlot []int
	size int
}

func buildFrame(f *ir.Function, model types.DataModel) *frame {
	fr := &frame{slot: map[*ir.Instr]int{}}
	offset := 0
	for range f.Params {
		offset = types.AlignUp(offset, model.PointerWidth) + model.PointerWidth
		fr.paramSlot = append(fr.paramSlot, -offset)
	}
	for _, blk := range f.Blocks {
		for _, instr := range blk.Instrs {
			if instr.Type == nil || instr.Op == ir.OpStore {
				continue
			}
			sz := instr.Type.Size
			if sz <= 0 {
				sz = model.PointerWidth
			}
			align := instr.Type.Align
			if align <= 0 {
				align = model.PointerWidth
			}
			offset = types.AlignUp(offset, align) + sz
			fr.slot[instr] = -offset
		}
	}
	fr.size = types.AlignUp(offset, model.MaxAlign)
	return fr
}

// Emit walks prog and writes wut4 assembly text, grounded on the
// teacher's lang/ygen codegen pass (one function at a time, one basic
// block at a time, falling straight through to spill-to-slot after every
// computed value).
func (b *wut4Backend) Emit(prog *ir.Program, w io.Writer) error {
	e := &emitter{w: w}
	e.Comment("generated by occ for wut4, source %s", prog.SourceFile)
	e.BlankLine()

	for i, s := range prog.StringPool {
		e.Directive(".data")
		e.Label(fmt.Sprintf("L_str%d", i))
		e.Directive(".bytes", fmt.Sprintf("%q", s))
	}
	for _, g := range prog.Globals {
		e.Directive(".data")
		vis := "STATIC"
		if g.Linkage == ir.LinkageExternal {
			vis = "PUBLIC"
		}
		e.Comment("%s %s", vis, g.Name)
		e.Label(g.Name)
		e.Directive(".space", g.Type.Size)
	}

	e.Directive(".code")
	for _, fn := range prog.Functions {
		if !fn.IsDefined {
			continue
		}
		if err := b.emitFunction(e, fn); err != nil {
			return err
		}
	}
	return nil
}

func (b *wut4Backend) emitFunction(e *emitter, fn *ir.Function) error {
	vis := "STATIC"
	if fn.Linkage == ir.LinkageExternal {
		vis = "PUBLIC"
	}
	e.BlankLine()
	e.Comment("%s function %s", vis, fn.Name)
	e.Label(fn.Name)

	fr := buildFrame(fn, b.model)
	e.Instr2("subi", regName(regSP), fr.size)

	for pi := range fn.Params {
		off := fr.paramSlot[pi]
		argReg := [...]int{regArg0, regArg1, regArg2}
		reg := regArg0
		if pi < len(argReg) {
			reg = argReg[pi]
		}
		e.Instr3("stw", regName(reg), regName(regSP), off)
	}

	for _, blk := range fn.Blocks {
		e.Label(fn.Name + "_" + blk.Name)
		for _, instr := range blk.Instrs {
			if err := b.emitInstr(e, fr, fn, instr); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *wut4Backend) loadOperand(e *emitter, fr *frame, v ir.Value, reg int) {
	switch v.Kind {
	case ir.ConstInt:
		e.Instr2("ldi", regName(reg), v.IntVal)
	case ir.ConstNull:
		e.Instr2("ldi", regName(reg), 0)
	case ir.ParamRef:
		e.Instr3("ldw", regName(reg), regName(regSP), fr.paramSlot[v.ParamIndex])
	case ir.InstrResult:
		if v.Instr.Op == ir.OpAlloca {
			// An alloca's value is its own address, not whatever its
			// slot holds: materialize SP+offset rather than loading
			// through it.
			if off, ok := fr.slot[v.Instr]; ok {
				e.Instr2("ldi", regName(reg), off)
				e.Instr3("add", regName(reg), regName(reg), regName(regSP))
			}
		} else if off, ok := fr.slot[v.Instr]; ok {
			e.Instr3("ldw", regName(reg), regName(regSP), off)
		}
	case ir.GlobalRef:
		e.Instr2("ldi", regName(reg), v.Global.Name)
	case ir.FuncRef:
		e.Instr2("ldi", regName(reg), v.Func.Name)
	case ir.ConstString:
		e.Comment("string constant operand handled via pool index at call site")
	default:
		e.Comment("unsupported operand kind %d", v.Kind)
	}
}

func (b *wut4Backend) storeResult(e *emitter, fr *frame, instr *ir.Instr, reg int) {
	off, ok := fr.slot[instr]
	if !ok {
		return
	}
	e.Instr3("stw", regName(reg), regName(regSP), off)
}

var binIntOp = map[ir.Op]string{
	ir.OpAdd: "add", ir.OpSub: "sub", ir.OpMul: "mul",
	ir.OpDivS: "divs", ir.OpDivU: "divu", ir.OpModS: "mods", ir.OpModU: "modu",
	ir.OpAnd: "and", ir.OpOr: "or", ir.OpXor: "xor",
	ir.OpShl: "shl", ir.OpShrS: "sar", ir.OpShrU: "shr",
	ir.OpEq: "seq", ir.OpNe: "sne",
	ir.OpLtS: "slts", ir.OpLeS: "sles", ir.OpGtS: "sgts", ir.OpGeS: "sges",
	ir.OpLtU: "sltu", ir.OpLeU: "sleu", ir.OpGtU: "sgtu", ir.OpGeU: "sgeu",
}

var binFloatOp = map[ir.Op]string{
	ir.OpFAdd: "fadd", ir.OpFSub: "fsub", ir.OpFMul: "fmul", ir.OpFDiv: "fdiv",
	ir.OpFEq: "fseq", ir.OpFNe: "fsne", ir.OpFLt: "fslt", ir.OpFLe: "fsle",
	ir.OpFGt: "fsgt", ir.OpFGe: "fsge",
}

func (b *wut4Backend) emitInstr(e *emitter, fr *frame, fn *ir.Function, instr *ir.Instr) error {
	switch instr.Op {
	case ir.OpAlloca:
		// Slot already reserved by buildFrame; nothing to emit.
		return nil
	case ir.OpLoad:
		b.loadOperand(e, fr, instr.Args[0], regTemp1)
		e.Instr3("ldw", regName(regTemp1), regName(regTemp1), 0)
		b.storeResult(e, fr, instr, regTemp1)
	case ir.OpStore:
		b.loadOperand(e, fr, instr.Args[1], regTemp1) // address
		b.loadOperand(e, fr, instr.Args[0], regTemp2)  // value
		e.Instr3("stw", regName(regTemp2), regName(regTemp1), 0)
	case ir.OpGEP:
		b.loadOperand(e, fr, instr.Args[0], regTemp1)
		b.loadOperand(e, fr, instr.Args[1], regTemp2)
		e.Instr3("add", regName(regTemp1), regName(regTemp1), regName(regTemp2))
		b.storeResult(e, fr, instr, regTemp1)
	case ir.OpNeg, ir.OpFNeg, ir.OpNot:
		b.loadOperand(e, fr, instr.Args[0], regTemp1)
		mnem := "neg"
		if instr.Op == ir.OpFNeg {
			mnem = "fneg"
		} else if instr.Op == ir.OpNot {
			mnem = "not"
		}
		e.Instr2(mnem, regName(regTemp1), regName(regTemp1))
		b.storeResult(e, fr, instr, regTemp1)
	case ir.OpSExt, ir.OpZExt, ir.OpTrunc, ir.OpIntToFloat, ir.OpFloatToInt, ir.OpBitcast:
		b.loadOperand(e, fr, instr.Args[0], regTemp1)
		b.storeResult(e, fr, instr, regTemp1)
	case ir.OpCall:
		argRegs := [...]int{regArg0, regArg1, regArg2}
		for i, a := range instr.CallArgs {
			if i >= len(argRegs) {
				e.Comment("argument %d passed on stack (not modeled)", i)
				continue
			}
			b.loadOperand(e, fr, a, argRegs[i])
		}
		if instr.Callee.Kind == ir.FuncRef {
			e.Instr1("jal", instr.Callee.Func.Name)
		} else {
			b.loadOperand(e, fr, instr.Callee, regTemp1)
			e.Instr1("jalr", regName(regTemp1))
		}
		if instr.Type != nil {
			b.storeResult(e, fr, instr, regArg0)
		}
	case ir.OpBr:
		target := instr.Args[0].Block
		e.Instr1("jmp", fn.Name+"_"+target.Name)
	case ir.OpBrCond:
		b.loadOperand(e, fr, instr.Args[0], regTemp1)
		thenBlk := instr.Args[1].Block
		elseBlk := instr.Args[2].Block
		e.Instr2("brnz", regName(regTemp1), fn.Name+"_"+thenBlk.Name)
		e.Instr1("jmp", fn.Name+"_"+elseBlk.Name)
	case ir.OpRet:
		b.loadOperand(e, fr, instr.Args[0], regArg0)
		e.Instr2("addi", regName(regSP), fr.size)
		e.Instr0("ret")
	case ir.OpRetVoid:
		e.Instr2("addi", regName(regSP), fr.size)
		e.Instr0("ret")
	case ir.OpPhi:
		// Copies the first incoming value into this instruction's result
		// slot; the other incoming edges are not consulted. internal/lower
		// emits no OpPhi (it merges values through stack slots), so its
		// output never reaches this case.
		if len(instr.Incoming) > 0 {
			b.loadOperand(e, fr, instr.Incoming[0].Value, regTemp1)
			b.storeResult(e, fr, instr, regTemp1)
		}
	default:
		if mnem, ok := binIntOp[instr.Op]; ok {
			b.loadOperand(e, fr, instr.Args[0], regTemp1)
			b.loadOperand(e, fr, instr.Args[1], regTemp2)
			e.Instr3(mnem, regName(regTemp1), regName(regTemp1), regName(regTemp2))
			b.storeResult(e, fr, instr, regTemp1)
			return nil
		}
		if mnem, ok := binFloatOp[instr.Op]; ok {
			b.loadOperand(e, fr, instr.Args[0], regTemp1)
			b.loadOperand(e, fr, instr.Args[1], regTemp2)
			e.Instr3(mnem, regName(regTemp1), regName(regTemp1), regName(regTemp2))
			b.storeResult(e, fr, instr, regTemp1)
			return nil
		}
		e.Comment("unhandled opcode %d", instr.Op)
	}
	return nil
}

func (e *emitter) Instr0(op string) { fmt.Fprintf(e.w, "    %s\n", op) }
