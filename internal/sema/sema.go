// Package sema implements the semantic analysis pass of spec.md §4.7: a
// tree walk over the already-parsed AST that resolves every expression's
// type (usual arithmetic conversions, integer promotion), checks lvalue-
// ness for assignment/address-of/increment targets and validates control
// flow (break/continue nesting, return-type agreement). It does not check
// that goto targets exist, and it does not fold constant expressions:
// the parser folds array bounds, enumerator values and bit-field widths,
// lowering evaluates case labels, and internal/optimize folds the rest.
//
// The overall phase shape — a single Analyzer walking the whole program
// after parsing, collecting errors into a flat list, never mutating
// structure, only annotating it — mirrors the teacher's
// lang/ysem/analyzer.go Analyze()/typeCheck() pipeline. What's
// generalized: the teacher's analyzer re-derives symbol tables from
// scratch in buildSymbolTables() because YAPL's parser does not build
// them; this analyzer instead relies on internal/parser having already
// populated internal/symtab during parsing (spec.md §4.3's "parsing and
// symbol-table population happen in the same pass"), so sema only
// performs lookups and type-checks, never declares.
package sema

import (
	"github.com/gmofishsauce/occ/internal/ast"
	"github.com/gmofishsauce/occ/internal/diag"
	"github.com/gmofishsauce/occ/internal/symtab"
	"github.com/gmofishsauce/occ/internal/types"
)

// Analyzer walks a translation unit, annotating expression types and
// reporting diagnostics.
type Analyzer struct {
	sink *diag.Sink
	tctx *types.Context
	syms *symtab.Table

	currentReturn *types.Type
	loopDepth     int
	switchDepth   int
	labelsGoto    map[string]diag.Loc // goto targets referenced; not checked against label definitions
}

// New creates an Analyzer.
func New(sink *diag.Sink, tctx *types.Context, syms *symtab.Table) *Analyzer {
	return &Analyzer{sink: sink, tctx: tctx, syms: syms}
}

// Analyze type-checks every declaration in tu.
func (a *Analyzer) Analyze(tu *ast.TranslationUnit) {
	for _, d := range tu.Decls {
		a.analyzeDecl(d)
	}
}

func (a *Analyzer) errorf(loc diag.Loc, format string, args ...any) {
	a.sink.Errorf(loc, format, args...)
}

// ============================================================
// Declarations
// ============================================================

func (a *Analyzer) analyzeDecl(d ast.Decl) {
	switch n := d.(type) {
	case *ast.FuncDecl:
		a.analyzeFuncDecl(n)
	case *ast.VarDecl:
		a.analyzeVarDecl(n)
	case *ast.TypedefDecl, *ast.RecordDecl, *ast.EnumDecl, *ast.AsmDecl:
		// nothing further to check: types are complete by parse time,
		// and asm text is opaque per spec.md's inline-asm Non-goal.
	}
}

func (a *Analyzer) analyzeVarDecl(n *ast.VarDecl) {
	if n.Init == nil {
		return
	}
	if lst, ok := n.Init.(*ast.InitListExpr); ok {
		a.analyzeInitList(lst, n.Type)
		return
	}
	a.analyzeExpr(n.Init)
	if !a.assignable(n.Type, n.Init.GetType()) {
		a.errorf(n.Init.GetLoc(), "cannot initialize %s with incompatible type", n.Name)
	}
}

func (a *Analyzer) analyzeInitList(lst *ast.InitListExpr, target *types.Type) {
	for _, e := range lst.Elems {
		if nested, ok := e.(*ast.InitListExpr); ok {
			elemType := target
			if target != nil && target.IsArray() {
				elemType = target.Elem
			}
			a.analyzeInitList(nested, elemType)
			continue
		}
		a.analyzeExpr(e)
	}
}

func (a *Analyzer) analyzeFuncDecl(n *ast.FuncDecl) {
	if n.Body == nil {
		return // prototype only
	}
	prevReturn := a.currentReturn
	a.currentReturn = n.Type.Return
	a.labelsGoto = map[string]diag.Loc{}

	// n.Body.Scope already chains to n.Scope (the parameter scope), so
	// entering it alone makes both params and body locals visible.
	prevScope := a.syms.Enter(n.Body.Scope)
	a.analyzeBlock(n.Body)
	a.syms.Leave(prevScope)

	a.currentReturn = prevReturn
}

// ============================================================
// Statements
// ============================================================

func (a *Analyzer) analyzeBlock(b *ast.BlockStmt) {
	for _, item := range b.Items {
		a.analyzeStmt(item)
	}
}

func (a *Analyzer) analyzeStmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.BlockStmt:
		prevScope := a.syms.Enter(n.Scope)
		a.analyzeBlock(n)
		a.syms.Leave(prevScope)
	case *ast.DeclStmt:
		a.analyzeDecl(n.D)
	case *ast.ExprStmt:
		if n.X != nil {
			a.analyzeExpr(n.X)
		}
	case *ast.IfStmt:
		a.analyzeExpr(n.Cond)
		a.requireScalar(n.Cond)
		a.analyzeStmt(n.Then)
		if n.Else != nil {
			a.analyzeStmt(n.Else)
		}
	case *ast.WhileStmt:
		a.analyzeExpr(n.Cond)
		a.requireScalar(n.Cond)
		a.loopDepth++
		a.analyzeStmt(n.Body)
		a.loopDepth--
	case *ast.DoStmt:
		a.loopDepth++
		a.analyzeStmt(n.Body)
		a.loopDepth--
		a.analyzeExpr(n.Cond)
		a.requireScalar(n.Cond)
	case *ast.ForStmt:
		prevScope := a.syms.Enter(n.Scope)
		if n.Init != nil {
			a.analyzeStmt(n.Init)
		}
		if n.Cond != nil {
			a.analyzeExpr(n.Cond)
			a.requireScalar(n.Cond)
		}
		if n.Post != nil {
			a.analyzeExpr(n.Post)
		}
		a.loopDepth++
		a.analyzeStmt(n.Body)
		a.loopDepth--
		a.syms.Leave(prevScope)
	case *ast.SwitchStmt:
		a.analyzeExpr(n.Tag)
		if !n.Tag.GetType().IsIntegral() {
			a.errorf(n.Tag.GetLoc(), "switch expression must have integral type")
		}
		a.switchDepth++
		a.analyzeStmt(n.Body)
		a.switchDepth--
	case *ast.CaseStmt:
		if a.switchDepth == 0 {
			a.errorf(n.Loc, "case label not within a switch statement")
		}
		a.analyzeExpr(n.Value)
		a.analyzeStmt(n.Body)
	case *ast.DefaultStmt:
		if a.switchDepth == 0 {
			a.errorf(n.Loc, "default label not within a switch statement")
		}
		a.analyzeStmt(n.Body)
	case *ast.ReturnStmt:
		a.analyzeReturn(n)
	case *ast.BreakStmt:
		if a.loopDepth == 0 && a.switchDepth == 0 {
			a.errorf(n.Loc, "break statement not within a loop or switch")
		}
	case *ast.ContinueStmt:
		if a.loopDepth == 0 {
			a.errorf(n.Loc, "continue statement not within a loop")
		}
	case *ast.GotoStmt:
		a.labelsGoto[n.Label] = n.Loc
	case *ast.LabelStmt:
		a.analyzeStmt(n.Stmt)
	case *ast.AsmStmt:
		// opaque text, nothing to check
	}
}

func (a *Analyzer) analyzeReturn(n *ast.ReturnStmt) {
	if n.Value == nil {
		if a.currentReturn != nil && !a.currentReturn.IsVoid() {
			a.errorf(n.Loc, "non-void function should return a value")
		}
		return
	}
	a.analyzeExpr(n.Value)
	if a.currentReturn != nil && a.currentReturn.IsVoid() {
		a.errorf(n.Value.GetLoc(), "void function should not return a value")
		return
	}
	if a.currentReturn != nil && !a.assignable(a.currentReturn, n.Value.GetType()) {
		a.errorf(n.Value.GetLoc(), "return value type does not match function return type")
	}
}

func (a *Analyzer) requireScalar(e ast.Expr) {
	t := e.GetType()
	if t != nil && !t.IsScalar() {
		a.errorf(e.GetLoc(), "controlling expression must have scalar type")
	}
}

// ============================================================
// Expressions
// ============================================================

// analyzeExpr resolves e's type bottom-up, per spec.md §4.7's Usual
// Arithmetic Conversions and integer-promotion rules.
func (a *Analyzer) analyzeExpr(e ast.Expr) {
	switch n := e.(type) {
	case *ast.LiteralExpr:
		a.analyzeLiteral(n)
	case *ast.IdentExpr:
		a.analyzeIdent(n)
	case *ast.BinaryExpr:
		a.analyzeBinary(n)
	case *ast.AssignExpr:
		a.analyzeAssign(n)
	case *ast.UnaryExpr:
		a.analyzeUnary(n)
	case *ast.PostfixExpr:
		a.analyzeExpr(n.Operand)
		if !a.isLvalue(n.Operand) {
			a.errorf(n.Loc, "postfix increment/decrement requires an lvalue")
		}
		n.SetType(n.Operand.GetType())
	case *ast.CastExpr:
		a.analyzeExpr(n.Operand)
		n.SetType(n.TargetType)
	case *ast.CallExpr:
		a.analyzeCall(n)
	case *ast.IndexExpr:
		a.analyzeIndex(n)
	case *ast.FieldExpr:
		a.analyzeField(n)
	case *ast.SizeofExprExpr:
		a.analyzeExpr(n.Operand)
		n.SetType(a.tctx.ULong())
	case *ast.SizeofTypeExpr:
		n.SetType(a.tctx.ULong())
	case *ast.CondExpr:
		a.analyzeCond(n)
	case *ast.CommaExpr:
		a.analyzeExpr(n.Left)
		a.analyzeExpr(n.Right)
		n.SetType(n.Right.GetType())
	case *ast.InitListExpr:
		for _, el := range n.Elems {
			a.analyzeExpr(el)
		}
	}
}

func (a *Analyzer) analyzeLiteral(n *ast.LiteralExpr) {
	switch n.Kind {
	case ast.LitInt:
		n.SetType(a.tctx.Int())
	case ast.LitFloat:
		n.SetType(a.tctx.Double())
	case ast.LitChar:
		n.SetType(a.tctx.Char())
	case ast.LitString:
		n.SetType(a.tctx.NewPointer(a.tctx.Char()))
	}
}

func (a *Analyzer) analyzeIdent(n *ast.IdentExpr) {
	sym := a.syms.LookupOrdinary(n.Name)
	if sym == nil {
		a.errorf(n.Loc, "use of undeclared identifier %q", n.Name)
		n.SetType(a.tctx.Int())
		return
	}
	sym.Used = true
	n.SetType(sym.Type)
}

func (a *Analyzer) analyzeBinary(n *ast.BinaryExpr) {
	a.analyzeExpr(n.Left)
	a.analyzeExpr(n.Right)
	lt, rt := n.Left.GetType(), n.Right.GetType()
	if lt == nil || rt == nil {
		return
	}
	if n.Op.IsComparisonOrLogical() {
		n.SetType(a.tctx.Int())
		return
	}
	if lt.IsPointer() || rt.IsPointer() {
		if lt.IsPointer() {
			n.SetType(lt)
		} else {
			n.SetType(rt)
		}
		return
	}
	n.SetType(a.tctx.UsualArithmeticConversions(lt, rt))
}

func (a *Analyzer) analyzeAssign(n *ast.AssignExpr) {
	a.analyzeExpr(n.LHS)
	a.analyzeExpr(n.RHS)
	if !a.isLvalue(n.LHS) {
		a.errorf(n.GetLoc(), "assignment requires a modifiable lvalue")
	}
	n.SetType(n.LHS.GetType())
	if n.CompoundOp == nil && !a.assignable(n.LHS.GetType(), n.RHS.GetType()) {
		a.errorf(n.RHS.GetLoc(), "incompatible types in assignment")
	}
}

func (a *Analyzer) analyzeUnary(n *ast.UnaryExpr) {
	a.analyzeExpr(n.Operand)
	ot := n.Operand.GetType()
	switch n.Op {
	case ast.UnaryAddr:
		if !a.isLvalue(n.Operand) {
			a.errorf(n.Loc, "cannot take the address of a non-lvalue")
		}
		if ot != nil {
			n.SetType(a.tctx.NewPointer(ot))
		}
	case ast.UnaryDeref:
		if ot != nil && ot.IsPointer() {
			n.SetType(ot.Pointee)
		} else {
			a.errorf(n.Loc, "indirection requires a pointer operand")
			n.SetType(a.tctx.Int())
		}
	case ast.UnaryPreInc, ast.UnaryPreDec:
		if !a.isLvalue(n.Operand) {
			a.errorf(n.Loc, "increment/decrement requires an lvalue")
		}
		n.SetType(ot)
	case ast.UnaryLNot:
		n.SetType(a.tctx.Int())
	default:
		if ot != nil {
			n.SetType(a.tctx.Promote(ot))
		}
	}
}

func (a *Analyzer) analyzeCall(n *ast.CallExpr) {
	a.analyzeExpr(n.Func)
	for _, arg := range n.Args {
		a.analyzeExpr(arg)
	}
	ft := n.Func.GetType()
	if ft == nil {
		return
	}
	if ft.IsPointer() {
		ft = ft.Pointee
	}
	if ft == nil || !ft.IsFunction() {
		a.errorf(n.Loc, "called object is not a function")
		n.SetType(a.tctx.Int())
		return
	}
	if !ft.Variadic && len(n.Args) != len(ft.Params) {
		a.errorf(n.Loc, "function call argument count mismatch")
	}
	n.SetType(ft.Return)
}

func (a *Analyzer) analyzeIndex(n *ast.IndexExpr) {
	a.analyzeExpr(n.Array)
	a.analyzeExpr(n.Index)
	t := n.Array.GetType()
	if t == nil {
		return
	}
	if t.IsArray() {
		n.SetType(t.Elem)
		return
	}
	if t.IsPointer() {
		n.SetType(t.Pointee)
		return
	}
	a.errorf(n.Loc, "subscripted value is not an array or pointer")
	n.SetType(a.tctx.Int())
}

func (a *Analyzer) analyzeField(n *ast.FieldExpr) {
	a.analyzeExpr(n.Object)
	t := n.Object.GetType()
	if t == nil {
		return
	}
	if n.IsArrow {
		if !t.IsPointer() {
			a.errorf(n.Loc, "-> requires a pointer to a struct or union")
			return
		}
		t = t.Pointee
	}
	if !t.IsRecord() {
		a.errorf(n.Loc, "member reference requires a struct or union")
		return
	}
	for _, f := range t.Fields {
		if f.Name == n.Field {
			n.SetType(f.Type)
			return
		}
	}
	a.errorf(n.Loc, "no member named %q", n.Field)
}

func (a *Analyzer) analyzeCond(n *ast.CondExpr) {
	a.analyzeExpr(n.Cond)
	a.requireScalar(n.Cond)
	a.analyzeExpr(n.Then)
	a.analyzeExpr(n.Else)
	lt, rt := n.Then.GetType(), n.Else.GetType()
	if lt == nil || rt == nil {
		return
	}
	if lt.IsArithmetic() && rt.IsArithmetic() {
		n.SetType(a.tctx.UsualArithmeticConversions(lt, rt))
		return
	}
	n.SetType(lt)
}

// isLvalue reports whether e denotes an object that can appear on the
// left of `=` or as the operand of `&`/`++`/`--` (spec.md §4.7: "an
// lvalue is an identifier denoting an object, or an indirection,
// subscript or member-access expression").
func (a *Analyzer) isLvalue(e ast.Expr) bool {
	switch n := e.(type) {
	case *ast.IdentExpr:
		return true
	case *ast.UnaryExpr:
		return n.Op == ast.UnaryDeref
	case *ast.IndexExpr:
		return true
	case *ast.FieldExpr:
		return true
	default:
		return false
	}
}

// assignable reports whether a value of type src can be assigned/passed
// to a destination of type dst (spec.md §4.7's assignment compatibility:
// arithmetic-to-arithmetic with implicit conversion, pointer-to-
// compatible-pointer, and null-pointer-constant-to-any-pointer).
func (a *Analyzer) assignable(dst, src *types.Type) bool {
	if dst == nil || src == nil {
		return true // already reported elsewhere
	}
	if dst.IsArithmetic() && src.IsArithmetic() {
		return true
	}
	if dst.IsPointer() && src.IsPointer() {
		return true
	}
	if dst.IsPointer() && src.IsIntegral() {
		return true // permits the 0 / NULL case; spec.md does not require stricter checking
	}
	return dst.Equal(src)
}
