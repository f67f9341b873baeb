// Package optimize implements the leveled AST pass manager of spec.md
// §4.8: a fixed ordered list of mutating passes, run to a fixpoint per
// optimization level, each pass reporting whether it changed anything so
// the manager knows when to stop.
//
// The "run until no pass reports a change" fixpoint loop is the teacher's
// lang/ypeep/ypeep.go idiom (its peephole optimizer's main loop tracks a
// `changed` bool per iteration and repeats until a full pass makes no
// further changes); generalized here from a single textual pass over
// assembly lines to a registry of typed AST-mutating passes selected by
// optimization level.
package optimize

import "github.com/gmofishsauce/occ/internal/ast"

// Level selects which passes run (spec.md §4.8: "-O0 disables the
// optimizer entirely; -O1 enables cheap local passes; -O2 adds passes
// that need whole-function context").
type Level int

const (
	O0 Level = iota
	O1
	O2
)

// Pass mutates a function body in place, returning whether it changed
// anything.
type Pass struct {
	Name  string
	MinLevel Level
	Run   func(*ast.FuncDecl) bool
}

// Manager owns the ordered pass list and runs it to a fixpoint.
type Manager struct {
	passes []Pass
}

// NewManager builds the standard pass pipeline.
func NewManager() *Manager {
	return &Manager{passes: []Pass{
		{Name: "normalize-comma", MinLevel: O1, Run: normalizeCommaPass},
		{Name: "fold-constants", MinLevel: O1, Run: foldConstantsPass},
		{Name: "simplify-identities", MinLevel: O1, Run: simplifyIdentitiesPass},
		{Name: "eliminate-dead-branches", MinLevel: O2, Run: eliminateDeadBranchesPass},
		{Name: "strength-reduce", MinLevel: O2, Run: strengthReducePass},
	}}
}

// maxFixpointIterations bounds the fixpoint loop; a well-behaved pass set
// converges in a handful of iterations, and this is a backstop against a
// pass pair that oscillates rather than a tuned constant.
const maxFixpointIterations = 32

// Run applies every pass enabled at level to fn, repeating the whole
// ordered list until an iteration makes no change (spec.md §4.8:
// "passes run to a fixpoint: repeat the full ordered list until one full
// pass over it makes no further change").
func (m *Manager) Run(fn *ast.FuncDecl, level Level) {
	if level == O0 || fn.Body == nil {
		return
	}
	for i := 0; i < maxFixpointIterations; i++ {
		changed := false
		for _, pass := range m.passes {
			if level < pass.MinLevel {
				continue
			}
			if pass.Run(fn) {
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

// RunProgram applies the pass pipeline to every function definition in
// tu.
func (m *Manager) RunProgram(tu *ast.TranslationUnit, level Level) {
	for _, d := range tu.Decls {
		if fn, ok := d.(*ast.FuncDecl); ok {
			m.Run(fn, level)
		}
	}
}

// walkStmts applies visit to every statement reachable from s, including
// s itself, depth-first.
func walkStmts(s ast.Stmt, visit func(ast.Stmt)) {
	if s == nil {
		return
	}
	visit(s)
	switch n := s.(type) {
	case *ast.BlockStmt:
		for _, item := range n.Items {
			walkStmts(item, visit)
		}
	case *ast.IfStmt:
		walkStmts(n.Then, visit)
		walkStmts(n.Else, visit)
	case *ast.WhileStmt:
		walkStmts(n.Body, visit)
	case *ast.DoStmt:
		walkStmts(n.Body, visit)
	case *ast.ForStmt:
		walkStmts(n.Init, visit)
		walkStmts(n.Body, visit)
	case *ast.SwitchStmt:
		walkStmts(n.Body, visit)
	case *ast.CaseStmt:
		walkStmts(n.Body, visit)
	case *ast.DefaultStmt:
		walkStmts(n.Body, visit)
	case *ast.LabelStmt:
		walkStmts(n.Stmt, visit)
	}
}

// exprsOf returns the direct child expressions a statement owns, used by
// passes that only need to rewrite expressions in place.
func exprsOf(s ast.Stmt) []*ast.Expr {
	switch n := s.(type) {
	case *ast.ExprStmt:
		if n.X != nil {
			return []*ast.Expr{&n.X}
		}
	case *ast.IfStmt:
		return []*ast.Expr{&n.Cond}
	case *ast.WhileStmt:
		return []*ast.Expr{&n.Cond}
	case *ast.DoStmt:
		return []*ast.Expr{&n.Cond}
	case *ast.ForStmt:
		var out []*ast.Expr
		if n.Cond != nil {
			out = append(out, &n.Cond)
		}
		if n.Post != nil {
			out = append(out, &n.Post)
		}
		return out
	case *ast.SwitchStmt:
		return []*ast.Expr{&n.Tag}
	case *ast.ReturnStmt:
		if n.Value != nil {
			return []*ast.Expr{&n.Value}
		}
	}
	return nil
}
