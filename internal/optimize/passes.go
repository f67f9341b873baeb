package optimize

import "github.com/gmofishsauce/occ/internal/ast"

// rewriteExpr recurses into *slot bottom-up, rewriting every child first
// and then *slot itself via rewrite, which returns a replacement (or the
// same node) plus whether it changed anything.
func rewriteExpr(slot *ast.Expr, rewrite func(ast.Expr) (ast.Expr, bool)) bool {
	if slot == nil || *slot == nil {
		return false
	}
	changed := false
	switch n := (*slot).(type) {
	case *ast.BinaryExpr:
		changed = rewriteExpr(&n.Left, rewrite) || changed
		changed = rewriteExpr(&n.Right, rewrite) || changed
	case *ast.AssignExpr:
		changed = rewriteExpr(&n.LHS, rewrite) || changed
		changed = rewriteExpr(&n.RHS, rewrite) || changed
	case *ast.UnaryExpr:
		changed = rewriteExpr(&n.Operand, rewrite) || changed
	case *ast.PostfixExpr:
		changed = rewriteExpr(&n.Operand, rewrite) || changed
	case *ast.CastExpr:
		changed = rewriteExpr(&n.Operand, rewrite) || changed
	case *ast.CallExpr:
		changed = rewriteExpr(&n.Func, rewrite) || changed
		for i := range n.Args {
			changed = rewriteExpr(&n.Args[i], rewrite) || changed
		}
	case *ast.IndexExpr:
		changed = rewriteExpr(&n.Array, rewrite) || changed
		changed = rewriteExpr(&n.Index, rewrite) || changed
	case *ast.FieldExpr:
		changed = rewriteExpr(&n.Object, rewrite) || changed
	case *ast.SizeofExprExpr:
		changed = rewriteExpr(&n.Operand, rewrite) || changed
	case *ast.CondExpr:
		changed = rewriteExpr(&n.Cond, rewrite) || changed
		changed = rewriteExpr(&n.Then, rewrite) || changed
		changed = rewriteExpr(&n.Else, rewrite) || changed
	case *ast.CommaExpr:
		changed = rewriteExpr(&n.Left, rewrite) || changed
		changed = rewriteExpr(&n.Right, rewrite) || changed
	case *ast.InitListExpr:
		for i := range n.Elems {
			changed = rewriteExpr(&n.Elems[i], rewrite) || changed
		}
	}

	next, did := rewrite(*slot)
	if did {
		*slot = next
		changed = true
	}
	return changed
}

// forEachExprSlot applies f to every top-level expression slot owned
// directly by statements reachable from fn's body.
func forEachExprSlot(fn *ast.FuncDecl, f func(*ast.Expr) bool) bool {
	changed := false
	walkStmts(fn.Body, func(s ast.Stmt) {
		for _, slot := range exprsOf(s) {
			if f(slot) {
				changed = true
			}
		}
	})
	return changed
}

// normalizeCommaPass drops a comma expression's discarded left operand
// when it is side-effect-free (spec.md §4.8 does not name this pass
// explicitly but its "remove provably dead computations" goal covers
// it); a conservative side-effect check only fires on literals and bare
// identifiers.
func normalizeCommaPass(fn *ast.FuncDecl) bool {
	return forEachExprSlot(fn, func(slot *ast.Expr) bool {
		return rewriteExpr(slot, func(e ast.Expr) (ast.Expr, bool) {
			c, ok := e.(*ast.CommaExpr)
			if !ok {
				return e, false
			}
			if isSideEffectFree(c.Left) {
				return c.Right, true
			}
			return e, false
		})
	})
}

func isSideEffectFree(e ast.Expr) bool {
	switch e.(type) {
	case *ast.LiteralExpr, *ast.IdentExpr:
		return true
	default:
		return false
	}
}

// foldConstantsPass replaces a binary/unary expression over two literal
// operands with the single folded literal (spec.md §4.8 "constant
// folding").
func foldConstantsPass(fn *ast.FuncDecl) bool {
	return forEachExprSlot(fn, func(slot *ast.Expr) bool {
		return rewriteExpr(slot, foldOne)
	})
}

func foldOne(e ast.Expr) (ast.Expr, bool) {
	switch n := e.(type) {
	case *ast.UnaryExpr:
		lit, ok := n.Operand.(*ast.LiteralExpr)
		if !ok || lit.Kind != ast.LitInt {
			return e, false
		}
		var v int64
		switch n.Op {
		case ast.UnaryMinus:
			v = -lit.IntVal
		case ast.UnaryPlus:
			v = lit.IntVal
		case ast.UnaryNot:
			v = ^lit.IntVal
		case ast.UnaryLNot:
			if lit.IntVal == 0 {
				v = 1
			} else {
				v = 0
			}
		default:
			return e, false
		}
		return &ast.LiteralExpr{Kind: ast.LitInt, IntVal: v, ExprBase: ast.ExprBase{Loc: n.GetLoc(), ExprType: n.GetType()}}, true
	case *ast.BinaryExpr:
		l, lok := n.Left.(*ast.LiteralExpr)
		r, rok := n.Right.(*ast.LiteralExpr)
		if !lok || !rok || l.Kind != ast.LitInt || r.Kind != ast.LitInt {
			return e, false
		}
		v, ok := foldBinaryInt(n.Op, l.IntVal, r.IntVal)
		if !ok {
			return e, false
		}
		return &ast.LiteralExpr{Kind: ast.LitInt, IntVal: v, ExprBase: ast.ExprBase{Loc: n.GetLoc(), ExprType: n.GetType()}}, true
	}
	return e, false
}

func foldBinaryInt(op ast.BinaryOp, l, r int64) (int64, bool) {
	switch op {
	case ast.OpAdd:
		return l + r, true
	case ast.OpSub:
		return l - r, true
	case ast.OpMul:
		return l * r, true
	case ast.OpDiv:
		if r == 0 {
			return 0, false
		}
		return l / r, true
	case ast.OpMod:
		if r == 0 {
			return 0, false
		}
		return l % r, true
	case ast.OpAnd:
		return l & r, true
	case ast.OpOr:
		return l | r, true
	case ast.OpXor:
		return l ^ r, true
	case ast.OpShl:
		return l << uint(r), true
	case ast.OpShr:
		return l >> uint(r), true
	case ast.OpEq:
		return boolInt(l == r), true
	case ast.OpNe:
		return boolInt(l != r), true
	case ast.OpLt:
		return boolInt(l < r), true
	case ast.OpLe:
		return boolInt(l <= r), true
	case ast.OpGt:
		return boolInt(l > r), true
	case ast.OpGe:
		return boolInt(l >= r), true
	case ast.OpLAnd:
		return boolInt(l != 0 && r != 0), true
	case ast.OpLOr:
		return boolInt(l != 0 || r != 0), true
	}
	return 0, false
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// simplifyIdentitiesPass rewrites algebraic identities: x+0, x-0, x*1,
// x*0, x/1 (spec.md §4.8 "identity and trivial-operation simplification").
func simplifyIdentitiesPass(fn *ast.FuncDecl) bool {
	return forEachExprSlot(fn, func(slot *ast.Expr) bool {
		return rewriteExpr(slot, func(e ast.Expr) (ast.Expr, bool) {
			b, ok := e.(*ast.BinaryExpr)
			if !ok {
				return e, false
			}
			if lit, ok := b.Right.(*ast.LiteralExpr); ok && lit.Kind == ast.LitInt {
				switch {
				case (b.Op == ast.OpAdd || b.Op == ast.OpSub) && lit.IntVal == 0:
					return b.Left, true
				case b.Op == ast.OpMul && lit.IntVal == 1:
					return b.Left, true
				case b.Op == ast.OpMul && lit.IntVal == 0:
					return &ast.LiteralExpr{Kind: ast.LitInt, IntVal: 0, ExprBase: ast.ExprBase{Loc: e.GetLoc(), ExprType: e.GetType()}}, true
				case b.Op == ast.OpDiv && lit.IntVal == 1:
					return b.Left, true
				}
			}
			if lit, ok := b.Left.(*ast.LiteralExpr); ok && lit.Kind == ast.LitInt {
				switch {
				case b.Op == ast.OpAdd && lit.IntVal == 0:
					return b.Right, true
				case b.Op == ast.OpMul && lit.IntVal == 1:
					return b.Right, true
				case b.Op == ast.OpMul && lit.IntVal == 0:
					return &ast.LiteralExpr{Kind: ast.LitInt, IntVal: 0, ExprBase: ast.ExprBase{Loc: e.GetLoc(), ExprType: e.GetType()}}, true
				}
			}
			return e, false
		})
	})
}

// eliminateDeadBranchesPass collapses `if (const)` into whichever arm is
// statically reachable (spec.md §4.8's O2 "dead branch elimination").
func eliminateDeadBranchesPass(fn *ast.FuncDecl) bool {
	changed := false
	walkStmts(fn.Body, func(s ast.Stmt) {
		blk, ok := s.(*ast.BlockStmt)
		if !ok {
			return
		}
		for i, item := range blk.Items {
			ifs, ok := item.(*ast.IfStmt)
			if !ok {
				continue
			}
			lit, ok := ifs.Cond.(*ast.LiteralExpr)
			if !ok || lit.Kind != ast.LitInt {
				continue
			}
			if lit.IntVal != 0 {
				blk.Items[i] = ifs.Then
			} else if ifs.Else != nil {
				blk.Items[i] = ifs.Else
			} else {
				blk.Items[i] = &ast.ExprStmt{Loc: ifs.Loc}
			}
			changed = true
		}
	})
	return changed
}

// strengthReducePass rewrites multiplication/division by a power of two
// into shifts (spec.md §4.8's O2 "strength reduction"); only applies to
// unsigned/non-negative-known operands is out of scope for this pass —
// it only fires on unsigned left operand types, where shift and
// multiply/divide are always equivalent regardless of sign.
func strengthReducePass(fn *ast.FuncDecl) bool {
	return forEachExprSlot(fn, func(slot *ast.Expr) bool {
		return rewriteExpr(slot, func(e ast.Expr) (ast.Expr, bool) {
			b, ok := e.(*ast.BinaryExpr)
			if !ok {
				return e, false
			}
			t := b.Left.GetType()
			if t == nil || !t.IsUnsigned() {
				return e, false
			}
			lit, ok := b.Right.(*ast.LiteralExpr)
			if !ok || lit.Kind != ast.LitInt || lit.IntVal <= 0 {
				return e, false
			}
			shift, isPow2 := log2(lit.IntVal)
			if !isPow2 {
				return e, false
			}
			switch b.Op {
			case ast.OpMul:
				b.Op = ast.OpShl
				lit.IntVal = shift
				return b, true
			case ast.OpDiv:
				b.Op = ast.OpShr
				lit.IntVal = shift
				return b, true
			}
			return e, false
		})
	})
}

func log2(v int64) (int64, bool) {
	if v <= 0 || v&(v-1) != 0 {
		return 0, false
	}
	shift := int64(0)
	for v > 1 {
		v >>= 1
		shift++
	}
	return shift, true
}
