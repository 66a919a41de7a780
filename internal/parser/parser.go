// Package parser implements a recursive-descent parser for Allium
// source text, producing a typed ast.File.
//
// On the first syntax error, parsing halts and returns a single
// *ParseError; no recovery is attempted.
package parser

import (
	"fmt"

	"github.com/foundry-zero/allium-check/internal/ast"
	"github.com/foundry-zero/allium-check/internal/lexer"
	"github.com/foundry-zero/allium-check/internal/token"
)

// ParseError is the single diagnostic a failed parse produces.
type ParseError struct {
	Loc     token.Loc
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Loc, e.Message)
}

// primitiveTypes is the built-in set of primitive type names. A bare
// identifier outside this set parses as an entity reference.
var primitiveTypes = map[string]bool{
	"String": true, "Integer": true, "Decimal": true, "Boolean": true,
	"Timestamp": true, "Duration": true, "Email": true, "URL": true,
}

// Parser holds the token stream and cursor for one parse.
type Parser struct {
	tokens     []token.Token
	pos        int
	primitives map[string]bool // nil means primitiveTypes only
}

// Parse lexes and parses source into an ast.File, or returns the single
// diagnostic produced by the first syntax error.
func Parse(source string) (*ast.File, *ParseError) {
	return ParseWith(source, nil)
}

// ParseWith is Parse with additional primitive type names recognised
// alongside the built-in set, as supplied by an extensions config.
func ParseWith(source string, extraPrimitives []string) (*ast.File, *ParseError) {
	p := &Parser{tokens: lexer.Tokenize(source)}
	if len(extraPrimitives) > 0 {
		p.primitives = make(map[string]bool, len(extraPrimitives))
		for _, name := range extraPrimitives {
			p.primitives[name] = true
		}
	}
	return p.parseFile()
}

func (p *Parser) isPrimitive(name string) bool {
	return primitiveTypes[name] || p.primitives[name]
}

func (p *Parser) cur() token.Token {
	return p.tokens[p.pos]
}

func (p *Parser) peek(n int) token.Token {
	idx := p.pos + n
	if idx >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1] // always EOF
	}
	return p.tokens[idx]
}

func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) at(k token.Kind) bool {
	return p.cur().Kind == k
}

func (p *Parser) expect(k token.Kind) (token.Token, *ParseError) {
	if p.cur().Kind != k {
		return token.Token{}, p.errf("expected %s, got %s", k, p.cur().Kind)
	}
	return p.advance(), nil
}

func (p *Parser) errf(format string, args ...any) *ParseError {
	return &ParseError{Loc: p.cur().Loc, Message: fmt.Sprintf(format, args...)}
}

// --- File level ---

func (p *Parser) parseFile() (*ast.File, *ParseError) {
	f := &ast.File{}

	for !p.at(token.EOF) {
		switch p.cur().Kind {
		case token.EXTERNAL:
			ee, err := p.parseExternalEntity()
			if err != nil {
				return nil, err
			}
			f.ExternalEntities = append(f.ExternalEntities, *ee)
		case token.VALUE:
			vt, err := p.parseValueType()
			if err != nil {
				return nil, err
			}
			f.ValueTypes = append(f.ValueTypes, *vt)
		case token.ENTITY:
			e, err := p.parseEntity()
			if err != nil {
				return nil, err
			}
			f.Entities = append(f.Entities, *e)
		case token.DEFAULT:
			d, err := p.parseDefault()
			if err != nil {
				return nil, err
			}
			f.Defaults = append(f.Defaults, *d)
		case token.RULE:
			r, err := p.parseRule()
			if err != nil {
				return nil, err
			}
			f.Rules = append(f.Rules, *r)
		case token.DEFERRED:
			d, err := p.parseDeferred()
			if err != nil {
				return nil, err
			}
			f.Deferred = append(f.Deferred, *d)
		case token.OPEN:
			oq, err := p.parseOpenQuestion()
			if err != nil {
				return nil, err
			}
			f.OpenQuestions = append(f.OpenQuestions, *oq)
		default:
			return nil, p.errf("unexpected token %s at top level", p.cur().Kind)
		}
	}

	return f, nil
}

func (p *Parser) parseExternalEntity() (*ast.ExternalEntity, *ParseError) {
	loc := p.cur().Loc
	if _, err := p.expect(token.EXTERNAL); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	fields, err := p.parseFieldsBlock()
	if err != nil {
		return nil, err
	}
	return &ast.ExternalEntity{Name: nameTok.Text, Fields: fields, Loc: loc}, nil
}

func (p *Parser) parseValueType() (*ast.ValueType, *ParseError) {
	loc := p.cur().Loc
	if _, err := p.expect(token.VALUE); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	fields, err := p.parseFieldsBlock()
	if err != nil {
		return nil, err
	}
	return &ast.ValueType{Name: nameTok.Text, Fields: fields, Loc: loc}, nil
}

func (p *Parser) parseFieldsBlock() ([]ast.Field, *ParseError) {
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	var fields []ast.Field
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		f, err := p.parseField()
		if err != nil {
			return nil, err
		}
		fields = append(fields, *f)
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	return fields, nil
}

func (p *Parser) parseField() (*ast.Field, *ParseError) {
	loc := p.cur().Loc
	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COLON); err != nil {
		return nil, err
	}
	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	return &ast.Field{Name: nameTok.Text, Type: *typ, Loc: loc}, nil
}

// parseType parses a type expression: Set<T>, List<T>, T?, a
// pipe-separated enum, or a bare primitive/entity-ref identifier.
func (p *Parser) parseType() (*ast.TypeExpr, *ParseError) {
	loc := p.cur().Loc

	if !p.at(token.IDENT) {
		return nil, p.errf("expected type, got %s", p.cur().Kind)
	}

	name := p.cur().Text
	if (name == "Set" || name == "List") && p.peek(1).Kind == token.LT {
		p.advance() // Set/List
		p.advance() // <
		inner, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.GT); err != nil {
			return nil, err
		}
		kind := ast.TSet
		if name == "List" {
			kind = ast.TList
		}
		t := &ast.TypeExpr{Kind: kind, Inner: inner, Loc: loc}
		return p.maybeOptional(t)
	}

	p.advance() // consume the identifier

	if p.at(token.PIPE) {
		members := []string{name}
		for p.at(token.PIPE) {
			p.advance()
			memberTok, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			members = append(members, memberTok.Text)
		}
		t := &ast.TypeExpr{Kind: ast.TEnum, Members: members, Loc: loc}
		return p.maybeOptional(t)
	}

	kind := ast.TEntityRef
	if p.isPrimitive(name) {
		kind = ast.TPrimitive
	}
	t := &ast.TypeExpr{Kind: kind, Name: name, Loc: loc}
	return p.maybeOptional(t)
}

func (p *Parser) maybeOptional(inner *ast.TypeExpr) (*ast.TypeExpr, *ParseError) {
	if p.at(token.QMARK) {
		p.advance()
		return &ast.TypeExpr{Kind: ast.TOptional, Inner: inner, Loc: inner.Loc}, nil
	}
	return inner, nil
}

// --- Entity and member disambiguation ---

func (p *Parser) parseEntity() (*ast.Entity, *ParseError) {
	loc := p.cur().Loc
	if _, err := p.expect(token.ENTITY); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}

	e := &ast.Entity{Name: nameTok.Text, Loc: loc}
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		switch m, err := p.parseEntityMember(); {
		case err != nil:
			return nil, err
		case m.field != nil:
			e.Fields = append(e.Fields, *m.field)
		case m.rel != nil:
			e.Relationships = append(e.Relationships, *m.rel)
		case m.proj != nil:
			e.Projections = append(e.Projections, *m.proj)
		case m.der != nil:
			e.Derived = append(e.Derived, *m.der)
		}
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	return e, nil
}

type entityMember struct {
	field *ast.Field
	rel   *ast.Relationship
	proj  *ast.Projection
	der   *ast.Derived
}

func (p *Parser) parseEntityMember() (entityMember, *ParseError) {
	loc := p.cur().Loc
	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return entityMember{}, err
	}
	if _, err := p.expect(token.COLON); err != nil {
		return entityMember{}, err
	}

	tok1, tok2 := p.cur(), p.peek(1)

	// "ident for" -> relationship
	if tok1.Kind == token.IDENT && tok2.Kind == token.FOR {
		target := tok1.Text
		p.advance() // target ident
		p.advance() // for
		if _, err := p.expect(token.THIS); err != nil {
			return entityMember{}, err
		}
		condTok, err := p.expect(token.IDENT)
		if err != nil {
			return entityMember{}, err
		}
		return entityMember{rel: &ast.Relationship{
			Name: nameTok.Text, Target: target, Condition: condTok.Text, Loc: loc,
		}}, nil
	}

	// "ident with" -> projection
	if tok1.Kind == token.IDENT && tok2.Kind == token.WITH {
		source := tok1.Text
		p.advance() // source ident
		p.advance() // with
		filter, err := p.parseExpression()
		if err != nil {
			return entityMember{}, err
		}
		return entityMember{proj: &ast.Projection{
			Name: nameTok.Text, Source: source, Filter: filter, Loc: loc,
		}}, nil
	}

	if looksLikeType(tok1, tok2) {
		typ, err := p.parseType()
		if err != nil {
			return entityMember{}, err
		}
		return entityMember{field: &ast.Field{Name: nameTok.Text, Type: *typ, Loc: loc}}, nil
	}

	expr, err := p.parseExpression()
	if err != nil {
		return entityMember{}, err
	}
	return entityMember{der: &ast.Derived{Name: nameTok.Text, Expr: expr, Loc: loc}}, nil
}

// looksLikeType decides whether an entity member's body is a type or a
// derived expression: a bare ident followed by '}' / eof / ident, by
// '?', by '<' when the ident is Set or List, or by '|' (enum) is a
// type; anything else is not.
func looksLikeType(tok1, tok2 token.Token) bool {
	if tok1.Kind != token.IDENT {
		return false
	}
	switch tok2.Kind {
	case token.RBRACE, token.EOF, token.IDENT, token.QMARK, token.PIPE:
		return true
	case token.LT:
		return tok1.Text == "Set" || tok1.Text == "List"
	default:
		return false
	}
}

// --- Default / deferred / open question ---
//
// These three productions are indexed by name but never semantically
// checked, so their bodies are consumed without interpretation.

func (p *Parser) parseDefault() (*ast.Default, *ParseError) {
	loc := p.cur().Loc
	if _, err := p.expect(token.DEFAULT); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.IDENT); err != nil { // entity name, unused downstream
		return nil, err
	}
	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if err := p.skipBalancedBraces(); err != nil {
		return nil, err
	}
	return &ast.Default{Name: nameTok.Text, Loc: loc}, nil
}

func (p *Parser) parseDeferred() (*ast.Deferred, *ParseError) {
	loc := p.cur().Loc
	if _, err := p.expect(token.DEFERRED); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if err := p.skipBalancedBraces(); err != nil {
		return nil, err
	}
	return &ast.Deferred{Name: nameTok.Text, Loc: loc}, nil
}

func (p *Parser) parseOpenQuestion() (*ast.OpenQuestion, *ParseError) {
	loc := p.cur().Loc
	if _, err := p.expect(token.OPEN); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.QUESTION); err != nil {
		return nil, err
	}
	textTok, err := p.expect(token.STRING)
	if err != nil {
		return nil, err
	}
	return &ast.OpenQuestion{Text: textTok.Text, Loc: loc}, nil
}

// skipBalancedBraces consumes a "{ ... }" block without interpreting
// its contents, tracking nested braces.
func (p *Parser) skipBalancedBraces() *ParseError {
	if _, err := p.expect(token.LBRACE); err != nil {
		return err
	}
	depth := 1
	for depth > 0 {
		switch p.cur().Kind {
		case token.EOF:
			return p.errf("unexpected eof, expected %s", token.RBRACE)
		case token.LBRACE:
			depth++
		case token.RBRACE:
			depth--
		}
		p.advance()
	}
	return nil
}

// --- Rules ---

func (p *Parser) parseRule() (*ast.Rule, *ParseError) {
	loc := p.cur().Loc
	if _, err := p.expect(token.RULE); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}

	r := &ast.Rule{Name: nameTok.Text, Loc: loc}
	haveTrigger := false

	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		switch p.cur().Kind {
		case token.WHEN:
			p.advance()
			if _, err := p.expect(token.COLON); err != nil {
				return nil, err
			}
			trig, err := p.parseTrigger()
			if err != nil {
				return nil, err
			}
			r.Trigger = *trig
			haveTrigger = true
		case token.LET:
			lb, err := p.parseLetBinding()
			if err != nil {
				return nil, err
			}
			r.LetBindings = append(r.LetBindings, *lb)
		case token.REQUIRES:
			p.advance()
			if _, err := p.expect(token.COLON); err != nil {
				return nil, err
			}
			e, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			r.Requires = append(r.Requires, *e)
		case token.ENSURES:
			p.advance()
			if _, err := p.expect(token.COLON); err != nil {
				return nil, err
			}
			e, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			r.Ensures = append(r.Ensures, *e)
		default:
			return nil, p.errf("unexpected token %s in rule body", p.cur().Kind)
		}
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	if !haveTrigger {
		return nil, &ParseError{Loc: loc, Message: fmt.Sprintf("rule '%s' has no trigger", r.Name)}
	}
	return r, nil
}

func (p *Parser) parseLetBinding() (*ast.LetBinding, *ParseError) {
	loc := p.cur().Loc
	if _, err := p.expect(token.LET); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ASSIGN); err != nil {
		return nil, err
	}
	e, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &ast.LetBinding{Name: nameTok.Text, Expr: e, Loc: loc}, nil
}

// parseTrigger selects among the stimulus, state-change, created,
// temporal, and derived variants. The chained variant arises from rule
// composition downstream and is never produced here.
func (p *Parser) parseTrigger() (*ast.Trigger, *ParseError) {
	loc := p.cur().Loc

	if p.cur().Kind == token.IDENT && p.peek(1).Kind == token.COLON {
		binding := p.cur().Text
		p.advance() // binding ident
		p.advance() // colon
		entityTok, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.DOT); err != nil {
			return nil, err
		}
		if p.at(token.CREATED) {
			p.advance()
			return &ast.Trigger{Kind: ast.TrigCreated, Binding: binding, Entity: entityTok.Text, Loc: loc}, nil
		}
		fieldTok, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.BECOMES); err != nil {
			return nil, err
		}
		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return &ast.Trigger{
			Kind: ast.TrigStateChange, Binding: binding, Entity: entityTok.Text,
			Field: fieldTok.Text, Value: val, Loc: loc,
		}, nil
	}

	if p.cur().Kind == token.IDENT && p.peek(1).Kind == token.LPAREN {
		name := p.cur().Text
		p.advance() // ident
		p.advance() // (
		var params []ast.TriggerParam
		for !p.at(token.RPAREN) && !p.at(token.EOF) {
			pTok, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			optional := false
			if p.at(token.QMARK) {
				p.advance()
				optional = true
			}
			params = append(params, ast.TriggerParam{Name: pTok.Text, Optional: optional})
			if p.at(token.COMMA) {
				p.advance()
			}
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return &ast.Trigger{Kind: ast.TrigStimulus, Name: name, Params: params, Loc: loc}, nil
	}

	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if isComparisonOp(expr) && containsIdent(expr, "now") {
		return &ast.Trigger{Kind: ast.TrigTemporal, Expr: expr, Loc: loc}, nil
	}
	return &ast.Trigger{Kind: ast.TrigDerived, Expr: expr, Loc: loc}, nil
}

func isComparisonOp(e *ast.Expr) bool {
	if e == nil || e.Kind != ast.EBinary {
		return false
	}
	switch e.Op {
	case "<", "<=", ">", ">=":
		return true
	default:
		return false
	}
}

// containsIdent reports whether expr syntactically contains an
// identifier with the given name anywhere in its subtree.
func containsIdent(e *ast.Expr, name string) bool {
	if e == nil {
		return false
	}
	if (e.Kind == ast.EIdent || e.Kind == ast.EEnumValue) && e.Name == name {
		return true
	}
	if containsIdent(e.Object, name) || containsIdent(e.Callee, name) ||
		containsIdent(e.Left, name) || containsIdent(e.Right, name) ||
		containsIdent(e.Operand, name) || containsIdent(e.Body, name) {
		return true
	}
	for i := range e.Args {
		if containsIdent(&e.Args[i], name) {
			return true
		}
	}
	for _, fv := range e.FieldPairs {
		if containsIdent(fv.Value, name) {
			return true
		}
	}
	return false
}

// --- Expressions ---

func (p *Parser) parseExpression() (*ast.Expr, *ParseError) {
	return p.parseOr()
}

func (p *Parser) parseOr() (*ast.Expr, *ParseError) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.at(token.OR) {
		loc := p.cur().Loc
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.Expr{Kind: ast.EBinary, Op: "or", Left: left, Right: right, Loc: loc}
	}
	return left, nil
}

func (p *Parser) parseAnd() (*ast.Expr, *ParseError) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.at(token.AND) {
		loc := p.cur().Loc
		p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &ast.Expr{Kind: ast.EBinary, Op: "and", Left: left, Right: right, Loc: loc}
	}
	return left, nil
}

var comparisonOps = map[token.Kind]string{
	token.ASSIGN: "=",
	token.NEQ:    "!=",
	token.LT:     "<",
	token.LTE:    "<=",
	token.GT:     ">",
	token.GTE:    ">=",
	token.IN:     "in",
	token.WITH:   "with",
}

func (p *Parser) parseComparison() (*ast.Expr, *ParseError) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := comparisonOps[p.cur().Kind]
		if !ok {
			return left, nil
		}
		loc := p.cur().Loc
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &ast.Expr{Kind: ast.EBinary, Op: op, Left: left, Right: right, Loc: loc}
	}
}

func (p *Parser) parseAdditive() (*ast.Expr, *ParseError) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.at(token.PLUS) || p.at(token.MINUS) {
		op := p.cur().Text
		loc := p.cur().Loc
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.Expr{Kind: ast.EBinary, Op: op, Left: left, Right: right, Loc: loc}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (*ast.Expr, *ParseError) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.at(token.STAR) || p.at(token.SLASH) {
		op := p.cur().Text
		loc := p.cur().Loc
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.Expr{Kind: ast.EBinary, Op: op, Left: left, Right: right, Loc: loc}
	}
	return left, nil
}

func (p *Parser) parseUnary() (*ast.Expr, *ParseError) {
	if p.at(token.NOT) || p.at(token.MINUS) {
		op := p.cur().Text
		loc := p.cur().Loc
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Expr{Kind: ast.EUnary, UnaryOp: op, Operand: operand, Loc: loc}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (*ast.Expr, *ParseError) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		switch p.cur().Kind {
		case token.DOT:
			loc := p.cur().Loc
			p.advance()
			if p.at(token.CREATED) && p.peek(1).Kind == token.LPAREN && expr.Kind == ast.EIdent {
				p.advance() // created
				p.advance() // (
				pairs, err := p.parseFieldColonValueList(token.RPAREN)
				if err != nil {
					return nil, err
				}
				if _, err := p.expect(token.RPAREN); err != nil {
					return nil, err
				}
				expr = &ast.Expr{Kind: ast.EEntityCreated, Entity: expr.Name, FieldPairs: pairs, Loc: loc}
				continue
			}
			fieldTok, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			access := &ast.Expr{Kind: ast.EFieldAccess, Object: expr, Field: fieldTok.Text, Loc: loc}
			if p.at(token.LPAREN) {
				p.advance()
				args, err := p.parseArgList()
				if err != nil {
					return nil, err
				}
				if _, err := p.expect(token.RPAREN); err != nil {
					return nil, err
				}
				expr = &ast.Expr{Kind: ast.ECall, Callee: access, Args: args, Loc: loc}
			} else {
				expr = access
			}
		case token.LPAREN:
			loc := p.cur().Loc
			p.advance()
			args, err := p.parseArgList()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RPAREN); err != nil {
				return nil, err
			}
			expr = &ast.Expr{Kind: ast.ECall, Callee: expr, Args: args, Loc: loc}
		case token.LBRACE:
			if expr.Kind != ast.EIdent {
				return nil, p.errf("join-lookup requires an identifier entity, got %s", exprKindName(expr.Kind))
			}
			loc := p.cur().Loc
			p.advance()
			pairs, err := p.parseJoinLookupFields()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RBRACE); err != nil {
				return nil, err
			}
			expr = &ast.Expr{Kind: ast.EJoinLookup, Entity: expr.Name, FieldPairs: pairs, Loc: loc}
		default:
			return expr, nil
		}
	}
}

func exprKindName(k ast.ExprKind) string {
	return fmt.Sprintf("expr-kind(%d)", int(k))
}

// parseFieldColonValueList parses comma-separated "field : value" pairs
// up to (not including) the closing token.
func (p *Parser) parseFieldColonValueList(closing token.Kind) ([]ast.FieldValue, *ParseError) {
	var pairs []ast.FieldValue
	for !p.at(closing) && !p.at(token.EOF) {
		fieldTok, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.COLON); err != nil {
			return nil, err
		}
		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, ast.FieldValue{Field: fieldTok.Text, Value: val})
		if p.at(token.COMMA) {
			p.advance()
		} else {
			break
		}
	}
	return pairs, nil
}

// parseJoinLookupFields parses comma-separated join-lookup fields,
// where a bare field name with no colon is shorthand for field: field.
func (p *Parser) parseJoinLookupFields() ([]ast.FieldValue, *ParseError) {
	var pairs []ast.FieldValue
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		fieldTok, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		var val *ast.Expr
		if p.at(token.COLON) {
			p.advance()
			v, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			val = v
		} else {
			val = &ast.Expr{Kind: ast.EIdent, Name: fieldTok.Text, Loc: fieldTok.Loc}
		}
		pairs = append(pairs, ast.FieldValue{Field: fieldTok.Text, Value: val})
		if p.at(token.COMMA) {
			p.advance()
		} else {
			break
		}
	}
	return pairs, nil
}

func (p *Parser) parseArgList() ([]ast.Expr, *ParseError) {
	var args []ast.Expr
	for !p.at(token.RPAREN) && !p.at(token.EOF) {
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, *e)
		if p.at(token.COMMA) {
			p.advance()
		} else {
			break
		}
	}
	return args, nil
}

func (p *Parser) parsePrimary() (*ast.Expr, *ParseError) {
	tok := p.cur()
	loc := tok.Loc

	switch tok.Kind {
	case token.LPAREN:
		p.advance()
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return e, nil
	case token.NUMBER:
		p.advance()
		return &ast.Expr{Kind: ast.ENumber, Text: tok.Text, Loc: loc}, nil
	case token.STRING:
		p.advance()
		return &ast.Expr{Kind: ast.EString, Text: tok.Text, Loc: loc}, nil
	case token.TRUE:
		p.advance()
		return &ast.Expr{Kind: ast.EBool, Bool: true, Loc: loc}, nil
	case token.FALSE:
		p.advance()
		return &ast.Expr{Kind: ast.EBool, Bool: false, Loc: loc}, nil
	case token.NULL:
		p.advance()
		return &ast.Expr{Kind: ast.ENull, Loc: loc}, nil
	case token.NOW:
		p.advance()
		return &ast.Expr{Kind: ast.EIdent, Name: "now", Loc: loc}, nil
	case token.CONFIG:
		p.advance()
		if _, err := p.expect(token.SLASH); err != nil {
			return nil, err
		}
		identTok, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		return &ast.Expr{Kind: ast.EIdent, Name: "config/" + identTok.Text, Loc: loc}, nil
	case token.LBRACK:
		p.advance()
		var elems []ast.Expr
		for !p.at(token.RBRACK) && !p.at(token.EOF) {
			e, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			elems = append(elems, *e)
			if p.at(token.COMMA) {
				p.advance()
			} else {
				break
			}
		}
		if _, err := p.expect(token.RBRACK); err != nil {
			return nil, err
		}
		callee := &ast.Expr{Kind: ast.EIdent, Name: "__array", Loc: loc}
		return &ast.Expr{Kind: ast.ECall, Callee: callee, Args: elems, Loc: loc}, nil
	case token.IDENT:
		if p.peek(1).Kind == token.ARROW {
			param := tok.Text
			p.advance() // ident
			p.advance() // =>
			body, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			return &ast.Expr{Kind: ast.ELambda, Param: param, Body: body, Loc: loc}, nil
		}
		p.advance()
		return &ast.Expr{Kind: ast.EIdent, Name: tok.Text, Loc: loc}, nil
	default:
		return nil, p.errf("unexpected token %s in expression", tok.Kind)
	}
}
