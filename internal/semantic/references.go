package semantic

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/foundry-zero/allium-check/internal/ast"
	"github.com/foundry-zero/allium-check/internal/report"
	"github.com/foundry-zero/allium-check/internal/suggest"
	"github.com/foundry-zero/allium-check/internal/token"
)

// lowercaseIdent matches the enum-context exemption pattern: a bare
// lowercase-and-underscore identifier is presumed to be an enum member
// rather than a variable reference.
var lowercaseIdent = regexp.MustCompile(`^[a-z][a-z_]*$`)

// Options extends the closed name sets the reference checker consults,
// as supplied by an extensions config.
type Options struct {
	ExtraBuiltins []string
}

// refChecker carries the per-run state of one reference-checking pass.
type refChecker struct {
	file     string
	st       *SymbolTable
	builtins map[string]bool // nil means the default set only
}

func (rc *refChecker) isBuiltin(name string) bool {
	switch name {
	case "now", "true", "false", "null", "verify", "send", "notify", "__array":
		return true
	}
	if rc.builtins[name] {
		return true
	}
	return strings.HasPrefix(name, "config/")
}

// CheckReferences walks the file verifying that every name in use
// resolves to a declared type, a bound variable, or a builtin.
func CheckReferences(file string, f *ast.File, st *SymbolTable) []report.Diagnostic {
	return CheckReferencesWith(file, f, st, Options{})
}

// CheckReferencesWith is CheckReferences with extended name sets.
func CheckReferencesWith(file string, f *ast.File, st *SymbolTable, opts Options) []report.Diagnostic {
	rc := &refChecker{file: file, st: st}
	if len(opts.ExtraBuiltins) > 0 {
		rc.builtins = make(map[string]bool, len(opts.ExtraBuiltins))
		for _, name := range opts.ExtraBuiltins {
			rc.builtins[name] = true
		}
	}

	var diags []report.Diagnostic
	for _, ee := range f.ExternalEntities {
		for _, field := range ee.Fields {
			diags = rc.checkTypeExpr(diags, field.Type, field.Type.Loc)
		}
	}
	for _, vt := range f.ValueTypes {
		for _, field := range vt.Fields {
			diags = rc.checkTypeExpr(diags, field.Type, field.Type.Loc)
		}
	}
	for _, e := range f.Entities {
		diags = rc.checkEntity(diags, e)
	}
	for _, r := range f.Rules {
		diags = rc.checkRule(diags, r)
	}

	return diags
}

func (rc *refChecker) checkEntity(diags []report.Diagnostic, e ast.Entity) []report.Diagnostic {
	for _, field := range e.Fields {
		diags = rc.checkTypeExpr(diags, field.Type, field.Type.Loc)
	}

	relNames := make([]string, 0, len(e.Relationships))
	for _, rel := range e.Relationships {
		relNames = append(relNames, rel.Name)
		if !rc.st.HasType(rel.Target) {
			diags = rc.undefinedEntity(diags, rel.Target, rel.Loc)
		}
	}
	sort.Strings(relNames)

	for _, proj := range e.Projections {
		if !containsString(relNames, proj.Source) {
			diags = rc.undefinedRelationship(diags, proj.Source, proj.Loc, relNames)
		}
	}

	// The entity's own members are in scope while its projection
	// filters and derived expressions are checked.
	bound := memberBoundSet(e)
	for _, proj := range e.Projections {
		if proj.Filter != nil {
			diags = rc.checkExpr(diags, bound, proj.Filter, false)
		}
	}
	for _, der := range e.Derived {
		if der.Expr != nil {
			diags = rc.checkExpr(diags, bound, der.Expr, false)
		}
	}

	return diags
}

// memberBoundSet returns the union of an entity's field, relationship,
// projection, and derived names.
func memberBoundSet(e ast.Entity) map[string]bool {
	bound := make(map[string]bool, len(e.Fields)+len(e.Relationships)+len(e.Projections)+len(e.Derived))
	for _, f := range e.Fields {
		bound[f.Name] = true
	}
	for _, r := range e.Relationships {
		bound[r.Name] = true
	}
	for _, p := range e.Projections {
		bound[p.Name] = true
	}
	for _, d := range e.Derived {
		bound[d.Name] = true
	}
	return bound
}

func (rc *refChecker) checkRule(diags []report.Diagnostic, r ast.Rule) []report.Diagnostic {
	bound := make(map[string]bool)

	trig := r.Trigger
	switch trig.Kind {
	case ast.TrigStimulus, ast.TrigChained:
		for _, p := range trig.Params {
			bound[p.Name] = true
		}
	case ast.TrigStateChange:
		ti := rc.st.LookupType(trig.Entity)
		if ti == nil {
			diags = rc.undefinedEntity(diags, trig.Entity, trig.Loc)
		} else if _, ok := ti.Fields[trig.Field]; !ok {
			diags = rc.undefinedField(diags, trig.Field, trig.Entity, trig.Loc, ti)
		}
		bound[trig.Binding] = true
		if trig.Value != nil {
			diags = rc.checkExpr(diags, bound, trig.Value, true)
		}
	case ast.TrigCreated:
		if !rc.st.HasType(trig.Entity) {
			diags = rc.undefinedEntity(diags, trig.Entity, trig.Loc)
		}
		bound[trig.Binding] = true
	case ast.TrigTemporal, ast.TrigDerived:
		if trig.Expr != nil {
			diags = rc.checkExpr(diags, bound, trig.Expr, false)
		}
	}

	for _, lb := range r.LetBindings {
		if lb.Expr != nil {
			diags = rc.checkExpr(diags, bound, lb.Expr, false)
		}
		bound[lb.Name] = true
	}
	for i := range r.Requires {
		diags = rc.checkExpr(diags, bound, &r.Requires[i], false)
	}
	for i := range r.Ensures {
		diags = rc.checkExpr(diags, bound, &r.Ensures[i], false)
	}

	return diags
}

// checkTypeExpr resolves a type expression. fieldLoc is the position of
// the containing field's type annotation, used for any diagnostic
// regardless of how deeply the wrapper types nest.
func (rc *refChecker) checkTypeExpr(diags []report.Diagnostic, t ast.TypeExpr, fieldLoc token.Loc) []report.Diagnostic {
	switch t.Kind {
	case ast.TPrimitive, ast.TEnum:
		return diags
	case ast.TEntityRef:
		if !rc.st.HasType(t.Name) {
			// With a close declared-type candidate the name is reported
			// as a misspelt entity reference; without one, only as an
			// unknown type.
			if s, ok := suggest.Find(t.Name, rc.sortedTypeNames()); ok {
				msg := fmt.Sprintf("undefined entity '%s'", t.Name)
				diags = append(diags, report.NewWithSuggestion(rc.file, fieldLoc.Line, fieldLoc.Col, msg, s))
			} else {
				msg := fmt.Sprintf("undefined type '%s'", t.Name)
				diags = append(diags, report.New(rc.file, fieldLoc.Line, fieldLoc.Col, msg))
			}
		}
		return diags
	case ast.TOptional, ast.TSet, ast.TList:
		if t.Inner != nil {
			return rc.checkTypeExpr(diags, *t.Inner, fieldLoc)
		}
		return diags
	}
	return diags
}

func (rc *refChecker) undefinedEntity(diags []report.Diagnostic, name string, loc token.Loc) []report.Diagnostic {
	msg := fmt.Sprintf("undefined entity '%s'", name)
	if s, ok := suggest.Find(name, rc.sortedTypeNames()); ok {
		return append(diags, report.NewWithSuggestion(rc.file, loc.Line, loc.Col, msg, s))
	}
	return append(diags, report.New(rc.file, loc.Line, loc.Col, msg))
}

func (rc *refChecker) undefinedRelationship(diags []report.Diagnostic, name string, loc token.Loc, pool []string) []report.Diagnostic {
	msg := fmt.Sprintf("undefined relationship '%s'", name)
	if s, ok := suggest.Find(name, pool); ok {
		return append(diags, report.NewWithSuggestion(rc.file, loc.Line, loc.Col, msg, s))
	}
	return append(diags, report.New(rc.file, loc.Line, loc.Col, msg))
}

func (rc *refChecker) undefinedField(diags []report.Diagnostic, field, entity string, loc token.Loc, ti *TypeInfo) []report.Diagnostic {
	msg := fmt.Sprintf("undefined field '%s' on entity '%s'", field, entity)
	pool := make([]string, 0, len(ti.Fields))
	for name := range ti.Fields {
		pool = append(pool, name)
	}
	sort.Strings(pool)
	if s, ok := suggest.Find(field, pool); ok {
		return append(diags, report.NewWithSuggestion(rc.file, loc.Line, loc.Col, msg, s))
	}
	return append(diags, report.New(rc.file, loc.Line, loc.Col, msg))
}

func (rc *refChecker) undefinedIdentifier(diags []report.Diagnostic, name string, loc token.Loc, bound map[string]bool) []report.Diagnostic {
	msg := fmt.Sprintf("undefined identifier '%s'", name)
	// Bound variables are tried before declared type names, so that a
	// bound-variable candidate wins a same-distance tie over a type.
	boundNames := make([]string, 0, len(bound))
	for b := range bound {
		boundNames = append(boundNames, b)
	}
	sort.Strings(boundNames)
	pool := append(boundNames, rc.sortedTypeNames()...)
	if s, ok := suggest.Find(name, pool); ok {
		return append(diags, report.NewWithSuggestion(rc.file, loc.Line, loc.Col, msg, s))
	}
	return append(diags, report.New(rc.file, loc.Line, loc.Col, msg))
}

func (rc *refChecker) sortedTypeNames() []string {
	names := rc.st.TypeNames()
	sort.Strings(names)
	return names
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// checkExpr walks an expression. enumCtx marks positions where a bare
// lowercase identifier is likely an enum-member literal rather than a
// variable use, and so is exempt from undefined-identifier reporting:
// the right side of = / != / in, arguments of an array literal, and
// entity-creation field values.
func (rc *refChecker) checkExpr(diags []report.Diagnostic, bound map[string]bool, e *ast.Expr, enumCtx bool) []report.Diagnostic {
	if e == nil {
		return diags
	}

	switch e.Kind {
	case ast.ENumber, ast.EString, ast.EBool, ast.ENull, ast.EEnumValue:
		return diags

	case ast.EIdent:
		if bound[e.Name] || rc.st.HasType(e.Name) || rc.isBuiltin(e.Name) {
			return diags
		}
		if enumCtx && lowercaseIdent.MatchString(e.Name) {
			return diags
		}
		return rc.undefinedIdentifier(diags, e.Name, e.Loc, bound)

	case ast.EFieldAccess:
		// The field name after the dot is not checked; only the object.
		return rc.checkExpr(diags, bound, e.Object, enumCtx)

	case ast.ECall:
		diags = rc.checkExpr(diags, bound, e.Callee, enumCtx)
		childCtx := enumCtx || isArrayCallee(e.Callee)
		for i := range e.Args {
			diags = rc.checkExpr(diags, bound, &e.Args[i], childCtx)
		}
		return diags

	case ast.EBinary:
		diags = rc.checkExpr(diags, bound, e.Left, enumCtx)
		rightCtx := enumCtx
		if e.Op == "=" || e.Op == "!=" || e.Op == "in" {
			rightCtx = true
		}
		return rc.checkExpr(diags, bound, e.Right, rightCtx)

	case ast.EUnary:
		return rc.checkExpr(diags, bound, e.Operand, enumCtx)

	case ast.ELambda:
		// A lambda parameter already bound outside must stay bound
		// after the body is checked.
		wasBound := bound[e.Param]
		bound[e.Param] = true
		diags = rc.checkExpr(diags, bound, e.Body, enumCtx)
		if !wasBound {
			delete(bound, e.Param)
		}
		return diags

	case ast.EJoinLookup:
		if !rc.st.HasType(e.Entity) {
			diags = rc.undefinedEntity(diags, e.Entity, e.Loc)
		}
		for i := range e.FieldPairs {
			diags = rc.checkExpr(diags, bound, e.FieldPairs[i].Value, enumCtx)
		}
		return diags

	case ast.EEntityCreated:
		if !rc.st.HasType(e.Entity) {
			diags = rc.undefinedEntity(diags, e.Entity, e.Loc)
		}
		for i := range e.FieldPairs {
			diags = rc.checkExpr(diags, bound, e.FieldPairs[i].Value, true)
		}
		return diags
	}

	return diags
}

func isArrayCallee(e *ast.Expr) bool {
	return e != nil && e.Kind == ast.EIdent && e.Name == "__array"
}
