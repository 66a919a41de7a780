package semantic

import (
	"fmt"
	"strings"

	"github.com/foundry-zero/allium-check/internal/ast"
	"github.com/foundry-zero/allium-check/internal/report"
	"github.com/foundry-zero/allium-check/internal/suggest"
	"github.com/foundry-zero/allium-check/internal/token"
)

// CheckEnums validates identifiers assigned or compared against
// enum-typed fields. It runs independently of CheckReferences and does
// not use a bound-variable set.
func CheckEnums(file string, f *ast.File, st *SymbolTable) []report.Diagnostic {
	var diags []report.Diagnostic

	for _, r := range f.Rules {
		if r.Trigger.Kind == ast.TrigStateChange && r.Trigger.Value != nil {
			diags = checkDirectEnumAssignment(diags, file, st, r.Trigger.Entity, r.Trigger.Field, r.Trigger.Value)
		}
		for i := range r.Requires {
			diags = walkEnumExpr(diags, file, st, &r.Requires[i])
		}
		for i := range r.Ensures {
			diags = walkEnumExpr(diags, file, st, &r.Ensures[i])
		}
	}
	for _, e := range f.Entities {
		for _, der := range e.Derived {
			diags = walkEnumExpr(diags, file, st, der.Expr)
		}
	}

	return diags
}

// walkEnumExpr recurses through an expression, checking every
// enum-comparison pattern and entity-created initialiser it finds.
func walkEnumExpr(diags []report.Diagnostic, file string, st *SymbolTable, e *ast.Expr) []report.Diagnostic {
	if e == nil {
		return diags
	}

	switch e.Kind {
	case ast.EBinary:
		if e.Op == "=" || e.Op == "!=" {
			diags = checkEnumComparison(diags, file, st, e.Left, e.Right)
			diags = checkEnumComparison(diags, file, st, e.Right, e.Left)
		}
		diags = walkEnumExpr(diags, file, st, e.Left)
		diags = walkEnumExpr(diags, file, st, e.Right)
	case ast.EEntityCreated:
		diags = checkEntityCreatedEnums(diags, file, st, e)
		for i := range e.FieldPairs {
			diags = walkEnumExpr(diags, file, st, e.FieldPairs[i].Value)
		}
	case ast.EUnary:
		diags = walkEnumExpr(diags, file, st, e.Operand)
	case ast.ECall:
		diags = walkEnumExpr(diags, file, st, e.Callee)
		for i := range e.Args {
			diags = walkEnumExpr(diags, file, st, &e.Args[i])
		}
	case ast.EFieldAccess:
		diags = walkEnumExpr(diags, file, st, e.Object)
	case ast.ELambda:
		diags = walkEnumExpr(diags, file, st, e.Body)
	case ast.EJoinLookup:
		for i := range e.FieldPairs {
			diags = walkEnumExpr(diags, file, st, e.FieldPairs[i].Value)
		}
	}

	return diags
}

// checkEnumComparison implements the enum-comparison pattern: left is a
// field-access, right is an identifier, and the object resolves (by the
// trivial bare-identifier case) to a declared type with an enum field.
func checkEnumComparison(diags []report.Diagnostic, file string, st *SymbolTable, left, right *ast.Expr) []report.Diagnostic {
	if left == nil || right == nil {
		return diags
	}
	if left.Kind != ast.EFieldAccess || right.Kind != ast.EIdent {
		return diags
	}
	if left.Object == nil || left.Object.Kind != ast.EIdent {
		return diags
	}
	ti := resolveObjectType(left.Object.Name, st)
	if ti == nil {
		return diags
	}
	field, ok := ti.Fields[left.Field]
	if !ok || field.Type.Kind != ast.TEnum {
		return diags
	}
	if containsMember(field.Type.Members, right.Name) {
		return diags
	}
	// Only flag when the value plausibly misspells a declared member;
	// otherwise it is assumed to name a bound variable and left alone.
	if d, found := enumDiagnostic(file, right.Name, left.Field, field.Type.Members, right.Loc); found {
		return append(diags, d)
	}
	return diags
}

// checkDirectEnumAssignment is the state-change trigger's value check:
// always flags an invalid value, with a suggestion when one exists.
func checkDirectEnumAssignment(diags []report.Diagnostic, file string, st *SymbolTable, entity, field string, value *ast.Expr) []report.Diagnostic {
	if value == nil || value.Kind != ast.EIdent {
		return diags
	}
	ti := st.LookupType(entity)
	if ti == nil {
		return diags
	}
	fi, ok := ti.Fields[field]
	if !ok || fi.Type.Kind != ast.TEnum {
		return diags
	}
	if containsMember(fi.Type.Members, value.Name) {
		return diags
	}
	d, _ := enumDiagnostic(file, value.Name, field, fi.Type.Members, value.Loc)
	return append(diags, d)
}

// checkEntityCreatedEnums is asymmetric: it only flags an invalid
// field initialiser when a similarity suggestion exists, since without
// one the identifier is assumed to be a variable reference.
func checkEntityCreatedEnums(diags []report.Diagnostic, file string, st *SymbolTable, e *ast.Expr) []report.Diagnostic {
	ti := st.LookupType(e.Entity)
	if ti == nil {
		return diags
	}
	for _, fv := range e.FieldPairs {
		if fv.Value == nil || fv.Value.Kind != ast.EIdent {
			continue
		}
		fi, ok := ti.Fields[fv.Field]
		if !ok || fi.Type.Kind != ast.TEnum {
			continue
		}
		if containsMember(fi.Type.Members, fv.Value.Name) {
			continue
		}
		// Entity-creation only flags when a suggestion exists: without
		// one the identifier is assumed to be a variable reference.
		if d, found := enumDiagnostic(file, fv.Value.Name, fv.Field, fi.Type.Members, fv.Value.Loc); found {
			diags = append(diags, d)
		}
	}
	return diags
}

// enumDiagnostic builds the "invalid enum value" diagnostic and
// reports whether a similarity suggestion was found for the value.
func enumDiagnostic(file, name, field string, members []string, loc token.Loc) (report.Diagnostic, bool) {
	msg := fmt.Sprintf("invalid enum value '%s' for field '%s' (expected: %s)", name, field, strings.Join(members, " | "))
	if suggestion, found := suggest.Find(name, members); found {
		return report.NewWithSuggestion(file, loc.Line, loc.Col, msg, suggestion), true
	}
	return report.New(file, loc.Line, loc.Col, msg), false
}

func containsMember(members []string, name string) bool {
	for _, m := range members {
		if m == name {
			return true
		}
	}
	return false
}

// resolveObjectType resolves a bare identifier to a declared type for
// the enum-comparison pattern. Bound variables are conventionally the
// lowerCamelCase form of their entity ("user" for "User"), so the
// lookup falls back to a case-insensitive match.
func resolveObjectType(name string, st *SymbolTable) *TypeInfo {
	if ti := st.LookupType(name); ti != nil {
		return ti
	}
	for typeName, ti := range st.Types {
		if strings.EqualFold(typeName, name) {
			return ti
		}
	}
	return nil
}
