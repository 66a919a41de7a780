// Package semantic implements the two independent checking passes
// (reference checking and enum checking) over a parsed Allium file,
// plus the symbol table both passes are built from.
package semantic

import "github.com/foundry-zero/allium-check/internal/ast"

// TypeKind discriminates what kind of declaration a TypeInfo indexes.
type TypeKind int

const (
	KindEntity TypeKind = iota
	KindExternalEntity
	KindValueType
)

// MemberKind discriminates which collision-ordered bucket a resolved
// entity member name came from.
type MemberKind int

const (
	MemberField MemberKind = iota
	MemberRelationship
	MemberProjection
	MemberDerived
)

// TypeInfo indexes one declared type's members. ExternalEntity and
// ValueType declarations only ever populate Fields; only Entity
// declarations populate Relationships, Projections, and Derived.
type TypeInfo struct {
	Kind          TypeKind
	Name          string
	Fields        map[string]ast.Field
	Relationships map[string]ast.Relationship
	Projections   map[string]ast.Projection
	Derived       map[string]ast.Derived
}

// AllMembers maps every member name of this type to its category.
// Categories are inserted in the order field, relationship, projection,
// derived; a name declared in more than one category keeps the later
// insertion.
func (ti *TypeInfo) AllMembers() map[string]MemberKind {
	members := make(map[string]MemberKind,
		len(ti.Fields)+len(ti.Relationships)+len(ti.Projections)+len(ti.Derived))
	for name := range ti.Fields {
		members[name] = MemberField
	}
	for name := range ti.Relationships {
		members[name] = MemberRelationship
	}
	for name := range ti.Projections {
		members[name] = MemberProjection
	}
	for name := range ti.Derived {
		members[name] = MemberDerived
	}
	return members
}

// Member resolves a name against this type's members, under the same
// collision rule as AllMembers.
func (ti *TypeInfo) Member(name string) (MemberKind, bool) {
	if _, ok := ti.Derived[name]; ok {
		return MemberDerived, true
	}
	if _, ok := ti.Projections[name]; ok {
		return MemberProjection, true
	}
	if _, ok := ti.Relationships[name]; ok {
		return MemberRelationship, true
	}
	if _, ok := ti.Fields[name]; ok {
		return MemberField, true
	}
	return 0, false
}

// FieldType returns the declared type of a field member, or nil if
// name is not a field of this type.
func (ti *TypeInfo) FieldType(name string) *ast.TypeExpr {
	if f, ok := ti.Fields[name]; ok {
		return &f.Type
	}
	return nil
}

// SymbolTable indexes every named declaration in a parsed file for
// fast lookup by the reference and enum checkers.
type SymbolTable struct {
	Types    map[string]*TypeInfo
	Defaults map[string]*ast.Default
	Rules    map[string]*ast.Rule
}

// BuildSymbolTable constructs a SymbolTable from a parsed file.
// Types are indexed by category (external entities, then value types,
// then entities), each category in file order; a duplicate top-level
// name overwrites the entry indexed before it.
func BuildSymbolTable(f *ast.File) *SymbolTable {
	st := &SymbolTable{
		Types:    make(map[string]*TypeInfo, len(f.Entities)+len(f.ExternalEntities)+len(f.ValueTypes)),
		Defaults: make(map[string]*ast.Default, len(f.Defaults)),
		Rules:    make(map[string]*ast.Rule, len(f.Rules)),
	}

	for i := range f.ExternalEntities {
		ee := &f.ExternalEntities[i]
		st.Types[ee.Name] = &TypeInfo{
			Kind:   KindExternalEntity,
			Name:   ee.Name,
			Fields: fieldMap(ee.Fields),
		}
	}
	for i := range f.ValueTypes {
		vt := &f.ValueTypes[i]
		st.Types[vt.Name] = &TypeInfo{
			Kind:   KindValueType,
			Name:   vt.Name,
			Fields: fieldMap(vt.Fields),
		}
	}
	for i := range f.Entities {
		e := &f.Entities[i]
		rels := make(map[string]ast.Relationship, len(e.Relationships))
		for _, r := range e.Relationships {
			rels[r.Name] = r
		}
		projs := make(map[string]ast.Projection, len(e.Projections))
		for _, p := range e.Projections {
			projs[p.Name] = p
		}
		derived := make(map[string]ast.Derived, len(e.Derived))
		for _, d := range e.Derived {
			derived[d.Name] = d
		}
		st.Types[e.Name] = &TypeInfo{
			Kind:          KindEntity,
			Name:          e.Name,
			Fields:        fieldMap(e.Fields),
			Relationships: rels,
			Projections:   projs,
			Derived:       derived,
		}
	}
	for i := range f.Defaults {
		d := &f.Defaults[i]
		st.Defaults[d.Name] = d
	}
	for i := range f.Rules {
		r := &f.Rules[i]
		st.Rules[r.Name] = r
	}

	return st
}

func fieldMap(fields []ast.Field) map[string]ast.Field {
	m := make(map[string]ast.Field, len(fields))
	for _, f := range fields {
		m[f.Name] = f
	}
	return m
}

// LookupType returns the TypeInfo for name, or nil if undeclared.
func (st *SymbolTable) LookupType(name string) *TypeInfo {
	return st.Types[name]
}

// HasType reports whether name resolves to any declared entity,
// external entity, or value type.
func (st *SymbolTable) HasType(name string) bool {
	_, ok := st.Types[name]
	return ok
}

// TypeNames returns every declared type name, for suggestion candidate
// pools.
func (st *SymbolTable) TypeNames() []string {
	names := make([]string, 0, len(st.Types))
	for name := range st.Types {
		names = append(names, name)
	}
	return names
}
