// Package ast defines the typed abstract syntax tree produced by the
// Allium parser. Every node carries a source location; the tree is
// built once by the parser and consumed read-only afterward.
//
// Variant nodes carry a Kind discriminator plus the fields relevant to
// the active variant.
package ast

import "github.com/foundry-zero/allium-check/internal/token"

// File is the root of the AST: an AlliumFile carrying seven ordered
// collections.
type File struct {
	ExternalEntities []ExternalEntity
	ValueTypes       []ValueType
	Entities         []Entity
	Defaults         []Default
	Rules            []Rule
	Deferred         []Deferred
	OpenQuestions    []OpenQuestion
}

// ExternalEntity is an entity-like declaration managed outside the file.
type ExternalEntity struct {
	Name   string
	Fields []Field
	Loc    token.Loc
}

// ValueType is an entity-like declaration without relationships,
// projections, or derived values.
type ValueType struct {
	Name   string
	Fields []Field
	Loc    token.Loc
}

// Entity is a full entity-like declaration.
type Entity struct {
	Name          string
	Fields        []Field
	Relationships []Relationship
	Projections   []Projection
	Derived       []Derived
	Loc           token.Loc
}

// Field is a name, a type expression, and a location.
type Field struct {
	Name string
	Type TypeExpr
	Loc  token.Loc
}

// TypeKind discriminates a TypeExpr's variant.
type TypeKind int

const (
	TPrimitive TypeKind = iota
	TEntityRef
	TEnum
	TOptional
	TSet
	TList
)

// TypeExpr is a tagged variant: primitive(name), entity-ref(name),
// enum(members), optional(inner), set(inner), or list(inner).
type TypeExpr struct {
	Kind    TypeKind
	Name    string    // TPrimitive, TEntityRef
	Members []string  // TEnum, ordered, duplicates retained as written
	Inner   *TypeExpr // TOptional, TSet, TList
	Loc     token.Loc
}

// Relationship navigates from an entity to a target entity under an
// opaque condition identifier.
type Relationship struct {
	Name      string
	Target    string
	Condition string
	Loc       token.Loc
}

// Projection is a filtered view of a relationship.
type Projection struct {
	Name   string
	Source string
	Filter *Expr
	Loc    token.Loc
}

// Derived is a computed member defined by an expression.
type Derived struct {
	Name string
	Expr *Expr
	Loc  token.Loc
}

// Default is a named entity instance used as seed data. The checker
// indexes defaults by name but never cross-checks their contents.
type Default struct {
	Name string
	Loc  token.Loc
}

// Deferred references a detailed specification defined elsewhere. Not
// semantically checked; retained so the AST is a faithful parse of the
// whole file.
type Deferred struct {
	Name string
	Loc  token.Loc
}

// OpenQuestion is an unresolved design note. Not semantically checked.
type OpenQuestion struct {
	Text string
	Loc  token.Loc
}

// TriggerKind discriminates a Trigger's variant.
type TriggerKind int

const (
	TrigStimulus TriggerKind = iota
	TrigStateChange
	TrigCreated
	TrigTemporal
	TrigDerived
	TrigChained // produced by rule composition downstream, never by the parser
)

// TriggerParam is a named, possibly-optional stimulus/chained parameter.
type TriggerParam struct {
	Name     string
	Optional bool
}

// Trigger is the condition under which a rule fires.
type Trigger struct {
	Kind TriggerKind

	// TrigStimulus, TrigChained
	Name   string
	Params []TriggerParam

	// TrigStateChange, TrigCreated
	Binding string
	Entity  string
	Field   string // TrigStateChange only
	Value   *Expr  // TrigStateChange only

	// TrigTemporal, TrigDerived
	Expr *Expr

	Loc token.Loc
}

// LetBinding introduces a local variable visible to subsequent let
// bindings, requires, and ensures expressions.
type LetBinding struct {
	Name string
	Expr *Expr
	Loc  token.Loc
}

// Rule defines behaviour triggered by a condition.
type Rule struct {
	Name        string
	Trigger     Trigger
	LetBindings []LetBinding
	Requires    []Expr
	Ensures     []Expr
	Loc         token.Loc
}

// ExprKind discriminates an Expr's variant.
type ExprKind int

const (
	EIdent ExprKind = iota
	ENumber
	EString
	EBool
	ENull
	EEnumValue
	EFieldAccess
	ECall
	EBinary
	EUnary
	ELambda
	EJoinLookup
	EEntityCreated
)

// FieldValue is a (field name, value expression) pair used by
// join-lookup and entity-created expressions.
type FieldValue struct {
	Field string
	Value *Expr
}

// Expr is a tagged variant covering every expression form.
type Expr struct {
	Kind ExprKind

	// EIdent, EEnumValue
	Name string

	// ENumber, EString: raw lexeme / literal text
	Text string

	// EBool
	Bool bool

	// EFieldAccess
	Object *Expr
	Field  string

	// ECall
	Callee *Expr
	Args   []Expr

	// EBinary
	Op    string
	Left  *Expr
	Right *Expr

	// EUnary
	UnaryOp string
	Operand *Expr

	// ELambda
	Param string
	Body  *Expr

	// EJoinLookup, EEntityCreated
	Entity     string
	FieldPairs []FieldValue

	Loc token.Loc
}
