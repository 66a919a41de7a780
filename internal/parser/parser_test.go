package parser

import (
	"testing"

	"github.com/foundry-zero/allium-check/internal/ast"
)

func mustParse(t *testing.T, src string) *ast.File {
	t.Helper()
	f, err := Parse(src)
	if err != nil {
		t.Fatalf("unexpected parse error: %s", err)
	}
	return f
}

func TestParseSimpleField(t *testing.T) {
	f := mustParse(t, `
entity User {
  email: String
}
`)
	if len(f.Entities) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(f.Entities))
	}
	e := f.Entities[0]
	if e.Name != "User" {
		t.Fatalf("got entity name %q", e.Name)
	}
	if len(e.Fields) != 1 || e.Fields[0].Name != "email" {
		t.Fatalf("got fields %+v", e.Fields)
	}
	if e.Fields[0].Type.Kind != ast.TPrimitive || e.Fields[0].Type.Name != "String" {
		t.Fatalf("got type %+v", e.Fields[0].Type)
	}
}

func TestParseEntityMemberDisambiguation(t *testing.T) {
	f := mustParse(t, `
entity User {
  email: String
  orders: Order for this ownership
  activeOrders: orders with status = "active"
  fullName: firstName + " " + lastName
}
`)
	e := f.Entities[0]
	if len(e.Fields) != 1 || e.Fields[0].Name != "email" {
		t.Fatalf("got fields %+v", e.Fields)
	}
	if len(e.Relationships) != 1 {
		t.Fatalf("expected 1 relationship, got %+v", e.Relationships)
	}
	rel := e.Relationships[0]
	if rel.Name != "orders" || rel.Target != "Order" || rel.Condition != "ownership" {
		t.Fatalf("got relationship %+v", rel)
	}
	if len(e.Projections) != 1 {
		t.Fatalf("expected 1 projection, got %+v", e.Projections)
	}
	proj := e.Projections[0]
	if proj.Name != "activeOrders" || proj.Source != "orders" {
		t.Fatalf("got projection %+v", proj)
	}
	if proj.Filter.Kind != ast.EBinary || proj.Filter.Op != "=" {
		t.Fatalf("got filter %+v", proj.Filter)
	}
	if len(e.Derived) != 1 || e.Derived[0].Name != "fullName" {
		t.Fatalf("got derived %+v", e.Derived)
	}
	if e.Derived[0].Expr.Kind != ast.EBinary || e.Derived[0].Expr.Op != "+" {
		t.Fatalf("got derived expr %+v", e.Derived[0].Expr)
	}
}

func TestParseEnumType(t *testing.T) {
	f := mustParse(t, `
entity Account {
  status: active | suspended | closed
}
`)
	typ := f.Entities[0].Fields[0].Type
	if typ.Kind != ast.TEnum {
		t.Fatalf("expected enum type, got %+v", typ)
	}
	want := []string{"active", "suspended", "closed"}
	if len(typ.Members) != len(want) {
		t.Fatalf("got members %v", typ.Members)
	}
	for i := range want {
		if typ.Members[i] != want[i] {
			t.Errorf("member %d: got %s want %s", i, typ.Members[i], want[i])
		}
	}
}

func TestParseOptionalAndCollectionTypes(t *testing.T) {
	f := mustParse(t, `
entity Team {
  lead: User?
  members: Set<User>
  tags: List<String>
}
`)
	fields := f.Entities[0].Fields

	lead := fields[0].Type
	if lead.Kind != ast.TOptional || lead.Inner.Kind != ast.TEntityRef || lead.Inner.Name != "User" {
		t.Fatalf("got lead type %+v", lead)
	}

	members := fields[1].Type
	if members.Kind != ast.TSet || members.Inner.Name != "User" {
		t.Fatalf("got members type %+v", members)
	}

	tags := fields[2].Type
	if tags.Kind != ast.TList || tags.Inner.Kind != ast.TPrimitive || tags.Inner.Name != "String" {
		t.Fatalf("got tags type %+v", tags)
	}
}

func TestParseStimulusTrigger(t *testing.T) {
	f := mustParse(t, `
rule AdminSuspendsUser {
  when: AdminSuspends(user, reason?)
  requires: user.status != suspended
  ensures: user.status = suspended
}
`)
	r := f.Rules[0]
	if r.Trigger.Kind != ast.TrigStimulus || r.Trigger.Name != "AdminSuspends" {
		t.Fatalf("got trigger %+v", r.Trigger)
	}
	if len(r.Trigger.Params) != 2 || r.Trigger.Params[1].Name != "reason" || !r.Trigger.Params[1].Optional {
		t.Fatalf("got params %+v", r.Trigger.Params)
	}
	if len(r.Requires) != 1 || len(r.Ensures) != 1 {
		t.Fatalf("got requires=%+v ensures=%+v", r.Requires, r.Ensures)
	}
}

func TestParseStateChangeTrigger(t *testing.T) {
	f := mustParse(t, `
rule OrderShips {
  when: o: Order.status becomes shipped
  ensures: o.shippedAt != null
}
`)
	trig := f.Rules[0].Trigger
	if trig.Kind != ast.TrigStateChange || trig.Binding != "o" || trig.Entity != "Order" || trig.Field != "status" {
		t.Fatalf("got trigger %+v", trig)
	}
	if trig.Value == nil || trig.Value.Kind != ast.EIdent || trig.Value.Name != "shipped" {
		t.Fatalf("got trigger value %+v", trig.Value)
	}
}

func TestParseCreatedTrigger(t *testing.T) {
	f := mustParse(t, `
rule UserCreated {
  when: u: User.created
  ensures: u.status = pending
}
`)
	trig := f.Rules[0].Trigger
	if trig.Kind != ast.TrigCreated || trig.Binding != "u" || trig.Entity != "User" {
		t.Fatalf("got trigger %+v", trig)
	}
}

func TestParseTemporalTrigger(t *testing.T) {
	f := mustParse(t, `
rule ReminderDue {
  when: now > order.dueDate
  ensures: send(reminder)
}
`)
	trig := f.Rules[0].Trigger
	if trig.Kind != ast.TrigTemporal {
		t.Fatalf("expected temporal trigger, got %+v", trig)
	}
}

func TestParseDerivedTrigger(t *testing.T) {
	f := mustParse(t, `
rule Recalculate {
  when: order.total + order.tax
  ensures: true
}
`)
	trig := f.Rules[0].Trigger
	if trig.Kind != ast.TrigDerived {
		t.Fatalf("expected derived trigger, got %+v", trig)
	}
}

func TestParseEntityCreatedExpression(t *testing.T) {
	f := mustParse(t, `
rule CreateOrder {
  when: PlaceOrder(user, items)
  ensures: order.created(user: user, total: 0)
}
`)
	e := f.Rules[0].Ensures[0]
	if e.Kind != ast.EEntityCreated || e.Entity != "order" {
		t.Fatalf("got ensures expr %+v", e)
	}
	if len(e.FieldPairs) != 2 || e.FieldPairs[0].Field != "user" || e.FieldPairs[1].Field != "total" {
		t.Fatalf("got field pairs %+v", e.FieldPairs)
	}
}

func TestParseJoinLookupExpression(t *testing.T) {
	f := mustParse(t, `
rule CheckBalance {
  when: BalanceCheck(user)
  ensures: Account{owner: user}.balance > 0
}
`)
	e := f.Rules[0].Ensures[0]
	if e.Kind != ast.EBinary || e.Op != ">" {
		t.Fatalf("got ensures expr %+v", e)
	}
	access := e.Left
	if access.Kind != ast.EFieldAccess || access.Field != "balance" {
		t.Fatalf("got left %+v", access)
	}
	lookup := access.Object
	if lookup.Kind != ast.EJoinLookup || lookup.Entity != "Account" {
		t.Fatalf("got lookup %+v", lookup)
	}
	if len(lookup.FieldPairs) != 1 || lookup.FieldPairs[0].Field != "owner" {
		t.Fatalf("got lookup fields %+v", lookup.FieldPairs)
	}
}

func TestParseLambdaArgument(t *testing.T) {
	f := mustParse(t, `
rule NotifyActive {
  when: Sweep()
  ensures: verify(item => item.active)
}
`)
	call := f.Rules[0].Ensures[0]
	if call.Kind != ast.ECall || len(call.Args) != 1 {
		t.Fatalf("got call %+v", call)
	}
	lambda := call.Args[0]
	if lambda.Kind != ast.ELambda || lambda.Param != "item" {
		t.Fatalf("got lambda %+v", lambda)
	}
	if lambda.Body.Kind != ast.EFieldAccess || lambda.Body.Field != "active" {
		t.Fatalf("got lambda body %+v", lambda.Body)
	}
}

func TestParseConfigReference(t *testing.T) {
	f := mustParse(t, `
rule LimitCheck {
  when: Sweep()
  requires: order.total < config / maxOrderTotal
}
`)
	req := f.Rules[0].Requires[0]
	if req.Kind != ast.EBinary || req.Op != "<" {
		t.Fatalf("got requires %+v", req)
	}
	if req.Right.Kind != ast.EIdent || req.Right.Name != "config/maxOrderTotal" {
		t.Fatalf("got config ref %+v", req.Right)
	}
}

func TestParseBracketLiteralBecomesArrayCall(t *testing.T) {
	f := mustParse(t, `
rule SeedTags {
  when: Sweep()
  let tags = [ "a", "b" ]
  ensures: true
}
`)
	lb := f.Rules[0].LetBindings[0]
	if lb.Expr.Kind != ast.ECall || lb.Expr.Callee.Name != "__array" {
		t.Fatalf("got let binding expr %+v", lb.Expr)
	}
	if len(lb.Expr.Args) != 2 {
		t.Fatalf("got args %+v", lb.Expr.Args)
	}
}

func TestParseRuleWithNoTriggerFails(t *testing.T) {
	_, err := Parse(`
rule Broken {
  ensures: true
}
`)
	if err == nil {
		t.Fatal("expected error for rule with no trigger")
	}
}

func TestParseUnterminatedEntityFails(t *testing.T) {
	_, err := Parse(`entity User { email: String`)
	if err == nil {
		t.Fatal("expected error for unterminated entity body")
	}
}

func TestParseExternalAndValueAndDefault(t *testing.T) {
	f := mustParse(t, `
external PaymentGateway {
  id: String
}

value Money {
  amount: Decimal
  currency: String
}

default User admin {
  status: active
}
`)
	if len(f.ExternalEntities) != 1 || f.ExternalEntities[0].Name != "PaymentGateway" {
		t.Fatalf("got external entities %+v", f.ExternalEntities)
	}
	if len(f.ValueTypes) != 1 || len(f.ValueTypes[0].Fields) != 2 {
		t.Fatalf("got value types %+v", f.ValueTypes)
	}
	if len(f.Defaults) != 1 || f.Defaults[0].Name != "admin" {
		t.Fatalf("got defaults %+v", f.Defaults)
	}
}

func TestParseDeferredAndOpenQuestion(t *testing.T) {
	f := mustParse(t, `
deferred BillingCycle {
  note: String
}

open question "should refunds reopen the order?"
`)
	if len(f.Deferred) != 1 || f.Deferred[0].Name != "BillingCycle" {
		t.Fatalf("got deferred %+v", f.Deferred)
	}
	if len(f.OpenQuestions) != 1 || f.OpenQuestions[0].Text != "should refunds reopen the order?" {
		t.Fatalf("got open questions %+v", f.OpenQuestions)
	}
}

func TestParseWithExtraPrimitives(t *testing.T) {
	src := `entity Account { balance: Money }`

	f := mustParse(t, src)
	if f.Entities[0].Fields[0].Type.Kind != ast.TEntityRef {
		t.Fatalf("expected entity-ref without extensions, got %+v", f.Entities[0].Fields[0].Type)
	}

	f, err := ParseWith(src, []string{"Money"})
	if err != nil {
		t.Fatalf("unexpected parse error: %s", err)
	}
	if f.Entities[0].Fields[0].Type.Kind != ast.TPrimitive {
		t.Fatalf("expected primitive with extensions, got %+v", f.Entities[0].Fields[0].Type)
	}
}
