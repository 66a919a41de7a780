package semantic

import (
	"testing"

	"github.com/foundry-zero/allium-check/internal/parser"
)

func buildTable(t *testing.T, src string) *SymbolTable {
	t.Helper()
	f, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("unexpected parse error: %s", err)
	}
	return BuildSymbolTable(f)
}

func TestBuildSymbolTableIndexesAllDeclarationKinds(t *testing.T) {
	st := buildTable(t, `
external Gateway {
  id: String
}

value Money {
  amount: Decimal
}

entity User {
  email: String
  orders: Order for this ownership
  activeOrders: orders with status = "active"
  fullName: email + ""
}

entity Order {
  status: active | shipped
}

default User admin {
  status: active
}

rule Noop {
  when: Sweep()
  ensures: true
}
`)
	if ti := st.LookupType("Gateway"); ti == nil || ti.Kind != KindExternalEntity {
		t.Fatalf("expected Gateway external entity, got %+v", ti)
	}
	if ti := st.LookupType("Money"); ti == nil || ti.Kind != KindValueType {
		t.Fatalf("expected Money value type, got %+v", ti)
	}
	user := st.LookupType("User")
	if user == nil || user.Kind != KindEntity {
		t.Fatalf("expected User entity, got %+v", user)
	}
	if _, ok := user.Relationships["orders"]; !ok {
		t.Errorf("expected orders relationship on User")
	}
	if _, ok := user.Projections["activeOrders"]; !ok {
		t.Errorf("expected activeOrders projection on User")
	}
	if _, ok := user.Derived["fullName"]; !ok {
		t.Errorf("expected fullName derived member on User")
	}
	if st.Defaults["admin"] == nil {
		t.Errorf("expected admin default indexed")
	}
	if st.Rules["Noop"] == nil {
		t.Errorf("expected Noop rule indexed")
	}
}

func TestMemberResolvesFieldAndRejectsMissing(t *testing.T) {
	st := buildTable(t, `
entity A {
  x: String
}
`)
	ti := st.LookupType("A")
	kind, ok := ti.Member("x")
	if !ok || kind != MemberField {
		t.Fatalf("got %v, %v", kind, ok)
	}
	if _, ok := ti.Member("missing"); ok {
		t.Fatalf("expected no match for undeclared member")
	}
}

func TestDuplicateTopLevelNameLastWins(t *testing.T) {
	st := buildTable(t, `
entity A {
  x: String
}

entity A {
  y: Integer
}
`)
	ti := st.LookupType("A")
	if _, ok := ti.Fields["x"]; ok {
		t.Errorf("expected first declaration of A to be overwritten")
	}
	if _, ok := ti.Fields["y"]; !ok {
		t.Errorf("expected second declaration of A to win")
	}
}

func TestAllMembersLaterCategoryWinsCollision(t *testing.T) {
	st := buildTable(t, `
entity User {
  score: Integer
  score: friends + 1
  friends: User for this friendship
}
`)
	ti := st.LookupType("User")
	members := ti.AllMembers()
	if members["score"] != MemberDerived {
		t.Errorf("expected derived to overwrite field for score, got %v", members["score"])
	}
	if members["friends"] != MemberRelationship {
		t.Errorf("expected friends relationship, got %v", members["friends"])
	}
	if kind, ok := ti.Member("score"); !ok || kind != MemberDerived {
		t.Errorf("got %v, %v", kind, ok)
	}
}
