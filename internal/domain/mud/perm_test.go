package mud

import "testing"

func TestParsePermRule_Keywords(t *testing.T) {
	for _, kind := range []string{RuleAny, RuleNone, RuleOwner, RuleNode} {
		rule, err := ParsePermRule(kind)
		if err != nil {
			t.Fatalf("parse %q: %v", kind, err)
		}
		if rule.Kind != kind {
			t.Fatalf("parse %q: got kind %q", kind, rule.Kind)
		}
	}
}

func TestParsePermRule_List(t *testing.T) {
	rule, err := ParsePermRule([]any{"list", []any{"alice", "bob"}})
	if err != nil {
		t.Fatalf("parse list: %v", err)
	}
	if rule.Kind != RuleList || len(rule.Users) != 2 || rule.Users[0] != "alice" {
		t.Fatalf("unexpected rule: %+v", rule)
	}
}

func TestParsePermRule_Rejects(t *testing.T) {
	cases := []any{
		"sometimes",
		[]any{"list"},
		[]any{"allow", []any{"alice"}},
		[]any{"list", []any{42.0}},
		42.0,
	}
	for _, c := range cases {
		if _, err := ParsePermRule(c); err == nil {
			t.Fatalf("expected error for %v", c)
		}
	}
}

func TestParsePermMap_RejectsUnknownKey(t *testing.T) {
	if _, err := ParsePermMap(map[string]any{"fly": "any"}); err == nil {
		t.Fatal("expected error for unknown permission key")
	}
}

func TestPermRule_Allows(t *testing.T) {
	pc := PermContext{
		AgentID:          "a1",
		Username:         "alice",
		OwnerID:          "a1",
		AgentNodeID:      "n1",
		ContainingNodeID: "n1",
	}
	cases := []struct {
		rule PermRule
		pc   PermContext
		want bool
	}{
		{RuleOf(RuleAny), pc, true},
		{RuleOf(RuleNone), pc, false},
		{RuleOf(RuleOwner), pc, true},
		{RuleOf(RuleOwner), PermContext{AgentID: "a2", OwnerID: "a1"}, false},
		// Void targets have no owner.
		{RuleOf(RuleOwner), PermContext{AgentID: "a1", OwnerID: ""}, false},
		{RuleOf(RuleNode), pc, true},
		{RuleOf(RuleNode), PermContext{AgentNodeID: "n1", ContainingNodeID: "n2"}, false},
		{RuleOf(RuleNode), PermContext{}, false},
		{ListRule("alice"), pc, true},
		{ListRule("bob"), pc, false},
		{PermRule{Kind: "garbage"}, pc, false},
	}
	for i, c := range cases {
		if got := c.rule.Allows(c.pc); got != c.want {
			t.Fatalf("case %d: got %v, want %v", i, got, c.want)
		}
	}
}

func TestPermRule_JSONRoundTrip(t *testing.T) {
	for _, rule := range []PermRule{RuleOf(RuleAny), ListRule("alice", "bob")} {
		b, err := rule.MarshalJSON()
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var back PermRule
		if err := back.UnmarshalJSON(b); err != nil {
			t.Fatalf("unmarshal %s: %v", b, err)
		}
		if back.Kind != rule.Kind || len(back.Users) != len(rule.Users) {
			t.Fatalf("round trip changed rule: %+v -> %+v", rule, back)
		}
	}
}

func TestHomeNodePermissions_LockedToOwner(t *testing.T) {
	perms := HomeNodePermissions("alice")
	owner := PermContext{Username: "alice"}
	stranger := PermContext{Username: "bob"}
	for _, key := range []string{PermInteract, PermEdit, PermContain, PermPerms} {
		if !perms[key].Allows(owner) {
			t.Fatalf("owner should hold %s", key)
		}
		if perms[key].Allows(stranger) {
			t.Fatalf("stranger should not hold %s", key)
		}
	}
	if perms[PermDelete].Allows(owner) {
		t.Fatal("home nodes must not be deletable, even by the owner")
	}
	if !perms[PermInspect].Allows(stranger) {
		t.Fatal("home nodes are open to inspect")
	}
}
