package mud

import (
	"encoding/json"
	"testing"
)

func decodeList(t *testing.T, raw string) []any {
	t.Helper()
	var out []any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return out
}

func TestParseRules_Basic(t *testing.T) {
	rules, err := ParseRules(decodeList(t, `[
		{"on":"travel","if":[["eq","self.locked",true]],"do":[["say","locked"],["deny"]]}
	]`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("got %d rules", len(rules))
	}
	r := rules[0]
	if r.On != "travel" || len(r.If) != 1 || len(r.Do) != 2 {
		t.Fatalf("unexpected rule: %+v", r)
	}
	if r.If[0].Op != CondEq || r.If[0].Ref != "self.locked" || r.If[0].Value != true {
		t.Fatalf("unexpected condition: %+v", r.If[0])
	}
	if r.Do[0].Effect.Op != EffectSay || r.Do[0].Effect.Text != "locked" {
		t.Fatalf("unexpected first effect: %+v", r.Do[0].Effect)
	}
	if r.Do[1].Effect.Op != EffectDeny {
		t.Fatalf("unexpected second effect: %+v", r.Do[1].Effect)
	}
}

func TestParseRules_NestedBlockAndElse(t *testing.T) {
	rules, err := ParseRules(decodeList(t, `[
		{"on":"poke","do":[
			{"if":[["gt","self.count",3]],"do":[["set","self.count",0]],"else":[["add","self.count",1]]}
		],"else":[["say","nope"]]}
	]`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	entry := rules[0].Do[0]
	if entry.Block == nil {
		t.Fatal("expected nested block")
	}
	if len(entry.Block.If) != 1 || len(entry.Block.Do) != 1 || len(entry.Block.Else) != 1 {
		t.Fatalf("unexpected block: %+v", entry.Block)
	}
	if len(rules[0].Else) != 1 {
		t.Fatalf("expected else branch, got %+v", rules[0].Else)
	}
}

func TestParseRules_AllEffectForms(t *testing.T) {
	rules, err := ParseRules(decodeList(t, `[
		{"on":"use","do":[
			["set","self.hp",10],
			["add","subject.hp","self.heal"],
			["say","{actor.username} used it"],
			["take","01TPL","actor"],
			["give","01TPL","container"],
			["move","actor","self.destination"],
			["create","01TPL","self"],
			["destroy","subject"],
			["perm","self","interact",["list",["alice"]]],
			["deny"]
		]}
	]`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rules[0].Do) != 10 {
		t.Fatalf("got %d effects", len(rules[0].Do))
	}
	permEff := rules[0].Do[8].Effect
	if permEff.Op != EffectPerm || permEff.PermKey != PermInteract || permEff.PermRule.Kind != RuleList {
		t.Fatalf("unexpected perm effect: %+v", permEff)
	}
}

func TestParseRules_Rejects(t *testing.T) {
	bad := []string{
		`[{"do":[["deny"]]}]`,
		`[{"on":"x"}]`,
		`[{"on":"x","do":[["frobnicate","self"]]}]`,
		`[{"on":"x","do":[["set","self.a"]]}]`,
		`[{"on":"x","do":[["perm","self","fly","any"]]}]`,
		`[{"on":"x","do":[["deny"]],"extra":1}]`,
		`[{"on":"x","if":[["between","self.a",1,2]],"do":[["deny"]]}]`,
		`[{"on":"x","do":[{"if":[],"else":[["deny"]]}]}]`,
	}
	for _, raw := range bad {
		if _, err := ParseRules(decodeList(t, raw)); err == nil {
			t.Fatalf("expected error for %s", raw)
		}
	}
}

func TestParseCondition_Not(t *testing.T) {
	rules, err := ParseRules(decodeList(t, `[
		{"on":"x","if":[["not",["has","self","01TPL"]]],"do":[["deny"]]}
	]`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cond := rules[0].If[0]
	if cond.Op != CondNot || cond.Not == nil || cond.Not.Op != CondHas || cond.Not.TemplateID != "01TPL" {
		t.Fatalf("unexpected condition: %+v", cond)
	}
}

func TestEncodeRules_RoundTrip(t *testing.T) {
	fixture := `[
		{"on":"travel","if":[["eq","self.locked",true],["not",["has","actor","01KEY"]]],
		 "do":[["say","locked"],{"if":[["gt","tick.count",43200]],"do":[["deny"]]}],
		 "else":[["set","self.locked",false]]}
	]`
	rules, err := ParseRules(decodeList(t, fixture))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	encoded, err := json.Marshal(EncodeRules(rules))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := ParseRules(decodeList(t, string(encoded)))
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if len(back) != 1 || len(back[0].If) != 2 || len(back[0].Do) != 2 || len(back[0].Else) != 1 {
		t.Fatalf("round trip changed shape: %+v", back)
	}
}

func TestValidateTemplatePayload(t *testing.T) {
	good := map[string]any{
		"name":          "door",
		"template_type": "link",
		"interactions":  []any{map[string]any{"on": "travel", "do": []any{}}},
	}
	if err := ValidateTemplatePayload(good); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}
	bad := map[string]any{
		"name":          "door",
		"template_type": "portal",
	}
	if err := ValidateTemplatePayload(bad); err == nil {
		t.Fatal("expected schema rejection for bad template_type")
	}
}
