package mud

import (
	"encoding/json"
	"fmt"
)

// The interaction rule language. A template carries an ordered list of
// rules; each rule fires when its verb matches a triggering call.
//
// Wire form: conditions and primitive effects are JSON arrays beginning
// with the op string; nested conditional blocks are objects mirroring
// the rule shape without "on".

// Condition ops.
const (
	CondEq  = "eq"
	CondNeq = "neq"
	CondGt  = "gt"
	CondLt  = "lt"
	CondHas = "has"
	CondNot = "not"
)

// Effect ops.
const (
	EffectSet     = "set"
	EffectAdd     = "add"
	EffectSay     = "say"
	EffectTake    = "take"
	EffectGive    = "give"
	EffectMove    = "move"
	EffectCreate  = "create"
	EffectDestroy = "destroy"
	EffectPerm    = "perm"
	EffectDeny    = "deny"
)

type Rule struct {
	On   string
	If   []Condition
	Do   []EffectEntry
	Else []EffectEntry
}

type Condition struct {
	Op         string
	Ref        string
	Value      any        // literal operand for eq/neq/gt/lt
	TemplateID string     // has
	Not        *Condition // not
}

// EffectEntry is either a primitive effect or a nested conditional
// block; exactly one side is set.
type EffectEntry struct {
	Effect *Effect
	Block  *Block
}

type Block struct {
	If   []Condition
	Do   []EffectEntry
	Else []EffectEntry
}

type Effect struct {
	Op         string
	Ref        string   // set/add target; take source; give/create destination; move subject; destroy/perm target
	Value      any      // set value, add amount (either may be a reference string); move destination node
	Text       string   // say
	TemplateID string   // take/give/create
	PermKey    string   // perm
	PermRule   PermRule // perm
}

// ParseRules decodes a template's interaction list from untyped JSON.
func ParseRules(raw []any) ([]Rule, error) {
	rules := make([]Rule, 0, len(raw))
	for i, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("interaction %d: not an object", i)
		}
		rule, err := parseRule(m)
		if err != nil {
			return nil, fmt.Errorf("interaction %d: %w", i, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func parseRule(m map[string]any) (Rule, error) {
	on, _ := m["on"].(string)
	if on == "" {
		return Rule{}, fmt.Errorf(`missing "on" verb`)
	}
	for key := range m {
		switch key {
		case "on", "if", "do", "else":
		default:
			return Rule{}, fmt.Errorf("unknown key %q", key)
		}
	}
	conds, do, els, err := parseBlockParts(m)
	if err != nil {
		return Rule{}, err
	}
	if len(do) == 0 {
		return Rule{}, fmt.Errorf(`missing "do" effects`)
	}
	return Rule{On: on, If: conds, Do: do, Else: els}, nil
}

func parseBlockParts(m map[string]any) ([]Condition, []EffectEntry, []EffectEntry, error) {
	var conds []Condition
	if raw, ok := m["if"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return nil, nil, nil, fmt.Errorf(`"if" must be a list of conditions`)
		}
		for i, c := range list {
			cond, err := parseCondition(c)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("if[%d]: %w", i, err)
			}
			conds = append(conds, cond)
		}
	}
	do, err := parseEffectList(m["do"])
	if err != nil {
		return nil, nil, nil, fmt.Errorf(`"do": %w`, err)
	}
	var els []EffectEntry
	if raw, ok := m["else"]; ok {
		els, err = parseEffectList(raw)
		if err != nil {
			return nil, nil, nil, fmt.Errorf(`"else": %w`, err)
		}
	}
	return conds, do, els, nil
}

func parseCondition(v any) (Condition, error) {
	tup, ok := v.([]any)
	if !ok || len(tup) == 0 {
		return Condition{}, fmt.Errorf("condition must be a non-empty array")
	}
	op, _ := tup[0].(string)
	switch op {
	case CondEq, CondNeq, CondGt, CondLt:
		if len(tup) != 3 {
			return Condition{}, fmt.Errorf("%s wants [op, ref, value]", op)
		}
		ref, ok := tup[1].(string)
		if !ok {
			return Condition{}, fmt.Errorf("%s: ref must be a string", op)
		}
		return Condition{Op: op, Ref: ref, Value: tup[2]}, nil
	case CondHas:
		if len(tup) != 3 {
			return Condition{}, fmt.Errorf("has wants [has, ref, template_id]")
		}
		ref, _ := tup[1].(string)
		tid, _ := tup[2].(string)
		if ref == "" || tid == "" {
			return Condition{}, fmt.Errorf("has: ref and template id must be strings")
		}
		return Condition{Op: CondHas, Ref: ref, TemplateID: tid}, nil
	case CondNot:
		if len(tup) != 2 {
			return Condition{}, fmt.Errorf("not wants [not, condition]")
		}
		inner, err := parseCondition(tup[1])
		if err != nil {
			return Condition{}, fmt.Errorf("not: %w", err)
		}
		return Condition{Op: CondNot, Not: &inner}, nil
	default:
		return Condition{}, fmt.Errorf("unknown condition op %q", op)
	}
}

func parseEffectList(v any) ([]EffectEntry, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("must be a list")
	}
	out := make([]EffectEntry, 0, len(list))
	for i, e := range list {
		entry, err := parseEffectEntry(e)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out = append(out, entry)
	}
	return out, nil
}

func parseEffectEntry(v any) (EffectEntry, error) {
	switch e := v.(type) {
	case []any:
		eff, err := parseEffect(e)
		if err != nil {
			return EffectEntry{}, err
		}
		return EffectEntry{Effect: &eff}, nil
	case map[string]any:
		for key := range e {
			switch key {
			case "if", "do", "else":
			default:
				return EffectEntry{}, fmt.Errorf("unknown key %q in nested block", key)
			}
		}
		conds, do, els, err := parseBlockParts(e)
		if err != nil {
			return EffectEntry{}, err
		}
		if len(do) == 0 {
			return EffectEntry{}, fmt.Errorf(`nested block missing "do"`)
		}
		return EffectEntry{Block: &Block{If: conds, Do: do, Else: els}}, nil
	default:
		return EffectEntry{}, fmt.Errorf("effect must be an array or a nested block")
	}
}

func parseEffect(tup []any) (Effect, error) {
	if len(tup) == 0 {
		return Effect{}, fmt.Errorf("effect must be a non-empty array")
	}
	op, _ := tup[0].(string)
	str := func(i int) (string, bool) {
		if i >= len(tup) {
			return "", false
		}
		s, ok := tup[i].(string)
		return s, ok
	}
	switch op {
	case EffectSet:
		ref, ok := str(1)
		if !ok || len(tup) != 3 {
			return Effect{}, fmt.Errorf("set wants [set, ref, value]")
		}
		return Effect{Op: op, Ref: ref, Value: tup[2]}, nil
	case EffectAdd:
		ref, ok := str(1)
		if !ok || len(tup) != 3 {
			return Effect{}, fmt.Errorf("add wants [add, ref, n]")
		}
		return Effect{Op: op, Ref: ref, Value: tup[2]}, nil
	case EffectSay:
		text, ok := str(1)
		if !ok || len(tup) != 2 {
			return Effect{}, fmt.Errorf("say wants [say, text]")
		}
		return Effect{Op: op, Text: text}, nil
	case EffectTake, EffectGive:
		tid, ok1 := str(1)
		ref, ok2 := str(2)
		if !ok1 || !ok2 || len(tup) != 3 {
			return Effect{}, fmt.Errorf("%s wants [%s, template_id, ref]", op, op)
		}
		return Effect{Op: op, TemplateID: tid, Ref: ref}, nil
	case EffectMove:
		target, ok1 := str(1)
		node, ok2 := str(2)
		if !ok1 || !ok2 || len(tup) != 3 {
			return Effect{}, fmt.Errorf("move wants [move, ref, node]")
		}
		return Effect{Op: op, Ref: target, Value: node}, nil
	case EffectCreate:
		tid, ok1 := str(1)
		ref, ok2 := str(2)
		if !ok1 || !ok2 || len(tup) != 3 {
			return Effect{}, fmt.Errorf("create wants [create, template_id, ref]")
		}
		return Effect{Op: op, TemplateID: tid, Ref: ref}, nil
	case EffectDestroy:
		ref, ok := str(1)
		if !ok || len(tup) != 2 {
			return Effect{}, fmt.Errorf("destroy wants [destroy, ref]")
		}
		return Effect{Op: op, Ref: ref}, nil
	case EffectPerm:
		ref, ok1 := str(1)
		key, ok2 := str(2)
		if !ok1 || !ok2 || len(tup) != 4 {
			return Effect{}, fmt.Errorf("perm wants [perm, ref, key, rule]")
		}
		if !ValidPermKey(key) {
			return Effect{}, fmt.Errorf("perm: unknown permission key %q", key)
		}
		rule, err := ParsePermRule(tup[3])
		if err != nil {
			return Effect{}, fmt.Errorf("perm: %w", err)
		}
		return Effect{Op: op, Ref: ref, PermKey: key, PermRule: rule}, nil
	case EffectDeny:
		if len(tup) != 1 {
			return Effect{}, fmt.Errorf("deny takes no operands")
		}
		return Effect{Op: op}, nil
	default:
		return Effect{}, fmt.Errorf("unknown effect op %q", op)
	}
}

// Encode returns the untyped JSON form, the inverse of ParseRules.

func EncodeRules(rules []Rule) []any {
	out := make([]any, len(rules))
	for i, r := range rules {
		out[i] = r.Encode()
	}
	return out
}

func (r Rule) Encode() map[string]any {
	m := map[string]any{"on": r.On, "do": encodeEffectList(r.Do)}
	if len(r.If) > 0 {
		m["if"] = encodeConditions(r.If)
	}
	if len(r.Else) > 0 {
		m["else"] = encodeEffectList(r.Else)
	}
	return m
}

func encodeConditions(conds []Condition) []any {
	out := make([]any, len(conds))
	for i, c := range conds {
		out[i] = c.Encode()
	}
	return out
}

func (c Condition) Encode() any {
	switch c.Op {
	case CondHas:
		return []any{c.Op, c.Ref, c.TemplateID}
	case CondNot:
		return []any{c.Op, c.Not.Encode()}
	default:
		return []any{c.Op, c.Ref, c.Value}
	}
}

func encodeEffectList(entries []EffectEntry) []any {
	out := make([]any, len(entries))
	for i, e := range entries {
		if e.Block != nil {
			m := map[string]any{"do": encodeEffectList(e.Block.Do)}
			if len(e.Block.If) > 0 {
				m["if"] = encodeConditions(e.Block.If)
			}
			if len(e.Block.Else) > 0 {
				m["else"] = encodeEffectList(e.Block.Else)
			}
			out[i] = m
			continue
		}
		out[i] = e.Effect.Encode()
	}
	return out
}

func (e Effect) Encode() []any {
	switch e.Op {
	case EffectSet, EffectAdd:
		return []any{e.Op, e.Ref, e.Value}
	case EffectSay:
		return []any{e.Op, e.Text}
	case EffectTake, EffectGive, EffectCreate:
		return []any{e.Op, e.TemplateID, e.Ref}
	case EffectMove:
		return []any{e.Op, e.Ref, e.Value}
	case EffectDestroy:
		return []any{e.Op, e.Ref}
	case EffectPerm:
		return []any{e.Op, e.Ref, e.PermKey, e.PermRule.Encode()}
	default:
		return []any{e.Op}
	}
}

func (r Rule) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Encode())
}

func (r *Rule) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	rule, err := parseRule(m)
	if err != nil {
		return err
	}
	*r = rule
	return nil
}
