package mud

import (
	"encoding/json"
	"fmt"
)

// Permission keys.
const (
	PermInteract = "interact"
	PermEdit     = "edit"
	PermContain  = "contain"
	PermPerms    = "perms"
	PermDelete   = "delete"
	PermInspect  = "inspect"
)

var PermKeys = []string{PermInteract, PermEdit, PermContain, PermPerms, PermDelete, PermInspect}

func ValidPermKey(key string) bool {
	for _, k := range PermKeys {
		if k == key {
			return true
		}
	}
	return false
}

// PermRule is one rule of the permission grammar: "any", "none",
// "owner", "node", or ["list", [username, ...]].
type PermRule struct {
	Kind  string
	Users []string
}

const (
	RuleAny   = "any"
	RuleNone  = "none"
	RuleOwner = "owner"
	RuleNode  = "node"
	RuleList  = "list"
)

func RuleOf(kind string) PermRule { return PermRule{Kind: kind} }

func ListRule(users ...string) PermRule {
	return PermRule{Kind: RuleList, Users: users}
}

// ParsePermRule decodes a rule from its untyped JSON form.
func ParsePermRule(v any) (PermRule, error) {
	switch r := v.(type) {
	case string:
		switch r {
		case RuleAny, RuleNone, RuleOwner, RuleNode:
			return PermRule{Kind: r}, nil
		}
		return PermRule{}, fmt.Errorf("unknown permission rule %q", r)
	case []any:
		if len(r) != 2 {
			return PermRule{}, fmt.Errorf("list rule wants 2 elements, got %d", len(r))
		}
		op, _ := r[0].(string)
		if op != RuleList {
			return PermRule{}, fmt.Errorf("unknown permission rule op %q", op)
		}
		raw, ok := r[1].([]any)
		if !ok {
			return PermRule{}, fmt.Errorf("list rule wants an array of usernames")
		}
		users := make([]string, 0, len(raw))
		for _, u := range raw {
			name, ok := u.(string)
			if !ok {
				return PermRule{}, fmt.Errorf("list rule usernames must be strings")
			}
			users = append(users, name)
		}
		return PermRule{Kind: RuleList, Users: users}, nil
	default:
		return PermRule{}, fmt.Errorf("permission rule must be a string or list tuple")
	}
}

// ParsePermMap decodes a permission-key → rule mapping, rejecting
// unknown keys.
func ParsePermMap(raw map[string]any) (map[string]PermRule, error) {
	if raw == nil {
		return nil, nil
	}
	out := make(map[string]PermRule, len(raw))
	for key, v := range raw {
		if !ValidPermKey(key) {
			return nil, fmt.Errorf("unknown permission key %q", key)
		}
		rule, err := ParsePermRule(v)
		if err != nil {
			return nil, fmt.Errorf("permission %s: %w", key, err)
		}
		out[key] = rule
	}
	return out, nil
}

// Encode returns the untyped JSON form of the rule.
func (r PermRule) Encode() any {
	if r.Kind == RuleList {
		users := make([]any, len(r.Users))
		for i, u := range r.Users {
			users[i] = u
		}
		return []any{RuleList, users}
	}
	return r.Kind
}

func EncodePermMap(rules map[string]PermRule) map[string]any {
	if rules == nil {
		return nil
	}
	out := make(map[string]any, len(rules))
	for key, rule := range rules {
		out[key] = rule.Encode()
	}
	return out
}

func (r PermRule) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Encode())
}

func (r *PermRule) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	rule, err := ParsePermRule(v)
	if err != nil {
		return err
	}
	*r = rule
	return nil
}

// PermContext carries the already-resolved facts a rule is evaluated
// against. OwnerID is empty when the target has no template (void or
// system instances), which makes the owner rule fail closed.
type PermContext struct {
	AgentID          string
	Username         string
	OwnerID          string
	AgentNodeID      string
	ContainingNodeID string
}

// Allows never fails: malformed or unknown rules evaluate to false.
func (r PermRule) Allows(pc PermContext) bool {
	switch r.Kind {
	case RuleAny:
		return true
	case RuleNone:
		return false
	case RuleOwner:
		return pc.OwnerID != "" && pc.AgentID == pc.OwnerID
	case RuleNode:
		return pc.AgentNodeID != "" && pc.AgentNodeID == pc.ContainingNodeID
	case RuleList:
		for _, u := range r.Users {
			if u == pc.Username {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// StockDefaultPermissions is what a template gets when its author omits
// default permissions: open to inspect and interact, owner-held
// otherwise.
func StockDefaultPermissions() map[string]PermRule {
	return map[string]PermRule{
		PermInteract: RuleOf(RuleAny),
		PermInspect:  RuleOf(RuleAny),
		PermEdit:     RuleOf(RuleOwner),
		PermContain:  RuleOf(RuleOwner),
		PermPerms:    RuleOf(RuleOwner),
		PermDelete:   RuleOf(RuleOwner),
	}
}

// HomeNodePermissions locks a home node to its owner. Home nodes are
// templateless, so the owner rule cannot apply; the owning agent is
// named in list rules instead.
func HomeNodePermissions(username string) map[string]PermRule {
	return map[string]PermRule{
		PermInteract: ListRule(username),
		PermEdit:     ListRule(username),
		PermContain:  ListRule(username),
		PermPerms:    ListRule(username),
		PermDelete:   RuleOf(RuleNone),
		PermInspect:  RuleOf(RuleAny),
	}
}

// SystemInstancePermissions pins down the two wired-in home fixtures:
// visible to all, immovable, indestructible.
func SystemInstancePermissions() map[string]PermRule {
	return map[string]PermRule{
		PermInteract: RuleOf(RuleAny),
		PermInspect:  RuleOf(RuleAny),
		PermEdit:     RuleOf(RuleNone),
		PermContain:  RuleOf(RuleNone),
		PermPerms:    RuleOf(RuleNone),
		PermDelete:   RuleOf(RuleNone),
	}
}
