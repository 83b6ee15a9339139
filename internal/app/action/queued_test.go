package action

import (
	"context"
	"testing"

	"mash/internal/domain/mud"
)

func (f *fixture) seedLink(id, from, to string) {
	f.store.SeedInstance(mud.Instance{
		ID: id, Kind: mud.KindLink, ShortDescription: "a door",
		Fields:    map[string]any{"destination": to},
		Container: mud.InInstance(from),
		Permissions: map[string]mud.PermRule{
			mud.PermInteract: mud.RuleOf(mud.RuleAny),
		},
	})
}

func TestCreateTemplate_ThenInstance(t *testing.T) {
	f := newFixture()
	f.seedAgentInNode("a1", "alice", "home1")
	// The agent's home allows only alice to contain.
	home := f.instance(t, "home1")
	home.Permissions = mud.HomeNodePermissions("alice")
	f.store.SeedInstance(home)

	out := asMap(t, f.runQueued(t, "a1", "create", paramsJSON(t, `{
		"type":"template","name":"rock","template_type":"thing",
		"short_description":"a rock","fields":{"weight":3},
		"interactions":[{"on":"kick","do":[["say","ouch"]]}]
	}`)))
	templateID, _ := out["template_id"].(string)
	if templateID == "" {
		t.Fatalf("no template_id in %v", out)
	}

	out = asMap(t, f.runQueued(t, "a1", "create", map[string]any{
		"type": "instance", "template_id": templateID,
		"fields": map[string]any{"weight": 5.0},
	}))
	instanceID, _ := out["instance_id"].(string)
	if instanceID == "" {
		t.Fatalf("no instance_id in %v", out)
	}
	inst := f.instance(t, instanceID)
	if inst.Container != mud.InInstance("home1") {
		t.Fatalf("default container should be the current node, got %+v", inst.Container)
	}
	if inst.ShortDescription != "a rock" || inst.Fields["weight"] != 5.0 {
		t.Fatalf("instance fields not merged over template: %+v", inst)
	}
}

func TestCreateInstance_RequiresOwnership(t *testing.T) {
	f := newFixture()
	f.seedAgentInNode("a1", "alice", "home1")
	f.store.SeedAgent(mud.Agent{ID: "a2", Username: "bob", CurrentNodeID: "home1", AP: mud.MaxAP})
	f.store.SeedTemplate(mud.Template{ID: "tpl1", OwnerID: "a1", Kind: mud.KindThing})

	out := asMap(t, f.runQueued(t, "a2", "create", map[string]any{"type": "instance", "template_id": "tpl1"}))
	if out["error"] == nil {
		t.Fatal("creating from a foreign template must fail")
	}
}

func TestCreate_NodeMustBeTopLevel(t *testing.T) {
	f := newFixture()
	f.seedAgentInNode("a1", "alice", "home1")
	f.store.SeedTemplate(mud.Template{ID: "tplNode", OwnerID: "a1", Kind: mud.KindNode})
	out := asMap(t, f.runQueued(t, "a1", "create", map[string]any{
		"type": "instance", "template_id": "tplNode", "container_id": "home1",
	}))
	if out["error"] == nil {
		t.Fatal("nodes with a container must be rejected")
	}
	out = asMap(t, f.runQueued(t, "a1", "create", map[string]any{"type": "instance", "template_id": "tplNode"}))
	inst := f.instance(t, out["instance_id"].(string))
	if !inst.Container.IsTopLevel() {
		t.Fatalf("node should be top-level, got %+v", inst.Container)
	}
}

func TestDeleteTemplate_VoidsAndCascades(t *testing.T) {
	f := newFixture()
	f.seedAgentInNode("a1", "alice", "home1")
	// bob lives in a node built from alice's template.
	f.store.SeedTemplate(mud.Template{ID: "tplRoom", OwnerID: "a1", Kind: mud.KindNode})
	f.store.SeedInstance(mud.Instance{ID: "room1", TemplateID: "tplRoom", Kind: mud.KindNode})
	f.store.SeedInstance(mud.Instance{ID: "chair", Kind: mud.KindThing, Container: mud.InInstance("room1")})
	f.store.SeedAgent(mud.Agent{
		ID: "a2", Username: "bob", CurrentNodeID: "room1", HomeNodeID: "home2", AP: mud.MaxAP,
	})
	f.store.SeedInstance(mud.Instance{ID: "home2", Kind: mud.KindNode})

	out := asMap(t, f.runQueued(t, "a1", "delete", map[string]any{"target_id": "tplRoom"}))
	if out["deleted"] != true {
		t.Fatalf("delete failed: %v", out)
	}
	room := f.instance(t, "room1")
	if !room.IsVoid || room.TemplateID != "" {
		t.Fatalf("instance should be voided: %+v", room)
	}
	if !f.instance(t, "chair").IsDestroyed {
		t.Fatal("contained items must be destroyed by the cascade")
	}
	if got := f.agent(t, "a2").CurrentNodeID; got != "home2" {
		t.Fatalf("bob should be evicted home, got %q", got)
	}
	if _, err := f.uc.Templates.GetByID(context.Background(), "tplRoom"); err == nil {
		t.Fatal("template row should be gone")
	}
}

func TestDeleteInstance_RequiresPermission(t *testing.T) {
	f := newFixture()
	f.seedAgentInNode("a1", "alice", "home1")
	f.store.SeedAgent(mud.Agent{ID: "a2", Username: "bob", CurrentNodeID: "home1", AP: mud.MaxAP})
	f.store.SeedTemplate(mud.Template{ID: "tpl1", OwnerID: "a1", Kind: mud.KindThing})
	f.store.SeedInstance(mud.Instance{ID: "i1", TemplateID: "tpl1", Kind: mud.KindThing, Container: mud.InInstance("home1")})

	out := asMap(t, f.runQueued(t, "a2", "delete", map[string]any{"target_id": "i1"}))
	if out["error"] == nil {
		t.Fatal("bob lacks delete")
	}
	out = asMap(t, f.runQueued(t, "a1", "delete", map[string]any{"target_id": "i1"}))
	if out["deleted"] != true {
		t.Fatalf("owner delete failed: %v", out)
	}
	if !f.instance(t, "i1").IsDestroyed {
		t.Fatal("instance should be destroyed")
	}
}

func TestTravel_SingleHop(t *testing.T) {
	f := newFixture()
	f.seedAgentInNode("a1", "alice", "home1")
	f.store.SeedInstance(mud.Instance{ID: "plaza", Kind: mud.KindNode, ShortDescription: "a plaza"})
	f.seedLink("door1", "home1", "plaza")

	out := asMap(t, f.runQueued(t, "a1", "travel", map[string]any{"via": "door1"}))
	if out["error"] != nil {
		t.Fatalf("travel failed: %v", out)
	}
	if out["id"] != "plaza" || out["hops_completed"] != 1 {
		t.Fatalf("unexpected result: %v", out)
	}
	if got := f.agent(t, "a1").CurrentNodeID; got != "plaza" {
		t.Fatalf("agent in %q, want plaza", got)
	}
	usages, _ := f.uc.LinkUsage.ListRecent(context.Background(), "a1", 10)
	if len(usages) != 1 || usages[0].NodeID != "plaza" || usages[0].NodeName != "a plaza" {
		t.Fatalf("link usage = %+v", usages)
	}
}

// Two-hop route whose second link is void: only the completed hop is
// charged against the execution tick's budget.
func TestTravel_ChargesOnlyCompletedHops(t *testing.T) {
	f := newFixture()
	f.seedAgentInNode("a1", "alice", "home1")
	f.store.SeedInstance(mud.Instance{ID: "plaza", Kind: mud.KindNode})
	f.store.SeedInstance(mud.Instance{ID: "vault", Kind: mud.KindNode})
	f.seedLink("door1", "home1", "plaza")
	f.seedLink("door2", "plaza", "vault")
	dead := f.instance(t, "door2")
	dead.IsVoid = true
	f.store.SeedInstance(dead)

	out := asMap(t, f.runQueued(t, "a1", "travel", map[string]any{"via": []any{"door1", "door2"}}))
	if out["stopped_at"] != 1 || out["hops_completed"] != 1 || out["ap_charged"] != 1 {
		t.Fatalf("unexpected stop marker: %v", out)
	}
	if got := f.agent(t, "a1").AP; got != mud.MaxAP-1 {
		t.Fatalf("AP = %d, want %d", got, mud.MaxAP-1)
	}
	if got := f.agent(t, "a1").CurrentNodeID; got != "plaza" {
		t.Fatalf("agent should stop at plaza, got %q", got)
	}
}

// A locked link: the broadcast fires, the move does not happen.
func TestTravel_DenyKeepsAgentInPlace(t *testing.T) {
	f := newFixture()
	f.seedAgentInNode("a1", "alice", "home1")
	f.store.SeedInstance(mud.Instance{ID: "vault", Kind: mud.KindNode})
	f.store.SeedTemplate(mud.Template{
		ID: "tplDoor", OwnerID: "a1", Kind: mud.KindLink,
		Interactions: mustRulesJSON(t, `[
			{"on":"travel","if":[["eq","self.locked",true]],"do":[["say","locked"],["deny"]]}
		]`),
	})
	f.store.SeedInstance(mud.Instance{
		ID: "door1", TemplateID: "tplDoor", Kind: mud.KindLink,
		Fields:    map[string]any{"destination": "vault", "locked": true},
		Container: mud.InInstance("home1"),
	})
	f.store.SeedAgent(mud.Agent{ID: "a2", Username: "bob", CurrentNodeID: "home1", SeeBroadcasts: true, AP: mud.MaxAP})

	out := asMap(t, f.runQueued(t, "a1", "travel", map[string]any{"via": "door1"}))
	if out["error"] == nil || out["hops_completed"] != 0 {
		t.Fatalf("travel should stop: %v", out)
	}
	if got := f.agent(t, "a1").CurrentNodeID; got != "home1" {
		t.Fatalf("agent must stay put, got %q", got)
	}
	got, _ := f.events.Drain(context.Background(), "a2", 0)
	if len(got) != 1 || got[0].Data["message"] != "locked" {
		t.Fatalf("the say before deny must be delivered: %+v", got)
	}
	// Zero hops completed, zero AP charged.
	if ap := f.agent(t, "a1").AP; ap != mud.MaxAP {
		t.Fatalf("AP = %d, want %d", ap, mud.MaxAP)
	}
}

func TestTravel_RandomLinkFilters(t *testing.T) {
	f := newFixture()
	f.seedAgentInNode("a1", "alice", "home1")
	f.store.SeedInstance(mud.Instance{
		ID: "portal", Kind: mud.KindLink, SystemType: mud.SystemRandomLink,
		Container: mud.InInstance("home1"), Permissions: mud.SystemInstancePermissions(),
	})
	// Candidates: bob's home (excluded), a void node (excluded), a
	// closed node (excluded), one open node.
	f.store.SeedAgent(mud.Agent{ID: "a2", Username: "bob", HomeNodeID: "home2", AP: mud.MaxAP})
	f.store.SeedInstance(mud.Instance{ID: "home2", Kind: mud.KindNode})
	f.store.SeedInstance(mud.Instance{ID: "ghost", Kind: mud.KindNode, IsVoid: true})
	f.store.SeedInstance(mud.Instance{ID: "closed", Kind: mud.KindNode, Permissions: map[string]mud.PermRule{
		mud.PermInteract: mud.RuleOf(mud.RuleNone),
	}})
	f.store.SeedInstance(mud.Instance{ID: "open", Kind: mud.KindNode, Permissions: map[string]mud.PermRule{
		mud.PermInteract: mud.RuleOf(mud.RuleAny),
	}})

	out := asMap(t, f.runQueued(t, "a1", "travel", map[string]any{"via": "portal"}))
	if out["error"] != nil {
		t.Fatalf("travel failed: %v", out)
	}
	if got := f.agent(t, "a1").CurrentNodeID; got != "open" {
		t.Fatalf("portal must land on the one eligible node, got %q", got)
	}
}

func TestHome_Teleport(t *testing.T) {
	f := newFixture()
	f.seedAgentInNode("a1", "alice", "home1")
	out := asMap(t, f.runQueued(t, "a1", "home", nil))
	if out["error"] == nil {
		t.Fatal("home while home must fail")
	}
	agent := f.agent(t, "a1")
	agent.CurrentNodeID = "elsewhere"
	f.store.SeedAgent(agent)
	f.store.SeedInstance(mud.Instance{ID: "elsewhere", Kind: mud.KindNode})
	out = asMap(t, f.runQueued(t, "a1", "home", nil))
	if out["error"] != nil {
		t.Fatalf("home failed: %v", out)
	}
	if got := f.agent(t, "a1").CurrentNodeID; got != "home1" {
		t.Fatalf("agent in %q, want home1", got)
	}
}

func TestTakeAndDrop(t *testing.T) {
	f := newFixture()
	f.seedAgentInNode("a1", "alice", "home1")
	f.store.SeedTemplate(mud.Template{
		ID: "tplRock", OwnerID: "a1", Kind: mud.KindThing,
		DefaultPermissions: map[string]mud.PermRule{mud.PermContain: mud.RuleOf(mud.RuleAny)},
	})
	home := f.instance(t, "home1")
	home.Permissions = map[string]mud.PermRule{mud.PermContain: mud.RuleOf(mud.RuleAny)}
	f.store.SeedInstance(home)
	f.store.SeedInstance(mud.Instance{ID: "rock", TemplateID: "tplRock", Kind: mud.KindThing, Container: mud.InInstance("home1")})

	out := asMap(t, f.runQueued(t, "a1", "take", map[string]any{"target_id": "rock"}))
	if out["taken"] != "rock" {
		t.Fatalf("take failed: %v", out)
	}
	if got := f.instance(t, "rock").Container; got != mud.InAgent("a1") {
		t.Fatalf("rock container = %+v", got)
	}

	out = asMap(t, f.runQueued(t, "a1", "drop", map[string]any{"target_id": "rock"}))
	if out["dropped"] != "rock" {
		t.Fatalf("drop failed: %v", out)
	}
	if got := f.instance(t, "rock").Container; got != mud.InInstance("home1") {
		t.Fatalf("rock container = %+v", got)
	}
}

func TestTake_DeniedByRule(t *testing.T) {
	f := newFixture()
	f.seedAgentInNode("a1", "alice", "home1")
	f.store.SeedTemplate(mud.Template{
		ID: "tplCursed", OwnerID: "a1", Kind: mud.KindThing,
		DefaultPermissions: map[string]mud.PermRule{mud.PermContain: mud.RuleOf(mud.RuleAny)},
		Interactions: mustRulesJSON(t, `[
			{"on":"take","do":[["deny"]]}
		]`),
	})
	home := f.instance(t, "home1")
	home.Permissions = map[string]mud.PermRule{mud.PermContain: mud.RuleOf(mud.RuleAny)}
	f.store.SeedInstance(home)
	f.store.SeedInstance(mud.Instance{ID: "idol", TemplateID: "tplCursed", Kind: mud.KindThing, Container: mud.InInstance("home1")})

	out := asMap(t, f.runQueued(t, "a1", "take", map[string]any{"target_id": "idol"}))
	if out["error"] != "denied" {
		t.Fatalf("expected denied, got %v", out)
	}
	if got := f.instance(t, "idol").Container; got != mud.InInstance("home1") {
		t.Fatal("idol must not move on deny")
	}
}

func TestCustomVerb_FiresInteraction(t *testing.T) {
	f := newFixture()
	f.seedAgentInNode("a1", "alice", "home1")
	f.store.SeedTemplate(mud.Template{
		ID: "tplBell", OwnerID: "a1", Kind: mud.KindThing,
		DefaultPermissions: map[string]mud.PermRule{mud.PermInteract: mud.RuleOf(mud.RuleAny)},
		Interactions: mustRulesJSON(t, `[
			{"on":"ring","do":[["add","self.rings",1]]}
		]`),
	})
	f.store.SeedInstance(mud.Instance{ID: "bell", TemplateID: "tplBell", Kind: mud.KindThing, Fields: map[string]any{}, Container: mud.InInstance("home1")})

	out := asMap(t, f.runQueued(t, "a1", "ring", map[string]any{"target_id": "bell"}))
	if out["fired"] != "ring" {
		t.Fatalf("custom verb failed: %v", out)
	}
	if got := f.instance(t, "bell").Fields["rings"]; got != 1.0 {
		t.Fatalf("rings = %v, want 1", got)
	}
}

func TestCustomVerb_RequiresInteract(t *testing.T) {
	f := newFixture()
	f.seedAgentInNode("a1", "alice", "home1")
	f.store.SeedAgent(mud.Agent{ID: "a2", Username: "bob", CurrentNodeID: "home1", AP: mud.MaxAP})
	f.store.SeedTemplate(mud.Template{
		ID: "tplBell", OwnerID: "a1", Kind: mud.KindThing,
		DefaultPermissions: map[string]mud.PermRule{mud.PermInteract: mud.RuleOf(mud.RuleOwner)},
	})
	f.store.SeedInstance(mud.Instance{ID: "bell", TemplateID: "tplBell", Kind: mud.KindThing, Container: mud.InInstance("home1")})

	out := asMap(t, f.runQueued(t, "a2", "ring", map[string]any{"target_id": "bell"}))
	if out["error"] == nil {
		t.Fatal("bob lacks interact")
	}
}

func TestReset_RestoresHome(t *testing.T) {
	f := newFixture()
	f.seedAgentInNode("a1", "alice", "home1")
	home := f.instance(t, "home1")
	home.ShortDescription = "a mess"
	home.Fields = map[string]any{"clutter": 9.0}
	f.store.SeedInstance(home)
	f.store.SeedInstance(mud.Instance{ID: "junk", Kind: mud.KindThing, Container: mud.InInstance("home1")})
	f.store.SeedInstance(mud.Instance{
		ID: "portal", Kind: mud.KindLink, SystemType: mud.SystemRandomLink, Container: mud.InInstance("home1"),
	})

	out := asMap(t, f.runQueued(t, "a1", "reset", map[string]any{"target_id": "home1"}))
	if out["reset"] != true {
		t.Fatalf("reset failed: %v", out)
	}
	home = f.instance(t, "home1")
	if home.ShortDescription != mud.HomeShortDescription || len(home.Fields) != 0 {
		t.Fatalf("home not restored: %+v", home)
	}
	if !f.instance(t, "junk").IsDestroyed {
		t.Fatal("non-system contents must be destroyed")
	}
	if f.instance(t, "portal").IsDestroyed {
		t.Fatal("system fixtures must survive reset")
	}
}
