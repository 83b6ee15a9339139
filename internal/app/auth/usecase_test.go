package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"mash/internal/adapter/repo/memory"
	"mash/internal/domain/mud"
)

type fixture struct {
	store *memory.Store
	uc    UseCase
}

func newFixture() *fixture {
	store := memory.NewStore()
	return &fixture{
		store: store,
		uc: UseCase{
			Agents:    memory.NewAgentRepo(store),
			Instances: memory.NewInstanceRepo(store),
			TxManager: memory.NewTxManager(store),
			Now:       func() time.Time { return time.Unix(1700000000, 0) },
		},
	}
}

func TestSignup_BootstrapsHome(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	resp, err := f.uc.Signup(ctx, SignupRequest{Username: "alice", Password: "secret123"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if resp.AgentID == "" || resp.Token == "" || resp.HomeNodeID == "" {
		t.Fatalf("incomplete response: %+v", resp)
	}

	agent, err := f.uc.Agents.GetByID(ctx, resp.AgentID)
	if err != nil {
		t.Fatalf("agent: %v", err)
	}
	if agent.CurrentNodeID != resp.HomeNodeID || agent.HomeNodeID != resp.HomeNodeID {
		t.Fatalf("agent should start at home: %+v", agent)
	}
	if agent.AP != mud.MaxAP || !agent.SeeBroadcasts {
		t.Fatalf("unexpected defaults: %+v", agent)
	}

	home, err := f.uc.Instances.GetByID(ctx, resp.HomeNodeID)
	if err != nil || home.Kind != mud.KindNode {
		t.Fatalf("home node: %+v %v", home, err)
	}
	contents, err := f.uc.Instances.ListByContainer(ctx, mud.InInstance(home.ID))
	if err != nil || len(contents) != 2 {
		t.Fatalf("home contents: %+v %v", contents, err)
	}
	var sawPortal, sawIndex bool
	for _, inst := range contents {
		switch inst.SystemType {
		case mud.SystemRandomLink:
			sawPortal = inst.Kind == mud.KindLink && inst.ShortDescription == "a shimmering portal"
		case mud.SystemLinkIndex:
			sawIndex = inst.Kind == mud.KindThing && inst.ShortDescription == "a glowing directory"
		}
	}
	if !sawPortal || !sawIndex {
		t.Fatalf("system fixtures missing: %+v", contents)
	}
}

func TestSignup_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	cases := []SignupRequest{
		{Username: "Al", Password: "secret123"},
		{Username: "has space", Password: "secret123"},
		{Username: "UPPER", Password: "secret123"},
		{Username: "alice", Password: "short"},
	}
	for _, c := range cases {
		if _, err := f.uc.Signup(ctx, c); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("%+v: expected ErrInvalidRequest, got %v", c, err)
		}
	}
}

func TestSignup_UsernameTaken(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.uc.Signup(ctx, SignupRequest{Username: "alice", Password: "secret123"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.uc.Signup(ctx, SignupRequest{Username: "alice", Password: "secret456"}); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestLogin_RotatesToken(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	signup, err := f.uc.Signup(ctx, SignupRequest{Username: "alice", Password: "secret123"})
	if err != nil {
		t.Fatal(err)
	}
	login, err := f.uc.Login(ctx, "alice", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if login.Token == signup.Token {
		t.Fatal("login must rotate the token")
	}
	if _, err := f.uc.Resolve(ctx, signup.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatal("the old token must stop working")
	}
	if _, err := f.uc.Resolve(ctx, login.Token); err != nil {
		t.Fatalf("the new token should work: %v", err)
	}
}

func TestLogin_BadPassword(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.uc.Signup(ctx, SignupRequest{Username: "alice", Password: "secret123"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.uc.Login(ctx, "alice", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := f.uc.Login(ctx, "nobody", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown users look like bad credentials, got %v", err)
	}
}

func TestResolve_WakesFromLimbo(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	signup, err := f.uc.Signup(ctx, SignupRequest{Username: "alice", Password: "secret123"})
	if err != nil {
		t.Fatal(err)
	}
	agent, _ := f.uc.Agents.GetByID(ctx, signup.AgentID)
	agent.CurrentNodeID = ""
	agent.LastActiveAt = 0
	f.store.SeedAgent(agent)

	resolved, err := f.uc.Resolve(ctx, signup.Token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.CurrentNodeID != signup.HomeNodeID {
		t.Fatalf("agent should re-enter at home, got %q", resolved.CurrentNodeID)
	}
	if resolved.LastActiveAt == 0 {
		t.Fatal("resolve must touch last-active")
	}
}
