// Package auth mints accounts and resolves bearer tokens. Signup also
// bootstraps the agent's home node and its two system fixtures.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"mash/internal/app/ports"
	"mash/internal/domain/mud"
)

var (
	ErrInvalidRequest     = errors.New("invalid auth request")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username taken")
	ErrInvalidToken       = errors.New("invalid token")
)

var usernameRe = regexp.MustCompile(`^[a-z0-9_]{3,24}$`)

const minPasswordLen = 8

type SignupRequest struct {
	Username string
	Password string
}

type SignupResponse struct {
	AgentID    string `json:"agent_id"`
	Token      string `json:"token"`
	HomeNodeID string `json:"home_node_id"`
}

type LoginResponse struct {
	AgentID string `json:"agent_id"`
	Token   string `json:"token"`
}

type UseCase struct {
	Agents    ports.AgentRepository
	Instances ports.InstanceRepository
	TxManager ports.TxManager
	Now       func() time.Time
	MaxAP     int
}

func (u UseCase) now() time.Time {
	if u.Now != nil {
		return u.Now()
	}
	return time.Now()
}

func (u UseCase) maxAP() int {
	if u.MaxAP > 0 {
		return u.MaxAP
	}
	return mud.MaxAP
}

// Signup creates the agent, its home node, and the home's system
// instances in one transaction.
func (u UseCase) Signup(ctx context.Context, req SignupRequest) (SignupResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	if !usernameRe.MatchString(req.Username) || len(req.Password) < minPasswordLen {
		return SignupResponse{}, ErrInvalidRequest
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return SignupResponse{}, err
	}
	token, err := randomToken(32)
	if err != nil {
		return SignupResponse{}, err
	}

	var out SignupResponse
	err = u.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := u.Agents.GetByUsername(txCtx, req.Username); err == nil {
			return ErrUsernameTaken
		} else if !errors.Is(err, ports.ErrNotFound) {
			return err
		}

		home := mud.Instance{
			ID:               mud.NewID(),
			Kind:             mud.KindNode,
			ShortDescription: mud.HomeShortDescription,
			LongDescription:  mud.HomeLongDescription,
			Fields:           map[string]any{},
			Permissions:      mud.HomeNodePermissions(req.Username),
		}
		if err := u.Instances.Create(txCtx, home); err != nil {
			return err
		}
		portal := mud.Instance{
			ID:               mud.NewID(),
			Kind:             mud.KindLink,
			ShortDescription: "a shimmering portal",
			LongDescription:  "A portal whose far side never looks the same twice.",
			Fields:           map[string]any{},
			Permissions:      mud.SystemInstancePermissions(),
			Container:        mud.InInstance(home.ID),
			SystemType:       mud.SystemRandomLink,
		}
		if err := u.Instances.Create(txCtx, portal); err != nil {
			return err
		}
		directory := mud.Instance{
			ID:               mud.NewID(),
			Kind:             mud.KindThing,
			ShortDescription: "a glowing directory",
			LongDescription:  "A floating index of the links you have walked.",
			Fields:           map[string]any{},
			Permissions:      mud.SystemInstancePermissions(),
			Container:        mud.InInstance(home.ID),
			SystemType:       mud.SystemLinkIndex,
		}
		if err := u.Instances.Create(txCtx, directory); err != nil {
			return err
		}

		agent := mud.Agent{
			ID:               mud.NewID(),
			Username:         req.Username,
			PasswordHash:     hash,
			Token:            token,
			CurrentNodeID:    home.ID,
			HomeNodeID:       home.ID,
			AP:               u.maxAP(),
			ShortDescription: req.Username,
			PerceptionAgents: mud.DefaultPerceptionCap,
			PerceptionLinks:  mud.DefaultPerceptionCap,
			PerceptionThings: mud.DefaultPerceptionCap,
			SeeBroadcasts:    true,
			LastActiveAt:     u.now().UnixMilli(),
		}
		if err := u.Agents.Create(txCtx, agent); err != nil {
			return err
		}
		out = SignupResponse{AgentID: agent.ID, Token: token, HomeNodeID: home.ID}
		return nil
	})
	if err != nil {
		return SignupResponse{}, err
	}
	return out, nil
}

// Login verifies the password and rotates the bearer token: one active
// token per agent.
func (u UseCase) Login(ctx context.Context, username, password string) (LoginResponse, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return LoginResponse{}, ErrInvalidRequest
	}
	var out LoginResponse
	err := u.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
		agent, err := u.Agents.GetByUsername(txCtx, username)
		if err != nil {
			if errors.Is(err, ports.ErrNotFound) {
				return ErrInvalidCredentials
			}
			return err
		}
		if bcrypt.CompareHashAndPassword(agent.PasswordHash, []byte(password)) != nil {
			return ErrInvalidCredentials
		}
		token, err := randomToken(32)
		if err != nil {
			return err
		}
		agent.Token = token
		if err := u.Agents.Update(txCtx, agent); err != nil {
			return err
		}
		out = LoginResponse{AgentID: agent.ID, Token: token}
		return nil
	})
	if err != nil {
		return LoginResponse{}, err
	}
	return out, nil
}

// Resolve authenticates a bearer token, touches last-active, and wakes
// the agent from limbo back into its home node.
func (u UseCase) Resolve(ctx context.Context, token string) (mud.Agent, error) {
	if token == "" {
		return mud.Agent{}, ErrInvalidToken
	}
	var out mud.Agent
	err := u.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
		agent, err := u.Agents.GetByToken(txCtx, token)
		if err != nil {
			if errors.Is(err, ports.ErrNotFound) {
				return ErrInvalidToken
			}
			return err
		}
		agent.LastActiveAt = u.now().UnixMilli()
		if agent.InLimbo() {
			agent.CurrentNodeID = agent.HomeNodeID
		}
		if err := u.Agents.Update(txCtx, agent); err != nil {
			return err
		}
		out = agent
		return nil
	})
	if err != nil {
		return mud.Agent{}, err
	}
	return out, nil
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
