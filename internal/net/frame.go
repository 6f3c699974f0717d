package net

import (
	"encoding/json"
	"strings"

	"github.com/saltmere/server/internal/errs"
)

// AuthFrame is the JSON object a client must send as its first line.
type AuthFrame struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

// AuthResult is the JSON object sent back on a successful auth, before the
// session switches to plain line frames.
type AuthResult struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	NewUser bool   `json:"new_user"`
}

// EncodeAuthResult renders the success reply line.
func EncodeAuthResult(name string, newUser bool) string {
	b, _ := json.Marshal(AuthResult{Type: "auth_success", Name: name, NewUser: newUser})
	return string(b)
}

// ParseAuthFrame decodes and validates the first line of a session.
func ParseAuthFrame(line string) (*AuthFrame, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") {
		return nil, errs.Invalidf("expected auth frame")
	}
	f := &AuthFrame{}
	if err := json.Unmarshal([]byte(line), f); err != nil {
		return nil, errs.Invalidf("bad auth frame")
	}
	if f.Type != "auth" {
		return nil, errs.Invalidf("expected auth frame, got %q", f.Type)
	}
	if f.Name == "" || f.Token == "" {
		return nil, errs.Invalidf("auth frame needs name and token")
	}
	return f, nil
}
