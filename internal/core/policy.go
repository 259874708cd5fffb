package core

import (
	"errors"
	"fmt"
	"strings"
)

var ErrToolNotAllowed = errors.New("tool not in allowlist")

// ToolPolicy restricts which tools a server exposes.
// An empty allowlist allows every tool.
type ToolPolicy struct {
	allowedTools map[string]bool
}

// NewToolPolicy builds a policy from allowlist entries. Each entry may itself
// be a comma-separated list, as happens when the list comes from an env var.
func NewToolPolicy(entries []string) *ToolPolicy {
	allowed := make(map[string]bool)
	for _, entry := range entries {
		for name := range parseCSV(entry) {
			allowed[name] = true
		}
	}
	return &ToolPolicy{allowedTools: allowed}
}

func (p *ToolPolicy) Allowed(toolName string) bool {
	if p == nil || len(p.allowedTools) == 0 {
		return true
	}
	return p.allowedTools[toolName]
}

// CheckTool returns an error wrapping ErrToolNotAllowed if toolName is not allowed.
func (p *ToolPolicy) CheckTool(toolName string) error {
	if !p.Allowed(toolName) {
		return fmt.Errorf("%w: %q", ErrToolNotAllowed, toolName)
	}
	return nil
}

func parseCSV(s string) map[string]bool {
	m := make(map[string]bool)
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			m[item] = true
		}
	}
	return m
}
