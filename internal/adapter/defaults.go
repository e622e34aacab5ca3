package adapter

import "github.com/avaricia/agentflow/internal/config"

// DefaultRegistry wires up every built-in backend against the supplied
// settings. Misconfigured backends stay listed; resolving them reports
// what is missing.
func DefaultRegistry(settings config.Settings) *Registry {
	r := NewRegistry()
	r.Register("mock", func() (Adapter, error) { return NewMock(), nil })
	r.Register("codex", func() (Adapter, error) { return NewCodexCLI(settings) })
	r.Register("claude", func() (Adapter, error) { return NewClaudeCLI(settings) })
	r.Register("copilot", func() (Adapter, error) { return NewCopilotCLI(settings) })
	r.Register("http", func() (Adapter, error) { return NewHTTP(settings.HTTPEndpoint) })
	return r
}
