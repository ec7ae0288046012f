package mcp

import "errors"

// Config holds the MCP tool surface configuration. The default tenant and
// user are used when a tool call omits them, which is the common case when
// the surrounding runtime serves a single tenant.
type Config struct {
	ServerName    string `yaml:"server_name"`
	DefaultTenant string `yaml:"default_tenant"`
	DefaultUser   string `yaml:"default_user"`
}

func (c *Config) defaults() {
	if c.ServerName == "" {
		c.ServerName = "hivemind"
	}
}

func (c *Config) validate() error {
	if c.ServerName == "" {
		return errors.New("mcp: server_name must not be empty")
	}
	return nil
}
