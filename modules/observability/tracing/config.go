package tracing

import "fmt"

const (
	defaultEndpoint   = "localhost:4318"
	defaultSampleRate = 1.0
)

// Config controls the OTLP trace exporter.
type Config struct {
	// Enabled turns span export on. When false all spans are no-ops.
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP/HTTP collector address (host:port).
	Endpoint string `yaml:"endpoint"`

	// SampleRate is the trace sampling ratio between 0.0 and 1.0.
	SampleRate float64 `yaml:"sample_rate"`

	// ServiceName overrides the reported service.name resource attribute.
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS to the collector. Defaults to true for
	// local collectors on the default endpoint.
	Insecure *bool `yaml:"insecure"`
}

func (c *Config) defaults() {
	if c.Endpoint == "" {
		c.Endpoint = defaultEndpoint
	}
	if c.SampleRate <= 0 || c.SampleRate > 1.0 {
		c.SampleRate = defaultSampleRate
	}
	if c.ServiceName == "" {
		c.ServiceName = "hivemind"
	}
	if c.Insecure == nil {
		insecure := true
		c.Insecure = &insecure
	}
}

func (c *Config) validate() error {
	if c.Enabled && c.Endpoint == "" {
		return fmt.Errorf("tracing: endpoint is required when enabled")
	}
	return nil
}
