package history

import "fmt"

// Config selects history sinks. Each DSN becomes one SQLSink; the memory
// journal is always present so the control API can serve recent events.
type Config struct {
	Enabled bool     `mapstructure:"enabled" toml:"enabled"`
	DSNs    []string `mapstructure:"dsns" toml:"dsns"`
	Recent  int      `mapstructure:"recent" toml:"recent"`
}

// Build assembles the sink chain from config and returns the composite
// sink together with the memory journal for querying.
func Build(cfg Config) (Sink, *Memory, error) {
	mem := NewMemory(cfg.Recent)
	sinks := Multi{mem}
	if !cfg.Enabled {
		return sinks, mem, nil
	}
	for _, dsn := range cfg.DSNs {
		s, err := NewSQLSinkFromDSN(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("history sink %q: %w", dsn, err)
		}
		sinks = append(sinks, s)
	}
	return sinks, mem, nil
}
