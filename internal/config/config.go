// Package config parses the launcher's SWF config file and watches it for
// drift. The wire format is deliberately small: one "key = value" pair per
// line, [A-Za-z0-9_-]+ on both sides, everything else ignored — not TOML,
// YAML, or any format a parsing library in the pack already understands, so
// it is read with a small regexp rather than forcing an ill-fitting library
// onto it (see DESIGN.md).
package config

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
)

var linePattern = regexp.MustCompile(`^([A-Za-z0-9_-]+)\s*=\s*([A-Za-z0-9_-]+)\s*$`)

// QueueConfig is the parsed task-queue configuration.
type QueueConfig struct {
	Region string
	Domain string
	// Extra holds any other recognized key/value pairs, for forward
	// compatibility with additional SWF settings.
	Extra map[string]string
}

// Load parses path and validates that the required keys are present.
func Load(path string) (*QueueConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m := linePattern.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		values[m[1]] = m[2]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	region, ok := values["region"]
	if !ok {
		return nil, fmt.Errorf("config: %s missing required key %q", path, "region")
	}
	domain, ok := values["domain"]
	if !ok {
		return nil, fmt.Errorf("config: %s missing required key %q", path, "domain")
	}
	delete(values, "region")
	delete(values, "domain")

	return &QueueConfig{Region: region, Domain: domain, Extra: values}, nil
}
