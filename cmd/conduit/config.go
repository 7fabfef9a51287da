// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the top-level shape of a connector config file: one named
// connector per entry, loaded with gopkg.in/yaml.v3 and re-marshalled to
// JSON so each connector's builder gets the same strict per-connector
// decode path the embeddable API uses (SPEC_FULL.md §2, Configuration).
type fileConfig struct {
	Connectors []connectorConfig `yaml:"connectors"`
}

type connectorConfig struct {
	ID     string    `yaml:"id"`
	Type   string    `yaml:"type"`
	Config yaml.Node `yaml:"config"`
}

// loadFile reads path as YAML and returns its connector list, each
// connector's config still held as a YAML node; [connectorConfig.rawJSON]
// re-marshals it to a JSON blob ready for [registry.Registry.Build].
func loadFile(path string) ([]connectorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("conduit: reading %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("conduit: parsing %s: %w", path, err)
	}
	if len(fc.Connectors) == 0 {
		return nil, fmt.Errorf("conduit: %s declares no connectors", path)
	}
	return fc.Connectors, nil
}

// rawJSON re-marshals a connector's YAML config node to JSON for strict
// per-connector decoding.
func (c connectorConfig) rawJSON() (json.RawMessage, error) {
	if c.Config.Kind == 0 {
		return json.RawMessage("{}"), nil
	}
	var v any
	if err := c.Config.Decode(&v); err != nil {
		return nil, fmt.Errorf("conduit: decoding config for %s: %w", c.ID, err)
	}
	return json.Marshal(v)
}
