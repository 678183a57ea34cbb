// Package config loads the two YAML configuration surfaces of spec §6.4:
// a provider's own process config, and the database manifests kvctl
// applies against a running provider.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kvfabric/kvfabric/pkg/types"
)

// EnvVar is the environment variable kv-provider falls back to when
// --config is not given.
const EnvVar = "KVFABRIC_CONFIG"

// LoadProvider reads a provider config from path, overlaying it onto
// types.DefaultProviderConfig so a partial file only needs to set the
// fields it wants to change.
func LoadProvider(path string) (types.ProviderConfig, error) {
	cfg := types.DefaultProviderConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return types.ProviderConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return types.ProviderConfig{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadManifest parses a kvctl database manifest: a YAML stream of one or
// more `apiVersion: kvfabric/v1\nkind: Database` documents, each carrying
// an AttachConfig under `spec`.
func LoadManifest(path string) ([]types.AttachConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var out []types.AttachConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var doc types.DatabaseManifest
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		if doc.Kind != "" && doc.Kind != "Database" {
			return nil, fmt.Errorf("config: %s: unsupported kind %q", path, doc.Kind)
		}
		if doc.Spec.Name == "" {
			continue
		}
		out = append(out, doc.Spec)
	}
	return out, nil
}
