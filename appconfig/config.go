package appconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hunsao/ageset/dataset"
	"github.com/hunsao/ageset/platform"
)

// Config holds application configuration including the dataset bundle
// location, server address and the column layout overrides.
type Config struct {
	// ListenAddr is the address the local HTTP server binds to.
	ListenAddr string `json:"listenAddr"`

	// BundleLocator points at the dataset bundle: an s3:// or
	// http(s):// locator, or a local archive path.
	BundleLocator string `json:"bundleLocator"`

	// DatasetRoot is the data directory of an already extracted
	// bundle. When set, BundleLocator is ignored.
	DatasetRoot string `json:"datasetRoot"`

	// CachePath is where downloaded bundles are kept between runs.
	CachePath string `json:"cachePath"`

	// S3Region overrides the region for s3:// locators. Credentials
	// come from the environment, never from this file.
	S3Region string `json:"s3Region"`

	// Grid settings for the browsing UI
	Grid struct {
		PageSize int `json:"pageSize"`
		Columns  int `json:"columns"`
	} `json:"grid"`

	// NoBrowser disables opening the UI on startup.
	NoBrowser bool `json:"noBrowser"`

	// GroupFolders overrides the group value to folder name map.
	GroupFolders map[string]string `json:"groupFolders"`

	// Fields overrides the dataset column layout.
	Fields dataset.FieldConfig `json:"fields"`
}

var (
	cfgMu sync.RWMutex
	cfg   Config
)

// DefaultCachePath returns the default bundle cache path.
// Uses the platform-specific cache directory.
func DefaultCachePath() string {
	return filepath.Join(platform.GetCacheDir(), "bundles")
}

// DefaultConfigDir returns the default config directory path.
// Uses the platform-specific data directory.
func DefaultConfigDir() string {
	return platform.GetDataDir()
}

// defaultConfig returns a Config populated with sensible defaults.
func defaultConfig() Config {
	c := Config{
		ListenAddr:   "127.0.0.1:8675",
		CachePath:    DefaultCachePath(),
		GroupFolders: dataset.DefaultGroupFolders(),
		Fields:       dataset.DefaultFieldConfig(),
	}
	c.Grid.PageSize = 24
	c.Grid.Columns = 3
	return c
}

// Get returns a copy of the current in-memory config.
func Get() Config {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	return cfg
}

// Set replaces the in-memory config.
func Set(c Config) {
	cfgMu.Lock()
	cfg = c
	cfgMu.Unlock()
}

// FolderMap returns the configured group folders as the dataset type.
func (c Config) FolderMap() dataset.GroupFolders {
	if len(c.GroupFolders) == 0 {
		return dataset.DefaultGroupFolders()
	}
	return dataset.GroupFolders(c.GroupFolders)
}

func isJSONObject(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func deepMergeJSON(dst, src map[string]json.RawMessage) {
	for k, v := range src {
		if existing, ok := dst[k]; ok && isJSONObject(existing) && isJSONObject(v) {
			var dstObj map[string]json.RawMessage
			var srcObj map[string]json.RawMessage
			if err := json.Unmarshal(existing, &dstObj); err != nil {
				dst[k] = v
				continue
			}
			if err := json.Unmarshal(v, &srcObj); err != nil {
				dst[k] = v
				continue
			}
			deepMergeJSON(dstObj, srcObj)
			merged, err := json.Marshal(dstObj)
			if err != nil {
				dst[k] = v
				continue
			}
			dst[k] = merged
			continue
		}
		dst[k] = v
	}
}

// getConfigPath returns the full path to the config.json file.
func getConfigPath() (string, error) {
	configDir := DefaultConfigDir()
	return filepath.Join(configDir, "config.json"), nil
}

// Load reads the config from disk and updates the in-memory config. It returns the config and path.
// If the config file doesn't exist, it creates one with default values.
// This function safely handles missing directories and creates them as needed.
func Load() (Config, string, error) {
	path, err := getConfigPath()
	if err != nil {
		return Config{}, "", err
	}

	// Ensure config directory exists
	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return Config{}, "", fmt.Errorf("failed to create config directory %s: %v", configDir, err)
	}

	// Check if config file exists
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Config file doesn't exist - create it with defaults
			def := defaultConfig()
			savedPath, saveErr := Save(def)
			if saveErr != nil {
				return Config{}, path, fmt.Errorf("failed to create default config file: %v", saveErr)
			}
			Set(def)
			return def, savedPath, nil
		}
		return Config{}, path, fmt.Errorf("failed to read config file at %s: %v", path, err)
	}

	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, path, fmt.Errorf("failed to parse config JSON: %v", err)
	}

	// Merge defaults for any missing fields
	def := defaultConfig()
	needsSave := false

	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
		needsSave = true
	}
	if c.CachePath == "" {
		c.CachePath = def.CachePath
	}
	if c.Grid.PageSize <= 0 {
		c.Grid.PageSize = def.Grid.PageSize
	}
	if c.Grid.Columns <= 0 {
		c.Grid.Columns = def.Grid.Columns
	}
	if len(c.GroupFolders) == 0 {
		c.GroupFolders = def.GroupFolders
	}
	if c.Fields.IDColumn == "" {
		c.Fields = def.Fields
	}

	// Save config if we had to fill in critical missing fields
	if needsSave {
		if _, saveErr := Save(c); saveErr != nil {
			// Log but don't fail - we can continue with the in-memory config
			fmt.Printf("Warning: failed to save updated config: %v\n", saveErr)
		}
	}

	Set(c)
	return c, path, nil
}

// Save writes the config to disk, creating the directory as needed. Returns the path.
func Save(c Config) (string, error) {
	path, err := getConfigPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return path, fmt.Errorf("failed to create config directory: %v", err)
	}
	base := map[string]json.RawMessage{}
	if existing, readErr := os.ReadFile(path); readErr == nil {
		var tmp map[string]json.RawMessage
		if err := json.Unmarshal(existing, &tmp); err == nil {
			base = tmp
		}
	}

	marshaled, err := json.Marshal(c)
	if err != nil {
		return path, fmt.Errorf("failed to marshal config: %v", err)
	}
	incoming := map[string]json.RawMessage{}
	if err := json.Unmarshal(marshaled, &incoming); err != nil {
		return path, fmt.Errorf("failed to map config JSON: %v", err)
	}

	deepMergeJSON(base, incoming)

	mergedData, err := json.MarshalIndent(base, "", "  ")
	if err != nil {
		return path, fmt.Errorf("failed to marshal merged config: %v", err)
	}
	if err := os.WriteFile(path, mergedData, 0644); err != nil {
		return path, fmt.Errorf("failed to write config file: %v", err)
	}
	Set(c)
	return path, nil
}
