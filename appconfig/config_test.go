package appconfig

import (
	"encoding/json"
	"testing"
)

// TestDefaultConfig verifies default configuration values
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.ListenAddr != "127.0.0.1:8675" {
		t.Errorf("Default ListenAddr = %q; want %q", cfg.ListenAddr, "127.0.0.1:8675")
	}

	if cfg.CachePath == "" {
		t.Error("Default CachePath should not be empty")
	}

	if cfg.Grid.PageSize != 24 {
		t.Errorf("Default Grid.PageSize = %d; want 24", cfg.Grid.PageSize)
	}

	if cfg.Grid.Columns != 3 {
		t.Errorf("Default Grid.Columns = %d; want 3", cfg.Grid.Columns)
	}

	if cfg.GroupFolders["old"] != "OLD" {
		t.Errorf("Default GroupFolders[old] = %q; want %q", cfg.GroupFolders["old"], "OLD")
	}

	if cfg.Fields.IDColumn == "" {
		t.Error("Default Fields should carry the column layout")
	}

	if len(cfg.Fields.KeywordCandidates["activities"]) == 0 {
		t.Error("Default Fields should carry the activity candidate list")
	}
}

// TestGetSet verifies Get/Set functions for in-memory config
func TestGetSet(t *testing.T) {
	// Save original and restore after test
	original := Get()
	defer Set(original)

	testConfig := Config{
		ListenAddr:    "127.0.0.1:9999",
		BundleLocator: "s3://bucket/bundle.zip",
		DatasetRoot:   "/test/data",
		S3Region:      "eu-west-1",
	}

	Set(testConfig)

	retrieved := Get()

	if retrieved.ListenAddr != testConfig.ListenAddr {
		t.Errorf("Get().ListenAddr = %q; want %q", retrieved.ListenAddr, testConfig.ListenAddr)
	}
	if retrieved.BundleLocator != testConfig.BundleLocator {
		t.Errorf("Get().BundleLocator = %q; want %q", retrieved.BundleLocator, testConfig.BundleLocator)
	}
	if retrieved.DatasetRoot != testConfig.DatasetRoot {
		t.Errorf("Get().DatasetRoot = %q; want %q", retrieved.DatasetRoot, testConfig.DatasetRoot)
	}
	if retrieved.S3Region != testConfig.S3Region {
		t.Errorf("Get().S3Region = %q; want %q", retrieved.S3Region, testConfig.S3Region)
	}
}

// TestFolderMap verifies the override falls back to defaults
func TestFolderMap(t *testing.T) {
	var c Config
	folders := c.FolderMap()
	if folders["young"] != "YOUNG" {
		t.Errorf("empty override FolderMap()[young] = %q; want %q", folders["young"], "YOUNG")
	}

	c.GroupFolders = map[string]string{"old": "ELDERLY"}
	folders = c.FolderMap()
	if folders["old"] != "ELDERLY" {
		t.Errorf("FolderMap()[old] = %q; want %q", folders["old"], "ELDERLY")
	}
	if _, ok := folders["young"]; ok {
		t.Error("override FolderMap should not inherit default groups")
	}
}

// TestIsJSONObject tests the JSON object detection helper
func TestIsJSONObject(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{`{}`, true},
		{`{"key": "value"}`, true},
		{`  {  }  `, true},
		{`[]`, false},
		{`"string"`, false},
		{`123`, false},
		{`null`, false},
		{``, false},
	}

	for _, tt := range tests {
		result := isJSONObject([]byte(tt.input))
		if result != tt.expected {
			t.Errorf("isJSONObject(%q) = %v; want %v", tt.input, result, tt.expected)
		}
	}
}

// TestDeepMergeJSON tests the JSON merge functionality
func TestDeepMergeJSON(t *testing.T) {
	tests := []struct {
		name     string
		dst      string
		src      string
		expected string
	}{
		{
			name:     "Simple merge",
			dst:      `{"a": "1"}`,
			src:      `{"b": "2"}`,
			expected: `{"a":"1","b":"2"}`,
		},
		{
			name:     "Override value",
			dst:      `{"a": "1"}`,
			src:      `{"a": "2"}`,
			expected: `{"a":"2"}`,
		},
		{
			name:     "Nested merge",
			dst:      `{"nested": {"a": "1"}}`,
			src:      `{"nested": {"b": "2"}}`,
			expected: `{"nested":{"a":"1","b":"2"}}`,
		},
		{
			name:     "Add new nested",
			dst:      `{"a": "1"}`,
			src:      `{"nested": {"b": "2"}}`,
			expected: `{"a":"1","nested":{"b":"2"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst map[string]json.RawMessage
			var src map[string]json.RawMessage

			json.Unmarshal([]byte(tt.dst), &dst)
			json.Unmarshal([]byte(tt.src), &src)

			deepMergeJSON(dst, src)

			result, _ := json.Marshal(dst)

			// Parse both for comparison (order-independent)
			var resultMap, expectedMap map[string]interface{}
			json.Unmarshal(result, &resultMap)
			json.Unmarshal([]byte(tt.expected), &expectedMap)

			if !mapsEqual(resultMap, expectedMap) {
				t.Errorf("deepMergeJSON result = %s; want %s", result, tt.expected)
			}
		})
	}
}

// mapsEqual compares two maps recursively
func mapsEqual(a, b map[string]interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		if !valuesEqual(v, bv) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b interface{}) bool {
	switch av := a.(type) {
	case map[string]interface{}:
		bv, ok := b.(map[string]interface{})
		if !ok {
			return false
		}
		return mapsEqual(av, bv)
	default:
		return a == b
	}
}

// TestConfigJSONMarshal verifies Config can be marshaled to JSON
func TestConfigJSONMarshal(t *testing.T) {
	cfg := defaultConfig()
	cfg.BundleLocator = "https://example.com/bundle.zip"

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("json.Marshal error = %v", err)
	}

	// Verify it's valid JSON
	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Result is not valid JSON: %v", err)
	}

	// Check expected keys exist
	expectedKeys := []string{"listenAddr", "bundleLocator", "datasetRoot", "cachePath", "grid", "groupFolders", "fields"}
	for _, key := range expectedKeys {
		if _, ok := parsed[key]; !ok {
			t.Errorf("Expected key %q not found in JSON output", key)
		}
	}
}

// TestConfigJSONUnmarshal verifies Config can be unmarshaled from JSON
func TestConfigJSONUnmarshal(t *testing.T) {
	jsonData := `{
		"listenAddr": "127.0.0.1:9000",
		"bundleLocator": "s3://models/dataset.zip",
		"s3Region": "us-east-1",
		"grid": {
			"pageSize": 12,
			"columns": 4
		},
		"groupFolders": {
			"old": "OLD"
		},
		"fields": {
			"idColumn": "ID",
			"groupColumn": "age_group"
		}
	}`

	var cfg Config
	if err := json.Unmarshal([]byte(jsonData), &cfg); err != nil {
		t.Fatalf("json.Unmarshal error = %v", err)
	}

	if cfg.ListenAddr != "127.0.0.1:9000" {
		t.Errorf("ListenAddr = %q; want %q", cfg.ListenAddr, "127.0.0.1:9000")
	}
	if cfg.BundleLocator != "s3://models/dataset.zip" {
		t.Errorf("BundleLocator = %q; want %q", cfg.BundleLocator, "s3://models/dataset.zip")
	}
	if cfg.Grid.PageSize != 12 {
		t.Errorf("Grid.PageSize = %d; want 12", cfg.Grid.PageSize)
	}
	if cfg.Fields.GroupColumn != "age_group" {
		t.Errorf("Fields.GroupColumn = %q; want %q", cfg.Fields.GroupColumn, "age_group")
	}
}

// TestConfigConcurrency tests concurrent access to Get/Set
func TestConfigConcurrency(t *testing.T) {
	// Save original and restore after test
	original := Get()
	defer Set(original)

	done := make(chan bool)

	// Writer goroutine
	go func() {
		for i := 0; i < 100; i++ {
			Set(Config{ListenAddr: "127.0.0.1:1"})
		}
		done <- true
	}()

	// Reader goroutine
	go func() {
		for i := 0; i < 100; i++ {
			_ = Get()
		}
		done <- true
	}()

	// Wait for both to complete
	<-done
	<-done
}
