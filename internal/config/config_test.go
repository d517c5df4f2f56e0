package config

import (
	"os"
	"testing"
)

func TestConfigLoad(t *testing.T) {
	// Set test environment variables
	os.Setenv("SOURCE_REGION", "us-east-1")
	os.Setenv("TARGET_REGION", "us-west-2")
	os.Setenv("REPLICATION_API_URL", "https://replication.test")
	defer func() {
		os.Unsetenv("SOURCE_REGION")
		os.Unsetenv("TARGET_REGION")
		os.Unsetenv("REPLICATION_API_URL")
	}()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.SourceRegion != "us-east-1" {
		t.Errorf("Expected SourceRegion to be 'us-east-1', got '%s'", cfg.SourceRegion)
	}
	if cfg.TargetRegion != "us-west-2" {
		t.Errorf("Expected TargetRegion to be 'us-west-2', got '%s'", cfg.TargetRegion)
	}
	if cfg.ReplicationAPIURL != "https://replication.test" {
		t.Errorf("Expected ReplicationAPIURL to be set, got '%s'", cfg.ReplicationAPIURL)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.TranslationTable != defaultTranslationTable {
		t.Errorf("Expected default translation table, got '%s'", cfg.TranslationTable)
	}
	if cfg.ProjectTable != defaultProjectTable {
		t.Errorf("Expected default project table, got '%s'", cfg.ProjectTable)
	}
	if cfg.BlueprintTable != defaultBlueprintTable {
		t.Errorf("Expected default blueprint table, got '%s'", cfg.BlueprintTable)
	}
	if cfg.TargetInstanceType != defaultTargetInstanceType {
		t.Errorf("Expected default target instance type, got '%s'", cfg.TargetInstanceType)
	}
	if cfg.FnConfigureBlueprint == "" {
		t.Error("Expected a default configure-blueprint function name")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		config      *Config
		expectError bool
	}{
		{
			name: "valid config",
			config: &Config{
				TargetRegion:     "us-west-2",
				TranslationTable: "dr-vpc-translation",
				ProjectTable:     "dr-projects",
				BlueprintTable:   "dr-blueprints",
			},
			expectError: false,
		},
		{
			name: "missing target region",
			config: &Config{
				TranslationTable: "dr-vpc-translation",
				ProjectTable:     "dr-projects",
				BlueprintTable:   "dr-blueprints",
			},
			expectError: true,
		},
		{
			name: "missing project table",
			config: &Config{
				TargetRegion:     "us-west-2",
				TranslationTable: "dr-vpc-translation",
				BlueprintTable:   "dr-blueprints",
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
		})
	}
}

func TestConfigValidateLifecycle(t *testing.T) {
	base := Config{
		TargetRegion:     "us-west-2",
		TranslationTable: "dr-vpc-translation",
		ProjectTable:     "dr-projects",
		BlueprintTable:   "dr-blueprints",
	}

	missingRegion := base
	if err := missingRegion.ValidateLifecycle(); err == nil {
		t.Error("Expected error without a source region")
	}

	missingWorkflows := base
	missingWorkflows.SourceRegion = "us-east-1"
	if err := missingWorkflows.ValidateLifecycle(); err == nil {
		t.Error("Expected error without workflow ARNs")
	}

	complete := missingWorkflows
	complete.WfCreateProject = "wf-create"
	complete.WfDeleteProject = "wf-delete"
	complete.WfPrepareCutback = "wf-cutback"
	complete.WfRunWizard = "wf-wizard"
	if err := complete.ValidateLifecycle(); err != nil {
		t.Errorf("Expected complete lifecycle config to validate, got: %v", err)
	}
}
