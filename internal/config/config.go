// Package config handles configuration loading from files, environment variables, and flags.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

const (
	defaultTranslationTable   = "dr-vpc-translation"
	defaultProjectTable       = "dr-projects"
	defaultBlueprintTable     = "dr-blueprints"
	defaultTargetInstanceType = "t2.large"
)

// Config holds all configuration for the Sailover tool.
type Config struct {
	SourceRegion string
	TargetRegion string

	TranslationTable string
	ProjectTable     string
	BlueprintTable   string

	ReplicationAPIURL   string
	ReplicationUsername string
	ReplicationPassword string

	FnConfigureBlueprint string
	FnPeerVpc            string
	FnFindStagingSubnet  string
	FnAddPeerRoute       string
	FnInstallAgent       string
	FnLaunchMachines     string

	WfCreateProject  string
	WfDeleteProject  string
	WfPrepareCutback string
	WfRunWizard      string

	TargetInstanceType string
	Debug              bool
}

// Load initializes configuration from file, environment variables, and flags.
func Load(configFile string) (*Config, error) {
	viper.SetDefault("translation_table", defaultTranslationTable)
	viper.SetDefault("project_table", defaultProjectTable)
	viper.SetDefault("blueprint_table", defaultBlueprintTable)
	viper.SetDefault("target_instance_type", defaultTargetInstanceType)
	viper.SetDefault("fn_configure_blueprint", "dr-configure-blueprint")
	viper.SetDefault("fn_peer_vpc", "dr-peer-vpc")
	viper.SetDefault("fn_find_staging_subnet", "dr-find-staging-subnet")
	viper.SetDefault("fn_add_peer_route", "dr-add-peer-route")
	viper.SetDefault("fn_install_agent", "dr-install-agent")
	viper.SetDefault("fn_launch_machines", "dr-launch-machines")

	viper.AutomaticEnv()

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{
		SourceRegion:         viper.GetString("source_region"),
		TargetRegion:         viper.GetString("target_region"),
		TranslationTable:     viper.GetString("translation_table"),
		ProjectTable:         viper.GetString("project_table"),
		BlueprintTable:       viper.GetString("blueprint_table"),
		ReplicationAPIURL:    viper.GetString("replication_api_url"),
		ReplicationUsername:  viper.GetString("replication_username"),
		ReplicationPassword:  viper.GetString("replication_password"),
		FnConfigureBlueprint: viper.GetString("fn_configure_blueprint"),
		FnPeerVpc:            viper.GetString("fn_peer_vpc"),
		FnFindStagingSubnet:  viper.GetString("fn_find_staging_subnet"),
		FnAddPeerRoute:       viper.GetString("fn_add_peer_route"),
		FnInstallAgent:       viper.GetString("fn_install_agent"),
		FnLaunchMachines:     viper.GetString("fn_launch_machines"),
		WfCreateProject:      viper.GetString("wf_create_project"),
		WfDeleteProject:      viper.GetString("wf_delete_project"),
		WfPrepareCutback:     viper.GetString("wf_prepare_cutback"),
		WfRunWizard:          viper.GetString("wf_run_wizard"),
		TargetInstanceType:   viper.GetString("target_instance_type"),
		Debug:                viper.GetBool("debug"),
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.TargetRegion == "" {
		return fmt.Errorf("target_region is required")
	}
	if c.TranslationTable == "" {
		return fmt.Errorf("translation_table is required")
	}
	if c.ProjectTable == "" {
		return fmt.Errorf("project_table is required")
	}
	if c.BlueprintTable == "" {
		return fmt.Errorf("blueprint_table is required")
	}
	return nil
}

// ValidateLifecycle checks the configuration needed for lifecycle transitions,
// which additionally hand off to the external workflow executor.
func (c *Config) ValidateLifecycle() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.SourceRegion == "" {
		return fmt.Errorf("source_region is required for lifecycle operations")
	}
	if c.WfCreateProject == "" || c.WfDeleteProject == "" || c.WfPrepareCutback == "" || c.WfRunWizard == "" {
		return fmt.Errorf("workflow ARNs (wf_create_project, wf_delete_project, wf_prepare_cutback, wf_run_wizard) are required for lifecycle operations")
	}
	return nil
}

// LoadConfig loads configuration using the global Viper instance.
func LoadConfig() (*Config, error) {
	return Load("")
}
