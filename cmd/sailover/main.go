// Package main provides the entry point for the Sailover CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/codebypatrickleung/sailover/internal/blueprint"
	awscloud "github.com/codebypatrickleung/sailover/internal/cloud/aws"
	"github.com/codebypatrickleung/sailover/internal/compute"
	"github.com/codebypatrickleung/sailover/internal/config"
	"github.com/codebypatrickleung/sailover/internal/lifecycle"
	"github.com/codebypatrickleung/sailover/internal/logger"
	"github.com/codebypatrickleung/sailover/internal/network"
	"github.com/codebypatrickleung/sailover/internal/project"
	"github.com/codebypatrickleung/sailover/internal/replication"
	"github.com/codebypatrickleung/sailover/internal/secret"
	"github.com/codebypatrickleung/sailover/internal/translate"
	"github.com/codebypatrickleung/sailover/internal/workflow"
)

var (
	cfgFile string
	version = "0.2.1"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "sailover",
	Short:   "Sailover - DR Migration Orchestration Tool",
	Long:    `Sailover orchestrates disaster-recovery migration of virtual machines between AWS regions, driving an external replication service and provisioning workflows.`,
	Version: version,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./sailover-config.env)")

	flags := []struct {
		name, usage, defaultValue string
	}{
		{"source-region", "Source AWS region", ""},
		{"target-region", "Target AWS region", ""},
		{"translation-table", "DynamoDB table holding VPC/subnet/security-group translations", ""},
		{"project-table", "DynamoDB table holding migration projects", ""},
		{"blueprint-table", "DynamoDB table holding machine blueprints", ""},
		{"replication-api-url", "Base URL of the replication service API", ""},
		{"target-instance-type", "Fallback instance type for the target region", ""},
	}
	for _, f := range flags {
		rootCmd.PersistentFlags().String(f.name, f.defaultValue, f.usage)
	}
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	bindings := map[string]string{
		"SOURCE_REGION":        "source-region",
		"TARGET_REGION":        "target-region",
		"TRANSLATION_TABLE":    "translation-table",
		"PROJECT_TABLE":        "project-table",
		"BLUEPRINT_TABLE":      "blueprint-table",
		"REPLICATION_API_URL":  "replication-api-url",
		"TARGET_INSTANCE_TYPE": "target-instance-type",
		"DEBUG":                "debug",
	}
	for env, flag := range bindings {
		if err := viper.BindPFlag(env, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to bind flag %s to env %s: %v\n", flag, env, err)
		}
	}

	rootCmd.AddCommand(createCmd, wizardCmd, cutbackCmd, deleteCmd, machinesCmd,
		installAgentCmd, launchCmd, blueprintsCmd)
	blueprintsCmd.AddCommand(loadBlueprintsCmd, setBlueprintCmd, selectSecurityGroupCmd,
		configureBlueprintsCmd, configureMachineCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("sailover-config")
		viper.SetConfigType("env")
	}
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// runtime wires the services for one command invocation.
type runtime struct {
	cfg          *config.Config
	log          *logger.Logger
	target       *awscloud.Clients
	projects     *project.Store
	blueprints   *blueprint.Store
	translator   *translate.Store
	typeCache    *compute.TypeCache
	invoker      *workflow.Invoker
	executor     *workflow.StateMachineExecutor
	secrets      *secret.Manager
	machines     replication.MachineLister
	orchestrator *lifecycle.Orchestrator
	service      *blueprint.Service
}

func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	logFileName := fmt.Sprintf("sailover-%s.log", logger.GetTimestamp())
	log, err := logger.NewWithFile(cfg.Debug, logFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log.Infof("Sailover version %s", version)
	log.Infof("Log file: %s", logFileName)

	target, err := awscloud.New(ctx, cfg.TargetRegion)
	if err != nil {
		return nil, err
	}

	dynamo := target.DynamoDB()
	r := &runtime{
		cfg:        cfg,
		log:        log,
		target:     target,
		projects:   project.NewStore(dynamo, cfg.ProjectTable),
		blueprints: blueprint.NewStore(dynamo, cfg.BlueprintTable),
		translator: translate.NewStore(dynamo, cfg.TranslationTable),
		typeCache:  compute.NewTypeCache(),
		invoker:    workflow.NewInvoker(target.Lambda(), log),
		executor:   workflow.NewExecutor(target.StepFunctions(), log),
		secrets:    secret.NewManager(target.SecretsManager(), log),
		machines: replication.NewClient(cfg.ReplicationAPIURL,
			cfg.ReplicationUsername, cfg.ReplicationPassword, log),
	}
	r.orchestrator = lifecycle.NewOrchestrator(r.projects, r.secrets, r.translator,
		r.blueprints, r.machines, r.executor, r.invoker, cfg, log)
	r.service = blueprint.NewService(r.blueprints, r.machines, r.typeCache,
		r.invoker, cfg.FnConfigureBlueprint, cfg.TargetInstanceType, log)
	return r, nil
}

func (r *runtime) findProject(ctx context.Context, id string) (*project.Project, error) {
	if id == "" {
		return nil, fmt.Errorf("--project is required")
	}
	return r.projects.Find(ctx, id)
}

// sourceClients builds clients for the source region, preferring the stored
// source credential over the ambient credential chain.
func sourceClients(ctx context.Context, r *runtime, p *project.Project) (*awscloud.Clients, error) {
	cred, err := r.secrets.GetCredential(ctx, p.SecretID(project.Source))
	if err != nil {
		r.log.Warningf("No stored source credential for project %s, using the default chain", p.ID)
		return awscloud.New(ctx, p.SourceRegion)
	}
	return awscloud.NewWithCredential(ctx, p.SourceRegion, cred)
}

var (
	projectID  string
	machineIDs []string
	terminate  bool
	publicNet  bool
	tierName   string
	customType string
	groupIDs   []string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a migration project and hand off to the create workflow",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer r.log.Close()
		if err := r.cfg.ValidateLifecycle(); err != nil {
			return err
		}

		name, _ := cmd.Flags().GetString("name")
		sourceVpc, _ := cmd.Flags().GetString("source-vpc")
		p, err := r.orchestrator.Create(ctx, lifecycle.CreateRequest{
			Name:          name,
			SourceRegion:  r.cfg.SourceRegion,
			TargetRegion:  r.cfg.TargetRegion,
			SourceVpcID:   sourceVpc,
			PublicNetwork: publicNet,
			SourceCredential: awscloud.Credential{
				AccessKeyID:     viper.GetString("SOURCE_ACCESS_KEY_ID"),
				SecretAccessKey: viper.GetString("SOURCE_SECRET_ACCESS_KEY"),
			},
		})
		if err != nil {
			return err
		}
		r.log.Successf("Project %s created as %s", p.Name, p.ID)
		return nil
	},
}

var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Run the replication setup wizard for a set of instances",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer r.log.Close()
		if err := r.cfg.ValidateLifecycle(); err != nil {
			return err
		}

		name, _ := cmd.Flags().GetString("name")
		sourceVpc, _ := cmd.Flags().GetString("source-vpc")
		cidr, _ := cmd.Flags().GetString("cidr")
		continuous, _ := cmd.Flags().GetBool("continuous")
		instanceIDs, _ := cmd.Flags().GetStringSlice("instance-ids")
		if err := r.orchestrator.RunWizard(ctx, lifecycle.WizardRequest{
			CreateRequest: lifecycle.CreateRequest{
				Name:          name,
				SourceRegion:  r.cfg.SourceRegion,
				TargetRegion:  r.cfg.TargetRegion,
				SourceVpcID:   sourceVpc,
				PublicNetwork: publicNet,
				SourceCredential: awscloud.Credential{
					AccessKeyID:     viper.GetString("SOURCE_ACCESS_KEY_ID"),
					SecretAccessKey: viper.GetString("SOURCE_SECRET_ACCESS_KEY"),
				},
			},
			Cidr:        cidr,
			Continuous:  continuous,
			InstanceIDs: instanceIDs,
		}); err != nil {
			return err
		}
		r.log.Success("Wizard workflow submitted")
		return nil
	},
}

var cutbackCmd = &cobra.Command{
	Use:   "cutback",
	Short: "Verify the cutback precondition and hand off to the cutback workflow",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer r.log.Close()
		if err := r.cfg.ValidateLifecycle(); err != nil {
			return err
		}

		p, err := r.findProject(ctx, projectID)
		if err != nil {
			return err
		}
		if err := r.orchestrator.Cutback(ctx, p, terminate); err != nil {
			return err
		}
		r.log.Successf("Cutback workflow submitted for project %s", p.ID)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Hand off to the delete workflow and release stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer r.log.Close()
		if err := r.cfg.ValidateLifecycle(); err != nil {
			return err
		}

		p, err := r.findProject(ctx, projectID)
		if err != nil {
			return err
		}
		purge, _ := cmd.Flags().GetBool("purge")
		if err := r.orchestrator.Delete(ctx, p, purge); err != nil {
			return err
		}
		r.log.Successf("Delete workflow submitted for project %s", p.ID)
		return nil
	},
}

var machinesCmd = &cobra.Command{
	Use:   "machines",
	Short: "List replicated machines and their blueprint state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer r.log.Close()

		p, err := r.findProject(ctx, projectID)
		if err != nil {
			return err
		}
		side, _ := cmd.Flags().GetString("side")
		statuses, err := r.orchestrator.Machines(ctx, p, project.Side(side))
		if err != nil {
			return err
		}
		for _, s := range statuses {
			r.log.Infof("%s  %s  configured=%t  replicated=%.0f%%",
				s.ID, s.SourceProperties.Name, s.BlueprintConfigured,
				s.ReplicationInfo.Progress()*100)
		}
		return nil
	},
}

var installAgentCmd = &cobra.Command{
	Use:   "install-agent",
	Short: "Install the replication agent on source instances",
	Long:  `Installs the replication agent on the given instances. Without --instance-ids the source region is scanned for instances whose profile role carries the managed-instance policy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer r.log.Close()

		p, err := r.findProject(ctx, projectID)
		if err != nil {
			return err
		}

		instanceIDs, _ := cmd.Flags().GetStringSlice("instance-ids")
		if len(instanceIDs) == 0 {
			source, err := sourceClients(ctx, r, p)
			if err != nil {
				return err
			}
			qualified, err := replication.FindQualifiedInstances(ctx, source.EC2(), source.IAM(),
				p.SourceRegion, p.SourceVpcID, r.log)
			if err != nil {
				return err
			}
			for _, instance := range qualified {
				r.log.Infof("Qualified instance %s in %s", instance.InstanceID, instance.SubnetID)
				instanceIDs = append(instanceIDs, instance.InstanceID)
			}
			if len(instanceIDs) == 0 {
				return fmt.Errorf("no qualified instances found in VPC %s", p.SourceVpcID)
			}
		}

		side, _ := cmd.Flags().GetString("side")
		if err := r.orchestrator.InstallAgent(ctx, p, lifecycle.ManageMachinesRequest{
			Side:        project.Side(side),
			InstanceIDs: instanceIDs,
		}); err != nil {
			return err
		}
		r.log.Successf("Agent installation started on %d instances", len(instanceIDs))
		return nil
	},
}

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Launch replicated machines in the target region",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer r.log.Close()

		p, err := r.findProject(ctx, projectID)
		if err != nil {
			return err
		}
		side, _ := cmd.Flags().GetString("side")
		launchType, _ := cmd.Flags().GetString("launch-type")
		launchIDs, _ := cmd.Flags().GetStringSlice("machine-ids")
		result, err := r.orchestrator.LaunchMachines(ctx, p, lifecycle.ManageMachinesRequest{
			Side:       project.Side(side),
			MachineIDs: launchIDs,
			LaunchType: launchType,
		})
		if err != nil {
			return err
		}
		for _, item := range result.Items {
			r.log.Infof("%s  %s", item.MachineID, item.Result)
		}
		r.log.Successf("Launch submitted for %d machines", len(result.Items))
		return nil
	},
}

var blueprintsCmd = &cobra.Command{
	Use:   "blueprints",
	Short: "Manage machine blueprints",
}

var loadBlueprintsCmd = &cobra.Command{
	Use:   "load",
	Short: "Create one blueprint per replicated machine",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer r.log.Close()

		p, err := r.findProject(ctx, projectID)
		if err != nil {
			return err
		}
		if err := r.service.LoadBlueprints(ctx, r.target.EC2(), p); err != nil {
			return err
		}
		r.log.Successf("Blueprints loaded for project %s", p.ID)
		return nil
	},
}

var setBlueprintCmd = &cobra.Command{
	Use:   "set",
	Short: "Update subnet, disk tier or instance tier of selected blueprints",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer r.log.Close()

		p, err := r.findProject(ctx, projectID)
		if err != nil {
			return err
		}
		tier := compute.Tier(strings.ToLower(tierName))
		if err := r.service.SetBlueprint(ctx, r.target.EC2(), p, blueprint.SetBlueprintRequest{
			MachineIDs:   machineIDs,
			PublicSubnet: publicNet,
			DiskTier:     tier,
			InstanceTier: tier,
			InstanceType: customType,
		}); err != nil {
			return err
		}
		r.log.Successf("Blueprints updated for project %s", p.ID)
		return nil
	},
}

var selectSecurityGroupCmd = &cobra.Command{
	Use:   "select-sg",
	Short: "Replace the security groups of selected blueprints",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer r.log.Close()

		p, err := r.findProject(ctx, projectID)
		if err != nil {
			return err
		}
		groups := make([]network.SecurityGroup, len(groupIDs))
		for i, id := range groupIDs {
			groups[i] = network.SecurityGroup{ID: id}
		}
		if err := r.service.SelectSecurityGroup(ctx, p, machineIDs, groups); err != nil {
			return err
		}
		r.log.Successf("Security groups updated for project %s", p.ID)
		return nil
	},
}

var configureMachineCmd = &cobra.Command{
	Use:   "configure-machine",
	Short: "Build and submit the launch specification for a single machine",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer r.log.Close()

		p, err := r.findProject(ctx, projectID)
		if err != nil {
			return err
		}

		side, _ := cmd.Flags().GetString("side")
		machineID, _ := cmd.Flags().GetString("machine-id")
		instanceID, _ := cmd.Flags().GetString("instance-id")

		var client blueprint.EC2API = r.target.EC2()
		if project.Side(side) == project.Source {
			source, err := sourceClients(ctx, r, p)
			if err != nil {
				return err
			}
			client = source.EC2()
		}

		builder := blueprint.NewBuilder(r.translator, r.typeCache, r.invoker,
			r.cfg.FnConfigureBlueprint, r.log)
		configured, err := builder.Configure(ctx, client, p, project.Side(side), machineID, instanceID)
		if err != nil {
			return err
		}
		configured.ID = p.ID
		if err := r.blueprints.Save(ctx, configured); err != nil {
			return err
		}
		r.log.Successf("Blueprint configured for machine %s", machineID)
		return nil
	},
}

var configureBlueprintsCmd = &cobra.Command{
	Use:   "configure",
	Short: "Submit every blueprint to the provisioning function",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer r.log.Close()

		p, err := r.findProject(ctx, projectID)
		if err != nil {
			return err
		}
		blueprints, err := r.blueprints.FindAll(ctx, p.ID)
		if err != nil {
			return err
		}
		if err := r.service.ConfigureAll(ctx, r.target.EC2(), p, blueprints); err != nil {
			return err
		}
		r.log.Successf("Configured %d blueprints for project %s", len(blueprints), p.ID)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{cutbackCmd, deleteCmd, machinesCmd,
		installAgentCmd, launchCmd, loadBlueprintsCmd, setBlueprintCmd,
		selectSecurityGroupCmd, configureBlueprintsCmd, configureMachineCmd} {
		cmd.Flags().StringVar(&projectID, "project", "", "Project ID")
	}

	createCmd.Flags().String("name", "", "Project name")
	createCmd.Flags().String("source-vpc", "", "Source VPC ID")
	createCmd.Flags().BoolVar(&publicNet, "public-network", false, "Use public networking for replication traffic")

	wizardCmd.Flags().String("name", "", "Project name")
	wizardCmd.Flags().String("source-vpc", "", "Source VPC ID")
	wizardCmd.Flags().String("cidr", "", "Staging network CIDR")
	wizardCmd.Flags().Bool("continuous", false, "Keep replication running after initial sync")
	wizardCmd.Flags().StringSlice("instance-ids", nil, "EC2 instance IDs to replicate")
	wizardCmd.Flags().BoolVar(&publicNet, "public-network", false, "Use public networking for replication traffic")

	cutbackCmd.Flags().BoolVar(&terminate, "terminate", false, "Terminate source instances after cutback")
	deleteCmd.Flags().Bool("purge", false, "Remove the project record immediately")
	machinesCmd.Flags().String("side", string(project.Target), "Side to list (source or target)")

	installAgentCmd.Flags().StringSlice("instance-ids", nil, "EC2 instance IDs to install on")
	installAgentCmd.Flags().String("side", string(project.Source), "Side to install on (source or target)")

	launchCmd.Flags().StringSlice("machine-ids", nil, "Machine IDs to launch")
	launchCmd.Flags().String("side", string(project.Target), "Side to launch on (source or target)")
	launchCmd.Flags().String("launch-type", "TEST", "Launch type (TEST or RECOVERY)")

	setBlueprintCmd.Flags().StringSliceVar(&machineIDs, "machine-ids", nil, "Machine IDs to update")
	setBlueprintCmd.Flags().StringVar(&tierName, "tier", string(compute.Economy), "Tier (economy, business, customized)")
	setBlueprintCmd.Flags().StringVar(&customType, "instance-type", "", "Instance type for the customized tier")
	setBlueprintCmd.Flags().BoolVar(&publicNet, "public-subnet", false, "Place machines in a public subnet")

	selectSecurityGroupCmd.Flags().StringSliceVar(&machineIDs, "machine-ids", nil, "Machine IDs to update")
	selectSecurityGroupCmd.Flags().StringSliceVar(&groupIDs, "security-group-ids", nil, "Security group IDs to apply")

	configureMachineCmd.Flags().String("machine-id", "", "Replication machine ID")
	configureMachineCmd.Flags().String("instance-id", "", "EC2 instance backing the machine")
	configureMachineCmd.Flags().String("side", string(project.Source), "Side the instance runs on (source or target)")
}
