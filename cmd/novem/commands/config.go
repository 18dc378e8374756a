package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/spindleworks/novem/config"
)

// ConfigCmd represents the config command
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage novem configuration",
	Long: `Display and manage novem configuration settings.

Configuration sources (in order of precedence):
1. Environment variables (NOVEM_* prefix)
2. Project config (./novem.toml, searched upward)
3. User config (~/.novem/novem.toml)
4. System config (/etc/novem/novem.toml)
5. Default values

Examples:
  novem config show                # Show current configuration
  novem config show --format json  # Show configuration in JSON format
  novem config get flow.workers    # Get specific config value
  novem config validate            # Validate current configuration`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the current novem configuration from all sources",
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., flow.workers, judgment.anchor3.coherence)",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	Long:  "Validate that the current novem configuration is valid",
	RunE:  runConfigValidate,
}

var configWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where configuration is loaded from",
	Long: `Show the configuration cascade and which files were checked.

Lists all configuration sources in order of precedence, showing
which files exist and which are missing.`,
	RunE: runConfigWhere,
}

var configFormat string

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configGetCmd)
	ConfigCmd.AddCommand(configValidateCmd)
	ConfigCmd.AddCommand(configWhereCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
		fmt.Println(string(data))
	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to TOML: %w", err)
		}
		fmt.Print(string(data))
	default:
		return fmt.Errorf("unknown format %q (want toml or json)", configFormat)
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	v := config.GetViper()
	if !v.IsSet(key) {
		return fmt.Errorf("unknown configuration key %q", key)
	}
	fmt.Println(v.Get(key))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}
	fmt.Println("Configuration is valid")
	return nil
}

func runConfigWhere(cmd *cobra.Command, args []string) error {
	paths := []string{"/etc/novem/novem.toml"}
	if user := config.UserConfigPath(); user != "" {
		paths = append(paths, user)
	}
	paths = append(paths, "./novem.toml (searched upward)")

	fmt.Println("Configuration cascade (lowest to highest precedence):")
	for _, p := range paths {
		marker := "missing"
		if _, err := os.Stat(p); err == nil {
			marker = "found"
		}
		fmt.Printf("  %-45s %s\n", p, marker)
	}
	fmt.Println("  NOVEM_* environment variables              (always applied last)")
	return nil
}
