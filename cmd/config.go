package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wakefit-analytics/gmb-pipeline/internal/config"
)

const redacted = "[redacted]"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long:  "Prints the merged configuration (defaults, config.yaml and environment) as YAML. Literal secret values are redacted.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return writeConfig(os.Stdout, cfg)
	},
}

// writeConfig encodes c as YAML with secret values and credentials in
// connection strings replaced.
func writeConfig(w io.Writer, c *config.Config) error {
	out := *c
	if out.Secrets.PlacesAPIKey != "" {
		out.Secrets.PlacesAPIKey = redacted
	}
	if out.Secrets.ServiceAccountJSON != "" {
		out.Secrets.ServiceAccountJSON = redacted
	}
	if out.Store.DatabaseURL != "" {
		out.Store.DatabaseURL = redacted
	}
	if out.Monitoring.WebhookURL != "" {
		out.Monitoring.WebhookURL = redacted
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return eris.Wrap(err, "encode config")
	}
	return enc.Close()
}

func init() {
	rootCmd.AddCommand(configCmd)
}
