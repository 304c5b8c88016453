package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var initOutput string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(initOutput); err == nil {
			return fmt.Errorf("%s already exists, refusing to overwrite", initOutput)
		}

		sample := map[string]any{
			"logging": map[string]any{
				"level":  "INFO",
				"format": "text",
				"output": "stdout",
			},
			"database": map[string]any{
				"host":     "localhost",
				"port":     5432,
				"name":     "cidrd",
				"username": "cidrd",
				"password": "changeme",
				"ssl_mode": "disable",
			},
			"api": map[string]any{
				"listen_addr": ":8080",
			},
			"auth": map[string]any{
				"jwt_secret":        "change-me-to-a-random-32+-char-secret",
				"default_token_ttl": 86400,
				"auth_cache_ttl":    120,
			},
			"worker": map[string]any{
				"job_queue_query_interval": 5,
			},
			"scheduler": map[string]any{
				"delete_expired_interval": 30,
			},
			"only_global_cidrs": true,
		}

		data, err := yaml.Marshal(sample)
		if err != nil {
			return err
		}
		if err := os.WriteFile(initOutput, data, 0o600); err != nil {
			return err
		}
		fmt.Printf("wrote sample configuration to %s\n", initOutput)
		return nil
	},
}

func init() {
	initCmd.Flags().StringVarP(&initOutput, "output", "o", "cidrd.yaml", "output file")
}
