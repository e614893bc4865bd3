package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/openhouse-labs/keyturn/internal/compliance"
	"github.com/openhouse-labs/keyturn/internal/lead"
)

// seedFile is the YAML shape for bulk-loading leads and compliance tasks.
type seedFile struct {
	Leads []struct {
		Name            string   `yaml:"name"`
		Source          string   `yaml:"source"`
		Phone           string   `yaml:"phone"`
		Email           string   `yaml:"email"`
		Location        string   `yaml:"location"`
		PriceRange      string   `yaml:"price_range"`
		Notes           string   `yaml:"notes"`
		AssignedAgentID string   `yaml:"assigned_agent_id"`
		SLASeconds      int      `yaml:"sla_seconds"`
		Score           *float64 `yaml:"score"`
	} `yaml:"leads"`
	Tasks []struct {
		Type    string     `yaml:"type"`
		Client  string     `yaml:"client"`
		Status  string     `yaml:"status"`
		AgentID string     `yaml:"agent_id"`
		DueAt   *time.Time `yaml:"due_at"`
	} `yaml:"tasks"`
}

func newSeedCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "seed <file>",
		Short: "Bulk-load leads and compliance tasks from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Keyturn config file")
	return cmd
}

func runSeed(cmd *cobra.Command, configPath, seedPath string) error {
	out := cmd.OutOrStdout()

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}
	if len(seed.Leads) == 0 && len(seed.Tasks) == 0 {
		return fmt.Errorf("seed file %s contains no leads or tasks", seedPath)
	}

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	if len(seed.Leads) > 0 {
		items := make([]lead.CreateOpts, len(seed.Leads))
		for i, l := range seed.Leads {
			items[i] = lead.CreateOpts{
				Name:            l.Name,
				Source:          l.Source,
				Phone:           l.Phone,
				Email:           l.Email,
				Location:        l.Location,
				PriceRange:      l.PriceRange,
				Notes:           l.Notes,
				AssignedAgentID: l.AssignedAgentID,
				SLASeconds:      l.SLASeconds,
				Score:           l.Score,
			}
		}
		inserted, err := lead.Ingest(gormDB, items)
		if err != nil {
			return fmt.Errorf("seed leads: %w", err)
		}
		fmt.Fprintf(out, "Seeded %d leads\n", inserted)
	}

	if len(seed.Tasks) > 0 {
		items := make([]compliance.CreateOpts, len(seed.Tasks))
		for i, t := range seed.Tasks {
			items[i] = compliance.CreateOpts{
				Type:    t.Type,
				Client:  t.Client,
				Status:  t.Status,
				AgentID: t.AgentID,
				DueAt:   t.DueAt,
			}
		}
		inserted, err := compliance.Ingest(gormDB, items)
		if err != nil {
			return fmt.Errorf("seed tasks: %w", err)
		}
		fmt.Fprintf(out, "Seeded %d compliance tasks\n", inserted)
	}

	return nil
}
