package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/openhouse-labs/keyturn/internal/config"
	"github.com/openhouse-labs/keyturn/internal/db"
)

func newDoctorCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and database health",
		Long:  "Runs diagnostic checks: config, database connectivity, schema, and row counts.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Keyturn config file")
	return cmd
}

type checkResult struct {
	name   string
	status string // "PASS", "FAIL", "WARN"
	detail string
}

func runDoctor(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Keyturn Doctor")
	fmt.Fprintln(out, "==============")

	var results []checkResult

	cfg, cfgResult := checkConfig(configPath)
	results = append(results, cfgResult)

	var gormDB *gorm.DB
	if cfg != nil {
		var dbResult checkResult
		gormDB, dbResult = checkDatabase(cfg)
		results = append(results, dbResult)
	} else {
		results = append(results, checkResult{"Database", "FAIL", "skipped (no config)"})
	}

	if gormDB != nil {
		results = append(results, checkSchema(gormDB))
		results = append(results, checkCounts(gormDB))
	} else {
		results = append(results, checkResult{"Schema", "FAIL", "skipped (no database)"})
	}

	passed, failed := 0, 0
	for _, r := range results {
		printCheckResult(out, r)
		switch r.status {
		case "PASS", "WARN":
			passed++
		case "FAIL":
			failed++
		}
	}

	fmt.Fprintf(out, "\n%d checks passed, %d failed\n", passed, failed)
	if failed > 0 {
		return fmt.Errorf("doctor: %d check(s) failed", failed)
	}
	return nil
}

func checkConfig(configPath string) (*config.Config, checkResult) {
	cfg, err := config.Load(configPath)
	if err != nil {
		cfg = config.Default()
		return cfg, checkResult{"Config", "WARN", fmt.Sprintf("%s not loaded, using defaults", configPath)}
	}
	return cfg, checkResult{"Config", "PASS", configPath}
}

func checkDatabase(cfg *config.Config) (*gorm.DB, checkResult) {
	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return nil, checkResult{"Database", "FAIL", err.Error()}
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, checkResult{"Database", "FAIL", err.Error()}
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, checkResult{"Database", "FAIL", err.Error()}
	}

	detail := fmt.Sprintf("%s:%d/%s", cfg.DB.Host, cfg.DB.Port, cfg.DB.Database)
	return gormDB, checkResult{"Database", "PASS", detail}
}

func checkSchema(gormDB *gorm.DB) checkResult {
	migrator := gormDB.Migrator()
	var missing []string
	for _, model := range db.AllModels() {
		if !migrator.HasTable(model) {
			missing = append(missing, fmt.Sprintf("%T", model))
		}
	}
	if len(missing) > 0 {
		return checkResult{"Schema", "FAIL", fmt.Sprintf("missing tables for %v; run 'kt db init'", missing)}
	}
	return checkResult{"Schema", "PASS", fmt.Sprintf("%d tables present", len(db.AllModels()))}
}

func checkCounts(gormDB *gorm.DB) checkResult {
	counts := make([]string, 0, len(db.AllModels()))
	for _, model := range db.AllModels() {
		var n int64
		if err := gormDB.Model(model).Count(&n).Error; err != nil {
			return checkResult{"Row counts", "WARN", err.Error()}
		}
		counts = append(counts, fmt.Sprintf("%T=%d", model, n))
	}
	return checkResult{"Row counts", "PASS", fmt.Sprintf("%v", counts)}
}

func printCheckResult(out io.Writer, r checkResult) {
	marker := "✓"
	if r.status == "FAIL" {
		marker = "✗"
	} else if r.status == "WARN" {
		marker = "!"
	}
	fmt.Fprintf(out, "%s %-12s %s\n", marker, r.name, r.detail)
}
