package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pjc-admin/statistiques-api/config"
	"github.com/pjc-admin/statistiques-api/models"
	"github.com/pjc-admin/statistiques-api/services"
	"github.com/pjc-admin/statistiques-api/utils"
)

const cliUserID = "cli"

type exportFlags struct {
	annee         string
	format        string
	annual        bool
	redacteurs    bool
	circonstances bool
	regions       bool
	out           string
	token         string
}

// newExportCmd génère un export sans passer par l'API (rapports planifiés)
func newExportCmd() *cobra.Command {
	f := &exportFlags{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Génère un export Excel ou PDF sur disque",
		Example: `  statistiques-api export --annee 2024 --format pdf --annual --redacteurs
  statistiques-api export --annee all --format excel --out /tmp/exports`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := f.options()
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if f.token != "" {
				ctx = services.WithToken(ctx, f.token)
			}

			file, err := a.exports.Export(ctx, cliUserID, opts)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(f.out, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			path := filepath.Join(f.out, file.Filename)
			if err := os.WriteFile(path, file.Content, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}

			utils.SafeInfo("📄 Export written to %s (%d bytes)", path, len(file.Content))
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.annee, "annee", "all", `année à exporter, ou "all" pour toutes les années`)
	fl.StringVar(&f.format, "format", models.FormatExcel, "excel ou pdf")
	fl.BoolVar(&f.annual, "annual", false, "inclure les statistiques annuelles")
	fl.BoolVar(&f.redacteurs, "redacteurs", false, "inclure la répartition par rédacteur")
	fl.BoolVar(&f.circonstances, "circonstances", false, "inclure la répartition par circonstance")
	fl.BoolVar(&f.regions, "regions", false, "inclure la répartition par région")
	fl.StringVar(&f.out, "out", ".", "répertoire de sortie")
	fl.StringVar(&f.token, "token", os.Getenv("STATS_API_TOKEN"), "jeton transmis au backend de statistiques")

	return cmd
}

func (f *exportFlags) options() (models.ExportOptions, error) {
	annee := models.AllYears
	if f.annee != "all" {
		n, err := strconv.Atoi(f.annee)
		if err != nil {
			return models.ExportOptions{}, fmt.Errorf("invalid --annee %q", f.annee)
		}
		annee = n
	}
	switch f.format {
	case models.FormatExcel, models.FormatPDF:
	default:
		return models.ExportOptions{}, fmt.Errorf("invalid --format %q (expected excel or pdf)", f.format)
	}

	return models.ExportOptions{
		Format:                   f.format,
		Annee:                    annee,
		IncludeAnnualStats:       f.annual,
		IncludeRedacteurTable:    f.redacteurs,
		IncludeCirconstanceTable: f.circonstances,
		IncludeRegionTable:       f.regions,
	}.Normalize(), nil
}
