package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/limpurb/fiscal-cli/internal/csvload"
)

var csvKind string

var csvloadCmd = &cobra.Command{
	Use:   "csvload [arquivos...]",
	Short: "Load collaborator CSV exports (chamados, vistorias, reclamacoes)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("ingest"); err != nil {
			return err
		}

		kind, ok := csvload.ParseKind(csvKind)
		if !ok {
			return eris.Errorf("unknown source %q (chamados, vistorias, reclamacoes)", csvKind)
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		loader := csvload.New(st)
		var total int64
		for _, path := range args {
			n, err := loader.File(ctx, path, kind)
			if err != nil {
				return err
			}
			total += n
		}

		zap.L().Info("csv load complete", zap.String("kind", string(kind)), zap.Int64("records", total))
		return nil
	},
}

func init() {
	csvloadCmd.Flags().StringVar(&csvKind, "fonte", "", "source kind: chamados, vistorias or reclamacoes (required)")
	_ = csvloadCmd.MarkFlagRequired("fonte")
	rootCmd.AddCommand(csvloadCmd)
}
