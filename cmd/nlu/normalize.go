package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"nludevops/internal/luis"
)

func newNormalizeCmd(a *app) *cobra.Command {
	var responsePath string
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Normalize a saved prediction response without calling the service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			var raw []byte
			if responsePath == "" || responsePath == "-" {
				raw, err = io.ReadAll(cmd.InOrStdin())
			} else {
				raw, err = os.ReadFile(responsePath)
			}
			if err != nil {
				return fmt.Errorf("read response: %w", err)
			}

			mapper, err := luis.NewTypeMapper(cfg.LUISSettings().PrebuiltEntityTypes)
			if err != nil {
				return err
			}
			res, err := luis.Normalize(raw, mapper)
			if err != nil {
				return err
			}
			body, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.stdout, string(body))
			return err
		},
	}
	cmd.Flags().StringVarP(&responsePath, "response", "r", "", "prediction response JSON file, - for stdin")
	return cmd
}
