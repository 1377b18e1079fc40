package cli

import (
	"github.com/spf13/cobra"

	"github.com/mailflow/mailflow/internal/app"
)

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Start the delivery worker consuming the email queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			app.RunWorker()
			return nil
		},
	}

	return cmd
}
