package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "malariascope",
		Short: "Malaria parasite detection on blood smear images",
		Long: `Malariascope serves a small web application where a signed in user uploads
a blood smear image, a YOLO detection model flags malaria parasites, and both
the normalized upload and the annotated result are saved under
results/<username>/.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newReindexCmd())

	return cmd
}
