package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sat8bit/taiwa/persona"
)

func newCharacterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new-character <slug>",
		Short: "Create an empty character card with a timestamped file name",
		Args:  cobra.ExactArgs(1),
		RunE:  runNewCharacter,
	}
	cmd.Flags().String("output-dir", persona.DefaultCardDir, "directory to write the card into")
	return cmd
}

func runNewCharacter(cmd *cobra.Command, args []string) error {
	dir, err := cmd.Flags().GetString("output-dir")
	if err != nil {
		return err
	}

	path, err := persona.NewCardStore(dir).Create(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Card created: %s\n", path)
	return nil
}
