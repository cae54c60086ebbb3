package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kinetrace/labeller/internal/config"
)

func initdbCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "initdb",
		Short: "Create the label database schema and seed reference data",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := openDatabase()
			if err != nil {
				return err
			}
			defer manager.Close()

			fmt.Printf("database ready (%s)\n", config.GetString("db.file"))
			return nil
		},
	}
}
