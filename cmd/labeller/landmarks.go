package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kinetrace/labeller/internal/store"
)

func landmarksCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "landmarks",
		Short: "Print the configured landmark order",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := openDatabase()
			if err != nil {
				return err
			}
			defer manager.Close()

			landmarks, err := store.New(manager.DB).AvailableLandmarks()
			if err != nil {
				return err
			}
			for i, name := range landmarks {
				fmt.Printf("%2d  %s\n", i+1, name)
			}
			return nil
		},
	}
}
