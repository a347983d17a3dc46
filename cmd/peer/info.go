package main

import (
	"fmt"

	"github.com/dkeye/Meet/internal/adapters/meetapi"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <code>",
	Short: "Show a meeting and its participants",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := meetapi.New(flagServer)
		if err != nil {
			return err
		}
		info, err := api.Meeting(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		members, err := api.Members(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(meetingView(info))
		fmt.Println(membersView(members))
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show server statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := meetapi.New(flagServer)
		if err != nil {
			return err
		}
		st, err := api.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(statsView(st))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(statsCmd)
}
