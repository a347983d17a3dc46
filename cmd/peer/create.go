package main

import (
	"fmt"

	"github.com/dkeye/Meet/internal/adapters/meetapi"
	"github.com/spf13/cobra"
)

var flagCreateJoin bool

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a meeting hosted by this process",
	Long: `Create a meeting. The host is bound to this process's client token, so use
--join to enter the meeting as its host right away.

Examples:
  peer create --name Alice
  peer create --name Alice --join --video cam.ivf --audio mic.ogg`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := meetapi.New(flagServer)
		if err != nil {
			return err
		}
		created, err := api.Create(cmd.Context(), flagName)
		if err != nil {
			return err
		}
		fmt.Println(successStyle.Render("Meeting created: " + created.DisplayCode))
		if !flagCreateJoin {
			return nil
		}
		return runMeeting(cmd.Context(), api, created.DisplayCode, true)
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	addMeetingFlags(createCmd)
	createCmd.Flags().BoolVar(&flagCreateJoin, "join", false, "Join the new meeting as host")
}
