package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/portcullismc/portcullis/internal/core/data"
)

var whitelistCmd = &cobra.Command{
	Use:   "whitelist",
	Short: "Whitelist management",
}

var whitelistAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Adds a username to the whitelist",
	Args:  cobra.ExactArgs(1),
	Run:   WhitelistAddCommand,
}

var whitelistRemoveCmd = &cobra.Command{
	Use:   "remove <username>",
	Short: "Removes a username from the whitelist",
	Args:  cobra.ExactArgs(1),
	Run:   WhitelistRemoveCommand,
}

var whitelistListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists all whitelisted usernames",
	Run:   WhitelistListCommand,
}

var whitelistEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Turns on whitelist enforcement",
	Run:   WhitelistEnableCommand,
}

var whitelistDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Turns off whitelist enforcement",
	Run:   WhitelistDisableCommand,
}

func WhitelistAddCommand(cmd *cobra.Command, args []string) {
	db := initDB()
	username := args[0]

	if err := data.CreateWhitelistEntry(db, &data.WhitelistEntry{
		Username:  username,
		CreatedAt: data.FormatTime(time.Now()),
	}); err != nil {
		fmt.Println("error adding whitelist entry:", err)
		return
	}
	fmt.Printf("whitelisted '%s'\n", username)
}

func WhitelistRemoveCommand(cmd *cobra.Command, args []string) {
	db := initDB()
	username := args[0]

	if err := data.DeleteWhitelistEntry(db, username); err != nil {
		fmt.Println("error removing whitelist entry:", err)
		return
	}
	fmt.Printf("removed '%s' from the whitelist\n", username)
}

func WhitelistListCommand(cmd *cobra.Command, args []string) {
	db := initDB()

	entries, err := data.ListWhitelistEntries(db)
	if err != nil {
		fmt.Println("error listing whitelist:", err)
		return
	}

	enabled, err := data.WhitelistEnabled(db)
	if err != nil {
		fmt.Println("error reading whitelist setting:", err)
		return
	}
	fmt.Printf("whitelist enforcement: %v\n", enabled)

	for _, entry := range entries {
		fmt.Printf("%s (added %s)\n", entry.Username, entry.CreatedAt)
	}
}

func WhitelistEnableCommand(cmd *cobra.Command, args []string) {
	db := initDB()
	if err := data.SetSetting(db, data.SettingWhitelistEnabled, "true"); err != nil {
		fmt.Println("error updating setting:", err)
		return
	}
	fmt.Println("whitelist enforcement enabled")
}

func WhitelistDisableCommand(cmd *cobra.Command, args []string) {
	db := initDB()
	if err := data.SetSetting(db, data.SettingWhitelistEnabled, "false"); err != nil {
		fmt.Println("error updating setting:", err)
		return
	}
	fmt.Println("whitelist enforcement disabled")
}
