package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/portcullismc/portcullis/internal/core/data"
)

var banCmd = &cobra.Command{
	Use:   "ban",
	Short: "Username ban management",
}

var banAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Bans a username from logging in through the proxy",
	Args:  cobra.ExactArgs(1),
	Run:   BanAddCommand,
}

var banRemoveCmd = &cobra.Command{
	Use:   "remove <username>",
	Short: "Removes a username ban",
	Args:  cobra.ExactArgs(1),
	Run:   BanRemoveCommand,
}

var banListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists all username bans, including expired ones",
	Run:   BanListCommand,
}

var ipBanCmd = &cobra.Command{
	Use:   "ipban",
	Short: "Address ban management",
}

var ipBanAddCmd = &cobra.Command{
	Use:   "add <address>",
	Short: "Bans connections from an IP address",
	Args:  cobra.ExactArgs(1),
	Run:   IPBanAddCommand,
}

var ipBanRemoveCmd = &cobra.Command{
	Use:   "remove <address>",
	Short: "Removes an address ban",
	Args:  cobra.ExactArgs(1),
	Run:   IPBanRemoveCommand,
}

var ipBanListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists all address bans, including expired ones",
	Run:   IPBanListCommand,
}

var (
	ReasonFlag   string
	DurationFlag time.Duration
)

func banFields() (createdAt string, expiration, reason *string) {
	now := time.Now()
	createdAt = data.FormatTime(now)
	if DurationFlag > 0 {
		e := data.FormatTime(now.Add(DurationFlag))
		expiration = &e
	}
	if ReasonFlag != "" {
		reason = &ReasonFlag
	}
	return
}

func describeBan(createdAt string, expiration, reason *string) string {
	desc := "created " + createdAt
	if expiration != nil {
		desc += ", expires " + *expiration
	} else {
		desc += ", permanent"
	}
	if reason != nil {
		desc += ", reason: " + *reason
	}
	return desc
}

func BanAddCommand(cmd *cobra.Command, args []string) {
	db := initDB()
	username := args[0]

	createdAt, expiration, reason := banFields()
	if err := data.CreateUserBan(db, &data.UserBan{
		Username:   username,
		CreatedAt:  createdAt,
		Expiration: expiration,
		Reason:     reason,
	}); err != nil {
		fmt.Println("error creating ban:", err)
		return
	}
	fmt.Printf("banned '%s' (%s)\n", username, describeBan(createdAt, expiration, reason))
}

func BanRemoveCommand(cmd *cobra.Command, args []string) {
	db := initDB()
	username := args[0]

	ban, err := data.FindUserBan(db, username)
	if err != nil {
		fmt.Println("error finding ban:", err)
		return
	} else if ban == nil {
		fmt.Printf("no ban exists for '%s'\n", username)
		return
	}

	if err := data.DeleteUserBan(db, username); err != nil {
		fmt.Println("error removing ban:", err)
		return
	}
	fmt.Printf("removed ban for '%s'\n", username)
}

func BanListCommand(cmd *cobra.Command, args []string) {
	db := initDB()

	bans, err := data.ListUserBans(db)
	if err != nil {
		fmt.Println("error listing bans:", err)
		return
	}

	now := time.Now()
	for _, ban := range bans {
		status := "expired"
		if ban.Active(now) {
			status = "active"
		}
		fmt.Printf("%s [%s] %s\n", ban.Username, status,
			describeBan(ban.CreatedAt, ban.Expiration, ban.Reason))
	}
}

func parseAddress(arg string) net.IP {
	ip := net.ParseIP(arg)
	if ip == nil {
		fmt.Println("invalid IP address:", arg)
		os.Exit(1)
	}
	return ip
}

func IPBanAddCommand(cmd *cobra.Command, args []string) {
	db := initDB()
	ip := parseAddress(args[0])

	createdAt, expiration, reason := banFields()
	if err := data.CreateIPBan(db, &data.IPBan{
		IP:         data.EncodeIP(ip),
		CreatedAt:  createdAt,
		Expiration: expiration,
		Reason:     reason,
	}); err != nil {
		fmt.Println("error creating ban:", err)
		return
	}
	fmt.Printf("banned %s (%s)\n", ip, describeBan(createdAt, expiration, reason))
}

func IPBanRemoveCommand(cmd *cobra.Command, args []string) {
	db := initDB()
	ip := parseAddress(args[0])

	ban, err := data.FindIPBan(db, ip)
	if err != nil {
		fmt.Println("error finding ban:", err)
		return
	} else if ban == nil {
		fmt.Printf("no ban exists for %s\n", ip)
		return
	}

	if err := data.DeleteIPBan(db, ip); err != nil {
		fmt.Println("error removing ban:", err)
		return
	}
	fmt.Printf("removed ban for %s\n", ip)
}

func IPBanListCommand(cmd *cobra.Command, args []string) {
	db := initDB()

	bans, err := data.ListIPBans(db)
	if err != nil {
		fmt.Println("error listing bans:", err)
		return
	}

	now := time.Now()
	for _, ban := range bans {
		ip, err := data.DecodeIP(ban.IP)
		if err != nil {
			fmt.Println("skipping malformed row:", err)
			continue
		}
		status := "expired"
		if ban.Active(now) {
			status = "active"
		}
		fmt.Printf("%s [%s] %s\n", ip, status,
			describeBan(ban.CreatedAt, ban.Expiration, ban.Reason))
	}
}
