// The banctl command is a small convenience tool for manipulating the ban and
// whitelist records in the configured proxy database.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"

	"github.com/portcullismc/portcullis/internal/core"
	"github.com/portcullismc/portcullis/internal/core/data"
)

var ConfigFlag string

func main() {
	rootCmd := &cobra.Command{
		Use:   "banctl",
		Short: "Ban and whitelist management for the proxy",
	}
	rootCmd.PersistentFlags().StringVarP(&ConfigFlag, "config", "c", "./", "Path to the proxy config directory")

	banCmd.AddCommand(banAddCmd)
	banCmd.AddCommand(banRemoveCmd)
	banCmd.AddCommand(banListCmd)
	banAddCmd.Flags().StringVar(&ReasonFlag, "reason", "", "Reason shown to the banned player")
	banAddCmd.Flags().DurationVar(&DurationFlag, "duration", 0, "Ban duration (e.g. 72h); omit for permanent")

	ipBanCmd.AddCommand(ipBanAddCmd)
	ipBanCmd.AddCommand(ipBanRemoveCmd)
	ipBanCmd.AddCommand(ipBanListCmd)
	ipBanAddCmd.Flags().StringVar(&ReasonFlag, "reason", "", "Reason shown to the banned player")
	ipBanAddCmd.Flags().DurationVar(&DurationFlag, "duration", 0, "Ban duration (e.g. 72h); omit for permanent")

	whitelistCmd.AddCommand(whitelistAddCmd)
	whitelistCmd.AddCommand(whitelistRemoveCmd)
	whitelistCmd.AddCommand(whitelistListCmd)
	whitelistCmd.AddCommand(whitelistEnableCmd)
	whitelistCmd.AddCommand(whitelistDisableCmd)

	rootCmd.AddCommand(banCmd)
	rootCmd.AddCommand(ipBanCmd)
	rootCmd.AddCommand(whitelistCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
	}
}

func initDB() *gorm.DB {
	// Change to the same directory as the config file so that any relative
	// paths in the config file will resolve.
	if ConfigFlag != "" {
		if err := os.Chdir(ConfigFlag); err != nil {
			fmt.Println("error changing to config directory:", err)
			os.Exit(1)
		}
	}

	cfg := core.LoadConfig(ConfigFlag)
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Database.Engine) {
	case "sqlite":
		dialector = sqlite.Open(cfg.Database.Filename)
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseURL())
	default:
		fmt.Println("unsupported database engine:", cfg.Database.Engine)
		os.Exit(1)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		fmt.Println("error connecting to database:", err.Error())
		os.Exit(1)
	}

	if err := db.AutoMigrate(
		&data.UserBan{},
		&data.IPBan{},
		&data.WhitelistEntry{},
		&data.Setting{},
	); err != nil {
		fmt.Println("error migrating database:", err.Error())
		os.Exit(1)
	}
	return db
}
