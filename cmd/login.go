package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ucams-cli/internal/client"
	"ucams-cli/internal/config"
)

// Variables to hold flag values
var (
	loginName   string
	loginDomURL string
	loginUser   string
	loginPass   string
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Verify credentials and save the account",
	Long: `Logs in to the portal with the contract number and password, exchanges the
portal token for a camera service token, and saves the account to the config
file. Tokens themselves are never saved.

Example:
  ucams-cli login --username 100500 --password secret --name Home`,
	Run: func(cmd *cobra.Command, args []string) {
		loginDomURL = strings.TrimRight(loginDomURL, "/")

		cfg := client.Config{
			Name:               loginName,
			DomURL:             loginDomURL,
			Contract:           loginUser,
			Password:           loginPass,
			Timeout:            viper.GetDuration("timeout"),
			PageSize:           viper.GetInt("page_size"),
			InsecureSkipVerify: viper.GetBool("insecure_skip_verify"),
		}

		fmt.Printf("Authenticating against %s as contract '%s'...\n", loginDomURL, loginUser)

		ctx, cancel := commandContext()
		defer cancel()

		portal := client.NewPortal(cfg, logger)
		exitOnError("logging in", portal.EnsureAuthenticated(ctx))

		cams := client.NewCameras(cfg, portal, logger)
		exitOnError("authenticating with the camera service", cams.EnsureAuthenticated(ctx))

		fmt.Printf("Login successful. Camera service: %s\n", cams.Origin())

		if err := config.SaveAccount(viper.GetViper(), loginName, loginDomURL, loginUser, loginPass); err != nil {
			exitOnError("saving configuration file", err)
		}

		fmt.Printf("Account saved. You can now run commands like './ucams-cli cameras list'.\n")
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().StringVar(&loginName, "name", config.DefaultName, "Account display name, prefixes device names")
	loginCmd.Flags().StringVar(&loginDomURL, "dom-url", client.DefaultDomURL, "Portal base URL")
	loginCmd.Flags().StringVarP(&loginUser, "username", "u", "", "Contract number")
	loginCmd.Flags().StringVarP(&loginPass, "password", "p", "", "Portal password")

	_ = loginCmd.MarkFlagRequired("username")
	_ = loginCmd.MarkFlagRequired("password")
}
