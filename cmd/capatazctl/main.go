package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/srand/capataz/pkg/log"
	"github.com/srand/capataz/pkg/utils"
)

type ControlConfig struct {
	// Base URL of the coordinator routes.
	CoordinatorUri string `mapstructure:"coordinator_uri"`

	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

var configData = ControlConfig{}

var rootCmd = &cobra.Command{
	Use:   "capatazctl",
	Short: "Capataz control command",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		viper.SetConfigName("capatazctl.yaml")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("/etc/capataz/")
		viper.AddConfigPath("$HOME/.config/capataz")
		viper.AddConfigPath(".")
		viper.ReadInConfig()

		viper.SetEnvPrefix("capataz")
		viper.AutomaticEnv()

		if err := utils.UnmarshalConfig(viper.GetViper(), &configData); err != nil {
			log.Fatal(err)
		}
	},
}

func main() {
	rootCmd.PersistentFlags().StringP("coordinator-uri", "c", "http://localhost:8080/capataz", "Coordinator URI")
	rootCmd.PersistentFlags().StringP("username", "u", "", "Basic authentication user")
	rootCmd.PersistentFlags().StringP("password", "p", "", "Basic authentication password")
	viper.BindPFlag("coordinator_uri", rootCmd.PersistentFlags().Lookup("coordinator-uri"))
	viper.BindPFlag("username", rootCmd.PersistentFlags().Lookup("username"))
	viper.BindPFlag("password", rootCmd.PersistentFlags().Lookup("password"))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
