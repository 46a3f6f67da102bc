// root.go viper root command code
package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ingen-audio/ingen/cmd/bench"
	"github.com/ingen-audio/ingen/cmd/graphdump"
	"github.com/ingen-audio/ingen/cmd/serve"
	"github.com/ingen-audio/ingen/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ingen",
		Short: "Ingen modular audio graph engine",
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		log.Printf("error setting up flags: %v\n", err)
	}

	serveCmd := serve.Command(settings)
	graphCmd := graphdump.Command(settings)
	benchCmd := bench.Command(settings)

	rootCmd.AddCommand(serveCmd, graphCmd, benchCmd)

	return rootCmd
}

func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
