// Package cmd wires the practice engine into a command line interface.
package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sightread/sightread/logging"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "sightread",
	Short: "Sight-reading practice engine",
	Long: `Listens to your instrument through the microphone, follows a score
at tempo and tells you how much of it you actually played.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger := logging.NewDefaultLogger()
		if verbose {
			logger.SetLevel(logging.DebugLevel)
		}
		logging.SetGlobalLogger(logger)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

// defaultPrefsPath places the preference file under the user config dir.
func defaultPrefsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".sightread.json"
	}
	return filepath.Join(dir, "sightread", "prefs.json")
}
