package cmd

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/sightread/sightread/content"
	"github.com/sightread/sightread/logging"
	"github.com/sightread/sightread/server"
	"github.com/sightread/sightread/stats"
)

var (
	serveAddr       string
	serveDataDir    string
	serveContentDir string
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVar(&serveDataDir, "data", "data", "directory for score records and profiles")
	serveCmd.Flags().StringVar(&serveContentDir, "content", ".", "directory of scores and playlists to serve")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the statistics and content server",
	Long: `Serves score statistics, profiles, ABC files and playlists over HTTP
for practice clients.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func serve() error {
	log := logging.GetGlobalLogger()

	store, err := stats.NewStore(serveDataDir)
	if err != nil {
		return err
	}

	srv := server.New(store, content.NewDir(serveContentDir), log)
	log.Info("listening", logging.Fields{
		"addr":    serveAddr,
		"data":    serveDataDir,
		"content": serveContentDir,
	})
	return http.ListenAndServe(serveAddr, srv.Handler())
}
