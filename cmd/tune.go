package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sightread/sightread/dsp"
	"github.com/sightread/sightread/logging"
	"github.com/sightread/sightread/mic"
	"github.com/sightread/sightread/note"
)

var tuneDevice string

func init() {
	tuneCmd.Flags().StringVar(&tuneDevice, "device", "", "capture device name substring")
	rootCmd.AddCommand(tuneCmd)
}

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Show the note you are playing until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return tune()
	},
}

func tune() error {
	log := logging.GetGlobalLogger()

	micCfg := mic.DefaultConfig()
	micCfg.Device = tuneDevice

	capture, err := mic.Open(micCfg, log)
	if err != nil {
		return err
	}
	defer capture.Close()

	estimator := dsp.NewEstimator(dsp.DefaultConfig())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	fmt.Println("Play a note. Ctrl-C to stop.")
	for {
		select {
		case <-quit:
			fmt.Println()
			return nil
		case <-ticker.C:
			freq, ok := estimator.Detect(capture.Samples(), capture.Volume())
			if !ok {
				fmt.Print("\r--                      ")
				continue
			}
			n := note.FromFrequency(freq)
			fmt.Printf("\r%-4s %7.1f Hz %+5.0f cents   ", n, freq, n.Cents(freq))
		}
	}
}
