package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sightread/sightread/content"
	"github.com/sightread/sightread/logging"
	"github.com/sightread/sightread/mic"
	"github.com/sightread/sightread/note"
	"github.com/sightread/sightread/prefs"
	"github.com/sightread/sightread/session"
	"github.com/sightread/sightread/stats"
)

var (
	practiceServer       string
	practiceContentDir   string
	practiceDevice       string
	practiceTempo        int
	practiceProfile      string
	practiceAutoContinue bool
	practiceRestsScored  bool
)

func init() {
	practiceCmd.Flags().StringVar(&practiceServer, "server", "", "statistics and content server base URL")
	practiceCmd.Flags().StringVar(&practiceContentDir, "content-dir", ".", "local directory of scores and playlists")
	practiceCmd.Flags().StringVar(&practiceDevice, "device", "", "capture device name substring")
	practiceCmd.Flags().IntVar(&practiceTempo, "tempo", 0, "tempo override in quarter notes per minute")
	practiceCmd.Flags().StringVar(&practiceProfile, "profile", "", "profile name for score records")
	practiceCmd.Flags().BoolVar(&practiceAutoContinue, "auto-continue", false, "advance through the playlist when the score beats the mean")
	practiceCmd.Flags().BoolVar(&practiceRestsScored, "rests-scored", false, "score silence during rests instead of skipping them")
	rootCmd.AddCommand(practiceCmd)
}

var practiceCmd = &cobra.Command{
	Use:   "practice [file]",
	Short: "Run a practice session on a score or playlist",
	Long: `Loads an ABC score, MIDI file or playlist and runs practice sessions
against it. Commands at the prompt: s start/stop, r reset, t tuner,
n/p next and previous playlist entry, q quit.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := ""
		if len(args) == 1 {
			filename = args[0]
		}
		return practice(filename)
	},
}

func practice(filename string) error {
	log := logging.GetGlobalLogger()

	prefsPath := defaultPrefsPath()
	pref, err := prefs.Load(prefsPath)
	if err != nil {
		log.Warn("preferences unreadable, using defaults", logging.Fields{"path": prefsPath})
	}
	if practiceProfile == "" {
		practiceProfile = pref.Profile
	}
	if !practiceAutoContinue {
		practiceAutoContinue = pref.AutoContinue
	}
	if filename == "" {
		filename = pref.File
	}
	if filename == "" {
		return errors.New("no score given and none remembered from a previous run")
	}

	var store content.Store
	var statsClient *stats.Client
	if practiceServer != "" {
		store = content.NewClient(practiceServer)
		statsClient = stats.NewClient(practiceServer)
	} else {
		store = content.NewDir(practiceContentDir)
	}

	cfg := session.DefaultConfig()
	if practiceRestsScored {
		cfg.RestPolicy = session.RestsScored
	}
	cfg.OnCountdown = func(n int) {
		if n > 0 {
			fmt.Printf("  %d...\n", n)
		} else {
			fmt.Println("  Go!")
		}
	}

	micCfg := mic.DefaultConfig()
	micCfg.Device = practiceDevice
	micCfg.SampleRate = cfg.Pitch.SampleRate

	ctl := session.NewController(cfg, session.Deps{
		Source:  mic.Source(micCfg, log),
		Content: store,
		Stats:   statsClient,
		Logger:  log,
	})
	defer ctl.Close()

	ctl.SetAutoContinue(practiceAutoContinue)
	ctl.SetProfile(practiceProfile, false)

	ctx := context.Background()
	if err := ctl.LoadFile(ctx, filename); err != nil {
		return err
	}
	if practiceTempo > 0 {
		if err := ctl.SetTempo(practiceTempo); err != nil {
			return err
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	printSnapshot(ctl.Snapshot())
	for {
		select {
		case <-quit:
			savePrefs(prefsPath, ctl, filename, log)
			return nil
		case <-ticker.C:
			if snap := ctl.Snapshot(); snap.Phase == session.PhasePlaying {
				fmt.Printf("  %d%% (%d/%d)  hearing %s, expecting %s\n",
					snap.Percent, snap.Correct, snap.Checked, snap.Current, snap.Expected)
			}
		case line, ok := <-lines:
			if !ok {
				savePrefs(prefsPath, ctl, filename, log)
				return nil
			}
			if done := dispatch(ctx, ctl, line); done {
				savePrefs(prefsPath, ctl, filename, log)
				return nil
			}
			printSnapshot(ctl.Snapshot())
		}
	}
}

// dispatch runs one prompt command; it reports whether to quit.
func dispatch(ctx context.Context, ctl *session.Controller, line string) bool {
	log := logging.GetGlobalLogger()
	switch line {
	case "q", "quit":
		return true
	case "s", "start":
		if err := ctl.Start(); err != nil {
			log.Warn(err.Error())
		}
	case "r", "reset":
		ctl.Reset()
	case "t", "tune":
		if err := ctl.Tune(); err != nil {
			log.Warn(err.Error())
		}
	case "n", "next":
		if err := ctl.Advance(ctx); err != nil {
			log.Warn(err.Error())
		}
	case "p", "prev":
		if err := ctl.Retreat(ctx); err != nil {
			log.Warn(err.Error())
		}
	case "":
	default:
		fmt.Println("commands: s start/stop, r reset, t tuner, n next, p prev, q quit")
	}
	return false
}

func printSnapshot(s session.Snapshot) {
	fmt.Printf("[%s] %s", s.Phase, s.Status)
	if s.Filename != "" {
		fmt.Printf("  (%s @ %d qpm", s.Filename, s.QPM)
		if s.PlaylistLen > 0 {
			fmt.Printf(", %d/%d", s.PlaylistIndex+1, s.PlaylistLen)
		}
		fmt.Print(")")
	}
	fmt.Println()
	if s.Checked > 0 {
		fmt.Printf("  score: %d%% (%d/%d)\n", s.Percent, s.Correct, s.Checked)
	}
	if s.Stats.Available() {
		fmt.Printf("  history: min %.1f mean %.1f max %.1f\n",
			s.Stats.MinScore, s.Stats.MeanScore, s.Stats.MaxScore)
	}
	if s.Current != note.Silence {
		fmt.Printf("  hearing: %s\n", s.Current)
	}
}

func savePrefs(path string, ctl *session.Controller, filename string, log logging.Logger) {
	snap := ctl.Snapshot()
	err := prefs.Save(path, prefs.Prefs{
		AutoContinue: snap.AutoContinue,
		Profile:      snap.Profile,
		File:         filename,
	})
	if err != nil {
		log.Warn("preferences not saved", logging.Fields{"path": path, "error": err.Error()})
	}
}
