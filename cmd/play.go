package cmd

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/jsulmar/yarm/internal/player"
	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play FILE",
	Short: "Render a recording with the configured player",
	Long: `Render a local recording with the player configured in player.kind
(html, text or external). The external player uses vlc, mpv, ffplay or aplay.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("audio file not found: %s", path)
		}

		kind, _ := cmd.Flags().GetString("player")
		if kind == "" {
			kind = cfg.Player.Kind
		}
		factory, err := player.Resolve(kind)
		if err != nil {
			return err
		}

		p, err := player.New(os.Stdout, factory)
		if err != nil {
			return err
		}
		<-p.Ready()

		return p.SetMedia(player.MediaRef{
			URL:      (&url.URL{Scheme: "file", Path: path}).String(),
			Name:     filepath.Base(path),
			Autoplay: true,
		})
	},
}

func init() {
	playCmd.Flags().String("player", "", "player kind (overrides config)")
}
