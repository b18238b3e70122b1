package cmd

import (
	"fmt"
	"runtime"

	"github.com/jsulmar/yarm/internal/audio"
	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List available audio sources",
	Long:  `List the capture sources of the configured backend. Use one of them as capture.source.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := audio.NewBackend(cfg.Capture.Backend)
		if err != nil {
			return err
		}

		sources, err := backend.ListSources()
		if err != nil {
			return fmt.Errorf("failed to get %s sources: %w", backend.Type(), err)
		}

		fmt.Printf("🎵 Audio Sources (%s, %s)\n", backend.Type(), runtime.GOOS)
		fmt.Printf("═══════════════════════════════════════\n\n")
		fmt.Printf("📋 %d found:\n", len(sources))
		for i, source := range sources {
			fmt.Printf("  %d. %s\n", i+1, source)
		}

		fmt.Printf("\n💡 Usage:\n")
		fmt.Printf("  • Set capture.source to one of the names above, or \"default\"\n")
		fmt.Printf("  • Available backends here: %v\n\n", audio.GetAvailableBackends())
		return nil
	},
}
