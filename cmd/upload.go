package cmd

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/jsulmar/yarm/internal/recording"
	"github.com/jsulmar/yarm/internal/upload"
	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload FILE",
	Short: "Upload an existing recording",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		blob, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		endpoint, _ := cmd.Flags().GetString("endpoint")
		if endpoint == "" {
			endpoint = cfg.Upload.Endpoint
		}

		artifact := recording.Artifact{
			Blob:     blob,
			Name:     filepath.Base(path),
			MimeType: mime.TypeByExtension(filepath.Ext(path)),
		}

		client := upload.NewClient(cfg.Upload.Timeout,
			upload.WithCompletionHook(upload.CommandHook(cfg.Upload.CompletedCommand)))

		done := make(chan upload.Result, 1)
		client.Send(context.Background(), artifact, endpoint, func(res upload.Result) { done <- res })
		res := <-done
		if !res.OK {
			return fmt.Errorf("upload failed: %s", res.Error)
		}
		fmt.Printf("Uploaded to: %s\n", res.Location)
		return nil
	},
}

func init() {
	uploadCmd.Flags().String("endpoint", "", "upload endpoint (overrides config)")
}
