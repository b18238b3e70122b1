package upload

import (
	"log/slog"
	"os/exec"
	"strings"
)

// CommandHook returns a completion hook that runs command with the uploaded
// location appended as its last argument. An empty command yields nil.
func CommandHook(command string) func(location string) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil
	}
	return func(location string) {
		args := append(append([]string{}, fields[1:]...), location)
		output, err := exec.Command(fields[0], args...).CombinedOutput()
		if err != nil {
			slog.Error("Upload completed command failed", "command", command, "error", err, "output", string(output))
			return
		}
		slog.Debug("Upload completed command finished", "command", command, "location", location)
	}
}
