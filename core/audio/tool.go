package audio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ToolStatus describes whether the ffmpeg executable can be run.
type ToolStatus struct {
	Path      string
	Available bool
	Reason    string
}

// CheckTool stats the executable on every call. The binary is provisioned outside this
// process and may appear or disappear at any time.
func CheckTool(path string) ToolStatus {
	status := ToolStatus{Path: path}
	info, err := os.Stat(path)
	if err != nil {
		status.Reason = fmt.Sprintf("stat: %v", err)
		return status
	}
	if !info.Mode().IsRegular() {
		status.Reason = "not a regular file"
		return status
	}
	if err := unix.Access(path, unix.X_OK); err != nil {
		status.Reason = fmt.Sprintf("not executable: %v", err)
		return status
	}
	status.Available = true
	return status
}
