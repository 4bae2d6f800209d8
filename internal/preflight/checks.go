package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

const ntfyProbeTimeout = 5 * time.Second

func pass(name, detail string) Result { return Result{Name: name, Passed: true, Detail: detail} }

func failf(name, format string, args ...any) Result {
	return Result{Name: name, Detail: fmt.Sprintf(format, args...)}
}

// CheckDirectoryAccess passes when path is an existing directory the daemon
// can list, read and write.
func CheckDirectoryAccess(name, path string) Result {
	path = strings.TrimSpace(path)
	if path == "" {
		return failf(name, "not configured")
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return failf(name, "%s does not exist", path)
	case err != nil:
		return failf(name, "%s: %v", path, err)
	case !info.IsDir():
		return failf(name, "%s is not a directory", path)
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return failf(name, "%s: permission denied (%v)", path, err)
	}
	return pass(name, path+" writable")
}

// CheckDatabaseFile passes when the SQLite file at path is absent (it will be
// created and migrated on open) or is a regular file the process can write.
func CheckDatabaseFile(path string) Result {
	const name = "Database"
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return pass(name, path+" will be created")
	}
	if err != nil {
		return failf(name, "%s: %v", path, err)
	}
	if !info.Mode().IsRegular() {
		return failf(name, "%s is not a regular file", path)
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK); err != nil {
		return failf(name, "%s: permission denied (%v)", path, err)
	}
	return pass(name, fmt.Sprintf("%s (%d KiB)", path, info.Size()/1024))
}

// CheckNtfy probes GET {baseURL}/v1/health. Group and reminder pushes are
// best effort, so a failure here is reported but never required.
func CheckNtfy(ctx context.Context, baseURL string) Result {
	const name = "ntfy"
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return failf(name, "base url not configured")
	}

	probeCtx, cancel := context.WithTimeout(ctx, ntfyProbeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, base+"/v1/health", nil)
	if err != nil {
		return failf(name, "build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return failf(name, "%s unreachable: %v", base, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return failf(name, "%s answered %s", base, resp.Status)
	}
	return pass(name, base+" reachable")
}
