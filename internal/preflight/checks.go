package preflight

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// nearestExisting walks up from path to the first ancestor that exists.
func nearestExisting(path string) (string, error) {
	current := filepath.Clean(path)
	for {
		if _, err := os.Stat(current); err == nil {
			return current, nil
		} else if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("no existing ancestor of %s", path)
		}
		current = parent
	}
}

// CheckDirectoryAccess verifies that path, or the ancestor it would be
// created under, is a readable and writable directory.
func CheckDirectoryAccess(name, path string) Result {
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	target, err := nearestExisting(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	info, err := os.Stat(target)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s is not a directory)", path, target)}
	}
	if err := unix.Access(target, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	if target != filepath.Clean(path) {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created under %s)", path, target)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies the filesystem holding path has at least minGiB free.
func CheckFreeSpace(name, path string, minGiB int) Result {
	target, err := nearestExisting(path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	var st unix.Statfs_t
	if err := unix.Statfs(target, &st); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("statfs %s: %v", target, err)}
	}
	free := st.Bavail * uint64(st.Bsize)
	freeGiB := float64(free) / (1 << 30)
	detail := fmt.Sprintf("%.1f GiB free on %s", freeGiB, target)
	if minGiB > 0 && freeGiB < float64(minGiB) {
		return Result{Name: name, Detail: fmt.Sprintf("%s, need %d GiB", detail, minGiB)}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckFileExists verifies path is a regular file.
func CheckFileExists(name, path string) Result {
	info, err := os.Stat(path)
	switch {
	case err != nil && os.IsNotExist(err):
		return Result{Name: name, Detail: fmt.Sprintf("%s does not exist", path)}
	case err != nil:
		return Result{Name: name, Detail: fmt.Sprintf("stat %s: %v", path, err)}
	case info.IsDir():
		return Result{Name: name, Detail: fmt.Sprintf("%s is a directory", path)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckDirectoryExists verifies path is an existing directory.
func CheckDirectoryExists(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s does not exist", path)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s is not a directory", path)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}
