package steamcmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/updateio/updateio/internal/model"
)

// Operation is the steamcmd directive run between login and quit.
type Operation int

const (
	OpListInstalled Operation = iota
	OpCheckStatus
	OpUpdate
)

func (o Operation) String() string {
	switch o {
	case OpListInstalled:
		return "apps_installed"
	case OpCheckStatus:
		return "app_status"
	case OpUpdate:
		return "app_update"
	default:
		return fmt.Sprintf("Operation(%d)", int(o))
	}
}

// Credentials for +login. Both fields must be set for a named login.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) anonymous() bool {
	return c.Username == "" || c.Password == ""
}

// LoginArgs returns the login directive steamcmd must see first.
func LoginArgs(creds Credentials) []string {
	if creds.anonymous() {
		return []string{"+login", "anonymous"}
	}
	return []string{"+login", creds.Username, creds.Password}
}

// Args builds the full steamcmd argument list: login, the operation and
// +quit. steamcmd runs directives in order, so the order matters.
func Args(creds Credentials, op Operation, id model.AppID) []string {
	args := LoginArgs(creds)
	switch op {
	case OpListInstalled:
		args = append(args, "+apps_installed")
	case OpCheckStatus:
		args = append(args, "+app_status", id.String())
	case OpUpdate:
		args = append(args, "+app_update", id.String(), "validate")
	}
	return append(args, "+quit")
}

// RedactArgs hides the password of a named login, for logging.
func RedactArgs(args []string) []string {
	ret := append([]string(nil), args...)
	if len(ret) >= 3 && ret[0] == "+login" && ret[1] != "anonymous" && ret[2] != "" && ret[2][0] != '+' {
		ret[2] = "***"
	}
	return ret
}

// Locate resolves the steamcmd executable. An existing customPath wins,
// otherwise the binary bundled under resources/bin/steamcmd next to the
// running executable is used.
func Locate(customPath string) (string, error) {
	if customPath != "" && isFile(customPath) {
		return customPath, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrToolNotFound, err)
	}
	bundled := BundledPath(filepath.Dir(exe))
	if isFile(bundled) {
		return bundled, nil
	}
	if customPath != "" {
		return "", fmt.Errorf("%w: neither %s nor %s exists", model.ErrToolNotFound, customPath, bundled)
	}
	return "", fmt.Errorf("%w: %s does not exist", model.ErrToolNotFound, bundled)
}

// BundledPath is where steamcmd ships relative to the application directory.
func BundledPath(appDir string) string {
	name := "steamcmd.sh"
	if runtime.GOOS == "windows" {
		name = "steamcmd.exe"
	}
	return filepath.Join(appDir, "resources", "bin", "steamcmd", name)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
