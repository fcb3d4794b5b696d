package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidAppID = errors.New("invalid app id")

// AppID identifies one installed title. It is the cache key for update checks
// and the argument passed to steamcmd.
type AppID uint32

func (id AppID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseAppID parses a decimal app id. Zero is not a valid id.
func ParseAppID(s string) (AppID, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAppID, s)
	}
	return AppID(n), nil
}

// InstalledApp is a title reported by steamcmd +apps_installed.
type InstalledApp struct {
	AppID      AppID  `json:"app_id" yaml:"app_id"`
	Name       string `json:"name" yaml:"name"`
	InstallDir string `json:"install_dir" yaml:"install_dir"`
}
