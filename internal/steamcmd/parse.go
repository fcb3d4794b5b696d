package steamcmd

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"github.com/updateio/updateio/internal/model"
)

// ErrorMarker is what steamcmd prefixes its error lines with.
const ErrorMarker = "ERROR"

var (
	updateMarkerRx   = regexp.MustCompile(`Update:\s*(\S+)`)
	steamProgressRx  = regexp.MustCompile(`progress:\s*[\d.]+\s*\((\d+)\s*/\s*(\d+)\)`)
	stateCodeRx      = regexp.MustCompile(`0x[0-9a-fA-F]+`)
	appsInstalledRx  = regexp.MustCompile(`^AppID\s+(\d+)\s*:\s*"([^"]*)"\s*:\s*(.+)$`)
	updateNeededRx   = regexp.MustCompile(`(?i)update (needed|available|required)`)
	updateUpToDateRx = regexp.MustCompile(`(?i)up to date|\bno (pending )?updates?\b`)
)

// stateCodes are the "Update state (0x..)" codes steamcmd prints while
// app_update runs.
var stateCodes = map[string]model.UpdateState{
	"0x11":  model.StateStarting,
	"0x5":   model.StateVerifying,
	"0x61":  model.StateDownloading,
	"0x81":  model.StateInstalling,
	"0x101": model.StateComplete,
}

var stateKeywords = []struct {
	keyword string
	state   model.UpdateState
}{
	{"success! app", model.StateComplete},
	{"extracting", model.StateExtracting},
	{"unpacking", model.StateExtracting},
	{"verifying", model.StateVerifying},
}

// ParseProgress extracts the current and total counters of a progress line.
// Both "Update: 512/1024" and "progress: 50.00 (512 / 1024)" are understood.
// Malformed counters are reported as no progress.
func ParseProgress(line string) (current, total uint64, ok bool) {
	if m := updateMarkerRx.FindStringSubmatch(line); m != nil {
		a, b, found := strings.Cut(m[1], "/")
		if !found {
			return 0, 0, false
		}
		return parseCounters(a, b)
	}
	if m := steamProgressRx.FindStringSubmatch(line); m != nil {
		return parseCounters(m[1], m[2])
	}
	return 0, 0, false
}

func parseCounters(a, b string) (uint64, uint64, bool) {
	current, err := strconv.ParseUint(a, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	total, err := strconv.ParseUint(b, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return current, total, true
}

// ParseState maps a status code or keyword found in line to an UpdateState.
// Codes win over keywords; anything unrecognized is StateUnknown.
func ParseState(line string) model.UpdateState {
	for _, code := range stateCodeRx.FindAllString(line, -1) {
		if state, ok := stateCodes[strings.ToLower(code)]; ok {
			return state
		}
	}
	lower := strings.ToLower(line)
	for _, kw := range stateKeywords {
		if strings.Contains(lower, kw.keyword) {
			return kw.state
		}
	}
	return model.StateUnknown
}

// ParseStatus turns one stdout line into a progress event.
func ParseStatus(line string) model.UpdateStatus {
	line = strings.TrimRight(line, "\r\n")
	status := model.UpdateStatus{
		Status: line,
		State:  ParseState(line),
	}
	if current, total, ok := ParseProgress(line); ok {
		status.Progress = model.Percent(current, total)
	}
	return status
}

// IsErrorLine reports whether line carries the steamcmd error marker.
func IsErrorLine(line string) bool {
	return strings.Contains(line, ErrorMarker)
}

// CheckUpdateNeeded scans +app_status output. The first line mentioning
// either a pending update or an up to date install decides. A negated
// line such as "No update available" counts as up to date.
func CheckUpdateNeeded(output string) (bool, error) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if updateUpToDateRx.MatchString(line) {
			return false, nil
		}
		if updateNeededRx.MatchString(line) {
			return true, nil
		}
	}
	return false, model.ErrUndetermined
}

// ParseInstalledApps reads +apps_installed output. Two layouts are accepted:
// one record per line
//
//	AppID 740 : "Counter-Strike Global Offensive - Dedicated Server" : /srv/csgo
//
// and key value blocks
//
//	AppID: 740
//	Name: Counter-Strike Global Offensive - Dedicated Server
//	InstallDir: C:\steam\csgo
//
// Incomplete blocks and unparsable ids are skipped.
func ParseInstalledApps(output string) []model.InstalledApp {
	var apps []model.InstalledApp
	var current model.InstalledApp
	var hasID, hasName, hasDir bool

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if m := appsInstalledRx.FindStringSubmatch(line); m != nil {
			id, err := model.ParseAppID(m[1])
			if err != nil {
				continue
			}
			apps = append(apps, model.InstalledApp{
				AppID:      id,
				Name:       m[2],
				InstallDir: strings.TrimSpace(m[3]),
			})
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "AppID":
			id, err := model.ParseAppID(value)
			if err != nil {
				hasID = false
				continue
			}
			current.AppID, hasID = id, true
		case "Name":
			current.Name, hasName = value, true
		case "InstallDir":
			current.InstallDir, hasDir = value, true
		default:
			continue
		}

		if hasID && hasName && hasDir {
			apps = append(apps, current)
			current = model.InstalledApp{}
			hasID, hasName, hasDir = false, false, false
		}
	}
	return apps
}
