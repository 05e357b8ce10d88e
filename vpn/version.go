package vpn

import (
	"fmt"
	"regexp"
	"strconv"
)

var versionPattern = regexp.MustCompile(`\b(\d+)\.(\d+)\.(\d+)\b`)

// VersionInfo is a parsed major.minor.patch version.
type VersionInfo struct {
	Major int
	Minor int
	Patch int
}

// String renders the version as major.minor.patch.
func (v VersionInfo) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// ParseVersion extracts the first major.minor.patch token from output.
func ParseVersion(output string) (VersionInfo, bool) {
	m := versionPattern.FindStringSubmatch(output)
	if m == nil {
		return VersionInfo{}, false
	}

	var parts [3]int
	for i := range parts {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return VersionInfo{}, false
		}
		parts[i] = n
	}
	return VersionInfo{Major: parts[0], Minor: parts[1], Patch: parts[2]}, true
}
