package inotify

import (
	"strconv"
	"strings"
)

// IN_MASK_CREATE appeared in Linux 4.19.
const (
	maskCreateMajor = 4
	maskCreateMinor = 19
)

func capabilitiesFor(release string) Capabilities {
	c := Capabilities{Kernel: release}
	major, minor, ok := parseKernelRelease(release)
	if ok {
		c.MaskCreate = major > maskCreateMajor ||
			(major == maskCreateMajor && minor >= maskCreateMinor)
	}
	return c
}

// parseKernelRelease extracts major and minor from a uname release such as
// "6.8.0-45-generic" or "4.19.0".
func parseKernelRelease(release string) (major, minor int, ok bool) {
	parts := strings.SplitN(release, ".", 3)
	if len(parts) < 2 {
		return 0, 0, false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	minorDigits := parts[1]
	if i := strings.IndexFunc(minorDigits, func(r rune) bool { return r < '0' || r > '9' }); i >= 0 {
		minorDigits = minorDigits[:i]
	}
	minor, err = strconv.Atoi(minorDigits)
	if err != nil {
		return 0, 0, false
	}
	return major, minor, true
}
