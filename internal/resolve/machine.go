package resolve

import (
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v4/host"
)

// Returns the host's machine identifier.
//
// The identifier is the machine field of uname(2) ("x86_64", "armv7l",
// "aarch64", ...), exactly as a shell would see it from "uname -m". No
// normalization is applied: the architecture table speaks raw values.
func DetectMachine() (string, error) {
	machine, err := host.KernelArch()
	if err != nil {
		return "", fmt.Errorf("detect machine identifier: %w", err)
	}

	machine = strings.TrimSpace(machine)
	if machine == "" {
		return "", fmt.Errorf("detect machine identifier: empty uname response")
	}

	return machine, nil
}
