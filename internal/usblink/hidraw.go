package usblink

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// hidrawForUSB finds the /dev/hidrawN node backing a given USB bus/address,
// adapted from the teacher driver's hidraw.go (same sysfs-walk technique,
// generalized off the package-main io/ioutil call sites to os.ReadDir).
func hidrawForUSB(targetBus, targetAddr int) (string, error) {
	const base = "/sys/class/hidraw"
	entries, err := os.ReadDir(base)
	if err != nil {
		return "", fmt.Errorf("usblink: reading %s: %w", base, err)
	}

	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "hidraw") {
			continue
		}
		devPath := filepath.Join(base, entry.Name(), "device")
		if matchesUSBDevice(devPath, targetBus, targetAddr) {
			return "/dev/" + entry.Name(), nil
		}
	}
	return "", fmt.Errorf("usblink: no hidraw device found for USB bus %d addr %d", targetBus, targetAddr)
}

// matchesUSBDevice walks up the sysfs tree looking for busnum/devnum files
// matching the target USB identity.
func matchesUSBDevice(startPath string, targetBus, targetAddr int) bool {
	realPath, err := filepath.EvalSymlinks(startPath)
	if err != nil {
		return false
	}

	dir := realPath
	for i := 0; i < 6; i++ {
		busFile := filepath.Join(dir, "busnum")
		devFile := filepath.Join(dir, "devnum")
		if fileExists(busFile) && fileExists(devFile) {
			bus, _ := readIntFile(busFile)
			addr, _ := readIntFile(devFile)
			return bus == targetBus && addr == targetAddr
		}
		dir = filepath.Clean(filepath.Join(dir, ".."))
		if dir == "/" || dir == "." {
			break
		}
	}
	return false
}

func readIntFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
