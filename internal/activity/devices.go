package activity

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unsafe"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// DefaultDeviceDir is where the kernel exposes input event devices.
const DefaultDeviceDir = "/dev/input"

// DefaultDeviceNames is the builtin allow-list: the Framework laptop's
// internal keyboard and touchpad. USB devices are deliberately absent, since
// the daemon does not support hot-plug and an unplugged device would make the
// poll set unreliable.
var DefaultDeviceNames = AllowList{
	"AT Translated Set 2 keyboard",
	"PIXA3854:00 093A:0274 Touchpad",
}

// AllowList is the set of input device names the daemon listens on.
type AllowList []string

// Contains reports whether name is on the list.
func (l AllowList) Contains(name string) bool {
	for _, allowed := range l {
		if name == allowed {
			return true
		}
	}
	return false
}

// InputID identifies an input device to the kernel.
type InputID struct {
	BusType uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

func (id InputID) String() string {
	return fmt.Sprintf("bus %#x vendor %#x product %#x version %#x", id.BusType, id.Vendor, id.Product, id.Version)
}

// Device is one opened input device. The file descriptor is owned by the
// Monitor for the process lifetime.
type Device struct {
	Name string
	Path string
	ID   InputID
	fd   int
}

// FindDevices scans dir for event devices and opens the ones whose name is on
// the allow-list. Devices that cannot be opened (e.g. for lack of permission)
// are skipped with a warning.
func FindDevices(dir string, names AllowList) ([]Device, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	var devices []Device
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "event") {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		device, err := openDevice(path)
		if err != nil {
			log.WithError(err).WithField("path", path).Warning("skipping input device")
			continue
		}

		if !names.Contains(device.Name) {
			_ = unix.Close(device.fd)
			continue
		}

		log.WithFields(log.Fields{"name": device.Name, "path": device.Path, "id": device.ID.String()}).Info("got device")
		devices = append(devices, device)
	}
	return devices, nil
}

func openDevice(path string) (Device, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return Device{}, fmt.Errorf("open: %w", err)
	}

	name, err := deviceName(fd)
	if err != nil {
		_ = unix.Close(fd)
		return Device{}, fmt.Errorf("device name: %w", err)
	}
	id, err := deviceID(fd)
	if err != nil {
		_ = unix.Close(fd)
		return Device{}, fmt.Errorf("device id: %w", err)
	}

	return Device{Name: name, Path: path, ID: id, fd: fd}, nil
}

// Linux _IOC encoding, as used by the EVIOCG* ioctls.
const (
	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30

	iocRead = 2
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<iocDirShift | size<<iocSizeShift | typ<<iocTypeShift | nr<<iocNRShift
}

// deviceName reads the device name via EVIOCGNAME.
func deviceName(fd int) (string, error) {
	var buf [256]byte
	// EVIOCGNAME(len) = _IOC(_IOC_READ, 'E', 0x06, len)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), ioc(iocRead, 'E', 0x06, uintptr(len(buf))), uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return "", errno
	}
	name := buf[:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return string(name), nil
}

// deviceID reads the bus/vendor/product/version tuple via EVIOCGID.
func deviceID(fd int) (InputID, error) {
	var id InputID
	// EVIOCGID = _IOR('E', 0x02, struct input_id)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), ioc(iocRead, 'E', 0x02, unsafe.Sizeof(id)), uintptr(unsafe.Pointer(&id)))
	if errno != 0 {
		return InputID{}, errno
	}
	return id, nil
}
