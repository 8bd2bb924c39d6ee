package ec

import (
	"encoding"
	"encoding/binary"
	"fmt"
	"unsafe"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// DefaultPath is where the kernel's cros_ec driver exposes the embedded controller.
const DefaultPath = "/dev/cros_ec"

// Request is one encoded command for the embedded controller.
type Request interface {
	// Command returns the command's opcode and version.
	Command() (opcode, version uint32)
	encoding.BinaryMarshaler
}

// Response decodes the embedded controller's reply to a Request.
type Response interface {
	// Size returns the exact number of bytes the controller must return for
	// the command. A reply of any other length is a protocol violation.
	Size() int
	encoding.BinaryUnmarshaler
}

// Commander performs one synchronous command exchange with the embedded
// controller. Implemented by EmbeddedController; fakes implement it in tests.
type Commander interface {
	Command(req Request, rsp Response) error
}

// EmbeddedController owns the handle to the EC character device. It is not
// safe for concurrent use: the EC processes one command at a time, and the
// daemon holds exactly one EmbeddedController for its lifetime.
type EmbeddedController struct {
	fd int
}

var _ Commander = &EmbeddedController{}

// Open opens the embedded controller device at path.
func Open(path string) (*EmbeddedController, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &EmbeddedController{fd: fd}, nil
}

// Close releases the EC device handle.
func (e *EmbeddedController) Close() error {
	return unix.Close(e.fd)
}

// cros_ec_command header: version, command, outsize, insize, result, all
// little-endian uint32, followed by the payload buffer.
const headerSize = 20

// iocXcmd is CROS_EC_DEV_IOCXCMD = _IOWR(0xEC, 0, struct cros_ec_command).
const iocXcmd = ((iocRead | iocWrite) << iocDirShift) | (headerSize << iocSizeShift) | (0xEC << iocTypeShift)

// Linux _IOC encoding.
const (
	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30

	iocWrite = 1
	iocRead  = 2
)

// Command sends req to the EC and decodes the reply into rsp. It blocks until
// the exchange completes and performs no retries. The returned error is a
// *TransportError if the ioctl itself failed, a *StatusError if the EC
// rejected the command, or a *ProtocolError if the reply size does not match
// the command's declared response layout.
func (e *EmbeddedController) Command(req Request, rsp Response) error {
	opcode, version := req.Command()
	params, err := req.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode command 0x%04x: %w", opcode, err)
	}
	insize := rsp.Size()

	buf := make([]byte, headerSize+max(len(params), insize))
	binary.LittleEndian.PutUint32(buf[0:], version)
	binary.LittleEndian.PutUint32(buf[4:], opcode)
	binary.LittleEndian.PutUint32(buf[8:], uint32(len(params)))
	binary.LittleEndian.PutUint32(buf[12:], uint32(insize))
	copy(buf[headerSize:], params)

	n, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(e.fd), iocXcmd, uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return &TransportError{Op: "ioctl", Err: errno}
	}
	if status := Status(binary.LittleEndian.Uint32(buf[16:])); status != StatusSuccess {
		return &StatusError{Command: opcode, Status: status}
	}
	if int(n) != insize {
		return &ProtocolError{Command: opcode, Got: int(n), Want: insize}
	}

	log.WithFields(log.Fields{"command": fmt.Sprintf("0x%04x", opcode), "outsize": len(params), "insize": insize}).Trace("EC command")
	return rsp.UnmarshalBinary(buf[headerSize : headerSize+insize])
}
