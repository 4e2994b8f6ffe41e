package device

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/tarm/serial"
)

//ErrSourceUnavailable is returned when the byte source cannot be opened.
var ErrSourceUnavailable = errors.New("source unavailable")

//Opener opens the byte source. It is called again after the device fails.
type Opener func() (io.ReadCloser, error)

//IsSerial reports whether path names a serial device.
func IsSerial(path string) bool {
	return strings.HasPrefix(path, "/dev/tty")
}

//Open opens a serial device, a regular file or named pipe, or stdin for "-".
func Open(path string, baudRate int, readTimeout time.Duration) (io.ReadCloser, error) {
	switch {
	case path == "-":
		return os.Stdin, nil
	case IsSerial(path):
		config := &serial.Config{
			Name:        path,
			Baud:        baudRate,
			ReadTimeout: readTimeout,
		}
		port, err := serial.OpenPort(config)
		if err != nil {
			return nil, fmt.Errorf("%w: serial %s: %s", ErrSourceUnavailable, path, err)
		}
		return port, nil
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, err)
		}
		return f, nil
	}
}

//SerialOpener reopens path with Open. Only serial devices are reopened;
//for any other source it returns nil and the stream ends at EOF.
func SerialOpener(path string, baudRate int, readTimeout time.Duration) Opener {
	if !IsSerial(path) {
		return nil
	}
	return func() (io.ReadCloser, error) {
		return Open(path, baudRate, readTimeout)
	}
}
