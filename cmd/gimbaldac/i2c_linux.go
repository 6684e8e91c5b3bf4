//go:build linux

package main

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// i2cSlave is the I2C_SLAVE ioctl request from <linux/i2c-dev.h>.
const i2cSlave = 0x0703

// linuxI2C is an I2C bus backed by /dev/i2c-N. It satisfies drivers.I2C.
type linuxI2C struct {
	mu    sync.Mutex
	f     *os.File
	addr  uint16
	bound bool
}

// openI2CBus opens /dev/i2c-<bus>.
func openI2CBus(bus int) (*linuxI2C, error) {
	path := fmt.Sprintf("/dev/i2c-%d", bus)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &linuxI2C{f: f}, nil
}

// Tx writes w to the device at addr, then reads len(r) bytes into r.
func (b *linuxI2C) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.bound || b.addr != addr {
		if err := unix.IoctlSetInt(int(b.f.Fd()), i2cSlave, int(addr)); err != nil {
			return fmt.Errorf("select i2c address 0x%02x: %w", addr, err)
		}
		b.addr, b.bound = addr, true
	}

	if len(w) > 0 {
		n, err := b.f.Write(w)
		if err != nil {
			return fmt.Errorf("i2c write: %w", err)
		}
		if n != len(w) {
			return fmt.Errorf("i2c short write: %d of %d bytes", n, len(w))
		}
	}
	if len(r) > 0 {
		n, err := b.f.Read(r)
		if err != nil {
			return fmt.Errorf("i2c read: %w", err)
		}
		if n != len(r) {
			return fmt.Errorf("i2c short read: %d of %d bytes", n, len(r))
		}
	}
	return nil
}

func (b *linuxI2C) Close() error {
	return b.f.Close()
}
