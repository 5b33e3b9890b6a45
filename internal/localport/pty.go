package localport

import (
	"errors"
	"fmt"
	"os"

	"github.com/creack/pty"

	"git2.jad.ru/MeterRS485/rfc2217-client/internal/comport"
)

// Pty is a pseudo terminal. The bridge holds the master side, clients
// open the slave by Name.
type Pty struct {
	master, slave *os.File
}

// OpenPty creates a pty with the slave side in raw mode.
func OpenPty() (*Pty, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("open pty: %w", err)
	}

	if err := makeRaw(slave); err != nil {
		master.Close()
		slave.Close()
		return nil, fmt.Errorf("raw mode: %w", err)
	}

	return &Pty{master: master, slave: slave}, nil
}

// Name returns the slave device path.
func (p *Pty) Name() string {
	return p.slave.Name()
}

func (p *Pty) Read(b []byte) (int, error) {
	return p.master.Read(b)
}

func (p *Pty) Write(b []byte) (int, error) {
	return p.master.Write(b)
}

// SetParameters is a no-op: a pty has no line speed.
func (p *Pty) SetParameters(comport.Parameters) error {
	return nil
}

func (p *Pty) Close() error {
	return errors.Join(p.master.Close(), p.slave.Close())
}
