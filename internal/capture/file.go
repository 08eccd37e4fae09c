package capture

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// FileSource replays frames from a pcap file.
type FileSource struct {
	path   string
	file   *os.File
	reader *pcapgo.Reader
	mu     sync.Mutex
}

// OpenFile opens a pcap capture file for replay. Only Ethernet captures
// are accepted.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening capture file: %w", err)
	}

	r, err := pcapgo.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("reading pcap header from %s: %w", path, err)
	}

	if lt := r.LinkType(); lt != layers.LinkTypeEthernet {
		f.Close()
		return nil, fmt.Errorf("unsupported link type %s in %s", lt, path)
	}

	return &FileSource{path: path, file: f, reader: r}, nil
}

// NextFrame implements Source. It returns io.EOF after the last frame.
func (s *FileSource) NextFrame(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reader == nil {
		return nil, ErrClosed
	}

	data, ci, err := s.reader.ReadPacketData()
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}

	return &Frame{Timestamp: ci.Timestamp, Data: data}, nil
}

// Close closes the underlying file. It is safe to call more than once.
func (s *FileSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.reader = nil
	return err
}
