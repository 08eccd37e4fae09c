package storage

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/wellsgz/pktmon/internal/types"
)

// CSVSink writes each layer to its own CSV file.
type CSVSink struct {
	paths map[Layer]string

	mu     sync.Mutex
	tables map[Layer]*csvTable
}

// tableFile is the append-only file behind one table.
type tableFile interface {
	io.Writer
	Sync() error
	Close() error
}

type csvTable struct {
	path string
	file tableFile
}

// NewCSVSink creates a sink for the given table paths. Nothing is opened
// until Open is called.
func NewCSVSink(layer2, layer3, layer4 string) *CSVSink {
	return &CSVSink{
		paths: map[Layer]string{
			Layer2: layer2,
			Layer3: layer3,
			Layer4: layer4,
		},
	}
}

func headerFor(l Layer) []string {
	switch l {
	case Layer2:
		return Layer2Header
	case Layer3:
		return Layer3Header
	default:
		return Layer4Header
	}
}

// Open opens all three files for appending, writing the header row into
// any file that is new or empty.
func (s *CSVSink) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tables != nil {
		return errors.New("csv sink already open")
	}

	tables := make(map[Layer]*csvTable, 3)
	for _, l := range []Layer{Layer2, Layer3, Layer4} {
		t, err := openCSVTable(s.paths[l], headerFor(l))
		if err != nil {
			for _, opened := range tables {
				opened.file.Close()
			}
			return fmt.Errorf("opening %s table: %w", l, err)
		}
		tables[l] = t
	}
	s.tables = tables

	slog.Info("csv logs opened",
		"layer2", s.paths[Layer2],
		"layer3", s.paths[Layer3],
		"layer4", s.paths[Layer4])
	return nil
}

func openCSVTable(path string, header []string) (*csvTable, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	t := &csvTable{path: path, file: f}
	if info.Size() == 0 {
		if err := t.append(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing header: %w", err)
		}
	}
	return t, nil
}

// append writes one row and forces it to stable storage. Each row is
// encoded on its own, so a failed append leaves nothing buffered and the
// next row is attempted afresh.
func (t *csvTable) append(fields []string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(fields); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if _, err := t.file.Write(buf.Bytes()); err != nil {
		return err
	}
	return t.file.Sync()
}

// Write implements Sink.
func (s *CSVSink) Write(rec types.PacketRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tables == nil {
		return errors.New("csv sink not open")
	}

	var errs []error
	for _, r := range rows(rec) {
		t := s.tables[r.layer]
		if err := t.append(r.fields); err != nil {
			errs = append(errs, fmt.Errorf("appending to %s: %w", t.path, err))
		}
	}
	return errors.Join(errs...)
}

// Close implements Sink.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tables == nil {
		return nil
	}

	var errs []error
	for _, l := range []Layer{Layer2, Layer3, Layer4} {
		t := s.tables[l]
		if err := t.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", t.path, err))
		}
	}
	s.tables = nil

	slog.Info("csv logs closed")
	return errors.Join(errs...)
}
