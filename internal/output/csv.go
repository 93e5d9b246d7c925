package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"isingsim/internal/ising"
)

// Header returns the CSV header for a protocol. The aE column (energy per
// site) is only added for phase and hysteresis.
func Header(p ising.Protocol, energyPerSite bool) []string {
	var h []string
	switch p {
	case ising.Phase:
		h = []string{"t", "n", "T", "M", "E"}
	case ising.Hysteresis:
		h = []string{"t", "n", "H", "M", "E"}
	case ising.Relaxation:
		return []string{"T", "t", "η"}
	}
	if energyPerSite {
		h = append(h, "aE")
	}
	return h
}

// DataWriter streams records as CSV rows. It implements ising.Sink.
type DataWriter struct {
	w        *csv.Writer
	c        io.Closer
	protocol ising.Protocol
	perSite  bool
	sites    float64
	rows     int
}

// NewDataWriter writes the header for p to w and returns a writer for its
// rows. sites is the lattice size N² used for the aE column.
func NewDataWriter(w io.Writer, p ising.Protocol, sites int, energyPerSite bool) (*DataWriter, error) {
	d := &DataWriter{
		w:        csv.NewWriter(w),
		protocol: p,
		perSite:  energyPerSite && p != ising.Relaxation,
		sites:    float64(sites),
	}
	if err := d.w.Write(Header(p, d.perSite)); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return d, nil
}

// CreateData creates path (and its parent directories) and returns a
// DataWriter that closes the file on Close.
func CreateData(path string, p ising.Protocol, sites int, energyPerSite bool) (*DataWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create data file: %w", err)
	}
	d, err := NewDataWriter(f, p, sites, energyPerSite)
	if err != nil {
		f.Close()
		return nil, err
	}
	d.c = f
	return d, nil
}

// Write appends one row.
func (d *DataWriter) Write(r ising.Record) error {
	var row []string
	switch d.protocol {
	case ising.Relaxation:
		row = []string{num(r.Param), strconv.FormatUint(r.Time, 10), num(r.Eta)}
	default:
		row = []string{
			strconv.FormatUint(r.Time, 10),
			strconv.FormatUint(r.Sweeps, 10),
			num(r.Param),
			num(r.Magnetization),
			num(r.Energy),
		}
		if d.perSite {
			row = append(row, num(ising.Round(r.Energy/d.sites)))
		}
	}
	if err := d.w.Write(row); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	d.rows++
	return nil
}

// Rows returns the number of rows written, excluding the header.
func (d *DataWriter) Rows() int { return d.rows }

// Flush writes buffered rows to the underlying writer.
func (d *DataWriter) Flush() error {
	d.w.Flush()
	return d.w.Error()
}

// Close flushes and closes the underlying file, if any.
func (d *DataWriter) Close() error {
	err := d.Flush()
	if d.c != nil {
		if cerr := d.c.Close(); err == nil {
			err = cerr
		}
		d.c = nil
	}
	return err
}
