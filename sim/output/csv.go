package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/siafu-sim/siafu/sim/flat"
	"github.com/siafu-sim/siafu/sim/world"
)

// CSVConfig configures a CSVPrinter.
type CSVConfig struct {
	Path string
	// Interval is measured in simulated time between snapshots.
	Interval time.Duration
	// KeepHistory appends every snapshot. Otherwise the file holds only the
	// latest one, replaced atomically.
	KeepHistory bool
}

// CSVPrinter writes one row per agent per snapshot:
//
//	time,entityID,position,atDestination,<info fields...>,<overlays...>
//
// Cell values are FlatDatum strings. The column set is fixed by the first
// snapshot.
type CSVPrinter struct {
	cfg      CSVConfig
	header   []string
	infoKeys []string

	file    *os.File
	w       *csv.Writer
	last    time.Time
	written bool
	rows    int64
}

func NewCSVPrinter(cfg CSVConfig) (*CSVPrinter, error) {
	if cfg.Path == "" {
		return nil, errors.New("output: csv path not set")
	}
	if cfg.Interval < 0 {
		return nil, fmt.Errorf("output: negative csv interval %s", cfg.Interval)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}
	return &CSVPrinter{cfg: cfg}, nil
}

// Rows counts the data rows written so far.
func (p *CSVPrinter) Rows() int64 { return p.rows }

func (p *CSVPrinter) IterationConcluded(w *world.World) error {
	w.RLock()
	defer w.RUnlock()

	now := w.Clock().Now()
	if p.written && now.Sub(p.last) < p.cfg.Interval {
		return nil
	}
	if p.header == nil {
		p.buildHeader(w)
	}
	rows := p.snapshot(w, now)

	var err error
	if p.cfg.KeepHistory {
		err = p.appendRows(rows)
	} else {
		err = p.replaceRows(rows)
	}
	if err != nil {
		return fmt.Errorf("output: writing %s: %w", p.cfg.Path, err)
	}
	p.last, p.written = now, true
	p.rows += int64(len(rows))
	logrus.Debugf("[csv] %d rows at %s", len(rows), now.Format(time.RFC3339))
	return nil
}

func (p *CSVPrinter) buildHeader(w *world.World) {
	seen := make(map[string]bool)
	for _, a := range w.Agents() {
		for _, k := range a.InfoKeys() {
			if !seen[k] {
				seen[k] = true
				p.infoKeys = append(p.infoKeys, k)
			}
		}
	}
	slices.Sort(p.infoKeys)
	p.header = append([]string{"time", "entityID", "position", "atDestination"}, p.infoKeys...)
	p.header = append(p.header, w.OverlayNames()...)
}

func (p *CSVPrinter) snapshot(w *world.World, now time.Time) [][]string {
	rows := make([][]string, 0, len(w.Agents()))
	for _, a := range w.Agents() {
		row := []string{
			now.Format(time.RFC3339),
			a.Name(),
			a.Position().Flatten(),
			flat.BooleanType{Value: a.AtDestination()}.Flatten(),
		}
		for _, k := range p.infoKeys {
			if v, ok := a.Info(k); ok {
				row = append(row, v.Flatten())
			} else {
				row = append(row, "")
			}
		}
		for _, o := range w.Overlays() {
			row = append(row, o.ValueAt(a.Position()).Flatten())
		}
		rows = append(rows, row)
	}
	return rows
}

func (p *CSVPrinter) appendRows(rows [][]string) error {
	if p.file == nil {
		f, err := os.OpenFile(p.cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		p.file, p.w = f, csv.NewWriter(f)
		if fi, err := f.Stat(); err == nil && fi.Size() == 0 {
			if err := p.w.Write(p.header); err != nil {
				return err
			}
		}
	}
	if err := p.w.WriteAll(rows); err != nil {
		return err
	}
	return p.file.Sync()
}

func (p *CSVPrinter) replaceRows(rows [][]string) error {
	tmp := p.cfg.Path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(f)
	err = cw.Write(p.header)
	if err == nil {
		err = cw.WriteAll(rows)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, p.cfg.Path)
}

func (p *CSVPrinter) Cleanup() error {
	if p.file == nil {
		return nil
	}
	p.w.Flush()
	err := errors.Join(p.w.Error(), p.file.Close())
	p.file, p.w = nil, nil
	return err
}
