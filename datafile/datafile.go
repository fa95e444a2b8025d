// Package datafile implements the paged heap file that backs a table: rows
// are appended to the last page when room allows, or to a freshly appended
// page otherwise, and are addressed by a stable (page, slot) RID.
package datafile

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/intellect4all/reldb/dberrors"
	"github.com/intellect4all/reldb/disk"
	"github.com/intellect4all/reldb/record"
)

// RID identifies a row's physical location: the page it lives on and its
// slot within that page's record list.
type RID struct {
	PageID int
	Slot   int
}

// DocID renders the RID in the "{page}_{slot}" form used as a document
// identifier by the inverted index.
func (r RID) DocID() string { return fmt.Sprintf("%d_%d", r.PageID, r.Slot) }

// ParseDocID parses a DocID string back into a RID.
func ParseDocID(s string) (RID, error) {
	var r RID
	if _, err := fmt.Sscanf(s, "%d_%d", &r.PageID, &r.Slot); err != nil {
		return RID{}, dberrors.Validation("malformed doc id").WithDetail("docID", s)
	}
	return r, nil
}

// Config configures a File.
type Config struct {
	DataDir  string
	FileName string
	PageSize int
	Logger   *zap.SugaredLogger
}

// DefaultConfig returns sensible defaults rooted at dataDir/heap.dat.
func DefaultConfig(dataDir string) Config {
	return Config{DataDir: dataDir, FileName: "heap.dat", PageSize: disk.DefaultPageSize}
}

// File is the clustered heap of row pages for one table.
type File struct {
	mgr    *disk.Manager
	codec  *record.Codec
	log    *zap.SugaredLogger
}

// Open opens or creates the heap file described by cfg for the given
// column order, used to encode/decode rows through the record codec.
func Open(cfg Config, columns []record.ColumnSpec) (*File, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	dmCfg := disk.Config{Path: cfg.DataDir + "/" + cfg.FileName, PageSize: cfg.PageSize, Logger: log}
	if dmCfg.Path == "" {
		return nil, dberrors.Validation("data dir required")
	}
	mgr, err := disk.Open(dmCfg)
	if err != nil {
		return nil, err
	}
	return &File{mgr: mgr, codec: record.NewCodec(columns), log: log}, nil
}

func (f *File) PageSize() int { return f.mgr.PageSize() }

// PageCount exposes the underlying page count, used by index builders that
// perform a full heap scan.
func (f *File) PageCount() (int, error) { return f.mgr.PageCount() }

// InsertClustered appends row to the last page if it fits, else allocates a
// new page, mirroring the reference DataFile.insert_clustered fast path.
func (f *File) InsertClustered(row record.Values) (RID, error) {
	payload, err := f.codec.Encode(row)
	if err != nil {
		return RID{}, err
	}

	n, err := f.mgr.PageCount()
	if err != nil {
		return RID{}, err
	}

	if n > 0 {
		lastID := n - 1
		buf, err := f.mgr.ReadPage(lastID)
		if err != nil {
			return RID{}, err
		}
		pg := unmarshalPage(buf)
		if pg.canFit(len(payload)) {
			slot, err := pg.appendRecord(payload)
			if err != nil {
				return RID{}, err
			}
			if err := f.mgr.WritePage(lastID, pg.marshal()); err != nil {
				return RID{}, err
			}
			return RID{PageID: lastID, Slot: slot}, nil
		}
	}

	pg := newPage(f.mgr.PageSize())
	slot, err := pg.appendRecord(payload)
	if err != nil {
		return RID{}, err
	}
	pageID, err := f.mgr.AppendPage(pg.marshal())
	if err != nil {
		return RID{}, err
	}
	return RID{PageID: pageID, Slot: slot}, nil
}

// ReadRecord fetches and decodes the row at rid.
func (f *File) ReadRecord(rid RID) (record.Values, error) {
	buf, err := f.mgr.ReadPage(rid.PageID)
	if err != nil {
		return nil, err
	}
	pg := unmarshalPage(buf)
	payload, err := pg.recordAt(rid.Slot)
	if err != nil {
		return nil, err
	}
	return f.codec.Decode(payload)
}

// ScanPage decodes every live record on pageID, used by full-heap index
// builders. It returns the records paired with their slot index.
func (f *File) ScanPage(pageID int) ([]record.Values, error) {
	buf, err := f.mgr.ReadPage(pageID)
	if err != nil {
		return nil, err
	}
	pg := unmarshalPage(buf)
	out := make([]record.Values, 0, len(pg.records))
	for _, raw := range pg.records {
		v, err := f.codec.Decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Close flushes and closes the backing disk manager.
func (f *File) Close() error { return f.mgr.Close() }
