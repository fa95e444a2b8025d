package datafile

import (
	"encoding/binary"

	"github.com/intellect4all/reldb/dberrors"
)

// headerSize is usedBytes(4) + nextPageID(4), both little-endian, matching
// the engine's bit-exact page header layout.
const headerSize = 8

// page is the in-memory view of one data-file page: a small header
// followed by a sequence of [len uint32 LE][payload] records, zero-padded
// to the page boundary.
type page struct {
	pageSize   int
	usedBytes  uint32
	nextPageID uint32
	records    [][]byte
}

func newPage(pageSize int) *page {
	return &page{pageSize: pageSize, usedBytes: headerSize, nextPageID: noNextPage}
}

const noNextPage = 0xFFFFFFFF

// freeSpace returns how many bytes remain before the page boundary.
func (p *page) freeSpace() int {
	return p.pageSize - int(p.usedBytes)
}

// canFit reports whether a record of the given encoded payload length
// (including its own 4-byte length prefix) fits in the remaining space.
func (p *page) canFit(payloadLen int) bool {
	return p.freeSpace() >= 4+payloadLen
}

// appendRecord stores payload and returns its slot index within the page.
func (p *page) appendRecord(payload []byte) (int, error) {
	if !p.canFit(len(payload)) {
		return 0, dberrors.State("page has no room for record")
	}
	p.records = append(p.records, payload)
	p.usedBytes += uint32(4 + len(payload))
	return len(p.records) - 1, nil
}

// marshal serializes the page into exactly pageSize bytes.
func (p *page) marshal() []byte {
	buf := make([]byte, p.pageSize)
	binary.LittleEndian.PutUint32(buf[0:4], p.usedBytes)
	binary.LittleEndian.PutUint32(buf[4:8], p.nextPageID)
	offset := headerSize
	for _, rec := range p.records {
		binary.LittleEndian.PutUint32(buf[offset:offset+4], uint32(len(rec)))
		offset += 4
		copy(buf[offset:offset+len(rec)], rec)
		offset += len(rec)
	}
	return buf
}

// unmarshalPage parses a raw page previously produced by marshal.
func unmarshalPage(buf []byte) *page {
	p := &page{pageSize: len(buf)}
	p.usedBytes = binary.LittleEndian.Uint32(buf[0:4])
	p.nextPageID = binary.LittleEndian.Uint32(buf[4:8])

	offset := headerSize
	for offset+4 <= int(p.usedBytes) {
		length := binary.LittleEndian.Uint32(buf[offset : offset+4])
		offset += 4
		if length == 0 || offset+int(length) > len(buf) {
			break
		}
		rec := make([]byte, length)
		copy(rec, buf[offset:offset+int(length)])
		p.records = append(p.records, rec)
		offset += int(length)
	}
	return p
}

// recordAt returns the raw payload bytes stored at slot.
func (p *page) recordAt(slot int) ([]byte, error) {
	if slot < 0 || slot >= len(p.records) {
		return nil, dberrors.NotFound("record slot out of range")
	}
	return p.records[slot], nil
}
