package memory

import (
	"encoding/gob"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/vecora/vecora/distance"
	"github.com/vecora/vecora/metadata"
	"github.com/vecora/vecora/model"
)

// snapshotVersion guards the dump format. Bump on incompatible changes.
const snapshotVersion = 1

type snapshotHeader struct {
	Version    int
	Dim        int
	Metric     distance.Metric
	MaxVersion uint64
	Count      int
}

type snapshotPoint struct {
	ID      model.PointID
	Vector  []float32
	Payload metadata.Document
	Version uint64
}

// WriteTo dumps the live contents of the segment as a zstd-compressed
// stream. Tombstones are not persisted; a restored segment starts with a
// clean deletion history.
func (s *Segment) WriteTo(w io.Writer) (err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := zw.Close(); err == nil {
			err = cerr
		}
	}()

	enc := gob.NewEncoder(zw)
	header := snapshotHeader{
		Version:    snapshotVersion,
		Dim:        s.dim,
		Metric:     s.metric,
		MaxVersion: s.maxVersion,
		Count:      len(s.points),
	}
	if err := enc.Encode(header); err != nil {
		return err
	}

	for id, rec := range s.points {
		p := snapshotPoint{
			ID:      id,
			Vector:  rec.vector,
			Payload: rec.payload,
			Version: rec.version,
		}
		if err := enc.Encode(p); err != nil {
			return err
		}
	}
	return nil
}

// Load restores a segment from a snapshot stream written by WriteTo.
func Load(r io.Reader) (*Segment, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	dec := gob.NewDecoder(zr)
	var header snapshotHeader
	if err := dec.Decode(&header); err != nil {
		return nil, err
	}
	if header.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version: %d", header.Version)
	}

	s, err := New(header.Dim, header.Metric)
	if err != nil {
		return nil, err
	}
	for i := 0; i < header.Count; i++ {
		var p snapshotPoint
		if err := dec.Decode(&p); err != nil {
			return nil, err
		}
		s.points[p.ID] = record{
			vector:  p.Vector,
			payload: p.Payload,
			version: p.Version,
		}
		s.live.Add(uint64(p.ID))
	}
	s.maxVersion = header.MaxVersion
	return s, nil
}
