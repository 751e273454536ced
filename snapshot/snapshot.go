// Package snapshot flattens containers into portable images. A container
// reports the regions it owns (control block, arrays, nodes, heap
// payloads); the capture reads those bytes, stamps the image with an id
// and an xxhash64 checksum, and encodes it with msgpack. A restored image
// is a fresh address space holding the same bytes at the same addresses,
// so any handle constructor can reinterpret it.
package snapshot

import (
	"encoding/binary"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/memscape/eastl"
	"github.com/memscape/eastl/errors"
	"github.com/memscape/eastl/mem"
)

// Source is any container handle that can enumerate the memory it owns.
type Source interface {
	Addr() uint64
	Regions() ([]eastl.Region, error)
}

// Block is one contiguous span of captured memory.
type Block struct {
	Addr uint64 `msgpack:"addr"`
	Data []byte `msgpack:"data"`
}

// Image is a captured container: every block it owns, addressed as in the
// source memory.
type Image struct {
	ID         string    `msgpack:"id"`
	Family     string    `msgpack:"family"`
	PtrSize    uint32    `msgpack:"ptr_size"`
	Addr       uint64    `msgpack:"addr"`
	Blocks     []Block   `msgpack:"blocks"`
	Checksum   uint64    `msgpack:"checksum"`
	CapturedAt time.Time `msgpack:"captured_at"`
}

// Capture flattens src into an image. Overlapping regions (a fixed
// container's inline buffer inside its control block, shared node spans)
// coalesce into single blocks.
func Capture(view *mem.View, family string, src Source) (*Image, error) {
	regions, err := src.Regions()
	if err != nil {
		return nil, err
	}
	merged := mergeRegions(regions)

	img := &Image{
		ID:         uuid.NewString(),
		Family:     family,
		PtrSize:    view.PtrSize,
		Addr:       src.Addr(),
		Blocks:     make([]Block, 0, len(merged)),
		CapturedAt: time.Now().UTC(),
	}
	for _, r := range merged {
		data, err := view.Mem.Read(r.Addr, r.Size)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseExport, errors.KindOutOfBounds, err,
				"region escapes the source memory")
		}
		img.Blocks = append(img.Blocks, Block{Addr: r.Addr, Data: data})
	}
	img.Checksum = img.checksum()
	return img, nil
}

// mergeRegions sorts by address and coalesces overlapping or adjacent
// spans.
func mergeRegions(regions []eastl.Region) []eastl.Region {
	live := regions[:0]
	for _, r := range regions {
		if r.Size > 0 {
			live = append(live, r)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].Addr < live[j].Addr })

	out := make([]eastl.Region, 0, len(live))
	for _, r := range live {
		if n := len(out); n > 0 && r.Addr <= out[n-1].Addr+out[n-1].Size {
			if end := r.Addr + r.Size; end > out[n-1].Addr+out[n-1].Size {
				out[n-1].Size = end - out[n-1].Addr
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// checksum digests the identity fields and every block. The id and capture
// time stay outside the digest so re-captures of identical bytes compare
// equal.
func (img *Image) checksum() uint64 {
	var d xxhash.Digest
	var w [8]byte

	binary.LittleEndian.PutUint32(w[:4], img.PtrSize)
	d.Write(w[:4])
	binary.LittleEndian.PutUint64(w[:], img.Addr)
	d.Write(w[:])
	d.WriteString(img.Family)

	for _, b := range img.Blocks {
		binary.LittleEndian.PutUint64(w[:], b.Addr)
		d.Write(w[:])
		binary.LittleEndian.PutUint64(w[:], uint64(len(b.Data)))
		d.Write(w[:])
		d.Write(b.Data)
	}
	return d.Sum64()
}

// Verify recomputes the checksum against the recorded one.
func (img *Image) Verify() error {
	if got := img.checksum(); got != img.Checksum {
		return errors.New(errors.PhaseExport, errors.KindCorruptLayout).
			Addr(img.Addr).
			Detail("checksum mismatch: recorded %#x, computed %#x", img.Checksum, got).
			Build()
	}
	return nil
}

// Restore materializes the image into a fresh buffer, each block at its
// original address. The returned view is ready for the container's At
// constructor.
func (img *Image) Restore() (*mem.View, error) {
	if err := img.Verify(); err != nil {
		return nil, err
	}
	extent := img.Addr
	for _, b := range img.Blocks {
		if end := b.Addr + uint64(len(b.Data)); end > extent {
			extent = end
		}
	}
	view := mem.NewView(mem.NewBuffer(extent+1), img.PtrSize)
	for _, b := range img.Blocks {
		if err := view.Mem.Write(b.Addr, b.Data); err != nil {
			return nil, err
		}
	}
	return view, nil
}

// Encode serializes the image.
func Encode(img *Image) ([]byte, error) {
	return msgpack.Marshal(img)
}

// Decode deserializes an image and verifies its checksum.
func Decode(data []byte) (*Image, error) {
	var img Image
	if err := msgpack.Unmarshal(data, &img); err != nil {
		return nil, errors.Wrap(errors.PhaseExport, errors.KindCorruptLayout, err,
			"undecodable snapshot")
	}
	if err := img.Verify(); err != nil {
		return nil, err
	}
	return &img, nil
}
