// Package maploader is the filesystem storage abstraction for map
// files, §3's "maps/<name>.map" convention. It is intentionally the
// thinnest possible implementation of instance.MapLoader: parsing and
// validating the DDNet/Teeworlds map file format itself is out of core
// (§1), so this just reads bytes and checksums them.
package maploader

import (
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"

	"arenaserver/internal/mapxfer"
)

// FS loads maps from a directory of "<name>.map" files.
type FS struct {
	Dir string
}

// New returns a loader rooted at dir.
func New(dir string) *FS {
	return &FS{Dir: dir}
}

// LoadMap reads dir/name.map and computes its CRC, satisfying
// instance.MapLoader.
func (f *FS) LoadMap(name string) (*mapxfer.Map, error) {
	path := filepath.Join(f.Dir, fmt.Sprintf("%s.map", name))
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("maploader: %w", err)
	}
	return &mapxfer.Map{
		Name:  name,
		CRC:   crc32.ChecksumIEEE(bytes),
		Size:  int32(len(bytes)),
		Bytes: bytes,
	}, nil
}
