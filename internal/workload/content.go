package workload

import (
	"github.com/cespare/xxhash/v2"

	"github.com/tuannm99/novabuf/internal/alias/bx"
	"github.com/tuannm99/novabuf/internal/storage"
)

// Stamp fills page with content derived from its page number and how many
// times it has been written. Version 0 is the all-zero page.
func Stamp(page []byte, pageNum int, version uint64) {
	if version == 0 {
		clear(page)
		return
	}
	bx.PutU64At(page, 0, uint64(pageNum))
	bx.PutU64At(page, 8, version)
	seed := xxhash.Sum64(page[0:16])
	for off := 16; off+8 <= len(page); off += 8 {
		bx.PutU64At(page, off, seed)
		seed = seed*6364136223846793005 + 1442695040888963407
	}
}

// Version reads back the write count stored by Stamp.
func Version(page []byte) uint64 {
	return bx.U64At(page, 8)
}

// Digest is the xxhash of the page content Stamp produces.
func Digest(pageNum int, version uint64) uint64 {
	buf := make([]byte, storage.PageSize)
	Stamp(buf, pageNum, version)
	return xxhash.Sum64(buf)
}
