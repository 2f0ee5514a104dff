// stand for bytes helper
package bx

import "encoding/binary"

var LE = binary.LittleEndian

func U64(b []byte) uint64       { return LE.Uint64(b) }
func PutU64(b []byte, v uint64) { LE.PutUint64(b, v) }

func U64At(b []byte, off int) uint64       { return U64(b[off:]) }
func PutU64At(b []byte, off int, v uint64) { PutU64(b[off:], v) }
