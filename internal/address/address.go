// Package address derives the deterministic storage addresses of pools and
// stake positions.
package address

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

const (
	poolSeed     = "staking_pool"
	positionSeed = "stake_entry"
)

// Pool returns the address of the pool for asset.
func Pool(asset string) string {
	return derive([]byte(poolSeed), []byte(asset))
}

// Position returns the address of the owner's position at index in pool.
func Position(owner, pool string, index uint64) string {
	var idx [8]byte
	binary.LittleEndian.PutUint64(idx[:], index)
	return derive([]byte(positionSeed), []byte(owner), []byte(pool), idx[:])
}

// Matches reports whether addr is the address of (owner, pool, index).
func Matches(addr, owner, pool string, index uint64) bool {
	return addr == Position(owner, pool, index)
}

// derive hashes length-prefixed seeds so that no two seed lists collide.
func derive(seeds ...[]byte) string {
	h, _ := blake2b.New256(nil)
	var n [4]byte
	for _, s := range seeds {
		binary.LittleEndian.PutUint32(n[:], uint32(len(s)))
		h.Write(n[:])
		h.Write(s)
	}
	return hex.EncodeToString(h.Sum(nil))
}
