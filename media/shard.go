package media

import (
	"path"
	"strconv"
)

// shardWidth is the number of id digits per directory level
const shardWidth = 4

// ShardID splits the decimal form of id into groups of four digits, so that
// 666666 becomes ["6666", "66"] and no directory ever holds more than 10^4
// entries per level.
func ShardID(id uint) []string {
	s := strconv.FormatUint(uint64(id), 10)
	segments := make([]string, 0, len(s)/shardWidth+1)
	for len(s) > shardWidth {
		segments = append(segments, s[:shardWidth])
		s = s[shardWidth:]
	}
	return append(segments, s)
}

// ShardPath returns the slash separated relative directory for id
func ShardPath(id uint) string {
	return path.Join(ShardID(id)...)
}
