package output

import (
	"fmt"
	"path/filepath"
	"strings"
)

const defaultExt = ".txt"

// ShardFilename derives the file for shard index out of total shards. A path
// without an extension gets ".txt"; with more than one shard "-<index>" is
// inserted before the extension.
func ShardFilename(path string, index, total int) string {
	if filepath.Ext(path) == "" {
		path += defaultExt
	}
	if total <= 1 {
		return path
	}

	dir, file := filepath.Split(path)
	ext := filepath.Ext(file)
	stem := strings.TrimSuffix(file, ext)
	name := fmt.Sprintf("%s-%d%s", stem, index, ext)
	if dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}
