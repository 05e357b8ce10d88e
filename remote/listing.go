package remote

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/albanobattistella/eOVPN/common"
)

// ListConfigs returns the .ovpn files in dir sorted by name. A missing
// directory yields an empty list. The listing is a snapshot: entries that
// vanish while it is taken are simply absent.
func ListConfigs(dir string) ([]common.ConfigEntry, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []common.ConfigEntry{}, nil
		}
		if len(dirents) == 0 {
			return nil, err
		}
		common.LogDebug("Partial listing of %s: %v", dir, err)
	}

	entries := make([]common.ConfigEntry, 0, len(dirents))
	for _, d := range dirents {
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".ovpn") {
			continue
		}
		entries = append(entries, common.ConfigEntry{FileName: d.Name(), Kind: common.KindConfig})
	}
	// os.ReadDir already sorts by file name.
	return entries, nil
}
