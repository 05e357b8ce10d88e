// Package remote downloads configuration bundles and keeps the local
// configuration directory in sync with them.
package remote

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/albanobattistella/eOVPN/common"
)

// Entry names are matched on their full path inside the archive, but are
// written under their base name only. Flattening keeps "../" entries and
// nested directories out of the destination.
var (
	configPattern = regexp.MustCompile(`\.ovpn$`)
	certPattern   = regexp.MustCompile(`\.crt$|cert`)
)

// Classify reports whether an archive entry is a configuration or a
// certificate. Configurations take precedence.
func Classify(name string) (common.EntryKind, bool) {
	switch {
	case configPattern.MatchString(name):
		return common.KindConfig, true
	case certPattern.MatchString(name):
		return common.KindCertificate, true
	default:
		return 0, false
	}
}

// flatName strips every directory component from an archive entry name.
func flatName(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	switch base {
	case ".", "..", "/":
		return ""
	}
	return base
}

// bundle is a downloaded archive and its matching entries.
type bundle struct {
	configs []*zip.File
	certs   []*zip.File
}

func (b *bundle) files() []*zip.File {
	all := make([]*zip.File, 0, len(b.configs)+len(b.certs))
	all = append(all, b.configs...)
	return append(all, b.certs...)
}

// entries returns the flattened, sorted names the bundle would produce.
func (b *bundle) entries() []common.ConfigEntry {
	var out []common.ConfigEntry
	for _, f := range b.configs {
		out = append(out, common.ConfigEntry{FileName: flatName(f.Name), Kind: common.KindConfig})
	}
	for _, f := range b.certs {
		out = append(out, common.ConfigEntry{FileName: flatName(f.Name), Kind: common.KindCertificate})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileName < out[j].FileName })
	return out
}

func parseBundle(data []byte) (*bundle, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrExtract, err)
	}

	b := &bundle{}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || flatName(f.Name) == "" {
			continue
		}
		kind, ok := Classify(f.Name)
		if !ok {
			continue
		}
		if kind == common.KindConfig {
			b.configs = append(b.configs, f)
		} else {
			b.certs = append(b.certs, f)
		}
	}
	return b, nil
}

// FetchResult is delivered by the asynchronous operations.
type FetchResult struct {
	Count   int
	Entries []common.ConfigEntry
	Err     error
}

// Fetcher downloads and unpacks remote configuration archives.
type Fetcher struct {
	client       *http.Client
	maxSize      int64
	maxEntrySize int64
}

// NewFetcher creates a fetcher whose requests time out after timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = common.FetchTimeout
	}
	return &Fetcher{
		client:       &http.Client{Timeout: timeout},
		maxSize:      common.MaxArchiveSize,
		maxEntrySize: common.MaxEntrySize,
	}
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrFetch, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %s", common.ErrFetch, url, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", common.ErrFetch, err)
	}
	if int64(len(data)) > f.maxSize {
		return nil, fmt.Errorf("%w: archive larger than %d bytes", common.ErrFetch, f.maxSize)
	}
	return data, nil
}

func (f *Fetcher) fetchBundle(ctx context.Context, url string) (*bundle, error) {
	data, err := f.download(ctx, url)
	if err != nil {
		return nil, err
	}

	b, err := parseBundle(data)
	if err != nil {
		return nil, err
	}
	if len(b.configs) == 0 {
		return nil, common.ErrConfigNotFound
	}
	return b, nil
}

// Inspect downloads url and returns the entries an extraction would write.
func (f *Fetcher) Inspect(ctx context.Context, url string) ([]common.ConfigEntry, error) {
	b, err := f.fetchBundle(ctx, url)
	if err != nil {
		return nil, err
	}
	return b.entries(), nil
}

// ValidateRemote is a dry run of FetchAndExtract: it returns the number of
// configuration and certificate entries without writing anything.
func (f *Fetcher) ValidateRemote(ctx context.Context, url string) (int, error) {
	b, err := f.fetchBundle(ctx, url)
	if err != nil {
		common.LogWarn("Remote %s is not valid: %v", url, err)
		return 0, err
	}
	count := len(b.configs) + len(b.certs)
	common.LogInfo("Remote %s holds %d config(s) and %d certificate(s)", url, len(b.configs), len(b.certs))
	return count, nil
}

// FetchAndExtract downloads the archive at url and writes its configuration
// and certificate entries into dest, flattened. dest is only created once
// the archive is known to contain configurations. On a write failure the
// count of files already written is returned along with ErrExtract.
func (f *Fetcher) FetchAndExtract(ctx context.Context, url, dest string) (int, error) {
	b, err := f.fetchBundle(ctx, url)
	if err != nil {
		common.LogWarn("Fetching %s failed: %v", url, err)
		return 0, err
	}

	if err := os.MkdirAll(dest, 0700); err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrExtract, err)
	}

	written := 0
	for _, zf := range b.files() {
		name := flatName(zf.Name)
		if err := f.writeEntry(zf, filepath.Join(dest, name)); err != nil {
			common.LogError("Extracting %s failed after %d file(s): %v", zf.Name, written, err)
			return written, fmt.Errorf("%w: %s: %v", common.ErrExtract, name, err)
		}
		common.LogInfo("Extracted %s", name)
		written++
	}
	return written, nil
}

func (f *Fetcher) writeEntry(zf *zip.File, target string) error {
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, f.maxEntrySize+1))
	if err != nil {
		return err
	}
	if int64(len(data)) > f.maxEntrySize {
		return fmt.Errorf("entry larger than %d bytes", f.maxEntrySize)
	}

	// Never write through a symlink planted in the destination.
	if info, err := os.Lstat(target); err == nil && info.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(target); err != nil {
			return err
		}
	}
	return os.WriteFile(target, data, 0600)
}

// FetchAndExtractAsync runs FetchAndExtract on its own goroutine and
// delivers exactly one FetchResult. On success Entries holds a fresh
// listing of dest.
func (f *Fetcher) FetchAndExtractAsync(ctx context.Context, url, dest string) <-chan FetchResult {
	ch := make(chan FetchResult, 1)
	go func() {
		defer close(ch)
		count, err := f.FetchAndExtract(ctx, url, dest)
		result := FetchResult{Count: count, Err: err}
		if err == nil {
			result.Entries, _ = ListConfigs(dest)
		}
		ch <- result
	}()
	return ch
}

// ValidateRemoteAsync runs ValidateRemote on its own goroutine and delivers
// exactly one FetchResult.
func (f *Fetcher) ValidateRemoteAsync(ctx context.Context, url string) <-chan FetchResult {
	ch := make(chan FetchResult, 1)
	go func() {
		defer close(ch)
		count, err := f.ValidateRemote(ctx, url)
		ch <- FetchResult{Count: count, Err: err}
	}()
	return ch
}
