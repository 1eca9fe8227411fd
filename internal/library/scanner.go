package library

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jscyril/golang_media_player/api"
	"github.com/jscyril/golang_media_player/internal/audio"
	playerrors "github.com/jscyril/golang_media_player/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Scanner turns files and directories into playlist items, reading tags
// on a pool of workers.
type Scanner struct {
	workers    int
	metaReader *MetadataReader
}

// NewScanner creates a new file scanner
func NewScanner(workers int) *Scanner {
	if workers <= 0 {
		workers = 4 // Default worker count
	}
	return &Scanner{
		workers:    workers,
		metaReader: NewMetadataReader(),
	}
}

// SupportedFormats returns list of supported media formats
func (s *Scanner) SupportedFormats() []string {
	return audio.SupportedFormats()
}

// Scan walks paths and reads metadata for every supported file on a bounded
// set of workers. Both channels are closed when the walk and all reads are done.
// Errors are best effort: they are dropped if nobody drains the error channel.
func (s *Scanner) Scan(ctx context.Context, paths []string) (<-chan *api.PlaylistItem, <-chan error) {
	items := make(chan *api.PlaylistItem, 100)
	errs := make(chan error, 10)

	report := func(path string, err error) {
		select {
		case errs <- &playerrors.ScanError{Path: path, Err: err}:
		default:
		}
	}

	go func() {
		defer close(errs)
		defer close(items)

		var g errgroup.Group
		g.SetLimit(s.workers)
		defer func() { _ = g.Wait() }()

		for _, root := range paths {
			err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
				if err != nil {
					report(p, err)
					return nil
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if d.IsDir() || !audio.IsSupported(p) {
					return nil
				}
				// Go blocks while all workers are busy, throttling the walk.
				g.Go(func() error {
					item, err := s.metaReader.Read(p)
					if err != nil {
						report(p, err)
						return nil
					}
					select {
					case items <- item:
					case <-ctx.Done():
					}
					return nil
				})
				return nil
			})
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				report(root, err)
			}
		}
	}()

	return items, errs
}

// ScanFile scans a single file and returns a playlist item
func (s *Scanner) ScanFile(filePath string) (*api.PlaylistItem, error) {
	if !audio.IsSupported(filePath) {
		return nil, playerrors.ErrInvalidFormat
	}
	return s.metaReader.Read(filePath)
}

// Expand turns a mix of files, directories and non-file sources into
// playlist items. Directories are scanned recursively and their files sorted
// by path; everything else keeps the order given. Entries that cannot be
// read are reported in the returned error slice and skipped.
func (s *Scanner) Expand(ctx context.Context, paths []string) ([]*api.PlaylistItem, []error) {
	var (
		out  []*api.PlaylistItem
		errs []error
	)
	for _, p := range paths {
		if strings.Contains(p, "://") {
			// URLs and synthetic sources are passed through untouched
			out = append(out, &api.PlaylistItem{ID: SourceID(p), Source: p, Title: p})
			continue
		}

		info, err := os.Stat(p)
		switch {
		case err != nil:
			errs = append(errs, &playerrors.ScanError{Path: p, Err: err})
		case info.IsDir():
			found, scanErrs := s.collect(ctx, p)
			out = append(out, found...)
			errs = append(errs, scanErrs...)
		default:
			item, err := s.ScanFile(p)
			if err != nil {
				errs = append(errs, &playerrors.ScanError{Path: p, Err: err})
				continue
			}
			out = append(out, item)
		}
	}
	return out, errs
}

func (s *Scanner) collect(ctx context.Context, dir string) ([]*api.PlaylistItem, []error) {
	items, errCh := s.Scan(ctx, []string{dir})

	var (
		found []*api.PlaylistItem
		errs  []error
		done  = make(chan struct{})
	)
	go func() {
		defer close(done)
		for err := range errCh {
			errs = append(errs, err)
		}
	}()
	for item := range items {
		found = append(found, item)
	}
	<-done

	sort.Slice(found, func(i, j int) bool { return found[i].Source < found[j].Source })
	return found, errs
}
