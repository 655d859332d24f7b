package resources

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/wbrown/minbpe/types"
)

// WriteCounter counts the number of bytes written to it, and every 10 seconds,
// it logs the number of bytes written so far.
type WriteCounter struct {
	Total    uint64
	Last     time.Time
	Reported bool
	Path     string
	Size     uint64
}

func (wc *WriteCounter) Write(p []byte) (int, error) {
	n := len(p)
	wc.Total += uint64(n)
	if time.Since(wc.Last).Seconds() > 10 {
		wc.Reported = true
		wc.Last = time.Now()
		log.Info().
			Str("path", wc.Path).
			Str("completed", humanize.Bytes(wc.Total)).
			Str("size", humanize.Bytes(wc.Size)).
			Msg("downloading")
	}
	return n, nil
}

// LoadRankFile memory-maps a tiktoken-format rank file and parses it.
func LoadRankFile(rankPath string) (types.TokenMap, error) {
	file, openErr := os.Open(rankPath)
	if openErr != nil {
		return nil, fmt.Errorf("error opening %s: %w", rankPath, openErr)
	}
	defer file.Close()
	stat, statErr := file.Stat()
	if statErr != nil {
		return nil, statErr
	}
	if stat.Size() == 0 {
		return nil, fmt.Errorf("rank file %s is empty", rankPath)
	}
	fileMmap, mmapErr := readMmap(file)
	if mmapErr != nil {
		return nil, fmt.Errorf("error trying to mmap %s: %w", rankPath,
			mmapErr)
	}
	defer fileMmap.Unmap()
	ranks, parseErr := ParseRanks(fileMmap)
	if parseErr != nil {
		return nil, fmt.Errorf("%s: %w", rankPath, parseErr)
	}
	log.Debug().
		Str("path", rankPath).
		Str("size", humanize.Bytes(uint64(stat.Size()))).
		Int("tokens", len(ranks)).
		Msg("loaded rank file")
	return ranks, nil
}

// SaveRankFile writes ranks to rankPath in the tiktoken format.
func SaveRankFile(rankPath string, ranks types.TokenMap) error {
	file, createErr := os.Create(rankPath)
	if createErr != nil {
		return createErr
	}
	if writeErr := WriteRanks(file, ranks); writeErr != nil {
		file.Close()
		return fmt.Errorf("error writing %s: %w", rankPath, writeErr)
	}
	return file.Close()
}

// ResolveRanks loads a rank file from a local path, or from a URL. Remote
// files are downloaded into dir first, unless a file of the same name and
// size is already there.
func ResolveRanks(uri string, dir string, auth string) (types.TokenMap,
	error) {
	if !isValidUrl(uri) {
		return LoadRankFile(uri)
	}
	u, _ := url.Parse(uri)
	targetPath := path.Join(dir, path.Base(u.Path))
	rsrcSize, sizeErr := SizeHTTP(uri, auth)
	if sizeErr != nil {
		return nil, fmt.Errorf("cannot retrieve `%s`: %w", uri, sizeErr)
	}
	if targetStat, statErr := os.Stat(targetPath); statErr == nil &&
		uint(targetStat.Size()) == rsrcSize {
		log.Info().Str("path", targetPath).
			Msg("already downloaded, and of the correct size")
		return LoadRankFile(targetPath)
	}

	rsrcReader, fetchErr := FetchHTTP(uri, auth)
	if fetchErr != nil {
		return nil, fmt.Errorf("cannot retrieve `%s`: %w", uri, fetchErr)
	}
	defer rsrcReader.Close()
	rsrcFile, createErr := os.Create(targetPath)
	if createErr != nil {
		return nil, fmt.Errorf("error opening '%s' for write: %w",
			targetPath, createErr)
	}
	counter := &WriteCounter{
		Last: time.Now(),
		Path: uri,
		Size: uint64(rsrcSize),
	}
	bytesDownloaded, ioErr := io.Copy(rsrcFile,
		io.TeeReader(rsrcReader, counter))
	if closeErr := rsrcFile.Close(); ioErr == nil {
		ioErr = closeErr
	}
	if ioErr != nil {
		return nil, fmt.Errorf("error downloading '%s': %w", uri, ioErr)
	}
	log.Info().
		Str("uri", uri).
		Str("completed", humanize.Bytes(uint64(bytesDownloaded))).
		Msg("downloaded")
	return LoadRankFile(targetPath)
}
