package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Format identifies a source decoder.
type Format string

const (
	FormatRaw  Format = "raw"
	FormatWAV  Format = "wav"
	FormatMP3  Format = "mp3"
	FormatFLAC Format = "flac"
)

// DefaultExtensions lists every extension OpenSource understands.
var DefaultExtensions = []string{".f32", ".raw", ".wav", ".mp3", ".flac"}

// FormatFor picks a decoder from the file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".f32", ".raw":
		return FormatRaw, nil
	case ".wav":
		return FormatWAV, nil
	case ".mp3":
		return FormatMP3, nil
	case ".flac":
		return FormatFLAC, nil
	}
	return "", fmt.Errorf("unsupported audio format: %s (supported: %s)", filepath.Ext(path), strings.Join(DefaultExtensions, ", "))
}

// OpenSource opens a source file. Headerless raw files use the fallback
// rate and channel count; every other format carries its own.
func OpenSource(path string, fallbackRate, fallbackChannels int) (Source, error) {
	if err := ValidateSource(path); err != nil {
		return nil, err
	}
	format, _ := FormatFor(path)

	switch format {
	case FormatRaw:
		return NewRawSource(path, fallbackChannels, fallbackRate)
	case FormatWAV:
		return NewWAVSource(path)
	case FormatMP3:
		return NewMP3Source(path)
	default:
		return NewFLACSource(path)
	}
}

// ValidateSource checks that path exists, is a regular file and has a
// supported extension.
func ValidateSource(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("audio file not found: %s", path)
	}
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	_, err = FormatFor(path)
	return err
}

// ListSources returns the playable files in dir whose extension is in
// extensions (with or without the leading dot), sorted by name. An empty
// extension list means DefaultExtensions.
func ListSources(dir string, extensions []string) ([]string, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var sources []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !allowed[ext] {
			continue
		}
		if _, err := FormatFor(entry.Name()); err != nil {
			continue
		}
		sources = append(sources, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(sources)
	return sources, nil
}
