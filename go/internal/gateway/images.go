package gateway

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Image is one entry of the slideshow archive
type Image struct {
	ID       int    `json:"id"`
	URL      string `json:"url"`
	Alt      string `json:"alt"`
	Filename string `json:"filename"`
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// ListImages lists the images of dir in name order. Every display must see the same list
// for the shared shuffle to line up.
func ListImages(dir string) ([]Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	images := make([]Image, 0, len(names))
	for i, name := range names {
		images = append(images, Image{
			ID:       i + 1,
			URL:      "/archive/" + name,
			Alt:      strings.TrimSuffix(name, filepath.Ext(name)),
			Filename: name,
		})
	}
	return images, nil
}
