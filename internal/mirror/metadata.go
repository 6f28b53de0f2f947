package mirror

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const metadataSuffix = ".json"

// Metadata describes a mirror for collaborators that own eviction.
type Metadata struct {
	Key         string    `json:"key"`
	Identity    string    `json:"identity"`
	URL         string    `json:"url"`
	Dir         string    `json:"dir"`
	Branches    []string  `json:"branches"`
	LastFetched time.Time `json:"lastFetched"`
}

func (m *Mirror) metadataPath() string {
	return filepath.Join(m.cache.root, m.Key+metadataSuffix)
}

// Metadata reads the record of the mirror. It returns nil when the mirror
// never completed a fetch.
func (m *Mirror) Metadata() (*Metadata, error) {
	md, err := readMetadata(m.metadataPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	return md, err
}

// RecordFetch adds the fetched branches to the mirror record. Call it while
// holding the exclusive lock.
func (m *Mirror) RecordFetch(url string, when time.Time, branches ...string) error {
	md, err := m.Metadata()
	if err != nil || md == nil {
		md = &Metadata{}
	}
	md.Key = m.Key
	md.Identity = m.Identity
	md.URL = url
	md.Dir = m.Dir
	md.LastFetched = when.UTC()
	md.Branches = mergeBranches(md.Branches, branches)

	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal mirror metadata: %w", err)
	}

	tmp, err := os.CreateTemp(m.cache.root, m.Key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write mirror metadata: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write mirror metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write mirror metadata: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.metadataPath()); err != nil {
		return fmt.Errorf("failed to write mirror metadata: %w", err)
	}
	return nil
}

func readMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("failed to parse mirror metadata %s: %w", path, err)
	}
	return &md, nil
}

func mergeBranches(have, add []string) []string {
	seen := make(map[string]bool, len(have)+len(add))
	var out []string
	for _, b := range append(append([]string{}, have...), add...) {
		if b == "" || seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}
