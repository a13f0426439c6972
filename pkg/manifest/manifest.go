// Package manifest reads the list of training volumes and their modality labels.
//
// A manifest is plain text with one record per line:
//
//	<modality> <path>
//
// The label is split off at the first space; the remainder of the line is the
// path. Paths containing spaces are therefore not supported. Neither the path
// nor the label range is checked here; consumers decide what to do with them.
package manifest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"mrimodality/internal/models"
)

// Index is an ordered, read-only collection of manifest records
type Index struct {
	records []models.ManifestRecord
}

// New builds an index from records that were assembled elsewhere
func New(records []models.ManifestRecord) *Index {
	return &Index{records: append([]models.ManifestRecord(nil), records...)}
}

// Load reads a manifest file from disk
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening manifest: %w", err)
	}
	defer f.Close()

	idx, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return idx, nil
}

// Parse reads manifest records from r. Blank lines are ignored.
func Parse(r io.Reader) (*Index, error) {
	idx := &Index{}
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}

		label, path, ok := strings.Cut(text, " ")
		if !ok {
			return nil, fmt.Errorf("line %d: expected \"<modality> <path>\"", line)
		}
		modality, err := strconv.Atoi(strings.TrimSpace(label))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid modality %q: %w", line, label, err)
		}
		if modality < 0 {
			return nil, fmt.Errorf("line %d: negative modality %d", line, modality)
		}
		path = strings.TrimSpace(path)
		if path == "" {
			return nil, fmt.Errorf("line %d: missing path", line)
		}

		idx.records = append(idx.records, models.ManifestRecord{Modality: modality, Path: path})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading manifest: %w", err)
	}
	return idx, nil
}

// Size returns the number of records
func (idx *Index) Size() int {
	return len(idx.records)
}

// RecordAt returns the i-th record in file order
func (idx *Index) RecordAt(i int) models.ManifestRecord {
	return idx.records[i]
}

// Records returns a copy of all records
func (idx *Index) Records() []models.ManifestRecord {
	return append([]models.ManifestRecord(nil), idx.records...)
}

// CountByModality returns how many records carry each label
func (idx *Index) CountByModality() map[int]int {
	counts := make(map[int]int)
	for _, rec := range idx.records {
		counts[rec.Modality]++
	}
	return counts
}

// Modalities returns the distinct labels in ascending order
func (idx *Index) Modalities() []int {
	counts := idx.CountByModality()
	labels := make([]int, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Ints(labels)
	return labels
}
