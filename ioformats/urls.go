package ioformats

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoURLs is returned when an input file holds no URLs
var ErrNoURLs = errors.New("no urls found")

// ReadURLs reads seed URLs from a CSV file with a "url" header column or
// from NDJSON, one raw URL or {"url": "..."} object per line. Files without
// a known extension are tried as CSV first.
func ReadURLs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ParseCSV(strings.NewReader(string(data)))
	case ".ndjson", ".jsonl":
		return ParseNDJSON(strings.NewReader(string(data)))
	}
	if urls, err := ParseCSV(strings.NewReader(string(data))); err == nil {
		return urls, nil
	}
	return ParseNDJSON(strings.NewReader(string(data)))
}

// ParseCSV returns the non-empty values of the "url" column
func ParseCSV(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNoURLs
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	col := -1
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), "url") {
			col = i
			break
		}
	}
	if col == -1 {
		return nil, errors.New("csv must contain a 'url' header column")
	}

	var urls []string
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row: %w", err)
		}
		if col < len(row) {
			if u := strings.TrimSpace(row[col]); u != "" {
				urls = append(urls, u)
			}
		}
	}
	if len(urls) == 0 {
		return nil, ErrNoURLs
	}
	return urls, nil
}

// ParseNDJSON accepts raw URL lines and {"url": "..."} objects
func ParseNDJSON(r io.Reader) ([]string, error) {
	var urls []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "{") {
			var rec struct {
				URL string `json:"url"`
			}
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				return nil, fmt.Errorf("invalid ndjson line %q: %w", line, err)
			}
			if rec.URL != "" {
				urls = append(urls, rec.URL)
			}
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, ErrNoURLs
	}
	return urls, nil
}

// WriteNDJSON encodes each item as one JSON line
func WriteNDJSON[T any](w io.Writer, items []T) error {
	enc := json.NewEncoder(w)
	for _, it := range items {
		if err := enc.Encode(it); err != nil {
			return err
		}
	}
	return nil
}
