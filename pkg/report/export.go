package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/ecodash/pkg/commits"
	"github.com/Sumatoshi-tech/ecodash/pkg/stats"
)

// recordRow is the CSV shape of a commits.Record; missing identities are
// written as empty cells.
type recordRow struct {
	Hash           string `csv:"hash"`
	AuthorDate     string `csv:"author_date"`
	CommitterDate  string `csv:"committer_date"`
	InMainBranch   bool   `csv:"in_main_branch"`
	ProjectName    string `csv:"project_name"`
	ProjectPath    string `csv:"project_path"`
	Deletions      int    `csv:"deletions"`
	Insertions     int    `csv:"insertions"`
	Lines          int    `csv:"lines"`
	Files          int    `csv:"files"`
	AuthorName     string `csv:"author_name"`
	AuthorEmail    string `csv:"author_email"`
	CommitterName  string `csv:"committer_name"`
	CommitterEmail string `csv:"committer_email"`
}

type bucketRow struct {
	Start       string `csv:"start"`
	CommitCount int    `csv:"commit_count"`
	Deletions   int    `csv:"deletions"`
	Insertions  int    `csv:"insertions"`
	Lines       int    `csv:"lines"`
	Files       int    `csv:"files"`
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	err := enc.Encode(v)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return nil
}

// WriteYAML writes v as YAML.
func WriteYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	err := enc.Encode(v)
	if err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}

	return enc.Close()
}

// WriteRecordsCSV writes records as CSV with a header row.
func WriteRecordsCSV(w io.Writer, records []commits.Record) error {
	rows := make([]*recordRow, 0, len(records))

	for _, r := range records {
		rows = append(rows, &recordRow{
			Hash:           r.Hash,
			AuthorDate:     r.AuthorDate,
			CommitterDate:  r.CommitterDate,
			InMainBranch:   r.InMainBranch,
			ProjectName:    r.ProjectName,
			ProjectPath:    r.ProjectPath,
			Deletions:      r.Deletions,
			Insertions:     r.Insertions,
			Lines:          r.Lines,
			Files:          r.Files,
			AuthorName:     commits.Deref(r.AuthorName),
			AuthorEmail:    commits.Deref(r.AuthorEmail),
			CommitterName:  commits.Deref(r.CommitterName),
			CommitterEmail: commits.Deref(r.CommitterEmail),
		})
	}

	return writeCSV(w, &rows)
}

// WriteBucketsCSV writes buckets as CSV; fields not aggregated are zero.
func WriteBucketsCSV(w io.Writer, buckets []stats.Bucket) error {
	rows := make([]*bucketRow, 0, len(buckets))

	for _, b := range buckets {
		rows = append(rows, &bucketRow{
			Start:       b.Label(),
			CommitCount: b.CommitCount,
			Deletions:   b.Values[commits.FieldDeletions],
			Insertions:  b.Values[commits.FieldInsertions],
			Lines:       b.Values[commits.FieldLines],
			Files:       b.Values[commits.FieldFiles],
		})
	}

	return writeCSV(w, &rows)
}

func writeCSV(w io.Writer, rows any) error {
	err := gocsv.Marshal(rows, w)
	if err != nil {
		return fmt.Errorf("encode csv: %w", err)
	}

	return nil
}
