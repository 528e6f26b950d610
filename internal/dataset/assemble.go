package dataset

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"sort"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/trackless/cred1/internal/model"
)

// Rows flattens scored records into full-format rows sorted ascending by
// credibility score, ties broken by domain so output is deterministic.
func Rows(records []*model.DomainRecord) []FullRow {
	rows := make([]FullRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, RowFromRecord(rec))
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CredibilityScore != rows[j].CredibilityScore {
			return rows[i].CredibilityScore < rows[j].CredibilityScore
		}
		return rows[i].Domain < rows[j].Domain
	})
	return rows
}

// Compact builds the compact dataset map keyed by canonical domain.
func Compact(records []*model.DomainRecord) map[string]CompactEntry {
	out := make(map[string]CompactEntry, len(records))
	for _, rec := range records {
		out[rec.Domain] = CompactFromRecord(rec)
	}
	return out
}

// WriteFullCSV writes rows as the full 18-column CSV.
func WriteFullCSV(w io.Writer, rows []FullRow) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	for i := range rows {
		if err := enc.Encode(rows[i]); err != nil {
			return eris.Wrapf(err, "dataset: encode CSV row %s", rows[i].Domain)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "dataset: flush CSV")
}

// ReadFullCSV parses a full-format CSV back into rows.
func ReadFullCSV(r io.Reader) ([]FullRow, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read CSV header")
	}

	var rows []FullRow
	for {
		var row FullRow
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrap(err, "dataset: decode CSV row")
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteCompact writes the compact dataset as minified JSON with sorted keys.
func WriteCompact(w io.Writer, entries map[string]CompactEntry) error {
	// encoding/json sorts map keys, which keeps the output byte-stable.
	data, err := json.Marshal(entries)
	if err != nil {
		return eris.Wrap(err, "dataset: marshal compact")
	}
	if _, err := w.Write(data); err != nil {
		return eris.Wrap(err, "dataset: write compact")
	}
	return nil
}

// ReadCompact parses a compact dataset file.
func ReadCompact(r io.Reader) (map[string]CompactEntry, error) {
	var entries map[string]CompactEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, eris.Wrap(err, "dataset: decode compact")
	}
	return entries, nil
}

// WriteMerged writes the intermediate merged record list as indented JSON,
// sorted by domain.
func WriteMerged(w io.Writer, records []*model.DomainRecord) error {
	sorted := make([]*model.DomainRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Domain < sorted[j].Domain })

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(sorted), "dataset: write merged")
}

// ReadMerged parses an intermediate merged record list.
func ReadMerged(r io.Reader) ([]*model.DomainRecord, error) {
	var records []*model.DomainRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, eris.Wrap(err, "dataset: decode merged")
	}
	return records, nil
}
