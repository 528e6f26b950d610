package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trackless/cred1/internal/fetcher"
	"github.com/trackless/cred1/internal/model"
)

// openSourcesEntry is one value of the OpenSources JSON map. A site can carry
// up to three labels.
type openSourcesEntry struct {
	Type  string `json:"type"`
	Type2 string `json:"2nd type"`
	Type3 string `json:"3rd type"`
}

// OpenSourcesSite is a parsed OpenSources row: the raw domain key and its
// non-empty labels.
type OpenSourcesSite struct {
	Domain string
	Labels []string
}

// ParseOpenSources decodes the OpenSources sources.json map. Label order is
// preserved; empty label slots are dropped.
func ParseOpenSources(r io.Reader) ([]OpenSourcesSite, error) {
	var raw map[string]openSourcesEntry
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, eris.Wrap(err, "ingest: decode OpenSources JSON")
	}

	sites := make([]OpenSourcesSite, 0, len(raw))
	for domain, entry := range raw {
		var labels []string
		for _, l := range []string{entry.Type, entry.Type2, entry.Type3} {
			if strings.TrimSpace(l) != "" {
				labels = append(labels, l)
			}
		}
		if len(labels) == 0 {
			continue
		}
		sites = append(sites, OpenSourcesSite{Domain: domain, Labels: labels})
	}
	return sites, nil
}

// IffySite is a parsed Iffy index row.
type IffySite struct {
	Domain     string
	Name       string
	Factual    string
	Score      model.Option[float64]
	SiteRank   model.Option[int]
	YearOnline model.Option[int]
}

// Iffy CSV header names. The sheet export renames occasionally, so matching
// is case-insensitive on the trimmed header.
const (
	iffyColDomain  = "domain"
	iffyColName    = "name"
	iffyColFactual = "mbfc fact"
	iffyColScore   = "score"
	iffyColRank    = "site rank"
	iffyColYear    = "year online"
)

// ParseIffy streams the Iffy index CSV. Rows without a domain are skipped.
func ParseIffy(ctx context.Context, r io.Reader) ([]IffySite, error) {
	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	var cols map[string]int
	var sites []IffySite
	skipped := 0

	for row := range rowCh {
		if cols == nil {
			select {
			case header := <-headerCh:
				cols = indexHeader(header)
			default:
				return nil, eris.New("ingest: Iffy CSV missing header")
			}
		}

		domain := cell(row, cols, iffyColDomain)
		if domain == "" {
			skipped++
			continue
		}

		site := IffySite{
			Domain:  domain,
			Name:    cell(row, cols, iffyColName),
			Factual: cell(row, cols, iffyColFactual),
		}
		if v, err := strconv.ParseFloat(cell(row, cols, iffyColScore), 64); err == nil {
			site.Score = model.Some(v)
		}
		if v, err := strconv.Atoi(cell(row, cols, iffyColRank)); err == nil {
			site.SiteRank = model.Some(v)
		}
		if v, err := strconv.Atoi(cell(row, cols, iffyColYear)); err == nil {
			site.YearOnline = model.Some(v)
		}
		sites = append(sites, site)
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "ingest: read Iffy CSV")
	}

	// The header row may arrive without any data rows following it.
	if cols == nil {
		select {
		case <-headerCh:
		default:
			return nil, eris.New("ingest: Iffy CSV is empty")
		}
	}

	if skipped > 0 {
		zap.L().Warn("skipped Iffy rows without a domain", zap.Int("count", skipped))
	}
	return sites, nil
}

func indexHeader(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return cols
}

func cell(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
