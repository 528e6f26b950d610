package enrich

// Stats summarizes one enrichment step. Skipped counts domains whose lookup
// failed or returned nothing; those records keep the signal absent.
type Stats struct {
	Processed int `json:"processed"`
	Enriched  int `json:"enriched"`
	Cached    int `json:"cached"`
	Skipped   int `json:"skipped"`
}
