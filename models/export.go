package models

import "time"

const (
	FormatExcel = "excel"
	FormatPDF   = "pdf"
)

// ExportOptions est le choix fait dans la modale d'export
type ExportOptions struct {
	Format                   string `json:"format" binding:"required,oneof=excel pdf"`
	IncludeAnnualStats       bool   `json:"includeAnnualStats"`
	IncludeRedacteurTable    bool   `json:"includeRedacteurTable"`
	IncludeCirconstanceTable bool   `json:"includeCirconstanceTable"`
	IncludeRegionTable       bool   `json:"includeRegionTable"`
	Annee                    int    `json:"annee"`
	IsAllYears               bool   `json:"isAllYears"`
}

// Normalize applies the gating rules: sub-tables only exist inside the annual
// section, and -1 always means every year.
func (o ExportOptions) Normalize() ExportOptions {
	o.IsAllYears = o.Annee == AllYears
	if !o.IncludeAnnualStats {
		o.IncludeRedacteurTable = false
		o.IncludeCirconstanceTable = false
		o.IncludeRegionTable = false
	}
	return o
}

// ExportData is rebuilt for every export and never cached.
type ExportData struct {
	Global             GlobalStats     `json:"global"`
	Annual             *AnnualView     `json:"annual"`
	Annee              int             `json:"annee"`
	IsAllYears         bool            `json:"isAllYears"`
	DataWithVariations []TimelineEntry `json:"dataWithVariations"`
	GeneratedAt        time.Time       `json:"generatedAt"`
}

// ExportFile est le fichier produit par un générateur
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
	Pages       int
}

// ============================================================================
// SUIVI DES EXPORTS
// ============================================================================

type ExportStatus string

const (
	ExportPending   ExportStatus = "pending"
	ExportRunning   ExportStatus = "running"
	ExportCompleted ExportStatus = "completed"
	ExportFailed    ExportStatus = "failed"
)

// ExportEvent is pushed on the progress websocket.
type ExportEvent struct {
	Type     string       `json:"type"`
	JobID    string       `json:"job_id"`
	Status   ExportStatus `json:"status"`
	Format   string       `json:"format"`
	Filename string       `json:"filename,omitempty"`
	Error    string       `json:"error,omitempty"`
}

type ExportAuditEntry struct {
	ID         string       `json:"id"`
	UserID     string       `json:"user_id"`
	Format     string       `json:"format"`
	Annee      int          `json:"annee"`
	Annual     bool         `json:"annual"`
	Filename   string       `json:"filename"`
	Status     ExportStatus `json:"status"`
	Error      string       `json:"error,omitempty"`
	SizeBytes  int          `json:"size_bytes"`
	DurationMs int64        `json:"duration_ms"`
	CreatedAt  time.Time    `json:"created_at"`
}
