package feed

import (
	"database/sql"
	"fmt"
	"strings"

	"reconciler/internal/models"
)

// Kind enumerates the adapter types New can build.
type Kind string

const (
	KindInternalQuery Kind = "internal_query"
	KindDelimited     Kind = "delimited"
	KindTagValue      Kind = "tag_value"
)

// Config is the union of fields any adapter kind might need. Only the
// fields relevant to the requested Kind are read.
type Config struct {
	DB            *sql.DB
	TableName     string
	FilePath      string
	ColumnMapping map[string]string
	Delimiter     string
	Source        models.Source
}

// New builds a Source for kind, switching by name the way the teacher's
// exchange factory (NewExchange) selects a concrete exchange client.
func New(kind Kind, cfg Config) (Source, error) {
	switch Kind(strings.ToLower(string(kind))) {
	case KindInternalQuery:
		if cfg.DB == nil {
			return nil, fmt.Errorf("feed: internal_query adapter requires a non-nil DB")
		}
		return &InternalQuery{DB: cfg.DB, TableName: cfg.TableName}, nil
	case KindDelimited:
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("feed: delimited adapter requires FilePath")
		}
		return &Delimited{FilePath: cfg.FilePath, ColumnMapping: cfg.ColumnMapping, Source: cfg.Source}, nil
	case KindTagValue:
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("feed: tag_value adapter requires FilePath")
		}
		return &TagValue{FilePath: cfg.FilePath, Delimiter: cfg.Delimiter, Source: cfg.Source}, nil
	default:
		return nil, fmt.Errorf("feed: unsupported adapter kind %q", kind)
	}
}
