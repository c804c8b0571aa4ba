package reader

import (
	"context"
	"net/http"

	"modscout/config"
	"modscout/logger"
	"modscout/models"
)

const catalogProvider = "catalog"

// CatalogReader fetches the mod catalog, a top-level JSON array of mod records.
type CatalogReader struct {
	url    string
	client *http.Client
	log    *logger.Log
}

func NewCatalogReader(cfg *config.Config) *CatalogReader {
	log := logger.GetLogger()
	r := &CatalogReader{
		url:    cfg.Source.Catalog.URL,
		client: newHTTPClient(cfg),
		log:    log,
	}

	log.WithComponent("catalog_reader").WithFields(logger.Fields{
		"url":     r.url,
		"timeout": cfg.Reader.Timeout,
	}).Debug("catalog reader initialized")

	return r
}

// FetchCatalog returns the full catalog. Failures wrap ErrProviderUnavailable.
func (r *CatalogReader) FetchCatalog(ctx context.Context) ([]models.ModRecord, error) {
	var mods []models.ModRecord
	if err := getJSON(ctx, r.client, r.log, catalogProvider, r.url, nil, &mods); err != nil {
		return nil, err
	}

	r.log.WithComponent("catalog_reader").WithFields(logger.Fields{
		"mods": len(mods),
	}).Info("fetched mod catalog")

	return mods, nil
}
