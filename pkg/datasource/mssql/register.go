package mssql

import (
	"go.uber.org/zap"

	"github.com/quill-data/quill-engine/pkg/datasource"
	"github.com/quill-data/quill-engine/pkg/models"
)

func init() {
	datasource.Register(models.DBTypeSQLServer, func(cfg models.ConnectionConfig, logger *zap.Logger) (datasource.Adapter, error) {
		return NewAdapter(cfg, logger), nil
	})
}
