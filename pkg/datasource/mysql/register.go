package mysql

import (
	"go.uber.org/zap"

	"github.com/quill-data/quill-engine/pkg/datasource"
	"github.com/quill-data/quill-engine/pkg/models"
)

func init() {
	datasource.Register(models.DBTypeMySQL, func(cfg models.ConnectionConfig, logger *zap.Logger) (datasource.Adapter, error) {
		return NewAdapter(cfg, logger), nil
	})
}
