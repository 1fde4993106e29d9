package dal

import (
	"context"
	"fmt"

	"gigbook-backend/models"
	"gigbook-backend/utils/logger"
)

// DALContainer implements DALContainerInterface
type DALContainer struct {
	databaseClient DatabaseClientInterface
	changeFeed     ChangeFeedInterface
}

// NewDALContainer wires the store adapter selected by cfg.StoreBackend
func NewDALContainer(ctx context.Context, cfg *models.Config, log logger.Logger) (*DALContainer, error) {
	switch cfg.StoreBackend {
	case models.StoreBackendMemory:
		store := NewMemoryStore(log)
		log.Info("Using in-memory contact store")
		return &DALContainer{databaseClient: store, changeFeed: store}, nil
	case models.StoreBackendDynamoDB, "":
		client, err := NewDynamoDBClient(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		feed, err := NewStreamFeed(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return &DALContainer{databaseClient: client, changeFeed: feed}, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// NewDALContainerWith wraps existing adapters
func NewDALContainerWith(db DatabaseClientInterface, feed ChangeFeedInterface) *DALContainer {
	return &DALContainer{databaseClient: db, changeFeed: feed}
}

// GetDatabaseClient returns the database client
func (c *DALContainer) GetDatabaseClient() DatabaseClientInterface {
	return c.databaseClient
}

// GetChangeFeed returns the change feed
func (c *DALContainer) GetChangeFeed() ChangeFeedInterface {
	return c.changeFeed
}
