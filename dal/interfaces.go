package dal

import (
	"context"
	"errors"
	"fmt"

	"gigbook-backend/models"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	// ErrItemNotFound is returned by GetItem and by conditional updates when the key is absent
	ErrItemNotFound = errors.New("item not found")
	// ErrItemExists is returned by CreateItem when the key is already taken
	ErrItemExists = errors.New("item already exists")
	// ErrConditionFailed is wrapped by ConditionFailedError
	ErrConditionFailed = errors.New("write condition failed")
)

// ConditionFailedError cancels a transaction. Index is the position of the first write
// whose condition did not hold.
type ConditionFailedError struct {
	Index int
}

func (e *ConditionFailedError) Error() string {
	return fmt.Sprintf("transaction cancelled: condition of write %d failed", e.Index)
}

func (e *ConditionFailedError) Unwrap() error {
	return ErrConditionFailed
}

// DatabaseClientInterface defines the contract for database operations
type DatabaseClientInterface interface {
	// Core CRUD operations
	GetItem(ctx context.Context, config models.QueryConfig, result interface{}) error
	CreateItem(ctx context.Context, tableName string, item interface{}) error
	PutItem(ctx context.Context, tableName string, item interface{}) error
	UpdateItem(ctx context.Context, tableName, key, keyValue string, updates map[string]interface{}) error
	DeleteItem(ctx context.Context, tableName, key, value string) error

	// TransactWrite applies every write or none. A failed condition is a *ConditionFailedError.
	TransactWrite(ctx context.Context, writes []models.TransactWrite) error

	// Query and Scan operations
	QueryByIndex(ctx context.Context, tableName, indexName string, filter models.Filter, results interface{}) error
	Scan(ctx context.Context, tableName string, filter models.Filter, results interface{}) error

	// Table management operations
	CreateTable(ctx context.Context, input *dynamodb.CreateTableInput) error
	DescribeTable(ctx context.Context, tableName string) (*dynamodb.DescribeTableOutput, error)
	DeleteTable(ctx context.Context, input *dynamodb.DeleteTableInput) error
}

// ChangeEvent is one delivery of a subscription
type ChangeEvent struct {
	Type models.ChangeType
	Key  string
	Item map[string]types.AttributeValue
}

// ChangeFeedInterface delivers the items of a table matching a filter: the initial
// snapshot as added events, one synced marker, then deltas. Deliveries of one
// subscription are sequential and in store order. An error ends the subscription.
type ChangeFeedInterface interface {
	Subscribe(ctx context.Context, tableName string, filter models.Filter, onChange func(ChangeEvent), onError func(error)) (cancel func(), err error)
}

// DALContainerInterface defines the contract for the DAL container
type DALContainerInterface interface {
	GetDatabaseClient() DatabaseClientInterface
	GetChangeFeed() ChangeFeedInterface
}
