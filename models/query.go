package models

// AttributeType enum for different DynamoDB key attribute types
type AttributeType int

const (
	StringType AttributeType = iota
	NumberType
	BinaryType
)

// QueryConfig holds the configuration for a single item lookup
type QueryConfig struct {
	TableName string
	KeyName   string
	KeyValue  string
	KeyType   AttributeType
}

// KeyLookup builds a QueryConfig on the "id" string key of a table.
func KeyLookup(tableName, id string) QueryConfig {
	return QueryConfig{
		TableName: tableName,
		KeyName:   AttrID,
		KeyValue:  id,
		KeyType:   StringType,
	}
}

// WriteType is the kind of one write inside a transaction
type WriteType string

const (
	// WriteCreate stores Item; the id must not exist yet
	WriteCreate WriteType = "create"
	// WriteUpdate sets Updates on the existing item ID
	WriteUpdate WriteType = "update"
	// WriteDelete removes the item ID
	WriteDelete WriteType = "delete"
)

// TransactWrite is one write of an all-or-nothing transaction. Expect holds equality
// conditions on the current item; a nil value matches an absent or NULL attribute.
type TransactWrite struct {
	Type      WriteType
	TableName string
	ID        string
	Item      interface{}
	Updates   map[string]interface{}
	Expect    Filter
}
