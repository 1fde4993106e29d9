package infrastructure

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/tidwall/gjson"
)

// TableSchema mirrors one entry of table_schema.json
type TableSchema struct {
	TableName              string                 `json:"TableName"`
	BillingMode            string                 `json:"BillingMode"`
	AttributeDefinitions   []AttributeDefinition  `json:"AttributeDefinitions"`
	KeySchema              []KeySchemaElement     `json:"KeySchema"`
	ProvisionedThroughput  *Throughput            `json:"ProvisionedThroughput,omitempty"`
	GlobalSecondaryIndexes []GlobalSecondaryIndex `json:"GlobalSecondaryIndexes,omitempty"`
	StreamSpecification    *StreamSpecification   `json:"StreamSpecification,omitempty"`
}

type AttributeDefinition struct {
	AttributeName string `json:"AttributeName"`
	AttributeType string `json:"AttributeType"`
}

type KeySchemaElement struct {
	AttributeName string `json:"AttributeName"`
	KeyType       string `json:"KeyType"`
}

type Throughput struct {
	ReadCapacityUnits  int64 `json:"ReadCapacityUnits"`
	WriteCapacityUnits int64 `json:"WriteCapacityUnits"`
}

type GlobalSecondaryIndex struct {
	IndexName             string             `json:"IndexName"`
	KeySchema             []KeySchemaElement `json:"KeySchema"`
	Projection            Projection         `json:"Projection"`
	ProvisionedThroughput *Throughput        `json:"ProvisionedThroughput,omitempty"`
}

type Projection struct {
	ProjectionType string `json:"ProjectionType"`
}

// StreamSpecification enables the change stream the live caches subscribe to
type StreamSpecification struct {
	StreamEnabled  bool   `json:"StreamEnabled"`
	StreamViewType string `json:"StreamViewType"`
}

//go:embed table_schema.json
var tablesSchema []byte

// BaseTables lists the schema keys in table_schema.json
func BaseTables() []string {
	names := []string{}
	gjson.ParseBytes(tablesSchema).ForEach(func(key, _ gjson.Result) bool {
		names = append(names, key.String())
		return true
	})
	sort.Strings(names)
	return names
}

// TableInput builds the CreateTable request of a base table under its physical name
func TableInput(baseName, tableName string) (*dynamodb.CreateTableInput, error) {
	tableJSON := gjson.GetBytes(tablesSchema, baseName)
	if !tableJSON.Exists() {
		return nil, fmt.Errorf("table schema not found for key: %s", baseName)
	}

	var schema TableSchema
	if err := json.Unmarshal([]byte(tableJSON.Raw), &schema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema JSON: %w", err)
	}
	schema.TableName = tableName
	return schema.ToDynamoInput(), nil
}

// ToDynamoInput converts the schema to a DynamoDB request
func (ts *TableSchema) ToDynamoInput() *dynamodb.CreateTableInput {
	input := &dynamodb.CreateTableInput{
		TableName:            aws.String(ts.TableName),
		AttributeDefinitions: make([]types.AttributeDefinition, 0, len(ts.AttributeDefinitions)),
		KeySchema:            keySchema(ts.KeySchema),
	}
	for _, a := range ts.AttributeDefinitions {
		input.AttributeDefinitions = append(input.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(a.AttributeName),
			AttributeType: types.ScalarAttributeType(a.AttributeType),
		})
	}

	payPerRequest := ts.BillingMode == string(types.BillingModePayPerRequest)
	if payPerRequest {
		input.BillingMode = types.BillingModePayPerRequest
	} else {
		input.BillingMode = types.BillingModeProvisioned
		input.ProvisionedThroughput = ts.ProvisionedThroughput.toDynamo()
	}

	for _, g := range ts.GlobalSecondaryIndexes {
		gsi := types.GlobalSecondaryIndex{
			IndexName:  aws.String(g.IndexName),
			KeySchema:  keySchema(g.KeySchema),
			Projection: &types.Projection{ProjectionType: types.ProjectionType(g.Projection.ProjectionType)},
		}
		if !payPerRequest {
			gsi.ProvisionedThroughput = g.ProvisionedThroughput.toDynamo()
		}
		input.GlobalSecondaryIndexes = append(input.GlobalSecondaryIndexes, gsi)
	}

	if ts.StreamSpecification != nil {
		input.StreamSpecification = &types.StreamSpecification{
			StreamEnabled:  aws.Bool(ts.StreamSpecification.StreamEnabled),
			StreamViewType: types.StreamViewType(ts.StreamSpecification.StreamViewType),
		}
	}
	return input
}

func keySchema(elements []KeySchemaElement) []types.KeySchemaElement {
	out := make([]types.KeySchemaElement, 0, len(elements))
	for _, k := range elements {
		out = append(out, types.KeySchemaElement{
			AttributeName: aws.String(k.AttributeName),
			KeyType:       types.KeyType(k.KeyType),
		})
	}
	return out
}

// toDynamo defaults to 5/5 units when the schema names none
func (t *Throughput) toDynamo() *types.ProvisionedThroughput {
	if t == nil {
		t = &Throughput{ReadCapacityUnits: 5, WriteCapacityUnits: 5}
	}
	return &types.ProvisionedThroughput{
		ReadCapacityUnits:  aws.Int64(t.ReadCapacityUnits),
		WriteCapacityUnits: aws.Int64(t.WriteCapacityUnits),
	}
}
