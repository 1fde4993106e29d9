package infrastructure

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseTables(t *testing.T) {
	assert.Equal(t, []string{"links", "organizations", "persons"}, BaseTables())
}

func TestTableInputLinks(t *testing.T) {
	input, err := TableInput("links", "dev_links")
	require.NoError(t, err)

	assert.Equal(t, "dev_links", aws.ToString(input.TableName))
	assert.Equal(t, types.BillingModePayPerRequest, input.BillingMode)
	assert.Nil(t, input.ProvisionedThroughput)
	require.Len(t, input.KeySchema, 1)
	assert.Equal(t, "id", aws.ToString(input.KeySchema[0].AttributeName))
	assert.Equal(t, types.KeyTypeHash, input.KeySchema[0].KeyType)

	var indexes []string
	for _, gsi := range input.GlobalSecondaryIndexes {
		indexes = append(indexes, aws.ToString(gsi.IndexName))
		assert.Equal(t, types.ProjectionTypeAll, gsi.Projection.ProjectionType)
		assert.Nil(t, gsi.ProvisionedThroughput)
	}
	assert.Equal(t, []string{"tenantId-index", "organizationId-index", "personId-index"}, indexes)

	require.NotNil(t, input.StreamSpecification)
	assert.True(t, aws.ToBool(input.StreamSpecification.StreamEnabled))
	assert.Equal(t, types.StreamViewTypeNewAndOldImages, input.StreamSpecification.StreamViewType)
}

func TestTableInputUnknown(t *testing.T) {
	_, err := TableInput("users", "dev_users")
	assert.Error(t, err)
}

func TestProvisionedThroughputDefaults(t *testing.T) {
	schema := TableSchema{
		TableName:              "t",
		KeySchema:              []KeySchemaElement{{AttributeName: "id", KeyType: "HASH"}},
		GlobalSecondaryIndexes: []GlobalSecondaryIndex{{IndexName: "g", Projection: Projection{ProjectionType: "ALL"}}},
	}
	input := schema.ToDynamoInput()

	assert.Equal(t, types.BillingModeProvisioned, input.BillingMode)
	require.NotNil(t, input.ProvisionedThroughput)
	assert.Equal(t, int64(5), aws.ToInt64(input.ProvisionedThroughput.ReadCapacityUnits))
	require.NotNil(t, input.GlobalSecondaryIndexes[0].ProvisionedThroughput)
	assert.Nil(t, input.StreamSpecification)
}
