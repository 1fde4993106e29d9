package dal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gigbook-backend/models"
	"gigbook-backend/utils/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type DynamoDBClient struct {
	client *dynamodb.Client
	config *models.Config
	logger logger.Logger
}

// loadAWSConfig resolves region and static credentials shared by the table and stream clients
func loadAWSConfig(ctx context.Context, cfg *models.Config) (aws.Config, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Use static credentials if provided
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		awsCfg.Credentials = aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AWSAccessKeyID,
			cfg.AWSSecretAccessKey,
			"", // session token
		))
	}
	return awsCfg, nil
}

// NewDynamoDBClient creates a new DynamoDB client
func NewDynamoDBClient(ctx context.Context, cfg *models.Config, log logger.Logger) (*DynamoDBClient, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		// Override endpoint for local DynamoDB
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	})

	dbClient := &DynamoDBClient{
		client: client,
		config: cfg,
		logger: log,
	}

	log.Info("✅ DynamoDB client initialized successfully")
	return dbClient, nil
}

// GetItem retrieves an item by primary key. It returns ErrItemNotFound when the key is absent.
func (db *DynamoDBClient) GetItem(ctx context.Context, cfg models.QueryConfig, result interface{}) error {
	key, err := keyAttribute(cfg)
	if err != nil {
		return err
	}

	output, err := db.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(cfg.TableName),
		Key:            map[string]types.AttributeValue{cfg.KeyName: key},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		db.logger.Errorf("Failed to get item from %s: %v", cfg.TableName, err)
		return err
	}

	if output.Item == nil {
		return ErrItemNotFound
	}

	return attributevalue.UnmarshalMap(output.Item, result)
}

// CreateItem stores an item whose id must not exist yet
func (db *DynamoDBClient) CreateItem(ctx context.Context, tableName string, item interface{}) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	_, err = db.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(tableName),
		Item:                     av,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": models.AttrID},
	})
	if isConditionFailed(err) {
		return ErrItemExists
	}
	return err
}

// PutItem stores an item in DynamoDB
func (db *DynamoDBClient) PutItem(ctx context.Context, tableName string, item interface{}) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(tableName),
		Item:      av,
	}

	_, err = db.client.PutItem(ctx, input)
	return err
}

// UpdateItem sets attributes on an existing item. It returns ErrItemNotFound when the key is absent.
func (db *DynamoDBClient) UpdateItem(ctx context.Context, tableName, key, keyValue string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return errors.New("no attributes to update")
	}

	expressionAttributeNames := map[string]string{"#pk": key}
	expressionAttributeValues := make(map[string]types.AttributeValue)
	updateExpression, err := setExpression(updates, expressionAttributeNames, expressionAttributeValues)
	if err != nil {
		return err
	}

	input := &dynamodb.UpdateItemInput{
		TableName: aws.String(tableName),
		Key: map[string]types.AttributeValue{
			key: &types.AttributeValueMemberS{Value: keyValue},
		},
		UpdateExpression:          aws.String(updateExpression),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  expressionAttributeNames,
		ExpressionAttributeValues: expressionAttributeValues,
		ReturnValues:              types.ReturnValueNone,
	}

	_, err = db.client.UpdateItem(ctx, input)
	if isConditionFailed(err) {
		return ErrItemNotFound
	}
	return err
}

// setExpression renders updates as a SET expression, adding its placeholders to names and values
func setExpression(updates map[string]interface{}, names map[string]string, values map[string]types.AttributeValue) (string, error) {
	fields := make([]string, 0, len(updates))
	for field := range updates {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for i, field := range fields {
		attrName := "#u" + strconv.Itoa(i)
		attrValue := ":u" + strconv.Itoa(i)

		av, err := attributevalue.Marshal(updates[field])
		if err != nil {
			return "", err
		}
		names[attrName] = field
		values[attrValue] = av
		parts = append(parts, attrName+" = "+attrValue)
	}
	return "SET " + strings.Join(parts, ", "), nil
}

// expectExpression renders equality conditions on the current item. A nil value
// accepts an absent or NULL attribute.
func expectExpression(expect models.Filter, names map[string]string, values map[string]types.AttributeValue) (string, error) {
	parts := make([]string, 0, len(expect))
	for i, cond := range expect {
		if cond.Op != models.OpEquals {
			return "", fmt.Errorf("unsupported write condition %q on %s", cond.Op, cond.Field)
		}
		name := "#c" + strconv.Itoa(i)
		value := ":c" + strconv.Itoa(i)
		names[name] = cond.Field

		if cond.Value == nil {
			values[value] = &types.AttributeValueMemberS{Value: "NULL"}
			parts = append(parts, "(attribute_not_exists("+name+") OR attribute_type("+name+", "+value+"))")
			continue
		}
		av, err := attributevalue.Marshal(cond.Value)
		if err != nil {
			return "", fmt.Errorf("invalid value for %s: %w", cond.Field, err)
		}
		values[value] = av
		parts = append(parts, name+" = "+value)
	}
	return strings.Join(parts, " AND "), nil
}

// TransactWrite runs the writes in one TransactWriteItems call
func (db *DynamoDBClient) TransactWrite(ctx context.Context, writes []models.TransactWrite) error {
	if len(writes) == 0 {
		return errors.New("no writes in transaction")
	}

	items := make([]types.TransactWriteItem, 0, len(writes))
	for _, w := range writes {
		item, err := transactItem(w)
		if err != nil {
			return err
		}
		items = append(items, item)
	}

	_, err := db.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for i, reason := range canceled.CancellationReasons {
			if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
				return &ConditionFailedError{Index: i}
			}
		}
	}
	if err != nil {
		db.logger.Errorf("Transaction of %d writes failed: %v", len(writes), err)
	}
	return err
}

func transactItem(w models.TransactWrite) (types.TransactWriteItem, error) {
	names := map[string]string{"#pk": models.AttrID}
	values := map[string]types.AttributeValue{}
	key := map[string]types.AttributeValue{models.AttrID: &types.AttributeValueMemberS{Value: w.ID}}

	expect, err := expectExpression(w.Expect, names, values)
	if err != nil {
		return types.TransactWriteItem{}, err
	}
	condition := func(base string) *string {
		switch {
		case base == "":
			return aws.String(expect)
		case expect == "":
			return aws.String(base)
		default:
			return aws.String(base + " AND " + expect)
		}
	}
	valuesOrNil := func() map[string]types.AttributeValue {
		if len(values) == 0 {
			return nil
		}
		return values
	}

	switch w.Type {
	case models.WriteCreate:
		av, err := attributevalue.MarshalMap(w.Item)
		if err != nil {
			return types.TransactWriteItem{}, fmt.Errorf("failed to marshal item: %w", err)
		}
		return types.TransactWriteItem{Put: &types.Put{
			TableName:                 aws.String(w.TableName),
			Item:                      av,
			ConditionExpression:       condition("attribute_not_exists(#pk)"),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: valuesOrNil(),
		}}, nil
	case models.WriteUpdate:
		if len(w.Updates) == 0 {
			return types.TransactWriteItem{}, fmt.Errorf("no attributes to update on %s", w.ID)
		}
		set, err := setExpression(w.Updates, names, values)
		if err != nil {
			return types.TransactWriteItem{}, err
		}
		return types.TransactWriteItem{Update: &types.Update{
			TableName:                 aws.String(w.TableName),
			Key:                       key,
			UpdateExpression:          aws.String(set),
			ConditionExpression:       condition("attribute_exists(#pk)"),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		}}, nil
	case models.WriteDelete:
		del := &types.Delete{TableName: aws.String(w.TableName), Key: key}
		if expect != "" {
			delete(names, "#pk")
			del.ConditionExpression = aws.String(expect)
			del.ExpressionAttributeNames = names
			del.ExpressionAttributeValues = valuesOrNil()
		}
		return types.TransactWriteItem{Delete: del}, nil
	default:
		return types.TransactWriteItem{}, fmt.Errorf("unknown write type %q", w.Type)
	}
}

// DeleteItem deletes an item from DynamoDB
func (db *DynamoDBClient) DeleteItem(ctx context.Context, tableName, key, value string) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(tableName),
		Key: map[string]types.AttributeValue{
			key: &types.AttributeValueMemberS{Value: value},
		},
	}

	_, err := db.client.DeleteItem(ctx, input)
	return err
}

// QueryByIndex queries a global secondary index. The first condition of filter is the
// partition key condition and must be an equality; the rest become a filter expression.
// Every page is read.
func (db *DynamoDBClient) QueryByIndex(ctx context.Context, tableName, indexName string, filter models.Filter, results interface{}) error {
	if len(filter) == 0 || filter[0].Op != models.OpEquals {
		return errors.New("query requires an equality key condition")
	}

	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	keyCondition, err := filterExpression(filter[:1], 0, names, values)
	if err != nil {
		return err
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(tableName),
		IndexName:                 aws.String(indexName),
		KeyConditionExpression:    aws.String(keyCondition),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}
	if len(filter) > 1 {
		rest, err := filterExpression(filter[1:], 1, names, values)
		if err != nil {
			return err
		}
		input.FilterExpression = aws.String(rest)
	}

	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewQueryPaginator(db.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			db.logger.Errorf("Failed to query %s on %s: %v", tableName, indexName, err)
			return err
		}
		items = append(items, page.Items...)
	}

	return attributevalue.UnmarshalListOfMaps(items, results)
}

// Scan scans the entire table, optionally filtered
func (db *DynamoDBClient) Scan(ctx context.Context, tableName string, filter models.Filter, results interface{}) error {
	input := &dynamodb.ScanInput{
		TableName: aws.String(tableName),
	}
	if len(filter) > 0 {
		names := map[string]string{}
		values := map[string]types.AttributeValue{}
		expr, err := filterExpression(filter, 0, names, values)
		if err != nil {
			return err
		}
		input.FilterExpression = aws.String(expr)
		input.ExpressionAttributeNames = names
		input.ExpressionAttributeValues = values
	}

	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewScanPaginator(db.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return err
		}
		items = append(items, page.Items...)
	}

	return attributevalue.UnmarshalListOfMaps(items, results)
}

// CreateTable creates a table
func (db *DynamoDBClient) CreateTable(ctx context.Context, input *dynamodb.CreateTableInput) error {
	_, err := db.client.CreateTable(ctx, input)
	return err
}

// DescribeTable describes a table
func (db *DynamoDBClient) DescribeTable(ctx context.Context, tableName string) (*dynamodb.DescribeTableOutput, error) {
	input := &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	}
	return db.client.DescribeTable(ctx, input)
}

// DeleteTable deletes a table
func (db *DynamoDBClient) DeleteTable(ctx context.Context, input *dynamodb.DeleteTableInput) error {
	_, err := db.client.DeleteTable(ctx, input)
	return err
}

func keyAttribute(cfg models.QueryConfig) (types.AttributeValue, error) {
	switch cfg.KeyType {
	case models.StringType:
		return &types.AttributeValueMemberS{Value: cfg.KeyValue}, nil
	case models.NumberType:
		return &types.AttributeValueMemberN{Value: cfg.KeyValue}, nil
	case models.BinaryType:
		return &types.AttributeValueMemberB{Value: []byte(cfg.KeyValue)}, nil
	default:
		return nil, fmt.Errorf("unsupported key type %d", cfg.KeyType)
	}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// PrintPrettyJSON takes any struct or map and returns it as pretty JSON
func PrintPrettyJSON(data interface{}) string {
	prettyJSON, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		return "Failed to generate JSON: " + err.Error()
	}
	return string(prettyJSON)
}
