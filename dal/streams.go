package dal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gigbook-backend/models"
	"gigbook-backend/utils/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	streamtypes "github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"
)

const defaultStreamPollInterval = time.Second

// StreamFeed implements ChangeFeedInterface on top of DynamoDB Streams.
// The initial snapshot is read from the "<field>-index" GSI of the first filter condition.
type StreamFeed struct {
	db      *dynamodb.Client
	streams *dynamodbstreams.Client
	config  *models.Config
	logger  logger.Logger
}

// NewStreamFeed creates a change feed reading the tables' NEW_AND_OLD_IMAGES streams
func NewStreamFeed(ctx context.Context, cfg *models.Config, log logger.Logger) (*StreamFeed, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	db := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	})
	streams := dynamodbstreams.NewFromConfig(awsCfg, func(o *dynamodbstreams.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	})

	log.Info("✅ DynamoDB stream feed initialized successfully")
	return &StreamFeed{db: db, streams: streams, config: cfg, logger: log}, nil
}

// shardCursor tracks the read position in one open shard
type shardCursor struct {
	shardID  string
	iterator *string
}

type streamSubscription struct {
	feed      *StreamFeed
	table     string
	streamArn string
	filter    models.Filter
	onChange  func(ChangeEvent)
	onError   func(error)

	seen    map[string]bool
	cursors []*shardCursor
}

// Subscribe opens a subscription. Iterators are positioned before the snapshot is read,
// so no write between the two is lost; it may be delivered twice as an upsert.
func (f *StreamFeed) Subscribe(ctx context.Context, tableName string, filter models.Filter, onChange func(ChangeEvent), onError func(error)) (func(), error) {
	if len(filter) == 0 || filter[0].Op != models.OpEquals {
		return nil, errors.New("subscription requires an equality condition on an indexed attribute")
	}

	desc, err := f.db.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(tableName)})
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", tableName, err)
	}
	if desc.Table == nil || desc.Table.LatestStreamArn == nil {
		return nil, fmt.Errorf("table %s has no stream enabled", tableName)
	}

	sub := &streamSubscription{
		feed:      f,
		table:     tableName,
		streamArn: aws.ToString(desc.Table.LatestStreamArn),
		filter:    filter,
		onChange:  onChange,
		onError:   onError,
		seen:      map[string]bool{},
	}
	if err := sub.refreshShards(ctx, streamtypes.ShardIteratorTypeLatest); err != nil {
		return nil, err
	}

	snapshot, err := f.querySnapshot(ctx, tableName, filter)
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	go sub.run(subCtx, snapshot)

	f.logger.Infof("Subscribed to %s stream with %d initial items", tableName, len(snapshot))
	return cancel, nil
}

func (f *StreamFeed) querySnapshot(ctx context.Context, tableName string, filter models.Filter) ([]map[string]types.AttributeValue, error) {
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	keyCondition, err := filterExpression(filter[:1], 0, names, values)
	if err != nil {
		return nil, err
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(tableName),
		IndexName:                 aws.String(filter[0].Field + "-index"),
		KeyConditionExpression:    aws.String(keyCondition),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}
	if len(filter) > 1 {
		rest, err := filterExpression(filter[1:], 1, names, values)
		if err != nil {
			return nil, err
		}
		input.FilterExpression = aws.String(rest)
	}

	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewQueryPaginator(f.db, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read initial snapshot of %s: %w", tableName, err)
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

func (s *streamSubscription) run(ctx context.Context, snapshot []map[string]types.AttributeValue) {
	for _, item := range snapshot {
		if ctx.Err() != nil {
			return
		}
		s.onChange(ChangeEvent{Type: models.ChangeAdded, Key: itemKey(item), Item: item})
	}
	if ctx.Err() != nil {
		return
	}
	s.onChange(ChangeEvent{Type: models.ChangeSynced})

	interval := s.feed.config.StreamPollInterval
	if interval <= 0 {
		interval = defaultStreamPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.poll(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				s.feed.logger.Errorf("Stream subscription on %s failed: %v", s.table, err)
				s.onError(err)
				return
			}
		}
	}
}

func (s *streamSubscription) poll(ctx context.Context) error {
	closed := false
	open := s.cursors[:0]
	for _, cursor := range s.cursors {
		out, err := s.feed.streams.GetRecords(ctx, &dynamodbstreams.GetRecordsInput{ShardIterator: cursor.iterator})
		if err != nil {
			return fmt.Errorf("failed to read shard %s: %w", cursor.shardID, err)
		}
		for _, record := range out.Records {
			if err := s.deliver(record); err != nil {
				return err
			}
		}
		if out.NextShardIterator == nil {
			closed = true
			continue
		}
		cursor.iterator = out.NextShardIterator
		open = append(open, cursor)
	}
	s.cursors = open

	if closed {
		return s.refreshShards(ctx, streamtypes.ShardIteratorTypeTrimHorizon)
	}
	return nil
}

// deliver maps a stream record to a change relative to the subscription filter:
// an item entering the filter is added, one leaving it is removed.
func (s *streamSubscription) deliver(record streamtypes.Record) error {
	if record.Dynamodb == nil {
		return nil
	}
	oldImage, err := attributevalue.FromDynamoDBStreamsMap(record.Dynamodb.OldImage)
	if err != nil {
		return fmt.Errorf("failed to convert old image: %w", err)
	}
	newImage, err := attributevalue.FromDynamoDBStreamsMap(record.Dynamodb.NewImage)
	if err != nil {
		return fmt.Errorf("failed to convert new image: %w", err)
	}

	oldMatch := false
	if len(oldImage) > 0 {
		if oldMatch, err = MatchItem(oldImage, s.filter); err != nil {
			return err
		}
	}
	newMatch := false
	if record.EventName != streamtypes.OperationTypeRemove && len(newImage) > 0 {
		if newMatch, err = MatchItem(newImage, s.filter); err != nil {
			return err
		}
	}

	switch {
	case newMatch && oldMatch:
		s.onChange(ChangeEvent{Type: models.ChangeModified, Key: itemKey(newImage), Item: newImage})
	case newMatch:
		s.onChange(ChangeEvent{Type: models.ChangeAdded, Key: itemKey(newImage), Item: newImage})
	case oldMatch:
		s.onChange(ChangeEvent{Type: models.ChangeRemoved, Key: itemKey(oldImage), Item: oldImage})
	}
	return nil
}

// refreshShards opens a cursor on every shard not seen before
func (s *streamSubscription) refreshShards(ctx context.Context, position streamtypes.ShardIteratorType) error {
	var start *string
	for {
		out, err := s.feed.streams.DescribeStream(ctx, &dynamodbstreams.DescribeStreamInput{
			StreamArn:             aws.String(s.streamArn),
			ExclusiveStartShardId: start,
		})
		if err != nil {
			return fmt.Errorf("failed to describe stream of %s: %w", s.table, err)
		}
		if out.StreamDescription == nil {
			return nil
		}

		for _, shard := range out.StreamDescription.Shards {
			id := aws.ToString(shard.ShardId)
			if s.seen[id] {
				continue
			}
			s.seen[id] = true

			// Shards already closed when we subscribed hold only history.
			if position == streamtypes.ShardIteratorTypeLatest && shard.SequenceNumberRange != nil && shard.SequenceNumberRange.EndingSequenceNumber != nil {
				continue
			}

			it, err := s.feed.streams.GetShardIterator(ctx, &dynamodbstreams.GetShardIteratorInput{
				StreamArn:         aws.String(s.streamArn),
				ShardId:           shard.ShardId,
				ShardIteratorType: position,
			})
			if err != nil {
				return fmt.Errorf("failed to open shard %s: %w", id, err)
			}
			s.cursors = append(s.cursors, &shardCursor{shardID: id, iterator: it.ShardIterator})
		}

		start = out.StreamDescription.LastEvaluatedShardId
		if start == nil {
			return nil
		}
	}
}
