package dal

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gigbook-backend/models"
	"gigbook-backend/utils/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type memoryTable map[string]map[string]types.AttributeValue

// MemoryStore is an in-process store implementing both DatabaseClientInterface and
// ChangeFeedInterface. It backs local development and the test suites.
// Items are keyed by their "id" attribute.
type MemoryStore struct {
	mu      sync.Mutex
	tables  map[string]memoryTable
	schemas map[string]*dynamodb.CreateTableInput
	subs    map[string]map[int]*memorySubscription
	nextSub int
	logger  logger.Logger
}

// NewMemoryStore creates an empty store
func NewMemoryStore(log logger.Logger) *MemoryStore {
	return &MemoryStore{
		tables:  map[string]memoryTable{},
		schemas: map[string]*dynamodb.CreateTableInput{},
		subs:    map[string]map[int]*memorySubscription{},
		logger:  log,
	}
}

// GetItem retrieves an item by primary key. It returns ErrItemNotFound when the key is absent.
func (m *MemoryStore) GetItem(ctx context.Context, cfg models.QueryConfig, result interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	item, ok := m.tables[cfg.TableName][cfg.KeyValue]
	m.mu.Unlock()
	if !ok {
		return ErrItemNotFound
	}
	return attributevalue.UnmarshalMap(item, result)
}

// CreateItem stores an item whose id must not exist yet
func (m *MemoryStore) CreateItem(ctx context.Context, tableName string, item interface{}) error {
	return m.put(ctx, tableName, item, true)
}

// PutItem stores or replaces an item
func (m *MemoryStore) PutItem(ctx context.Context, tableName string, item interface{}) error {
	return m.put(ctx, tableName, item, false)
}

func (m *MemoryStore) put(ctx context.Context, tableName string, item interface{}, mustNotExist bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}
	key := itemKey(av)
	if key == "" {
		return fmt.Errorf("item has no %q attribute", models.AttrID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	table := m.table(tableName)
	old, exists := table[key]
	if exists && mustNotExist {
		return ErrItemExists
	}
	table[key] = av
	m.publish(tableName, key, old, av)
	return nil
}

// UpdateItem sets attributes on an existing item. It returns ErrItemNotFound when the key is absent.
func (m *MemoryStore) UpdateItem(ctx context.Context, tableName, key, keyValue string, updates map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.tables[tableName][keyValue]
	if !ok {
		return ErrItemNotFound
	}
	next, err := applyUpdates(old, updates)
	if err != nil {
		return err
	}
	m.tables[tableName][keyValue] = next
	m.publish(tableName, keyValue, old, next)
	return nil
}

// DeleteItem removes an item; deleting an absent key is not an error
func (m *MemoryStore) DeleteItem(ctx context.Context, tableName, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.tables[tableName][value]
	if !ok {
		return nil
	}
	delete(m.tables[tableName], value)
	m.publish(tableName, value, old, nil)
	return nil
}

// TransactWrite checks every condition first, then applies all writes under one lock
func (m *MemoryStore) TransactWrite(ctx context.Context, writes []models.TransactWrite) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(writes) == 0 {
		return fmt.Errorf("no writes in transaction")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next := make([]map[string]types.AttributeValue, len(writes))
	seen := map[string]bool{}
	for i, w := range writes {
		key := w.ID
		if w.Type == models.WriteCreate {
			av, err := attributevalue.MarshalMap(w.Item)
			if err != nil {
				return fmt.Errorf("failed to marshal item: %w", err)
			}
			key = itemKey(av)
			next[i] = av
		}
		if key == "" {
			return fmt.Errorf("write %d has no %q", i, models.AttrID)
		}
		if seen[w.TableName+"/"+key] {
			return fmt.Errorf("transaction writes %s twice", key)
		}
		seen[w.TableName+"/"+key] = true

		current, exists := m.tables[w.TableName][key]
		ok, err := MatchItem(current, w.Expect)
		if err != nil {
			return err
		}
		switch w.Type {
		case models.WriteCreate:
			ok = ok && !exists
		case models.WriteUpdate:
			ok = ok && exists
			if ok {
				updated, err := applyUpdates(current, w.Updates)
				if err != nil {
					return err
				}
				next[i] = updated
			}
		case models.WriteDelete:
		default:
			return fmt.Errorf("unknown write type %q", w.Type)
		}
		if !ok {
			return &ConditionFailedError{Index: i}
		}
	}

	for i, w := range writes {
		table := m.table(w.TableName)
		key := w.ID
		if w.Type == models.WriteCreate {
			key = itemKey(next[i])
		}
		old, exists := table[key]
		if w.Type == models.WriteDelete {
			if !exists {
				continue
			}
			delete(table, key)
			m.publish(w.TableName, key, old, nil)
			continue
		}
		table[key] = next[i]
		m.publish(w.TableName, key, old, next[i])
	}
	return nil
}

func applyUpdates(old map[string]types.AttributeValue, updates map[string]interface{}) (map[string]types.AttributeValue, error) {
	next := make(map[string]types.AttributeValue, len(old)+len(updates))
	for k, v := range old {
		next[k] = v
	}
	for field, value := range updates {
		av, err := attributevalue.Marshal(value)
		if err != nil {
			return nil, err
		}
		next[field] = av
	}
	return next, nil
}

// QueryByIndex returns the items matching every condition of filter. The index name is
// not needed in memory.
func (m *MemoryStore) QueryByIndex(ctx context.Context, tableName, indexName string, filter models.Filter, results interface{}) error {
	return m.Scan(ctx, tableName, filter, results)
}

// Scan returns the items matching filter, ordered by id
func (m *MemoryStore) Scan(ctx context.Context, tableName string, filter models.Filter, results interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	items, err := m.matching(tableName, filter)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return attributevalue.UnmarshalListOfMaps(items, results)
}

// CreateTable registers a table; creating an existing table fails like DynamoDB does
func (m *MemoryStore) CreateTable(ctx context.Context, input *dynamodb.CreateTableInput) error {
	name := aws.ToString(input.TableName)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schemas[name]; ok {
		return &types.ResourceInUseException{Message: aws.String("Table already exists: " + name)}
	}
	m.schemas[name] = input
	m.table(name)
	return nil
}

// DescribeTable describes a table created through CreateTable
func (m *MemoryStore) DescribeTable(ctx context.Context, tableName string) (*dynamodb.DescribeTableOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	schema, ok := m.schemas[tableName]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("Requested resource not found: " + tableName)}
	}
	indexes := make([]types.GlobalSecondaryIndexDescription, 0, len(schema.GlobalSecondaryIndexes))
	for _, gsi := range schema.GlobalSecondaryIndexes {
		indexes = append(indexes, types.GlobalSecondaryIndexDescription{
			IndexName:   gsi.IndexName,
			KeySchema:   gsi.KeySchema,
			Projection:  gsi.Projection,
			IndexStatus: types.IndexStatusActive,
		})
	}
	return &dynamodb.DescribeTableOutput{
		Table: &types.TableDescription{
			TableName:              schema.TableName,
			TableStatus:            types.TableStatusActive,
			KeySchema:              schema.KeySchema,
			AttributeDefinitions:   schema.AttributeDefinitions,
			GlobalSecondaryIndexes: indexes,
			StreamSpecification:    schema.StreamSpecification,
			ItemCount:              aws.Int64(int64(len(m.tables[tableName]))),
		},
	}, nil
}

// DeleteTable drops a table and its items
func (m *MemoryStore) DeleteTable(ctx context.Context, input *dynamodb.DeleteTableInput) error {
	name := aws.ToString(input.TableName)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schemas[name]; !ok {
		return &types.ResourceNotFoundException{Message: aws.String("Requested resource not found: " + name)}
	}
	delete(m.schemas, name)
	delete(m.tables, name)
	return nil
}

// Subscribe delivers the matching items as added events, a synced marker, then every
// later change. The snapshot is queued under the store lock, so no write is missed.
func (m *MemoryStore) Subscribe(ctx context.Context, tableName string, filter models.Filter, onChange func(ChangeEvent), onError func(error)) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	subCtx, cancel := context.WithCancel(ctx)
	sub := &memorySubscription{
		filter:   filter,
		onChange: onChange,
		onError:  onError,
		wake:     make(chan struct{}, 1),
	}

	m.mu.Lock()
	items, err := m.matching(tableName, filter)
	if err != nil {
		m.mu.Unlock()
		cancel()
		return nil, err
	}
	for _, item := range items {
		sub.push(queuedChange{event: ChangeEvent{Type: models.ChangeAdded, Key: itemKey(item), Item: item}})
	}
	sub.push(queuedChange{event: ChangeEvent{Type: models.ChangeSynced}})

	m.nextSub++
	id := m.nextSub
	if m.subs[tableName] == nil {
		m.subs[tableName] = map[int]*memorySubscription{}
	}
	m.subs[tableName][id] = sub
	m.mu.Unlock()

	m.logger.Debugf("Memory subscription %d opened on %s with %d initial items", id, tableName, len(items))

	go sub.run(subCtx)

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			m.mu.Lock()
			delete(m.subs[tableName], id)
			m.mu.Unlock()
		})
	}, nil
}

// FailSubscriptions ends every subscription on tableName with err, after the changes
// already queued for them.
func (m *MemoryStore) FailSubscriptions(tableName string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sub := range m.subs[tableName] {
		sub.push(queuedChange{err: err})
		delete(m.subs[tableName], id)
	}
}

// Subscribers returns the number of open subscriptions on tableName
func (m *MemoryStore) Subscribers(tableName string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[tableName])
}

func (m *MemoryStore) table(name string) memoryTable {
	t, ok := m.tables[name]
	if !ok {
		t = memoryTable{}
		m.tables[name] = t
	}
	return t
}

// matching must be called with m.mu held
func (m *MemoryStore) matching(tableName string, filter models.Filter) ([]map[string]types.AttributeValue, error) {
	table := m.tables[tableName]
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	items := make([]map[string]types.AttributeValue, 0, len(keys))
	for _, k := range keys {
		ok, err := MatchItem(table[k], filter)
		if err != nil {
			return nil, err
		}
		if ok {
			items = append(items, table[k])
		}
	}
	return items, nil
}

// publish must be called with m.mu held so that deliveries keep store order
func (m *MemoryStore) publish(tableName, key string, old, next map[string]types.AttributeValue) {
	for _, sub := range m.subs[tableName] {
		oldMatch := false
		if old != nil {
			oldMatch, _ = MatchItem(old, sub.filter)
		}
		newMatch := false
		if next != nil {
			newMatch, _ = MatchItem(next, sub.filter)
		}

		switch {
		case newMatch && oldMatch:
			sub.push(queuedChange{event: ChangeEvent{Type: models.ChangeModified, Key: key, Item: next}})
		case newMatch:
			sub.push(queuedChange{event: ChangeEvent{Type: models.ChangeAdded, Key: key, Item: next}})
		case oldMatch:
			sub.push(queuedChange{event: ChangeEvent{Type: models.ChangeRemoved, Key: key, Item: old}})
		}
	}
}

type queuedChange struct {
	event ChangeEvent
	err   error
}

// memorySubscription delivers its queue on a dedicated goroutine
type memorySubscription struct {
	filter   models.Filter
	onChange func(ChangeEvent)
	onError  func(error)

	mu    sync.Mutex
	queue []queuedChange
	wake  chan struct{}
}

func (s *memorySubscription) push(c queuedChange) {
	s.mu.Lock()
	s.queue = append(s.queue, c)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *memorySubscription) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		}

		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, c := range batch {
			if ctx.Err() != nil {
				return
			}
			if c.err != nil {
				if s.onError != nil {
					s.onError(c.err)
				}
				return
			}
			s.onChange(c.event)
		}
	}
}
