package dynamo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/attendance-notifier/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// NotificationRepo provides typed DynamoDB operations for the scheduled_notifications table.
// Every status change is a single UpdateItem guarded by "status = pending".
type NotificationRepo struct {
	client    API
	tableName string
}

func NewNotificationRepo(client API, tableName string) *NotificationRepo {
	return &NotificationRepo{client: client, tableName: tableName}
}

// Create stores a new notification. An existing id yields ErrConflict.
func (r *NotificationRepo) Create(ctx context.Context, n *domain.ScheduledNotification) error {
	item, err := attributevalue.MarshalMap(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": fieldNotificationID},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("notification %s exists: %w", n.NotificationID, domain.ErrConflict)
	}
	return err
}

func (r *NotificationRepo) Get(ctx context.Context, notificationID string) (*domain.ScheduledNotification, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldNotificationID, notificationID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("notification not found: %w", domain.ErrNotFound)
	}
	var n domain.ScheduledNotification
	if err := attributevalue.UnmarshalMap(out.Item, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// ListDue returns pending notifications with scheduled_for <= now, oldest first.
// Records still waiting out a retry backoff are filtered out server-side so they
// never take up the page.
func (r *NotificationRepo) ListDue(ctx context.Context, now time.Time, limit int32) ([]domain.ScheduledNotification, error) {
	return r.queryPending(ctx, indexStatusScheduledFor, fieldScheduledFor, now, limit,
		"attribute_not_exists(#nr) OR #nr <= :now", map[string]string{"#nr": fieldNextRetryAt}, nil)
}

// ListRetryDue returns pending notifications with retry_count > 0 whose next_retry_at has passed.
// The index is sparse: only re-queued records carry next_retry_at.
func (r *NotificationRepo) ListRetryDue(ctx context.Context, now time.Time, limit int32) ([]domain.ScheduledNotification, error) {
	return r.queryPending(ctx, indexStatusNextRetryAt, fieldNextRetryAt, now, limit,
		"#rc > :zero", map[string]string{"#rc": fieldRetryCount},
		map[string]types.AttributeValue{":zero": &types.AttributeValueMemberN{Value: "0"}})
}

// queryPending reads the pending partition of index up to now. Limit caps the
// items DynamoDB evaluates, not what the filter keeps, so pages are followed
// until limit matches are collected or the range is exhausted.
func (r *NotificationRepo) queryPending(ctx context.Context, index, rangeAttr string, now time.Time, limit int32, filter string, names map[string]string, values map[string]types.AttributeValue) ([]domain.ScheduledNotification, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(index),
		KeyConditionExpression: aws.String("#st = :pending AND #at <= :now"),
		FilterExpression:       aws.String(filter),
		ExpressionAttributeNames: map[string]string{
			"#st": fieldStatus,
			"#at": rangeAttr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending": &types.AttributeValueMemberS{Value: string(domain.StatusPending)},
			":now":     unixAV(now),
		},
		ScanIndexForward: aws.Bool(true),
	}
	for k, v := range names {
		input.ExpressionAttributeNames[k] = v
	}
	for k, v := range values {
		input.ExpressionAttributeValues[k] = v
	}

	var items []domain.ScheduledNotification
	for int32(len(items)) < limit {
		input.Limit = aws.Int32(limit - int32(len(items)))
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		var page []domain.ScheduledNotification
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		items = append(items, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return items, nil
}

// ListByUser pages through a user's notifications ordered by scheduled_for.
func (r *NotificationRepo) ListByUser(ctx context.Context, userID string, f domain.NotificationFilter) ([]domain.ScheduledNotification, string, error) {
	input := &dynamodb.QueryInput{
		TableName:                aws.String(r.tableName),
		IndexName:                aws.String(indexUserScheduledFor),
		KeyConditionExpression:   aws.String("#uid = :uid"),
		ExpressionAttributeNames: map[string]string{"#uid": fieldUserID},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(true),
	}
	if f.Limit > 0 {
		input.Limit = aws.Int32(f.Limit)
	}
	var filters []string
	if f.Status != "" {
		input.ExpressionAttributeNames["#st"] = fieldStatus
		input.ExpressionAttributeValues[":st"] = &types.AttributeValueMemberS{Value: string(f.Status)}
		filters = append(filters, "#st = :st")
	}
	if f.Type != "" {
		input.ExpressionAttributeNames["#ty"] = fieldType
		input.ExpressionAttributeValues[":ty"] = &types.AttributeValueMemberS{Value: string(f.Type)}
		filters = append(filters, "#ty = :ty")
	}
	if expr := joinAnd(filters); expr != "" {
		input.FilterExpression = aws.String(expr)
	}
	start, err := decodeCursor(f.Cursor)
	if err != nil {
		return nil, "", err
	}
	input.ExclusiveStartKey = start

	out, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, "", err
	}
	var items []domain.ScheduledNotification
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, "", err
	}
	next, err := encodeCursor(out.LastEvaluatedKey)
	if err != nil {
		return nil, "", err
	}
	return items, next, nil
}

// ListTerminalBefore pages through notifications in status whose processed_at is older than cutoff.
func (r *NotificationRepo) ListTerminalBefore(ctx context.Context, status domain.NotificationStatus, cutoff time.Time, limit int32, cursor string) ([]domain.ScheduledNotification, string, error) {
	start, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexStatusProcessedAt),
		KeyConditionExpression: aws.String("#st = :st AND #pa < :cutoff"),
		ExpressionAttributeNames: map[string]string{
			"#st": fieldStatus,
			"#pa": fieldProcessedAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":st":     &types.AttributeValueMemberS{Value: string(status)},
			":cutoff": unixAV(cutoff),
		},
		Limit:             aws.Int32(limit),
		ExclusiveStartKey: start,
	})
	if err != nil {
		return nil, "", err
	}
	var items []domain.ScheduledNotification
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, "", err
	}
	next, err := encodeCursor(out.LastEvaluatedKey)
	if err != nil {
		return nil, "", err
	}
	return items, next, nil
}

// DeleteMany removes notifications by id in BatchWriteItem chunks.
// Unprocessed items are retried a bounded number of times.
func (r *NotificationRepo) DeleteMany(ctx context.Context, ids []string) (int, error) {
	deleted := 0
	for _, chunk := range chunkStrings(ids, maxBatchWrite) {
		reqs := make([]types.WriteRequest, 0, len(chunk))
		for _, id := range chunk {
			reqs = append(reqs, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: strKey(fieldNotificationID, id)},
			})
		}
		pending := map[string][]types.WriteRequest{r.tableName: reqs}
		for attempt := 0; len(pending[r.tableName]) > 0; attempt++ {
			if attempt == 3 {
				return deleted, fmt.Errorf("delete notifications: %d items left unprocessed", len(pending[r.tableName]))
			}
			sent := len(pending[r.tableName])
			out, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return deleted, fmt.Errorf("delete notifications: %w", err)
			}
			pending = out.UnprocessedItems
			if pending == nil {
				pending = map[string][]types.WriteRequest{}
			}
			deleted += sent - len(pending[r.tableName])
		}
	}
	return deleted, nil
}

// MarkSent records a successful delivery.
func (r *NotificationRepo) MarkSent(ctx context.Context, notificationID, receiptID string, at time.Time) error {
	_, err := r.transition(ctx, notificationID, map[string]interface{}{
		fieldStatus:      domain.StatusSent,
		fieldReceiptID:   receiptID,
		fieldProcessedAt: attributevalue.UnixTime(at),
		fieldUpdatedAt:   at,
	}, nil)
	return err
}

// MarkFailed records a permanent failure.
func (r *NotificationRepo) MarkFailed(ctx context.Context, notificationID, reason string, at time.Time) error {
	_, err := r.transition(ctx, notificationID, map[string]interface{}{
		fieldStatus:      domain.StatusFailed,
		fieldLastError:   reason,
		fieldProcessedAt: attributevalue.UnixTime(at),
		fieldUpdatedAt:   at,
	}, nil)
	return err
}

// ScheduleRetry keeps the notification pending with a bumped retry counter.
// fromRetryCount must match the stored counter, so one ticket applied twice only counts once.
func (r *NotificationRepo) ScheduleRetry(ctx context.Context, notificationID string, fromRetryCount, retryCount int, nextRetryAt time.Time, reason string, at time.Time) error {
	_, err := r.transition(ctx, notificationID, map[string]interface{}{
		fieldRetryCount:  retryCount,
		fieldNextRetryAt: attributevalue.UnixTime(nextRetryAt),
		fieldLastError:   reason,
		fieldUpdatedAt:   at,
	}, map[string]interface{}{fieldRetryCount: fromRetryCount})
	return err
}

// Cancel moves a pending notification to cancelled and returns the stored result.
func (r *NotificationRepo) Cancel(ctx context.Context, notificationID string, at time.Time) (*domain.ScheduledNotification, error) {
	return r.transition(ctx, notificationID, map[string]interface{}{
		fieldStatus:      domain.StatusCancelled,
		fieldProcessedAt: attributevalue.UnixTime(at),
		fieldUpdatedAt:   at,
	}, nil)
}

// UpdatePending applies content changes to a notification that has not been processed yet.
func (r *NotificationRepo) UpdatePending(ctx context.Context, notificationID string, updates map[string]interface{}) (*domain.ScheduledNotification, error) {
	updates[fieldUpdatedAt] = time.Now().UTC()
	return r.transition(ctx, notificationID, updates, nil)
}

// transition is the atomic "update where id = X and status = pending" primitive.
// A failed guard is reported as ErrAlreadyHandled.
func (r *NotificationRepo) transition(ctx context.Context, notificationID string, updates, guards map[string]interface{}) (*domain.ScheduledNotification, error) {
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return nil, err
	}
	if err := ue.requireEqual(fieldStatus, domain.StatusPending); err != nil {
		return nil, err
	}
	for attr, v := range guards {
		if err := ue.requireEqual(attr, v); err != nil {
			return nil, err
		}
	}
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldNotificationID, notificationID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String(ue.Condition),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if isConditionFailed(err) {
		return nil, fmt.Errorf("notification %s: %w", notificationID, domain.ErrAlreadyHandled)
	}
	if err != nil {
		return nil, err
	}
	var n domain.ScheduledNotification
	if err := attributevalue.UnmarshalMap(out.Attributes, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func unixAV(t time.Time) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(t.Unix(), 10)}
}

func joinAnd(clauses []string) string {
	expr := ""
	for i, c := range clauses {
		if i > 0 {
			expr += " AND "
		}
		expr += c
	}
	return expr
}
