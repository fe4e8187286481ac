package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/attendance-notifier/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DeliveryLogRepo stores the append-only delivery audit trail.
type DeliveryLogRepo struct {
	client    API
	tableName string
	retention time.Duration
}

// NewDeliveryLogRepo creates the repo. A positive retention stamps each entry with a TTL.
func NewDeliveryLogRepo(client API, tableName string, retention time.Duration) *DeliveryLogRepo {
	return &DeliveryLogRepo{client: client, tableName: tableName, retention: retention}
}

func (r *DeliveryLogRepo) Put(ctx context.Context, l *domain.DeliveryLog) error {
	if r.retention > 0 && l.ExpiresAt == 0 {
		l.ExpiresAt = l.SentAt.Add(r.retention).Unix()
	}
	item, err := attributevalue.MarshalMap(l)
	if err != nil {
		return fmt.Errorf("marshal delivery log: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// ListByToken pages through the logs of one push token, newest first.
func (r *DeliveryLogRepo) ListByToken(ctx context.Context, token string, f domain.LogFilter) ([]domain.DeliveryLog, string, error) {
	input := r.tokenQuery(token, f)
	if f.Limit > 0 {
		input.Limit = aws.Int32(f.Limit)
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
	var logs []domain.DeliveryLog
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &logs); err != nil {
		return nil, "", err
	}
	next, err := encodeCursor(out.LastEvaluatedKey)
	if err != nil {
		return nil, "", err
	}
	return logs, next, nil
}

// ListAllByToken drains every page matching f; used for statistics over a bounded window.
func (r *DeliveryLogRepo) ListAllByToken(ctx context.Context, token string, f domain.LogFilter) ([]domain.DeliveryLog, error) {
	input := r.tokenQuery(token, f)
	var all []domain.DeliveryLog
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		var page []domain.DeliveryLog
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return all, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (r *DeliveryLogRepo) tokenQuery(token string, f domain.LogFilter) *dynamodb.QueryInput {
	names := map[string]string{"#tok": fieldPushToken}
	values := map[string]types.AttributeValue{
		":tok": &types.AttributeValueMemberS{Value: token},
	}
	keyCond := "#tok = :tok"
	switch {
	case f.Since != nil && f.Until != nil:
		names["#sa"] = fieldSentAt
		values[":since"] = unixAV(*f.Since)
		values[":until"] = unixAV(*f.Until)
		keyCond += " AND #sa BETWEEN :since AND :until"
	case f.Since != nil:
		names["#sa"] = fieldSentAt
		values[":since"] = unixAV(*f.Since)
		keyCond += " AND #sa >= :since"
	case f.Until != nil:
		names["#sa"] = fieldSentAt
		values[":until"] = unixAV(*f.Until)
		keyCond += " AND #sa <= :until"
	}

	var filters []string
	if f.Outcome != "" {
		names["#oc"] = fieldOutcome
		values[":oc"] = &types.AttributeValueMemberS{Value: string(f.Outcome)}
		filters = append(filters, "#oc = :oc")
	}
	if f.Type != "" {
		names["#ty"] = fieldType
		values[":ty"] = &types.AttributeValueMemberS{Value: string(f.Type)}
		filters = append(filters, "#ty = :ty")
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(indexTokenSentAt),
		KeyConditionExpression:    aws.String(keyCond),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ScanIndexForward:          aws.Bool(false),
	}
	if expr := joinAnd(filters); expr != "" {
		input.FilterExpression = aws.String(expr)
	}
	return input
}
