package dynamo

import (
	"context"
	"fmt"

	"github.com/attendance-notifier/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// TimetableRepo reads weekly class slots. Writes belong to the timetable API and are kept minimal here.
type TimetableRepo struct {
	client    API
	tableName string
}

func NewTimetableRepo(client API, tableName string) *TimetableRepo {
	return &TimetableRepo{client: client, tableName: tableName}
}

// ListActiveForDay returns the user's active entries on the given weekday (0 = Sunday).
func (r *TimetableRepo) ListActiveForDay(ctx context.Context, userID string, day int) ([]domain.TimetableEntry, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexUserID),
		KeyConditionExpression: aws.String("#uid = :uid"),
		FilterExpression:       aws.String("#dow = :dow AND #act = :t"),
		ExpressionAttributeNames: map[string]string{
			"#uid": fieldUserID,
			"#dow": fieldDayOfWeek,
			"#act": fieldIsActive,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
			":dow": &types.AttributeValueMemberN{Value: fmt.Sprint(day)},
			":t":   &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		return nil, err
	}
	var entries []domain.TimetableEntry
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
