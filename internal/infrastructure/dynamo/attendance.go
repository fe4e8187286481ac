package dynamo

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// AttendanceRepo answers "has this class already been marked today".
type AttendanceRepo struct {
	client    API
	tableName string
}

func NewAttendanceRepo(client API, tableName string) *AttendanceRepo {
	return &AttendanceRepo{client: client, tableName: tableName}
}

// Exists reports whether userID has any attendance record for entryID on date (domain.DateLayout).
func (r *AttendanceRepo) Exists(ctx context.Context, userID, entryID, date string) (bool, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexUserDate),
		KeyConditionExpression: aws.String("#uid = :uid AND #d = :d"),
		FilterExpression:       aws.String("#eid = :eid"),
		ExpressionAttributeNames: map[string]string{
			"#uid": fieldUserID,
			"#d":   fieldDate,
			"#eid": fieldEntryID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
			":d":   &types.AttributeValueMemberS{Value: date},
			":eid": &types.AttributeValueMemberS{Value: entryID},
		},
		Select: types.SelectCount,
	})
	if err != nil {
		return false, err
	}
	return out.Count > 0, nil
}
