package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/chat-commerce-agent/internal/conversion"
	"github.com/wolfman30/chat-commerce-agent/pkg/logging"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// journeyItem is the DynamoDB row; the journey itself is kept as a JSON document.
type journeyItem struct {
	CustomerID string `dynamodbav:"customerId"`
	Version    int64  `dynamodbav:"version"`
	Stage      string `dynamodbav:"stage"`
	Status     string `dynamodbav:"status"`
	UpdatedAt  string `dynamodbav:"updatedAt"`
	Data       string `dynamodbav:"data"`
}

// DynamoJourneyStore keeps journeys in a DynamoDB table keyed by customerId.
type DynamoJourneyStore struct {
	client    dynamoAPI
	tableName string
	tracer    trace.Tracer
	logger    *logging.Logger
}

var _ JourneyRepository = (*DynamoJourneyStore)(nil)

func NewDynamoJourneyStore(client dynamoAPI, tableName string, logger *logging.Logger) *DynamoJourneyStore {
	if client == nil {
		panic("store: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("store: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoJourneyStore{
		client:    client,
		tableName: tableName,
		tracer:    otel.Tracer("chatcommerce.internal.store.dynamo"),
		logger:    logger,
	}
}

func (s *DynamoJourneyStore) LoadJourney(ctx context.Context, customerID string) (*conversion.Journey, error) {
	ctx, span := s.tracer.Start(ctx, "store.dynamo.load_journey")
	defer span.End()

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"customerId": &types.AttributeValueMemberS{Value: customerID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("store: get journey: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	return decodeJourneyItem(out.Item)
}

// SaveJourney writes only if the stored version still equals j.Version.
func (s *DynamoJourneyStore) SaveJourney(ctx context.Context, j *conversion.Journey) error {
	ctx, span := s.tracer.Start(ctx, "store.dynamo.save_journey")
	defer span.End()

	next := j.Clone()
	next.Version = j.Version + 1
	data, err := json.Marshal(next)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("store: marshal journey: %w", err)
	}
	item, err := attributevalue.MarshalMap(journeyItem{
		CustomerID: j.CustomerID,
		Version:    next.Version,
		Stage:      string(j.CurrentStage),
		Status:     string(j.Status),
		UpdatedAt:  time.Now().UTC().Format(time.RFC3339Nano),
		Data:       string(data),
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("store: marshal journey item: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}
	if j.Version == 0 {
		input.ConditionExpression = aws.String("attribute_not_exists(customerId)")
	} else {
		input.ConditionExpression = aws.String("#version = :expected")
		input.ExpressionAttributeNames = map[string]string{"#version": "version"}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(j.Version, 10)},
		}
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			s.logger.Warn("journey version conflict", "customer_id", j.CustomerID, "version", j.Version)
			return ErrConflict
		}
		span.RecordError(err)
		return fmt.Errorf("store: put journey: %w", err)
	}
	j.Version = next.Version
	return nil
}

// ListJourneys scans the whole table, following pagination.
func (s *DynamoJourneyStore) ListJourneys(ctx context.Context) ([]*conversion.Journey, error) {
	ctx, span := s.tracer.Start(ctx, "store.dynamo.list_journeys")
	defer span.End()

	out := []*conversion.Journey{}
	var start map[string]types.AttributeValue
	for {
		page, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.tableName),
			ExclusiveStartKey: start,
		})
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("store: scan journeys: %w", err)
		}
		for _, item := range page.Items {
			j, err := decodeJourneyItem(item)
			if err != nil {
				span.RecordError(err)
				return nil, err
			}
			out = append(out, j)
		}
		if len(page.LastEvaluatedKey) == 0 {
			return out, nil
		}
		start = page.LastEvaluatedKey
	}
}

func decodeJourneyItem(item map[string]types.AttributeValue) (*conversion.Journey, error) {
	var row journeyItem
	if err := attributevalue.UnmarshalMap(item, &row); err != nil {
		return nil, fmt.Errorf("store: decode journey item: %w", err)
	}
	var j conversion.Journey
	if err := json.Unmarshal([]byte(row.Data), &j); err != nil {
		return nil, fmt.Errorf("store: decode journey %s: %w", row.CustomerID, err)
	}
	j.Version = row.Version
	return &j, nil
}
