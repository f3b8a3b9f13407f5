package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/example/grocery-ordering/internal/apperr"
	"github.com/example/grocery-ordering/internal/domain/order"
	"github.com/shopspring/decimal"
)

// Index names on the orders table. Both sort on created_at.
const (
	DynamoUserIndex   = "user_id-created_at-index"
	DynamoStatusIndex = "status-created_at-index"
)

// sortableTime keeps created_at lexicographically ordered.
const sortableTime = "2006-01-02T15:04:05.000000000Z"

// DynamoAPI is the subset of *dynamodb.Client the order repository uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoOrderRepository stores each order as one item, lines included.
type DynamoOrderRepository struct {
	client    DynamoAPI
	tableName string
}

// dynamoOrder represents the DynamoDB item structure
type dynamoOrder struct {
	ID              string `dynamodbav:"id"`
	UserID          string `dynamodbav:"user_id"`
	Status          string `dynamodbav:"status"`
	TotalAmount     string `dynamodbav:"total_amount"`
	ShippingAddress string `dynamodbav:"shipping_address"`
	Items           string `dynamodbav:"items"`
	CreatedAt       string `dynamodbav:"created_at"`
	UpdatedAt       string `dynamodbav:"updated_at"`
}

func NewDynamoOrderRepository(client DynamoAPI, tableName string) *DynamoOrderRepository {
	return &DynamoOrderRepository{client: client, tableName: tableName}
}

func (r *DynamoOrderRepository) Create(ctx context.Context, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}

	av, err := attributevalue.MarshalMap(dynamoOrder{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          string(o.Status),
		TotalAmount:     o.TotalAmount.String(),
		ShippingAddress: o.ShippingAddress,
		Items:           string(items),
		CreatedAt:       o.CreatedAt.UTC().Format(sortableTime),
		UpdatedAt:       o.UpdatedAt.UTC().Format(sortableTime),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return apperr.Unavailable("order store", fmt.Errorf("put order: %w", err))
	}
	return nil
}

func (r *DynamoOrderRepository) FindByID(ctx context.Context, orderID string) (*order.Order, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: orderID},
		},
	})
	if err != nil {
		return nil, apperr.Unavailable("order store", fmt.Errorf("get order: %w", err))
	}
	if len(out.Item) == 0 {
		return nil, order.ErrOrderNotFound
	}
	return unmarshalOrder(out.Item)
}

// ListByUser reads the user's whole index partition and slices the page in
// memory. DynamoDB has no offset, and a single user's order count is small.
func (r *DynamoOrderRepository) ListByUser(ctx context.Context, userID string, page order.Page) ([]*order.Order, int, error) {
	all, err := r.queryIndex(ctx, DynamoUserIndex, "user_id", userID)
	if err != nil {
		return nil, 0, err
	}
	total := len(all)
	start := page.Offset()
	if start >= total {
		return []*order.Order{}, total, nil
	}
	end := min(start+page.Size, total)
	return all[start:end], total, nil
}

func (r *DynamoOrderRepository) ListByStatus(ctx context.Context, status order.Status) ([]*order.Order, error) {
	return r.queryIndex(ctx, DynamoStatusIndex, "status", string(status))
}

func (r *DynamoOrderRepository) UpdateStatus(ctx context.Context, orderID string, status order.Status, at time.Time) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression:    aws.String("SET #s = :status, updated_at = :at"),
		ConditionExpression: aws.String("attribute_exists(id)"),
		// status is a reserved word
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(status)},
			":at":     &types.AttributeValueMemberS{Value: at.UTC().Format(sortableTime)},
		},
	})
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return order.ErrOrderNotFound
	}
	if err != nil {
		return apperr.Unavailable("order store", fmt.Errorf("update order status: %w", err))
	}
	return nil
}

// queryIndex returns every order in one index partition, newest first.
func (r *DynamoOrderRepository) queryIndex(ctx context.Context, index, attr, value string) ([]*order.Order, error) {
	paginator := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                aws.String(r.tableName),
		IndexName:                aws.String(index),
		KeyConditionExpression:   aws.String("#pk = :pk"),
		ExpressionAttributeNames: map[string]string{"#pk": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: value},
		},
		ScanIndexForward: aws.Bool(false), // Descending order by created_at
	})

	orders := []*order.Order{}
	for paginator.HasMorePages() {
		pageOut, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, apperr.Unavailable("order store", fmt.Errorf("query %s: %w", index, err))
		}
		for _, item := range pageOut.Items {
			o, err := unmarshalOrder(item)
			if err != nil {
				return nil, err
			}
			orders = append(orders, o)
		}
	}
	return orders, nil
}

func unmarshalOrder(item map[string]types.AttributeValue) (*order.Order, error) {
	var do dynamoOrder
	if err := attributevalue.UnmarshalMap(item, &do); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}

	total, err := decimal.NewFromString(do.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("order %s: bad total_amount: %w", do.ID, err)
	}
	createdAt, err := time.Parse(sortableTime, do.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("order %s: bad created_at: %w", do.ID, err)
	}
	updatedAt, err := time.Parse(sortableTime, do.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("order %s: bad updated_at: %w", do.ID, err)
	}

	o := &order.Order{
		ID:              do.ID,
		UserID:          do.UserID,
		Status:          order.Status(do.Status),
		TotalAmount:     total,
		ShippingAddress: do.ShippingAddress,
		Items:           []order.OrderLine{},
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}
	if do.Items != "" {
		if err := json.Unmarshal([]byte(do.Items), &o.Items); err != nil {
			return nil, fmt.Errorf("order %s: bad items: %w", do.ID, err)
		}
	}
	return o, nil
}
