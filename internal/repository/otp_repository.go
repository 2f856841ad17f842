package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/eduotp/eduotp/internal/models"
	"github.com/eduotp/eduotp/internal/service"
	"github.com/sirupsen/logrus"
)

// ttlGrace keeps expired items around briefly so verification can answer
// Expired instead of NotFound before DynamoDB's TTL sweep collects them.
const ttlGrace = 24 * time.Hour

// OTPRepository stores OTP records in a DynamoDB single table. Each record
// lives under OTP#<otp_id>; an ACTIVE#<mobile>#<purpose> pointer item tracks
// the one active record per pair so issuance can supersede it.
type OTPRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *logrus.Logger
}

func NewOTPRepository(client *dynamodb.Client, tableName string, logger *logrus.Logger) *OTPRepository {
	return &OTPRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

func recordKey(otpID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("OTP#%s", otpID)},
		"SK": &types.AttributeValueMemberS{Value: "METADATA"},
	}
}

func activeKey(mobile string, purpose models.Purpose) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("ACTIVE#%s#%s", mobile, purpose)},
		"SK": &types.AttributeValueMemberS{Value: "METADATA"},
	}
}

// Put stores the record and repoints the active-pair item at it.
func (r *OTPRepository) Put(ctx context.Context, rec *models.OTPRequest) error {
	ttl := rec.ExpiresAt.Add(ttlGrace).Unix()

	item := map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: fmt.Sprintf("OTP#%s", rec.OTPID)},
		"SK":        &types.AttributeValueMemberS{Value: "METADATA"},
		"OTPID":     &types.AttributeValueMemberS{Value: rec.OTPID},
		"Mobile":    &types.AttributeValueMemberS{Value: rec.Mobile},
		"Purpose":   &types.AttributeValueMemberS{Value: string(rec.Purpose)},
		"CodeHash":  &types.AttributeValueMemberS{Value: rec.CodeHash},
		"Consumed":  &types.AttributeValueMemberBOOL{Value: rec.Consumed},
		"Attempts":  &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", rec.Attempts)},
		"CreatedAt": &types.AttributeValueMemberS{Value: rec.CreatedAt.Format(time.RFC3339Nano)},
		"ExpiresAt": &types.AttributeValueMemberS{Value: rec.ExpiresAt.Format(time.RFC3339Nano)},
		"TTL":       &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ttl)},
	}

	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	}); err != nil {
		r.logger.WithError(err).Error("Failed to store OTP in DynamoDB")
		return fmt.Errorf("failed to store OTP: %w", err)
	}

	pointer := activeKey(rec.Mobile, rec.Purpose)
	pointer["OTPID"] = &types.AttributeValueMemberS{Value: rec.OTPID}
	pointer["TTL"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ttl)}

	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      pointer,
	}); err != nil {
		r.logger.WithError(err).Error("Failed to store active OTP pointer in DynamoDB")
		return fmt.Errorf("failed to store active OTP pointer: %w", err)
	}

	return nil
}

func (r *OTPRepository) GetByID(ctx context.Context, otpID string) (*models.OTPRequest, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       recordKey(otpID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get OTP: %w", err)
	}

	if result.Item == nil {
		return nil, service.ErrNotFound
	}

	var rec models.OTPRequest
	if err := attributevalue.UnmarshalMap(result.Item, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal OTP record: %w", err)
	}

	return &rec, nil
}

// DeleteActive removes the active record for (mobile, purpose), if any.
// A missing pointer is not an error; there is simply nothing to supersede.
func (r *OTPRepository) DeleteActive(ctx context.Context, mobile string, purpose models.Purpose) error {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       activeKey(mobile, purpose),
	})
	if err != nil {
		return fmt.Errorf("failed to look up active OTP pointer: %w", err)
	}

	if result.Item == nil {
		return nil
	}

	otpID, ok := result.Item["OTPID"].(*types.AttributeValueMemberS)
	if ok {
		if _, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(r.tableName),
			Key:       recordKey(otpID.Value),
		}); err != nil {
			return fmt.Errorf("failed to delete superseded OTP: %w", err)
		}
	}

	if _, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       activeKey(mobile, purpose),
	}); err != nil {
		return fmt.Errorf("failed to delete active OTP pointer: %w", err)
	}

	return nil
}

// IncrementAttempts bumps the attempt counter atomically and returns the new
// count.
func (r *OTPRepository) IncrementAttempts(ctx context.Context, otpID string) (int, error) {
	result, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 recordKey(otpID),
		UpdateExpression:    aws.String("ADD Attempts :one"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return 0, service.ErrNotFound
		}
		return 0, fmt.Errorf("failed to increment attempts: %w", err)
	}

	var attempts struct {
		Attempts int
	}
	if err := attributevalue.UnmarshalMap(result.Attributes, &attempts); err != nil {
		return 0, fmt.Errorf("failed to unmarshal attempt count: %w", err)
	}

	return attempts.Attempts, nil
}

// Consume flips Consumed false -> true as a conditional update, so exactly
// one concurrent verification can succeed per record.
func (r *OTPRepository) Consume(ctx context.Context, otpID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 recordKey(otpID),
		UpdateExpression:    aws.String("SET Consumed = :true"),
		ConditionExpression: aws.String("attribute_exists(PK) AND Consumed = :false"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true":  &types.AttributeValueMemberBOOL{Value: true},
			":false": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return service.ErrAlreadyUsed
		}
		return fmt.Errorf("failed to consume OTP: %w", err)
	}

	return nil
}

// Invalidate blocks the record unconditionally, used when the attempt cap
// is crossed.
func (r *OTPRepository) Invalidate(ctx context.Context, otpID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 recordKey(otpID),
		UpdateExpression:    aws.String("SET Consumed = :true"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return service.ErrNotFound
		}
		return fmt.Errorf("failed to invalidate OTP: %w", err)
	}

	return nil
}
