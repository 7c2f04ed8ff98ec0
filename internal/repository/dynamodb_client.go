package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"channel-assistant/internal/domain"
)

const (
	skProfile     = "PROFILE"
	skPrefixDraft = "DRAFT#"
	skSession     = "SESSION"

	payloadKindText  = "text"
	payloadKindMedia = "media"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client wraps a single DynamoDB table holding users, drafts and sessions.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
	newID     func() string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now, newID: uuid.NewString}, nil
}

// userPK returns the partition key shared by everything a user owns.
func userPK(userID int64) string {
	return "USER#" + strconv.FormatInt(userID, 10)
}

func draftSK(id domain.DraftID) string {
	return skPrefixDraft + string(id)
}

func (c *Client) key(userID int64, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: userPK(userID)},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// profileUpsert creates the user record if it is missing and leaves it alone otherwise.
func (c *Client) profileUpsert(userID int64, now time.Time) *types.Update {
	return &types.Update{
		TableName:        aws.String(c.tableName),
		Key:              c.key(userID, skProfile),
		UpdateExpression: aws.String("SET createdAt = if_not_exists(createdAt, :now), telegramId = :tid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339Nano)},
			":tid": &types.AttributeValueMemberN{Value: strconv.FormatInt(userID, 10)},
		},
	}
}

// EnsureUser provisions the user record.
func (c *Client) EnsureUser(ctx context.Context, userID int64) error {
	up := c.profileUpsert(userID, c.now())
	_, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 up.TableName,
		Key:                       up.Key,
		UpdateExpression:          up.UpdateExpression,
		ExpressionAttributeValues: up.ExpressionAttributeValues,
	})
	if err != nil {
		return storageErr("EnsureUser", err)
	}
	return nil
}

// Create writes the user profile (if absent) and the new draft in one transaction.
func (c *Client) Create(ctx context.Context, userID int64, idea string, payload domain.Payload) (domain.DraftID, error) {
	now := c.now().UTC()
	d := domain.Draft{
		ID:        domain.DraftID(c.newID()),
		UserID:    userID,
		Idea:      idea,
		Payload:   payload,
		CreatedAt: now,
	}

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: c.profileUpsert(userID, now)},
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                draftItem(d),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
		},
	})
	if err != nil {
		return "", storageErr("Create", err)
	}
	return d.ID, nil
}

// ListAll returns every draft of the user, oldest first.
func (c *Client) ListAll(ctx context.Context, userID int64) ([]domain.Draft, error) {
	if err := c.EnsureUser(ctx, userID); err != nil {
		return nil, err
	}

	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: userPK(userID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixDraft},
		},
		ConsistentRead: aws.Bool(true),
	}

	var drafts []domain.Draft
	for {
		out, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, storageErr("ListAll", fmt.Errorf("query: %w", err))
		}
		for _, item := range out.Items {
			d, err := itemToDraft(item)
			if err != nil {
				return nil, storageErr("ListAll", fmt.Errorf("unmarshal: %w", err))
			}
			drafts = append(drafts, d)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	sortDrafts(drafts)
	return drafts, nil
}

// Get returns one draft owned by the user.
func (c *Client) Get(ctx context.Context, userID int64, id domain.DraftID) (domain.Draft, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            c.key(userID, draftSK(id)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Draft{}, storageErr("Get", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Draft{}, domain.ErrNotFound
	}
	d, err := itemToDraft(out.Item)
	if err != nil {
		return domain.Draft{}, storageErr("Get", fmt.Errorf("unmarshal: %w", err))
	}
	return d, nil
}

// UpdatePayload replaces the whole payload of an existing draft.
func (c *Client) UpdatePayload(ctx context.Context, userID int64, id domain.DraftID, payload domain.Payload) error {
	attrs := payloadAttrs(payload)
	_, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(c.tableName),
		Key:                 c.key(userID, draftSK(id)),
		ConditionExpression: aws.String("attribute_exists(SK)"),
		UpdateExpression:    aws.String("SET payloadKind = :kind, payloadText = :text, mediaKind = :mkind, mediaRef = :mref"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":kind":  attrs["payloadKind"],
			":text":  attrs["payloadText"],
			":mkind": attrs["mediaKind"],
			":mref":  attrs["mediaRef"],
		},
	})
	if isConditionFailed(err) {
		return domain.ErrNotFound
	}
	if err != nil {
		return storageErr("UpdatePayload", err)
	}
	return nil
}

// Delete removes a draft. It returns false when the draft was already gone.
func (c *Client) Delete(ctx context.Context, userID int64, id domain.DraftID) (bool, error) {
	if err := c.EnsureUser(ctx, userID); err != nil {
		return false, err
	}
	_, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(c.tableName),
		Key:                 c.key(userID, draftSK(id)),
		ConditionExpression: aws.String("attribute_exists(SK)"),
	})
	if isConditionFailed(err) {
		return false, nil
	}
	if err != nil {
		return false, storageErr("Delete", err)
	}
	return true, nil
}

// sessionRecord is the JSON body of a stored session.
type sessionRecord struct {
	Data    map[string]string   `json:"data,omitempty"`
	Pending *domain.PendingPost `json:"pending,omitempty"`
}

// LoadSession reads the stored session. ok is false when none exists.
func (c *Client) LoadSession(ctx context.Context, userID int64) (domain.Session, bool, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            c.key(userID, skSession),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Session{}, false, storageErr("LoadSession", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Session{}, false, nil
	}

	state, _ := strAttr(out.Item, "state")
	body, _ := strAttr(out.Item, "body")
	updated, _ := strAttr(out.Item, "updatedAt")

	var rec sessionRecord
	if body != "" {
		if err := json.Unmarshal([]byte(body), &rec); err != nil {
			return domain.Session{}, false, storageErr("LoadSession", fmt.Errorf("decode body: %w", err))
		}
	}
	ts, _ := time.Parse(time.RFC3339Nano, updated)
	version, _ := intAttr(out.Item, "version")
	return domain.Session{
		UserID:    userID,
		State:     domain.State(state),
		Data:      rec.Data,
		Pending:   rec.Pending,
		UpdatedAt: ts,
		Version:   version,
	}, true, nil
}

// SaveSession writes the session as version s.Version if the stored record
// is still at prev. Records written before versioning count as version 0.
// A lost race returns domain.ErrConflict. A positive ttl sets the DynamoDB
// expiry attribute.
func (c *Client) SaveSession(ctx context.Context, s domain.Session, prev int64, ttl time.Duration) error {
	body, err := json.Marshal(sessionRecord{Data: s.Data, Pending: s.Pending})
	if err != nil {
		return storageErr("SaveSession", fmt.Errorf("encode body: %w", err))
	}
	item := c.key(s.UserID, skSession)
	item["state"] = &types.AttributeValueMemberS{Value: string(s.State)}
	item["body"] = &types.AttributeValueMemberS{Value: string(body)}
	item["updatedAt"] = &types.AttributeValueMemberS{Value: s.UpdatedAt.UTC().Format(time.RFC3339Nano)}
	item["version"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(s.Version, 10)}
	if ttl > 0 {
		item["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(s.UpdatedAt.Add(ttl).Unix(), 10)}
	}

	cond := "#v = :prev"
	if prev == 0 {
		cond = "attribute_not_exists(#v) OR #v = :prev"
	}
	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(c.tableName),
		Item:                     item,
		ConditionExpression:      aws.String(cond),
		ExpressionAttributeNames: map[string]string{"#v": "version"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prev": &types.AttributeValueMemberN{Value: strconv.FormatInt(prev, 10)},
		},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("repository: SaveSession user %d at version %d: %w", s.UserID, prev, domain.ErrConflict)
	}
	if err != nil {
		return storageErr("SaveSession", err)
	}
	return nil
}

func draftItem(d domain.Draft) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: userPK(d.UserID)},
		"SK":        &types.AttributeValueMemberS{Value: draftSK(d.ID)},
		"draftId":   &types.AttributeValueMemberS{Value: string(d.ID)},
		"userId":    &types.AttributeValueMemberN{Value: strconv.FormatInt(d.UserID, 10)},
		"idea":      &types.AttributeValueMemberS{Value: d.Idea},
		"createdAt": &types.AttributeValueMemberS{Value: d.CreatedAt.UTC().Format(time.RFC3339Nano)},
	}
	for k, v := range payloadAttrs(d.Payload) {
		item[k] = v
	}
	return item
}

func payloadAttrs(p domain.Payload) map[string]types.AttributeValue {
	kind, text, mkind, mref := payloadColumns(p)
	return map[string]types.AttributeValue{
		"payloadKind": &types.AttributeValueMemberS{Value: kind},
		"payloadText": &types.AttributeValueMemberS{Value: text},
		"mediaKind":   &types.AttributeValueMemberS{Value: mkind},
		"mediaRef":    &types.AttributeValueMemberS{Value: mref},
	}
}

// itemToDraft converts a DynamoDB attribute map to a Draft.
func itemToDraft(item map[string]types.AttributeValue) (domain.Draft, error) {
	id, err := strAttr(item, "draftId")
	if err != nil {
		return domain.Draft{}, err
	}
	userID, err := intAttr(item, "userId")
	if err != nil {
		return domain.Draft{}, err
	}
	created, err := strAttr(item, "createdAt")
	if err != nil {
		return domain.Draft{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return domain.Draft{}, fmt.Errorf("repository: parse createdAt: %w", err)
	}
	idea, _ := strAttr(item, "idea") // allow empty
	text, _ := strAttr(item, "payloadText")
	kind, _ := strAttr(item, "payloadKind")
	mkind, _ := strAttr(item, "mediaKind")
	mref, _ := strAttr(item, "mediaRef")

	return domain.Draft{
		ID:        domain.DraftID(id),
		UserID:    userID,
		Idea:      idea,
		Payload:   payloadFromColumns(kind, text, mkind, mref),
		CreatedAt: ts,
	}, nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return err != nil && errors.As(err, &ccf)
}

func storageErr(op string, err error) error {
	return &domain.StorageError{Op: op, Err: err}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
