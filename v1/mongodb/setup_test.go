package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

func newClient(t *testing.T) *MongoDB {
	t.Helper()
	m, err := NewMongoDB(Config{Host: "mongo", Database: "etl", Collection: "events"}, dbconn.Options{}, nil)
	require.NoError(t, err)
	return m
}

func TestValidate(t *testing.T) {
	_, err := NewMongoDB(Config{Host: "mongo"}, dbconn.Options{}, nil)
	require.Error(t, err)
	assert.True(t, dbconn.IsValidationError(err))
	assert.Contains(t, err.Error(), "database")
}

func TestDefaults(t *testing.T) {
	cfg := newClient(t).Config()
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, "admin", cfg.AuthSource)
}

func TestClientOptions(t *testing.T) {
	cfg := Config{Host: "mongo", User: "etl", Password: "pw", Database: "etl"}.withDefaults()

	opts := clientOptions(cfg, "127.0.0.1", 40017, true)
	assert.Equal(t, []string{"127.0.0.1:40017"}, opts.Hosts)
	require.NotNil(t, opts.Auth)
	assert.Equal(t, "admin", opts.Auth.AuthSource)
	require.NotNil(t, opts.Direct)
	assert.True(t, *opts.Direct)

	opts = clientOptions(Config{Host: "mongo", Database: "etl"}.withDefaults(), "mongo", 27017, false)
	assert.Nil(t, opts.Auth)
	assert.Nil(t, opts.Direct)
}

func TestExecuteQueryRejectsNonOperation(t *testing.T) {
	m := newClient(t)
	_, err := m.ExecuteQuery(context.Background(), dbconn.Query{Text: "SELECT 1"})
	require.Error(t, err)
	assert.True(t, dbconn.IsValidationError(err))
	assert.Contains(t, err.Error(), "unsupported query operation")
}

func TestExecuteQueryNotConnected(t *testing.T) {
	m := newClient(t)
	_, err := m.ExecuteQuery(context.Background(), dbconn.Query{Operation: &Find{}})
	assert.ErrorIs(t, err, dbconn.ErrNotConnected)
	assert.NoError(t, m.Disconnect(context.Background()))
}

func TestExecuteBatchQueryValidatesRows(t *testing.T) {
	m := newClient(t)
	err := m.ExecuteBatchQuery(context.Background(), "", [][]any{{bson.M{"a": 1}, bson.M{"b": 2}}}, 0)
	require.Error(t, err)
	assert.True(t, dbconn.IsValidationError(err))
}

func TestExecuteTransactionValidatesStatements(t *testing.T) {
	m := newClient(t)
	err := m.ExecuteTransaction(context.Background(), []dbconn.Statement{{Query: "x"}})
	assert.True(t, dbconn.IsValidationError(err))

	err = m.ExecuteTransaction(context.Background(), []dbconn.Statement{{Params: []any{Delete{}}}})
	assert.ErrorIs(t, err, dbconn.ErrNotConnected)
}

func TestDocumentsToRows(t *testing.T) {
	id := primitive.NewObjectID()
	when := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	docs := []bson.D{
		{{Key: "_id", Value: id}, {Key: "name", Value: "a"}, {Key: "at", Value: primitive.NewDateTimeFromTime(when)}},
		{{Key: "_id", Value: id}, {Key: "tags", Value: bson.A{"x", bson.D{{Key: "k", Value: "v"}}}}},
	}

	cols, rows := documentsToRows(docs)
	assert.Equal(t, []string{"_id", "name", "at", "tags"}, cols)
	assert.Equal(t, []any{id.Hex(), "a", "2024-05-06", nil}, rows[0])
	assert.Equal(t, []any{id.Hex(), nil, nil, []any{"x", map[string]any{"k": "v"}}}, rows[1])
}

func TestAsOperation(t *testing.T) {
	op, ok := asOperation(&Update{Collection: "c"})
	require.True(t, ok)
	assert.Equal(t, "update", op.name())
	assert.Equal(t, "c", op.collection())

	op, ok = asOperation(Aggregate{})
	require.True(t, ok)
	assert.Equal(t, "aggregate", op.name())

	_, ok = asOperation((*Find)(nil))
	assert.False(t, ok)
	_, ok = asOperation("find")
	assert.False(t, ok)
}

func TestClassify(t *testing.T) {
	assert.True(t, dbconn.IsConnectionError(TranslateError(mongo.ErrClientDisconnected)))
	assert.True(t, dbconn.IsTimeoutError(TranslateError(context.DeadlineExceeded)))

	err := TranslateError(mongo.CommandError{Code: 112, Labels: []string{"TransientTransactionError"}})
	assert.True(t, dbconn.IsQueryError(err))
	assert.True(t, IsRetryable(err))

	assert.True(t, IsDuplicateKey(mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}))
	assert.NoError(t, TranslateError(nil))
}
