package versionlog

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fystack/modelstore/pkg/kvstore"
	"github.com/fystack/modelstore/pkg/messaging"
	"github.com/goccy/go-json"
	"github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockConsulKV is a mock implementation of the infra.ConsulKV interface
type MockConsulKV struct {
	mock.Mock
}

func (m *MockConsulKV) Put(kv *api.KVPair, options *api.WriteOptions) (*api.WriteMeta, error) {
	args := m.Called(kv, options)
	return nil, args.Error(1)
}

func (m *MockConsulKV) Get(key string, options *api.QueryOptions) (*api.KVPair, *api.QueryMeta, error) {
	args := m.Called(key, options)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*api.KVPair), nil, args.Error(2)
}

func (m *MockConsulKV) Delete(key string, options *api.WriteOptions) (*api.WriteMeta, error) {
	args := m.Called(key, options)
	return nil, args.Error(1)
}

func (m *MockConsulKV) List(prefix string, options *api.QueryOptions) (api.KVPairs, *api.QueryMeta, error) {
	args := m.Called(prefix, options)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(api.KVPairs), nil, args.Error(2)
}

// MockPubSub is a mock implementation of the messaging.PubSub interface
type MockPubSub struct {
	mock.Mock
}

func (m *MockPubSub) Publish(topic string, message []byte) error {
	args := m.Called(topic, message)
	return args.Error(0)
}

func (m *MockPubSub) Subscribe(topic string, handler func(data []byte)) (messaging.Subscription, error) {
	args := m.Called(topic, handler)
	return nil, args.Error(1)
}

func fixedClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

var testEpoch = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func TestEntryKey_OrdersByTime(t *testing.T) {
	early := newEntry("guest#9999", "v1", "a", testEpoch)
	late := newEntry("guest#9999", "v1", "b", testEpoch.Add(time.Millisecond))

	assert.Less(t, entryKey("vlog", early), entryKey("vlog", late))
	assert.True(t, strings.HasPrefix(entryKey("vlog", early), versionPrefix("vlog", "guest#9999", "v1")))
}

func TestVersionPrefix_EscapesSlashes(t *testing.T) {
	assert.Equal(t, "vlog/a%2Fb/v1/", versionPrefix("vlog", "a/b", "v1"))
	assert.NotEqual(t, versionPrefix("vlog", "a/b", "c"), versionPrefix("vlog", "a", "b/c"))
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Record("ns", "name", "msg"))
}

func TestKVRecorder_RecordAndList(t *testing.T) {
	kv, err := kvstore.NewInMemoryBadgerKVStore()
	require.NoError(t, err)
	defer kv.Close()

	recorder := NewKVRecorder(kv, "")
	recorder.now = fixedClock(testEpoch)

	require.NoError(t, recorder.Record("guest#9999", "v1", "first"))
	require.NoError(t, recorder.Record("guest#9999", "v1", "second"))
	require.NoError(t, recorder.Record("guest#9999", "v2", "other version"))

	entries, err := recorder.List("guest#9999", "v1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Message)
	assert.Equal(t, "second", entries[1].Message)
	assert.Equal(t, "guest#9999", entries[0].Namespace)
	assert.Equal(t, "v1", entries[0].Name)
	assert.Equal(t, testEpoch.Add(time.Second), entries[0].CreatedAt)
	assert.NotEmpty(t, entries[0].ID)

	none, err := recorder.List("guest#9999", "v3")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestKVRecorder_ClosedStore(t *testing.T) {
	kv, err := kvstore.NewInMemoryBadgerKVStore()
	require.NoError(t, err)
	require.NoError(t, kv.Close())

	err = NewKVRecorder(kv, "").Record("ns", "v1", "msg")
	assert.Error(t, err)
}

func TestConsulRecorder_Record(t *testing.T) {
	consulKV := &MockConsulKV{}
	recorder := NewConsulRecorder(consulKV, "")
	recorder.now = fixedClock(testEpoch)

	consulKV.On("Put", mock.MatchedBy(func(pair *api.KVPair) bool {
		if !strings.HasPrefix(pair.Key, "model_versions/guest%239999/v1/") {
			return false
		}
		var e Entry
		return json.Unmarshal(pair.Value, &e) == nil && e.Message == "retrained"
	}), (*api.WriteOptions)(nil)).Return(nil, nil).Once()

	require.NoError(t, recorder.Record("guest#9999", "v1", "retrained"))
	consulKV.AssertExpectations(t)
}

func TestConsulRecorder_RecordError(t *testing.T) {
	consulKV := &MockConsulKV{}
	consulKV.On("Put", mock.Anything, mock.Anything).Return(nil, errors.New("no leader"))

	err := NewConsulRecorder(consulKV, "versions").Record("ns", "v1", "msg")
	assert.ErrorContains(t, err, "no leader")
}

func TestConsulRecorder_ListSortsByKey(t *testing.T) {
	consulKV := &MockConsulKV{}
	recorder := NewConsulRecorder(consulKV, "versions")

	first := newEntry("ns", "v1", "first", testEpoch)
	second := newEntry("ns", "v1", "second", testEpoch.Add(time.Minute))
	pair := func(e Entry) *api.KVPair {
		raw, err := json.Marshal(e)
		require.NoError(t, err)
		return &api.KVPair{Key: entryKey("versions", e), Value: raw}
	}

	consulKV.On("List", "versions/ns/v1/", (*api.QueryOptions)(nil)).
		Return(api.KVPairs{pair(second), pair(first)}, nil, nil)

	entries, err := recorder.List("ns", "v1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Message)
	assert.Equal(t, "second", entries[1].Message)
}

func TestConsulRecorder_ListBadEntry(t *testing.T) {
	consulKV := &MockConsulKV{}
	consulKV.On("List", mock.Anything, mock.Anything).
		Return(api.KVPairs{{Key: "versions/ns/v1/x", Value: []byte("{")}}, nil, nil)

	_, err := NewConsulRecorder(consulKV, "versions").List("ns", "v1")
	assert.ErrorContains(t, err, "versions/ns/v1/x")
}

func TestNATSRecorder_Publishes(t *testing.T) {
	pubsub := &MockPubSub{}
	recorder := NewNATSRecorder(pubsub, "")
	recorder.now = fixedClock(testEpoch)

	var published []byte
	pubsub.On("Publish", DefaultSubject, mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(1).([]byte) }).
		Return(nil).Once()

	require.NoError(t, recorder.Record("ns", "v1", "saved"))
	pubsub.AssertExpectations(t)

	entry, err := DecodeEntry(published)
	require.NoError(t, err)
	assert.Equal(t, "saved", entry.Message)
	assert.Equal(t, "v1", entry.Name)
}

func TestNATSRecorder_RetriesPublish(t *testing.T) {
	pubsub := &MockPubSub{}
	pubsub.On("Publish", "custom", mock.Anything).Return(errors.New("slow consumer")).Once()
	pubsub.On("Publish", "custom", mock.Anything).Return(nil).Once()

	require.NoError(t, NewNATSRecorder(pubsub, "custom").Record("ns", "v1", "saved"))
	pubsub.AssertNumberOfCalls(t, "Publish", 2)
}

func TestNATSRecorder_GivesUp(t *testing.T) {
	pubsub := &MockPubSub{}
	pubsub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("connection closed"))

	err := NewNATSRecorder(pubsub, "").Record("ns", "v1", "saved")
	assert.ErrorContains(t, err, "connection closed")
	pubsub.AssertNumberOfCalls(t, "Publish", 3)
}
