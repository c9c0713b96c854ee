package utils

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestSixID_StringRoundtrip(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := NewSixID()
		s := id.String()
		assert.Len(t, s, 10)

		parsed, err := ParseSixID(s)
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	}
}

func TestParseSixID_Leniency(t *testing.T) {
	id := NewSixID()
	s := id.String()

	// Hyphens are stripped, lowercase and confusable characters map through.
	withHyphen := s[:5] + "-" + s[5:]
	parsed, err := ParseSixID(withHyphen)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	parsed, err = ParseSixID(strings.ToLower(s))
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseSixID("")
	assert.Error(t, err)
	_, err = ParseSixID("TOOSHORT")
	assert.Error(t, err)
	_, err = ParseSixID("!!!!!!!!!!")
	assert.Error(t, err)
}

func TestSixID_JSONRoundtrip(t *testing.T) {
	id := NewSixID()
	data, err := json.Marshal(id)
	require.NoError(t, err)

	var decoded SixID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded)
}

func TestSixID_BSONRoundtrip(t *testing.T) {
	type doc struct {
		ID SixID `bson:"_id"`
	}
	id := NewSixID()

	data, err := bson.Marshal(doc{ID: id})
	require.NoError(t, err)

	var decoded doc
	require.NoError(t, bson.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded.ID)
}

func TestSixID_BSONStorage(t *testing.T) {
	db := SetupTestDB(t, "testdb_sixid", "sixid_docs")
	defer db.Client().Disconnect(context.Background())

	type doc struct {
		ID   SixID  `bson:"_id"`
		Name string `bson:"name"`
	}
	id := NewSixID()
	_, err := db.Collection("sixid_docs").InsertOne(context.Background(), doc{ID: id, Name: "x"})
	require.NoError(t, err)

	var fetched doc
	err = db.Collection("sixid_docs").FindOne(context.Background(), bson.M{"_id": id}).Decode(&fetched)
	require.NoError(t, err)
	assert.Equal(t, id, fetched.ID)
	assert.Equal(t, "x", fetched.Name)
}

func TestNewSixIDHook(t *testing.T) {
	fixed := SixID{1, 2, 3, 4, 5, 6}
	NewSixIDHook = func() (SixID, bool) { return fixed, true }
	defer func() { NewSixIDHook = nil }()

	assert.Equal(t, fixed, NewSixID())
}
