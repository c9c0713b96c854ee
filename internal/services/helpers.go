package services

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func optionsFindSortLimit(sortKey string, direction int, limit int) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: sortKey, Value: direction}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return opts
}
