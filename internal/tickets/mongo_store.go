package tickets

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoStatsStore aggregates counts over the tickets collection. It never
// mutates tickets.
type MongoStatsStore struct {
	coll *mongo.Collection
}

func NewMongoStatsStore(cli *mongo.Client, db, coll string) *MongoStatsStore {
	return &MongoStatsStore{coll: cli.Database(db).Collection(coll)}
}

func (s *MongoStatsStore) Stats(ctx context.Context, f StatsFilter) (*Stats, error) {
	base := bson.M{}
	if !f.Empty() {
		created := bson.M{}
		if !f.From.IsZero() {
			created["$gte"] = f.From
		}
		if !f.To.IsZero() {
			created["$lte"] = f.To
		}
		base["createdAt"] = created
	}

	withFilter := func(extra bson.M) bson.M {
		m := bson.M{}
		for k, v := range base {
			m[k] = v
		}
		for k, v := range extra {
			m[k] = v
		}
		return m
	}

	out := &Stats{
		ByStatus:   map[Status]int64{},
		ByPriority: map[Priority]int64{},
	}

	total, err := s.coll.CountDocuments(ctx, base)
	if err != nil {
		return nil, err
	}
	out.Total = total

	for _, st := range []Status{StatusOpen, StatusInProgress, StatusResolved, StatusClosed} {
		n, err := s.coll.CountDocuments(ctx, withFilter(bson.M{"status": st}))
		if err != nil {
			return nil, err
		}
		out.ByStatus[st] = n
	}
	for _, p := range []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent} {
		n, err := s.coll.CountDocuments(ctx, withFilter(bson.M{"priority": p}))
		if err != nil {
			return nil, err
		}
		out.ByPriority[p] = n
	}

	perAgent, err := s.perAgent(ctx, base)
	if err != nil {
		return nil, err
	}
	out.PerAgent = perAgent

	avg, err := s.avgResolutionHours(ctx, withFilter(bson.M{
		"status":     StatusResolved,
		"resolvedAt": bson.M{"$exists": true},
	}))
	if err != nil {
		return nil, err
	}
	out.AvgResolutionHours = avg

	return out, nil
}

func (s *MongoStatsStore) perAgent(ctx context.Context, base bson.M) ([]AgentLoad, error) {
	match := bson.M{"assignedTo": bson.M{"$ne": nil}}
	for k, v := range base {
		match[k] = v
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": "$assignedTo", "count": bson.M{"$sum": 1}}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "users",
			"localField":   "_id",
			"foreignField": "_id",
			"as":           "agent",
		}}},
		{{Key: "$unwind", Value: "$agent"}},
		{{Key: "$project", Value: bson.M{
			"name":  "$agent.name",
			"email": "$agent.email",
			"count": 1,
		}}},
	}

	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var loads []AgentLoad
	for cur.Next(ctx) {
		var row struct {
			ID    primitive.ObjectID `bson:"_id"`
			Name  string             `bson:"name"`
			Email string             `bson:"email"`
			Count int64              `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		loads = append(loads, AgentLoad{
			AgentID: row.ID.Hex(),
			Name:    row.Name,
			Email:   row.Email,
			Count:   row.Count,
		})
	}
	return loads, cur.Err()
}

func (s *MongoStatsStore) avgResolutionHours(ctx context.Context, filter bson.M) (float64, error) {
	cur, err := s.coll.Find(ctx, filter)
	if err != nil {
		return 0, err
	}
	defer cur.Close(ctx)

	var totalHours float64
	var n int
	for cur.Next(ctx) {
		var doc struct {
			CreatedAt  time.Time `bson:"createdAt"`
			ResolvedAt time.Time `bson:"resolvedAt"`
		}
		if err := cur.Decode(&doc); err != nil {
			return 0, err
		}
		diff := doc.ResolvedAt.Sub(doc.CreatedAt).Hours()
		if diff > 0 {
			totalHours += diff
			n++
		}
	}
	if err := cur.Err(); err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return totalHours / float64(n), nil
}
