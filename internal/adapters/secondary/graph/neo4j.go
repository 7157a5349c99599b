package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/jupiterclapton/cenackle-feed/internal/core/domain"
	"github.com/jupiterclapton/cenackle-feed/internal/core/ports"
)

type Neo4jGraph struct {
	driver neo4j.DriverWithContext
}

func NewNeo4jGraph(driver neo4j.DriverWithContext) *Neo4jGraph {
	return &Neo4jGraph{driver: driver}
}

var _ ports.FollowGraph = (*Neo4jGraph)(nil)

// EnsureSchema creates the User.id uniqueness constraint (which also indexes it).
func (r *Neo4jGraph) EnsureSchema(ctx context.Context) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `CREATE CONSTRAINT user_id_unique IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE`
		_, err := tx.Run(ctx, query, nil)
		return nil, err
	})
	return err
}

func (r *Neo4jGraph) Follow(ctx context.Context, followerID, authorID int64) error {
	if followerID == authorID {
		return nil
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		// MERGE makes a repeated follow a no-op.
		query := `
			MERGE (a:User {id: $followerId})
			MERGE (b:User {id: $authorId})
			MERGE (a)-[r:FOLLOWS]->(b)
			ON CREATE SET r.created_at = datetime()
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"followerId": followerID,
			"authorId":   authorID,
		})
		return nil, err
	})
	if err != nil {
		return graphError("follow", err)
	}
	return nil
}

func (r *Neo4jGraph) Unfollow(ctx context.Context, followerID, authorID int64) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (a:User {id: $followerId})-[r:FOLLOWS]->(b:User {id: $authorId})
			DELETE r
		`
		_, err := tx.Run(ctx, query, map[string]any{"followerId": followerID, "authorId": authorID})
		return nil, err
	})
	if err != nil {
		return graphError("unfollow", err)
	}
	return nil
}

func (r *Neo4jGraph) IsFollowing(ctx context.Context, followerID, authorID int64) (bool, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (a:User {id: $followerId})-[:FOLLOWS]->(b:User {id: $authorId})
			RETURN count(*) > 0 AS following
		`
		res, err := tx.Run(ctx, query, map[string]any{"followerId": followerID, "authorId": authorID})
		if err != nil {
			return false, err
		}
		if res.Next(ctx) {
			following, _ := res.Record().Get("following")
			b, _ := following.(bool)
			return b, nil
		}
		return false, res.Err()
	})
	if err != nil {
		return false, graphError("is following", err)
	}
	return result.(bool), nil
}

// FollowedAuthors returns the ids of the authors userID follows, ascending.
func (r *Neo4jGraph) FollowedAuthors(ctx context.Context, userID int64) ([]int64, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `MATCH (u:User {id: $userId})-[:FOLLOWS]->(a:User) RETURN a.id AS authorId ORDER BY authorId`
		res, err := tx.Run(ctx, query, map[string]any{"userId": userID})
		if err != nil {
			return nil, err
		}

		var authors []int64
		for res.Next(ctx) {
			id, _ := res.Record().Get("authorId")
			if v, ok := id.(int64); ok {
				authors = append(authors, v)
			}
		}
		return authors, res.Err()
	})
	if err != nil {
		return nil, graphError("followed authors", err)
	}
	return result.([]int64), nil
}

func graphError(op string, err error) error {
	return fmt.Errorf("neo4j %s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
