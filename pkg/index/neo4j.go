package index

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jGraph is the Graph implementation backed by a Neo4j-compatible
// server (Neo4j, Memgraph). Documents and entities are nodes; MENTIONS
// edges connect a document's current version to its derived entities.
type Neo4jGraph struct {
	driver neo4j.DriverWithContext
}

// NewNeo4jGraph connects to the graph server and verifies
// connectivity.
func NewNeo4jGraph(ctx context.Context, uri, user, password string) (*Neo4jGraph, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create neo4j driver", goerr.V("uri", uri))
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, goerr.Wrap(err, "failed to connect to graph server", goerr.V("uri", uri))
	}
	return &Neo4jGraph{driver: driver}, nil
}

// BuildIndices creates lookup indices. Existing indices are not an
// error.
func (g *Neo4jGraph) BuildIndices(ctx context.Context) error {
	queries := []string{
		"CREATE INDEX document_id IF NOT EXISTS FOR (d:Document) ON (d.document_id)",
		"CREATE INDEX entity_name IF NOT EXISTS FOR (e:Entity) ON (e.name)",
	}
	for _, q := range queries {
		if _, err := neo4j.ExecuteQuery(ctx, g.driver, q, nil, neo4j.EagerResultTransformer); err != nil {
			return goerr.Wrap(err, "failed to create index", goerr.V("query", q))
		}
	}
	return nil
}

func (g *Neo4jGraph) Upsert(ctx context.Context, entry Entry) error {
	// MERGE on document identity, then repoint MENTIONS edges at the
	// newest version's entities.
	cypher := `
		MERGE (d:Document {document_id: $document_id})
		SET d.version_id = $version_id
		WITH d
		OPTIONAL MATCH (d)-[old:MENTIONS]->(:Entity)
		DELETE old
		WITH DISTINCT d
		UNWIND $entities AS name
		MERGE (e:Entity {name: name})
		MERGE (d)-[:MENTIONS]->(e)
	`
	params := map[string]any{
		"document_id": entry.DocumentID,
		"version_id":  entry.VersionID,
		"entities":    entry.Entities,
	}

	if _, err := neo4j.ExecuteQuery(ctx, g.driver, cypher, params, neo4j.EagerResultTransformer); err != nil {
		return goerr.Wrap(err, "failed to upsert graph entry", goerr.V("document_id", entry.DocumentID))
	}
	return nil
}

func (g *Neo4jGraph) Related(ctx context.Context, anchor string, k int) ([]Candidate, error) {
	cypher := `
		MATCH (e:Entity {name: $anchor})<-[:MENTIONS]-(d:Document)
		RETURN d.document_id AS document_id, d.version_id AS version_id
		ORDER BY document_id
		LIMIT $k
	`
	params := map[string]any{
		"anchor": anchor,
		"k":      k,
	}

	result, err := neo4j.ExecuteQuery(ctx, g.driver, cypher, params, neo4j.EagerResultTransformer)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query related documents", goerr.V("anchor", anchor))
	}

	candidates := make([]Candidate, 0, len(result.Records))
	for _, rec := range result.Records {
		docID, _ := rec.Get("document_id")
		versionID, _ := rec.Get("version_id")

		doc, ok := docID.(string)
		if !ok {
			continue
		}
		version, _ := versionID.(string)
		candidates = append(candidates, Candidate{
			DocumentID: doc,
			VersionID:  version,
			Score:      1.0,
		})
	}
	return candidates, nil
}

// Close shuts down the driver.
func (g *Neo4jGraph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}
