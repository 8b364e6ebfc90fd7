package graph

const (
	UpsertDocumentQuery = `
		MERGE (n:Document {id: $id})
		SET n.content_hash = $content_hash,
			n.title = $title,
			n.source = $source,
			n.document_type = $document_type,
			n.publication_date = $publication_date,
			n.updated_at = $updated_at
		RETURN n.id AS id
	`

	GetDocumentQuery = `
		MATCH (n:Document {id: $id})
		RETURN n.id AS id, n.content_hash AS content_hash, n.title AS title,
			n.source AS source, n.document_type AS document_type,
			n.publication_date AS publication_date
	`

	UpsertRelationshipQuery = `
		MATCH (source:Document {id: $source_id})
		MATCH (target:Document {id: $target_id})
		MERGE (source)-[e:RELATES_TO {type: $type}]->(target)
		SET e.confidence = $confidence,
			e.context = $context,
			e.updated_at = $updated_at
		RETURN e.type AS type
	`

	GetNeighborsQuery = `
		MATCH (n:Document {id: $id})-[e:RELATES_TO]-(m:Document)
		RETURN m.id AS id, m.title AS title, e.type AS type, e.confidence AS confidence,
			startNode(e).id AS source_id
	`

	GetNeighborsByTypeQuery = `
		MATCH (n:Document {id: $id})-[e:RELATES_TO {type: $type}]-(m:Document)
		RETURN m.id AS id, m.title AS title, e.type AS type, e.confidence AS confidence,
			startNode(e).id AS source_id
	`

	SearchDocumentsQuery = `
		MATCH (n:Document)
		WHERE ($source = "" OR n.source = $source)
			AND ($document_type = "" OR n.document_type = $document_type)
			AND ($date_from = "" OR n.publication_date >= $date_from)
			AND ($date_to = "" OR n.publication_date <= $date_to)
			AND ($text = "" OR toLower(n.title) CONTAINS toLower($text))
		RETURN n.id AS id, n.title AS title, n.source AS source,
			n.publication_date AS publication_date
		ORDER BY n.publication_date DESC
		LIMIT $limit
	`

	SetEmbeddingQuery = `
		MATCH (n:Document {id: $id})
		SET n.embedding = $embedding
		RETURN n.id AS id
	`

	GetEmbeddingsQuery = `
		MATCH (n:Document)
		WHERE n.embedding IS NOT NULL
		RETURN n.id AS id, n.title AS title, n.embedding AS embedding
	`
)
