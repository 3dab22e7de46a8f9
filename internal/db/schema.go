package db

import "fmt"

// schemaTemplate defines the record table. The HNSW index dimension is
// filled in from the embedding model.
const schemaTemplate = `
    -- ==========================================================================
    -- COMMUNITY RECORD TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS community_record SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS platform ON community_record TYPE string;
    DEFINE FIELD IF NOT EXISTS content ON community_record TYPE string;
    DEFINE FIELD IF NOT EXISTS author ON community_record TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS timestamp ON community_record TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS metadata ON community_record TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS embedding ON community_record TYPE option<array<float>>;
    DEFINE FIELD IF NOT EXISTS embedding_model ON community_record TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS created ON community_record TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated ON community_record TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS record_platform ON community_record FIELDS platform;
    DEFINE INDEX IF NOT EXISTS record_timestamp ON community_record FIELDS timestamp;
    DEFINE INDEX IF NOT EXISTS record_embedding ON community_record FIELDS embedding HNSW DIMENSION %d DIST COSINE TYPE F32;
`

func schemaSQL(dimension int) string {
	return fmt.Sprintf(schemaTemplate, dimension)
}
