package db

// SchemaSQL defines the knowledge store table.
//
// Records are keyed by product_id (the record id), so a second CREATE of the
// same product fails with "already exists" instead of duplicating it. The
// record body is schemaless because specifications vary per category.
const SchemaSQL = `
    DEFINE TABLE IF NOT EXISTS product SCHEMALESS;
    DEFINE FIELD IF NOT EXISTS product_id ON product TYPE string;
    DEFINE FIELD IF NOT EXISTS product_name ON product TYPE string;
    DEFINE FIELD IF NOT EXISTS category ON product TYPE string;
    DEFINE FIELD IF NOT EXISTS price_usd ON product TYPE option<float | null>;
    DEFINE FIELD IF NOT EXISTS committed_at ON product TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS product_name_idx ON product FIELDS product_name;
    DEFINE INDEX IF NOT EXISTS product_category_idx ON product FIELDS category;
`
