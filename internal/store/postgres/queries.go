package postgres

const querySchema = `
CREATE TABLE IF NOT EXISTS links (
    id      BIGSERIAL PRIMARY KEY,
    domain1 VARCHAR(100) NOT NULL,
    domain2 VARCHAR(100) NOT NULL,
    one2two INTEGER NOT NULL DEFAULT 0,
    two2one INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT links_domain_pair UNIQUE (domain1, domain2)
)
`

const queryFindPair = `
SELECT id, domain1, domain2, one2two, two2one
FROM links
WHERE domain1 = $1 AND domain2 = $2
`

const queryPairExists = `
SELECT 1 FROM links WHERE domain1 = $1 AND domain2 = $2
`

const queryIncrementOne2Two = `
UPDATE links
SET one2two = one2two + 1
WHERE domain1 = $1 AND domain2 = $2
`

const queryIncrementTwo2One = `
UPDATE links
SET two2one = two2one + 1
WHERE domain1 = $1 AND domain2 = $2
`

const queryInsertPair = `
INSERT INTO links (domain1, domain2, one2two, two2one)
VALUES ($1, $2, $3, $4)
`

// queryLockPair serialises creators of the same unordered pair for the rest
// of the transaction. $1 is the canonical pair key.
const queryLockPair = `
SELECT pg_advisory_xact_lock(hashtext($1))
`

const queryTotals = `
SELECT COUNT(*), COALESCE(SUM(one2two::BIGINT + two2one::BIGINT), 0)
FROM links
`
