package sqlite

const querySchema = `
CREATE TABLE IF NOT EXISTS links (
    id      INTEGER PRIMARY KEY AUTOINCREMENT,
    domain1 VARCHAR(100) NOT NULL,
    domain2 VARCHAR(100) NOT NULL,
    one2two INTEGER NOT NULL DEFAULT 0,
    two2one INTEGER NOT NULL DEFAULT 0,
    UNIQUE (domain1, domain2)
)
`

const queryFindPair = `
SELECT id, domain1, domain2, one2two, two2one
FROM links
WHERE domain1 = ? AND domain2 = ?
`

const queryPairExists = `
SELECT 1 FROM links WHERE domain1 = ? AND domain2 = ?
`

const queryIncrementOne2Two = `
UPDATE links SET one2two = one2two + 1 WHERE domain1 = ? AND domain2 = ?
`

const queryIncrementTwo2One = `
UPDATE links SET two2one = two2one + 1 WHERE domain1 = ? AND domain2 = ?
`

const queryInsertPair = `
INSERT INTO links (domain1, domain2, one2two, two2one) VALUES (?, ?, ?, ?)
`

const queryTotals = `
SELECT COUNT(*), COALESCE(SUM(one2two + two2one), 0) FROM links
`
