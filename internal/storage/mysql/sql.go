package mysql

const priceRuleCols = `
  p.id, p.description, p.amount, p.vat, p.vat_included, p.flat, p.kind,
  p.season_start, p.season_end, p.weekdays, p.all_days, p.active, p.priority,
  p.beds, p.persons, p.min_stay`

// Origin and category filters bind the same id twice; a NULL id only
// matches unrestricted rules.
const priceRulesSQL = `
SELECT` + priceRuleCols + `
FROM price_rules p
WHERE p.active = 1
  AND p.kind IN (%s)
  AND (NOT EXISTS (SELECT 1 FROM price_rule_origins o WHERE o.price_rule_id = p.id)
       OR EXISTS (SELECT 1 FROM price_rule_origins o WHERE o.price_rule_id = p.id AND o.origin_id = ?))
  AND (NOT EXISTS (SELECT 1 FROM price_rule_categories c WHERE c.price_rule_id = p.id)
       OR EXISTS (SELECT 1 FROM price_rule_categories c WHERE c.price_rule_id = p.id AND c.category_id = ?))
ORDER BY p.priority, p.id
`

const conflictCandidatesSQL = `
SELECT` + priceRuleCols + `
FROM price_rules p
WHERE p.active = 1 AND p.kind = ? AND p.id <> ?
ORDER BY p.priority, p.id
`

const listPriceRulesSQL = `
SELECT` + priceRuleCols + `
FROM price_rules p
ORDER BY p.priority, p.id
`

const getPriceRuleSQL = `
SELECT` + priceRuleCols + `
FROM price_rules p
WHERE p.id = ?
`

const insertPriceRuleSQL = `
INSERT INTO price_rules
  (description, amount, vat, vat_included, flat, kind, season_start, season_end,
   weekdays, all_days, active, priority, beds, persons, min_stay)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const updatePriceRuleSQL = `
UPDATE price_rules SET
  description  = ?,
  amount       = ?,
  vat          = ?,
  vat_included = ?,
  flat         = ?,
  kind         = ?,
  season_start = ?,
  season_end   = ?,
  weekdays     = ?,
  all_days     = ?,
  active       = ?,
  priority     = ?,
  beds         = ?,
  persons      = ?,
  min_stay     = ?
WHERE id = ?
`

const ruleOriginsSQL = `SELECT price_rule_id, origin_id FROM price_rule_origins WHERE price_rule_id IN (%s) ORDER BY origin_id`
const ruleCategoriesSQL = `SELECT price_rule_id, category_id FROM price_rule_categories WHERE price_rule_id IN (%s) ORDER BY category_id`

const reservationCols = `
  r.id, r.start_date, r.end_date, r.persons, r.origin_id, r.status_id, COALESCE(r.remark, ''),
  a.id, a.number, a.description, a.beds_max, a.category_id, a.property_id`

// Half-open periods: a stay ending on start does not touch the range.
const reservationsForApartmentSQL = `
SELECT` + reservationCols + `
FROM reservations r
JOIN apartments a ON a.id = r.apartment_id
WHERE r.apartment_id = ? AND r.start_date < ? AND r.end_date > ?
ORDER BY r.start_date, r.id
`

const getReservationSQL = `
SELECT` + reservationCols + `
FROM reservations r
JOIN apartments a ON a.id = r.apartment_id
WHERE r.id = ?
`

const reservationPricesSQL = `
SELECT` + priceRuleCols + `
FROM reservation_prices rp
JOIN price_rules p ON p.id = rp.price_rule_id
WHERE rp.reservation_id = ?
ORDER BY p.priority, p.id
`

const insertReservationSQL = `
INSERT INTO reservations (apartment_id, start_date, end_date, persons, origin_id, status_id, remark)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

const updateReservationSQL = `
UPDATE reservations SET
  apartment_id = ?,
  start_date   = ?,
  end_date     = ?,
  persons      = ?,
  origin_id    = ?,
  status_id    = ?,
  remark       = ?
WHERE id = ?
`

const apartmentCols = `a.id, a.number, a.description, a.beds_max, a.category_id, a.property_id`

const getApartmentSQL = `SELECT ` + apartmentCols + ` FROM apartments a WHERE a.id = ?`
const listApartmentsSQL = `SELECT ` + apartmentCols + ` FROM apartments a ORDER BY a.number, a.id`

const insertInvoiceSQL = `
INSERT INTO invoices (number, invoice_date, customer, remark, status)
VALUES (?, ?, ?, ?, ?)
`

const insertInvoiceApartmentSQL = `
INSERT INTO invoice_apartments
  (invoice_id, pos, description, number, start_date, end_date, persons, beds, price, vat, includes_vat, flat)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const insertInvoicePositionSQL = `
INSERT INTO invoice_positions
  (invoice_id, pos, description, amount, price, vat, includes_vat, flat)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

const getInvoiceSQL = `
SELECT id, number, invoice_date, customer, COALESCE(remark, ''), status
FROM invoices WHERE id = ?
`

const invoiceReservationsSQL = `SELECT reservation_id FROM invoice_reservations WHERE invoice_id = ? ORDER BY reservation_id`

const invoiceApartmentsSQL = `
SELECT description, number, start_date, end_date, persons, beds, price, vat, includes_vat, flat
FROM invoice_apartments WHERE invoice_id = ? ORDER BY pos
`

const invoicePositionsSQL = `
SELECT description, amount, price, vat, includes_vat, flat
FROM invoice_positions WHERE invoice_id = ? ORDER BY pos
`

const insertMissSQL = `INSERT INTO import_misses (source, ref, reason) VALUES (?, ?, ?)`

const getLockSQL = `SELECT GET_LOCK(?, ?)`
const releaseLockSQL = `DO RELEASE_LOCK(?)`
