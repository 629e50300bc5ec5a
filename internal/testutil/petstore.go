// Package testutil provides the petstore fixture shared by package tests:
// table metadata, DDL and seed rows.
package testutil

import "github.com/bebedizo/DKO/internal/schema"

// Petstore tables. Schema "petstore" is attached as a separate database in
// SQLite tests.
var (
	Supplier = schema.NewTable("petstore", "supplier", "suppid", "name", "status")
	Product  = schema.NewTable("petstore", "product", "productid", "category", "name")
	Item     = schema.NewTable("petstore", "item", "itemid", "productid", "listprice", "supplier", "status")
)

// Tables lists the petstore tables in dependency order.
func Tables() []*schema.Table {
	return []*schema.Table{Supplier, Product, Item}
}

// PetstoreDDL creates the petstore tables.
const PetstoreDDL = `
CREATE TABLE IF NOT EXISTS petstore.supplier (
	suppid INTEGER PRIMARY KEY,
	name   TEXT NOT NULL,
	status TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS petstore.product (
	productid TEXT PRIMARY KEY,
	category  TEXT NOT NULL,
	name      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS petstore.item (
	itemid    TEXT PRIMARY KEY,
	productid TEXT NOT NULL REFERENCES product(productid),
	listprice REAL,
	supplier  INTEGER REFERENCES supplier(suppid),
	status    TEXT NOT NULL
);
`

// PetstoreSeed inserts the fixture rows. Supplier 3 is inactive and EST-4
// has no supplier.
const PetstoreSeed = `
INSERT INTO petstore.supplier (suppid, name, status) VALUES
	(1, 'XYZ Pets', 'AC'),
	(2, 'ABC Pets', 'AC'),
	(3, 'Gone Pets', 'IN');
INSERT INTO petstore.product (productid, category, name) VALUES
	('FI-SW-01', 'FISH', 'Angelfish'),
	('K9-BD-01', 'DOGS', 'Bulldog'),
	('RP-SN-01', 'REPTILES', 'Rattlesnake');
INSERT INTO petstore.item (itemid, productid, listprice, supplier, status) VALUES
	('EST-1', 'FI-SW-01', 16.5, 1, 'P'),
	('EST-2', 'FI-SW-01', 2.0, 1, 'P'),
	('EST-3', 'K9-BD-01', 4.0, 2, 'S'),
	('EST-4', 'K9-BD-01', 18.5, NULL, 'P'),
	('EST-5', 'RP-SN-01', 5.0, 3, 'S');
`

// FixedID is an id generator that always returns the same id, so logged
// statements are stable in golden output.
type FixedID string

// Generate returns the fixed id, or "stmt-fixed" when it is empty.
func (id FixedID) Generate() string {
	if id == "" {
		return "stmt-fixed"
	}
	return string(id)
}
