// Package invoice persists detected invoices to a CSV ledger on disk.
package invoice
