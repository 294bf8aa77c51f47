// Package market owns symbol price state. The Ledger is the single authority
// for last-known prices; the Generator derives the next tick for a symbol from
// the ledger; the Snapshotter persists ledger prices to object storage so a
// restart can resume from where the previous process stopped.
package market
