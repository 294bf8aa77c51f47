// Package domain holds the value types, sentinel errors and port interfaces
// shared by the market, stream, trading and adapter packages.
package domain
