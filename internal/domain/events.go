package domain

// EventType discriminates the payload carried by an Event.
type EventType string

const (
	EventTypeCustomerRegistered      EventType = "customer_registered"
	EventTypeCustomerUpdated         EventType = "customer_updated"
	EventTypeCustomerPositionCreated EventType = "customer_position_created"
	EventTypeGoldTokenMinted         EventType = "gold_token_minted"
)

// EventSchemaVersion is the current version of the event record layout.
// Consumers must ignore events with a version they do not understand.
const EventSchemaVersion = 1

// Event is one record of the append-only log. Seq is assigned by the log
// at append time and is contiguous and strictly increasing, starting at 1.
// Exactly one payload pointer is non-nil, matching Type.
type Event struct {
	Seq           uint64    `json:"seq"`
	SchemaVersion int       `json:"schemaVersion"`
	Type          EventType `json:"type"`
	Timestamp     int64     `json:"timestamp"` // unix milliseconds

	CustomerRegistered      *CustomerRegisteredEvent      `json:"customerRegistered,omitempty"`
	CustomerUpdated         *CustomerUpdatedEvent         `json:"customerUpdated,omitempty"`
	CustomerPositionCreated *CustomerPositionCreatedEvent `json:"customerPositionCreated,omitempty"`
	GoldTokenMinted         *GoldTokenMintedEvent         `json:"goldTokenMinted,omitempty"`
}

// CustomerRegisteredEvent records the creation of a customer record.
type CustomerRegisteredEvent struct {
	Wallet     Address `json:"wallet"`
	SupabaseID Hash    `json:"supabaseId"`
	DataHash   Hash    `json:"dataHash"`
}

// CustomerUpdatedEvent records a fingerprint update on an existing record.
type CustomerUpdatedEvent struct {
	Wallet     Address `json:"wallet"`
	SupabaseID Hash    `json:"supabaseId"`
	DataHash   Hash    `json:"dataHash"`
}

// CustomerPositionCreatedEvent records one minted coin credited to a
// customer's running total. PieceValue duplicates the minted event's value
// so consumers can maintain per-wallet totals without a token-id join.
type CustomerPositionCreatedEvent struct {
	Wallet     Address `json:"wallet"`
	TokenID    uint64  `json:"tokenId"`
	Amount     uint64  `json:"amount"`
	PieceValue uint64  `json:"pieceValue"`
}

// GoldTokenMintedEvent records a newly minted token with its full
// valuation snapshot.
type GoldTokenMintedEvent struct {
	TokenID    uint64  `json:"tokenId"`
	To         Address `json:"to"`
	SupabaseID Hash    `json:"supabaseId"`
	GoldPrice  int64   `json:"goldPrice"`
	Quality    Quality `json:"quality"`
	PieceValue uint64  `json:"pieceValue"`
}
