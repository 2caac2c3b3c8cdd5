// Package model holds the relational domain types shared by every stage
// of the indexing pipeline: tokens, pools, trades, prices, and OHLCV bars.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TokenType string

const (
	TokenNative  TokenType = "native"
	TokenFactory TokenType = "factory"
	TokenIBC     TokenType = "ibc"
	TokenCW20    TokenType = "cw20"
)

// Token is unique by Denom. Metadata fields are filled in later by the
// Token Registry's LCD enrichment; new tokens are created denom-only.
type Token struct {
	ID          int64
	Denom       string
	Type        TokenType
	Name        *string
	Symbol      *string
	Display     *string
	Exponent    int // invariant: 0 <= Exponent <= 30
	Supply      *decimal.Decimal
	Socials     map[string]string
	HolderCount *int64
}

type PairType string

const (
	PairXYK                 PairType = "xyk"
	PairConcentrated        PairType = "concentrated"
	PairCustomConcentrated  PairType = "custom-concentrated"
)

// Pool is unique by PairContract. Mutable only via an explicit upsert.
type Pool struct {
	ID            int64
	PairContract  string
	DexID         int64
	BaseTokenID   int64
	QuoteTokenID  int64
	BaseDenom     string
	QuoteDenom    string
	PairType      PairType
	IsUzigQuote   bool
	Creator       string
	CreateTxHash  string
	CreateHeight  int64
	CreatedAt     time.Time
}

type Action string

const (
	ActionSwap     Action = "swap"
	ActionProvide  Action = "provide"
	ActionWithdraw Action = "withdraw"
)

type Direction string

const (
	DirBuy      Direction = "buy"
	DirSell     Direction = "sell"
	DirProvide  Direction = "provide"
	DirWithdraw Direction = "withdraw"
)

type SizeClass string

const (
	SizeShrimp SizeClass = "shrimp"
	SizeShark  SizeClass = "shark"
	SizeWhale  SizeClass = "whale"
)

// Trade is append-only; natural key is (CreatedAt, TxHash, PoolID, MsgIndex).
type Trade struct {
	ID               int64
	CreatedAt        time.Time
	TxHash           string
	PoolID           int64
	MsgIndex         int
	Action           Action
	Direction        Direction
	OfferDenom       string
	OfferAmountBase  *decimal.Decimal
	AskDenom         string
	AskAmountBase    *decimal.Decimal
	ReturnAmountBase *decimal.Decimal
	ReserveLeg1Denom string
	ReserveLeg1Amt   *decimal.Decimal
	ReserveLeg2Denom string
	ReserveLeg2Amt   *decimal.Decimal
	IsRouter         bool
	Height           int64
	Signer           string
	SizeClass        *SizeClass
	ValueZig         *decimal.Decimal // native-quote notional at enqueue time, not a DB column
}

// PoolState holds the last-observed reserves for a pool; overwritten on
// every swap.
type PoolState struct {
	PoolID      int64
	BaseDenom   string
	BaseAmount  decimal.Decimal
	QuoteDenom  string
	QuoteAmount decimal.Decimal
	UpdatedAt   time.Time
}

// Price is unique by (TokenID, PoolID); monotone-in-time under normal
// operation.
type Price struct {
	TokenID      int64
	PoolID       int64
	PriceInZig   decimal.Decimal
	IsPairNative bool
	UpdatedAt    time.Time
}

// PriceTick is an append-only observation in the price time series.
type PriceTick struct {
	TokenID    int64
	PoolID     int64
	PriceInZig decimal.Decimal
	ObservedAt time.Time
}

// OHLCV1m is unique by (PoolID, BucketStart) at one-minute granularity.
type OHLCV1m struct {
	PoolID      int64
	BucketStart time.Time
	Open        decimal.Decimal
	High        decimal.Decimal
	Low         decimal.Decimal
	Close       decimal.Decimal
	VolumeZig   decimal.Decimal
	TradeCount  int64
}

type Bucket string

const (
	Bucket30m Bucket = "30m"
	Bucket1h  Bucket = "1h"
	Bucket4h  Bucket = "4h"
	Bucket24h Bucket = "24h"
)

var AllBuckets = []Bucket{Bucket30m, Bucket1h, Bucket4h, Bucket24h}

// MatrixRow is a pool_matrix or token_matrix row, unique by (SubjectID, Bucket).
type MatrixRow struct {
	SubjectID  int64
	Bucket     Bucket
	VolumeZig  decimal.Decimal
	TradeCount int64
	PriceDelta decimal.Decimal
	UpdatedAt  time.Time
}

// IndexState is the single high-water mark row for resumable processing.
type IndexState struct {
	LastHeight int64
}

// PairCreatedPayload is published on the "pair_created" notify topic.
type PairCreatedPayload struct {
	PoolID       int64
	PairContract string
	BaseDenom    string
	QuoteDenom   string
	BaseTokenID  int64
	QuoteTokenID int64
	IsUzigQuote  bool
	CreatedAt    time.Time
}

const TopicPairCreated = "pair_created"
