package db

import "context"

const schemaDDL = `
CREATE TABLE IF NOT EXISTS tokens (
	id           BIGSERIAL PRIMARY KEY,
	denom        TEXT NOT NULL UNIQUE,
	type         TEXT NOT NULL,
	name         TEXT,
	symbol       TEXT,
	display      TEXT,
	exponent     INT NOT NULL DEFAULT 6,
	supply       NUMERIC(78,0),
	socials      JSONB,
	holder_count BIGINT
);

CREATE TABLE IF NOT EXISTS dex_catalogue (
	dex_id           BIGSERIAL PRIMARY KEY,
	name             TEXT NOT NULL,
	factory_contract TEXT NOT NULL UNIQUE,
	router_contract  TEXT
);

CREATE TABLE IF NOT EXISTS pools (
	id             BIGSERIAL PRIMARY KEY,
	pair_contract  TEXT NOT NULL UNIQUE,
	dex_id         BIGINT NOT NULL REFERENCES dex_catalogue(dex_id),
	base_token_id  BIGINT NOT NULL REFERENCES tokens(id),
	quote_token_id BIGINT NOT NULL REFERENCES tokens(id),
	base_denom     TEXT NOT NULL,
	quote_denom    TEXT NOT NULL,
	pair_type      TEXT NOT NULL,
	is_uzig_quote  BOOLEAN NOT NULL,
	creator        TEXT,
	create_tx_hash TEXT,
	create_height  BIGINT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS trades (
	id                  BIGSERIAL PRIMARY KEY,
	created_at          TIMESTAMPTZ NOT NULL,
	tx_hash             TEXT NOT NULL,
	pool_id             BIGINT NOT NULL REFERENCES pools(id),
	msg_index           INT NOT NULL,
	action              TEXT NOT NULL,
	direction           TEXT NOT NULL,
	offer_denom         TEXT,
	offer_amount_base   NUMERIC(78,0),
	ask_denom           TEXT,
	ask_amount_base     NUMERIC(78,0),
	return_amount_base  NUMERIC(78,0),
	reserve_leg1_denom  TEXT,
	reserve_leg1_amt    NUMERIC(78,0),
	reserve_leg2_denom  TEXT,
	reserve_leg2_amt    NUMERIC(78,0),
	is_router           BOOLEAN NOT NULL DEFAULT false,
	height              BIGINT NOT NULL,
	signer              TEXT,
	size_class          TEXT,
	UNIQUE (tx_hash, pool_id, msg_index, created_at)
);
CREATE INDEX IF NOT EXISTS trades_created_at_idx ON trades (created_at);
CREATE INDEX IF NOT EXISTS trades_pool_id_idx ON trades (pool_id);

CREATE TABLE IF NOT EXISTS pool_state (
	pool_id      BIGINT PRIMARY KEY REFERENCES pools(id),
	base_denom   TEXT NOT NULL,
	base_amount  NUMERIC(78,0) NOT NULL,
	quote_denom  TEXT NOT NULL,
	quote_amount NUMERIC(78,0) NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS prices (
	token_id       BIGINT NOT NULL REFERENCES tokens(id),
	pool_id        BIGINT NOT NULL REFERENCES pools(id),
	price_in_zig   NUMERIC(38,18) NOT NULL,
	is_pair_native BOOLEAN NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (token_id, pool_id)
);

CREATE TABLE IF NOT EXISTS price_ticks (
	token_id     BIGINT NOT NULL REFERENCES tokens(id),
	pool_id      BIGINT NOT NULL REFERENCES pools(id),
	price_in_zig NUMERIC(38,18) NOT NULL,
	observed_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS price_ticks_token_observed_idx ON price_ticks (token_id, observed_at);

CREATE TABLE IF NOT EXISTS ohlcv_1m (
	pool_id      BIGINT NOT NULL REFERENCES pools(id),
	bucket_start TIMESTAMPTZ NOT NULL,
	open         NUMERIC(38,18) NOT NULL,
	high         NUMERIC(38,18) NOT NULL,
	low          NUMERIC(38,18) NOT NULL,
	close        NUMERIC(38,18) NOT NULL,
	volume_zig   NUMERIC(38,18) NOT NULL DEFAULT 0,
	trade_count  BIGINT NOT NULL DEFAULT 0,
	UNIQUE (pool_id, bucket_start)
);

CREATE TABLE IF NOT EXISTS pool_matrix (
	pool_id     BIGINT NOT NULL REFERENCES pools(id),
	bucket      TEXT NOT NULL CHECK (bucket IN ('30m','1h','4h','24h')),
	volume_zig  NUMERIC(38,18) NOT NULL DEFAULT 0,
	trade_count BIGINT NOT NULL DEFAULT 0,
	price_delta NUMERIC(38,18) NOT NULL DEFAULT 0,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (pool_id, bucket)
);

CREATE TABLE IF NOT EXISTS token_matrix (
	token_id    BIGINT NOT NULL REFERENCES tokens(id),
	bucket      TEXT NOT NULL CHECK (bucket IN ('30m','1h','4h','24h')),
	volume_zig  NUMERIC(38,18) NOT NULL DEFAULT 0,
	trade_count BIGINT NOT NULL DEFAULT 0,
	price_delta NUMERIC(38,18) NOT NULL DEFAULT 0,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (token_id, bucket)
);

CREATE TABLE IF NOT EXISTS large_trades (
	id         BIGSERIAL PRIMARY KEY,
	trade_id   BIGINT NOT NULL REFERENCES trades(id),
	bucket     TEXT NOT NULL CHECK (bucket IN ('30m','1h','4h','24h')),
	value_zig  NUMERIC(38,18) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS alerts (
	id         BIGSERIAL PRIMARY KEY,
	alert_type TEXT NOT NULL CHECK (alert_type IN ('price_cross','wallet_trade','large_trade','tvl_change')),
	subject_id BIGINT NOT NULL,
	payload    JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS index_state (
	id          BOOLEAN PRIMARY KEY DEFAULT true CHECK (id),
	last_height BIGINT NOT NULL DEFAULT 0
);
INSERT INTO index_state (id, last_height) VALUES (true, 0) ON CONFLICT DO NOTHING;
`

func (d *DB) bootstrap(ctx context.Context) error {
	_, err := d.Pool.Exec(ctx, schemaDDL)
	return err
}
