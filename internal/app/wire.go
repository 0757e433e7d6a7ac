package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/0xfraan/leverbet/internal/blob/s3"
	"github.com/0xfraan/leverbet/internal/cache/redis"
	"github.com/0xfraan/leverbet/internal/config"
	"github.com/0xfraan/leverbet/internal/crypto"
	"github.com/0xfraan/leverbet/internal/domain"
	"github.com/0xfraan/leverbet/internal/ledger"
	"github.com/0xfraan/leverbet/internal/oracle"
	"github.com/0xfraan/leverbet/internal/platform/pyth"
	"github.com/0xfraan/leverbet/internal/store/postgres"
	"github.com/0xfraan/leverbet/internal/token"
)

// Dependencies bundles every wired component that Run needs. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	BetArchive  domain.BetArchive
	PriceCache  domain.PriceCache
	EventBus    domain.EventBus
	RateLimiter domain.RateLimiter

	Transfer *token.Book
	Oracle   *oracle.Runtime
	Ledger   *ledger.Ledger

	Archiver *s3blob.Archiver
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL bet archive ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}
	deps.BetArchive = postgres.NewBetStore(pgClient.Pool())

	// --- Redis: price cache, event bus, rate limiter ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.PriceCache = redis.NewPriceCache(redisClient, cfg.Pyth.CacheTTL.Duration)
	deps.EventBus = redis.NewEventBus(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)

	// --- Pyth price resolver (cache in front of Hermes) ---
	feed := pyth.NewResolver(pyth.Config{
		BaseURL: cfg.Pyth.BaseURL,
		Feeds:   cfg.Pyth.Feeds,
	}, deps.PriceCache, logger)

	// --- Enclave signer ---
	keyHex, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Enclave.PrivateKey,
		EncryptedKeyPath: cfg.Enclave.EncryptedKeyPath,
		KeyPassword:      cfg.Enclave.KeyPassword,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: enclave key: %w", err)
	}
	signer, err := oracle.NewEnclaveSigner(keyHex)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: enclave signer: %w", err)
	}

	// --- Engine config ---
	ledgerCfg, err := buildLedgerConfig(cfg.Game)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	// --- Token book: escrow pre-funded with the liquidity ceiling so that
	// leveraged payouts beyond collected stakes can always be honored ---
	deps.Transfer = token.NewBook(logger)
	deps.Transfer.Credit(ledgerCfg.Escrow, ledgerCfg.MaxUtilizedLiquidity)

	// --- Oracle runtime ---
	computer := oracle.NewComputer(
		feed,
		signer,
		oracle.FunctionAddress(ledgerCfg.ProgramID),
		oracle.TransferCapAddress(ledgerCfg.ProgramID),
		logger,
	)
	deps.Oracle = oracle.NewRuntime(computer, logger)

	// --- Ledger ---
	deps.Ledger = ledger.NewLedger(
		ledgerCfg,
		deps.Transfer,
		deps.Oracle,
		deps.EventBus,
		deps.BetArchive,
		logger,
	)

	// Finalization commands flow back into the ledger.
	deps.Oracle.SetDeliver(func(ctx context.Context, cmd *oracle.SettleCommand) error {
		_, err := deps.Ledger.Settle(ctx, cmd)
		return err
	})

	// --- S3 cold-storage archiver (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.BetArchive)
	}

	return deps, cleanup, nil
}

// buildLedgerConfig converts the validated file configuration into the
// ledger's runtime representation.
func buildLedgerConfig(game config.GameConfig) (ledger.Config, error) {
	cfg := ledger.Config{
		ProgramID:            common.HexToAddress(game.ProgramID),
		Authority:            common.HexToAddress(game.Authority),
		Escrow:               common.HexToAddress(game.Escrow),
		MinBet:               game.MinBet,
		MaxBet:               game.MaxBet,
		MaxUtilizedLiquidity: game.MaxUtilizedLiquidity,
		CancelBuffer:         game.CancelBuffer,
		MinInterval:          game.MinInterval,
		MaxInterval:          game.MaxInterval,
		Leverage:             game.Leverage,
	}

	if len(game.Pairs) > ledger.MaxPairs {
		return ledger.Config{}, fmt.Errorf("wire: %d pairs configured, at most %d accepted", len(game.Pairs), ledger.MaxPairs)
	}
	for i, s := range game.Pairs {
		p, err := domain.ParsePair(s)
		if err != nil {
			return ledger.Config{}, fmt.Errorf("wire: pair %q: %w", s, err)
		}
		cfg.AcceptedPairs[i] = p
		cfg.NumPairs++
	}

	return cfg, nil
}
