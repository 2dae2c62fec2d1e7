package lots

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"agritrace/internal/ports"
)

var (
	ErrCertificateExists = errors.New("certificate already attached")
	ErrGeneratorDisabled = errors.New("contract generation is not configured")

	errRepositoryRequired = errors.New("lot repository is required")
	errUnitOfWorkRequired = errors.New("lot unit of work is required")
)

// Service runs the lot usecases. The repository, unit of work and cache are
// required; every other collaborator is optional and switches its feature
// off when absent.
type Service struct {
	repo      ports.LotRepository
	uow       ports.UnitOfWork
	cache     ports.Cache
	blobs     ports.BlobStore
	generator ports.ContractGenerator
	publisher ports.EventPublisher
	ledger    ports.Ledger
	metrics   ports.MetricsRecorder
	now       func() time.Time
	newLotID  func() string
}

type Option func(*Service)

func WithBlobStore(store ports.BlobStore) Option {
	return func(s *Service) { s.blobs = store }
}

func WithGenerator(generator ports.ContractGenerator) Option {
	return func(s *Service) { s.generator = generator }
}

func WithPublisher(publisher ports.EventPublisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func WithLedger(ledger ports.Ledger) Option {
	return func(s *Service) { s.ledger = ledger }
}

func WithMetrics(metrics ports.MetricsRecorder) Option {
	return func(s *Service) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLotIDGenerator(next func() string) Option {
	return func(s *Service) {
		if next != nil {
			s.newLotID = next
		}
	}
}

// NewService wires lot usecases with the record store and optional collaborators.
func NewService(repo ports.LotRepository, uow ports.UnitOfWork, cache ports.Cache, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		uow:      uow,
		cache:    cache,
		metrics:  ports.NopMetrics{},
		now:      time.Now,
		newLotID: defaultLotID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// defaultLotID returns ids like LOT-3F9A1C2B.
func defaultLotID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "LOT-" + strings.ToUpper(raw[:8])
}

func (s *Service) ready(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.repo == nil {
		return errRepositoryRequired
	}
	if s.uow == nil {
		return errUnitOfWorkRequired
	}
	return nil
}

func (s *Service) nowUTCString() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func (s *Service) setCacheBestEffort(ctx context.Context, key string, value string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, key, value, 0)
}

func cacheRelayCursorKey(name string) string {
	return "relay_cursor:" + name
}

func cacheAnchorPrefix(lotID string) string {
	return "anchor:" + lotID + ":"
}

func cacheAnchorKey(lotID string, seq int) string {
	return cacheAnchorPrefix(lotID) + itoa(seq)
}
