package command

import (
	"context"

	"github.com/gocql/gocql"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/bus"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/schedule"
	"go.uber.org/zap"
)

// insertScheduleCQL is built once; gocql prepares it on first execution and
// serves later binds from its prepared-statement cache.
const insertScheduleCQL = `INSERT INTO schedule (data_time, description, document_number, customer, phone, email) VALUES (?, ?, ?, ?, ?, ?)`

// executor is the slice of the store session the persister uses; tests
// substitute a fake.
type executor interface {
	Exec(ctx context.Context, stmt string, values ...any) error
}

type sessionExecutor struct {
	session *gocql.Session
}

func (s sessionExecutor) Exec(ctx context.Context, stmt string, values ...any) error {
	return s.session.Query(stmt, values...).WithContext(ctx).Exec()
}

// Persister owns the store session and writes one row per accepted event.
// It performs no deduplication: the table keys rows by
// (document_number, data_time), so a redelivered event overwrites its own
// row and replay stays idempotent.
type Persister struct {
	registry *bus.Registry
	exec     executor
	log      *zap.Logger
}

func NewPersister(registry *bus.Registry, session *gocql.Session, log *zap.Logger) *Persister {
	return newPersister(registry, sessionExecutor{session: session}, log)
}

func newPersister(registry *bus.Registry, exec executor, log *zap.Logger) *Persister {
	return &Persister{
		registry: registry,
		exec:     exec,
		log:      log.With(zap.String("component", "schedule-persister")),
	}
}

func (p *Persister) Register() error {
	return p.registry.Register(schedule.AddressReceived, p.handle)
}

func (p *Persister) handle(ctx context.Context, body any) (any, error) {
	event, ok := body.(schedule.Event)
	if !ok {
		return nil, bus.NewFailure(bus.KindInternal, "unexpected message type %T at %s", body, schedule.AddressReceived)
	}

	row := schedule.NewRow(event)
	err := p.exec.Exec(ctx, insertScheduleCQL,
		row.DateTime, row.Description, row.DocumentNumber, row.Customer, row.Phone, row.Email)
	if err != nil {
		p.log.Error("failed to persist schedule",
			zap.String("documentNumber", row.DocumentNumber),
			zap.Error(err))
		return nil, bus.NewFailure(bus.KindConnectionError, "%s", err.Error())
	}

	p.log.Info("schedule persisted",
		zap.String("documentNumber", row.DocumentNumber),
		zap.Time("dateTime", row.DateTime))
	return schedule.ReplyOK, nil
}
