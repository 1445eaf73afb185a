package audit_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"boxoffice/internal/audit"
	"boxoffice/internal/shared/transaction"
	"boxoffice/internal/testutil"

	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSink struct{ calls int }

func (f *failingSink) Record(ctx context.Context, entry *audit.AuditLogEntry) error {
	f.calls++
	return errors.New("sink down")
}

func TestGormSinkAppends(t *testing.T) {
	db := testutil.NewDB(t)
	sink := audit.NewGormSink(db)

	id := uuid.New()
	entry := audit.NewEntry(audit.EntityReservation, id, audit.ActionReservationCreated, "session:abc",
		map[string]interface{}{"seats": 2})
	require.NoError(t, sink.Record(context.Background(), entry))

	var stored audit.AuditLogEntry
	require.NoError(t, db.First(&stored, "entity_id = ?", id).Error)
	assert.Equal(t, audit.ActionReservationCreated, stored.Action)
	assert.JSONEq(t, `{"seats":2}`, stored.Payload)
}

func TestEmitWaitsForCommit(t *testing.T) {
	db := testutil.NewDB(t)
	sink := audit.NewGormSink(db)
	committed, rolledBack := uuid.New(), uuid.New()

	require.NoError(t, transaction.Run(context.Background(), db, func(ctx context.Context) error {
		audit.Emit(ctx, sink, audit.NewEntry(audit.EntityOrder, committed, audit.ActionOrderPaid, "system", nil))
		return nil
	}))

	err := transaction.Run(context.Background(), db, func(ctx context.Context) error {
		audit.Emit(ctx, sink, audit.NewEntry(audit.EntityOrder, rolledBack, audit.ActionOrderPaid, "system", nil))
		return errors.New("abort")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&audit.AuditLogEntry{}).Where("entity_id = ?", committed).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.NoError(t, db.Model(&audit.AuditLogEntry{}).Where("entity_id = ?", rolledBack).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitSwallowsSinkFailures(t *testing.T) {
	sink := &failingSink{}
	assert.NotPanics(t, func() {
		audit.Emit(context.Background(), sink, audit.NewEntry(audit.EntityOrder, uuid.New(), audit.ActionOrderPaid, "system", nil))
	})
	assert.Equal(t, 1, sink.calls)
}

func TestMultiSinkTriesEverySink(t *testing.T) {
	first, second := &failingSink{}, &failingSink{}
	err := audit.MultiSink{first, second}.Record(context.Background(),
		audit.NewEntry(audit.EntityOrder, uuid.New(), audit.ActionOrderPaid, "system", nil))

	require.Error(t, err)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestKafkaSinkPublishesEntry(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	id := uuid.New()

	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got audit.AuditLogEntry
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.EntityID != id || got.Action != audit.ActionReservationExpired {
			return errors.New("unexpected audit payload")
		}
		return nil
	})

	sink := audit.NewKafkaSinkWithProducer(producer, "booking-audit")
	err := sink.Record(context.Background(),
		audit.NewEntry(audit.EntityReservation, id, audit.ActionReservationExpired, audit.ActorSweeper, nil))
	require.NoError(t, err)
	require.NoError(t, sink.Close())
}

func TestKafkaSinkReportsSendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(errors.New("broker unavailable"))

	sink := audit.NewKafkaSinkWithProducer(producer, "booking-audit")
	err := sink.Record(context.Background(),
		audit.NewEntry(audit.EntityOrder, uuid.New(), audit.ActionOrderPaid, "system", nil))
	assert.ErrorContains(t, err, "broker unavailable")
	require.NoError(t, sink.Close())
}
