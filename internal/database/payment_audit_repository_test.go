package database

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/staybook/reservation-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestPaymentAuditLog(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentAuditRepository(db, quietLogger())

	t.Run("Writes entry", func(t *testing.T) {
		audit := models.NewPaymentAudit(models.PaymentEventSignatureInvalid, models.PaymentSourceWebhook).
			SetError("signature mismatch", "INVALID_SIGNATURE")

		mock.ExpectExec(`INSERT INTO payment_audit_logs`).
			WithArgs(audit.ID, nil, nil, models.PaymentEventSignatureInvalid, models.PaymentSourceWebhook,
				nil, nil, nil, "signature mismatch", "INVALID_SIGNATURE",
				nil, false, nil, nil, nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Log(context.Background(), audit))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Surfaces database errors", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO payment_audit_logs`).
			WillReturnError(fmt.Errorf("relation does not exist"))

		err := repo.Log(context.Background(), models.NewPaymentAudit(models.PaymentEventError, models.PaymentSourceSystem))
		require.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rejects nil entry", func(t *testing.T) {
		assert.Error(t, repo.Log(context.Background(), nil))
	})
}
