package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"reconciler/internal/models"
)

func TestCommitMatchedPairUpdatesBothTradesInOneTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	internal := &models.Trade{ID: "TR-1", Status: models.TradeStatusMatched, MatchedTradeID: "TR-2"}
	external := &models.Trade{ID: "TR-2", Status: models.TradeStatusMatched, MatchedTradeID: "TR-1"}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE trades SET status`).
		WithArgs(internal.Status, internal.MatchedTradeID, internal.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE trades SET status`).
		WithArgs(external.Status, external.MatchedTradeID, external.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	store := NewPostgresStore(db)
	if err := store.CommitMatchedPair(context.Background(), internal, external); err != nil {
		t.Fatalf("CommitMatchedPair() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCommitMatchedPairRollsBackOnSecondUpdateFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	internal := &models.Trade{ID: "TR-1", Status: models.TradeStatusMatched, MatchedTradeID: "TR-2"}
	external := &models.Trade{ID: "TR-2", Status: models.TradeStatusMatched, MatchedTradeID: "TR-1"}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE trades SET status`).
		WithArgs(internal.Status, internal.MatchedTradeID, internal.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE trades SET status`).
		WithArgs(external.Status, external.MatchedTradeID, external.ID).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	store := NewPostgresStore(db)
	if err := store.CommitMatchedPair(context.Background(), internal, external); err == nil {
		t.Fatal("CommitMatchedPair() error = nil, want non-nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
