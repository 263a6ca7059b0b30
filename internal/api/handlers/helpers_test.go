package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	return bytes.NewReader(data)
}

func newMockRunDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, error) {
	t.Helper()
	return sqlmock.New()
}
