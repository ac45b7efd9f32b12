package pantry

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jknair0/beforeeach"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	db   *sql.DB
	mock sqlmock.Sqlmock
)

func setUp() {
	db, mock, _ = sqlmock.New()
}

func tearDown() {
	db.Close()
}

var it = beforeeach.Create(setUp, tearDown)

func newMockedStore(t *testing.T) *PostgresStore {
	t.Helper()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS app_state").WillReturnResult(sqlmock.NewResult(0, 0))
	store, err := NewPostgresStoreWithDB(sqlx.NewDb(db, "postgres"))
	require.NoError(t, err)
	return store
}

func TestPostgresStore_CreateTableError(t *testing.T) {
	it(func() {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS app_state").WillReturnError(errors.New("permission denied"))

		_, err := NewPostgresStoreWithDB(sqlx.NewDb(db, "postgres"))
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_Load(t *testing.T) {
	it(func() {
		store := newMockedStore(t)
		ctx := context.Background()

		testCases := []struct {
			name          string
			key           string
			rows          *sqlmock.Rows
			queryErr      error
			want          []byte
			errorExpected bool
		}{
			{
				name: "Stored value",
				key:  ShoppingListKey,
				rows: sqlmock.NewRows([]string{"value"}).AddRow([]byte(`["milk"]`)),
				want: []byte(`["milk"]`),
			}, {
				name:     "Missing key",
				key:      ProfilesKey,
				queryErr: sql.ErrNoRows,
				want:     nil,
			}, {
				name:          "Database error",
				key:           ProfilesKey,
				queryErr:      errors.New("connection reset"),
				errorExpected: true,
			},
		}

		for _, testCase := range testCases {
			q := mock.ExpectQuery("SELECT value FROM app_state WHERE key = \\$1").WithArgs(testCase.key)
			if testCase.queryErr != nil {
				q.WillReturnError(testCase.queryErr)
			} else {
				q.WillReturnRows(testCase.rows)
			}

			got, err := store.Load(ctx, testCase.key)
			if testCase.errorExpected {
				assert.Error(t, err, testCase.name)
				continue
			}
			assert.NoError(t, err, testCase.name)
			assert.Equal(t, testCase.want, got, testCase.name)
		}

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_Save(t *testing.T) {
	it(func() {
		store := newMockedStore(t)
		ctx := context.Background()

		mock.ExpectExec("INSERT INTO app_state \\(key, value, updated_at\\) VALUES \\(\\$1, \\$2, NOW\\(\\)\\) ON CONFLICT \\(key\\) DO UPDATE").
			WithArgs(ShoppingListKey, `["milk","eggs"]`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, store.Save(ctx, ShoppingListKey, []byte(`["milk","eggs"]`)))

		mock.ExpectExec("INSERT INTO app_state").
			WithArgs(ProfilesKey, `[]`).
			WillReturnError(errors.New("disk full"))
		assert.Error(t, store.Save(ctx, ProfilesKey, []byte(`[]`)))

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_ShoppingListRoundTrip(t *testing.T) {
	it(func() {
		store := newMockedStore(t)
		ctx := context.Background()

		mock.ExpectQuery("SELECT value FROM app_state").
			WithArgs(ShoppingListKey).
			WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`["Milk"]`)))
		list := LoadShoppingList(ctx, store)
		assert.Equal(t, []string{"Milk"}, list.Items())

		mock.ExpectExec("INSERT INTO app_state").
			WithArgs(ShoppingListKey, `["Milk","Bread"]`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		added, err := list.Add(ctx, "Bread")
		require.NoError(t, err)
		assert.True(t, added)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
