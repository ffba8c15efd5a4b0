package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/adpage/campaign-generator/internal/campaign"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *CampaignStore, time.Time) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	now := time.Unix(1700000000, 0).UTC()
	store, err := NewCampaignStoreWithPool(mock, "campaigns", fixedClock{now: now})
	require.NoError(t, err)
	return mock, store, now
}

func TestNewCampaignStoreWithPoolRejectsBadTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewCampaignStoreWithPool(mock, "campaigns; DROP TABLE", fixedClock{})
	require.Error(t, err)
}

func TestInitSchemaCreatesTable(t *testing.T) {
	t.Parallel()

	mock, store, _ := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS campaigns").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.InitSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertAssignsIDAndCreatedAt(t *testing.T) {
	t.Parallel()

	mock, store, now := newMockStore(t)

	c := campaign.Campaign{
		OriginalURL:        "https://shop.example/widget",
		ProductName:        "Widget",
		ProductDescription: "A widget.",
		GeneratedContent: campaign.GeneratedContent{
			AdCopy:               "Buy it.",
			Keywords:             []string{"widget"},
			CelebrityEndorsement: "Great!",
			Features:             []string{"fast"},
		},
	}

	contentJSON := []byte(`{"adCopy":"Buy it.","keywords":["widget"],"celebrityEndorsement":"Great!","features":["fast"]}`)

	mock.ExpectQuery("INSERT INTO campaigns").
		WithArgs(c.OriginalURL, c.ProductName, c.ProductDescription, contentJSON, now).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	stored, err := store.Insert(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, int64(42), stored.ID)
	require.Equal(t, now, stored.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDReturnsNotFound(t *testing.T) {
	t.Parallel()

	mock, store, _ := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM campaigns").
		WithArgs(int64(7)).
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetByID(context.Background(), 7)
	require.ErrorIs(t, err, campaign.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDUnmarshalsContent(t *testing.T) {
	t.Parallel()

	mock, store, now := newMockStore(t)

	contentJSON := []byte(`{"adCopy":"Copy","keywords":["k"],"celebrityEndorsement":"Quote","features":["f"]}`)
	rows := pgxmock.NewRows([]string{"id", "original_url", "product_name", "product_description", "generated_content", "created_at"}).
		AddRow(int64(5), "https://shop.example/x", "X", "Desc", contentJSON, now)

	mock.ExpectQuery("SELECT (.+) FROM campaigns").
		WithArgs(int64(5)).
		WillReturnRows(rows)

	c, err := store.GetByID(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, int64(5), c.ID)
	require.Equal(t, "X", c.ProductName)
	require.Equal(t, []string{"k"}, c.GeneratedContent.Keywords)
	require.Equal(t, now, c.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListAllReturnsRowsInOrder(t *testing.T) {
	t.Parallel()

	mock, store, now := newMockStore(t)

	rows := pgxmock.NewRows([]string{"id", "original_url", "product_name", "product_description", "generated_content", "created_at"}).
		AddRow(int64(2), "https://shop.example/b", "B", "", []byte(`{}`), now).
		AddRow(int64(1), "https://shop.example/a", "A", "", []byte(`{}`), now.Add(-time.Hour))

	mock.ExpectQuery("SELECT (.+) FROM campaigns").
		WillReturnRows(rows)

	campaigns, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, campaigns, 2)
	require.Equal(t, int64(2), campaigns[0].ID)
	require.Equal(t, int64(1), campaigns[1].ID)
	require.NotNil(t, campaigns[0].GeneratedContent.Keywords)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListAllEmptyReturnsEmptySlice(t *testing.T) {
	t.Parallel()

	mock, store, _ := newMockStore(t)

	rows := pgxmock.NewRows([]string{"id", "original_url", "product_name", "product_description", "generated_content", "created_at"})
	mock.ExpectQuery("SELECT (.+) FROM campaigns").WillReturnRows(rows)

	campaigns, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.NotNil(t, campaigns)
	require.Empty(t, campaigns)
	require.NoError(t, mock.ExpectationsWereMet())
}
