package review

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantguard/iamcore/pkg/errdefs"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewStore(db), mock, func() { db.Close() }
}

func TestStoreCreateCampaign(t *testing.T) {
	store, mock, closeDB := newMockStore(t)
	defer closeDB()

	c, err := NewCampaign(testDefinition(), testSnapshots(), testNow())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO review_campaigns").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(12)))
	for _, subject := range c.Subjects {
		mock.ExpectExec("INSERT INTO review_subjects").
			WillReturnResult(sqlmock.NewResult(0, 1))
		for range subject.Items {
			mock.ExpectExec("INSERT INTO review_items").
				WillReturnResult(sqlmock.NewResult(0, 1))
		}
	}
	mock.ExpectCommit()

	require.NoError(t, store.CreateCampaign(context.Background(), c))
	assert.Equal(t, int64(12), c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCreateCampaignZeroItemSubject(t *testing.T) {
	store, mock, closeDB := newMockStore(t)
	defer closeDB()

	c, err := NewCampaign(testDefinition(), []SubjectSnapshot{
		{PrincipalID: 102, DisplayName: "carol"},
	}, testNow())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO review_campaigns").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(13)))
	// The item-less subject persists as already complete, matching what
	// the decision-time SQL recompute would derive for it.
	mock.ExpectExec("INSERT INTO review_subjects").
		WithArgs(c.Subjects[0].ID, int64(13), int64(102), "carol", true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.CreateCampaign(context.Background(), c))
	assert.Equal(t, 1, c.CompletedSubjects)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRecordDecision(t *testing.T) {
	store, mock, closeDB := newMockStore(t)
	defer closeDB()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM review_campaigns").
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("in_review"))
	mock.ExpectExec("UPDATE review_items").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE review_subjects").
		WithArgs(int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("UPDATE review_campaigns").
		WithArgs(int64(12), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.RecordDecision(context.Background(), 12, "item-1", 55, ItemDecision{Type: DecisionKeep}, now)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRecordDecisionClosedCampaign(t *testing.T) {
	store, mock, closeDB := newMockStore(t)
	defer closeDB()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM review_campaigns").
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("completed"))
	mock.ExpectRollback()

	err := store.RecordDecision(context.Background(), 12, "item-1", 55, ItemDecision{Type: DecisionKeep}, testNow())
	assert.True(t, errdefs.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRecordDecisionRejectsPending(t *testing.T) {
	store, _, closeDB := newMockStore(t)
	defer closeDB()

	err := store.RecordDecision(context.Background(), 12, "item-1", 55, ItemDecision{Type: DecisionPending}, testNow())
	assert.True(t, errdefs.IsValidation(err))
}

func TestStoreRecordDecisionUnknownItem(t *testing.T) {
	store, mock, closeDB := newMockStore(t)
	defer closeDB()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM review_campaigns").
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("in_review"))
	mock.ExpectExec("UPDATE review_items").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.RecordDecision(context.Background(), 12, "ghost", 55, ItemDecision{Type: DecisionKeep}, testNow())
	assert.True(t, errdefs.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreAdvanceCampaign(t *testing.T) {
	store, mock, closeDB := newMockStore(t)
	defer closeDB()
	now := testNow()

	mock.ExpectQuery("SELECT status FROM review_campaigns").
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("draft"))
	mock.ExpectExec("UPDATE review_campaigns").
		WithArgs("in_review", now, int64(12), "draft").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.AdvanceCampaign(context.Background(), 12, StatusInReview, now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreAdvanceCampaignRejectsSkip(t *testing.T) {
	store, mock, closeDB := newMockStore(t)
	defer closeDB()

	mock.ExpectQuery("SELECT status FROM review_campaigns").
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("draft"))

	err := store.AdvanceCampaign(context.Background(), 12, StatusSubmitted, testNow())
	assert.True(t, errdefs.IsValidation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCloseCampaign(t *testing.T) {
	store, mock, closeDB := newMockStore(t)
	defer closeDB()
	now := testNow()

	mock.ExpectExec("UPDATE review_campaigns").
		WithArgs(int64(9), now, int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.CloseCampaign(context.Background(), 12, 9, now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCloseCampaignAlreadyClosed(t *testing.T) {
	store, mock, closeDB := newMockStore(t)
	defer closeDB()

	mock.ExpectExec("UPDATE review_campaigns").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := store.CloseCampaign(context.Background(), 12, 9, testNow())
	assert.True(t, errdefs.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCloseCampaignMissing(t *testing.T) {
	store, mock, closeDB := newMockStore(t)
	defer closeDB()

	mock.ExpectExec("UPDATE review_campaigns").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := store.CloseCampaign(context.Background(), 99, 9, testNow())
	assert.True(t, errdefs.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreAdHocLifecycle(t *testing.T) {
	store, mock, closeDB := newMockStore(t)
	defer closeDB()
	now := testNow()

	mock.ExpectQuery("INSERT INTO adhoc_reviews").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(4)))
	mock.ExpectExec("UPDATE adhoc_reviews").
		WithArgs(int64(9), now, int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	r := &AdHocReview{TenantID: 42, Name: "offboarding check", CreatedAt: now}
	require.NoError(t, store.CreateAdHoc(context.Background(), r))
	assert.Equal(t, int64(4), r.ID)
	assert.Equal(t, AdHocOpen, r.Status)

	require.NoError(t, store.CloseAdHoc(context.Background(), 4, 9, now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreAdHocValidation(t *testing.T) {
	store, _, closeDB := newMockStore(t)
	defer closeDB()

	err := store.CreateAdHoc(context.Background(), &AdHocReview{Name: "x"})
	assert.True(t, errdefs.IsValidation(err))
	err = store.CreateAdHoc(context.Background(), &AdHocReview{TenantID: 1})
	assert.True(t, errdefs.IsValidation(err))
}
