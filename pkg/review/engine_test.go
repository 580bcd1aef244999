package review

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantguard/iamcore/pkg/errdefs"
)

func testNow() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func testDefinition() Definition {
	creator := int64(7)
	return Definition{
		TenantID:    42,
		Name:        "Q1 access review",
		SystemName:  "billing-portal",
		ReviewType:  ReviewTypeUserAccess,
		PeriodStart: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		DueDate:     time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC),
		CreatedBy:   &creator,
	}
}

func testSnapshots() []SubjectSnapshot {
	roleA, roleB := int64(1), int64(2)
	return []SubjectSnapshot{
		{
			PrincipalID: 100,
			DisplayName: "alice",
			Entitlements: []EntitlementSnapshot{
				{Name: "billing:viewer", RoleID: &roleA, PrivilegeLevel: PrivilegeStandard},
				{Name: "billing:admin", RoleID: &roleB, PrivilegeLevel: PrivilegeAdmin},
			},
		},
		{
			PrincipalID: 101,
			DisplayName: "bob",
			Entitlements: []EntitlementSnapshot{
				{Name: "billing:viewer", RoleID: &roleA, PrivilegeLevel: PrivilegeStandard},
			},
		},
	}
}

func TestNewCampaignSnapshot(t *testing.T) {
	c, err := NewCampaign(testDefinition(), testSnapshots(), testNow())
	require.NoError(t, err)

	assert.Equal(t, StatusDraft, c.Status)
	assert.Equal(t, 2, c.TotalSubjects)
	assert.Equal(t, 3, c.TotalItems)
	assert.Equal(t, 0, c.CompletedItems)
	assert.Equal(t, 0, c.CompletedSubjects)
	assert.Equal(t, 0, c.CompletionPercentage())

	// Admin-tier entitlement marks the item privileged and forces
	// second-level approval from the moment of snapshot.
	assert.True(t, c.Subjects[0].Items[1].Privileged)
	assert.False(t, c.Subjects[0].Items[0].Privileged)
	assert.True(t, c.Approvals.SecondLevelRequired)

	seen := map[string]bool{}
	for _, s := range c.Subjects {
		require.NotEmpty(t, s.ID)
		require.False(t, seen[s.ID])
		seen[s.ID] = true
		for _, item := range s.Items {
			require.NotEmpty(t, item.ID)
			require.False(t, seen[item.ID])
			seen[item.ID] = true
			assert.Equal(t, DecisionPending, item.Decision.Type)
		}
	}
}

func TestNewCampaignValidation(t *testing.T) {
	def := testDefinition()
	def.TenantID = 0
	_, err := NewCampaign(def, nil, testNow())
	assert.True(t, errdefs.IsValidation(err))

	def = testDefinition()
	def.Name = ""
	_, err = NewCampaign(def, nil, testNow())
	assert.True(t, errdefs.IsValidation(err))

	def = testDefinition()
	def.ReviewType = "quarterly"
	_, err = NewCampaign(def, nil, testNow())
	assert.True(t, errdefs.IsValidation(err))

	def = testDefinition()
	def.PeriodEnd = def.PeriodStart.Add(-time.Hour)
	_, err = NewCampaign(def, nil, testNow())
	assert.True(t, errdefs.IsValidation(err))
}

func TestRecordDecisionLifecycle(t *testing.T) {
	c, err := NewCampaign(testDefinition(), testSnapshots(), testNow())
	require.NoError(t, err)
	now := testNow().Add(time.Hour)

	// First decision activates the campaign.
	err = c.RecordDecision(c.Subjects[1].Items[0].ID, 55, ItemDecision{Type: DecisionKeep}, now)
	require.NoError(t, err)
	assert.Equal(t, StatusInReview, c.Status)
	assert.Equal(t, 1, c.CompletedItems)
	assert.Equal(t, 1, c.CompletedSubjects)
	assert.True(t, c.Subjects[1].Completed)
	assert.Equal(t, 33, c.CompletionPercentage())
	require.NotNil(t, c.Subjects[1].Items[0].Decision.ReviewerID)
	assert.Equal(t, int64(55), *c.Subjects[1].Items[0].Decision.ReviewerID)

	err = c.RecordDecision(c.Subjects[0].Items[0].ID, 55, ItemDecision{
		Type:       DecisionRemove,
		ReasonCode: "job_change",
	}, now)
	require.NoError(t, err)
	assert.Equal(t, 2, c.CompletedItems)
	assert.False(t, c.Subjects[0].Completed)
	assert.Equal(t, 67, c.CompletionPercentage(), "2 of 3 rounds up, not down")

	err = c.RecordDecision(c.Subjects[0].Items[1].ID, 56, ItemDecision{
		Type:           DecisionChange,
		RequestedRoles: []int64{3},
	}, now)
	require.NoError(t, err)
	assert.Equal(t, 3, c.CompletedItems)
	assert.Equal(t, 2, c.CompletedSubjects)
	assert.Equal(t, 100, c.CompletionPercentage())
}

func TestCounterBounds(t *testing.T) {
	c, err := NewCampaign(testDefinition(), testSnapshots(), testNow())
	require.NoError(t, err)
	now := testNow()

	check := func() {
		assert.GreaterOrEqual(t, c.CompletedItems, 0)
		assert.LessOrEqual(t, c.CompletedItems, c.TotalItems)
		assert.GreaterOrEqual(t, c.CompletedSubjects, 0)
		assert.LessOrEqual(t, c.CompletedSubjects, c.TotalSubjects)
	}
	check()
	for _, s := range c.Subjects {
		for _, item := range s.Items {
			require.NoError(t, c.RecordDecision(item.ID, 55, ItemDecision{Type: DecisionKeep}, now))
			check()
		}
	}
	// Re-deciding an already decided item never double-counts.
	require.NoError(t, c.RecordDecision(c.Subjects[0].Items[0].ID, 55, ItemDecision{Type: DecisionRemove}, now))
	assert.Equal(t, c.TotalItems, c.CompletedItems)
	check()
}

func TestSecondLevelRequiredIsMonotonic(t *testing.T) {
	// Keeping a privileged entitlement still forces second-level approval.
	snaps := testSnapshots()
	snaps[0].Entitlements[1].PrivilegeLevel = PrivilegeSuperAdmin
	c, err := NewCampaign(testDefinition(), snaps, testNow())
	require.NoError(t, err)
	require.True(t, c.Approvals.SecondLevelRequired)

	err = c.RecordDecision(c.Subjects[0].Items[1].ID, 55, ItemDecision{Type: DecisionKeep}, testNow())
	require.NoError(t, err)
	assert.True(t, c.Approvals.SecondLevelRequired)

	// The flag survives every later recomputation, even after the
	// privileged item is decided for removal.
	err = c.RecordDecision(c.Subjects[0].Items[1].ID, 55, ItemDecision{Type: DecisionRemove}, testNow())
	require.NoError(t, err)
	Recompute(c)
	assert.True(t, c.Approvals.SecondLevelRequired)
}

func TestDecisionRevision(t *testing.T) {
	c, err := NewCampaign(testDefinition(), testSnapshots(), testNow())
	require.NoError(t, err)
	itemID := c.Subjects[0].Items[0].ID

	require.NoError(t, c.RecordDecision(itemID, 55, ItemDecision{Type: DecisionKeep}, testNow()))
	require.NoError(t, c.RecordDecision(itemID, 56, ItemDecision{Type: DecisionRemove}, testNow()))
	assert.Equal(t, DecisionRemove, c.Subjects[0].Items[0].Decision.Type)

	// Reverting to pending is never legal.
	err = c.RecordDecision(itemID, 56, ItemDecision{Type: DecisionPending}, testNow())
	assert.True(t, errdefs.IsValidation(err))
	assert.Equal(t, DecisionRemove, c.Subjects[0].Items[0].Decision.Type)
}

func TestChangeDecisionRequiresRoles(t *testing.T) {
	c, err := NewCampaign(testDefinition(), testSnapshots(), testNow())
	require.NoError(t, err)

	err = c.RecordDecision(c.Subjects[0].Items[0].ID, 55, ItemDecision{Type: DecisionChange}, testNow())
	assert.True(t, errdefs.IsValidation(err))
}

func TestRecordDecisionUnknownItem(t *testing.T) {
	c, err := NewCampaign(testDefinition(), testSnapshots(), testNow())
	require.NoError(t, err)

	err = c.RecordDecision("no-such-item", 55, ItemDecision{Type: DecisionKeep}, testNow())
	assert.True(t, errdefs.IsNotFound(err))
}

func TestAdvanceIsLinear(t *testing.T) {
	c, err := NewCampaign(testDefinition(), testSnapshots(), testNow())
	require.NoError(t, err)

	err = c.Advance(StatusSubmitted, testNow())
	assert.True(t, errdefs.IsValidation(err), "skipping in_review must fail")

	require.NoError(t, c.Advance(StatusInReview, testNow()))
	require.NoError(t, c.Advance(StatusSubmitted, testNow()))
	require.NoError(t, c.Advance(StatusCompleted, testNow()))

	err = c.Advance(StatusCompleted, testNow())
	assert.True(t, errdefs.IsConflict(err))
}

func TestCloseWithPendingItems(t *testing.T) {
	c, err := NewCampaign(testDefinition(), testSnapshots(), testNow())
	require.NoError(t, err)
	require.NoError(t, c.RecordDecision(c.Subjects[1].Items[0].ID, 55, ItemDecision{Type: DecisionKeep}, testNow()))

	// Partial completion does not block closure; the deadline governs.
	require.NoError(t, c.Close(9, testNow()))
	assert.Equal(t, StatusCompleted, c.Status)
	assert.Equal(t, 1, c.CompletedItems)
	require.NotNil(t, c.ClosedBy)
	assert.Equal(t, int64(9), *c.ClosedBy)
}

func TestClosedCampaignIsTerminal(t *testing.T) {
	c, err := NewCampaign(testDefinition(), testSnapshots(), testNow())
	require.NoError(t, err)
	require.NoError(t, c.Close(9, testNow()))

	err = c.Close(9, testNow())
	assert.True(t, errdefs.IsConflict(err))

	err = c.RecordDecision(c.Subjects[0].Items[0].ID, 55, ItemDecision{Type: DecisionKeep}, testNow())
	assert.True(t, errdefs.IsConflict(err))
}

func TestCompletionPercentageRounds(t *testing.T) {
	c := &Campaign{Subjects: []Subject{{
		PrincipalID: 100,
		Items: []Item{
			{ID: "a", Decision: ItemDecision{Type: DecisionKeep}},
			{ID: "b", Decision: ItemDecision{Type: DecisionKeep}},
			{ID: "c", Decision: ItemDecision{Type: DecisionPending}},
		},
	}}}
	Recompute(c)
	assert.Equal(t, 67, c.CompletionPercentage())

	c.Subjects[0].Items = c.Subjects[0].Items[:2]
	c.Subjects[0].Items[1].Decision.Type = DecisionPending
	Recompute(c)
	assert.Equal(t, 50, c.CompletionPercentage())
}

func TestZeroItemSubjectCountsAsComplete(t *testing.T) {
	// A subject with no entitlements has nothing pending, so both the
	// snapshot and every later recompute treat it as complete. The count
	// must not change when an unrelated subject is decided.
	snaps := append(testSnapshots(), SubjectSnapshot{PrincipalID: 102, DisplayName: "carol"})
	c, err := NewCampaign(testDefinition(), snaps, testNow())
	require.NoError(t, err)

	assert.Equal(t, 3, c.TotalSubjects)
	assert.Equal(t, 3, c.TotalItems)
	assert.True(t, c.Subjects[2].Completed)
	assert.Equal(t, 1, c.CompletedSubjects)

	err = c.RecordDecision(c.Subjects[1].Items[0].ID, 55, ItemDecision{Type: DecisionKeep}, testNow())
	require.NoError(t, err)
	assert.True(t, c.Subjects[2].Completed)
	assert.Equal(t, 2, c.CompletedSubjects)
}

func TestCompletionPercentageNoItems(t *testing.T) {
	c, err := NewCampaign(testDefinition(), nil, testNow())
	require.NoError(t, err)
	assert.Equal(t, 0, c.CompletionPercentage())
	assert.Equal(t, 0, c.TotalSubjects)
}

func TestAdHocClose(t *testing.T) {
	r := &AdHocReview{ID: 3, TenantID: 42, Name: "offboarding check", Status: AdHocOpen}
	require.NoError(t, r.Close(9, testNow()))
	assert.Equal(t, AdHocClosed, r.Status)

	err := r.Close(9, testNow())
	assert.True(t, errdefs.IsConflict(err))
}

type fakeEffects struct {
	replaced       map[int64][]int64
	clearedMembers []int64
}

func newFakeEffects() *fakeEffects {
	return &fakeEffects{replaced: map[int64][]int64{}}
}

func (f *fakeEffects) ReplaceAssignments(_ context.Context, principalID int64, roleIDs []int64, _ *int64) error {
	f.replaced[principalID] = roleIDs
	return nil
}

func (f *fakeEffects) ClearMemberships(_ context.Context, principalID int64) error {
	f.clearedMembers = append(f.clearedMembers, principalID)
	return nil
}

func TestApplyDecisionEffects(t *testing.T) {
	ctx := context.Background()
	subject := &Subject{PrincipalID: 100}

	t.Run("keep is a no-op", func(t *testing.T) {
		store := newFakeEffects()
		require.NoError(t, ApplyDecisionEffects(ctx, store, subject, ItemDecision{Type: DecisionKeep}, 9))
		assert.Empty(t, store.replaced)
		assert.Empty(t, store.clearedMembers)
	})

	t.Run("remove strips roles and memberships", func(t *testing.T) {
		store := newFakeEffects()
		require.NoError(t, ApplyDecisionEffects(ctx, store, subject, ItemDecision{Type: DecisionRemove}, 9))
		assert.Equal(t, []int64{100}, store.clearedMembers)
		roles, ok := store.replaced[100]
		require.True(t, ok)
		assert.Empty(t, roles)
	})

	t.Run("change replaces the role set", func(t *testing.T) {
		store := newFakeEffects()
		d := ItemDecision{Type: DecisionChange, RequestedRoles: []int64{3, 4}}
		require.NoError(t, ApplyDecisionEffects(ctx, store, subject, d, 9))
		assert.Equal(t, []int64{3, 4}, store.replaced[100])
		assert.Empty(t, store.clearedMembers)
	})

	t.Run("pending has no effects", func(t *testing.T) {
		store := newFakeEffects()
		err := ApplyDecisionEffects(ctx, store, subject, ItemDecision{Type: DecisionPending}, 9)
		assert.True(t, errdefs.IsValidation(err))
	})
}
