package reconcile

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/vmon/internal/model"
)

func active(id string) model.Session {
	return model.Session{ID: id, VisitorID: "v-" + id, Status: model.StatusActive}
}

func withEvents(s model.Session, n int) model.Session {
	s.Events = make([]model.Event, n)
	return s
}

func ids(sessions []model.Session) []string {
	out := make([]string, len(sessions))
	for i, s := range sessions {
		out[i] = s.ID
	}
	return out
}

func TestAutoSelectsFirstWithoutSelection(t *testing.T) {
	r := New()
	res := r.Apply([]model.Session{active("A"), active("B")})

	require.NotNil(t, res.Current)
	assert.Equal(t, "A", res.Current.ID)
	assert.True(t, res.Auto)
	assert.True(t, res.Selection.IsNone())
}

func TestAutoSelectionFollowsFeedOrder(t *testing.T) {
	r := New()
	r.Apply([]model.Session{active("A"), active("B")})
	res := r.Apply([]model.Session{active("B"), active("A")})

	assert.Equal(t, "B", res.Current.ID)
}

func TestExplicitSelectionSurvivesReordering(t *testing.T) {
	r := New()
	r.Apply([]model.Session{active("A"), active("B")})
	r.Select("B")

	res := r.Apply([]model.Session{active("C"), active("A"), active("B")})
	require.NotNil(t, res.Current)
	assert.Equal(t, "B", res.Current.ID)
	assert.False(t, res.Auto)
	assert.Equal(t, Explicit("B"), res.Selection)
}

func TestExplicitSelectionRefreshesRecord(t *testing.T) {
	r := New()
	r.Apply([]model.Session{active("A")})
	r.Select("A")

	res := r.Apply([]model.Session{withEvents(active("A"), 4)})
	assert.Equal(t, 4, res.Current.EventCount())
}

func TestExplicitSelectionClearedWhenGoneUnderLiveFilter(t *testing.T) {
	r := New()
	r.SetFilter(FilterLive)
	r.Apply([]model.Session{active("A"), active("B")})
	r.Select("B")

	res := r.Apply([]model.Session{active("A")})
	assert.True(t, res.Selection.IsNone())
	require.NotNil(t, res.Current)
	assert.Equal(t, "A", res.Current.ID, "falls back to auto-selection")
	assert.Empty(t, res.Notifications)
}

func TestExplicitSelectionStaysVisibleUnderHistoricalFilter(t *testing.T) {
	paid := active("P")
	paid.PurchaseStatus = model.PurchasePaid

	r := New()
	r.SetFilter(FilterPurchase)
	r.Apply([]model.Session{paid})
	r.Select("P")

	res := r.Apply([]model.Session{active("A")})
	require.NotNil(t, res.Current)
	assert.Equal(t, "P", res.Current.ID)
	assert.True(t, res.Stale)
	assert.Equal(t, Explicit("P"), res.Selection)
	assert.Empty(t, res.Visible)
}

func TestHistoricalFilterNeverAutoSelects(t *testing.T) {
	paid := active("P")
	paid.PurchaseStatus = model.PurchasePaid

	r := New()
	r.SetFilter(FilterPurchase)
	res := r.Apply([]model.Session{paid})
	assert.Nil(t, res.Current)
	assert.Equal(t, []string{"P"}, ids(res.Visible))

	res = r.Apply(nil)
	assert.Nil(t, res.Current)
}

func TestFollowPinsSessionToFront(t *testing.T) {
	r := New()
	r.Apply([]model.Session{active("A"), active("B"), active("C")})
	r.Follow("C")

	res := r.Apply([]model.Session{active("A"), active("B"), withEvents(active("C"), 3)})
	assert.Equal(t, []string{"C", "A", "B"}, ids(res.Visible))
	assert.Equal(t, "C", res.Current.ID)
	assert.Equal(t, 3, res.Current.EventCount())
	assert.Equal(t, Followed("C"), res.Selection)
}

func TestFollowedSessionEndsOnce(t *testing.T) {
	r := New()
	r.Apply([]model.Session{active("A")})
	r.Follow("A")

	res := r.Apply(nil)
	assert.True(t, res.Selection.IsNone())
	assert.Nil(t, res.Current)
	require.Len(t, res.Notifications, 1)
	n := res.Notifications[0]
	assert.Equal(t, NotifySessionEnded, n.Kind)
	assert.Equal(t, "A", n.SessionID)
	assert.Equal(t, "v-A", n.VisitorID)
	assert.NotEmpty(t, n.ID)

	_, following := r.Following()
	assert.False(t, following)

	res = r.Apply(nil)
	assert.Empty(t, res.Notifications)
}

func TestFollowEndFallsThroughToAutoSelect(t *testing.T) {
	r := New()
	r.Apply([]model.Session{active("A"), active("B")})
	r.Follow("A")

	res := r.Apply([]model.Session{active("B")})
	require.Len(t, res.Notifications, 1)
	require.NotNil(t, res.Current)
	assert.Equal(t, "B", res.Current.ID)
	assert.True(t, res.Auto)
}

func TestFollowedSessionFilteredOutCountsAsGone(t *testing.T) {
	ended := active("A")
	ended.Status = model.StatusEnded

	r := New()
	r.SetFilter(FilterLive)
	r.Apply([]model.Session{active("A")})
	r.Follow("A")

	res := r.Apply([]model.Session{ended})
	assert.Len(t, res.Notifications, 1)
}

func TestUnfollowKeepsFocus(t *testing.T) {
	r := New()
	r.Apply([]model.Session{active("A"), active("B")})
	r.Follow("B")

	assert.True(t, r.Unfollow())
	assert.False(t, r.Unfollow())

	res := r.Reapply()
	assert.Equal(t, Explicit("B"), res.Selection)
	assert.Equal(t, []string{"A", "B"}, ids(res.Visible))
}

func TestSelectLeavesFollowMode(t *testing.T) {
	r := New()
	r.Apply([]model.Session{active("A"), active("B")})
	r.Follow("A")
	r.Select("B")

	res := r.Apply([]model.Session{active("B")})
	assert.Empty(t, res.Notifications)
	assert.Equal(t, Explicit("B"), res.Selection)
}

func TestBounceFilterScenario(t *testing.T) {
	r := New()
	r.SetFilter(FilterBounce)
	res := r.Apply([]model.Session{withEvents(active("short"), 2), withEvents(active("long"), 5)})

	assert.Equal(t, []string{"short"}, ids(res.Visible))
}

func TestResultIsDetachedFromReconciler(t *testing.T) {
	r := New()
	res := r.Apply([]model.Session{active("A")})
	res.Current.ID = "mutated"
	res.Visible[0].ID = "mutated"

	again := r.Reapply()
	assert.Equal(t, "A", again.Current.ID)
}

func TestParseFilter(t *testing.T) {
	for in, want := range map[string]Filter{"": FilterNone, "all": FilterNone, "live": FilterLive, "bounce": FilterBounce} {
		got, err := ParseFilter(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFilter("vip")
	assert.Error(t, err)
}

// snapshot builds a snapshot of unique ids from the generated letters.
func snapshot(letters []string) []model.Session {
	seen := map[string]bool{}
	var out []model.Session
	for _, l := range letters {
		if !seen[l] {
			seen[l] = true
			out = append(out, active(l))
		}
	}
	return out
}

func contains(sessions []model.Session, id string) bool {
	for _, s := range sessions {
		if s.ID == id {
			return true
		}
	}
	return false
}

// session decodes a generated int into a session: bit 0 live, bit 1 paid,
// the rest the event count.
func session(i, bits int) model.Session {
	s := model.Session{ID: fmt.Sprintf("s%d", i), Status: model.StatusEnded, PurchaseStatus: model.PurchaseNone}
	if bits&1 == 1 {
		s.Status = model.StatusActive
	}
	if bits&2 == 2 {
		s.PurchaseStatus = model.PurchasePaid
	}
	s.Events = make([]model.Event, (bits>>2)%6)
	return s
}

func TestReconcileProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	letters := gen.SliceOf(gen.OneConstOf("A", "B", "C", "D"))

	properties.Property("a vanished followed session notifies exactly once", prop.ForAll(
		func(polls [][]string) bool {
			r := New()
			r.Apply(snapshot([]string{"A"}))
			r.Follow("A")

			notifications := 0
			vanished := false
			for _, letters := range polls {
				snap := snapshot(letters)
				res := r.Apply(snap)
				notifications += len(res.Notifications)
				if !vanished && !contains(snap, "A") {
					vanished = true
					if _, following := r.Following(); following {
						return false
					}
				}
				if !vanished && (res.Current == nil || res.Current.ID != "A" || res.Visible[0].ID != "A") {
					return false
				}
			}
			if vanished {
				return notifications == 1
			}
			return notifications == 0
		},
		gen.SliceOf(letters),
	))

	properties.Property("auto-selection only under realtime filters", prop.ForAll(
		func(filter string, raw []int) bool {
			f := Filter(filter)
			sessions := make([]model.Session, len(raw))
			for i, bits := range raw {
				sessions[i] = session(i, bits)
			}
			r := New()
			r.SetFilter(f)
			res := r.Apply(sessions)
			filtered := f.Apply(sessions)

			if !f.Realtime() {
				return res.Current == nil && !res.Auto
			}
			if len(filtered) == 0 {
				return res.Current == nil
			}
			return res.Auto && res.Current.ID == filtered[0].ID
		},
		gen.OneConstOf("", "live", "purchase", "bounce"),
		gen.SliceOf(gen.IntRange(0, 63)),
	))

	properties.Property("visible sessions all match the filter", prop.ForAll(
		func(filter string, raw []int) bool {
			f := Filter(filter)
			sessions := make([]model.Session, len(raw))
			for i, bits := range raw {
				sessions[i] = session(i, bits)
			}
			r := New()
			r.SetFilter(f)
			for _, s := range r.Apply(sessions).Visible {
				if !f.Match(s) {
					return false
				}
			}
			return true
		},
		gen.OneConstOf("", "live", "purchase", "bounce"),
		gen.SliceOf(gen.IntRange(0, 63)),
	))

	properties.TestingRun(t)
}
