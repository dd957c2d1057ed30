package services

import (
	"context"
	"sort"
	"sync"

	"github.com/uptrace/bun"

	"github.com/medalcase/medalcase/medalcase/database/models"
	"github.com/medalcase/medalcase/medalcase/database/repositories"
)

// fakeTxRunner serializes transactions with a mutex, modeling the row
// lock held for a transaction's duration.
type fakeTxRunner struct {
	mu sync.Mutex
}

func (f *fakeTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context, db bun.IDB) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(ctx, nil)
}

type grantKey struct {
	profileID     int64
	achievementID int64
}

type fakeAchievementRepo struct {
	mu   sync.Mutex
	defs map[int64]*models.Achievement
}

func newFakeAchievementRepo(defs ...*models.Achievement) *fakeAchievementRepo {
	m := make(map[int64]*models.Achievement)
	for _, d := range defs {
		m[d.ID] = d
	}
	return &fakeAchievementRepo{defs: m}
}

func (f *fakeAchievementRepo) GetByID(_ context.Context, id int64) (*models.Achievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.defs[id]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "achievement", ID: id}
	}
	return d, nil
}

func (f *fakeAchievementRepo) GetBySlug(_ context.Context, slug string) (*models.Achievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.defs {
		if d.Slug == slug {
			return d, nil
		}
	}
	return nil, &repositories.NotFoundError{Entity: "achievement", ID: slug}
}

func (f *fakeAchievementRepo) GetAll(_ context.Context) ([]*models.Achievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Achievement, 0, len(f.defs))
	for _, d := range f.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeAchievementRepo) GetBySeries(_ context.Context, series string) ([]*models.Achievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Achievement
	for _, d := range f.defs {
		if d.Series == series {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tier < out[j].Tier })
	return out, nil
}

func (f *fakeAchievementRepo) Update(_ context.Context, a *models.Achievement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.SyncRequiredValue()
	f.defs[a.ID] = a
	return nil
}

func (f *fakeAchievementRepo) IncrementEarnedCount(_ context.Context, _ bun.IDB, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defs[id].EarnedCount++
	return nil
}

func (f *fakeAchievementRepo) DecrementEarnedCount(_ context.Context, _ bun.IDB, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.defs[id].EarnedCount > 0 {
		f.defs[id].EarnedCount--
	}
	return nil
}

type fakeGrantRepo struct {
	mu     sync.Mutex
	nextID int64
	grants map[grantKey]*models.AchievementGrant
}

func newFakeGrantRepo() *fakeGrantRepo {
	return &fakeGrantRepo{grants: make(map[grantKey]*models.AchievementGrant)}
}

func (f *fakeGrantRepo) Create(_ context.Context, _ bun.IDB, grant *models.AchievementGrant) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := grantKey{grant.ProfileID, grant.AchievementID}
	if _, exists := f.grants[key]; exists {
		return false, nil
	}
	f.nextID++
	grant.ID = f.nextID
	f.grants[key] = grant
	return true, nil
}

func (f *fakeGrantRepo) Get(_ context.Context, profileID, achievementID int64) (*models.AchievementGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.grants[grantKey{profileID, achievementID}]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "achievement_grant", ID: profileID}
	}
	return g, nil
}

func (f *fakeGrantRepo) GetByProfile(_ context.Context, profileID int64) ([]*models.AchievementGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.AchievementGrant
	for _, g := range f.grants {
		if g.ProfileID == profileID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeGrantRepo) GetAllProfileIDs(_ context.Context) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[int64]struct{})
	var out []int64
	for _, g := range f.grants {
		if _, ok := seen[g.ProfileID]; !ok {
			seen[g.ProfileID] = struct{}{}
			out = append(out, g.ProfileID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (f *fakeGrantRepo) Exists(_ context.Context, profileID, achievementID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.grants[grantKey{profileID, achievementID}]
	return ok, nil
}

func (f *fakeGrantRepo) Delete(_ context.Context, _ bun.IDB, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, g := range f.grants {
		if g.ID == id {
			delete(f.grants, key)
			return nil
		}
	}
	return nil
}

func (f *fakeGrantRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.grants)
}

type fakeProgressRepo struct {
	mu      sync.Mutex
	records map[grantKey]*models.AchievementProgress
	defs    *fakeAchievementRepo
}

func newFakeProgressRepo(defs *fakeAchievementRepo) *fakeProgressRepo {
	return &fakeProgressRepo{
		records: make(map[grantKey]*models.AchievementProgress),
		defs:    defs,
	}
}

func (f *fakeProgressRepo) Upsert(_ context.Context, _ bun.IDB, profileID, achievementID int64, progress int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := grantKey{profileID, achievementID}
	if rec, ok := f.records[key]; ok {
		rec.Progress = progress
		return nil
	}
	f.records[key] = &models.AchievementProgress{
		ProfileID:     profileID,
		AchievementID: achievementID,
		Progress:      progress,
	}
	return nil
}

func (f *fakeProgressRepo) Get(_ context.Context, profileID, achievementID int64) (*models.AchievementProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[grantKey{profileID, achievementID}]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "achievement_progress", ID: profileID}
	}
	return rec, nil
}

func (f *fakeProgressRepo) GetByProfile(_ context.Context, profileID int64) ([]*models.AchievementProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.AchievementProgress
	for _, rec := range f.records {
		if rec.ProfileID == profileID {
			if f.defs != nil {
				rec.Achievement = f.defs.defs[rec.AchievementID]
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

type fakeTitleRepo struct {
	mu     sync.Mutex
	grants []*models.TitleGrant
}

func (f *fakeTitleRepo) GetTitle(_ context.Context, id int64) (*models.Title, error) {
	return &models.Title{ID: id, Name: "Legend"}, nil
}

func (f *fakeTitleRepo) GrantTitle(_ context.Context, _ bun.IDB, grant *models.TitleGrant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.grants {
		if g.ProfileID == grant.ProfileID && g.TitleID == grant.TitleID &&
			g.SourceType == grant.SourceType && g.SourceID == grant.SourceID {
			return nil
		}
	}
	f.grants = append(f.grants, grant)
	return nil
}

func (f *fakeTitleRepo) GetGrantsByProfile(_ context.Context, profileID int64) ([]*models.TitleGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.TitleGrant
	for _, g := range f.grants {
		if g.ProfileID == profileID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeTitleRepo) DeleteGrantsBySource(_ context.Context, _ bun.IDB, sourceType string, sourceID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.grants[:0]
	for _, g := range f.grants {
		if g.SourceType != sourceType || g.SourceID != sourceID {
			kept = append(kept, g)
		}
	}
	f.grants = kept
	return nil
}

type fakeProfileRepo struct {
	mu       sync.Mutex
	profiles map[int64]*models.Profile
}

func newFakeProfileRepo(profiles ...*models.Profile) *fakeProfileRepo {
	m := make(map[int64]*models.Profile)
	for _, p := range profiles {
		m[p.ID] = p
	}
	return &fakeProfileRepo{profiles: m}
}

func (f *fakeProfileRepo) Get(_ context.Context, id int64) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "profile", ID: id}
	}
	return p, nil
}

func (f *fakeProfileRepo) GetByUsername(_ context.Context, username string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles {
		if p.Username == username {
			return p, nil
		}
	}
	return nil, &repositories.NotFoundError{Entity: "profile", ID: username}
}

func (f *fakeProfileRepo) Create(_ context.Context, profile *models.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[profile.ID] = profile
	return nil
}

type fakeNotificationRepo struct {
	mu            sync.Mutex
	notifications []*models.Notification
}

func (f *fakeNotificationRepo) Create(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.ID = int64(len(f.notifications) + 1)
	f.notifications = append(f.notifications, n)
	return nil
}

func (f *fakeNotificationRepo) GetByProfile(_ context.Context, profileID int64, unreadOnly bool) ([]*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Notification
	for _, n := range f.notifications {
		if n.ProfileID == profileID && (!unreadOnly || !n.Read) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNotificationRepo) MarkRead(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.notifications {
		if n.ID == id {
			n.Read = true
		}
	}
	return nil
}

func (f *fakeNotificationRepo) DeleteBySource(_ context.Context, _ bun.IDB, sourceType string, sourceID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.notifications[:0]
	for _, n := range f.notifications {
		if n.SourceType != sourceType || n.SourceID != sourceID {
			kept = append(kept, n)
		}
	}
	f.notifications = kept
	return nil
}

func (f *fakeNotificationRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notifications)
}

type claimKey struct {
	slotID    int64
	profileID int64
}

type fakeSlotRepo struct {
	mu     sync.Mutex
	slots  map[int64]*models.RewardSlot
	claims map[claimKey]*models.SlotClaim
}

func newFakeSlotRepo(slots ...*models.RewardSlot) *fakeSlotRepo {
	m := make(map[int64]*models.RewardSlot)
	for _, s := range slots {
		m[s.ID] = s
	}
	return &fakeSlotRepo{slots: m, claims: make(map[claimKey]*models.SlotClaim)}
}

func (f *fakeSlotRepo) Get(_ context.Context, id int64) (*models.RewardSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "reward_slot", ID: id}
	}
	return s, nil
}

func (f *fakeSlotRepo) GetForUpdate(_ context.Context, _ bun.IDB, id int64) (*models.RewardSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "reward_slot", ID: id}
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSlotRepo) CreateClaim(_ context.Context, _ bun.IDB, claim *models.SlotClaim) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := claimKey{claim.SlotID, claim.ProfileID}
	if _, exists := f.claims[key]; exists {
		return &repositories.ConflictError{Entity: "slot_claim", Field: "slot_id, profile_id", Value: claim.ProfileID}
	}
	f.claims[key] = claim
	return nil
}

func (f *fakeSlotRepo) IncrementClaimedCount(_ context.Context, _ bun.IDB, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slots[id].ClaimedCount++
	return nil
}

func (f *fakeSlotRepo) HasClaim(_ context.Context, _ bun.IDB, slotID, profileID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.claims[claimKey{slotID, profileID}]
	return ok, nil
}

func (f *fakeSlotRepo) claimCount(slotID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for key := range f.claims {
		if key.slotID == slotID {
			count++
		}
	}
	return count
}

type fakeSummaryStore struct {
	mu        sync.Mutex
	upserts   int
	byProfile map[int64]*models.GamificationSummary
}

func newFakeSummaryStore() *fakeSummaryStore {
	return &fakeSummaryStore{byProfile: make(map[int64]*models.GamificationSummary)}
}

func (f *fakeSummaryStore) Upsert(_ context.Context, summary *models.GamificationSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	f.byProfile[summary.ProfileID] = summary
	return nil
}

type fakeRoleGranter struct {
	mu      sync.Mutex
	granted []string
	revoked []string
}

func (f *fakeRoleGranter) GrantRole(_ context.Context, discordID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.granted = append(f.granted, discordID+":"+roleID)
	return nil
}

func (f *fakeRoleGranter) RevokeRole(_ context.Context, discordID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, discordID+":"+roleID)
	return nil
}
