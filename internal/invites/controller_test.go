package invites

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createRequest struct {
	channelID string
	maxUses   int
	maxAge    time.Duration
}

type grant struct {
	guildID string
	userID  string
	roleID  string
}

// fakeGateway is an in-memory stand-in for the chat platform. Deletions can
// run concurrently, so all state is behind a mutex.
type fakeGateway struct {
	mu sync.Mutex

	guildName  string
	guildErr   error
	channelErr error

	invites    []Invite
	invitesErr error
	fetchCalls int

	created   []createRequest
	createErr error

	deleted   []string
	deleteErr map[string]error

	role    Role
	roleErr error

	granted  []grant
	grantErr error

	messages []string
	dmErr    error
}

func newFakeGateway(invs ...Invite) *fakeGateway {
	return &fakeGateway{
		guildName: "Effekt.community",
		invites:   invs,
		role:      Role{ID: "role-1", Name: "Premium"},
	}
}

func (f *fakeGateway) GuildName(guildID string) (string, error) {
	if f.guildErr != nil {
		return "", f.guildErr
	}
	return f.guildName, nil
}

func (f *fakeGateway) ChannelName(channelID string) (string, error) {
	if f.channelErr != nil {
		return "", f.channelErr
	}
	return "premium-channel", nil
}

func (f *fakeGateway) GuildInvites(guildID string) ([]Invite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.invitesErr != nil {
		return nil, f.invitesErr
	}
	out := make([]Invite, len(f.invites))
	copy(out, f.invites)
	return out, nil
}

func (f *fakeGateway) CreateChannelInvite(channelID string, maxUses int, maxAge time.Duration) (Invite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return Invite{}, f.createErr
	}
	f.created = append(f.created, createRequest{channelID: channelID, maxUses: maxUses, maxAge: maxAge})
	now := time.Now()
	inv := Invite{
		Code:      fmt.Sprintf("fresh-%d", len(f.created)),
		MaxUses:   maxUses,
		CreatedAt: now,
		ExpiresAt: now.Add(maxAge),
	}
	f.invites = append(f.invites, inv)
	return inv, nil
}

func (f *fakeGateway) DeleteInvite(code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.deleteErr[code]; ok {
		return err
	}
	for i, inv := range f.invites {
		if inv.Code == code {
			f.invites = append(f.invites[:i], f.invites[i+1:]...)
			break
		}
	}
	f.deleted = append(f.deleted, code)
	return nil
}

func (f *fakeGateway) GuildRole(guildID, roleID string) (Role, error) {
	if f.roleErr != nil {
		return Role{}, f.roleErr
	}
	return f.role, nil
}

func (f *fakeGateway) AddMemberRole(guildID, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.grantErr != nil {
		return f.grantErr
	}
	f.granted = append(f.granted, grant{guildID: guildID, userID: userID, roleID: roleID})
	return nil
}

func (f *fakeGateway) SendDirectMessage(userID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dmErr != nil {
		return f.dmErr
	}
	f.messages = append(f.messages, content)
	return nil
}

func premiumInvite(code string, uses int, createdAt time.Time) Invite {
	return Invite{
		Code:      code,
		Uses:      uses,
		MaxUses:   2,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(600 * time.Second),
	}
}

func readyController(t *testing.T, gw *fakeGateway) *Controller {
	t.Helper()
	c := NewController(gw, "guild-1", "channel-1", "role-1")
	require.NoError(t, c.Bootstrap())
	return c
}

func joiner() Member {
	return Member{ID: "user-1", GuildID: "guild-1", Username: "newuser"}
}

func TestBootstrapFillsCache(t *testing.T) {
	now := time.Now()
	gw := newFakeGateway(
		premiumInvite("prem-1", 0, now),
		Invite{Code: "perm-1", MaxUses: 0, CreatedAt: now},
	)

	c := readyController(t, gw)

	cache := c.Cache()
	require.Len(t, cache, 1)
	assert.Equal(t, "prem-1", cache[0].InviteLink)
	assert.Equal(t, 0, cache[0].Uses)
	assert.Equal(t, now, cache[0].CreatedAt)
	assert.Equal(t, now.Add(600*time.Second), cache[0].ExpiresAt)
}

func TestBootstrapGuildFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.guildErr = errors.New("unknown guild")

	c := NewController(gw, "guild-1", "channel-1", "role-1")
	require.Error(t, c.Bootstrap())

	_, err := c.CreatePremiumInvite()
	assert.ErrorIs(t, err, ErrNotReady)

	assert.ErrorIs(t, c.HandleMemberJoin(joiner()), ErrNotReady)
	assert.ErrorIs(t, c.DeleteAllInvites(), ErrNotReady)
}

func TestBootstrapChannelFailure(t *testing.T) {
	gw := newFakeGateway(premiumInvite("prem-1", 1, time.Now()))
	gw.channelErr = errors.New("unknown channel")

	c := readyController(t, gw)

	// Invite creation needs the channel.
	_, err := c.CreatePremiumInvite()
	assert.ErrorIs(t, err, ErrNotReady)

	// Join handling only needs the guild.
	require.NoError(t, c.HandleMemberJoin(joiner()))
	assert.Len(t, gw.granted, 1)
}

func TestRefreshCacheFiltersNonPremium(t *testing.T) {
	now := time.Now()
	gw := newFakeGateway(
		Invite{Code: "perm", MaxUses: 0, CreatedAt: now},
		Invite{Code: "single", MaxUses: 1, CreatedAt: now},
		premiumInvite("prem-1", 0, now),
		Invite{Code: "wide", MaxUses: 5, CreatedAt: now},
		premiumInvite("prem-2", 1, now),
	)

	c := readyController(t, gw)

	cache := c.Cache()
	require.Len(t, cache, 2)
	links := []string{cache[0].InviteLink, cache[1].InviteLink}
	assert.Contains(t, links, "prem-1")
	assert.Contains(t, links, "prem-2")
}

func TestRefreshCacheKeepsPriorSnapshotOnError(t *testing.T) {
	gw := newFakeGateway(premiumInvite("prem-1", 0, time.Now()))
	c := readyController(t, gw)
	require.Len(t, c.Cache(), 1)

	gw.invitesErr = errors.New("api down")
	c.RefreshCache()

	cache := c.Cache()
	require.Len(t, cache, 1)
	assert.Equal(t, "prem-1", cache[0].InviteLink)
}

func TestCreatePremiumInvite(t *testing.T) {
	gw := newFakeGateway(premiumInvite("prem-1", 0, time.Now()))
	c := readyController(t, gw)

	url, err := c.CreatePremiumInvite()
	require.NoError(t, err)
	assert.Equal(t, "https://discord.gg/fresh-1", url)

	require.Len(t, gw.created, 1)
	assert.Equal(t, "channel-1", gw.created[0].channelID)
	assert.Equal(t, 2, gw.created[0].maxUses)
	assert.Equal(t, 600*time.Second, gw.created[0].maxAge)

	// Cache now holds the previous premium invite plus the new one.
	cache := c.Cache()
	require.Len(t, cache, 2)
	links := []string{cache[0].InviteLink, cache[1].InviteLink}
	assert.Contains(t, links, "prem-1")
	assert.Contains(t, links, "fresh-1")
}

func TestCreatePremiumInviteUpstreamError(t *testing.T) {
	gw := newFakeGateway()
	gw.createErr = errors.New("rate limited")
	c := readyController(t, gw)

	_, err := c.CreatePremiumInvite()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotReady)
}

func TestHandleMemberJoinNoConsumedInvite(t *testing.T) {
	gw := newFakeGateway(
		premiumInvite("prem-1", 0, time.Now()),
		premiumInvite("prem-2", 2, time.Now()),
	)
	c := readyController(t, gw)

	require.NoError(t, c.HandleMemberJoin(joiner()))

	assert.Empty(t, gw.granted)
	assert.Empty(t, gw.deleted)
	assert.Empty(t, gw.messages)
}

func TestHandleMemberJoinGrantsNotifiesDeletes(t *testing.T) {
	gw := newFakeGateway(
		premiumInvite("prem-0", 0, time.Now()),
		premiumInvite("used-1", 1, time.Now()),
	)
	c := readyController(t, gw)

	require.NoError(t, c.HandleMemberJoin(joiner()))

	require.Len(t, gw.granted, 1)
	assert.Equal(t, grant{guildID: "guild-1", userID: "user-1", roleID: "role-1"}, gw.granted[0])

	require.Len(t, gw.messages, 1)
	assert.Contains(t, gw.messages[0], "premium role has been assigned")

	assert.Equal(t, []string{"used-1"}, gw.deleted)

	// Cache refreshed after the deletion: only the unconsumed invite left.
	cache := c.Cache()
	require.Len(t, cache, 1)
	assert.Equal(t, "prem-0", cache[0].InviteLink)
}

func TestHandleMemberJoinTieBreakEarliestCreated(t *testing.T) {
	now := time.Now()
	gw := newFakeGateway(
		premiumInvite("newer", 1, now),
		premiumInvite("older", 1, now.Add(-time.Minute)),
	)
	c := readyController(t, gw)

	require.NoError(t, c.HandleMemberJoin(joiner()))

	assert.Equal(t, []string{"older"}, gw.deleted)
}

func TestHandleMemberJoinRoleMissing(t *testing.T) {
	gw := newFakeGateway(premiumInvite("used-1", 1, time.Now()))
	gw.roleErr = ErrRoleNotFound
	c := readyController(t, gw)

	require.NoError(t, c.HandleMemberJoin(joiner()))

	assert.Empty(t, gw.granted)
	assert.Empty(t, gw.deleted)
	assert.Empty(t, gw.messages)
}

func TestHandleMemberJoinGrantFailure(t *testing.T) {
	gw := newFakeGateway(premiumInvite("used-1", 1, time.Now()))
	gw.grantErr = errors.New("missing permissions")
	c := readyController(t, gw)

	require.Error(t, c.HandleMemberJoin(joiner()))

	assert.Empty(t, gw.messages)
	assert.Empty(t, gw.deleted)
}

func TestHandleMemberJoinDMFailureKeepsGrantAndDeletes(t *testing.T) {
	gw := newFakeGateway(premiumInvite("used-1", 1, time.Now()))
	gw.dmErr = errors.New("DMs closed")
	c := readyController(t, gw)

	require.NoError(t, c.HandleMemberJoin(joiner()))

	assert.Len(t, gw.granted, 1)
	assert.Equal(t, []string{"used-1"}, gw.deleted)
}

func TestHandleMemberJoinDeleteFailureKeepsGrant(t *testing.T) {
	gw := newFakeGateway(premiumInvite("used-1", 1, time.Now()))
	gw.deleteErr = map[string]error{"used-1": errors.New("already gone")}
	c := readyController(t, gw)

	require.NoError(t, c.HandleMemberJoin(joiner()))

	assert.Len(t, gw.granted, 1)
	assert.Len(t, gw.messages, 1)
	assert.Empty(t, gw.deleted)
}

func TestHandleMemberJoinFetchFailure(t *testing.T) {
	gw := newFakeGateway(premiumInvite("used-1", 1, time.Now()))
	c := readyController(t, gw)

	gw.invitesErr = errors.New("api down")
	require.Error(t, c.HandleMemberJoin(joiner()))
	assert.Empty(t, gw.granted)
}

func TestDeleteAllInvites(t *testing.T) {
	now := time.Now()
	gw := newFakeGateway(
		premiumInvite("prem-1", 0, now),
		Invite{Code: "perm-1", MaxUses: 0, CreatedAt: now},
		Invite{Code: "wide-1", MaxUses: 5, CreatedAt: now},
	)
	c := readyController(t, gw)

	require.NoError(t, c.DeleteAllInvites())

	assert.ElementsMatch(t, []string{"prem-1", "perm-1", "wide-1"}, gw.deleted)
	assert.Empty(t, gw.invites)
	assert.Empty(t, c.Cache())
}

func TestDeleteAllInvitesPartialFailure(t *testing.T) {
	now := time.Now()
	gw := newFakeGateway(
		premiumInvite("prem-1", 0, now),
		Invite{Code: "stuck", MaxUses: 0, CreatedAt: now},
	)
	gw.deleteErr = map[string]error{"stuck": errors.New("forbidden")}
	c := readyController(t, gw)

	require.Error(t, c.DeleteAllInvites())

	// No rollback: the other invite is gone, the stuck one survives.
	assert.Equal(t, []string{"prem-1"}, gw.deleted)
	require.Len(t, gw.invites, 1)
	assert.Equal(t, "stuck", gw.invites[0].Code)
}
