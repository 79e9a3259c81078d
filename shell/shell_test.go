package shell

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raushankrgupta/fashionfit/models"
)

func user(g models.Gender) *models.UserProfile {
	return &models.UserProfile{UID: "user_1", Email: "a@example.com", Gender: g}
}

func TestStateFor(t *testing.T) {
	assert.Equal(t, LoggedOut, StateFor(nil))
	assert.Equal(t, AwaitingGenderChoice, StateFor(user(models.GenderUnset)))
	assert.Equal(t, DashboardActive, StateFor(user(models.GenderFemale)))
}

func TestInitialized(t *testing.T) {
	for _, tc := range []struct {
		user *models.UserProfile
		want State
	}{
		{nil, LoggedOut},
		{user(models.GenderUnset), AwaitingGenderChoice},
		{user(models.GenderMale), DashboardActive},
	} {
		var m Machine
		assert.Equal(t, Uninitialized, m.State())
		got, err := m.Fire(Initialized(tc.user))
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestFullFlow(t *testing.T) {
	var m Machine
	steps := []struct {
		ev   Event
		want State
	}{
		{Initialized(nil), LoggedOut},
		{LoggedIn(*user(models.GenderUnset)), AwaitingGenderChoice},
		{GenderSelected(models.GenderFemale), DashboardActive},
		{Logout(), LoggedOut},
		{LoggedIn(*user(models.GenderFemale)), DashboardActive},
	}
	for _, step := range steps {
		got, err := m.Fire(step.ev)
		require.NoError(t, err, step.ev.Kind.String())
		assert.Equal(t, step.want, got)
	}
}

func TestInvalidTransitionsLeaveStateUnchanged(t *testing.T) {
	cases := []struct {
		from State
		ev   Event
	}{
		{Uninitialized, Logout()},
		{Uninitialized, GenderSelected(models.GenderMale)},
		{LoggedOut, GenderSelected(models.GenderMale)},
		{LoggedOut, Logout()},
		{LoggedOut, Initialized(nil)},
		{LoggedOut, Event{Kind: EventLoggedIn}},
		{AwaitingGenderChoice, GenderSelected(models.GenderUnset)},
		{AwaitingGenderChoice, LoggedIn(*user(models.GenderMale))},
		{DashboardActive, GenderSelected(models.GenderMale)},
		{DashboardActive, LoggedIn(*user(models.GenderMale))},
		{DashboardActive, Initialized(nil)},
	}
	for _, tc := range cases {
		got, err := Next(tc.from, tc.ev)
		assert.ErrorIs(t, err, ErrInvalidTransition, "%s on %s", tc.ev.Kind, tc.from)
		assert.Equal(t, tc.from, got)
	}
}

func TestMachine_FireErrorKeepsState(t *testing.T) {
	var m Machine
	_, err := m.Fire(Initialized(user(models.GenderMale)))
	require.NoError(t, err)

	got, err := m.Fire(GenderSelected(models.GenderFemale))
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, DashboardActive, got)
	assert.Equal(t, DashboardActive, m.State())
}

func TestLogoutWhileChoosingGender(t *testing.T) {
	got, err := Next(AwaitingGenderChoice, Logout())
	require.NoError(t, err)
	assert.Equal(t, LoggedOut, got)
}

func TestStateJSON(t *testing.T) {
	data, err := json.Marshal(map[string]State{"state": AwaitingGenderChoice})
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"awaiting_gender_choice"}`, string(data))
}
