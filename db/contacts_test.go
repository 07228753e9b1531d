// ABOUTME: Tests for the contacts repository
// ABOUTME: Covers list encoding, lookups scoped by user, and cadence updates
package db

import (
	"context"
	"testing"
	"time"

	"github.com/harperreed/kith/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestContact(t *testing.T, repo *ContactsRepository, userID, name string) *models.Contact {
	t.Helper()
	c := &models.Contact{UserID: userID, Name: name}
	require.NoError(t, repo.Create(context.Background(), c))
	return c
}

func TestContactsCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewContactsRepository(setupTestDB(t))

	cadence := 21
	mutuality := 80
	c := &models.Contact{
		UserID:      "u1",
		Name:        "Alice",
		Phones:      []string{"+15551234", "+15559999"},
		Emails:      []string{"alice@example.com"},
		Tags:        []string{"family"},
		CadenceDays: &cadence,
		Mutuality:   &mutuality,
	}
	require.NoError(t, repo.Create(ctx, c))
	assert.NotEmpty(t, c.ID)
	assert.False(t, c.FirstSeenAt.IsZero())

	got, err := repo.GetContact(ctx, "u1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, []string{"+15551234", "+15559999"}, got.Phones)
	assert.Equal(t, "+15551234", got.PrimaryPhone())
	assert.Equal(t, "alice@example.com", got.PrimaryEmail())
	assert.Equal(t, []string{"family"}, got.Tags)
	require.NotNil(t, got.CadenceDays)
	assert.Equal(t, 21, *got.CadenceDays)
	assert.Nil(t, got.FirstEngagementAt)
}

func TestContactsInvalid(t *testing.T) {
	repo := NewContactsRepository(setupTestDB(t))
	assert.ErrorIs(t, repo.Create(context.Background(), &models.Contact{UserID: "u1", Name: "  "}), ErrInvalidContact)
	assert.ErrorIs(t, repo.Create(context.Background(), nil), ErrInvalidContact)
}

func TestContactsScopedByUser(t *testing.T) {
	ctx := context.Background()
	repo := NewContactsRepository(setupTestDB(t))
	c := createTestContact(t, repo, "u1", "Alice")
	createTestContact(t, repo, "u2", "Bob")

	_, err := repo.GetContact(ctx, "u2", c.ID)
	assert.ErrorIs(t, err, ErrContactNotFound)

	list, err := repo.ListContacts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Alice", list[0].Name)
}

func TestContactsListOrderedByName(t *testing.T) {
	ctx := context.Background()
	repo := NewContactsRepository(setupTestDB(t))
	for _, n := range []string{"Carol", "Alice", "Bob"} {
		createTestContact(t, repo, "u1", n)
	}

	list, err := repo.ListContacts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, []string{list[0].Name, list[1].Name, list[2].Name})

	found, err := repo.FindContacts(ctx, "u1", "ob", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Bob", found[0].Name)

	byID, err := repo.GetContactsByIDs(ctx, "u1", []string{list[0].ID, list[2].ID, "missing"})
	require.NoError(t, err)
	assert.Len(t, byID, 2)
}

func TestContactsUpdateCadence(t *testing.T) {
	ctx := context.Background()
	repo := NewContactsRepository(setupTestDB(t))
	c := createTestContact(t, repo, "u1", "Alice")

	days := 14
	require.NoError(t, repo.UpdateContactCadence(ctx, "u1", c.ID, &days))
	got, err := repo.GetContact(ctx, "u1", c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CadenceDays)
	assert.Equal(t, 14, *got.CadenceDays)

	require.NoError(t, repo.UpdateContactCadence(ctx, "u1", c.ID, nil))
	got, err = repo.GetContact(ctx, "u1", c.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CadenceDays)

	assert.ErrorIs(t, repo.UpdateContactCadence(ctx, "u1", "missing", &days), ErrContactNotFound)
}

func TestContactsMarkEngagedOnlyOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewContactsRepository(setupTestDB(t))
	c := createTestContact(t, repo, "u1", "Alice")

	first := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.MarkEngaged(ctx, "u1", c.ID, first))
	require.NoError(t, repo.MarkEngaged(ctx, "u1", c.ID, first.Add(48*time.Hour)))

	got, err := repo.GetContact(ctx, "u1", c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.FirstEngagementAt)
	assert.True(t, got.FirstEngagementAt.Equal(first))
}
