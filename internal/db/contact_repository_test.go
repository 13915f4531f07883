package db

import (
	"testing"

	"github.com/zesbe/hallowa-sub001/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactCreateEnforcesPhoneUniquenessPerUser(t *testing.T) {
	repo := NewContactRepository(newTestDB(t).GetDB())

	c := models.NewContact("user-1", "628123456789", "Budi")
	require.NoError(t, repo.Create(c))

	// Same phone, same tenant: rejected
	dup := models.NewContact("user-1", "628123456789", "Budi 2")
	assert.Error(t, repo.Create(dup))

	// Same phone, different tenant: fine
	other := models.NewContact("user-2", "628123456789", "Budi")
	assert.NoError(t, repo.Create(other))
}

func TestContactGetByPhone(t *testing.T) {
	repo := NewContactRepository(newTestDB(t).GetDB())

	c := models.NewContact("user-1", "628123456789", "Budi")
	require.NoError(t, repo.Create(c))

	stored, err := repo.GetByPhone("user-1", "628123456789")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Budi", stored.Name)

	missing, err := repo.GetByPhone("user-2", "628123456789")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestContactListFilters(t *testing.T) {
	repo := NewContactRepository(newTestDB(t).GetDB())

	budi := models.NewContact("user-1", "628123456789", "Budi")
	budi.Tags = models.EncodeTags([]string{"customer", "vip"})
	sari := models.NewContact("user-1", "628987654321", "Sari")
	sari.Tags = models.EncodeTags([]string{"customer", "vip-gold"})
	other := models.NewContact("user-2", "628111111111", "Budi")
	for _, c := range []*models.Contact{budi, sari, other} {
		require.NoError(t, repo.Create(c))
	}

	all, err := repo.List("user-1", "", "", 50, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byName, err := repo.List("user-1", "bud", "", 50, 0)
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, budi.ID, byName[0].ID)

	byPhone, err := repo.List("user-1", "98765", "", 50, 0)
	require.NoError(t, err)
	require.Len(t, byPhone, 1)
	assert.Equal(t, sari.ID, byPhone[0].ID)

	// "vip" must not match the "vip-gold" tag
	vip, err := repo.ListByTag("user-1", "vip")
	require.NoError(t, err)
	require.Len(t, vip, 1)
	assert.Equal(t, budi.ID, vip[0].ID)

	customers, err := repo.ListByTag("user-1", "customer")
	require.NoError(t, err)
	assert.Len(t, customers, 2)
}

func TestContactUpdateAndDelete(t *testing.T) {
	repo := NewContactRepository(newTestDB(t).GetDB())

	c := models.NewContact("user-1", "628123456789", "Budi")
	require.NoError(t, repo.Create(c))

	c.Name = "Budi Santoso"
	c.Notes = "repeat buyer"
	require.NoError(t, repo.Update(c))

	stored, err := repo.GetByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Budi Santoso", stored.Name)
	assert.Equal(t, "repeat buyer", stored.Notes)

	require.NoError(t, repo.Delete(c.ID))
	assert.Error(t, repo.Delete(c.ID))

	count, err := repo.CountByUser("user-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}
