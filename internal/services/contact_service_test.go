package services

import (
	"testing"

	"github.com/zesbe/hallowa-sub001/internal/models"
	"github.com/zesbe/hallowa-sub001/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateContactNormalizesPhone(t *testing.T) {
	env := newTestEnv(t)
	svc := NewContactService(env.contacts)

	user := env.createUser(t, "budi", "password123")

	contact, err := svc.Create(user.ID, &models.CreateContactRequest{
		Phone: "0812-3456-789",
		Name:  "Sari",
		Tags:  []string{"customer", "vip"},
	})
	require.NoError(t, err)
	assert.Equal(t, "628123456789", contact.Phone)
	assert.Equal(t, []string{"customer", "vip"}, contact.TagList())

	// The same number in another format is a duplicate
	_, err = svc.Create(user.ID, &models.CreateContactRequest{Phone: "+62 812 3456 789", Name: "Sari lagi"})
	assert.ErrorIs(t, err, ErrDuplicateContact)

	_, err = svc.Create(user.ID, &models.CreateContactRequest{Phone: "abc", Name: "X"})
	assert.ErrorIs(t, err, utils.ErrInvalidPhone)
}

func TestContactOwnership(t *testing.T) {
	env := newTestEnv(t)
	svc := NewContactService(env.contacts)

	user := env.createUser(t, "budi", "password123")
	other := env.createUser(t, "sari", "password123")

	contact, err := svc.Create(user.ID, &models.CreateContactRequest{Phone: "08123456789", Name: "Andi"})
	require.NoError(t, err)

	_, err = svc.Get(other.ID, contact.ID)
	assert.ErrorIs(t, err, ErrNotContactOwner)
	_, err = svc.Get(user.ID, "missing")
	assert.ErrorIs(t, err, ErrContactNotFound)

	updated, err := svc.Update(user.ID, contact.ID, &models.CreateContactRequest{
		Phone: contact.Phone,
		Name:  "Andi Wijaya",
		Tags:  []string{"reseller"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Andi Wijaya", updated.Name)
	assert.True(t, updated.HasTag("reseller"))

	require.NoError(t, svc.Delete(user.ID, contact.ID))
	_, err = svc.Get(user.ID, contact.ID)
	assert.ErrorIs(t, err, ErrContactNotFound)
}

func TestImportContacts(t *testing.T) {
	env := newTestEnv(t)
	svc := NewContactService(env.contacts)

	user := env.createUser(t, "budi", "password123")

	// One pre-existing contact to collide with
	_, err := svc.Create(user.ID, &models.CreateContactRequest{Phone: "08111111111", Name: "Lama"})
	require.NoError(t, err)

	rows := []*models.CreateContactRequest{
		{Phone: "08122222222", Name: "Baru"},
		{Phone: "not-a-phone", Name: "Rusak"},
		{Phone: "0812 2222 222", Name: "Ganda"}, // same as the first row
		{Phone: "08111111111", Name: "Lama"},    // already in the book
		nil,
		{Phone: "08133333333", Name: "Baru Dua", Tags: []string{"import"}},
	}

	result, err := svc.Import(user.ID, rows)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 4, result.Skipped)
	require.Len(t, result.Errors, 4)
	assert.Equal(t, 1, result.Errors[0].Index)
	assert.Equal(t, "invalid phone number", result.Errors[0].Reason)
	assert.Equal(t, "duplicate in upload", result.Errors[1].Reason)
	assert.Equal(t, "already exists", result.Errors[2].Reason)
	assert.Equal(t, "empty row", result.Errors[3].Reason)

	count, err := env.contacts.CountByUser(user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	_, err = svc.Import(user.ID, nil)
	assert.Error(t, err)
}
