package providers

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresGetForOrg(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "org_id", "name", "role", "active"}).
		AddRow(id, "org-1", "Dana", "stylist", true)
	mock.ExpectQuery("SELECT id, org_id, name, role, active").
		WithArgs(id, "org-1").
		WillReturnRows(rows)

	repo := NewPostgresRepository(mock)
	p, err := repo.GetForOrg(context.Background(), "org-1", id)
	require.NoError(t, err)
	assert.Equal(t, "Dana", p.Name)
	assert.True(t, p.Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetForOrgNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("SELECT id, org_id, name, role, active").
		WithArgs(id, "org-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "org_id", "name", "role", "active"}))

	repo := NewPostgresRepository(mock)
	_, err = repo.GetForOrg(context.Background(), "org-1", id)
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestPostgresListActiveWithRole(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"id", "org_id", "name", "role", "active"}).
		AddRow(uuid.New(), "org-1", "Alex", "barber", true).
		AddRow(uuid.New(), "org-1", "Morgan", "barber", true)
	mock.ExpectQuery("SELECT id, org_id, name, role, active").
		WithArgs("org-1", "barber").
		WillReturnRows(rows)

	repo := NewPostgresRepository(mock)
	list, err := repo.ListActive(context.Background(), "org-1", "barber")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestInMemoryScoping(t *testing.T) {
	repo := NewInMemoryRepository()
	repo.Add(&Provider{OrgID: "org-1", Name: "Alex", Role: "barber", Active: true})
	repo.Add(&Provider{OrgID: "org-1", Name: "Sam", Role: "stylist", Active: true})
	repo.Add(&Provider{OrgID: "org-1", Name: "Former", Role: "barber", Active: false})
	repo.Add(&Provider{OrgID: "org-2", Name: "Other", Role: "barber", Active: true})

	barbers, err := repo.ListActive(context.Background(), "org-1", "barber")
	require.NoError(t, err)
	require.Len(t, barbers, 1)
	assert.Equal(t, "Alex", barbers[0].Name)

	all, err := repo.ListActive(context.Background(), "org-1", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = repo.GetForOrg(context.Background(), "org-2", barbers[0].ID)
	assert.ErrorIs(t, err, ErrProviderNotFound)
}
