package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeedAdminAccountIsIdempotent(t *testing.T) {
	db := setupTestDB(t, "account_seed", &UserAccount{})

	if err := SeedAdminAccount(db, " Admin@Clinic.test "); err != nil {
		t.Fatalf("SeedAdminAccount returned error: %v", err)
	}
	if err := SeedAdminAccount(db, "admin@clinic.test"); err != nil {
		t.Fatalf("second SeedAdminAccount returned error: %v", err)
	}

	var accounts []UserAccount
	if err := db.Find(&accounts).Error; err != nil {
		t.Fatalf("failed to list accounts: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("expected exactly 1 seeded account, got %d", len(accounts))
	}
	assert.Equal(t, "admin@clinic.test", accounts[0].Email)
	assert.Equal(t, RoleAdmin, accounts[0].Role)
}

func TestSeedAdminAccountEmptyEmail(t *testing.T) {
	db := setupTestDB(t, "account_empty", &UserAccount{})

	assert.NoError(t, SeedAdminAccount(db, "  "))
	var count int64
	db.Model(&UserAccount{}).Count(&count)
	assert.Zero(t, count)
}

func TestUserAccount_ViewsFinancial(t *testing.T) {
	var nilAccount *UserAccount
	assert.False(t, nilAccount.ViewsFinancial())
	assert.True(t, (&UserAccount{Role: RoleAdmin}).ViewsFinancial())
	assert.True(t, (&UserAccount{Role: RoleDoctor, CanViewFinancial: true}).ViewsFinancial())
	assert.False(t, (&UserAccount{Role: RoleUser}).ViewsFinancial())
}

func TestValidRole(t *testing.T) {
	for _, r := range []string{RoleAdmin, RoleDoctor, RoleUser} {
		assert.True(t, ValidRole(r), r)
	}
	assert.False(t, ValidRole("nurse"))
}
