package models

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestBasePoints(t *testing.T) {
	tests := []struct {
		spent    string
		expected int64
	}{
		{"40.00", 160},
		{"0.25", 1},
		{"0.24", 0},
		{"10.10", 40},
		{"19.99", 79},
		{"0", 0},
	}
	for _, ts := range tests {
		points, err := BasePoints(decimal.RequireFromString(ts.spent))
		require.NoError(t, err)
		require.Equal(t, ts.expected, points, "spent=%s", ts.spent)
	}

	_, err := BasePoints(decimal.RequireFromString("2305843009213693952.25"))
	require.ErrorIs(t, err, ErrValidation)
}

func TestValidateSpent(t *testing.T) {
	require.NoError(t, ValidateSpent(decimal.RequireFromString("0.01")))
	require.NoError(t, ValidateSpent(MaxSpent))
	require.ErrorIs(t, ValidateSpent(decimal.Zero), ErrValidation)
	require.ErrorIs(t, ValidateSpent(decimal.RequireFromString("-5")), ErrValidation)
	require.ErrorIs(t, ValidateSpent(decimal.RequireFromString("10000000000.00")), ErrValidation)
}

func TestAccountCredit(t *testing.T) {
	a := Account{Utorid: "alice001", Points: 10}
	require.NoError(t, a.Credit(5))
	require.Equal(t, int64(15), a.Points)
	require.NoError(t, a.Credit(-15))
	require.Equal(t, int64(0), a.Points)

	require.ErrorIs(t, a.Credit(-1), ErrValidation)
	require.Equal(t, int64(0), a.Points)

	a.Points = math.MaxInt64 - 1
	require.NoError(t, a.Credit(1))
	require.ErrorIs(t, a.Credit(1), ErrValidation)
	require.Equal(t, int64(math.MaxInt64), a.Points)

	_, err := AddPoints(math.MinInt64, -1)
	require.ErrorIs(t, err, ErrValidation)
}

func TestPromotionWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	start := now.Add(-time.Hour)
	p := Promotion{Type: PromoAutomatic, StartTime: &start, EndTime: now.Add(time.Hour), Rate: dec("0.5")}

	require.True(t, p.ActiveAt(now))
	require.True(t, p.ActiveAt(start))
	require.True(t, p.ActiveAt(p.EndTime))
	require.False(t, p.ActiveAt(start.Add(-time.Second)))
	require.False(t, p.ActiveAt(p.EndTime.Add(time.Second)))

	p.StartTime = nil
	require.True(t, p.ActiveAt(now.Add(-100*time.Hour)))
}

func TestPromotionEligibilityAndBonus(t *testing.T) {
	now := time.Now()
	auto := Promotion{Type: PromoAutomatic, EndTime: now.Add(time.Hour), MinSpending: dec("20"), Rate: dec("0.25")}
	require.False(t, auto.Eligible(decimal.RequireFromString("19.99"), now))
	require.True(t, auto.Eligible(decimal.RequireFromString("20"), now))
	bonus, err := auto.Bonus(160)
	require.NoError(t, err)
	require.Equal(t, int64(40), bonus)
	bonus, err = auto.Bonus(3)
	require.NoError(t, err)
	require.Equal(t, int64(0), bonus)

	huge := Promotion{Type: PromoAutomatic, EndTime: now.Add(time.Hour), Rate: dec("1000000000000")}
	_, err = huge.Bonus(math.MaxInt64 / 2)
	require.ErrorIs(t, err, ErrValidation)

	once := Promotion{Type: PromoOneTime, EndTime: now.Add(time.Hour), Points: 50}
	require.True(t, once.Eligible(decimal.RequireFromString("1"), now))
	bonus, err = once.Bonus(160)
	require.NoError(t, err)
	require.Equal(t, int64(50), bonus)
}

func TestPromotionValidate(t *testing.T) {
	now := time.Now()
	later := now.Add(time.Hour)

	require.NoError(t, Promotion{Name: "x", Type: PromoAutomatic, EndTime: later, Rate: dec("0.1")}.Validate())
	require.NoError(t, Promotion{Name: "x", Type: PromoOneTime, EndTime: later, Points: 10}.Validate())

	bad := []Promotion{
		{Type: PromoOneTime, EndTime: later, Points: 10},
		{Name: "x", Type: PromoAutomatic, EndTime: later},
		{Name: "x", Type: PromoAutomatic, EndTime: later, Rate: dec("0.1"), Points: 5},
		{Name: "x", Type: PromoOneTime, EndTime: later, Points: 10, Rate: dec("0.1")},
		{Name: "x", Type: PromoOneTime, EndTime: later},
		{Name: "x", Type: PromoOneTime, StartTime: &later, EndTime: now, Points: 1},
		{Name: "x", Type: PromoOneTime, EndTime: later, Points: 1, MinSpending: dec("-1")},
		{Name: "x", Type: "weekly", EndTime: later, Points: 1},
	}
	for i, p := range bad {
		require.ErrorIs(t, p.Validate(), ErrValidation, "case %d", i)
	}
}

func TestEventBudget(t *testing.T) {
	e := Event{PointsTotal: 1000, PointsRemain: 1000}
	require.NoError(t, e.Draw(50, 10))
	require.Equal(t, int64(500), e.PointsRemain)
	require.Equal(t, int64(500), e.PointsAwarded())

	require.ErrorIs(t, e.Draw(60, 10), ErrValidation)
	require.Equal(t, int64(500), e.PointsRemain)
	require.ErrorIs(t, e.Draw(0, 10), ErrValidation)
	require.ErrorIs(t, e.Draw(10, 0), ErrValidation)

	// произведение переполняет int64 и не должно пройти проверку бюджета
	require.ErrorIs(t, e.Draw(6148914691236517206, 3), ErrValidation)
	require.Equal(t, int64(500), e.PointsRemain)

	require.NoError(t, e.Draw(500, 1))
	require.Equal(t, int64(0), e.PointsRemain)

	require.ErrorIs(t, e.Rebudget(2000), ErrConflict)

	fresh := Event{PointsTotal: 100, PointsRemain: 100}
	require.NoError(t, fresh.Rebudget(300))
	require.Equal(t, int64(300), fresh.PointsRemain)
}

func TestEventCapacity(t *testing.T) {
	two := int64(2)
	e := Event{Capacity: &two, Guests: []AccountRef{{ID: 1}}}
	require.False(t, e.Full())
	e.Guests = append(e.Guests, AccountRef{ID: 2})
	require.True(t, e.Full())
	require.True(t, e.IsGuest(2))
	require.False(t, e.IsOrganizer(2))

	e.Capacity = nil
	require.False(t, e.Full())
}

func TestAccountValidation(t *testing.T) {
	require.NoError(t, ValidateUtorid("smithj12"))
	require.NoError(t, ValidateUtorid("abc1234"))
	require.ErrorIs(t, ValidateUtorid("abc123"), ErrValidation)
	require.ErrorIs(t, ValidateUtorid("abc-1234"), ErrValidation)

	require.NoError(t, ValidateEmail("john.smith@mail.utoronto.ca"))
	require.ErrorIs(t, ValidateEmail("john@gmail.com"), ErrValidation)
	require.ErrorIs(t, ValidateEmail("@mail.utoronto.ca"), ErrValidation)

	require.NoError(t, ValidatePassword("Secret1!x"))
	require.ErrorIs(t, ValidatePassword("secret1!x"), ErrValidation)
	require.ErrorIs(t, ValidatePassword("S1!a"), ErrValidation)

	require.NoError(t, ValidateBirthday("2000-02-29"))
	require.ErrorIs(t, ValidateBirthday("2001-02-29"), ErrValidation)
}

func TestRoleHierarchy(t *testing.T) {
	require.True(t, RoleSuperuser.AtLeast(RoleManager))
	require.True(t, RoleCashier.AtLeast(RoleCashier))
	require.False(t, RoleCashier.AtLeast(RoleManager))
	require.False(t, Role("admin").AtLeast(RoleRegular))

	r, err := ParseRole("Manager")
	require.NoError(t, err)
	require.Equal(t, RoleManager, r)
}

func TestTransactionApplied(t *testing.T) {
	require.False(t, Transaction{Type: TnxPurchase, Suspicious: true}.Applied())
	require.True(t, Transaction{Type: TnxPurchase}.Applied())
	require.False(t, Transaction{Type: TnxRedemption}.Applied())
	require.True(t, Transaction{Type: TnxRedemption}.Pending())
	require.True(t, Transaction{Type: TnxRedemption, Processed: true}.Applied())
	require.True(t, Transaction{Type: TnxTransfer}.Applied())
}

func TestTransactionTransitions(t *testing.T) {
	p := Transaction{ID: 1, Type: TnxPurchase, Suspicious: true}
	require.NoError(t, p.Approve())
	require.False(t, p.Suspicious)
	require.ErrorIs(t, p.Approve(), ErrConflict)

	adj := Transaction{ID: 2, Type: TnxAdjustment}
	require.ErrorIs(t, adj.Approve(), ErrConflict)

	r := Transaction{ID: 3, Type: TnxRedemption, Amount: -50}
	require.NoError(t, r.Process("cashier1"))
	require.True(t, r.Processed)
	require.Equal(t, "cashier1", r.ProcessedBy)
	require.ErrorIs(t, r.Process("cashier2"), ErrConflict)
	require.Equal(t, "cashier1", r.ProcessedBy)

	require.ErrorIs(t, adj.Process("cashier1"), ErrValidation)
}
