// Package budget defines the domain types for the budget application server.
// This package has no project imports -- it is the dependency root.
package budget

import "strings"

// AutomaticPaymentPrefix marks an expected-expense label as an automatic
// payment, executed as a batch during a plain "getpaid".
const AutomaticPaymentPrefix = "*"

// Budget is one user's budgeting state. All monetary amounts are integer
// cents. Expense map keys are lower-cased labels; after any AddExpense the
// two maps hold identical key sets.
type Budget struct {
	Username         string           `json:"username"`
	CurrentBalance   int64            `json:"current_balance"`
	ExpectedIncome   int64            `json:"expected_income"`
	ExpectedExpenses map[string]int64 `json:"expected_expenses"`
	CurrentExpenses  map[string]int64 `json:"current_expenses"`
	Savings          int64            `json:"savings"`
}

// New returns an empty Budget for the given username.
func New(username string) *Budget {
	return &Budget{
		Username:         username,
		ExpectedExpenses: make(map[string]int64),
		CurrentExpenses:  make(map[string]int64),
	}
}

// Normalize replaces nil maps with empty ones. Called after deserializing
// stored state so command execution never writes to a nil map.
func (b *Budget) Normalize() {
	if b.ExpectedExpenses == nil {
		b.ExpectedExpenses = make(map[string]int64)
	}
	if b.CurrentExpenses == nil {
		b.CurrentExpenses = make(map[string]int64)
	}
}

// SetIncome sets the expected income.
func (b *Budget) SetIncome(cents int64) {
	b.ExpectedIncome = cents
}

// RaiseIncome adds to the expected income.
func (b *Budget) RaiseIncome(cents int64) {
	b.ExpectedIncome += cents
}

// AddExpense creates or overwrites an expected expense under the lower-cased
// label and seeds the matching current expense at zero.
func (b *Budget) AddExpense(label string, cents int64) {
	key := strings.ToLower(label)
	b.ExpectedExpenses[key] = cents
	b.CurrentExpenses[key] = 0
}

// Refresh resets every current expense to zero.
func (b *Budget) Refresh() {
	for key := range b.CurrentExpenses {
		b.CurrentExpenses[key] = 0
	}
}

// GetPaidAmount adds the given amount to the current balance.
func (b *Budget) GetPaidAmount(cents int64) {
	b.CurrentBalance += cents
}

// GetPaid runs a pay cycle: current expenses reset, expected income lands in
// the balance, then every automatic payment is attempted as one atomic batch.
// Returns false when the batch total exceeded the balance; in that case no
// payment is applied and the balance keeps the full income.
func (b *Budget) GetPaid() bool {
	b.Refresh()
	b.CurrentBalance += b.ExpectedIncome
	return b.makeAutomaticPayments()
}

// makeAutomaticPayments pays every '*'-prefixed expected expense, or none at
// all if their sum exceeds the current balance.
func (b *Budget) makeAutomaticPayments() bool {
	var labels []string
	var total int64
	for label, cents := range b.ExpectedExpenses {
		if strings.HasPrefix(label, AutomaticPaymentPrefix) {
			labels = append(labels, label)
			total += cents
		}
	}
	if total == 0 {
		return true
	}
	if total > b.CurrentBalance {
		return false
	}
	for _, label := range labels {
		// Label came out of ExpectedExpenses, so PayStatic cannot miss.
		_ = b.PayStatic(label)
	}
	return true
}

// PayStatic pays the expected amount for the label into current expenses.
func (b *Budget) PayStatic(label string) error {
	key := strings.ToLower(label)
	cents, ok := b.ExpectedExpenses[key]
	if !ok {
		return ErrExpenseNotFound
	}
	return b.PayDynamic(key, cents)
}

// PayDynamic deducts the given amount from the balance and credits it to the
// label's current expense. The balance may go negative; overdraft protection
// is only applied to the automatic batch.
func (b *Budget) PayDynamic(label string, cents int64) error {
	key := strings.ToLower(label)
	if _, ok := b.CurrentExpenses[key]; !ok {
		return ErrExpenseNotFound
	}
	b.CurrentBalance -= cents
	b.CurrentExpenses[key] += cents
	return nil
}

// Save moves the given amount from the balance into savings.
func (b *Budget) Save(cents int64) error {
	if b.CurrentBalance < cents {
		return ErrInsufficientBalance
	}
	b.CurrentBalance -= cents
	b.Savings += cents
	return nil
}

// SaveAll moves the entire balance into savings.
func (b *Budget) SaveAll() {
	b.Savings += b.CurrentBalance
	b.CurrentBalance = 0
}

// Credentials is the register/login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthRow is a stored authentication record. PasswordHash is an opaque
// verifiable hash and never leaves the server.
type AuthRow struct {
	ID           string
	Username     string
	PasswordHash string
}
