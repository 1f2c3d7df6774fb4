package budget

import "encoding/json"

// Command is a decoded user command, one variant per "command" value.
type Command interface{ isCommand() }

// NewExpense creates or overwrites an expense category.
type NewExpense struct {
	Label string
	Cents int64
}

// GetPaid adds income to the balance. With Cents set, the given amount is
// added; without, a full pay cycle runs (refresh, expected income, automatic
// payments).
type GetPaid struct {
	Cents *int64
}

// SetIncome sets the expected income.
type SetIncome struct {
	Cents int64
}

// RaiseIncome adds to the expected income.
type RaiseIncome struct {
	Cents int64
}

// Pay makes a payment: dynamic when Cents is set, static otherwise.
type Pay struct {
	Label string
	Cents *int64
}

// Save moves funds into savings; All moves the whole balance.
type Save struct {
	Cents int64
	All   bool
}

func (NewExpense) isCommand()  {}
func (GetPaid) isCommand()     {}
func (SetIncome) isCommand()   {}
func (RaiseIncome) isCommand() {}
func (Pay) isCommand()         {}
func (Save) isCommand()        {}

// rawCommand is the wire shape of a command body. Amount and Label are
// pointers so a missing field is distinguishable from an empty one.
type rawCommand struct {
	Command string  `json:"command"`
	Label   *string `json:"label"`
	Amount  *string `json:"amount"`
}

// DecodeCommand parses a user command body into its tagged variant. Every
// failure is a *CommandError whose code goes back to the client verbatim.
func DecodeCommand(data []byte) (Command, error) {
	var raw rawCommand
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, NewCommandError("malformed_json")
	}
	if raw.Command == "" {
		return nil, NewCommandError("missing_command_field")
	}

	switch raw.Command {
	case "new":
		label, err := requireLabel(raw, "new")
		if err != nil {
			return nil, err
		}
		cents, err := requireAmount(raw, "new")
		if err != nil {
			return nil, err
		}
		return NewExpense{Label: label, Cents: cents}, nil

	case "getpaid":
		cents, err := optionalAmount(raw, "getpaid")
		if err != nil {
			return nil, err
		}
		return GetPaid{Cents: cents}, nil

	case "setincome":
		cents, err := requireAmount(raw, "setincome")
		if err != nil {
			return nil, err
		}
		return SetIncome{Cents: cents}, nil

	case "raiseincome":
		cents, err := requireAmount(raw, "raiseincome")
		if err != nil {
			return nil, err
		}
		return RaiseIncome{Cents: cents}, nil

	case "pay":
		label, err := requireLabel(raw, "pay")
		if err != nil {
			return nil, err
		}
		cents, err := optionalAmount(raw, "pay")
		if err != nil {
			return nil, err
		}
		return Pay{Label: label, Cents: cents}, nil

	case "save":
		if raw.Amount == nil {
			return nil, NewCommandError("missing_save_amount_field")
		}
		if *raw.Amount == "all" {
			return Save{All: true}, nil
		}
		cents, err := ParseDollarString(*raw.Amount)
		if err != nil {
			return nil, NewCommandError("invalid_save_amount_value")
		}
		return Save{Cents: cents}, nil

	default:
		return nil, NewCommandError("unknown_command")
	}
}

func requireLabel(raw rawCommand, cmd string) (string, error) {
	if raw.Label == nil {
		return "", NewCommandError("missing_" + cmd + "_label_field")
	}
	if *raw.Label == "" {
		return "", NewCommandError("invalid_" + cmd + "_label_value")
	}
	return *raw.Label, nil
}

func requireAmount(raw rawCommand, cmd string) (int64, error) {
	if raw.Amount == nil {
		return 0, NewCommandError("missing_" + cmd + "_amount_field")
	}
	cents, err := ParseDollarString(*raw.Amount)
	if err != nil {
		return 0, NewCommandError("invalid_" + cmd + "_amount_value")
	}
	return cents, nil
}

func optionalAmount(raw rawCommand, cmd string) (*int64, error) {
	if raw.Amount == nil {
		return nil, nil
	}
	cents, err := ParseDollarString(*raw.Amount)
	if err != nil {
		return nil, NewCommandError("invalid_" + cmd + "_amount_value")
	}
	return &cents, nil
}

// Apply executes the command against the budget. A nil error means the
// budget mutated (or a no-op cycle ran) and should be persisted.
func (b *Budget) Apply(cmd Command) error {
	switch c := cmd.(type) {
	case NewExpense:
		b.AddExpense(c.Label, c.Cents)
	case GetPaid:
		if c.Cents != nil {
			b.GetPaidAmount(*c.Cents)
		} else {
			// An unaffordable automatic batch is not a command failure:
			// income still lands and the client sees the updated budget.
			b.GetPaid()
		}
	case SetIncome:
		b.SetIncome(c.Cents)
	case RaiseIncome:
		b.RaiseIncome(c.Cents)
	case Pay:
		var err error
		if c.Cents != nil {
			err = b.PayDynamic(c.Label, *c.Cents)
		} else {
			err = b.PayStatic(c.Label)
		}
		if err != nil {
			return NewCommandError("expense_not_found")
		}
	case Save:
		if c.All {
			b.SaveAll()
			return nil
		}
		if err := b.Save(c.Cents); err != nil {
			return NewCommandError("insufficient_balance")
		}
	}
	return nil
}
