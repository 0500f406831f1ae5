package forecast

// Milestones reported alongside a savings projection, in months.
var Milestones = []int{6, 12, 24}

type (
	// SavingsProjection is the linear savings trajectory built from
	// the current balance and monthly surplus.
	SavingsProjection struct {
		Values     []int64 // balance at end of each future month
		Milestones []Milestone
	}

	// Milestone is the projected balance at a named horizon.
	Milestone struct {
		Months  int
		Balance int64
	}
)

// ProjectSavings accumulates the monthly surplus onto the current
// balance. A negative surplus draws the balance down; balances are not
// clamped so the caller can show when savings run out.
func ProjectSavings(savings, monthlySurplus int64, horizon int) SavingsProjection {
	if horizon <= 0 {
		horizon = 0
	}
	values := make([]int64, horizon)
	for i := 0; i < horizon; i++ {
		values[i] = savings + monthlySurplus*int64(i+1)
	}

	var milestones []Milestone
	for _, m := range Milestones {
		milestones = append(milestones, Milestone{
			Months:  m,
			Balance: savings + monthlySurplus*int64(m),
		})
	}
	return SavingsProjection{Values: values, Milestones: milestones}
}
