package operators

// DirichletBC fixes the value of the solution on one edge.
type DirichletBC struct {
	Value float64
	Side  Side
}

// NeumannBC fixes the first difference u[1]-u[0] (lower) or
// u[n-1]-u[n-2] (upper) of the solution.
type NeumannBC struct {
	Value float64
	Side  Side
}

var (
	_ BoundaryCondition[*Tridiagonal] = DirichletBC{}
	_ BoundaryCondition[*Tridiagonal] = NeumannBC{}
)

func NewDirichletBC(value float64, side Side) DirichletBC {
	return DirichletBC{Value: value, Side: side}
}

func NewNeumannBC(value float64, side Side) NeumannBC {
	return NeumannBC{Value: value, Side: side}
}

func (bc DirichletBC) ApplyBeforeApplying(L *Tridiagonal) {
	switch bc.Side {
	case Lower:
		L.SetFirstRow(1, 0)
	case Upper:
		L.SetLastRow(0, 1)
	}
}

func (bc DirichletBC) ApplyAfterApplying(u []float64) {
	switch bc.Side {
	case Lower:
		u[0] = bc.Value
	case Upper:
		u[len(u)-1] = bc.Value
	}
}

func (bc DirichletBC) ApplyBeforeSolving(L *Tridiagonal, rhs []float64) {
	switch bc.Side {
	case Lower:
		L.SetFirstRow(1, 0)
		rhs[0] = bc.Value
	case Upper:
		L.SetLastRow(0, 1)
		rhs[len(rhs)-1] = bc.Value
	}
}

func (DirichletBC) ApplyAfterSolving([]float64) {}

func (DirichletBC) SetTime(float64) {}

func (bc NeumannBC) ApplyBeforeApplying(L *Tridiagonal) {
	switch bc.Side {
	case Lower:
		L.SetFirstRow(-1, 1)
	case Upper:
		L.SetLastRow(-1, 1)
	}
}

func (bc NeumannBC) ApplyAfterApplying(u []float64) {
	n := len(u)
	switch bc.Side {
	case Lower:
		u[0] = u[1] - bc.Value
	case Upper:
		u[n-1] = u[n-2] + bc.Value
	}
}

func (bc NeumannBC) ApplyBeforeSolving(L *Tridiagonal, rhs []float64) {
	switch bc.Side {
	case Lower:
		L.SetFirstRow(-1, 1)
		rhs[0] = bc.Value
	case Upper:
		L.SetLastRow(-1, 1)
		rhs[len(rhs)-1] = bc.Value
	}
}

func (NeumannBC) ApplyAfterSolving([]float64) {}

func (NeumannBC) SetTime(float64) {}
