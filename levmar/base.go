// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package levmar

const (
	zero = 0.0
	one  = 1.0
	ten  = 10.0
)

const (
	// Marquardt's recipe: start mildly damped,
	// relax by 10 on success, tighten by 10 on failure.
	lambdaInit   = 1e-3
	lambdaShrink = one / ten
	lambdaGrow   = ten
)

// Status is the terminal state of one fit.
type Status int

const (
	// Converged chi-square improvement stayed below tolerance for the required streak.
	Converged Status = iota
	// ExceedMaxIter iteration budget exhausted before the convergence streak completed.
	ExceedMaxIter
	// SingularMatrix zero pivot while eliminating the damped curvature system.
	SingularMatrix
	// EvaluateFailure the model evaluator returned an error or panicked.
	EvaluateFailure
)

const (
	// scoreOK internal success marker for curvature assembly and elimination.
	scoreOK Status = -1
)

type lmSpec struct {
	// the number of model parameters
	p int
	// the dimension of one independent-variable point
	dims int
	// the number of output components per sample
	vars int
	Problem
}

// lmCtx is the per-fit iteration state. Every Fit call builds a fresh one,
// so a Fitter can be reused sequentially and hold/free changes between
// calls never leak into a running iteration.
type lmCtx struct {
	// damping factor 𝛌 interpolating between Gauss-Newton and gradient descent.
	lambda float64
	// weighted sum of squared residuals at the accepted parameters.
	chisq float64
	// outer iteration counter.
	iter int
	// consecutive accepted steps with relative improvement below tolerance.
	streak int
	// compact solve index -> parameter index for the free parameters.
	free []int
	// accepted parameter vector (full p, held entries frozen).
	a []float64
	// trial parameter vector (full p).
	try []float64
	// curvature ½𝜵²𝛘² and gradient -½𝜵𝛘² at the accepted parameters,
	// restricted to the free subspace (pf×pf and pf).
	alpha, beta []float64
	// curvature system assembled at the trial parameters.
	alphaTry, betaTry []float64
	// damped copy handed to the eliminator, replaced by its inverse.
	damped []float64
	// solution of the damped system.
	delta []float64
	// per-sample evaluation scratch: vars predictions, vars×p Jacobian.
	pred, jac []float64
}

func newCtx(spec *lmSpec, init []float64, hold []bool) *lmCtx {
	p := spec.p
	ctx := &lmCtx{
		lambda: lambdaInit,
		a:      make([]float64, p),
		try:    make([]float64, p),
		pred:   make([]float64, spec.vars),
		jac:    make([]float64, spec.vars*p),
	}
	copy(ctx.a, init)
	for i, h := range hold {
		if !h {
			ctx.free = append(ctx.free, i)
		}
	}
	pf := len(ctx.free)
	ctx.alpha = make([]float64, pf*pf)
	ctx.beta = make([]float64, pf)
	ctx.alphaTry = make([]float64, pf*pf)
	ctx.betaTry = make([]float64, pf)
	ctx.damped = make([]float64, pf*pf)
	ctx.delta = make([]float64, pf)
	return ctx
}

func dzero(dx []float64) {
	for i := range dx {
		dx[i] = zero
	}
}
