// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package levmar fits parametric models to noisy observations with the
// Levenberg-Marquardt damped least-squares iteration.
//
// Given N samples (𝐱ᵢ, 𝐲ᵢ, σᵢ) and a model 𝒇(𝐱;𝐚) : ℝᵈ → ℝᵏ with
// parameter vector 𝐚, the fitter minimizes the weighted sum of squares
//
//	𝛘²(𝐚) = ∑ᵢ σᵢ⁻² ‖𝐲ᵢ - 𝒇(𝐱ᵢ;𝐚)‖₂²
//
// and reports the estimate 𝐚, its covariance and the chi-square
// significance of the fit. Individual parameters may be held at fixed
// values and excluded from the optimization.
package levmar

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNotReady signals Fit was called without an evaluator, observations
	// or at least one free parameter.
	ErrNotReady = errors.New("levmar: fit not ready")
	// ErrSingular signals a singular curvature system, typically degenerate
	// or insufficient samples.
	ErrSingular = errors.New("levmar: singular curvature matrix")
	// ErrEvaluate signals the model evaluator failed.
	ErrEvaluate = errors.New("levmar: model evaluation failed")
	// ErrNotConverged signals the iteration budget was exhausted before the
	// convergence streak completed. The provisional result is returned
	// alongside but not marked available.
	ErrNotConverged = errors.New("levmar: not converged")
)

// Evaluator computes model predictions and their parameter derivatives.
//   - 𝒇(𝐱;𝐚) : ℝᵈ → ℝᵏ
//   - 𝒇′(𝐱;𝐚) : ∂𝒇ₖ/∂𝐚ⱼ ∈ ℝᵏˣᵖ
//
// Implementations must be side-effect free with respect to the fitter:
// Evaluate is invoked once per sample on every iteration.
type Evaluator interface {
	// Params reports the number of model parameters p.
	Params() int
	// Dims reports the dimension d of one independent-variable point.
	Dims() int
	// Vars reports the number of output components k per sample.
	Vars() int
	// InitParams returns the initial parameter guess of length Params.
	InitParams() []float64
	// Evaluate computes the prediction and Jacobian for sample i.
	// point holds the Dims coordinates, pred receives the Vars outputs and
	// jac the row-major Vars×Params partials ∂predₖ/∂paramsⱼ.
	Evaluate(i int, point, params, pred, jac []float64) error
}

// Termination specifies the stopping criteria for the LM iteration.
type Termination struct {
	// The iteration stops with ExceedMaxIter after this many outer iterations.
	MaxIterations int
	// The number of consecutive accepted steps whose relative chi-square
	// improvement stays below Tolerance required to declare convergence.
	ConvergeStreak int
	// Relative improvement threshold (𝛘²ₖ - 𝛘²ₖ₊₁)/𝛘²ₖ.
	Tolerance float64
}

// Problem specifies a nonlinear least-squares fit.
type Problem struct {
	Model Evaluator   // Model function and partials
	Stop  Termination // Stop condition
	// AdjustCovariance rescales the covariance by the reduced chi-square.
	// Set it when the supplied sigmas are relative weights rather than
	// absolute statistical standard deviations.
	AdjustCovariance bool
}

// New creates a fitter for the given problem.
func (p *Problem) New(logger *Logger) (fitter *Fitter, err error) {

	if logger == nil {
		logger = new(Logger)
		logger.Level = LogNoop
	}

	model, stop := p.Model, p.Stop

	var np, nd, nv int
	if model != nil {
		np, nd, nv = model.Params(), model.Dims(), model.Vars()
	}

	switch {
	case model == nil:
		err = errors.New("model evaluator is required")
	case np <= 0:
		err = errors.New("parameter count must greater than 0")
	case nd <= 0:
		err = errors.New("point dimension must greater than 0")
	case nv <= 0:
		err = errors.New("output count must greater than 0")
	case stop.MaxIterations <= 0:
		err = errors.New("max iteration must greater than 0")
	case stop.ConvergeStreak <= 0:
		err = errors.New("converge streak must greater than 0")
	case stop.Tolerance <= zero:
		err = errors.New("tolerance must greater than 0")
	case len(model.InitParams()) != np:
		err = errors.New("initial parameter size must equal to parameter count")
	}

	if err != nil {
		return
	}

	fitter = &Fitter{
		lmSpec: lmSpec{
			p: np, dims: nd, vars: nv,
			Problem: Problem{
				Model:            model,
				Stop:             stop,
				AdjustCovariance: p.AdjustCovariance,
			},
		},
		logger: logger,
		init:   append([]float64(nil), model.InitParams()...),
		hold:   make([]bool, np),
	}
	return
}

// Fitter drives the LM iteration for one problem. It holds the attached
// observations, the hold/free mask and the result of the last successful
// fit. A Fitter may be reused sequentially but not concurrently: every Fit
// call runs its own iteration state with the damping reset to 1e-3.
type Fitter struct {
	lmSpec
	logger *Logger

	n   int
	x   *mat.Dense // n × dims sample points
	y   *mat.Dense // n × vars observations
	sig []float64  // n per-sample standard deviations

	init []float64 // initial parameter guess, held entries overridden
	hold []bool    // held parameter mask

	result *Result
}

// Result contains the outcome of one fit.
type Result struct {
	OK     bool          // Whether the fit converged and the result is usable.
	Params []float64     // Parameter estimate, held entries at their frozen values.
	Covar  *mat.SymDense // Parameter covariance, zero rows and columns for held parameters.
	ChiSq  float64       // Weighted sum of squared residuals at Params.
	MSE    float64       // Reduced chi-square, 𝛘² over the degrees of freedom.
	P      float64       // Chi-square CDF of 𝛘² with N minus the free parameter count degrees of freedom.
	Q      float64       // Fit quality 1 - P.
	Summary
}

// Summary contains a summary of the iteration.
type Summary struct {
	Status  Status  // Terminal state of the iteration.
	NumIter int     // Number of outer iterations performed.
	Lambda  float64 // Final damping factor.
}

// SetData attaches the observations: x holds one sample point per row,
// y the corresponding outputs and sig the per-sample standard deviation
// applied to every output component. All row counts must agree.
func (f *Fitter) SetData(x, y *mat.Dense, sig []float64) error {
	if x == nil || y == nil {
		return errors.New("levmar: observations are required")
	}
	xr, xc := x.Dims()
	yr, yc := y.Dims()
	switch {
	case xr == 0:
		return errors.New("levmar: empty sample set")
	case xc != f.dims:
		return fmt.Errorf("levmar: sample dimension %d must equal to %d", xc, f.dims)
	case yc != f.vars:
		return fmt.Errorf("levmar: output dimension %d must equal to %d", yc, f.vars)
	case yr != xr || len(sig) != xr:
		return fmt.Errorf("levmar: sample count mismatch: x %d, y %d, sig %d", xr, yr, len(sig))
	}
	for i, s := range sig {
		if s <= zero || math.IsNaN(s) {
			return fmt.Errorf("levmar: sigma must be positive at %d", i)
		}
	}
	f.n = xr
	f.x, f.y = x, y
	f.sig = append([]float64(nil), sig...)
	return nil
}

// SetConstData attaches observations sharing a single uncertainty.
func (f *Fitter) SetConstData(x, y *mat.Dense, sig float64) error {
	if x == nil {
		return errors.New("levmar: observations are required")
	}
	n, _ := x.Dims()
	sigs := make([]float64, n)
	for i := range sigs {
		sigs[i] = sig
	}
	return f.SetData(x, y, sigs)
}

// SetScalarData is the one-dimensional single-output convenience: one
// scalar sample point and one scalar observation per entry.
func (f *Fitter) SetScalarData(x, y, sig []float64) error {
	if f.dims != 1 || f.vars != 1 {
		return fmt.Errorf("levmar: model is %d-dim %d-output, scalar data not applicable", f.dims, f.vars)
	}
	if len(x) == 0 || len(x) != len(y) {
		return fmt.Errorf("levmar: sample count mismatch: x %d, y %d", len(x), len(y))
	}
	xd := mat.NewDense(len(x), 1, append([]float64(nil), x...))
	yd := mat.NewDense(len(y), 1, append([]float64(nil), y...))
	return f.SetData(xd, yd, sig)
}

// SetInitParams replaces the initial parameter guess for the next fit,
// e.g. to retry a non-converged fit from a different starting point.
func (f *Fitter) SetInitParams(a []float64) error {
	if len(a) != f.p {
		return fmt.Errorf("levmar: parameter size %d must equal to %d", len(a), f.p)
	}
	copy(f.init, a)
	return nil
}

// Hold freezes parameter i at value v, excluding it from the optimization.
// Takes effect on the next Fit call.
func (f *Fitter) Hold(i int, v float64) error {
	if i < 0 || i >= f.p {
		return fmt.Errorf("levmar: parameter index %d out of range [0:%d]", i, f.p)
	}
	f.hold[i] = true
	f.init[i] = v
	return nil
}

// Free restores parameter i to the optimized set.
func (f *Fitter) Free(i int) error {
	if i < 0 || i >= f.p {
		return fmt.Errorf("levmar: parameter index %d out of range [0:%d]", i, f.p)
	}
	f.hold[i] = false
	return nil
}

// Ready reports whether observations are attached and at least one
// parameter is free.
func (f *Fitter) Ready() bool {
	if f.x == nil || f.n == 0 {
		return false
	}
	for _, h := range f.hold {
		if !h {
			return true
		}
	}
	return false
}

// Available reports whether the last Fit converged and its result can be read.
func (f *Fitter) Available() bool {
	return f.result != nil && f.result.OK
}

// Result returns the result of the last converged fit, or nil.
func (f *Fitter) Result() *Result {
	if !f.Available() {
		return nil
	}
	return f.result
}

// Fit runs the LM iteration until convergence, budget exhaustion or a
// numerical failure. On convergence the result is retained and Available
// becomes true. On ExceedMaxIter the provisional estimate is returned
// together with ErrNotConverged; numerical and evaluation failures return
// a nil result. Configuration, observations and the hold mask survive any
// failure, so the caller may adjust and retry.
func (f *Fitter) Fit() (*Result, error) {
	if !f.Ready() {
		return nil, ErrNotReady
	}
	f.result = nil

	solver := lmSolver{
		fitter: f,
		ctx:    newCtx(&f.lmSpec, f.init, f.hold),
	}

	status := solver.mainLoop()
	f.logger.last(status, solver.ctx)

	switch status {
	case Converged:
		f.result = solver.finalize()
		return f.result, nil
	case ExceedMaxIter:
		return solver.provisional(), ErrNotConverged
	case SingularMatrix:
		return nil, ErrSingular
	default:
		return nil, ErrEvaluate
	}
}
